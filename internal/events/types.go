// internal/events/types.go
package events

import (
	"time"

	"github.com/rovshanmuradov/fairlaunch/internal/storage/models"
)

// EventType - имя события; совпадает с именем, которое получают клиенты WebSocket.
type EventType string

const (
	// Trade events
	TradeReconciled EventType = "tradeReconciled"
	PricesUpdated   EventType = "currentPrices"

	// Launch events
	TokenCreated    EventType = "TokenCreated"
	TokenNotCreated EventType = "TokenNotCreated"

	// Migration events
	MigrationCompleted EventType = "MigrationCompleted"
	MigrationFailed    EventType = "MigrationFailed"

	// Notifier events
	ConnectionUpdated EventType = "connectionUpdated"
)

// Event - базовый интерфейс всех событий.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent содержит общие поля событий.
type BaseEvent struct {
	EventType EventType `json:"-"`
	EventTime time.Time `json:"time"`
}

// Type returns the event type.
func (e BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// NewBase создает BaseEvent с текущим временем.
func NewBase(t EventType) BaseEvent {
	return BaseEvent{EventType: t, EventTime: time.Now()}
}

// TradeReconciledEvent публикуется после записи новой сделки.
type TradeReconciledEvent struct {
	BaseEvent
	Mint         string           `json:"mint"`
	Signature    string           `json:"tx"`
	Holder       string           `json:"holder"`
	Kind         models.TradeKind `json:"kind"`
	Amount       uint64           `json:"amount"`
	BaseReserve  uint64           `json:"reserveOne"`
	QuoteReserve uint64           `json:"reserveTwo"`
	Price        float64          `json:"price"`
}

// PricesUpdatedEvent несет окно последних цен токена для графика.
type PricesUpdatedEvent struct {
	BaseEvent
	Mint   string              `json:"mint"`
	Prices []models.PricePoint `json:"prices"`
}

// TokenCreatedEvent публикуется после успешного запуска токена.
type TokenCreatedEvent struct {
	BaseEvent
	Mint      string `json:"mint"`
	Name      string `json:"name"`
	Creator   string `json:"creator"`
	Signature string `json:"tx"`
}

// TokenNotCreatedEvent публикуется при неудачном запуске.
type TokenNotCreatedEvent struct {
	BaseEvent
	Mint   string `json:"mint,omitempty"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// MigrationCompletedEvent публикуется после переноса ликвидности в Raydium.
type MigrationCompletedEvent struct {
	BaseEvent
	Mint      string `json:"mint"`
	MarketID  string `json:"market"`
	Signature string `json:"tx"`
}

// MigrationFailedEvent публикуется, если миграция остановилась с ошибкой.
type MigrationFailedEvent struct {
	BaseEvent
	Mint  string               `json:"mint"`
	Step  models.MigrationStep `json:"step"`
	Error string               `json:"error"`
}

// ConnectionUpdatedEvent сообщает число подключенных клиентов.
type ConnectionUpdatedEvent struct {
	BaseEvent
	Count int `json:"count"`
}

// internal/storage/models/trade.go
package models

import "time"

// TradeKind - тип записи в истории торгов. Значения 0..2 совпадают с кодом из логов программы.
type TradeKind uint8

const (
	TradeKindNone TradeKind = iota
	TradeKindSell
	TradeKindBuy
	TradeKindInitialLiquidity
)

// String возвращает имя типа сделки
func (k TradeKind) String() string {
	switch k {
	case TradeKindSell:
		return "sell"
	case TradeKindBuy:
		return "buy"
	case TradeKindInitialLiquidity:
		return "initial_liquidity"
	default:
		return "none"
	}
}

// IsTrade сообщает, является ли код сделкой, которую нужно сверять.
func (k TradeKind) IsTrade() bool {
	return k == TradeKindSell || k == TradeKindBuy
}

// TradeRecord - запись истории торгов токена. Уникальна по (Mint, Signature).
type TradeRecord struct {
	Seq       int64
	Mint      string
	Holder    string
	Kind      TradeKind
	Amount    uint64
	Signature string
	// Price - отношение quote/base резервов после сделки.
	Price     float64
	CreatedAt time.Time
}

// PricePoint - точка ценового окна для графика.
type PricePoint struct {
	Price     float64   `json:"price"`
	Signature string    `json:"tx"`
	Time      time.Time `json:"time"`
}

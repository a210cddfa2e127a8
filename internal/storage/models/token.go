// internal/storage/models/token.go
package models

import "time"

// DefaultThreshold - порог рыночной капитализации в долларах, если у токена он не задан.
const DefaultThreshold = 5000.0

// Token - запущенный на платформе токен и текущие резервы его кривой.
type Token struct {
	Mint         string
	Creator      string
	Name         string
	Symbol       string
	Description  string
	URI          string
	BaseReserve  uint64
	QuoteReserve uint64
	Threshold    float64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// EffectiveThreshold возвращает порог миграции с учетом значения по умолчанию.
func (t *Token) EffectiveThreshold() float64 {
	if t.Threshold <= 0 {
		return DefaultThreshold
	}
	return t.Threshold
}

// internal/eventlistener/types.go
package eventlistener

import (
	"github.com/rovshanmuradov/fairlaunch/internal/storage/models"
)

// Маркеры строк лога программы кривой.
const (
	markerMint         = "Mint: "
	markerSwap         = "Swap: "
	markerReserves     = "Reserves: "
	markerAddLiquidity = "AddLiquidity"
)

// TradeEvent - структурированное событие, собранное из логов одной транзакции.
// Отсутствующие поля остаются нулевыми.
type TradeEvent struct {
	Signature    string
	Slot         uint64
	Mint         string
	Owner        string
	Kind         models.TradeKind
	Amount       uint64
	BaseReserve  uint64
	QuoteReserve uint64
}

// IsNoop сообщает, что событие не является сделкой и дальнейшая обработка не нужна.
func (e TradeEvent) IsNoop() bool {
	return !e.Kind.IsTrade() || e.Signature == "" || e.Mint == ""
}

// Price возвращает отношение quote/base резервов; 0 при нулевом base.
func (e TradeEvent) Price() float64 {
	if e.BaseReserve == 0 {
		return 0
	}
	return float64(e.QuoteReserve) / float64(e.BaseReserve)
}

// internal/eventlistener/parser.go
package eventlistener

import (
	"strconv"
	"strings"

	"github.com/rovshanmuradov/fairlaunch/internal/storage/models"
)

// ParseLogs извлекает событие из строк лога транзакции.
// Никогда не возвращает ошибку: нераспознанные поля остаются нулевыми.
func ParseLogs(signature string, logs []string) TradeEvent {
	event := TradeEvent{Signature: signature}

	for _, line := range logs {
		if strings.Contains(line, markerMint) {
			event.Mint = field(line, 3)
		}
		if strings.Contains(line, markerSwap) {
			event.Owner = field(line, 3)
			event.Kind = parseKind(field(line, 4))
			event.Amount = parseUint(field(line, 5))
		}
		if strings.Contains(line, markerReserves) {
			event.BaseReserve = parseUint(field(line, 3))
			event.QuoteReserve = parseUint(field(line, 4))
		}
	}

	return event
}

// IsLiquidityAdd сообщает, что пакет логов относится к add_liquidity.
func IsLiquidityAdd(logs []string) bool {
	return len(logs) > 1 && strings.Contains(logs[1], markerAddLiquidity)
}

// field возвращает idx-ое поле строки, разделенной одиночными пробелами.
func field(line string, idx int) string {
	parts := strings.Split(line, " ")
	if idx >= len(parts) {
		return ""
	}
	return strings.TrimSpace(parts[idx])
}

func parseUint(s string) uint64 {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// parseKind переводит код сделки; неизвестные коды считаются "none".
func parseKind(s string) models.TradeKind {
	switch parseUint(s) {
	case uint64(models.TradeKindSell):
		return models.TradeKindSell
	case uint64(models.TradeKindBuy):
		return models.TradeKindBuy
	default:
		return models.TradeKindNone
	}
}

// internal/blockchain/anchor_error.go
package blockchain

import (
	"fmt"
	"strconv"
	"strings"
)

const anchorErrorMarker = "AnchorError"

// AnchorError - ошибка программы Anchor, извлеченная из логов.
type AnchorError struct {
	Code   int
	Name   string
	Msg    string
	Source string
}

func (e *AnchorError) Error() string {
	return fmt.Sprintf("anchor error %s (%d): %s", e.Name, e.Code, e.Msg)
}

// FindAnchorError ищет в логах строку вида
// "Program log: AnchorError occurred. Error Code: X. Error Number: 6001. Error Message: Y."
// и возвращает первую найденную ошибку.
func FindAnchorError(logs []string) (*AnchorError, bool) {
	for _, line := range logs {
		if !strings.Contains(line, anchorErrorMarker) {
			continue
		}
		ae := &AnchorError{
			Name:   field(line, "Error Code:"),
			Msg:    field(line, "Error Message:"),
			Source: line,
		}
		if n, err := strconv.Atoi(field(line, "Error Number:")); err == nil {
			ae.Code = n
		}
		if ae.Name != "" || ae.Code != 0 {
			return ae, true
		}
	}
	return nil, false
}

// field возвращает текст после label до ближайшей точки.
func field(line, label string) string {
	idx := strings.Index(line, label)
	if idx < 0 {
		return ""
	}
	rest := strings.TrimSpace(line[idx+len(label):])
	if end := strings.Index(rest, ". "); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSuffix(rest, ".")
}

// internal/oracle/coingecko.go
// Package oracle получает долларовую цену SOL для оценки рыночной капитализации.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// DefaultURL - публичный эндпоинт CoinGecko simple/price.
const DefaultURL = "https://api.coingecko.com/api/v3/simple/price?ids=solana&vs_currencies=usd"

var (
	// ErrNetwork возвращается, если оракул недоступен.
	ErrNetwork = errors.New("oracle unreachable")

	// ErrBadResponse возвращается при неожиданном ответе оракула.
	ErrBadResponse = errors.New("unexpected oracle response")
)

// PriceSource - источник цены quote-актива в долларах.
type PriceSource interface {
	Price(ctx context.Context) (float64, error)
}

// Service запрашивает цену SOL у CoinGecko.
type Service struct {
	client *http.Client
	url    string
	logger *zap.Logger
}

// NewService создает клиента оракула. Пустой url заменяется на DefaultURL.
func NewService(url string, timeout time.Duration, logger *zap.Logger) *Service {
	if url == "" {
		url = DefaultURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Service{
		client: &http.Client{Timeout: timeout},
		url:    url,
		logger: logger.Named("oracle"),
	}
}

var _ PriceSource = (*Service)(nil)

// Price возвращает текущую цену SOL в долларах.
func (s *Service) Price(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("%w: read body: %v", ErrNetwork, err)
	}

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: status %d, body: %s", ErrBadResponse, resp.StatusCode, string(body))
	}

	price := gjson.GetBytes(body, "solana.usd")
	if !price.Exists() || price.Float() <= 0 {
		return 0, fmt.Errorf("%w: missing solana.usd in %s", ErrBadResponse, string(body))
	}

	s.logger.Debug("Fetched SOL price", zap.Float64("usd", price.Float()))
	return price.Float(), nil
}

// internal/migration/gate.go
// Package migration решает, когда переносить ликвидность токена с кривой в Raydium,
// и выполняет перенос по шагам с сохранением курсора.
package migration

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/fairlaunch/internal/dex/curve"
	"github.com/rovshanmuradov/fairlaunch/internal/oracle"
	"github.com/rovshanmuradov/fairlaunch/internal/storage"
	"github.com/rovshanmuradov/fairlaunch/internal/storage/models"
)

// Request - задание на миграцию одного токена.
type Request struct {
	Mint         string
	Creator      string
	TargetAmount uint64
}

// Migrator выполняет миграцию. Pipeline - основная реализация.
type Migrator interface {
	Migrate(ctx context.Context, req Request) (*models.MigrationState, error)
}

// GateOptions - параметры порога.
type GateOptions struct {
	DefaultThreshold  float64
	InitialQuote      uint64
	MigrationSharePct int64
}

// Gate сравнивает рыночную капитализацию токена с порогом и запускает миграцию.
type Gate struct {
	oracle     oracle.PriceSource
	migrations storage.MigrationStore
	migrator   Migrator
	opts       GateOptions
	logger     *zap.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
	wg       sync.WaitGroup
}

// NewGate создает гейт. Нулевые опции заменяются значениями по умолчанию.
func NewGate(prices oracle.PriceSource, migrations storage.MigrationStore, migrator Migrator, opts GateOptions, logger *zap.Logger) *Gate {
	if opts.DefaultThreshold <= 0 {
		opts.DefaultThreshold = models.DefaultThreshold
	}
	if opts.InitialQuote == 0 {
		opts.InitialQuote = curve.InitialQuote
	}
	if opts.MigrationSharePct <= 0 || opts.MigrationSharePct > 100 {
		opts.MigrationSharePct = 95
	}
	return &Gate{
		oracle:     prices,
		migrations: migrations,
		migrator:   migrator,
		opts:       opts,
		logger:     logger.Named("migration_gate"),
		inflight:   make(map[string]struct{}),
	}
}

// MarketCap = quote / base * 10^6 * цена SOL. Для base == 0 возвращает ноль.
func MarketCap(base, quote uint64, solPrice float64) decimal.Decimal {
	if base == 0 {
		return decimal.Zero
	}
	return fromUint64(quote).
		Mul(decimal.New(1, int32(curve.TokenDecimals))).
		Mul(decimal.NewFromFloat(solPrice)).
		Div(fromUint64(base))
}

// TargetAmount = (quote - initial) * share% + initial, с округлением вниз.
func TargetAmount(quote, initialQuote uint64, sharePct int64) uint64 {
	initial := fromUint64(initialQuote)
	target := fromUint64(quote).Sub(initial).
		Mul(decimal.New(sharePct, -2)).
		Add(initial).
		Floor()
	if target.Sign() <= 0 {
		return 0
	}
	return target.BigInt().Uint64()
}

// Exceeds сообщает, превышает ли капитализация порог (строго).
func (g *Gate) Exceeds(token *models.Token, solPrice float64) bool {
	threshold := token.Threshold
	if threshold <= 0 {
		threshold = g.opts.DefaultThreshold
	}
	return MarketCap(token.BaseReserve, token.QuoteReserve, solPrice).
		GreaterThan(decimal.NewFromFloat(threshold))
}

// Evaluate проверяет токен после сверки сделки. Миграция запускается в
// отдельной горутине, одна на mint; ошибки оракула и миграции только логируются.
func (g *Gate) Evaluate(ctx context.Context, token *models.Token) {
	logger := g.logger.With(zap.String("mint", token.Mint))

	if token.BaseReserve == 0 {
		logger.Debug("Zero base reserve, market cap undefined")
		return
	}

	state, err := g.migrations.GetMigration(ctx, token.Mint)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		logger.Warn("Failed to read migration state", zap.Error(err))
		return
	case state.Migrated:
		logger.Debug("Token already migrated")
		return
	case state.Step.Resumable():
		logger.Debug("Migration in progress", zap.String("step", string(state.Step)))
		return
	}

	price, err := g.oracle.Price(ctx)
	if err != nil {
		logger.Warn("Oracle unavailable, skipping migration check", zap.Error(err))
		return
	}

	marketCap := MarketCap(token.BaseReserve, token.QuoteReserve, price)
	if !g.Exceeds(token, price) {
		logger.Debug("Below threshold", zap.String("market_cap", marketCap.StringFixed(2)))
		return
	}

	req := Request{
		Mint:         token.Mint,
		Creator:      token.Creator,
		TargetAmount: TargetAmount(token.QuoteReserve, g.opts.InitialQuote, g.opts.MigrationSharePct),
	}
	logger.Info("Market cap threshold exceeded, migrating",
		zap.String("market_cap", marketCap.StringFixed(2)),
		zap.Uint64("target_amount", req.TargetAmount))

	g.dispatch(ctx, req, logger)
}

func (g *Gate) dispatch(ctx context.Context, req Request, logger *zap.Logger) {
	g.mu.Lock()
	if _, busy := g.inflight[req.Mint]; busy {
		g.mu.Unlock()
		logger.Debug("Migration already dispatched")
		return
	}
	g.inflight[req.Mint] = struct{}{}
	g.wg.Add(1)
	g.mu.Unlock()

	go func() {
		defer g.wg.Done()
		defer func() {
			g.mu.Lock()
			delete(g.inflight, req.Mint)
			g.mu.Unlock()
		}()

		_, err := g.migrator.Migrate(ctx, req)
		switch {
		case errors.Is(err, ErrInProgress):
			logger.Debug("Migration already running")
		case err != nil:
			logger.Error("Migration failed", zap.Error(err))
		}
	}()
}

// Wait ждет завершения запущенных миграций.
func (g *Gate) Wait() {
	g.wg.Wait()
}

func fromUint64(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}

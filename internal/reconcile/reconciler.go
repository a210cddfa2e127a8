// internal/reconcile/reconciler.go
// Package reconcile сверяет сделки из логов программы кривой с хранилищем.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/fairlaunch/internal/blockchain"
	"github.com/rovshanmuradov/fairlaunch/internal/eventlistener"
	"github.com/rovshanmuradov/fairlaunch/internal/events"
	"github.com/rovshanmuradov/fairlaunch/internal/storage"
	"github.com/rovshanmuradov/fairlaunch/internal/storage/models"
)

// Store - часть хранилища, нужная сверке.
type Store interface {
	storage.TokenStore
	storage.LedgerStore
}

// Gate решает, пора ли переносить ликвидность токена.
type Gate interface {
	Evaluate(ctx context.Context, token *models.Token)
}

// Options - параметры сверки из конфигурации.
type Options struct {
	SettleDelay          time.Duration
	LiquiditySettleDelay time.Duration
	QueueSize            int
	PriceWindow          int
	IdleTimeout          time.Duration
}

func (o *Options) applyDefaults() {
	if o.QueueSize <= 0 {
		o.QueueSize = 64
	}
	if o.PriceWindow <= 0 {
		o.PriceWindow = 300
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = time.Minute
	}
}

// Reconciler раздает события по очередям отдельных mint. Внутри одного mint
// события обрабатываются строго в порядке поступления, разные mint - параллельно.
type Reconciler struct {
	store   Store
	emitter events.Emitter
	gate    Gate
	opts    Options
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.Mutex
	workers map[string]*worker
	wg      sync.WaitGroup
}

// NewReconciler создает сверщика. gate может быть nil.
func NewReconciler(store Store, emitter events.Emitter, gate Gate, opts Options, logger *zap.Logger) *Reconciler {
	opts.applyDefaults()
	return &Reconciler{
		store:   store,
		emitter: emitter,
		gate:    gate,
		opts:    opts,
		logger:  logger.Named("reconciler"),
		now:     time.Now,
		workers: make(map[string]*worker),
	}
}

// HandleNotification - обработчик подписки на логи. Разбирает логи и ставит
// сделку в очередь ее mint. Транзакции с ошибкой и не-сделки пропускаются.
func (r *Reconciler) HandleNotification(ctx context.Context, n blockchain.LogNotification) {
	if n.Err != nil {
		return
	}

	event := eventlistener.ParseLogs(n.Signature.String(), n.Logs)
	event.Slot = n.Slot
	if event.IsNoop() {
		r.logger.Debug("Skipping non-trade logs", zap.String("signature", event.Signature))
		return
	}

	delay := r.opts.SettleDelay
	if eventlistener.IsLiquidityAdd(n.Logs) {
		delay += r.opts.LiquiditySettleDelay
	}

	if err := r.Enqueue(ctx, event, delay); err != nil {
		r.logger.Warn("Trade not enqueued",
			zap.String("mint", event.Mint),
			zap.String("signature", event.Signature),
			zap.Error(err))
	}
}

// Enqueue ставит событие в очередь mint; обработка начнется не раньше чем через delay.
// Блокируется, если очередь mint заполнена.
func (r *Reconciler) Enqueue(ctx context.Context, event eventlistener.TradeEvent, delay time.Duration) error {
	if event.IsNoop() {
		return nil
	}
	j := job{event: event, due: r.now().Add(delay)}

	for {
		r.mu.Lock()
		w, ok := r.workers[event.Mint]
		if !ok {
			w = newWorker(event.Mint, r.opts.QueueSize)
			r.workers[event.Mint] = w
			r.wg.Add(1)
			go r.runWorker(ctx, w)
		}
		select {
		case w.jobs <- j:
			r.mu.Unlock()
			return nil
		default:
		}
		r.mu.Unlock()

		select {
		case w.jobs <- j:
			return nil
		case <-w.done:
			// воркер завершился, создаем новый
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Wait ждет завершения всех воркеров после отмены контекста.
func (r *Reconciler) Wait() {
	r.wg.Wait()
}

// Reconcile применяет одно событие: обновление резервов, дедупликация по подписи
// и запись в историю, рассылка окна цен и проверка порога миграции.
func (r *Reconciler) Reconcile(ctx context.Context, event eventlistener.TradeEvent) error {
	if event.IsNoop() {
		return nil
	}
	logger := r.logger.With(
		zap.String("mint", event.Mint),
		zap.String("signature", event.Signature))

	token, err := r.store.FindTokenByMint(ctx, event.Mint)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			logger.Debug("Trade for unknown token skipped")
			return nil
		}
		return fmt.Errorf("find token: %w", err)
	}

	record := &models.TradeRecord{
		Mint:      event.Mint,
		Holder:    event.Owner,
		Kind:      event.Kind,
		Amount:    event.Amount,
		Signature: event.Signature,
		Price:     event.Price(),
		CreatedAt: r.now(),
	}
	// Резервы пишутся до записи в историю: после сбоя повтор того же лога
	// не должен считаться дубликатом с неприменёнными резервами.
	if err := r.store.UpsertReserves(ctx, event.Mint, event.BaseReserve, event.QuoteReserve); err != nil {
		return fmt.Errorf("update reserves: %w", err)
	}
	added, err := r.store.AppendLedgerEntry(ctx, record)
	if err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	if !added {
		// повторный лог старой сделки не должен откатить резервы
		if err := r.store.UpsertReserves(ctx, event.Mint, token.BaseReserve, token.QuoteReserve); err != nil {
			return fmt.Errorf("restore reserves: %w", err)
		}
		logger.Debug("Trade already reconciled")
		return nil
	}

	token.BaseReserve = event.BaseReserve
	token.QuoteReserve = event.QuoteReserve

	logger.Info("Trade reconciled",
		zap.Stringer("kind", event.Kind),
		zap.Uint64("amount", event.Amount),
		zap.Uint64("base_reserve", event.BaseReserve),
		zap.Uint64("quote_reserve", event.QuoteReserve))

	r.emit(events.TradeReconciledEvent{
		BaseEvent:    events.NewBase(events.TradeReconciled),
		Mint:         event.Mint,
		Signature:    event.Signature,
		Holder:       event.Owner,
		Kind:         event.Kind,
		Amount:       event.Amount,
		BaseReserve:  event.BaseReserve,
		QuoteReserve: event.QuoteReserve,
		Price:        record.Price,
	})

	prices, err := r.store.RecentPrices(ctx, event.Mint, r.opts.PriceWindow)
	if err != nil {
		logger.Warn("Price window unavailable", zap.Error(err))
	} else {
		r.emit(events.PricesUpdatedEvent{
			BaseEvent: events.NewBase(events.PricesUpdated),
			Mint:      event.Mint,
			Prices:    prices,
		})
	}

	if r.gate != nil {
		r.gate.Evaluate(ctx, token)
	}
	return nil
}

func (r *Reconciler) emit(e events.Event) {
	if r.emitter != nil {
		r.emitter.Emit(e)
	}
}

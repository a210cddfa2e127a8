package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/fairlaunch/internal/blockchain"
	"github.com/rovshanmuradov/fairlaunch/internal/eventlistener"
	"github.com/rovshanmuradov/fairlaunch/internal/events"
	"github.com/rovshanmuradov/fairlaunch/internal/migration"
	"github.com/rovshanmuradov/fairlaunch/internal/storage/memory"
	"github.com/rovshanmuradov/fairlaunch/internal/storage/models"
)

const testMint = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"

type recordingEmitter struct {
	mu     sync.Mutex
	events []events.Event
}

func (e *recordingEmitter) Emit(ev events.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
}

func (e *recordingEmitter) types() []events.EventType {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]events.EventType, 0, len(e.events))
	for _, ev := range e.events {
		out = append(out, ev.Type())
	}
	return out
}

type recordingGate struct {
	mu     sync.Mutex
	tokens []models.Token
}

func (g *recordingGate) Evaluate(_ context.Context, token *models.Token) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tokens = append(g.tokens, *token)
}

func (g *recordingGate) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.tokens)
}

func newTestReconciler(t *testing.T, opts Options) (*Reconciler, *memory.Store, *recordingEmitter, *recordingGate) {
	t.Helper()
	store := memory.NewStore()
	require.NoError(t, store.CreateToken(context.Background(), &models.Token{
		Mint:         testMint,
		Creator:      "creator",
		BaseReserve:  1_000_000_000_000_000,
		QuoteReserve: 30_000_000_000,
	}))
	emitter := &recordingEmitter{}
	gate := &recordingGate{}
	return NewReconciler(store, emitter, gate, opts, zap.NewNop()), store, emitter, gate
}

func trade(sig string, kind models.TradeKind, base, quote uint64) eventlistener.TradeEvent {
	return eventlistener.TradeEvent{
		Signature:    sig,
		Mint:         testMint,
		Owner:        "holder",
		Kind:         kind,
		Amount:       1_000_000_000,
		BaseReserve:  base,
		QuoteReserve: quote,
	}
}

func swapLogs(kind int, base, quote uint64) []string {
	return []string{
		"Program 6fDcuCmcBiJepAQkboGpVC4icLbeSMX88UMTwNDLGM5z invoke [1]",
		"Program log: Instruction: Swap",
		"Program log: Mint: " + testMint,
		fmt.Sprintf("Program log: Swap: holder %d 1000000000", kind),
		fmt.Sprintf("Program log: Reserves: %d %d", base, quote),
	}
}

func TestReconcile_Idempotent(t *testing.T) {
	r, store, emitter, gate := newTestReconciler(t, Options{})
	ctx := context.Background()

	event := trade("sig-1", models.TradeKindBuy, 967_741_935_483_871, 31_000_000_000)
	require.NoError(t, r.Reconcile(ctx, event))
	require.NoError(t, r.Reconcile(ctx, event))

	ledger, err := store.FindLedgerByMint(ctx, testMint)
	require.NoError(t, err)
	require.Len(t, ledger, 1)
	assert.Equal(t, "sig-1", ledger[0].Signature)
	assert.InDelta(t, 31e9/967_741_935_483_871.0, ledger[0].Price, 1e-15)

	token, err := store.FindTokenByMint(ctx, testMint)
	require.NoError(t, err)
	assert.Equal(t, uint64(967_741_935_483_871), token.BaseReserve)
	assert.Equal(t, uint64(31_000_000_000), token.QuoteReserve)

	assert.Equal(t, []events.EventType{events.TradeReconciled, events.PricesUpdated}, emitter.types())
	require.Equal(t, 1, gate.calls())
	assert.Equal(t, uint64(31_000_000_000), gate.tokens[0].QuoteReserve)
	assert.Equal(t, "creator", gate.tokens[0].Creator)
}

func TestReconcile_NoopLeavesStateUntouched(t *testing.T) {
	r, store, emitter, gate := newTestReconciler(t, Options{})
	ctx := context.Background()

	require.NoError(t, r.Reconcile(ctx, trade("sig-1", models.TradeKindNone, 1, 1)))

	ledger, err := store.FindLedgerByMint(ctx, testMint)
	require.NoError(t, err)
	assert.Empty(t, ledger)

	token, err := store.FindTokenByMint(ctx, testMint)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000_000_000_000), token.BaseReserve)
	assert.Empty(t, emitter.types())
	assert.Zero(t, gate.calls())
}

func TestReconcile_UnknownMintSkipped(t *testing.T) {
	r, _, emitter, gate := newTestReconciler(t, Options{})

	event := trade("sig-1", models.TradeKindSell, 1, 1)
	event.Mint = "unknown"
	require.NoError(t, r.Reconcile(context.Background(), event))

	assert.Empty(t, emitter.types())
	assert.Zero(t, gate.calls())
}

func TestReconcile_PriceWindow(t *testing.T) {
	r, _, emitter, _ := newTestReconciler(t, Options{PriceWindow: 2})
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		require.NoError(t, r.Reconcile(ctx, trade(fmt.Sprintf("sig-%d", i), models.TradeKindBuy, 100, uint64(i*100))))
	}

	emitter.mu.Lock()
	last := emitter.events[len(emitter.events)-1]
	emitter.mu.Unlock()

	prices, ok := last.(events.PricesUpdatedEvent)
	require.True(t, ok)
	require.Len(t, prices.Prices, 2)
	assert.Equal(t, "sig-2", prices.Prices[0].Signature)
	assert.Equal(t, "sig-3", prices.Prices[1].Signature)
	assert.InDelta(t, 3.0, prices.Prices[1].Price, 1e-9)
}

func TestHandleNotification_PreservesArrivalOrder(t *testing.T) {
	r, store, _, gate := newTestReconciler(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())

	// Ошибочная транзакция игнорируется.
	r.HandleNotification(ctx, blockchain.LogNotification{
		Signature: solana.Signature{9},
		Logs:      swapLogs(2, 1, 1),
		Err:       map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}},
	})

	for i := 1; i <= 5; i++ {
		r.HandleNotification(ctx, blockchain.LogNotification{
			Signature: solana.Signature{byte(i)},
			Slot:      uint64(i),
			Logs:      swapLogs(2, 1_000_000, uint64(i)*1_000),
		})
	}

	require.Eventually(t, func() bool { return gate.calls() == 5 }, 3*time.Second, 10*time.Millisecond)
	cancel()
	r.Wait()

	ledger, err := store.FindLedgerByMint(context.Background(), testMint)
	require.NoError(t, err)
	require.Len(t, ledger, 5)
	for i, rec := range ledger {
		assert.Equal(t, solana.Signature{byte(i + 1)}.String(), rec.Signature)
	}

	token, err := store.FindTokenByMint(context.Background(), testMint)
	require.NoError(t, err)
	assert.Equal(t, uint64(5_000), token.QuoteReserve)
}

func TestHandleNotification_SkipsNoSwap(t *testing.T) {
	r, store, _, _ := newTestReconciler(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r.HandleNotification(ctx, blockchain.LogNotification{
		Signature: solana.Signature{1},
		Logs:      swapLogs(0, 5, 5),
	})

	r.mu.Lock()
	workers := len(r.workers)
	r.mu.Unlock()
	assert.Zero(t, workers)

	ledger, err := store.FindLedgerByMint(ctx, testMint)
	require.NoError(t, err)
	assert.Empty(t, ledger)
}

func TestEnqueue_WaitsForSettleDelay(t *testing.T) {
	r, store, _, gate := newTestReconciler(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		r.Wait()
	}()

	start := time.Now()
	require.NoError(t, r.Enqueue(ctx, trade("sig-1", models.TradeKindBuy, 10, 10), 150*time.Millisecond))

	require.Eventually(t, func() bool { return gate.calls() == 1 }, 3*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)

	ledger, err := store.FindLedgerByMint(ctx, testMint)
	require.NoError(t, err)
	assert.Len(t, ledger, 1)
}

func TestWorker_ExitsWhenIdle(t *testing.T) {
	r, _, _, gate := newTestReconciler(t, Options{IdleTimeout: 20 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, r.Enqueue(ctx, trade("sig-1", models.TradeKindBuy, 10, 10), 0))
	require.Eventually(t, func() bool { return gate.calls() == 1 }, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return len(r.workers) == 0
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, r.Enqueue(ctx, trade("sig-2", models.TradeKindSell, 10, 9), 0))
	require.Eventually(t, func() bool { return gate.calls() == 2 }, time.Second, 5*time.Millisecond)
}

// flakyStore отказывает на первом обновлении резервов.
type flakyStore struct {
	*memory.Store
	failed bool
}

func (s *flakyStore) UpsertReserves(ctx context.Context, mint string, base, quote uint64) error {
	if !s.failed {
		s.failed = true
		return errors.New("transient db error")
	}
	return s.Store.UpsertReserves(ctx, mint, base, quote)
}

func TestReconcile_RetryAfterReserveFailure(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewStore()
	require.NoError(t, mem.CreateToken(ctx, &models.Token{
		Mint:         testMint,
		Creator:      "creator",
		BaseReserve:  1_000_000_000_000_000,
		QuoteReserve: 30_000_000_000,
	}))
	gate := &recordingGate{}
	r := NewReconciler(&flakyStore{Store: mem}, &recordingEmitter{}, gate, Options{}, zap.NewNop())

	event := trade("sig-1", models.TradeKindBuy, 967_741_935_483_871, 31_000_000_000)
	require.Error(t, r.Reconcile(ctx, event))
	require.NoError(t, r.Reconcile(ctx, event))

	ledger, err := mem.FindLedgerByMint(ctx, testMint)
	require.NoError(t, err)
	assert.Len(t, ledger, 1)

	token, err := mem.FindTokenByMint(ctx, testMint)
	require.NoError(t, err)
	assert.Equal(t, uint64(31_000_000_000), token.QuoteReserve)
	assert.Equal(t, 1, gate.calls())
}

func TestReconcile_ReplayedTradeKeepsNewerReserves(t *testing.T) {
	r, store, _, gate := newTestReconciler(t, Options{})
	ctx := context.Background()

	require.NoError(t, r.Reconcile(ctx, trade("sig-1", models.TradeKindBuy, 900, 31_000)))
	require.NoError(t, r.Reconcile(ctx, trade("sig-2", models.TradeKindBuy, 800, 32_000)))
	require.NoError(t, r.Reconcile(ctx, trade("sig-1", models.TradeKindBuy, 900, 31_000)))

	token, err := store.FindTokenByMint(ctx, testMint)
	require.NoError(t, err)
	assert.Equal(t, uint64(800), token.BaseReserve)
	assert.Equal(t, uint64(32_000), token.QuoteReserve)
	assert.Equal(t, 2, gate.calls())
}

type staticPrice float64

func (p staticPrice) Price(context.Context) (float64, error) { return float64(p), nil }

// stuckMigrator не возвращается до отмены контекста.
type stuckMigrator struct {
	started chan struct{}
}

func (m *stuckMigrator) Migrate(ctx context.Context, _ migration.Request) (*models.MigrationState, error) {
	select {
	case m.started <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestEnqueue_HungMigrationDoesNotStallOtherMints(t *testing.T) {
	store := memory.NewStore()
	require.NoError(t, store.CreateToken(context.Background(), &models.Token{
		Mint:         testMint,
		Creator:      "creator",
		BaseReserve:  1_000_000_000_000_000,
		QuoteReserve: 30_000_000_000,
	}))
	migrator := &stuckMigrator{started: make(chan struct{}, 1)}
	gate := migration.NewGate(staticPrice(1_000), store, migrator, migration.GateOptions{}, zap.NewNop())
	r := NewReconciler(store, &recordingEmitter{}, gate, Options{QueueSize: 2}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		r.Wait()
		gate.Wait()
	}()

	// капитализация 30 * 1000 выше порога по умолчанию
	require.NoError(t, r.Enqueue(ctx, trade("sig-a0", models.TradeKindBuy, 1_000_000_000_000_000, 30_000_000_000), 0))
	select {
	case <-migrator.started:
	case <-time.After(2 * time.Second):
		t.Fatal("migration was not started")
	}

	enqueued := make(chan error, 1)
	go func() {
		for i := 1; i <= 6; i++ {
			if err := r.Enqueue(ctx, trade(fmt.Sprintf("sig-a%d", i), models.TradeKindBuy, 1_000_000_000_000_000, 30_000_000_000), 0); err != nil {
				enqueued <- err
				return
			}
		}
		other := trade("sig-b", models.TradeKindBuy, 10, 10)
		other.Mint = "otherMint"
		enqueued <- r.Enqueue(ctx, other, 0)
	}()

	select {
	case err := <-enqueued:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("trade for another mint was not enqueued while a migration hangs")
	}
}

// internal/migration/pipeline.go
package migration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/fairlaunch/internal/blockchain"
	"github.com/rovshanmuradov/fairlaunch/internal/blockchain/solana/programs"
	"github.com/rovshanmuradov/fairlaunch/internal/blockchain/solana/transaction"
	"github.com/rovshanmuradov/fairlaunch/internal/dex/curve"
	"github.com/rovshanmuradov/fairlaunch/internal/dex/raydium"
	"github.com/rovshanmuradov/fairlaunch/internal/events"
	"github.com/rovshanmuradov/fairlaunch/internal/storage"
	"github.com/rovshanmuradov/fairlaunch/internal/storage/models"
	"github.com/rovshanmuradov/fairlaunch/internal/wallet"
)

// WrappedSolFunding - лампорты сверх rent на временном WSOL-аккаунте.
const WrappedSolFunding uint64 = 10_000_000

var (
	// ErrSimulationNoLogs - симуляция не вернула логов.
	ErrSimulationNoLogs = errors.New("simulation returned no logs")

	// ErrSimulationFailed - симуляция завершилась ошибкой программы.
	ErrSimulationFailed = errors.New("simulation failed")

	// ErrInProgress - миграция этого токена уже выполняется.
	ErrInProgress = errors.New("migration already in progress")

	// ErrInvalidRequest - некорректный mint или creator.
	ErrInvalidRequest = errors.New("invalid migration request")
)

// PipelineOptions - параметры транзакций миграции.
type PipelineOptions struct {
	ComputeUnitLimit uint32
	ComputeUnitPrice uint64
	SendMaxRetries   uint
	// SubmitTimeout ограничивает повторы отправки одной транзакции рынка.
	SubmitTimeout time.Duration
}

// Pipeline переносит ликвидность токена с кривой в пул Raydium:
// создание рынка OpenBook, затем одна транзакция remove_liquidity.
// Каждый шаг сохраняется, поэтому прерванная миграция продолжается с последнего шага.
type Pipeline struct {
	client  blockchain.Client
	wallet  *wallet.Wallet
	program *curve.Program
	market  *raydium.MarketBuilder
	store   storage.MigrationStore
	emitter events.Emitter
	opts    PipelineOptions
	logger  *zap.Logger
	now     func() time.Time

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewPipeline создает пайплайн миграции.
func NewPipeline(
	client blockchain.Client,
	w *wallet.Wallet,
	program *curve.Program,
	store storage.MigrationStore,
	emitter events.Emitter,
	opts PipelineOptions,
	logger *zap.Logger,
) *Pipeline {
	if opts.ComputeUnitLimit == 0 {
		opts.ComputeUnitLimit = 400_000
	}
	if opts.ComputeUnitPrice == 0 {
		opts.ComputeUnitPrice = 100_000
	}
	if opts.SubmitTimeout <= 0 {
		opts.SubmitTimeout = 15 * time.Second
	}
	return &Pipeline{
		client:   client,
		wallet:   w,
		program:  program,
		market:   raydium.NewMarketBuilder(client),
		store:    store,
		emitter:  emitter,
		opts:     opts,
		logger:   logger.Named("migration"),
		now:      time.Now,
		inflight: make(map[string]struct{}),
	}
}

var _ Migrator = (*Pipeline)(nil)

// Migrate запускает или продолжает миграцию токена. Для уже мигрированного
// токена ничего не делает и возвращает сохраненное состояние.
func (p *Pipeline) Migrate(ctx context.Context, req Request) (*models.MigrationState, error) {
	if req.Mint == "" || req.Creator == "" {
		return nil, ErrInvalidRequest
	}
	if !p.acquire(req.Mint) {
		return nil, ErrInProgress
	}
	defer p.release(req.Mint)

	state, err := p.store.GetMigration(ctx, req.Mint)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		state = &models.MigrationState{
			Mint:    req.Mint,
			Creator: req.Creator,
			Step:    models.MigrationPending,
		}
	case err != nil:
		return nil, fmt.Errorf("load migration state: %w", err)
	case state.Migrated || state.Step == models.MigrationCompleted:
		p.logger.Info("Token already migrated, nothing to do", zap.String("mint", req.Mint))
		return state, nil
	case state.Step == models.MigrationFailed:
		state.Step = models.MigrationPending
		if state.MarketID != "" {
			state.Step = models.MigrationMarketCreated
		}
	}
	state.TargetAmount = req.TargetAmount

	return p.run(ctx, state)
}

// Resume продолжает все незавершенные миграции (pending, market_created).
func (p *Pipeline) Resume(ctx context.Context) error {
	states, err := p.store.ListResumableMigrations(ctx)
	if err != nil {
		return fmt.Errorf("list resumable migrations: %w", err)
	}
	if len(states) == 0 {
		return nil
	}
	p.logger.Info("Resuming interrupted migrations", zap.Int("count", len(states)))

	for _, state := range states {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !p.acquire(state.Mint) {
			continue
		}
		_, err := p.run(ctx, state)
		p.release(state.Mint)
		if err != nil {
			p.logger.Error("Resumed migration failed", zap.String("mint", state.Mint), zap.Error(err))
		}
	}
	return nil
}

func (p *Pipeline) run(ctx context.Context, state *models.MigrationState) (*models.MigrationState, error) {
	logger := p.logger.With(zap.String("mint", state.Mint))
	state.Attempts++
	state.LastError = ""
	if err := p.store.SaveMigration(ctx, state); err != nil {
		return nil, fmt.Errorf("save migration state: %w", err)
	}

	for state.Step.Resumable() {
		var err error
		switch state.Step {
		case models.MigrationPending:
			logger.Info("Creating OpenBook market")
			var marketID solana.PublicKey
			if marketID, err = p.createMarket(ctx, state); err == nil {
				state.MarketID = marketID.String()
				state.Step = models.MigrationMarketCreated
			}
		case models.MigrationMarketCreated:
			logger.Info("Moving liquidity to Raydium", zap.String("market", state.MarketID))
			var sig solana.Signature
			if sig, err = p.seedPool(ctx, state); err == nil {
				state.Signature = sig.String()
				state.Step = models.MigrationCompleted
				state.Migrated = true
			}
		}

		if err != nil {
			return nil, p.fail(ctx, state, err)
		}
		if err := p.store.SaveMigration(ctx, state); err != nil {
			return nil, fmt.Errorf("save migration state: %w", err)
		}
	}

	logger.Info("Migration completed",
		zap.String("market", state.MarketID),
		zap.String("signature", state.Signature))
	p.emit(events.MigrationCompletedEvent{
		BaseEvent: events.NewBase(events.MigrationCompleted),
		Mint:      state.Mint,
		MarketID:  state.MarketID,
		Signature: state.Signature,
	})
	return state, nil
}

// fail сохраняет ошибку шага. Выполненные шаги не откатываются.
func (p *Pipeline) fail(ctx context.Context, state *models.MigrationState, cause error) error {
	failedStep := state.Step
	state.Step = models.MigrationFailed
	state.LastError = cause.Error()
	if err := p.store.SaveMigration(ctx, state); err != nil {
		p.logger.Error("Failed to persist migration failure",
			zap.String("mint", state.Mint), zap.Error(err))
	}
	p.emit(events.MigrationFailedEvent{
		BaseEvent: events.NewBase(events.MigrationFailed),
		Mint:      state.Mint,
		Step:      failedStep,
		Error:     cause.Error(),
	})
	return fmt.Errorf("migration step %s: %w", failedStep, cause)
}

// createMarket создает рынок OpenBook (mint, WSOL). Транзакции отправляются
// по очереди; повторяется только отправка, ошибка подтверждения фатальна.
func (p *Pipeline) createMarket(ctx context.Context, state *models.MigrationState) (solana.PublicKey, error) {
	mint, err := solana.PublicKeyFromBase58(state.Mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: mint: %v", ErrInvalidRequest, err)
	}

	plan, err := p.market.Build(ctx, p.wallet.PublicKey, raydium.MarketParams{
		BaseMint:      mint,
		BaseDecimals:  curve.TokenDecimals,
		QuoteMint:     solana.WrappedSol,
		QuoteDecimals: 9,
		LotSize:       raydium.DefaultLotSize,
		TickSize:      raydium.DefaultTickSize,
	})
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("build market: %w", err)
	}

	for i, ixs := range plan.Transactions {
		sig, lastValid, err := p.submit(ctx, transaction.NewBuilder().Add(ixs...))
		if err != nil {
			if i > 0 {
				p.logOrphanedVaults(state.Mint, plan.Keys)
			}
			return solana.PublicKey{}, fmt.Errorf("market tx %d: %w", i+1, err)
		}
		if err := p.client.ConfirmTransaction(ctx, sig, lastValid); err != nil {
			if i > 0 {
				p.logOrphanedVaults(state.Mint, plan.Keys)
			}
			return solana.PublicKey{}, fmt.Errorf("market tx %d confirmation: %w", i+1, err)
		}
		p.logger.Debug("Market transaction confirmed",
			zap.String("mint", state.Mint),
			zap.Int("index", i+1),
			zap.String("signature", sig.String()))
	}
	return plan.Keys.Market, nil
}

// Хранилища из первой транзакции не переиспользуются: повтор выводит новые
// seed-адреса, и rent старых остается на них.
func (p *Pipeline) logOrphanedVaults(mint string, keys raydium.MarketKeys) {
	p.logger.Warn("Market vaults left orphaned",
		zap.String("mint", mint),
		zap.String("base_vault", keys.BaseVault.String()),
		zap.String("quote_vault", keys.QuoteVault.String()))
}

// submit строит и отправляет транзакцию с повтором только на этапе отправки.
func (p *Pipeline) submit(ctx context.Context, b *transaction.Builder) (solana.Signature, uint64, error) {
	type sent struct {
		sig       solana.Signature
		lastValid uint64
	}

	op := func() (sent, error) {
		bh, err := p.client.GetLatestBlockhash(ctx)
		if err != nil {
			return sent{}, err
		}
		tx, err := b.Build(bh.Hash, p.wallet)
		if err != nil {
			return sent{}, backoff.Permanent(err)
		}
		sig, err := p.client.SendTransactionWithOpts(ctx, tx, blockchain.TransactionOptions{
			SkipPreflight:       true,
			PreflightCommitment: rpc.CommitmentConfirmed,
			MaxRetries:          p.opts.SendMaxRetries,
		})
		if err != nil {
			return sent{}, err
		}
		return sent{sig: sig, lastValid: bh.LastValidBlockHeight}, nil
	}

	notify := func(err error, d time.Duration) {
		p.logger.Warn("Retrying transaction submit", zap.Error(err), zap.Duration("backoff", d))
	}

	res, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(p.opts.SubmitTimeout),
		backoff.WithNotify(notify))
	if err != nil {
		return solana.Signature{}, 0, err
	}
	return res.sig, res.lastValid, nil
}

// seedPool собирает и отправляет транзакцию переноса ликвидности:
// compute budget, WSOL-аккаунт, remove_liquidity и перевод остатка токенов создателю.
func (p *Pipeline) seedPool(ctx context.Context, state *models.MigrationState) (solana.Signature, error) {
	mint, err := solana.PublicKeyFromBase58(state.Mint)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("%w: mint: %v", ErrInvalidRequest, err)
	}
	creator, err := solana.PublicKeyFromBase58(state.Creator)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("%w: creator: %v", ErrInvalidRequest, err)
	}
	marketID, err := solana.PublicKeyFromBase58(state.MarketID)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("invalid market id: %w", err)
	}

	poolKeys, err := raydium.DerivePoolKeys(marketID)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("derive pool keys: %w", err)
	}
	global, err := p.program.Global()
	if err != nil {
		return solana.Signature{}, err
	}

	builder := transaction.NewBuilder().
		WithComputeBudget(p.opts.ComputeUnitLimit, p.opts.ComputeUnitPrice)

	// Временный WSOL-аккаунт с владельцем global.
	wsol, err := solana.NewRandomPrivateKey()
	if err != nil {
		return solana.Signature{}, fmt.Errorf("generate wsol account: %w", err)
	}
	rent, err := p.client.GetMinimumBalanceForRentExemption(ctx, programs.TokenAccountSize)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("wsol rent: %w", err)
	}
	builder.Add(
		system.NewCreateAccountInstruction(
			rent+WrappedSolFunding, programs.TokenAccountSize, solana.TokenProgramID,
			p.wallet.PublicKey, wsol.PublicKey(),
		).Build(),
		programs.NewInitializeAccountInstruction(wsol.PublicKey(), solana.WrappedSol, global),
	).AddSigner(wsol)

	removeIx, err := p.program.BuildRemoveLiquidityInstruction(curve.RemoveLiquidityParams{
		Mint:         mint,
		Admin:        p.wallet.PublicKey,
		WrappedSol:   wsol.PublicKey(),
		Pool:         poolKeys,
		InitPcAmount: state.TargetAmount,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("build remove_liquidity: %w", err)
	}
	builder.Add(removeIx)

	transferIxs, err := p.residualTransfer(ctx, mint, creator)
	if err != nil {
		return solana.Signature{}, err
	}
	builder.Add(transferIxs...)

	bh, err := p.client.GetLatestBlockhash(ctx)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("get blockhash: %w", err)
	}
	tx, err := builder.Build(bh.Hash, p.wallet)
	if err != nil {
		return solana.Signature{}, err
	}

	sim, err := p.client.SimulateTransaction(ctx, tx)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("simulate: %w", err)
	}
	if len(sim.Logs) == 0 {
		return solana.Signature{}, ErrSimulationNoLogs
	}
	for _, line := range sim.Logs {
		p.logger.Debug("Simulation log", zap.String("mint", state.Mint), zap.String("line", line))
	}
	if sim.Err != nil {
		if ae, ok := blockchain.FindAnchorError(sim.Logs); ok {
			return solana.Signature{}, fmt.Errorf("%w: %w", ErrSimulationFailed, ae)
		}
		return solana.Signature{}, fmt.Errorf("%w: %v", ErrSimulationFailed, sim.Err)
	}

	sig, err := p.client.SendTransactionWithOpts(ctx, tx, blockchain.TransactionOptions{
		SkipPreflight:       true,
		PreflightCommitment: rpc.CommitmentConfirmed,
		MaxRetries:          p.opts.SendMaxRetries,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("send: %w", err)
	}
	if err := p.client.ConfirmTransaction(ctx, sig, bh.LastValidBlockHeight); err != nil {
		return sig, fmt.Errorf("confirm %s: %w", sig, err)
	}
	return sig, nil
}

// residualTransfer переводит весь остаток токена с ATA админа на ATA создателя.
func (p *Pipeline) residualTransfer(ctx context.Context, mint, creator solana.PublicKey) ([]solana.Instruction, error) {
	source, err := p.wallet.GetATA(mint)
	if err != nil {
		return nil, fmt.Errorf("derive admin ATA: %w", err)
	}
	balance, err := p.client.GetTokenAccountBalance(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("admin token balance: %w", err)
	}
	if balance == 0 {
		return nil, nil
	}

	destination, createIx, err := p.wallet.CreateATAIdempotentInstruction(creator, mint)
	if err != nil {
		return nil, err
	}
	transferIx := token.NewTransferInstruction(balance, source, destination, p.wallet.PublicKey, nil).Build()
	return []solana.Instruction{createIx, transferIx}, nil
}

func (p *Pipeline) acquire(mint string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.inflight[mint]; busy {
		return false
	}
	p.inflight[mint] = struct{}{}
	return true
}

func (p *Pipeline) release(mint string) {
	p.mu.Lock()
	delete(p.inflight, mint)
	p.mu.Unlock()
}

func (p *Pipeline) emit(e events.Event) {
	if p.emitter != nil {
		p.emitter.Emit(e)
	}
}

// ==============================================
// File: internal/launch/launcher.go
// ==============================================
// Package launch создает токен платформы: метаданные в IPFS, mint с метаданными,
// начальная ликвидность кривой и отзыв полномочий одним Jito-пакетом.
package launch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/fairlaunch/internal/blockchain"
	"github.com/rovshanmuradov/fairlaunch/internal/blockchain/solana/programs"
	"github.com/rovshanmuradov/fairlaunch/internal/blockchain/solana/transaction"
	"github.com/rovshanmuradov/fairlaunch/internal/bundle"
	"github.com/rovshanmuradov/fairlaunch/internal/dex/curve"
	"github.com/rovshanmuradov/fairlaunch/internal/events"
	"github.com/rovshanmuradov/fairlaunch/internal/storage"
	"github.com/rovshanmuradov/fairlaunch/internal/storage/models"
	"github.com/rovshanmuradov/fairlaunch/internal/wallet"
)

var (
	// ErrLaunchFailed - токен не создан; причина в обернутой ошибке.
	ErrLaunchFailed = errors.New("launch failed")

	// ErrInvalidRequest - запрос на создание токена не прошел проверку.
	ErrInvalidRequest = errors.New("invalid launch request")
)

// Request - параметры нового токена.
type Request struct {
	Creator     string  `json:"creator"`
	Name        string  `json:"name"`
	Symbol      string  `json:"ticker"`
	Description string  `json:"description"`
	Image       string  `json:"url"`
	Threshold   float64 `json:"marketcap"`
	// Presale - покупка админа сразу после создания пула, в SOL.
	Presale float64 `json:"presale"`
}

// Validate проверяет обязательные поля.
func (r Request) Validate() error {
	switch {
	case strings.TrimSpace(r.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidRequest)
	case strings.TrimSpace(r.Symbol) == "":
		return fmt.Errorf("%w: ticker is required", ErrInvalidRequest)
	case strings.TrimSpace(r.Image) == "":
		return fmt.Errorf("%w: url is required", ErrInvalidRequest)
	case len(r.Name) > programs.MaxNameLength:
		return fmt.Errorf("%w: name longer than %d bytes", ErrInvalidRequest, programs.MaxNameLength)
	case len(r.Symbol) > programs.MaxSymbolLength:
		return fmt.Errorf("%w: ticker longer than %d bytes", ErrInvalidRequest, programs.MaxSymbolLength)
	case r.Threshold < 0 || r.Presale < 0:
		return fmt.Errorf("%w: negative amount", ErrInvalidRequest)
	}
	if _, err := solana.PublicKeyFromBase58(r.Creator); err != nil {
		return fmt.Errorf("%w: creator: %v", ErrInvalidRequest, err)
	}
	return nil
}

// Store - то, что запуск пишет в хранилище.
type Store interface {
	storage.TokenStore
	storage.LedgerStore
}

// Bundler отправляет пакет транзакций и возвращает подпись чаевых.
type Bundler interface {
	Submit(ctx context.Context, build bundle.TxFactory) (solana.Signature, error)
}

// Options - параметры запуска.
type Options struct {
	// CreatorPercent - доля supply, которую add_liquidity оставляет создателю пула.
	CreatorPercent uint64
}

// Service запускает токены.
type Service struct {
	client  blockchain.Client
	wallet  *wallet.Wallet
	program *curve.Program
	pinner  MetadataPinner
	bundler Bundler
	store   Store
	emitter events.Emitter
	opts    Options
	logger  *zap.Logger

	newMint func() (solana.PrivateKey, error)
}

// NewService создает сервис запуска.
func NewService(
	client blockchain.Client,
	w *wallet.Wallet,
	program *curve.Program,
	pinner MetadataPinner,
	bundler Bundler,
	store Store,
	emitter events.Emitter,
	opts Options,
	logger *zap.Logger,
) *Service {
	return &Service{
		client:  client,
		wallet:  w,
		program: program,
		pinner:  pinner,
		bundler: bundler,
		store:   store,
		emitter: emitter,
		opts:    opts,
		logger:  logger.Named("launch"),
		newMint: solana.NewRandomPrivateKey,
	}
}

// Launch создает токен целиком. Любая ошибка после проверки запроса публикует
// TokenNotCreated и возвращает ErrLaunchFailed.
func (s *Service) Launch(ctx context.Context, req Request) (*models.Token, error) {
	if err := req.Validate(); err != nil {
		s.emitter.Emit(events.TokenNotCreatedEvent{
			BaseEvent: events.NewBase(events.TokenNotCreated),
			Name:      req.Name,
			Reason:    err.Error(),
		})
		return nil, err
	}

	mintKey, err := s.newMint()
	if err != nil {
		return nil, s.fail(req, solana.PublicKey{}, "generate mint", err)
	}
	mint := mintKey.PublicKey()
	logger := s.logger.With(zap.String("mint", mint.String()), zap.String("name", req.Name))

	uri, err := s.pinner.Pin(ctx, OffChainMetadata{
		Name:        req.Name,
		Symbol:      req.Symbol,
		Image:       req.Image,
		Description: req.Description,
	})
	if err != nil {
		return nil, s.fail(req, mint, "pin metadata", err)
	}

	mintIxs, err := s.mintInstructions(ctx, mint, req, uri)
	if err != nil {
		s.logPinLeak(logger, uri)
		return nil, s.fail(req, mint, "build mint transaction", err)
	}
	seedIxs, err := s.seedInstructions(mint, req.Presale)
	if err != nil {
		s.logPinLeak(logger, uri)
		return nil, s.fail(req, mint, "build liquidity transaction", err)
	}

	tipSig, err := s.bundler.Submit(ctx, func(blockhash solana.Hash) ([]*solana.Transaction, error) {
		mintTx, err := transaction.NewBuilder().Add(mintIxs...).AddSigner(mintKey).Build(blockhash, s.wallet)
		if err != nil {
			return nil, fmt.Errorf("mint transaction: %w", err)
		}
		seedTx, err := transaction.NewBuilder().Add(seedIxs...).Build(blockhash, s.wallet)
		if err != nil {
			return nil, fmt.Errorf("liquidity transaction: %w", err)
		}
		return []*solana.Transaction{mintTx, seedTx}, nil
	})
	if err != nil {
		s.logPinLeak(logger, uri)
		return nil, s.fail(req, mint, "submit bundle", err)
	}

	// Пакет уже в сети: сохранение не должно зависеть от отмены вызывающего.
	ctx = context.WithoutCancel(ctx)

	base, quote := curve.InitialReserves()
	token := &models.Token{
		Mint:         mint.String(),
		Creator:      req.Creator,
		Name:         req.Name,
		Symbol:       req.Symbol,
		Description:  req.Description,
		URI:          uri,
		BaseReserve:  base,
		QuoteReserve: quote,
		Threshold:    req.Threshold,
	}
	if token.Threshold <= 0 {
		token.Threshold = models.DefaultThreshold
	}
	if err := s.store.CreateToken(ctx, token); err != nil {
		logger.Error("Token is live on chain but was not saved", zap.Error(err))
		return nil, s.fail(req, mint, "save token", err)
	}

	if _, err := s.store.AppendLedgerEntry(ctx, &models.TradeRecord{
		Mint:      token.Mint,
		Holder:    req.Creator,
		Kind:      models.TradeKindInitialLiquidity,
		Signature: tipSig.String(),
		Price:     float64(quote) / float64(base),
	}); err != nil {
		// токен уже сохранен, история начнется с первой сделки
		logger.Error("Failed to record initial liquidity", zap.Error(err))
	}

	s.emitter.Emit(events.TokenCreatedEvent{
		BaseEvent: events.NewBase(events.TokenCreated),
		Mint:      token.Mint,
		Name:      token.Name,
		Creator:   token.Creator,
		Signature: tipSig.String(),
	})
	logger.Info("Token launched", zap.String("tip_signature", tipSig.String()), zap.String("uri", uri))
	return token, nil
}

// mintInstructions: mint-аккаунт, InitializeMint2, метаданные, ATA админа и выпуск всего supply.
func (s *Service) mintInstructions(ctx context.Context, mint solana.PublicKey, req Request, uri string) ([]solana.Instruction, error) {
	rent, err := s.client.GetMinimumBalanceForRentExemption(ctx, programs.MintAccountSize)
	if err != nil {
		return nil, fmt.Errorf("get mint rent: %w", err)
	}

	admin := s.wallet.PublicKey
	metaIx, err := programs.NewCreateMetadataAccountV3Instruction(programs.TokenMetadata{
		Name:   req.Name,
		Symbol: req.Symbol,
		URI:    uri,
	}, mint, admin, admin)
	if err != nil {
		return nil, err
	}

	ata, ataIx, err := s.wallet.CreateATAIdempotentInstruction(admin, mint)
	if err != nil {
		return nil, err
	}

	return []solana.Instruction{
		system.NewCreateAccountInstruction(rent, programs.MintAccountSize, solana.TokenProgramID, admin, mint).Build(),
		programs.NewInitializeMint2Instruction(mint, curve.TokenDecimals, admin, &admin),
		metaIx,
		ataIx,
		programs.NewMintToInstruction(mint, ata, admin, curve.TotalSupply),
	}, nil
}

// seedInstructions: add_liquidity, отзыв freeze и mint полномочий, затем presale-покупка.
func (s *Service) seedInstructions(mint solana.PublicKey, presale float64) ([]solana.Instruction, error) {
	admin := s.wallet.PublicKey

	amountOne, amountTwo, err := curve.AddLiquidityAmounts(s.opts.CreatorPercent)
	if err != nil {
		return nil, err
	}
	lpIx, err := s.program.BuildAddLiquidityInstruction(mint, admin, amountOne, amountTwo)
	if err != nil {
		return nil, err
	}

	ixs := []solana.Instruction{
		lpIx,
		programs.NewSetAuthorityInstruction(mint, admin, programs.AuthorityFreezeAccount, nil),
		programs.NewSetAuthorityInstruction(mint, admin, programs.AuthorityMintTokens, nil),
	}

	if lamports := PresaleLamports(presale); lamports > 0 {
		buyIx, err := s.program.BuildSwapInstruction(mint, admin, lamports, curve.StyleBuy)
		if err != nil {
			return nil, err
		}
		ixs = append(ixs, buyIx)
	}
	return ixs, nil
}

// PresaleLamports переводит сумму presale из SOL в лампорты с округлением вниз.
func PresaleLamports(sol float64) uint64 {
	if sol <= 0 {
		return 0
	}
	lamports := decimal.NewFromFloat(sol).Mul(decimal.NewFromInt(int64(curve.LamportsPerSol))).Floor()
	return lamports.BigInt().Uint64()
}

func (s *Service) fail(req Request, mint solana.PublicKey, stage string, err error) error {
	ev := events.TokenNotCreatedEvent{
		BaseEvent: events.NewBase(events.TokenNotCreated),
		Name:      req.Name,
		Reason:    stage,
	}
	if !mint.IsZero() {
		ev.Mint = mint.String()
	}
	s.emitter.Emit(ev)

	s.logger.Warn("Launch failed", zap.String("name", req.Name), zap.String("stage", stage), zap.Error(err))
	return fmt.Errorf("%w: %s: %w", ErrLaunchFailed, stage, err)
}

// Закрепленные метаданные не удаляются при неудачном запуске.
func (s *Service) logPinLeak(logger *zap.Logger, uri string) {
	logger.Warn("Pinned metadata left orphaned", zap.String("uri", uri))
}

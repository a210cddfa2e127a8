// internal/dex/raydium/market.go
package raydium

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/fairlaunch/internal/blockchain/solana/programs"
)

// RentCalculator возвращает минимальный rent-exempt баланс для аккаунта заданного размера.
type RentCalculator interface {
	GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error)
}

// MarketParams описывает создаваемый рынок OpenBook.
type MarketParams struct {
	BaseMint      solana.PublicKey
	BaseDecimals  uint8
	QuoteMint     solana.PublicKey
	QuoteDecimals uint8
	LotSize       float64
	TickSize      float64
}

// MarketKeys содержит адреса созданного рынка.
type MarketKeys struct {
	ProgramID        solana.PublicKey
	Market           solana.PublicKey
	RequestQueue     solana.PublicKey
	EventQueue       solana.PublicKey
	Bids             solana.PublicKey
	Asks             solana.PublicKey
	BaseVault        solana.PublicKey
	QuoteVault       solana.PublicKey
	VaultSigner      solana.PublicKey
	VaultSignerNonce uint64
	BaseLotSize      uint64
	QuoteLotSize     uint64
}

// MarketPlan - две транзакции создания рынка: хранилища и сам рынок с очередями.
type MarketPlan struct {
	Keys         MarketKeys
	Transactions [][]solana.Instruction
}

// seededAccount - аккаунт, создаваемый через CreateAccountWithSeed от плательщика.
type seededAccount struct {
	seed    string
	address solana.PublicKey
}

// MarketBuilder собирает инструкции создания рынка OpenBook.
type MarketBuilder struct {
	programID solana.PublicKey
	rent      RentCalculator
	seedFn    func() string
}

// NewMarketBuilder создает билдер для программы рынка OpenBook.
func NewMarketBuilder(rent RentCalculator) *MarketBuilder {
	return &MarketBuilder{
		programID: OpenBookProgramID,
		rent:      rent,
		seedFn:    randomSeed,
	}
}

// CalculateTotalAccountSize повторяет расчет размера очередей рынка:
// 5 байт заголовка + 7 байт хвоста + данные, выровненные так, что size%8 == 4.
func CalculateTotalAccountSize(length, headerSize, nodeSize uint64) uint64 {
	accountPadding := uint64(12)
	minRequiredSize := accountPadding + headerSize + length*nodeSize

	modulo := minRequiredSize % 8
	if modulo <= 4 {
		return minRequiredSize + (4 - modulo)
	}
	return minRequiredSize + (8 - modulo + 4)
}

// Размеры аккаунтов очередей рынка.
var (
	TotalEventQueueSize   = CalculateTotalAccountSize(EventQueueLength, eventQueueHeader, eventQueueNode)
	TotalRequestQueueSize = CalculateTotalAccountSize(RequestQueueLength, requestQueueHeader, requestQueueNode)
	TotalOrderbookSize    = CalculateTotalAccountSize(OrderbookLength, orderbookHeader, orderbookNode)
)

// Build выводит адреса рынка и собирает две транзакции его создания.
func (b *MarketBuilder) Build(ctx context.Context, payer solana.PublicKey, params MarketParams) (*MarketPlan, error) {
	baseLot, quoteLot, err := LotSizes(params)
	if err != nil {
		return nil, err
	}

	market, err := b.seeded(payer, b.programID)
	if err != nil {
		return nil, err
	}
	requestQueue, err := b.seeded(payer, b.programID)
	if err != nil {
		return nil, err
	}
	eventQueue, err := b.seeded(payer, b.programID)
	if err != nil {
		return nil, err
	}
	bids, err := b.seeded(payer, b.programID)
	if err != nil {
		return nil, err
	}
	asks, err := b.seeded(payer, b.programID)
	if err != nil {
		return nil, err
	}
	baseVault, err := b.seeded(payer, solana.TokenProgramID)
	if err != nil {
		return nil, err
	}
	quoteVault, err := b.seeded(payer, solana.TokenProgramID)
	if err != nil {
		return nil, err
	}

	vaultSigner, nonce, err := FindVaultSigner(market.address, b.programID)
	if err != nil {
		return nil, err
	}

	keys := MarketKeys{
		ProgramID:        b.programID,
		Market:           market.address,
		RequestQueue:     requestQueue.address,
		EventQueue:       eventQueue.address,
		Bids:             bids.address,
		Asks:             asks.address,
		BaseVault:        baseVault.address,
		QuoteVault:       quoteVault.address,
		VaultSigner:      vaultSigner,
		VaultSignerNonce: nonce,
		BaseLotSize:      baseLot,
		QuoteLotSize:     quoteLot,
	}

	// Транзакция 1: хранилища base/quote, владелец - vault signer рынка.
	tokenRent, err := b.rent.GetMinimumBalanceForRentExemption(ctx, programs.TokenAccountSize)
	if err != nil {
		return nil, fmt.Errorf("failed to get vault rent: %w", err)
	}
	vaultTx := []solana.Instruction{
		programs.NewCreateAccountWithSeedInstruction(payer, baseVault.address, baseVault.seed, tokenRent, programs.TokenAccountSize, solana.TokenProgramID),
		programs.NewCreateAccountWithSeedInstruction(payer, quoteVault.address, quoteVault.seed, tokenRent, programs.TokenAccountSize, solana.TokenProgramID),
		programs.NewInitializeAccountInstruction(baseVault.address, params.BaseMint, vaultSigner),
		programs.NewInitializeAccountInstruction(quoteVault.address, params.QuoteMint, vaultSigner),
	}

	// Транзакция 2: рынок, очереди, книги заявок и InitializeMarket.
	marketTx := make([]solana.Instruction, 0, 6)
	for _, acc := range []struct {
		account seededAccount
		size    uint64
	}{
		{market, MarketStateSize},
		{requestQueue, TotalRequestQueueSize},
		{eventQueue, TotalEventQueueSize},
		{bids, TotalOrderbookSize},
		{asks, TotalOrderbookSize},
	} {
		lamports, err := b.rent.GetMinimumBalanceForRentExemption(ctx, acc.size)
		if err != nil {
			return nil, fmt.Errorf("failed to get rent for %d bytes: %w", acc.size, err)
		}
		marketTx = append(marketTx, programs.NewCreateAccountWithSeedInstruction(
			payer, acc.account.address, acc.account.seed, lamports, acc.size, b.programID,
		))
	}
	marketTx = append(marketTx, NewInitializeMarketInstruction(keys, params.BaseMint, params.QuoteMint, DefaultFeeRateBps, DefaultQuoteDust))

	return &MarketPlan{
		Keys:         keys,
		Transactions: [][]solana.Instruction{vaultTx, marketTx},
	}, nil
}

func (b *MarketBuilder) seeded(base, owner solana.PublicKey) (seededAccount, error) {
	seed := b.seedFn()
	addr, err := solana.CreateWithSeed(base, seed, owner)
	if err != nil {
		return seededAccount{}, fmt.Errorf("failed to derive seeded account: %w", err)
	}
	return seededAccount{seed: seed, address: addr}, nil
}

// LotSizes переводит lot/tick в целые размеры лотов рынка.
func LotSizes(params MarketParams) (baseLot, quoteLot uint64, err error) {
	lot := decimal.NewFromFloat(params.LotSize)
	tick := decimal.NewFromFloat(params.TickSize)

	base := decimal.New(1, int32(params.BaseDecimals)).Mul(lot)
	quote := decimal.New(1, int32(params.QuoteDecimals)).Mul(lot).Mul(tick)

	if !base.IsInteger() || base.Sign() <= 0 {
		return 0, 0, fmt.Errorf("invalid base lot size %s", base)
	}
	if !quote.IsInteger() || quote.Sign() <= 0 {
		return 0, 0, fmt.Errorf("invalid quote lot size %s", quote)
	}
	return uint64(base.IntPart()), uint64(quote.IntPart()), nil
}

// FindVaultSigner перебирает nonce до первого валидного адреса off-curve.
func FindVaultSigner(market, programID solana.PublicKey) (solana.PublicKey, uint64, error) {
	for nonce := uint64(0); nonce < 256; nonce++ {
		nonceBytes := binary.LittleEndian.AppendUint64(nil, nonce)
		addr, err := solana.CreateProgramAddress([][]byte{market.Bytes(), nonceBytes}, programID)
		if err == nil {
			return addr, nonce, nil
		}
	}
	return solana.PublicKey{}, 0, errors.New("unable to find vault signer nonce")
}

// NewInitializeMarketInstruction собирает InitializeMarket (инструкция 0, версия 0).
func NewInitializeMarketInstruction(keys MarketKeys, baseMint, quoteMint solana.PublicKey, feeRateBps uint16, quoteDust uint64) solana.Instruction {
	data := make([]byte, 0, 1+4+8+8+2+8+8)
	data = append(data, 0)
	data = binary.LittleEndian.AppendUint32(data, 0)
	data = binary.LittleEndian.AppendUint64(data, keys.BaseLotSize)
	data = binary.LittleEndian.AppendUint64(data, keys.QuoteLotSize)
	data = binary.LittleEndian.AppendUint16(data, feeRateBps)
	data = binary.LittleEndian.AppendUint64(data, keys.VaultSignerNonce)
	data = binary.LittleEndian.AppendUint64(data, quoteDust)

	return solana.NewInstruction(
		keys.ProgramID,
		[]*solana.AccountMeta{
			{PublicKey: keys.Market, IsSigner: false, IsWritable: true},
			{PublicKey: keys.RequestQueue, IsSigner: false, IsWritable: true},
			{PublicKey: keys.EventQueue, IsSigner: false, IsWritable: true},
			{PublicKey: keys.Bids, IsSigner: false, IsWritable: true},
			{PublicKey: keys.Asks, IsSigner: false, IsWritable: true},
			{PublicKey: keys.BaseVault, IsSigner: false, IsWritable: true},
			{PublicKey: keys.QuoteVault, IsSigner: false, IsWritable: true},
			{PublicKey: baseMint, IsSigner: false, IsWritable: false},
			{PublicKey: quoteMint, IsSigner: false, IsWritable: false},
			{PublicKey: solana.SysVarRentPubkey, IsSigner: false, IsWritable: false},
		},
		data,
	)
}

func randomSeed() string {
	return solana.NewWallet().PublicKey().String()[:seedLength]
}

// ==============================================
// File: internal/dex/curve/instructions.go
// ==============================================
package curve

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/fairlaunch/internal/dex/raydium"
)

// Имена инструкций программы.
const (
	IxInitialize      = "initialize"
	IxAddLiquidity    = "add_liquidity"
	IxSwap            = "swap"
	IxRemoveLiquidity = "remove_liquidity"
)

type addLiquidityArgs struct {
	AmountOne uint64
	AmountTwo uint64
}

type swapArgs struct {
	Amount uint64
	Style  uint64
}

type removeLiquidityArgs struct {
	Nonce        uint8
	InitPcAmount uint64
}

// AddLiquidityAmounts возвращает суммы add_liquidity для доли создателя creatorPercent (0..100).
func AddLiquidityAmounts(creatorPercent uint64) (amountOne, amountTwo uint64, err error) {
	if creatorPercent > 100 {
		return 0, 0, fmt.Errorf("creator percent %d out of range", creatorPercent)
	}
	return baseUnitPerPct * (100 - creatorPercent), InitialQuote, nil
}

// BuildInitializeInstruction создает конфигурацию кривой и global-аккаунт. Программа не принимает аргументов.
func (p *Program) BuildInitializeInstruction(admin solana.PublicKey) (solana.Instruction, error) {
	curveConfig, err := p.CurveConfig()
	if err != nil {
		return nil, err
	}
	global, err := p.Global()
	if err != nil {
		return nil, err
	}

	accounts := []*solana.AccountMeta{
		{PublicKey: curveConfig, IsSigner: false, IsWritable: true},
		{PublicKey: global, IsSigner: false, IsWritable: true},
		{PublicKey: admin, IsSigner: true, IsWritable: true},
		{PublicKey: solana.SysVarRentPubkey, IsSigner: false, IsWritable: false},
		{PublicKey: solana.SystemProgramID, IsSigner: false, IsWritable: false},
	}
	return solana.NewInstruction(p.ID, accounts, Discriminator(IxInitialize)), nil
}

// BuildAddLiquidityInstruction кладет начальную ликвидность пользователя user в пул mint.
func (p *Program) BuildAddLiquidityInstruction(mint, user solana.PublicKey, amountOne, amountTwo uint64) (solana.Instruction, error) {
	pa, err := p.DerivePoolAccounts(mint)
	if err != nil {
		return nil, err
	}
	lpAccount, err := p.LiquidityProvider(pa.Pool, user)
	if err != nil {
		return nil, err
	}
	userATA, _, err := solana.FindAssociatedTokenAddress(user, mint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive user ATA: %w", err)
	}

	data, err := encode(IxAddLiquidity, addLiquidityArgs{AmountOne: amountOne, AmountTwo: amountTwo})
	if err != nil {
		return nil, err
	}

	accounts := []*solana.AccountMeta{
		{PublicKey: pa.Pool, IsSigner: false, IsWritable: true},
		{PublicKey: pa.Global, IsSigner: false, IsWritable: true},
		{PublicKey: mint, IsSigner: false, IsWritable: true},
		{PublicKey: pa.PoolTokenAccount, IsSigner: false, IsWritable: true},
		{PublicKey: userATA, IsSigner: false, IsWritable: true},
		{PublicKey: lpAccount, IsSigner: false, IsWritable: true},
		{PublicKey: user, IsSigner: true, IsWritable: true},
		{PublicKey: solana.TokenProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: solana.SPLAssociatedTokenAccountProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: solana.SysVarRentPubkey, IsSigner: false, IsWritable: false},
		{PublicKey: solana.SystemProgramID, IsSigner: false, IsWritable: false},
	}
	return solana.NewInstruction(p.ID, accounts, data), nil
}

// BuildSwapInstruction собирает swap. amount в минимальных единицах: lamports для buy, токены для sell.
func (p *Program) BuildSwapInstruction(mint, user solana.PublicKey, amount, style uint64) (solana.Instruction, error) {
	if style != StyleBuy && style != StyleSell {
		return nil, fmt.Errorf("unknown swap style %d", style)
	}
	pa, err := p.DerivePoolAccounts(mint)
	if err != nil {
		return nil, err
	}
	userATA, _, err := solana.FindAssociatedTokenAddress(user, mint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive user ATA: %w", err)
	}

	data, err := encode(IxSwap, swapArgs{Amount: amount, Style: style})
	if err != nil {
		return nil, err
	}

	accounts := []*solana.AccountMeta{
		{PublicKey: pa.CurveConfig, IsSigner: false, IsWritable: true},
		{PublicKey: pa.Pool, IsSigner: false, IsWritable: true},
		{PublicKey: pa.Global, IsSigner: false, IsWritable: true},
		{PublicKey: mint, IsSigner: false, IsWritable: true},
		{PublicKey: pa.PoolTokenAccount, IsSigner: false, IsWritable: true},
		{PublicKey: userATA, IsSigner: false, IsWritable: true},
		{PublicKey: user, IsSigner: true, IsWritable: true},
		{PublicKey: solana.TokenProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: solana.SPLAssociatedTokenAccountProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: solana.SysVarRentPubkey, IsSigner: false, IsWritable: false},
		{PublicKey: solana.SystemProgramID, IsSigner: false, IsWritable: false},
	}
	return solana.NewInstruction(p.ID, accounts, data), nil
}

// RemoveLiquidityParams - входные данные для переноса ликвидности пула в Raydium.
type RemoveLiquidityParams struct {
	Mint         solana.PublicKey
	Admin        solana.PublicKey
	WrappedSol   solana.PublicKey // временный WSOL-аккаунт, владелец global
	Pool         *raydium.PoolKeys
	InitPcAmount uint64
}

// BuildRemoveLiquidityInstruction переносит ликвидность кривой в пул Raydium AMM v4.
func (p *Program) BuildRemoveLiquidityInstruction(params RemoveLiquidityParams) (solana.Instruction, error) {
	if params.Pool == nil {
		return nil, fmt.Errorf("raydium pool keys are required")
	}
	pa, err := p.DerivePoolAccounts(params.Mint)
	if err != nil {
		return nil, err
	}
	keys := params.Pool

	userTokenLP, _, err := solana.FindAssociatedTokenAddress(pa.Global, keys.LPMint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive LP token account: %w", err)
	}

	data, err := encode(IxRemoveLiquidity, removeLiquidityArgs{Nonce: keys.Nonce, InitPcAmount: params.InitPcAmount})
	if err != nil {
		return nil, err
	}

	accounts := []*solana.AccountMeta{
		{PublicKey: pa.Pool, IsSigner: false, IsWritable: true},
		{PublicKey: pa.Global, IsSigner: false, IsWritable: true},
		{PublicKey: keys.AmmProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: solana.TokenProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: solana.SPLAssociatedTokenAccountProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: solana.SystemProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: solana.SysVarRentPubkey, IsSigner: false, IsWritable: false},
		{PublicKey: keys.ID, IsSigner: false, IsWritable: true},
		{PublicKey: keys.Authority, IsSigner: false, IsWritable: false},
		{PublicKey: keys.OpenOrders, IsSigner: false, IsWritable: true},
		{PublicKey: keys.LPMint, IsSigner: false, IsWritable: true},
		{PublicKey: params.Mint, IsSigner: false, IsWritable: true},
		{PublicKey: solana.WrappedSol, IsSigner: false, IsWritable: true},
		{PublicKey: keys.CoinVault, IsSigner: false, IsWritable: true},
		{PublicKey: keys.PcVault, IsSigner: false, IsWritable: true},
		{PublicKey: keys.TargetOrders, IsSigner: false, IsWritable: true},
		{PublicKey: keys.Config, IsSigner: false, IsWritable: true},
		{PublicKey: keys.FeeDestination, IsSigner: false, IsWritable: true},
		{PublicKey: keys.MarketProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: keys.MarketID, IsSigner: false, IsWritable: true},
		{PublicKey: params.Admin, IsSigner: true, IsWritable: true},
		{PublicKey: pa.PoolTokenAccount, IsSigner: false, IsWritable: true},
		{PublicKey: params.WrappedSol, IsSigner: false, IsWritable: true},
		{PublicKey: userTokenLP, IsSigner: false, IsWritable: true},
	}
	return solana.NewInstruction(p.ID, accounts, data), nil
}

func encode(name string, args interface{}) ([]byte, error) {
	payload, err := bin.MarshalBorsh(args)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s args: %w", name, err)
	}
	return append(Discriminator(name), payload...), nil
}

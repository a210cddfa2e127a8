// internal/dex/raydium/constants.go
// Package raydium вычисляет адреса Raydium AMM v4 и собирает инструкции
// создания рынка OpenBook, нужные для миграции ликвидности с кривой.
package raydium

import (
	"github.com/gagliardetto/solana-go"
)

// Program IDs
var (
	RaydiumV4ProgramID = solana.MPK("675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8")
	OpenBookProgramID  = solana.MPK("srmqPvymJeFKQ4zGQed1GFppgkRHL9kaELCbyksJtPX")
	FeeDestinationID   = solana.MPK("7YttLkHDoNj9wyDur5pM1ejNaAvT9X4eqaYcHQqtj2G5")
)

// PDA seeds
const (
	AmmAssociatedSeed       = "amm_associated_seed"
	AmmAuthoritySeed        = "amm authority"
	OpenOrderAssociatedSeed = "open_order_associated_seed"
	LpMintAssociatedSeed    = "lp_mint_associated_seed"
	CoinVaultAssociatedSeed = "coin_vault_associated_seed"
	PcVaultAssociatedSeed   = "pc_vault_associated_seed"
	TargetAssociatedSeed    = "target_associated_seed"
	AmmConfigAccountSeed    = "amm_config_account_seed"
)

// Market layout constants
const (
	MarketStateSize uint64 = 388

	EventQueueLength   = 128
	RequestQueueLength = 10
	OrderbookLength    = 201

	eventQueueHeader   = 32
	eventQueueNode     = 88
	requestQueueHeader = 32
	requestQueueNode   = 80
	orderbookHeader    = 40
	orderbookNode      = 72

	// Параметры рынка, которые использует миграция.
	DefaultLotSize            = 1
	DefaultTickSize           = 0.01
	DefaultFeeRateBps  uint16 = 0
	DefaultQuoteDust   uint64 = 100
	seedLength                = 32
)

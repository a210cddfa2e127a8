// internal/dex/raydium/pool.go
package raydium

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// PoolKeys содержит все адреса пула AMM v4, однозначно выводимые из market ID.
type PoolKeys struct {
	AmmProgramID    solana.PublicKey
	ID              solana.PublicKey
	Authority       solana.PublicKey
	Nonce           uint8
	OpenOrders      solana.PublicKey
	LPMint          solana.PublicKey
	CoinVault       solana.PublicKey
	PcVault         solana.PublicKey
	TargetOrders    solana.PublicKey
	Config          solana.PublicKey
	FeeDestination  solana.PublicKey
	MarketProgramID solana.PublicKey
	MarketID        solana.PublicKey
}

// DerivePoolKeys вычисляет адреса пула для рынка OpenBook.
func DerivePoolKeys(marketID solana.PublicKey) (*PoolKeys, error) {
	keys := &PoolKeys{
		AmmProgramID:    RaydiumV4ProgramID,
		FeeDestination:  FeeDestinationID,
		MarketProgramID: OpenBookProgramID,
		MarketID:        marketID,
	}

	associated := []struct {
		seed   string
		target *solana.PublicKey
	}{
		{AmmAssociatedSeed, &keys.ID},
		{OpenOrderAssociatedSeed, &keys.OpenOrders},
		{LpMintAssociatedSeed, &keys.LPMint},
		{CoinVaultAssociatedSeed, &keys.CoinVault},
		{PcVaultAssociatedSeed, &keys.PcVault},
		{TargetAssociatedSeed, &keys.TargetOrders},
	}
	for _, a := range associated {
		addr, err := findAssociatedAddress(marketID, a.seed)
		if err != nil {
			return nil, fmt.Errorf("failed to derive %s: %w", a.seed, err)
		}
		*a.target = addr
	}

	authority, nonce, err := solana.FindProgramAddress([][]byte{[]byte(AmmAuthoritySeed)}, RaydiumV4ProgramID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive amm authority: %w", err)
	}
	keys.Authority = authority
	keys.Nonce = nonce

	config, _, err := solana.FindProgramAddress([][]byte{[]byte(AmmConfigAccountSeed)}, RaydiumV4ProgramID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive amm config: %w", err)
	}
	keys.Config = config

	return keys, nil
}

func findAssociatedAddress(marketID solana.PublicKey, seed string) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{RaydiumV4ProgramID.Bytes(), marketID.Bytes(), []byte(seed)},
		RaydiumV4ProgramID,
	)
	return addr, err
}

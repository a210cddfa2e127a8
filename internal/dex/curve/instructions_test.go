package curve

import (
	"crypto/sha256"
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/fairlaunch/internal/dex/raydium"
)

func TestDiscriminator(t *testing.T) {
	sum := sha256.Sum256([]byte("global:add_liquidity"))
	assert.Equal(t, sum[:8], Discriminator("add_liquidity"))
	assert.Equal(t, Discriminator("add_liquidity"), Discriminator("AddLiquidity"))
	assert.Len(t, Discriminator(IxSwap), 8)
}

func TestNewProgramDefaultID(t *testing.T) {
	assert.Equal(t, DefaultProgramID, NewProgram(solana.PublicKey{}).ID)

	custom := solana.NewWallet().PublicKey()
	assert.Equal(t, custom, NewProgram(custom).ID)
}

func TestAddLiquidityAmounts(t *testing.T) {
	one, two, err := AddLiquidityAmounts(0)
	require.NoError(t, err)
	assert.Equal(t, TotalSupply, one)
	assert.Equal(t, InitialQuote, two)

	one, _, err = AddLiquidityAmounts(10)
	require.NoError(t, err)
	assert.Equal(t, uint64(900_000_000_000_000), one)

	_, _, err = AddLiquidityAmounts(101)
	assert.Error(t, err)
}

func TestBuildSwapInstruction(t *testing.T) {
	p := NewProgram(solana.PublicKey{})
	mint := solana.NewWallet().PublicKey()
	user := solana.NewWallet().PublicKey()

	ix, err := p.BuildSwapInstruction(mint, user, 2*LamportsPerSol, StyleBuy)
	require.NoError(t, err)

	data, err := ix.Data()
	require.NoError(t, err)
	require.Len(t, data, 24)
	assert.Equal(t, Discriminator(IxSwap), data[:8])
	assert.Equal(t, 2*LamportsPerSol, binary.LittleEndian.Uint64(data[8:16]))
	assert.Equal(t, StyleBuy, binary.LittleEndian.Uint64(data[16:24]))

	pa, err := p.DerivePoolAccounts(mint)
	require.NoError(t, err)
	accounts := ix.Accounts()
	require.Len(t, accounts, 11)
	assert.Equal(t, pa.CurveConfig, accounts[0].PublicKey)
	assert.Equal(t, pa.Pool, accounts[1].PublicKey)
	assert.Equal(t, user, accounts[6].PublicKey)
	assert.True(t, accounts[6].IsSigner)

	_, err = p.BuildSwapInstruction(mint, user, 1, 3)
	assert.Error(t, err)
}

func TestBuildAddLiquidityInstruction(t *testing.T) {
	p := NewProgram(solana.PublicKey{})
	mint := solana.NewWallet().PublicKey()
	user := solana.NewWallet().PublicKey()

	ix, err := p.BuildAddLiquidityInstruction(mint, user, TotalSupply, InitialQuote)
	require.NoError(t, err)

	data, err := ix.Data()
	require.NoError(t, err)
	assert.Equal(t, TotalSupply, binary.LittleEndian.Uint64(data[8:16]))
	assert.Equal(t, InitialQuote, binary.LittleEndian.Uint64(data[16:24]))

	pool, err := p.Pool(mint)
	require.NoError(t, err)
	lp, err := p.LiquidityProvider(pool, user)
	require.NoError(t, err)
	assert.Equal(t, lp, ix.Accounts()[5].PublicKey)
}

func TestBuildInitializeInstruction(t *testing.T) {
	p := NewProgram(solana.PublicKey{})
	admin := solana.NewWallet().PublicKey()

	ix, err := p.BuildInitializeInstruction(admin)
	require.NoError(t, err)

	data, err := ix.Data()
	require.NoError(t, err)
	assert.Equal(t, Discriminator(IxInitialize), data)
	assert.Len(t, ix.Accounts(), 5)
}

func TestBuildRemoveLiquidityInstruction(t *testing.T) {
	p := NewProgram(solana.PublicKey{})
	mint := solana.NewWallet().PublicKey()
	admin := solana.NewWallet().PublicKey()
	wsol := solana.NewWallet().PublicKey()

	keys, err := raydium.DerivePoolKeys(solana.NewWallet().PublicKey())
	require.NoError(t, err)

	ix, err := p.BuildRemoveLiquidityInstruction(RemoveLiquidityParams{
		Mint: mint, Admin: admin, WrappedSol: wsol, Pool: keys, InitPcAmount: 42,
	})
	require.NoError(t, err)

	data, err := ix.Data()
	require.NoError(t, err)
	require.Len(t, data, 8+1+8)
	assert.Equal(t, keys.Nonce, data[8])
	assert.Equal(t, uint64(42), binary.LittleEndian.Uint64(data[9:17]))

	accounts := ix.Accounts()
	require.Len(t, accounts, 24)
	assert.Equal(t, keys.ID, accounts[7].PublicKey)
	assert.Equal(t, mint, accounts[11].PublicKey)
	assert.Equal(t, admin, accounts[20].PublicKey)
	assert.True(t, accounts[20].IsSigner)
	assert.Equal(t, wsol, accounts[22].PublicKey)

	_, err = p.BuildRemoveLiquidityInstruction(RemoveLiquidityParams{Mint: mint})
	assert.Error(t, err)
}

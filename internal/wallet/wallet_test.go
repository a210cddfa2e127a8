package wallet

import (
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWallet(t *testing.T) {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	w, err := NewWallet(base58.Encode(key))
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey(), w.PublicKey)

	_, err = NewWallet("not-base58-0OIl")
	assert.Error(t, err)

	_, err = NewWallet(base58.Encode([]byte{1, 2, 3}))
	assert.ErrorContains(t, err, "invalid private key length")
}

func TestSignTransactionWithExtraSigners(t *testing.T) {
	admin, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	account, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	w := FromPrivateKey(admin)

	ix := system.NewCreateAccountInstruction(1_000_000, 165, solana.TokenProgramID, w.PublicKey, account.PublicKey()).Build()
	tx, err := solana.NewTransaction([]solana.Instruction{ix}, solana.Hash{1}, solana.TransactionPayer(w.PublicKey))
	require.NoError(t, err)

	require.NoError(t, w.SignTransaction(tx, account))
	assert.Len(t, tx.Signatures, 2)
	require.NoError(t, tx.VerifySignatures())

	// Без второго подписанта подпись невозможна.
	tx2, err := solana.NewTransaction([]solana.Instruction{ix}, solana.Hash{1}, solana.TransactionPayer(w.PublicKey))
	require.NoError(t, err)
	assert.Error(t, w.SignTransaction(tx2))
}

func TestGetATAConcurrent(t *testing.T) {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	w := FromPrivateKey(key)

	expected, _, err := solana.FindAssociatedTokenAddress(w.PublicKey, solana.WrappedSol)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ata, err := w.GetATA(solana.WrappedSol)
			assert.NoError(t, err)
			assert.Equal(t, expected, ata)
		}()
	}
	wg.Wait()
}

func TestCreateATAIdempotentInstruction(t *testing.T) {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	w := FromPrivateKey(key)
	owner := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()

	ata, ix, err := w.CreateATAIdempotentInstruction(owner, mint)
	require.NoError(t, err)

	expected, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	require.NoError(t, err)
	assert.Equal(t, expected, ata)

	assert.Equal(t, solana.SPLAssociatedTokenAccountProgramID, ix.ProgramID())
	accounts := ix.Accounts()
	require.Len(t, accounts, 6)
	assert.Equal(t, w.PublicKey, accounts[0].PublicKey)
	assert.True(t, accounts[0].IsSigner)
	assert.Equal(t, ata, accounts[1].PublicKey)
	assert.Equal(t, owner, accounts[2].PublicKey)

	data, err := ix.Data()
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, data)
}

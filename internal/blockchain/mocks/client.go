// internal/blockchain/mocks/client.go
package mocks

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/fairlaunch/internal/blockchain"
	"github.com/stretchr/testify/mock"
)

// Client реализует blockchain.Client на testify/mock для тестов пакетов,
// которые собирают и отправляют транзакции.
type Client struct {
	mock.Mock
}

func (m *Client) GetLatestBlockhash(ctx context.Context) (*blockchain.Blockhash, error) {
	args := m.Called(ctx)
	bh, _ := args.Get(0).(*blockchain.Blockhash)
	return bh, args.Error(1)
}

func (m *Client) SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts blockchain.TransactionOptions) (solana.Signature, error) {
	args := m.Called(ctx, tx, opts)
	return args.Get(0).(solana.Signature), args.Error(1)
}

func (m *Client) SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*blockchain.SimulationResult, error) {
	args := m.Called(ctx, tx)
	res, _ := args.Get(0).(*blockchain.SimulationResult)
	return res, args.Error(1)
}

func (m *Client) ConfirmTransaction(ctx context.Context, signature solana.Signature, lastValidBlockHeight uint64) error {
	args := m.Called(ctx, signature, lastValidBlockHeight)
	return args.Error(0)
}

func (m *Client) GetTokenAccountBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	args := m.Called(ctx, account)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *Client) GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error) {
	args := m.Called(ctx, size)
	return args.Get(0).(uint64), args.Error(1)
}

// NewHappyClient возвращает мок, который принимает любые транзакции:
// фиксированный blockhash, rent 2_039_280 лампортов, успешная отправка и подтверждение.
func NewHappyClient() *Client {
	m := new(Client)
	m.On("GetLatestBlockhash", mock.Anything).Return(&blockchain.Blockhash{
		Hash:                 solana.Hash{9},
		LastValidBlockHeight: 1_000,
	}, nil)
	m.On("GetMinimumBalanceForRentExemption", mock.Anything, mock.Anything).Return(uint64(2_039_280), nil)
	m.On("SendTransactionWithOpts", mock.Anything, mock.Anything, mock.Anything).Return(solana.Signature{1}, nil)
	m.On("ConfirmTransaction", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	return m
}

var _ blockchain.Client = (*Client)(nil)

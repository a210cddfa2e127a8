// internal/blockchain/types.go
package blockchain

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

var (
	// ErrBlockhashExpired - блокхеш транзакции истёк до подтверждения.
	ErrBlockhashExpired = errors.New("block height exceeded: blockhash expired")
	// ErrTransactionFailed - транзакция попала в блок, но завершилась ошибкой.
	ErrTransactionFailed = errors.New("transaction failed on-chain")
)

// TransactionOptions определяет опции для отправки транзакций.
type TransactionOptions struct {
	SkipPreflight       bool
	PreflightCommitment rpc.CommitmentType
	// MaxRetries ограничивает повторную пересылку транзакции самим RPC-узлом. 0 - поведение узла по умолчанию.
	MaxRetries uint
}

// SimulationResult представляет результат симуляции транзакции.
type SimulationResult struct {
	Err           interface{}
	Logs          []string
	UnitsConsumed uint64
}

// Blockhash - последний блокхеш вместе с высотой, до которой он действителен.
type Blockhash struct {
	Hash                 solana.Hash
	LastValidBlockHeight uint64
}

// TransactionError описывает ошибку исполнения подтверждённой транзакции.
type TransactionError struct {
	Signature solana.Signature
	Err       interface{}
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction %s failed: %v", e.Signature, e.Err)
}

func (e *TransactionError) Unwrap() error {
	return ErrTransactionFailed
}

// LogNotification - одно уведомление подписки logsSubscribe.
type LogNotification struct {
	Signature solana.Signature
	Slot      uint64
	Logs      []string
	Err       interface{}
}

// Client определяет общий интерфейс для взаимодействия с блокчейном.
type Client interface {
	// Получить последний blockhash и lastValidBlockHeight.
	GetLatestBlockhash(ctx context.Context) (*Blockhash, error)
	// Отправить транзакцию с опциями.
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts TransactionOptions) (solana.Signature, error)
	// Симулировать транзакцию.
	SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*SimulationResult, error)
	// Дождаться подтверждения подписи, пока блокхеш действителен.
	ConfirmTransaction(ctx context.Context, signature solana.Signature, lastValidBlockHeight uint64) error
	// Баланс токен-аккаунта в минимальных единицах.
	GetTokenAccountBalance(ctx context.Context, account solana.PublicKey) (uint64, error)
	// Минимальный rent-exempt баланс для аккаунта заданного размера.
	GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error)
}

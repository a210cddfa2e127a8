// internal/blockchain/solbc/client.go
package solbc

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rovshanmuradov/fairlaunch/internal/blockchain"
	"go.uber.org/zap"
)

const confirmPollInterval = 500 * time.Millisecond

// Client – тонкий адаптер для взаимодействия с блокчейном Solana через solana-go.
type Client struct {
	rpc          *rpc.Client
	logger       *zap.Logger
	pollInterval time.Duration
}

// NewClient создаёт новый клиент, принимая RPC URL и логгер через dependency injection.
func NewClient(rpcURL string, logger *zap.Logger) *Client {
	return &Client{
		rpc:          rpc.New(rpcURL),
		logger:       logger.Named("solbc-client"),
		pollInterval: confirmPollInterval,
	}
}

// GetLatestBlockhash получает последний blockhash вместе с lastValidBlockHeight.
func (c *Client) GetLatestBlockhash(ctx context.Context) (*blockchain.Blockhash, error) {
	result, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		c.logger.Error("GetLatestBlockhash error", zap.Error(err))
		return nil, NewRPCError("getLatestBlockhash", err)
	}
	return &blockchain.Blockhash{
		Hash:                 result.Value.Blockhash,
		LastValidBlockHeight: result.Value.LastValidBlockHeight,
	}, nil
}

// SendTransactionWithOpts отправляет транзакцию с заданными опциями.
func (c *Client) SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts blockchain.TransactionOptions) (solana.Signature, error) {
	rpcOpts := rpc.TransactionOpts{
		SkipPreflight:       opts.SkipPreflight,
		PreflightCommitment: opts.PreflightCommitment,
	}
	if opts.MaxRetries > 0 {
		maxRetries := opts.MaxRetries
		rpcOpts.MaxRetries = &maxRetries
	}

	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpcOpts)
	if err != nil {
		c.logger.Error("SendTransactionWithOpts error", zap.Error(err))
		return solana.Signature{}, NewRPCError("sendTransaction", err)
	}
	return sig, nil
}

// SimulateTransaction симулирует транзакцию и возвращает результат симуляции.
func (c *Client) SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*blockchain.SimulationResult, error) {
	result, err := c.rpc.SimulateTransaction(ctx, tx)
	if err != nil {
		c.logger.Error("SimulateTransaction error", zap.Error(err))
		return nil, NewRPCError("simulateTransaction", err)
	}
	units := uint64(0)
	if result.Value.UnitsConsumed != nil {
		units = *result.Value.UnitsConsumed
	}
	return &blockchain.SimulationResult{
		Err:           result.Value.Err,
		Logs:          result.Value.Logs,
		UnitsConsumed: units,
	}, nil
}

// ConfirmTransaction ожидает подтверждения подписи (polling), пока текущая высота блока
// не превысит lastValidBlockHeight. Ошибка исполнения возвращается как *blockchain.TransactionError.
func (c *Client) ConfirmTransaction(ctx context.Context, signature solana.Signature, lastValidBlockHeight uint64) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		statuses, err := c.rpc.GetSignatureStatuses(ctx, false, signature)
		if err != nil {
			c.logger.Warn("Error getting signature statuses", zap.Error(err))
			continue
		}
		if statuses != nil && len(statuses.Value) > 0 && statuses.Value[0] != nil {
			status := statuses.Value[0]
			if status.Err != nil {
				return &blockchain.TransactionError{Signature: signature, Err: status.Err}
			}
			if status.ConfirmationStatus == rpc.ConfirmationStatusFinalized ||
				status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed {
				return nil
			}
			continue
		}

		height, err := c.rpc.GetBlockHeight(ctx, rpc.CommitmentConfirmed)
		if err != nil {
			c.logger.Warn("Error getting block height", zap.Error(err))
			continue
		}
		if lastValidBlockHeight > 0 && height > lastValidBlockHeight {
			return fmt.Errorf("%s: %w", signature, blockchain.ErrBlockhashExpired)
		}
	}
}

// GetTokenAccountBalance получает баланс токенного аккаунта в минимальных единицах.
func (c *Client) GetTokenAccountBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	result, err := c.rpc.GetTokenAccountBalance(ctx, account, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, NewRPCError("getTokenAccountBalance", err)
	}
	if result.Value == nil {
		return 0, nil
	}
	amount, err := strconv.ParseUint(result.Value.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid token amount %q: %w", result.Value.Amount, err)
	}
	return amount, nil
}

// GetMinimumBalanceForRentExemption возвращает rent-exempt минимум для аккаунта размера size.
func (c *Client) GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error) {
	lamports, err := c.rpc.GetMinimumBalanceForRentExemption(ctx, size, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, NewRPCError("getMinimumBalanceForRentExemption", err)
	}
	return lamports, nil
}

// Гарантируем, что Client реализует интерфейс blockchain.Client.
var _ blockchain.Client = (*Client)(nil)

// internal/bundle/jito.go
// Package bundle отправляет пакеты транзакций в Jito block engine.
package bundle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/mr-tron/base58"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/fairlaunch/internal/blockchain"
	"github.com/rovshanmuradov/fairlaunch/internal/blockchain/solana/transaction"
	"github.com/rovshanmuradov/fairlaunch/internal/wallet"
)

// DefaultTipLamports - чаевые валидатору за пакет.
const DefaultTipLamports uint64 = 100_000

// TipAccounts - аккаунты для чаевых Jito.
var TipAccounts = []solana.PublicKey{
	solana.MustPublicKeyFromBase58("Cw8CFyM9FkoMi7K7Crf6HNQqf4uEMzpKw6QNghXLvLkY"),
	solana.MustPublicKeyFromBase58("DttWaMuVvTiduZRnguLF7jNxTgiMBZ1hyAumKUiL2KRL"),
	solana.MustPublicKeyFromBase58("96gYZGLnJYVFmbjzopPSU6QiEV5fGqZNyN9nmNhvrZU5"),
	solana.MustPublicKeyFromBase58("3AVi9Tg9Uo68tJfuvoKvqKNWKkC5wPdSSdeBnizKZ6jT"),
	solana.MustPublicKeyFromBase58("HFqU5x63VTqvQss8hp11i4wVV8bD44PvwucfZ2bU7gRe"),
	solana.MustPublicKeyFromBase58("ADaUMid9yfUytqMBgopwjb2DTLSokTSzL1zt6iGPaS49"),
	solana.MustPublicKeyFromBase58("ADuUkR4vqLUMWXxW9gh6D6L8pMSawimctcNZ5pGwDcEt"),
	solana.MustPublicKeyFromBase58("DfXygSm4jCyNCybVYYK6DwvWqjKee8pbDmJGcLWNDXjh"),
}

var (
	// ErrNoRelayAccepted - ни один relay не принял пакет.
	ErrNoRelayAccepted = errors.New("no relay accepted the bundle")

	// ErrTipFailed - транзакция чаевых не подтвердилась.
	ErrTipFailed = errors.New("tip transaction not confirmed")
)

// TxFactory собирает транзакции пакета под выданный blockhash.
type TxFactory func(blockhash solana.Hash) ([]*solana.Transaction, error)

// Submitter отправляет пакеты во все relay параллельно.
type Submitter struct {
	client    blockchain.Client
	wallet    *wallet.Wallet
	endpoints []string
	tip       uint64
	http      *http.Client
	logger    *zap.Logger
	pickTip   func() solana.PublicKey
}

// NewSubmitter создает отправителя пакетов.
func NewSubmitter(client blockchain.Client, w *wallet.Wallet, endpoints []string, tipLamports uint64, logger *zap.Logger) *Submitter {
	if tipLamports == 0 {
		tipLamports = DefaultTipLamports
	}
	return &Submitter{
		client:    client,
		wallet:    w,
		endpoints: endpoints,
		tip:       tipLamports,
		http:      &http.Client{Timeout: 10 * time.Second},
		logger:    logger.Named("bundle"),
		pickTip: func() solana.PublicKey {
			return TipAccounts[rand.Intn(len(TipAccounts))]
		},
	}
}

// Submit берет свежий blockhash, собирает транзакции пакета, добавляет первой
// транзакцию чаевых и рассылает пакет. При хотя бы одном принятии ждет
// подтверждения чаевых и возвращает их подпись.
func (s *Submitter) Submit(ctx context.Context, build TxFactory) (solana.Signature, error) {
	bh, err := s.client.GetLatestBlockhash(ctx)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("get blockhash: %w", err)
	}

	txs, err := build(bh.Hash)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("build bundle transactions: %w", err)
	}

	tipAccount := s.pickTip()
	tipTx, err := transaction.NewBuilder().
		Add(system.NewTransferInstruction(s.tip, s.wallet.PublicKey, tipAccount).Build()).
		Build(bh.Hash, s.wallet)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("build tip transaction: %w", err)
	}
	tipSig := tipTx.Signatures[0]

	encoded, err := encodeBundle(append([]*solana.Transaction{tipTx}, txs...))
	if err != nil {
		return solana.Signature{}, err
	}

	accepted := s.broadcast(ctx, encoded)
	if accepted == 0 {
		s.logger.Warn("No relay accepted the bundle", zap.Int("endpoints", len(s.endpoints)))
		return solana.Signature{}, ErrNoRelayAccepted
	}

	s.logger.Info("Bundle accepted, confirming tip",
		zap.Int32("accepted", accepted),
		zap.String("tip_account", tipAccount.String()),
		zap.String("tip_signature", tipSig.String()))

	if err := s.client.ConfirmTransaction(ctx, tipSig, bh.LastValidBlockHeight); err != nil {
		return solana.Signature{}, fmt.Errorf("%w: %v", ErrTipFailed, err)
	}

	for _, tx := range txs {
		s.logger.Info("Bundle transaction confirmed", zap.String("signature", tx.Signatures[0].String()))
	}
	return tipSig, nil
}

// broadcast шлет пакет во все relay; ошибки отдельных relay не прерывают остальные.
func (s *Submitter) broadcast(ctx context.Context, encoded []string) int32 {
	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "sendBundle",
		"params":  [][]string{encoded},
	})
	if err != nil {
		s.logger.Error("Failed to encode bundle request", zap.Error(err))
		return 0
	}

	var accepted atomic.Int32
	var g errgroup.Group
	for _, endpoint := range s.endpoints {
		g.Go(func() error {
			if err := s.post(ctx, endpoint, body); err != nil {
				s.logger.Debug("Relay rejected bundle", zap.String("endpoint", endpoint), zap.Error(err))
				return nil
			}
			accepted.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	return accepted.Load()
}

func (s *Submitter) post(ctx context.Context, endpoint string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		s.logger.Debug("Failed to read relay response", zap.String("endpoint", endpoint), zap.Error(err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(data))
	}

	if id := gjson.GetBytes(data, "result"); id.Exists() {
		s.logger.Debug("Relay accepted bundle", zap.String("endpoint", endpoint), zap.String("bundle_id", id.String()))
	}
	return nil
}

func encodeBundle(txs []*solana.Transaction) ([]string, error) {
	out := make([]string, 0, len(txs))
	for i, tx := range txs {
		raw, err := tx.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("serialize tx %d: %w", i, err)
		}
		out = append(out, base58.Encode(raw))
	}
	return out, nil
}

// internal/app/runner.go
// Package app собирает и запускает сервис: подписка на логи, сверка сделок,
// миграция, HTTP и WebSocket.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/fairlaunch/internal/blockchain"
	"github.com/rovshanmuradov/fairlaunch/internal/blockchain/solana/transaction"
	"github.com/rovshanmuradov/fairlaunch/internal/config"
)

const httpShutdownTimeout = 10 * time.Second

// Runner владеет жизненным циклом процесса.
type Runner struct {
	cfg      *config.Config
	logger   *zap.Logger
	client   blockchain.Client
	shutdown *ShutdownHandler
}

// NewRunner принимает загруженную конфигурацию и логгер.
func NewRunner(cfg *config.Config, logger *zap.Logger) *Runner {
	return &Runner{
		cfg:      cfg,
		logger:   logger,
		client:   newRPCClient(cfg, logger),
		shutdown: NewShutdownHandler(logger, 30*time.Second),
	}
}

// Run работает до SIGINT/SIGTERM или первой фатальной ошибки сервиса.
func (r *Runner) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := build(ctx, r.cfg, r.client, r.logger, r.shutdown)
	if err != nil {
		_ = r.shutdown.Shutdown(context.Background())
		return fmt.Errorf("failed to build services: %w", err)
	}

	server := &http.Server{
		Addr:              r.cfg.HTTPAddr,
		Handler:           svc.api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := svc.listener.Run(gctx, svc.reconciler.HandleNotification)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("event listener: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		r.logger.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	// Незавершенные миграции продолжаются с сохраненного шага.
	g.Go(func() error {
		if err := svc.pipeline.Resume(gctx); err != nil {
			r.logger.Error("Migration resume sweep failed", zap.Error(err))
		}
		return nil
	})

	r.logger.Info("Fairlaunch backend started")
	runErr := g.Wait()
	if runErr != nil {
		r.logger.Error("Service stopped with error", zap.Error(runErr))
	} else {
		r.logger.Info("Signal received, stopping")
	}

	svc.reconciler.Wait()
	svc.gate.Wait()
	if err := r.shutdown.Shutdown(context.Background()); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// InitCurve отправляет одноразовую инструкцию initialize программы кривой.
func (r *Runner) InitCurve(ctx context.Context) (string, error) {
	admin, program, err := newAdmin(r.cfg)
	if err != nil {
		return "", err
	}

	ix, err := program.BuildInitializeInstruction(admin.PublicKey)
	if err != nil {
		return "", err
	}

	bh, err := r.client.GetLatestBlockhash(ctx)
	if err != nil {
		return "", fmt.Errorf("get blockhash: %w", err)
	}
	tx, err := transaction.NewBuilder().Add(ix).Build(bh.Hash, admin)
	if err != nil {
		return "", err
	}

	sig, err := r.client.SendTransactionWithOpts(ctx, tx, blockchain.TransactionOptions{})
	if err != nil {
		return "", fmt.Errorf("send initialize: %w", err)
	}
	if err := r.client.ConfirmTransaction(ctx, sig, bh.LastValidBlockHeight); err != nil {
		return sig.String(), fmt.Errorf("confirm initialize: %w", err)
	}

	r.logger.Info("Curve initialized", zap.String("signature", sig.String()), zap.String("program", program.ID.String()))
	return sig.String(), nil
}

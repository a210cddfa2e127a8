// internal/app/wire.go
package app

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/fairlaunch/internal/api"
	"github.com/rovshanmuradov/fairlaunch/internal/blockchain"
	"github.com/rovshanmuradov/fairlaunch/internal/blockchain/solbc"
	"github.com/rovshanmuradov/fairlaunch/internal/bundle"
	"github.com/rovshanmuradov/fairlaunch/internal/config"
	"github.com/rovshanmuradov/fairlaunch/internal/dex/curve"
	"github.com/rovshanmuradov/fairlaunch/internal/eventlistener"
	"github.com/rovshanmuradov/fairlaunch/internal/events"
	"github.com/rovshanmuradov/fairlaunch/internal/launch"
	"github.com/rovshanmuradov/fairlaunch/internal/migration"
	"github.com/rovshanmuradov/fairlaunch/internal/notify"
	"github.com/rovshanmuradov/fairlaunch/internal/oracle"
	"github.com/rovshanmuradov/fairlaunch/internal/reconcile"
	"github.com/rovshanmuradov/fairlaunch/internal/storage"
	"github.com/rovshanmuradov/fairlaunch/internal/storage/memory"
	"github.com/rovshanmuradov/fairlaunch/internal/storage/postgres"
	"github.com/rovshanmuradov/fairlaunch/internal/wallet"
)

// services - собранный граф компонентов одного процесса.
type services struct {
	store      storage.Store
	bus        *events.Bus
	hub        *notify.Hub
	listener   *eventlistener.EventListener
	reconciler *reconcile.Reconciler
	gate       *migration.Gate
	pipeline   *migration.Pipeline
	api        *api.Server
}

// openStore выбирает хранилище по storage_driver.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Store, error) {
	switch cfg.StorageDriver {
	case "", "memory":
		logger.Warn("Using in-memory storage, state is lost on restart")
		return memory.NewStore(), nil
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		if err := pool.Migrate(ctx, logger); err != nil {
			pool.Close()
			return nil, err
		}
		return postgres.NewStore(pool), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

// newAdmin загружает кошелек администратора и программу кривой.
func newAdmin(cfg *config.Config) (*wallet.Wallet, *curve.Program, error) {
	admin, err := wallet.NewWallet(cfg.PrivateKey)
	if err != nil {
		return nil, nil, fmt.Errorf("load admin wallet: %w", err)
	}

	var programID solana.PublicKey
	if cfg.ProgramID != "" {
		programID, err = solana.PublicKeyFromBase58(cfg.ProgramID)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid program_id: %w", err)
		}
	}
	return admin, curve.NewProgram(programID), nil
}

// build собирает компоненты. client передается снаружи, чтобы тесты могли подменить RPC.
func build(ctx context.Context, cfg *config.Config, client blockchain.Client, logger *zap.Logger, sh *ShutdownHandler) (*services, error) {
	admin, program, err := newAdmin(cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("Admin wallet loaded", zap.String("address", admin.String()), zap.String("program", program.ID.String()))

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	sh.Add("storage", store)

	bus := events.NewBus(logger, cfg.QueueSize)
	sh.AddFunc("event_bus", func() error { return bus.Shutdown(context.Background()) })

	hub := notify.NewHub(bus, logger)
	bus.Subscribe(events.AllEvents, hub)
	sh.AddFunc("notify_hub", func() error { hub.Close(); return nil })

	pipeline := migration.NewPipeline(client, admin, program, store, bus, migration.PipelineOptions{
		ComputeUnitLimit: cfg.ComputeUnitLimit,
		ComputeUnitPrice: cfg.ComputeUnitPrice,
		SendMaxRetries:   cfg.SendMaxRetries,
	}, logger)

	gate := migration.NewGate(oracle.NewService(cfg.OracleURL, cfg.OracleTimeout, logger), store, pipeline, migration.GateOptions{
		DefaultThreshold:  cfg.DefaultThreshold,
		InitialQuote:      cfg.InitialQuote,
		MigrationSharePct: cfg.MigrationSharePct,
	}, logger)

	reconciler := reconcile.NewReconciler(store, bus, gate, reconcile.Options{
		SettleDelay:          cfg.SettleDelay,
		LiquiditySettleDelay: cfg.LiquiditySettleDelay,
		QueueSize:            cfg.QueueSize,
		PriceWindow:          cfg.PriceWindow,
	}, logger)

	launcher := launch.NewService(
		client,
		admin,
		program,
		launch.NewPinataClient(cfg.PinataURL, cfg.PinataJWT, cfg.PinataGateway, logger),
		bundle.NewSubmitter(client, admin, cfg.RelayEndpoints, cfg.TipLamports, logger),
		store,
		bus,
		launch.Options{},
		logger,
	)

	return &services{
		store:      store,
		bus:        bus,
		hub:        hub,
		listener:   eventlistener.NewEventListener(cfg.WebSocketURL, program.ID, logger),
		reconciler: reconciler,
		gate:       gate,
		pipeline:   pipeline,
		api:        api.NewServer(launcher, store, hub, logger),
	}, nil
}

// newRPCClient создает RPC-клиент Solana.
func newRPCClient(cfg *config.Config, logger *zap.Logger) blockchain.Client {
	return solbc.NewClient(cfg.RPCURL, logger)
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/congo-pay/tokenledger/internal/config"
	"github.com/congo-pay/tokenledger/internal/domain"
	"github.com/congo-pay/tokenledger/internal/infra"
	"github.com/congo-pay/tokenledger/internal/keys"
	"github.com/congo-pay/tokenledger/internal/ledger"
	"github.com/congo-pay/tokenledger/internal/logging"
	"github.com/congo-pay/tokenledger/internal/notification"
	"github.com/congo-pay/tokenledger/internal/payments"
	"github.com/congo-pay/tokenledger/internal/remote"
	"github.com/congo-pay/tokenledger/internal/routes"
	"github.com/congo-pay/tokenledger/internal/server"
	"github.com/congo-pay/tokenledger/internal/wallet"
	"github.com/congo-pay/tokenledger/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := infra.OpenStorage(ctx, cfg, logger)
	if err != nil {
		logger.Error("open storage", "backend", cfg.StorageBackend, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	l := ledger.Open(ctx, ledger.NewStore(store.Store), logger)
	if cfg.SeedCatalog {
		seeded, err := l.Seed(ctx, domain.DefaultCatalog())
		if err != nil {
			logger.Error("seed catalog", "error", err)
			os.Exit(1)
		}
		if seeded {
			logger.Info("seeded token catalog", "tokens", len(l.Balances()))
		}
	}

	provider := keyProvider(cfg)
	backend := newBackend(cfg, provider, logger)

	paymentSvc := payments.NewService(l, backend, logger)
	walletSvc := wallet.NewService(wallet.NewRepository(store.Store), backend, keys.NewDecryptor(provider))

	cancelNotify := notification.Forward(l, notification.NewLoggerNotifier(logger), logger)
	defer cancelNotify()

	srv, err := server.New(routes.Deps{
		Cfg:      cfg,
		DB:       store.DB,
		Cache:    store.Cache,
		Logger:   logger,
		Ledger:   l,
		Payments: paymentSvc,
		Wallets:  walletSvc,
	})
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	go worker.NewSyncWorker(paymentSvc, walletSvc, cfg.SyncInterval, logger).Run(ctx)

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited cleanly")
}

func keyProvider(cfg config.Config) keys.KeyProvider {
	if len(cfg.EncryptionKey) > 0 {
		return keys.StaticKey(cfg.EncryptionKey)
	}
	return keys.EnvKey{Var: "ENCRYPTION_KEY"}
}

func newBackend(cfg config.Config, provider keys.KeyProvider, logger *slog.Logger) remote.Backend {
	if cfg.RemoteBackendURL == "" {
		logger.Warn("REMOTE_BACKEND_URL not set, using the local wallet simulator")
		return remote.NewSimulator(provider)
	}
	return remote.NewHTTPClient(cfg.RemoteBackendURL, cfg.RemoteAPIToken, cfg.RemoteTimeout, cfg.RemoteRetryMax, cfg.RemoteRetryBaseDelay)
}

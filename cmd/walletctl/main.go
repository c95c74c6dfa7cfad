package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/congo-pay/tokenledger/internal/config"
	"github.com/congo-pay/tokenledger/internal/domain"
	"github.com/congo-pay/tokenledger/internal/infra"
	"github.com/congo-pay/tokenledger/internal/keys"
	"github.com/congo-pay/tokenledger/internal/ledger"
	"github.com/congo-pay/tokenledger/internal/logging"
	"github.com/congo-pay/tokenledger/internal/payments"
	"github.com/congo-pay/tokenledger/internal/remote"
	"github.com/congo-pay/tokenledger/internal/wallet"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := newApp(openEnv)
	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "walletctl: %v\n", err)
		os.Exit(1)
	}
}

// openEnv builds the services against the backend named in the environment.
func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(cfg.LogLevel)

	store, err := infra.OpenStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	l := ledger.Open(ctx, ledger.NewStore(store.Store), logger)
	if cfg.SeedCatalog {
		if _, err := l.Seed(ctx, domain.DefaultCatalog()); err != nil {
			store.Close()
			return nil, err
		}
	}

	var provider keys.KeyProvider = keys.EnvKey{Var: "ENCRYPTION_KEY"}
	if len(cfg.EncryptionKey) > 0 {
		provider = keys.StaticKey(cfg.EncryptionKey)
	}
	var backend remote.Backend = remote.NewSimulator(provider)
	if cfg.RemoteBackendURL != "" {
		backend = remote.NewHTTPClient(cfg.RemoteBackendURL, cfg.RemoteAPIToken, cfg.RemoteTimeout, cfg.RemoteRetryMax, cfg.RemoteRetryBaseDelay)
	}
	decryptor := keys.NewDecryptor(provider)

	return &env{
		ledger:    l,
		payments:  payments.NewService(l, backend, logger),
		wallets:   wallet.NewService(wallet.NewRepository(store.Store), backend, decryptor),
		decryptor: decryptor,
		close:     store.Close,
	}, nil
}

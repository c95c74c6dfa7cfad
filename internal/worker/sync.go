package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/congo-pay/tokenledger/internal/payments"
	"github.com/congo-pay/tokenledger/internal/wallet"
)

// Refresher pulls authoritative balances for a wallet address.
type Refresher interface {
	Refresh(ctx context.Context, walletAddress string) (payments.RefreshReport, error)
}

// AddressSource resolves the current wallet address.
type AddressSource interface {
	Address(ctx context.Context) (string, error)
}

// SyncWorker periodically refreshes local balances from the remote backend.
type SyncWorker struct {
	refresher Refresher
	wallets   AddressSource
	interval  time.Duration
	logger    *slog.Logger
}

// DefaultInterval is the refresh period used when none is configured.
const DefaultInterval = 5 * time.Minute

// NewSyncWorker creates a new SyncWorker. A non-positive interval falls back to DefaultInterval.
func NewSyncWorker(refresher Refresher, wallets AddressSource, interval time.Duration, logger *slog.Logger) *SyncWorker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &SyncWorker{refresher: refresher, wallets: wallets, interval: interval, logger: logger}
}

// Run syncs immediately and then on every tick. It blocks until ctx is cancelled.
func (w *SyncWorker) Run(ctx context.Context) {
	w.logger.Info("sync worker starting", slog.Duration("interval", w.interval))

	w.syncOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("sync worker shutting down")
			return
		case <-ticker.C:
			w.syncOnce(ctx)
		}
	}
}

func (w *SyncWorker) syncOnce(ctx context.Context) {
	addr, err := w.wallets.Address(ctx)
	if err != nil {
		if errors.Is(err, wallet.ErrWalletNotFound) {
			w.logger.Debug("sync skipped, no wallet yet")
			return
		}
		w.logger.Error("sync: wallet lookup failed", slog.Any("error", err))
		return
	}

	report, err := w.refresher.Refresh(ctx, addr)
	if err != nil {
		w.logger.Error("sync failed", slog.Any("error", err))
		return
	}
	w.logger.Info("sync completed",
		slog.Int("updated", len(report.Updated)),
		slog.Int("kept", len(report.Kept)),
		slog.Int("rejected", len(report.Rejected)),
	)
}

package client

import (
	"context"
	"errors"
	"time"

	"go-bank-sync/client/api"
	"go-bank-sync/client/builder"
	"go-bank-sync/client/cache"
	"go-bank-sync/client/health"
	"go-bank-sync/client/syncer"
	"go-bank-sync/config"
	"go-bank-sync/logger"
	"go-bank-sync/model"
)

// Device assembles the client-side stack for one authenticated identity:
// encrypted ledger cache, request builder, server gateway, sync orchestrator
// and health monitor, wired so a recovered connection drains the outbox.
type Device struct {
	Cache    *cache.LedgerCache
	Builder  *builder.Builder
	API      *api.Client
	Syncer   *syncer.Orchestrator
	Monitor  *health.Monitor
	Notifier *syncer.Notifier
}

// NewDevice builds a Device from the loaded configuration. The KV backend is
// injected so embedded hosts can choose Redis or the in-memory store.
func NewDevice(kv cache.KV, owner, token string) (*Device, error) {
	cfg := config.AppConfig

	cipher, err := cache.NewCipher(cfg.Cache.EncryptionKey)
	if err != nil {
		return nil, err
	}
	store := cache.NewLedgerCache(kv, cipher, owner)

	gateway := api.NewClient(cfg.Sync.ServerBaseURL, time.Duration(cfg.Sync.HTTPTimeoutSeconds)*time.Second)
	gateway.SetToken(token)

	notifier := syncer.NewNotifier()
	orchestrator := syncer.NewOrchestrator(store, gateway, notifier)

	monitor := health.NewMonitor(gateway, time.Duration(cfg.Sync.HealthIntervalSeconds)*time.Second, notifier,
		func(ctx context.Context) {
			if _, err := orchestrator.Drain(ctx); err != nil && !errors.Is(err, syncer.ErrDrainInProgress) {
				logger.Log.WithError(err).Warn("Outbox drain after reconnect failed")
			}
		})

	return &Device{
		Cache:    store,
		Builder:  builder.NewBuilder(),
		API:      gateway,
		Syncer:   orchestrator,
		Monitor:  monitor,
		Notifier: notifier,
	}, nil
}

// Start launches the health probe loop.
func (d *Device) Start(ctx context.Context) {
	d.Monitor.Start(ctx)
}

// CreateTransfer validates the intent, records the transfer locally and
// routes it through the immediate or queued path based on connectivity.
func (d *Device) CreateTransfer(ctx context.Context, intent builder.Intent, pin string) (*model.Transfer, error) {
	transfer, err := d.Builder.Build(intent, pin)
	if err != nil {
		return nil, err
	}
	return d.Syncer.Submit(ctx, transfer, d.Monitor.Online())
}

package syncer

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go-bank-sync/client/api"
	"go-bank-sync/client/cache"
	"go-bank-sync/logger"
	"go-bank-sync/model"
)

// ErrDrainInProgress is returned when a drain is requested while another one
// is still running. The caller simply skips; the running drain covers the
// same queue.
var ErrDrainInProgress = errors.New("sync drain already in progress")

// ErrNotQueued is returned by Cancel when the transfer has already left the
// outbox and can no longer be withdrawn locally.
var ErrNotQueued = errors.New("transfer is not queued")

// Store is the slice of the ledger cache the orchestrator depends on.
type Store interface {
	SaveTransfer(ctx context.Context, t *model.Transfer) error
	UpdateStatus(ctx context.Context, id string, status model.TransferStatus) error
	Enqueue(ctx context.Context, entry model.OutboxEntry) error
	DrainableEntries(ctx context.Context) ([]model.OutboxEntry, error)
	Remove(ctx context.Context, ids []string) error
	IncrementAttempts(ctx context.Context, ids []string) error
	ApplyOptimisticDebit(ctx context.Context, accountID string, amount int64) error
	SaveSnapshot(ctx context.Context, snap *model.AccountSnapshot) error
}

// Gateway is the slice of the server API the orchestrator depends on.
type Gateway interface {
	SubmitTransfer(ctx context.Context, t *model.Transfer) (*model.Transfer, error)
	SyncTransfers(ctx context.Context, transfers []model.Transfer) ([]model.BatchResult, error)
	GetSnapshot(ctx context.Context) (*model.AccountSnapshot, error)
}

// Report summarizes one drain pass.
type Report struct {
	Submitted  int
	Completed  int
	Failed     int
	Retained   int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Orchestrator owns the offline queue lifecycle: recording new transfers,
// draining the outbox when connectivity returns and reconciling results back
// into the cache. At most one drain runs at a time.
type Orchestrator struct {
	store    Store
	gateway  Gateway
	notifier *Notifier
	draining atomic.Bool
}

func NewOrchestrator(store Store, gateway Gateway, notifier *Notifier) *Orchestrator {
	return &Orchestrator{store: store, gateway: gateway, notifier: notifier}
}

// Submit records a transfer locally and, when online, pushes it to the server
// right away. Offline, or when the network fails mid-flight, the transfer is
// queued for the next drain under its original id.
func (o *Orchestrator) Submit(ctx context.Context, t *model.Transfer, online bool) (*model.Transfer, error) {
	t.Offline = !online
	if err := o.store.SaveTransfer(ctx, t); err != nil {
		return nil, err
	}
	if err := o.store.ApplyOptimisticDebit(ctx, t.FromAccountID, t.Amount); err != nil && err != cache.ErrNotFound {
		return nil, err
	}

	if !online {
		return t, o.enqueue(ctx, t)
	}

	executed, err := o.gateway.SubmitTransfer(ctx, t)
	if err != nil {
		var transportErr *api.TransportError
		if errors.As(err, &transportErr) {
			logger.Log.WithField("transfer_id", t.ID).Warnf("Submission interrupted, queuing for retry: %v", err)
			t.Offline = true
			if saveErr := o.store.SaveTransfer(ctx, t); saveErr != nil {
				return nil, saveErr
			}
			return t, o.enqueue(ctx, t)
		}
		if statusErr := o.store.UpdateStatus(ctx, t.ID, model.StatusFailed); statusErr != nil {
			logger.Log.WithField("transfer_id", t.ID).Errorf("Could not record rejection: %v", statusErr)
		}
		return nil, err
	}
	if err := o.store.SaveTransfer(ctx, executed); err != nil {
		return nil, err
	}
	return executed, nil
}

func (o *Orchestrator) enqueue(ctx context.Context, t *model.Transfer) error {
	return o.store.Enqueue(ctx, model.OutboxEntry{
		TransferID: t.ID,
		Payload:    *t,
		CreatedAt:  t.CreatedAt,
	})
}

// Cancel withdraws a transfer that is still waiting in the outbox. Once an
// entry has been submitted its fate belongs to the server.
func (o *Orchestrator) Cancel(ctx context.Context, transferID string) error {
	if o.draining.Load() {
		return ErrDrainInProgress
	}
	entries, err := o.store.DrainableEntries(ctx)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.TransferID != transferID {
			continue
		}
		if err := o.store.Remove(ctx, []string{transferID}); err != nil {
			return err
		}
		return o.store.UpdateStatus(ctx, transferID, model.StatusFailed)
	}
	return ErrNotQueued
}

// Drain submits every queued transfer oldest first and applies the per-item
// results. Transport failures keep entries queued with a bumped attempt
// counter; definitive results remove them.
func (o *Orchestrator) Drain(ctx context.Context) (*Report, error) {
	if !o.draining.CompareAndSwap(false, true) {
		return nil, ErrDrainInProgress
	}
	defer o.draining.Store(false)

	report := &Report{StartedAt: time.Now().UTC()}

	entries, err := o.store.DrainableEntries(ctx)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		report.FinishedAt = time.Now().UTC()
		return report, nil
	}

	o.notifier.Publish(Event{Type: EventSyncStarted})
	report.Submitted = len(entries)

	transfers := make([]model.Transfer, 0, len(entries))
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		transfers = append(transfers, entry.Payload)
		ids = append(ids, entry.TransferID)
	}

	results, err := o.gateway.SyncTransfers(ctx, transfers)
	if err != nil {
		report.Retained = len(entries)
		report.FinishedAt = time.Now().UTC()
		if attemptErr := o.store.IncrementAttempts(ctx, ids); attemptErr != nil {
			logger.Log.Errorf("Could not bump outbox attempts: %v", attemptErr)
		}
		o.notifier.Publish(Event{Type: EventSyncFailed, Report: report, Err: err})
		return report, err
	}

	byID := make(map[string]model.BatchResult, len(results))
	for _, r := range results {
		byID[r.ID] = r
	}

	var unresolved []string
	for _, entry := range entries {
		result, ok := byID[entry.TransferID]
		if !ok {
			unresolved = append(unresolved, entry.TransferID)
			report.Retained++
			continue
		}
		switch result.Status {
		case model.BatchSuccess:
			report.Completed++
			if err := o.store.UpdateStatus(ctx, entry.TransferID, model.StatusCompleted); err != nil {
				logger.Log.WithField("transfer_id", entry.TransferID).Errorf("Could not mark completed: %v", err)
			}
		default:
			report.Failed++
			logger.Log.WithField("transfer_id", entry.TransferID).Infof("Transfer rejected by server: %s", result.Error)
			if err := o.store.UpdateStatus(ctx, entry.TransferID, model.StatusFailed); err != nil {
				logger.Log.WithField("transfer_id", entry.TransferID).Errorf("Could not mark failed: %v", err)
			}
		}
		if err := o.store.Remove(ctx, []string{entry.TransferID}); err != nil {
			logger.Log.WithField("transfer_id", entry.TransferID).Errorf("Could not remove outbox entry: %v", err)
		}
	}
	if len(unresolved) > 0 {
		if err := o.store.IncrementAttempts(ctx, unresolved); err != nil {
			logger.Log.Errorf("Could not bump outbox attempts: %v", err)
		}
	}

	o.refreshSnapshot(ctx)

	report.FinishedAt = time.Now().UTC()
	o.notifier.Publish(Event{Type: EventSyncCompleted, Report: report})
	return report, nil
}

// refreshSnapshot replaces the cached balances with the server's view after a
// drain so projections restart from confirmed figures.
func (o *Orchestrator) refreshSnapshot(ctx context.Context) {
	snap, err := o.gateway.GetSnapshot(ctx)
	if err != nil {
		logger.Log.Warnf("Could not refresh account snapshot after drain: %v", err)
		return
	}
	if err := o.store.SaveSnapshot(ctx, snap); err != nil {
		logger.Log.Errorf("Could not persist refreshed snapshot: %v", err)
	}
}

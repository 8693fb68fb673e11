package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go-bank-sync/logger"
	"go-bank-sync/model"
)

// storedTransfer is the cache envelope for a transfer. Identity, status and
// timestamps stay in the clear so records can be filtered and ordered without
// decryption; everything money-related lives in the sealed blob.
type storedTransfer struct {
	ID              string               `json:"id"`
	Status          model.TransferStatus `json:"status"`
	Kind            model.TransferKind   `json:"kind"`
	Offline         bool                 `json:"offline"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
	ClientTimestamp time.Time            `json:"client_timestamp"`
	Sealed          string               `json:"sealed"`
}

type sensitiveFields struct {
	FromAccountID   string `json:"from_account_id"`
	ToAccountID     string `json:"to_account_id,omitempty"`
	ToAccountNumber string `json:"to_account_number"`
	ToRoutingCode   string `json:"to_routing_code"`
	ToBranch        string `json:"to_branch"`
	Amount          int64  `json:"amount"`
	Description     string `json:"description,omitempty"`
	SenderPIN       string `json:"pin,omitempty"`
}

type storedOutboxEntry struct {
	TransferID string    `json:"transfer_id"`
	Attempts   int       `json:"attempts"`
	Priority   int       `json:"priority"`
	CreatedAt  time.Time `json:"created_at"`
	Sealed     string    `json:"sealed"`
}

// CachedUser is the locally persisted account snapshot. Each account carries
// both the last server-confirmed balance and the projection that absorbs
// optimistic debits for queued transfers.
type CachedUser struct {
	ID          string                `json:"id"`
	PhoneNumber string                `json:"phoneNumber"`
	Accounts    []model.CachedAccount `json:"accounts"`
	RefreshedAt time.Time             `json:"refreshedAt"`
}

// LedgerCache is the device-side ledger store: transfer records, the offline
// outbox and the account snapshot, all keyed per owner so several identities
// can share one backend.
type LedgerCache struct {
	kv     KV
	cipher *Cipher
	owner  string
}

func NewLedgerCache(kv KV, cipher *Cipher, owner string) *LedgerCache {
	return &LedgerCache{kv: kv, cipher: cipher, owner: owner}
}

func (c *LedgerCache) transfersKey() string { return fmt.Sprintf("ledger:%s:transfers", c.owner) }
func (c *LedgerCache) outboxKey() string    { return fmt.Sprintf("ledger:%s:outbox", c.owner) }
func (c *LedgerCache) snapshotKey() string  { return fmt.Sprintf("ledger:%s:snapshot", c.owner) }

func (c *LedgerCache) sealTransfer(t *model.Transfer) (string, error) {
	plain, err := json.Marshal(sensitiveFields{
		FromAccountID:   t.FromAccountID,
		ToAccountID:     t.ToAccountID,
		ToAccountNumber: t.ToAccountNumber,
		ToRoutingCode:   t.ToRoutingCode,
		ToBranch:        t.ToBranch,
		Amount:          t.Amount,
		Description:     t.Description,
		SenderPIN:       t.SenderPIN,
	})
	if err != nil {
		return "", err
	}
	return c.cipher.Seal(plain)
}

func (c *LedgerCache) openTransfer(rec storedTransfer) (model.Transfer, error) {
	plain, err := c.cipher.Open(rec.Sealed)
	if err != nil {
		return model.Transfer{}, err
	}
	var s sensitiveFields
	if err := json.Unmarshal(plain, &s); err != nil {
		return model.Transfer{}, err
	}
	return model.Transfer{
		ID:              rec.ID,
		FromAccountID:   s.FromAccountID,
		ToAccountID:     s.ToAccountID,
		ToAccountNumber: s.ToAccountNumber,
		ToRoutingCode:   s.ToRoutingCode,
		ToBranch:        s.ToBranch,
		Amount:          s.Amount,
		Kind:            rec.Kind,
		Description:     s.Description,
		SenderPIN:       s.SenderPIN,
		Status:          rec.Status,
		Offline:         rec.Offline,
		CreatedAt:       rec.CreatedAt,
		UpdatedAt:       rec.UpdatedAt,
		ClientTimestamp: rec.ClientTimestamp,
	}, nil
}

// SaveTransfer writes or replaces a transfer record.
func (c *LedgerCache) SaveTransfer(ctx context.Context, t *model.Transfer) error {
	sealed, err := c.sealTransfer(t)
	if err != nil {
		return fmt.Errorf("could not seal transfer %s: %w", t.ID, err)
	}
	rec, err := json.Marshal(storedTransfer{
		ID:              t.ID,
		Status:          t.Status,
		Kind:            t.Kind,
		Offline:         t.Offline,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
		ClientTimestamp: t.ClientTimestamp,
		Sealed:          sealed,
	})
	if err != nil {
		return err
	}
	return c.kv.HSet(ctx, c.transfersKey(), t.ID, string(rec))
}

// GetTransfer returns a single decrypted transfer record.
func (c *LedgerCache) GetTransfer(ctx context.Context, id string) (*model.Transfer, error) {
	raw, err := c.kv.HGet(ctx, c.transfersKey(), id)
	if err != nil {
		return nil, err
	}
	var rec storedTransfer
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, err
	}
	t, err := c.openTransfer(rec)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTransfers returns decrypted transfers newest first, optionally filtered
// by status. An empty status returns everything.
func (c *LedgerCache) ListTransfers(ctx context.Context, status model.TransferStatus) ([]model.Transfer, error) {
	raw, err := c.kv.HGetAll(ctx, c.transfersKey())
	if err != nil {
		return nil, err
	}
	transfers := make([]model.Transfer, 0, len(raw))
	for id, val := range raw {
		var rec storedTransfer
		if err := json.Unmarshal([]byte(val), &rec); err != nil {
			logger.Log.WithField("transfer_id", id).Warnf("Skipping corrupt cache record: %v", err)
			continue
		}
		if status != "" && rec.Status != status {
			continue
		}
		t, err := c.openTransfer(rec)
		if err != nil {
			return nil, fmt.Errorf("could not open transfer %s: %w", id, err)
		}
		transfers = append(transfers, t)
	}
	sort.Slice(transfers, func(i, j int) bool {
		return transfers[i].CreatedAt.After(transfers[j].CreatedAt)
	})
	return transfers, nil
}

// UpdateStatus moves a transfer to a new status without reopening the sealed
// blob. Returns ErrNotFound when no record exists for the id.
func (c *LedgerCache) UpdateStatus(ctx context.Context, id string, status model.TransferStatus) error {
	raw, err := c.kv.HGet(ctx, c.transfersKey(), id)
	if err != nil {
		return err
	}
	var rec storedTransfer
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return err
	}
	rec.Status = status
	rec.UpdatedAt = time.Now().UTC()
	updated, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return c.kv.HSet(ctx, c.transfersKey(), id, string(updated))
}

// Enqueue adds a transfer to the offline outbox for a later drain.
func (c *LedgerCache) Enqueue(ctx context.Context, entry model.OutboxEntry) error {
	plain, err := json.Marshal(entry.Payload)
	if err != nil {
		return err
	}
	sealed, err := c.cipher.Seal(plain)
	if err != nil {
		return fmt.Errorf("could not seal outbox entry %s: %w", entry.TransferID, err)
	}
	rec, err := json.Marshal(storedOutboxEntry{
		TransferID: entry.TransferID,
		Attempts:   entry.Attempts,
		Priority:   entry.Priority,
		CreatedAt:  entry.CreatedAt,
		Sealed:     sealed,
	})
	if err != nil {
		return err
	}
	return c.kv.HSet(ctx, c.outboxKey(), entry.TransferID, string(rec))
}

// DrainableEntries returns all queued entries oldest first, which is the
// submission order a drain must preserve.
func (c *LedgerCache) DrainableEntries(ctx context.Context) ([]model.OutboxEntry, error) {
	raw, err := c.kv.HGetAll(ctx, c.outboxKey())
	if err != nil {
		return nil, err
	}
	entries := make([]model.OutboxEntry, 0, len(raw))
	for id, val := range raw {
		var rec storedOutboxEntry
		if err := json.Unmarshal([]byte(val), &rec); err != nil {
			logger.Log.WithField("transfer_id", id).Warnf("Skipping corrupt outbox record: %v", err)
			continue
		}
		plain, err := c.cipher.Open(rec.Sealed)
		if err != nil {
			return nil, fmt.Errorf("could not open outbox entry %s: %w", id, err)
		}
		var payload model.Transfer
		if err := json.Unmarshal(plain, &payload); err != nil {
			return nil, err
		}
		entries = append(entries, model.OutboxEntry{
			TransferID: rec.TransferID,
			Payload:    payload,
			Attempts:   rec.Attempts,
			Priority:   rec.Priority,
			CreatedAt:  rec.CreatedAt,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	return entries, nil
}

// Remove deletes outbox entries one id at a time so a failure partway leaves
// the unremoved entries queued rather than dropping the whole batch.
func (c *LedgerCache) Remove(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if err := c.kv.HDel(ctx, c.outboxKey(), id); err != nil {
			return fmt.Errorf("could not remove outbox entry %s: %w", id, err)
		}
	}
	return nil
}

// IncrementAttempts bumps the retry counter on the given outbox entries.
func (c *LedgerCache) IncrementAttempts(ctx context.Context, ids []string) error {
	for _, id := range ids {
		raw, err := c.kv.HGet(ctx, c.outboxKey(), id)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return err
		}
		var rec storedOutboxEntry
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return err
		}
		rec.Attempts++
		updated, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := c.kv.HSet(ctx, c.outboxKey(), id, string(updated)); err != nil {
			return err
		}
	}
	return nil
}

// SaveSnapshot replaces the cached account snapshot with a server-confirmed
// one. Both balance columns reset to the authoritative figure; any projection
// from queued transfers is recomputed by the caller afterwards.
func (c *LedgerCache) SaveSnapshot(ctx context.Context, snap *model.AccountSnapshot) error {
	accounts := make([]model.CachedAccount, 0, len(snap.BankAccounts))
	for _, a := range snap.BankAccounts {
		accounts = append(accounts, model.CachedAccount{
			ID:                   a.ID,
			BankName:             a.BankName,
			AccountNumber:        a.AccountNumber,
			RoutingCode:          a.RoutingCode,
			Branch:               a.Branch,
			AuthoritativeBalance: a.Balance,
			ProjectedBalance:     a.Balance,
		})
	}
	user := CachedUser{
		ID:          snap.ID,
		PhoneNumber: snap.PhoneNumber,
		Accounts:    accounts,
		RefreshedAt: time.Now().UTC(),
	}
	plain, err := json.Marshal(user)
	if err != nil {
		return err
	}
	sealed, err := c.cipher.Seal(plain)
	if err != nil {
		return fmt.Errorf("could not seal snapshot: %w", err)
	}
	return c.kv.HSet(ctx, c.snapshotKey(), "user", sealed)
}

// Snapshot returns the cached user snapshot, or ErrNotFound when the device
// has never synced.
func (c *LedgerCache) Snapshot(ctx context.Context) (*CachedUser, error) {
	sealed, err := c.kv.HGet(ctx, c.snapshotKey(), "user")
	if err != nil {
		return nil, err
	}
	plain, err := c.cipher.Open(sealed)
	if err != nil {
		return nil, fmt.Errorf("could not open snapshot: %w", err)
	}
	var user CachedUser
	if err := json.Unmarshal(plain, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ApplyOptimisticDebit lowers the projected balance of an account by the
// given amount. The authoritative balance is never touched here.
func (c *LedgerCache) ApplyOptimisticDebit(ctx context.Context, accountID string, amount int64) error {
	user, err := c.Snapshot(ctx)
	if err != nil {
		return err
	}
	found := false
	for i := range user.Accounts {
		if user.Accounts[i].ID == accountID {
			user.Accounts[i].ProjectedBalance -= amount
			found = true
			break
		}
	}
	if !found {
		return ErrNotFound
	}
	plain, err := json.Marshal(user)
	if err != nil {
		return err
	}
	sealed, err := c.cipher.Seal(plain)
	if err != nil {
		return fmt.Errorf("could not seal snapshot: %w", err)
	}
	return c.kv.HSet(ctx, c.snapshotKey(), "user", sealed)
}

package repository

import (
	"database/sql"
	"go-bank-sync/logger"
	"go-bank-sync/model"

	"github.com/sirupsen/logrus"
)

// ILedgerRepository defines the contract for ledger row operations.
// The ledger row's primary key is the client-assigned transfer id.
type ILedgerRepository interface {
	GetByID(tx *sql.Tx, id string) (*model.Transfer, error)
	UpsertCompleted(tx *sql.Tx, transfer *model.Transfer) error
	ListByUser(userID string, limit, offset int) ([]*model.HistoryItem, error)
	CountByUser(userID string) (int, error)
}

type LedgerRepository struct {
	DB *sql.DB
}

func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{DB: db}
}

// GetByID loads the ledger row for a transfer id inside the engine's
// transaction. Returns sql.ErrNoRows when the id has never been applied.
func (r *LedgerRepository) GetByID(tx *sql.Tx, id string) (*model.Transfer, error) {
	t := &model.Transfer{}
	var description sql.NullString
	var clientTS sql.NullTime
	query := `SELECT id, from_account_id, to_account_id, amount, kind, description, status, offline, created_at, client_timestamp
		FROM transfers WHERE id = $1`
	err := tx.QueryRow(query, id).Scan(&t.ID, &t.FromAccountID, &t.ToAccountID, &t.Amount,
		&t.Kind, &description, &t.Status, &t.Offline, &t.CreatedAt, &clientTS)
	if err != nil {
		return nil, err
	}
	t.Description = description.String
	if clientTS.Valid {
		t.ClientTimestamp = clientTS.Time
	}
	return t, nil
}

// UpsertCompleted inserts or replaces the ledger row for the transfer's id
// with status completed. The upsert-by-id is the idempotency mechanism for
// retried sync batches: a resubmitted id overwrites rather than duplicates.
func (r *LedgerRepository) UpsertCompleted(tx *sql.Tx, transfer *model.Transfer) error {
	log := logger.Log.WithFields(logrus.Fields{
		"transfer_id":     transfer.ID,
		"from_account_id": transfer.FromAccountID,
		"to_account_id":   transfer.ToAccountID,
		"amount":          transfer.Amount,
	})
	log.Info("Executing query to upsert completed ledger row")

	query := `INSERT INTO transfers (id, from_account_id, to_account_id, amount, kind, description, status, offline, client_timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			from_account_id = EXCLUDED.from_account_id,
			to_account_id = EXCLUDED.to_account_id,
			amount = EXCLUDED.amount,
			kind = EXCLUDED.kind,
			description = EXCLUDED.description,
			status = EXCLUDED.status,
			offline = EXCLUDED.offline,
			client_timestamp = EXCLUDED.client_timestamp
		RETURNING created_at`
	err := tx.QueryRow(query, transfer.ID, transfer.FromAccountID, transfer.ToAccountID,
		transfer.Amount, transfer.Kind, transfer.Description, model.StatusCompleted,
		transfer.Offline, transfer.ClientTimestamp).Scan(&transfer.CreatedAt)
	if err != nil {
		log.WithError(err).Error("Failed to execute ledger upsert query")
		return err
	}
	transfer.Status = model.StatusCompleted
	return nil
}

// ListByUser retrieves a page of transfer history touching any of the
// user's accounts, newest first, joined with counterparty display data.
func (r *LedgerRepository) ListByUser(userID string, limit, offset int) ([]*model.HistoryItem, error) {
	log := logger.Log.WithField("user_id", userID)
	log.Info("Executing query to get transfer history")

	query := `
		SELECT
			t.id, t.from_account_id, t.to_account_id, t.amount, t.kind,
			t.description, t.status, t.created_at, t.client_timestamp,
			from_acc.bank_name, from_acc.account_number,
			to_acc.bank_name, to_acc.account_number
		FROM transfers t
		JOIN bank_accounts from_acc ON t.from_account_id = from_acc.id
		JOIN bank_accounts to_acc ON t.to_account_id = to_acc.id
		WHERE from_acc.user_id = $1 OR to_acc.user_id = $1
		ORDER BY t.created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.DB.Query(query, userID, limit, offset)
	if err != nil {
		log.WithError(err).Error("Failed to execute query for transfer history")
		return nil, err
	}
	defer rows.Close()

	var items []*model.HistoryItem
	for rows.Next() {
		var item model.HistoryItem
		var clientTS sql.NullTime
		if err := rows.Scan(&item.ID, &item.FromAccountID, &item.ToAccountID, &item.Amount,
			&item.Kind, &item.Description, &item.Status, &item.CreatedAt, &clientTS,
			&item.FromBankName, &item.FromAccountNumber,
			&item.ToBankName, &item.ToAccountNumber); err != nil {
			log.WithError(err).Error("Failed to scan history row")
			return nil, err
		}
		if clientTS.Valid {
			item.ClientTimestamp = clientTS.Time
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}

func (r *LedgerRepository) CountByUser(userID string) (int, error) {
	var total int
	query := `
		SELECT COUNT(t.id)
		FROM transfers t
		JOIN bank_accounts from_acc ON t.from_account_id = from_acc.id
		JOIN bank_accounts to_acc ON t.to_account_id = to_acc.id
		WHERE from_acc.user_id = $1 OR to_acc.user_id = $1`
	err := r.DB.QueryRow(query, userID).Scan(&total)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to count transfer history rows")
		return 0, err
	}
	return total, nil
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"go-bank-sync/logger"
	"go-bank-sync/metrics"
	"go-bank-sync/model"
	"go-bank-sync/repository"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

var (
	ErrUnauthorized      = errors.New("unauthorized sender account")
	ErrInvalidPIN        = errors.New("invalid sender PIN")
	ErrInsufficientFunds = errors.New("insufficient funds in sender account")
	ErrRecipientNotFound = errors.New("recipient bank account not found with provided details")
	ErrSelfTransfer      = errors.New("cannot transfer to the same account")
	ErrInvalidAmount     = errors.New("transfer amount must be positive")
	ErrMissingTransferID = errors.New("missing transfer id")
)

// rejectionErrors are business-rule outcomes: terminal, safe to report
// per item, never retried by the engine.
var rejectionErrors = []error{
	ErrUnauthorized,
	ErrInvalidPIN,
	ErrInsufficientFunds,
	ErrRecipientNotFound,
	ErrSelfTransfer,
	ErrInvalidAmount,
	ErrMissingTransferID,
}

func isRejection(err error) bool {
	for _, rejection := range rejectionErrors {
		if errors.Is(err, rejection) {
			return true
		}
	}
	return false
}

// LedgerService is the authoritative balance-transfer executor. All balance
// mutation in the system happens inside Execute's transaction.
type LedgerService struct {
	db          *sql.DB
	accountRepo repository.IAccountRepository
	ledgerRepo  repository.ILedgerRepository
}

func NewLedgerService(db *sql.DB, accountRepo repository.IAccountRepository, ledgerRepo repository.ILedgerRepository) *LedgerService {
	return &LedgerService{
		db:          db,
		accountRepo: accountRepo,
		ledgerRepo:  ledgerRepo,
	}
}

// Execute runs one transfer as a single atomic unit: duplicate short-circuit,
// recipient resolution, row locks on both accounts, ownership + PIN + funds
// verification, debit + credit, ledger upsert. Either every step commits or
// the balances are untouched.
//
// A transfer id that already reached a terminal state is echoed back without
// re-mutating balances; the balance update itself is a blind add/subtract, so
// this check must stay the first step of the unit.
func (s *LedgerService) Execute(ctx context.Context, userID string, t *model.Transfer) (*model.Transfer, error) {
	log := logger.Log.WithFields(logrus.Fields{
		"transfer_id":     t.ID,
		"from_account_id": t.FromAccountID,
		"amount":          t.Amount,
		"user_id":         userID,
	})
	log.Info("Starting transfer execution")

	// Batch items bypass HTTP payload validation, so the engine enforces the
	// two checks that protect the ledger itself.
	if t.ID == "" {
		return nil, ErrMissingTransferID
	}
	if t.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	timer := prometheus.NewTimer(metrics.TransferDuration)
	defer timer.ObserveDuration()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := s.ledgerRepo.GetByID(tx, t.ID)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("could not check for existing ledger row: %w", err)
	}
	if existing != nil && existing.Status.Terminal() {
		log.Info("Duplicate transfer id already in terminal state, echoing recorded result")
		metrics.TransfersTotal.WithLabelValues("duplicate").Inc()
		return existing, nil
	}

	toAccountID, err := s.accountRepo.ResolveRecipient(tx, t.ToAccountNumber, t.ToRoutingCode, t.ToBranch)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRecipientNotFound
		}
		return nil, fmt.Errorf("could not resolve recipient: %w", err)
	}

	if t.FromAccountID == toAccountID {
		return nil, ErrSelfTransfer
	}

	// Lock both rows in lexical id order so two concurrent transfers between
	// the same pair cannot deadlock.
	firstID, secondID := t.FromAccountID, toAccountID
	if firstID > secondID {
		firstID, secondID = secondID, firstID
	}

	firstAccount, err := s.accountRepo.GetAccountForUpdate(tx, firstID)
	if err != nil {
		return nil, lockError(err, firstID, t.FromAccountID)
	}
	secondAccount, err := s.accountRepo.GetAccountForUpdate(tx, secondID)
	if err != nil {
		return nil, lockError(err, secondID, t.FromAccountID)
	}

	fromAccount, toAccount := firstAccount, secondAccount
	if fromAccount.ID != t.FromAccountID {
		fromAccount, toAccount = secondAccount, firstAccount
	}

	if fromAccount.UserID != userID {
		return nil, ErrUnauthorized
	}
	if !CheckPINHash(t.SenderPIN, fromAccount.PINHash) {
		return nil, ErrInvalidPIN
	}
	if fromAccount.Balance < t.Amount {
		return nil, ErrInsufficientFunds
	}

	if err := s.accountRepo.UpdateAccountBalance(tx, fromAccount.ID, fromAccount.Balance-t.Amount); err != nil {
		return nil, fmt.Errorf("could not update sender balance: %w", err)
	}
	if err := s.accountRepo.UpdateAccountBalance(tx, toAccount.ID, toAccount.Balance+t.Amount); err != nil {
		return nil, fmt.Errorf("could not update recipient balance: %w", err)
	}

	t.ToAccountID = toAccountID
	if err := s.ledgerRepo.UpsertCompleted(tx, t); err != nil {
		return nil, fmt.Errorf("could not upsert ledger row: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("could not commit transaction: %w", err)
	}

	metrics.TransfersTotal.WithLabelValues("completed").Inc()
	log.Info("Transfer completed successfully")

	t.SenderPIN = ""
	return t, nil
}

// lockError maps a row-lock miss to the right rejection: a vanished sender is
// reported as unauthorized, a vanished recipient as not found.
func lockError(err error, lockedID, fromAccountID string) error {
	if err != sql.ErrNoRows {
		return fmt.Errorf("could not lock account row: %w", err)
	}
	if lockedID == fromAccountID {
		return ErrUnauthorized
	}
	return ErrRecipientNotFound
}

// ExecuteBatch applies a sync batch as a sequence of independent transfers.
// There is deliberately no transaction spanning items: one entry's rejection
// must not block or roll back its siblings, so partial-batch success is
// expected and normal. Results are keyed by transfer id.
func (s *LedgerService) ExecuteBatch(ctx context.Context, userID string, transfers []model.Transfer) []model.BatchResult {
	metrics.SyncBatchSize.Observe(float64(len(transfers)))

	results := make([]model.BatchResult, 0, len(transfers))
	anyFailed := false

	for i := range transfers {
		t := transfers[i]
		_, err := s.Execute(ctx, userID, &t)
		switch {
		case err == nil:
			results = append(results, model.BatchResult{ID: t.ID, Status: model.BatchSuccess})
		case isRejection(err):
			metrics.TransfersTotal.WithLabelValues("failed").Inc()
			results = append(results, model.BatchResult{ID: t.ID, Status: model.BatchFailed, Error: err.Error()})
			anyFailed = true
		default:
			// Infra failure scoped to this item. The item's own transaction
			// has rolled back; siblings proceed.
			logger.Log.WithError(err).WithField("transfer_id", t.ID).Error("Transfer failed with internal error during sync")
			results = append(results, model.BatchResult{ID: t.ID, Status: model.BatchFailed, Error: "internal error"})
			anyFailed = true
		}
	}

	if anyFailed {
		metrics.SyncBatchesTotal.WithLabelValues("partial").Inc()
	} else {
		metrics.SyncBatchesTotal.WithLabelValues("ok").Inc()
	}
	return results
}

// History returns one page of the user's transfer history plus a flag for
// further pages.
func (s *LedgerService) History(ctx context.Context, userID string, page, limit int) (*model.HistoryResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	total, err := s.ledgerRepo.CountByUser(userID)
	if err != nil {
		return nil, err
	}

	items, err := s.ledgerRepo.ListByUser(userID, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*model.HistoryItem{}
	}

	return &model.HistoryResponse{
		Transactions: items,
		HasMore:      page*limit < total,
	}, nil
}

package repository

import (
	"database/sql"
	"go-bank-sync/logger"
	"go-bank-sync/model"

	"github.com/sirupsen/logrus"
)

// IAccountRepository defines the contract for bank account database
// operations. The *sql.Tx variants participate in the ledger engine's
// per-transfer transaction.
type IAccountRepository interface {
	CreateAccount(account *model.BankAccount) error
	GetAccountsByUserID(userID string) ([]*model.BankAccount, error)
	LookupByNumber(accountNumber, routingCode, branch string) (*model.BankAccount, error)
	ResolveRecipient(tx *sql.Tx, accountNumber, routingCode, branch string) (string, error)
	GetAccountForUpdate(tx *sql.Tx, accountID string) (*model.BankAccount, error)
	UpdateAccountBalance(tx *sql.Tx, accountID string, newBalance int64) error
}

type AccountRepository struct {
	DB *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{DB: db}
}

// CreateAccount links a new bank account. A unique violation on
// account_number propagates as a *pq.Error for the service to classify.
func (r *AccountRepository) CreateAccount(account *model.BankAccount) error {
	log := logger.Log.WithFields(logrus.Fields{
		"user_id":        account.UserID,
		"account_number": account.AccountNumber,
		"bank_name":      account.BankName,
	})
	log.Info("Executing query to link a new bank account")

	query := `INSERT INTO bank_accounts (id, user_id, bank_name, account_number, routing_code, branch, pin_hash, balance)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING created_at`
	err := r.DB.QueryRow(query, account.ID, account.UserID, account.BankName, account.AccountNumber,
		account.RoutingCode, account.Branch, account.PINHash, account.Balance).Scan(&account.CreatedAt)
	if err != nil {
		log.WithError(err).Error("Failed to execute link account query")
		return err
	}
	return nil
}

// GetAccountsByUserID retrieves all linked accounts for a specific user.
func (r *AccountRepository) GetAccountsByUserID(userID string) ([]*model.BankAccount, error) {
	log := logger.Log.WithField("user_id", userID)
	log.Info("Executing query to get accounts by user ID")

	query := `SELECT id, user_id, bank_name, account_number, routing_code, branch, balance, created_at
		FROM bank_accounts WHERE user_id = $1 ORDER BY created_at`
	rows, err := r.DB.Query(query, userID)
	if err != nil {
		log.WithError(err).Error("Failed to execute query for accounts by user ID")
		return nil, err
	}
	defer rows.Close()

	var accounts []*model.BankAccount
	for rows.Next() {
		var acc model.BankAccount
		if err := rows.Scan(&acc.ID, &acc.UserID, &acc.BankName, &acc.AccountNumber,
			&acc.RoutingCode, &acc.Branch, &acc.Balance, &acc.CreatedAt); err != nil {
			log.WithError(err).Error("Failed to scan account row")
			return nil, err
		}
		accounts = append(accounts, &acc)
	}
	return accounts, rows.Err()
}

// LookupByNumber finds an account by its public identifying tuple. It never
// exposes the pin hash or owner.
func (r *AccountRepository) LookupByNumber(accountNumber, routingCode, branch string) (*model.BankAccount, error) {
	account := &model.BankAccount{}
	query := `SELECT id, bank_name, account_number, routing_code, branch
		FROM bank_accounts WHERE account_number = $1 AND routing_code = $2 AND branch = $3`
	err := r.DB.QueryRow(query, accountNumber, routingCode, branch).Scan(
		&account.ID, &account.BankName, &account.AccountNumber, &account.RoutingCode, &account.Branch)
	if err != nil {
		if err != sql.ErrNoRows {
			logger.Log.WithError(err).Error("Failed to execute account lookup query")
		}
		return nil, err
	}
	return account, nil
}

// ResolveRecipient resolves the recipient tuple to an account id inside the
// ledger engine's transaction. The engine does not trust any client-supplied
// recipient id.
func (r *AccountRepository) ResolveRecipient(tx *sql.Tx, accountNumber, routingCode, branch string) (string, error) {
	var id string
	query := `SELECT id FROM bank_accounts WHERE account_number = $1 AND routing_code = $2 AND branch = $3`
	err := tx.QueryRow(query, accountNumber, routingCode, branch).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *AccountRepository) GetAccountForUpdate(tx *sql.Tx, accountID string) (*model.BankAccount, error) {
	log := logger.Log.WithField("account_id", accountID)

	account := &model.BankAccount{}
	query := `SELECT id, user_id, balance, pin_hash FROM bank_accounts WHERE id = $1 FOR UPDATE`
	err := tx.QueryRow(query, accountID).Scan(&account.ID, &account.UserID, &account.Balance, &account.PINHash)
	if err != nil {
		if err == sql.ErrNoRows {
			log.Info("Account not found for update")
		} else {
			log.WithError(err).Error("Failed to execute get account for update query")
		}
		return nil, err
	}
	return account, nil
}

func (r *AccountRepository) UpdateAccountBalance(tx *sql.Tx, accountID string, newBalance int64) error {
	log := logger.Log.WithFields(logrus.Fields{
		"account_id":  accountID,
		"new_balance": newBalance,
	})

	query := `UPDATE bank_accounts SET balance = $1 WHERE id = $2`
	_, err := tx.Exec(query, newBalance, accountID)
	if err != nil {
		log.WithError(err).Error("Failed to execute update account balance query")
		return err
	}
	return nil
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"go-bank-sync/config"
	"go-bank-sync/logger"
	"go-bank-sync/model"
	"os"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// TestMain runs setup before any tests in this package are executed.
func TestMain(m *testing.M) {
	logger.Init()
	config.AppConfig.JWT.SecretKey = "test-secret"
	os.Exit(m.Run())
}

// MockAccountRepository is a mock for IAccountRepository.
type MockAccountRepository struct{ mock.Mock }

func (m *MockAccountRepository) CreateAccount(account *model.BankAccount) error {
	args := m.Called(account)
	return args.Error(0)
}

func (m *MockAccountRepository) GetAccountsByUserID(userID string) ([]*model.BankAccount, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.BankAccount), args.Error(1)
}

func (m *MockAccountRepository) LookupByNumber(accountNumber, routingCode, branch string) (*model.BankAccount, error) {
	args := m.Called(accountNumber, routingCode, branch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.BankAccount), args.Error(1)
}

func (m *MockAccountRepository) ResolveRecipient(tx *sql.Tx, accountNumber, routingCode, branch string) (string, error) {
	args := m.Called(tx, accountNumber, routingCode, branch)
	return args.String(0), args.Error(1)
}

func (m *MockAccountRepository) GetAccountForUpdate(tx *sql.Tx, accountID string) (*model.BankAccount, error) {
	args := m.Called(tx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.BankAccount), args.Error(1)
}

func (m *MockAccountRepository) UpdateAccountBalance(tx *sql.Tx, accountID string, newBalance int64) error {
	args := m.Called(tx, accountID, newBalance)
	return args.Error(0)
}

// MockLedgerRepository is a mock for ILedgerRepository.
type MockLedgerRepository struct{ mock.Mock }

func (m *MockLedgerRepository) GetByID(tx *sql.Tx, id string) (*model.Transfer, error) {
	args := m.Called(tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Transfer), args.Error(1)
}

func (m *MockLedgerRepository) UpsertCompleted(tx *sql.Tx, transfer *model.Transfer) error {
	args := m.Called(tx, transfer)
	return args.Error(0)
}

func (m *MockLedgerRepository) ListByUser(userID string, limit, offset int) ([]*model.HistoryItem, error) {
	args := m.Called(userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.HistoryItem), args.Error(1)
}

func (m *MockLedgerRepository) CountByUser(userID string) (int, error) {
	args := m.Called(userID)
	return args.Int(0), args.Error(1)
}

// newLedgerFixture wires a fresh service with fresh mocks per subtest so
// call-count assertions never bleed between cases.
func newLedgerFixture(t *testing.T) (*LedgerService, sqlmock.Sqlmock, *MockAccountRepository, *MockLedgerRepository) {
	db, dbMock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	accountRepo := new(MockAccountRepository)
	ledgerRepo := new(MockLedgerRepository)
	return NewLedgerService(db, accountRepo, ledgerRepo), dbMock, accountRepo, ledgerRepo
}

func newTestTransfer() *model.Transfer {
	return &model.Transfer{
		ID:              "tx_1700000000000_a1b2c3",
		FromAccountID:   "acc_a",
		ToAccountNumber: "9876543210",
		ToRoutingCode:   "SYNC0001",
		ToBranch:        "Central",
		Amount:          30000,
		Kind:            model.KindTransfer,
		SenderPIN:       "1234",
	}
}

func TestLedgerService_Execute(t *testing.T) {
	ctx := context.Background()
	userID := "user-1"
	pinHash, err := HashPIN("1234")
	assert.NoError(t, err)

	// --- Test Case 1: Successful Transfer ---
	t.Run("success", func(t *testing.T) {
		ledgerService, dbMock, accountRepo, ledgerRepo := newLedgerFixture(t)
		transfer := newTestTransfer()

		fromAccount := &model.BankAccount{ID: "acc_a", UserID: userID, Balance: 100000, PINHash: pinHash}
		toAccount := &model.BankAccount{ID: "acc_b", UserID: "user-2", Balance: 50000}

		dbMock.ExpectBegin()
		ledgerRepo.On("GetByID", mock.Anything, transfer.ID).Return(nil, sql.ErrNoRows).Once()
		accountRepo.On("ResolveRecipient", mock.Anything, transfer.ToAccountNumber, transfer.ToRoutingCode, transfer.ToBranch).Return("acc_b", nil).Once()
		accountRepo.On("GetAccountForUpdate", mock.Anything, "acc_a").Return(fromAccount, nil).Once()
		accountRepo.On("GetAccountForUpdate", mock.Anything, "acc_b").Return(toAccount, nil).Once()
		accountRepo.On("UpdateAccountBalance", mock.Anything, "acc_a", int64(70000)).Return(nil).Once()
		accountRepo.On("UpdateAccountBalance", mock.Anything, "acc_b", int64(80000)).Return(nil).Once()
		ledgerRepo.On("UpsertCompleted", mock.Anything, transfer).Return(nil).Once()
		dbMock.ExpectCommit()

		executed, err := ledgerService.Execute(ctx, userID, transfer)

		assert.NoError(t, err)
		assert.Equal(t, "acc_b", executed.ToAccountID)
		assert.Empty(t, executed.SenderPIN)
		accountRepo.AssertExpectations(t)
		ledgerRepo.AssertExpectations(t)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	// --- Test Case 2: Lock Order Follows Lexical Ids ---
	t.Run("locks in lexical order when recipient id sorts first", func(t *testing.T) {
		ledgerService, dbMock, accountRepo, ledgerRepo := newLedgerFixture(t)
		transfer := newTestTransfer()
		transfer.FromAccountID = "acc_z"

		fromAccount := &model.BankAccount{ID: "acc_z", UserID: userID, Balance: 100000, PINHash: pinHash}
		toAccount := &model.BankAccount{ID: "acc_b", UserID: "user-2", Balance: 50000}

		dbMock.ExpectBegin()
		ledgerRepo.On("GetByID", mock.Anything, transfer.ID).Return(nil, sql.ErrNoRows).Once()
		accountRepo.On("ResolveRecipient", mock.Anything, transfer.ToAccountNumber, transfer.ToRoutingCode, transfer.ToBranch).Return("acc_b", nil).Once()
		lockOrder := []string{}
		accountRepo.On("GetAccountForUpdate", mock.Anything, "acc_b").Run(func(args mock.Arguments) {
			lockOrder = append(lockOrder, "acc_b")
		}).Return(toAccount, nil).Once()
		accountRepo.On("GetAccountForUpdate", mock.Anything, "acc_z").Run(func(args mock.Arguments) {
			lockOrder = append(lockOrder, "acc_z")
		}).Return(fromAccount, nil).Once()
		accountRepo.On("UpdateAccountBalance", mock.Anything, "acc_z", int64(70000)).Return(nil).Once()
		accountRepo.On("UpdateAccountBalance", mock.Anything, "acc_b", int64(80000)).Return(nil).Once()
		ledgerRepo.On("UpsertCompleted", mock.Anything, transfer).Return(nil).Once()
		dbMock.ExpectCommit()

		_, err := ledgerService.Execute(ctx, userID, transfer)

		assert.NoError(t, err)
		assert.Equal(t, []string{"acc_b", "acc_z"}, lockOrder)
		accountRepo.AssertExpectations(t)
	})

	// --- Test Case 3: Insufficient Funds ---
	t.Run("insufficient funds", func(t *testing.T) {
		ledgerService, dbMock, accountRepo, ledgerRepo := newLedgerFixture(t)
		transfer := newTestTransfer()

		poorAccount := &model.BankAccount{ID: "acc_a", UserID: userID, Balance: 5000, PINHash: pinHash}
		toAccount := &model.BankAccount{ID: "acc_b", UserID: "user-2", Balance: 50000}

		dbMock.ExpectBegin()
		ledgerRepo.On("GetByID", mock.Anything, transfer.ID).Return(nil, sql.ErrNoRows).Once()
		accountRepo.On("ResolveRecipient", mock.Anything, transfer.ToAccountNumber, transfer.ToRoutingCode, transfer.ToBranch).Return("acc_b", nil).Once()
		accountRepo.On("GetAccountForUpdate", mock.Anything, "acc_a").Return(poorAccount, nil).Once()
		accountRepo.On("GetAccountForUpdate", mock.Anything, "acc_b").Return(toAccount, nil).Once()
		dbMock.ExpectRollback()

		_, err := ledgerService.Execute(ctx, userID, transfer)

		assert.ErrorIs(t, err, ErrInsufficientFunds)
		accountRepo.AssertNotCalled(t, "UpdateAccountBalance", mock.Anything, mock.Anything, mock.Anything)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	// --- Test Case 4: Invalid PIN ---
	t.Run("invalid pin", func(t *testing.T) {
		ledgerService, dbMock, accountRepo, ledgerRepo := newLedgerFixture(t)
		transfer := newTestTransfer()
		transfer.SenderPIN = "9999"

		fromAccount := &model.BankAccount{ID: "acc_a", UserID: userID, Balance: 100000, PINHash: pinHash}
		toAccount := &model.BankAccount{ID: "acc_b", UserID: "user-2", Balance: 50000}

		dbMock.ExpectBegin()
		ledgerRepo.On("GetByID", mock.Anything, transfer.ID).Return(nil, sql.ErrNoRows).Once()
		accountRepo.On("ResolveRecipient", mock.Anything, transfer.ToAccountNumber, transfer.ToRoutingCode, transfer.ToBranch).Return("acc_b", nil).Once()
		accountRepo.On("GetAccountForUpdate", mock.Anything, "acc_a").Return(fromAccount, nil).Once()
		accountRepo.On("GetAccountForUpdate", mock.Anything, "acc_b").Return(toAccount, nil).Once()
		dbMock.ExpectRollback()

		_, err := ledgerService.Execute(ctx, userID, transfer)

		assert.ErrorIs(t, err, ErrInvalidPIN)
		accountRepo.AssertNotCalled(t, "UpdateAccountBalance", mock.Anything, mock.Anything, mock.Anything)
	})

	// --- Test Case 5: Sender Not Owned by Caller ---
	t.Run("unauthorized sender", func(t *testing.T) {
		ledgerService, dbMock, accountRepo, ledgerRepo := newLedgerFixture(t)
		transfer := newTestTransfer()

		foreignAccount := &model.BankAccount{ID: "acc_a", UserID: "someone-else", Balance: 100000, PINHash: pinHash}
		toAccount := &model.BankAccount{ID: "acc_b", UserID: "user-2", Balance: 50000}

		dbMock.ExpectBegin()
		ledgerRepo.On("GetByID", mock.Anything, transfer.ID).Return(nil, sql.ErrNoRows).Once()
		accountRepo.On("ResolveRecipient", mock.Anything, transfer.ToAccountNumber, transfer.ToRoutingCode, transfer.ToBranch).Return("acc_b", nil).Once()
		accountRepo.On("GetAccountForUpdate", mock.Anything, "acc_a").Return(foreignAccount, nil).Once()
		accountRepo.On("GetAccountForUpdate", mock.Anything, "acc_b").Return(toAccount, nil).Once()
		dbMock.ExpectRollback()

		_, err := ledgerService.Execute(ctx, userID, transfer)

		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	// --- Test Case 6: Recipient Not Found ---
	t.Run("recipient not found", func(t *testing.T) {
		ledgerService, dbMock, accountRepo, ledgerRepo := newLedgerFixture(t)
		transfer := newTestTransfer()

		dbMock.ExpectBegin()
		ledgerRepo.On("GetByID", mock.Anything, transfer.ID).Return(nil, sql.ErrNoRows).Once()
		accountRepo.On("ResolveRecipient", mock.Anything, transfer.ToAccountNumber, transfer.ToRoutingCode, transfer.ToBranch).Return("", sql.ErrNoRows).Once()
		dbMock.ExpectRollback()

		_, err := ledgerService.Execute(ctx, userID, transfer)

		assert.ErrorIs(t, err, ErrRecipientNotFound)
	})

	// Recipient resolution precedes the sender-side checks because the lock
	// set must be known before any row is read; a request that is wrong on
	// both counts reports the recipient error.
	t.Run("unknown recipient wins over bad pin", func(t *testing.T) {
		ledgerService, dbMock, accountRepo, ledgerRepo := newLedgerFixture(t)
		transfer := newTestTransfer()
		transfer.SenderPIN = "9999"

		dbMock.ExpectBegin()
		ledgerRepo.On("GetByID", mock.Anything, transfer.ID).Return(nil, sql.ErrNoRows).Once()
		accountRepo.On("ResolveRecipient", mock.Anything, transfer.ToAccountNumber, transfer.ToRoutingCode, transfer.ToBranch).Return("", sql.ErrNoRows).Once()
		dbMock.ExpectRollback()

		_, err := ledgerService.Execute(ctx, userID, transfer)

		assert.ErrorIs(t, err, ErrRecipientNotFound)
		accountRepo.AssertNotCalled(t, "GetAccountForUpdate", mock.Anything, mock.Anything)
	})

	// --- Test Case 7: Self Transfer ---
	t.Run("self transfer", func(t *testing.T) {
		ledgerService, dbMock, accountRepo, ledgerRepo := newLedgerFixture(t)
		transfer := newTestTransfer()

		dbMock.ExpectBegin()
		ledgerRepo.On("GetByID", mock.Anything, transfer.ID).Return(nil, sql.ErrNoRows).Once()
		accountRepo.On("ResolveRecipient", mock.Anything, transfer.ToAccountNumber, transfer.ToRoutingCode, transfer.ToBranch).Return("acc_a", nil).Once()
		dbMock.ExpectRollback()

		_, err := ledgerService.Execute(ctx, userID, transfer)

		assert.ErrorIs(t, err, ErrSelfTransfer)
	})

	// --- Test Case 8: Duplicate Transfer Id ---
	t.Run("duplicate terminal id echoes recorded result without mutating balances", func(t *testing.T) {
		ledgerService, dbMock, accountRepo, ledgerRepo := newLedgerFixture(t)
		transfer := newTestTransfer()

		recorded := &model.Transfer{
			ID:          transfer.ID,
			ToAccountID: "acc_b",
			Amount:      transfer.Amount,
			Status:      model.StatusCompleted,
		}

		dbMock.ExpectBegin()
		ledgerRepo.On("GetByID", mock.Anything, transfer.ID).Return(recorded, nil).Once()
		dbMock.ExpectRollback()

		executed, err := ledgerService.Execute(ctx, userID, transfer)

		assert.NoError(t, err)
		assert.Equal(t, recorded, executed)
		assert.Equal(t, model.StatusCompleted, executed.Status)
		accountRepo.AssertNotCalled(t, "GetAccountForUpdate", mock.Anything, mock.Anything)
		accountRepo.AssertNotCalled(t, "UpdateAccountBalance", mock.Anything, mock.Anything, mock.Anything)
		ledgerRepo.AssertNotCalled(t, "UpsertCompleted", mock.Anything, mock.Anything)
	})

	// --- Test Case 9: Engine Guards ---
	t.Run("missing transfer id", func(t *testing.T) {
		ledgerService, _, _, _ := newLedgerFixture(t)
		transfer := newTestTransfer()
		transfer.ID = ""

		_, err := ledgerService.Execute(ctx, userID, transfer)

		assert.ErrorIs(t, err, ErrMissingTransferID)
	})

	t.Run("non-positive amount", func(t *testing.T) {
		ledgerService, _, _, _ := newLedgerFixture(t)
		transfer := newTestTransfer()
		transfer.Amount = 0

		_, err := ledgerService.Execute(ctx, userID, transfer)

		assert.ErrorIs(t, err, ErrInvalidAmount)
	})
}

func TestLedgerService_ExecuteBatch(t *testing.T) {
	ctx := context.Background()
	userID := "user-1"
	pinHash, err := HashPIN("1234")
	assert.NoError(t, err)

	t.Run("one rejection does not block siblings", func(t *testing.T) {
		ledgerService, dbMock, accountRepo, ledgerRepo := newLedgerFixture(t)

		first := newTestTransfer()
		second := newTestTransfer()
		second.ID = "tx_1700000000001_d4e5f6"
		second.Amount = 999999999

		fromAccount := &model.BankAccount{ID: "acc_a", UserID: userID, Balance: 100000, PINHash: pinHash}
		toAccount := &model.BankAccount{ID: "acc_b", UserID: "user-2", Balance: 50000}

		// Item 1 commits in its own transaction.
		dbMock.ExpectBegin()
		ledgerRepo.On("GetByID", mock.Anything, first.ID).Return(nil, sql.ErrNoRows).Once()
		accountRepo.On("ResolveRecipient", mock.Anything, first.ToAccountNumber, first.ToRoutingCode, first.ToBranch).Return("acc_b", nil).Twice()
		accountRepo.On("GetAccountForUpdate", mock.Anything, "acc_a").Return(fromAccount, nil).Twice()
		accountRepo.On("GetAccountForUpdate", mock.Anything, "acc_b").Return(toAccount, nil).Twice()
		accountRepo.On("UpdateAccountBalance", mock.Anything, "acc_a", int64(70000)).Return(nil).Once()
		accountRepo.On("UpdateAccountBalance", mock.Anything, "acc_b", int64(80000)).Return(nil).Once()
		ledgerRepo.On("UpsertCompleted", mock.Anything, mock.AnythingOfType("*model.Transfer")).Return(nil).Once()
		dbMock.ExpectCommit()

		// Item 2 rolls back independently.
		dbMock.ExpectBegin()
		ledgerRepo.On("GetByID", mock.Anything, second.ID).Return(nil, sql.ErrNoRows).Once()
		dbMock.ExpectRollback()

		results := ledgerService.ExecuteBatch(ctx, userID, []model.Transfer{*first, *second})

		assert.Len(t, results, 2)
		assert.Equal(t, first.ID, results[0].ID)
		assert.Equal(t, model.BatchSuccess, results[0].Status)
		assert.Empty(t, results[0].Error)
		assert.Equal(t, second.ID, results[1].ID)
		assert.Equal(t, model.BatchFailed, results[1].Status)
		assert.Equal(t, ErrInsufficientFunds.Error(), results[1].Error)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("infra failure is reported without leaking internals", func(t *testing.T) {
		ledgerService, dbMock, _, ledgerRepo := newLedgerFixture(t)
		transfer := newTestTransfer()

		dbMock.ExpectBegin()
		ledgerRepo.On("GetByID", mock.Anything, transfer.ID).Return(nil, errors.New("connection reset")).Once()
		dbMock.ExpectRollback()

		results := ledgerService.ExecuteBatch(ctx, userID, []model.Transfer{*transfer})

		assert.Len(t, results, 1)
		assert.Equal(t, model.BatchFailed, results[0].Status)
		assert.Equal(t, "internal error", results[0].Error)
	})

	t.Run("empty batch yields empty results", func(t *testing.T) {
		ledgerService, _, _, _ := newLedgerFixture(t)

		results := ledgerService.ExecuteBatch(ctx, userID, nil)

		assert.NotNil(t, results)
		assert.Empty(t, results)
	})
}

func TestLedgerService_History(t *testing.T) {
	ctx := context.Background()

	t.Run("reports more pages when total exceeds the window", func(t *testing.T) {
		ledgerService, _, _, ledgerRepo := newLedgerFixture(t)

		items := []*model.HistoryItem{{ID: "tx_1"}, {ID: "tx_2"}}
		ledgerRepo.On("CountByUser", "user-1").Return(25, nil).Once()
		ledgerRepo.On("ListByUser", "user-1", 10, 0).Return(items, nil).Once()

		resp, err := ledgerService.History(ctx, "user-1", 1, 10)

		assert.NoError(t, err)
		assert.True(t, resp.HasMore)
		assert.Len(t, resp.Transactions, 2)
	})

	t.Run("clamps page and limit to sane defaults", func(t *testing.T) {
		ledgerService, _, _, ledgerRepo := newLedgerFixture(t)

		ledgerRepo.On("CountByUser", "user-1").Return(0, nil).Once()
		ledgerRepo.On("ListByUser", "user-1", 10, 0).Return(nil, nil).Once()

		resp, err := ledgerService.History(ctx, "user-1", -3, 5000)

		assert.NoError(t, err)
		assert.False(t, resp.HasMore)
		assert.NotNil(t, resp.Transactions)
		assert.Empty(t, resp.Transactions)
	})
}

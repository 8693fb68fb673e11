package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"go-bank-sync/logger"
	"go-bank-sync/model"
	"go-bank-sync/repository"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// openingBalanceMinorUnits is credited to every newly linked account,
// 1000.00 in minor units.
const openingBalanceMinorUnits = 100000

const snapshotCacheTTL = 10 * time.Minute

var (
	ErrAccountNumberLinked = errors.New("bank account number already linked")
	ErrUserNotFound        = errors.New("user not found")
)

// AccountService handles account linking, listing, lookup and the
// authoritative snapshot, with a cache-aside layer over the snapshot reads.
type AccountService struct {
	repo        repository.IAccountRepository
	userRepo    repository.IUserRepository
	redisClient ICacheClient
}

func NewAccountService(repo repository.IAccountRepository, userRepo repository.IUserRepository, redisClient ICacheClient) *AccountService {
	return &AccountService{
		repo:        repo,
		userRepo:    userRepo,
		redisClient: redisClient,
	}
}

func accountsCacheKey(userID string) string {
	return fmt.Sprintf("accounts:%s", userID)
}

// LinkAccount links a new bank account for the user. Only the bcrypt hash of
// the PIN is persisted.
func (s *AccountService) LinkAccount(userID string, req model.LinkAccountRequest) (*model.BankAccount, error) {
	pinHash, err := HashPIN(req.PIN)
	if err != nil {
		return nil, err
	}

	account := &model.BankAccount{
		ID:            uuid.NewString(),
		UserID:        userID,
		BankName:      req.BankName,
		AccountNumber: req.AccountNumber,
		RoutingCode:   req.RoutingCode,
		Branch:        req.Branch,
		PINHash:       pinHash,
		Balance:       openingBalanceMinorUnits,
	}

	if err := s.repo.CreateAccount(account); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrAccountNumberLinked
		}
		return nil, err
	}

	// Invalidate the snapshot cache so the next read sees the new account.
	s.redisClient.Del(context.Background(), accountsCacheKey(userID))

	logger.Log.WithField("account_id", account.ID).Info("Bank account linked")
	return account, nil
}

// ListAccountsForUser lists a user's linked accounts with a cache-aside
// strategy.
func (s *AccountService) ListAccountsForUser(userID string) ([]*model.BankAccount, error) {
	cacheKey := accountsCacheKey(userID)
	ctx := context.Background()

	cachedAccounts, err := s.redisClient.Get(ctx, cacheKey).Result()
	if err == nil {
		var accounts []*model.BankAccount
		if err := json.Unmarshal([]byte(cachedAccounts), &accounts); err == nil {
			return accounts, nil
		}
	}

	accounts, err := s.repo.GetAccountsByUserID(userID)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(accounts)
	if err == nil {
		s.redisClient.Set(ctx, cacheKey, data, snapshotCacheTTL)
	}

	return accounts, nil
}

// GetSnapshot returns the authoritative user view the client rehydrates its
// cache from.
func (s *AccountService) GetSnapshot(userID string) (*model.AccountSnapshot, error) {
	user, err := s.userRepo.GetUserByID(userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	accounts, err := s.ListAccountsForUser(userID)
	if err != nil {
		return nil, err
	}
	if accounts == nil {
		accounts = []*model.BankAccount{}
	}

	return &model.AccountSnapshot{
		ID:           user.ID,
		PhoneNumber:  user.PhoneNumber,
		BankAccounts: accounts,
	}, nil
}

// Lookup resolves a recipient by its public tuple. The ledger engine does
// its own resolution at execution time and never trusts this result.
func (s *AccountService) Lookup(req model.LookupRequest) (*model.LookupResponse, error) {
	account, err := s.repo.LookupByNumber(req.AccountNumber, req.RoutingCode, req.Branch)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRecipientNotFound
		}
		return nil, err
	}

	return &model.LookupResponse{
		ID:            account.ID,
		BankName:      account.BankName,
		AccountNumber: account.AccountNumber,
		RoutingCode:   account.RoutingCode,
		Branch:        account.Branch,
	}, nil
}

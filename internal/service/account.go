package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ledgerkit/account-service/internal/auth"
	"github.com/ledgerkit/account-service/internal/domain"
	"github.com/ledgerkit/account-service/internal/logging"
)

type accountRepo interface {
	GetByID(ctx context.Context, id int64) (*domain.Account, error)
	GetByOwner(ctx context.Context, owner int64) ([]domain.Account, error)
	GetAll(ctx context.Context) ([]domain.Account, error)
	Create(ctx context.Context, owner int64) (*domain.Account, error)
	Update(ctx context.Context, account *domain.Account) (*domain.Account, error)
	Remove(ctx context.Context, account *domain.Account) (int64, error)
	CreateTransaction(ctx context.Context, txType domain.TransactionType, account *domain.Account, amount decimal.Decimal) error
}

// AccountService gates every account operation behind caller authorization
// before touching persistence. It holds no per-request state: the caller
// identity is an argument on every method.
type AccountService struct {
	accounts accountRepo
}

func NewAccountService(accounts accountRepo) *AccountService {
	return &AccountService{accounts: accounts}
}

// Create opens a new account owned by the caller.
func (s *AccountService) Create(ctx context.Context, caller auth.Caller) (*domain.Account, error) {
	if err := s.requireUser(ctx, caller); err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}

	account, err := s.accounts.Create(ctx, caller.ID)
	if err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}

	logging.FromContext(ctx).Info("account created",
		"account_id", account.ID(),
		"owner", account.Owner(),
	)
	return account, nil
}

// Get returns the account if the caller owns it or is an admin.
func (s *AccountService) Get(ctx context.Context, caller auth.Caller, id int64) (*domain.Account, error) {
	account, err := s.retrieve(ctx, caller, id)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return account, nil
}

// GetAll returns every account for admins, otherwise only the caller's own.
func (s *AccountService) GetAll(ctx context.Context, caller auth.Caller) ([]domain.Account, error) {
	if err := s.requireUser(ctx, caller); err != nil {
		return nil, fmt.Errorf("GetAll: %w", err)
	}

	if auth.IsAdmin(caller) {
		accounts, err := s.accounts.GetAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("GetAll: %w", err)
		}
		return accounts, nil
	}

	accounts, err := s.accounts.GetByOwner(ctx, caller.ID)
	if err != nil {
		return nil, fmt.Errorf("GetAll: %w", err)
	}
	return accounts, nil
}

// Deposit increases the account balance by amount and records an audit entry.
func (s *AccountService) Deposit(ctx context.Context, caller auth.Caller, id int64, amount decimal.Decimal) (*domain.Account, error) {
	account, err := s.retrieve(ctx, caller, id)
	if err != nil {
		return nil, fmt.Errorf("Deposit: %w", err)
	}

	if err := account.Deposit(amount); err != nil {
		return nil, fmt.Errorf("Deposit: %w", err)
	}

	updated, err := s.accounts.Update(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("Deposit: %w", err)
	}

	if err := s.accounts.CreateTransaction(ctx, domain.TransactionTypeDeposit, updated, amount); err != nil {
		logging.FromContext(ctx).Warn("transaction log entry failed",
			"account_id", updated.ID(), "error", err)
	}
	return updated, nil
}

// Debit decreases the account balance by amount and records an audit entry.
func (s *AccountService) Debit(ctx context.Context, caller auth.Caller, id int64, amount decimal.Decimal) (*domain.Account, error) {
	account, err := s.retrieve(ctx, caller, id)
	if err != nil {
		return nil, fmt.Errorf("Debit: %w", err)
	}

	if err := account.Debit(amount); err != nil {
		return nil, fmt.Errorf("Debit: %w", err)
	}

	updated, err := s.accounts.Update(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("Debit: %w", err)
	}

	if err := s.accounts.CreateTransaction(ctx, domain.TransactionTypeDebit, updated, amount); err != nil {
		logging.FromContext(ctx).Warn("transaction log entry failed",
			"account_id", updated.ID(), "error", err)
	}
	return updated, nil
}

// Close removes the account and reports whether the removed id matched.
func (s *AccountService) Close(ctx context.Context, caller auth.Caller, id int64) (bool, error) {
	account, err := s.retrieve(ctx, caller, id)
	if err != nil {
		return false, fmt.Errorf("Close: %w", err)
	}

	removed, err := s.accounts.Remove(ctx, account)
	if err != nil {
		return false, fmt.Errorf("Close: %w", err)
	}
	return removed == account.ID(), nil
}

type CloseFailure struct {
	ID  int64
	Err error
}

// CloseAllResult reports the per-account outcome of a batch close.
type CloseAllResult struct {
	Closed []int64
	Failed []CloseFailure
}

// CloseAll removes every account owned by the caller. There is no admin
// override: admins close their own accounts like anyone else. Individual
// removal failures are reported in the result rather than aborting the batch.
func (s *AccountService) CloseAll(ctx context.Context, caller auth.Caller) (*CloseAllResult, error) {
	if err := s.requireUser(ctx, caller); err != nil {
		return nil, fmt.Errorf("CloseAll: %w", err)
	}

	accounts, err := s.accounts.GetByOwner(ctx, caller.ID)
	if err != nil {
		return nil, fmt.Errorf("CloseAll: %w", err)
	}

	result := &CloseAllResult{}
	for i := range accounts {
		account := &accounts[i]
		if _, err := s.accounts.Remove(ctx, account); err != nil {
			logging.FromContext(ctx).Warn("close failed",
				"account_id", account.ID(), "error", err)
			result.Failed = append(result.Failed, CloseFailure{ID: account.ID(), Err: err})
			continue
		}
		result.Closed = append(result.Closed, account.ID())
	}
	return result, nil
}

// SetNegativeFlag toggles whether the account may go below zero. The flag
// change is persisted without re-validating the current balance.
func (s *AccountService) SetNegativeFlag(ctx context.Context, caller auth.Caller, id int64, value bool) (*domain.Account, error) {
	account, err := s.retrieve(ctx, caller, id)
	if err != nil {
		return nil, fmt.Errorf("SetNegativeFlag: %w", err)
	}

	account.SetNegative(value)
	updated, err := s.accounts.Update(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("SetNegativeFlag: %w", err)
	}
	return updated, nil
}

func (s *AccountService) requireUser(ctx context.Context, caller auth.Caller) error {
	if err := auth.RequireUser(caller); err != nil {
		logging.FromContext(ctx).Warn("permission denied",
			"caller_id", caller.ID, "roles", caller.Roles)
		return err
	}
	return nil
}

// retrieve loads the account and allows access only to its owner or an admin.
// This guard fronts Get, Deposit, Debit, Close and SetNegativeFlag.
func (s *AccountService) retrieve(ctx context.Context, caller auth.Caller, id int64) (*domain.Account, error) {
	if err := s.requireUser(ctx, caller); err != nil {
		return nil, err
	}

	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := auth.RequireAccess(caller, account.Owner()); err != nil {
		logging.FromContext(ctx).Warn("permission denied",
			"caller_id", caller.ID, "account_id", id, "owner", account.Owner())
		return nil, err
	}
	return account, nil
}

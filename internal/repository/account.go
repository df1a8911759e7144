package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerkit/account-service/internal/domain"
)

const accountColumns = `id, owner, balance, negative, version, created_at`

type scanner interface {
	Scan(dest ...any) error
}

type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id,
	)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrAccountNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return a, nil
}

func (r *AccountRepository) GetByOwner(ctx context.Context, owner int64) ([]domain.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE owner = $1 ORDER BY created_at`, owner,
	)
	if err != nil {
		return nil, fmt.Errorf("GetByOwner: %w", err)
	}
	defer rows.Close()
	accounts, err := collectAccounts(rows)
	if err != nil {
		return nil, fmt.Errorf("GetByOwner: %w", err)
	}
	return accounts, nil
}

func (r *AccountRepository) GetAll(ctx context.Context) ([]domain.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("GetAll: %w", err)
	}
	defer rows.Close()
	accounts, err := collectAccounts(rows)
	if err != nil {
		return nil, fmt.Errorf("GetAll: %w", err)
	}
	return accounts, nil
}

func (r *AccountRepository) Create(ctx context.Context, owner int64) (*domain.Account, error) {
	if owner == 0 {
		return nil, fmt.Errorf("Create: %w", domain.ErrOwnerRequired)
	}
	if owner < 0 {
		return nil, fmt.Errorf("Create: %w", domain.ErrOwnerOutOfRange)
	}

	row := r.db.QueryRowContext(ctx,
		`INSERT INTO accounts (owner) VALUES ($1) RETURNING `+accountColumns, owner,
	)
	a, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}
	return a, nil
}

// Update persists balance and the negative flag, conditional on the version
// the account was loaded with. Owner and creation time in the database are
// authoritative and never written. A version miss on an existing row means
// the account moved underneath the caller.
func (r *AccountRepository) Update(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE accounts SET balance = $1, negative = $2, version = version + 1
		 WHERE id = $3 AND version = $4
		 RETURNING `+accountColumns,
		account.Balance(), account.Negative(), account.ID(), account.Version(),
	)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("Update: %w", r.classifyMiss(ctx, account.ID()))
		}
		return nil, fmt.Errorf("Update: %w", err)
	}
	return a, nil
}

func (r *AccountRepository) Remove(ctx context.Context, account *domain.Account) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`DELETE FROM accounts WHERE id = $1 RETURNING id`, account.ID(),
	).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("Remove: %w", domain.ErrAccountNotFound)
		}
		return 0, fmt.Errorf("Remove: %w", err)
	}
	return id, nil
}

func (r *AccountRepository) CreateTransaction(ctx context.Context, txType domain.TransactionType, account *domain.Account, amount decimal.Decimal) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transaction_log (account_id, type, amount) VALUES ($1, $2, $3)`,
		account.ID(), txType, amount,
	)
	if err != nil {
		return fmt.Errorf("CreateTransaction: %w", err)
	}
	return nil
}

func (r *AccountRepository) GetTransactions(ctx context.Context, accountID int64) ([]domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, account_id, type, amount, created_at FROM transaction_log
		 WHERE account_id = $1 ORDER BY created_at`, accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("GetTransactions: %w", err)
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		if err := rows.Scan(&tx.ID, &tx.AccountID, &tx.Type, &tx.Amount, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("GetTransactions: scan: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetTransactions: rows: %w", err)
	}
	return txs, nil
}

func (r *AccountRepository) classifyMiss(ctx context.Context, id int64) error {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, id,
	).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return domain.ErrAccountNotFound
	}
	return domain.ErrVersionConflict
}

func scanAccount(s scanner) (*domain.Account, error) {
	var (
		id, owner, version int64
		balance            decimal.Decimal
		negative           bool
		createdAt          time.Time
	)
	err := s.Scan(&id, &owner, &balance, &negative, &version, &createdAt)
	if err != nil {
		return nil, err
	}
	return domain.NewAccount(domain.AccountParams{
		ID:        id,
		Owner:     owner,
		Balance:   balance,
		Negative:  negative,
		Version:   version,
		CreatedAt: createdAt,
	})
}

func collectAccounts(rows *sql.Rows) ([]domain.Account, error) {
	var accounts []domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		accounts = append(accounts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return accounts, nil
}

package testutil

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerkit/account-service/internal/domain"
)

// MemAccountRepo is an in-memory stand-in for the Postgres account
// repository, with the same error semantics.
type MemAccountRepo struct {
	nextID   int64
	accounts map[int64]domain.AccountParams

	// Transactions collects audit entries written through CreateTransaction.
	Transactions []domain.Transaction
	// RemoveErr injects a failure for Remove on a given account id.
	RemoveErr map[int64]error
}

func NewMemAccountRepo() *MemAccountRepo {
	return &MemAccountRepo{
		nextID:    1,
		accounts:  make(map[int64]domain.AccountParams),
		RemoveErr: make(map[int64]error),
	}
}

// build reconstructs an entity from stored params. Construction goes through
// the permissive path so that stored state (e.g. a negative balance left
// behind by a flag flip) loads without re-validation.
func (m *MemAccountRepo) build(p domain.AccountParams) *domain.Account {
	a, err := domain.NewAccount(domain.AccountParams{
		ID: p.ID, Owner: p.Owner, Balance: p.Balance, Negative: true,
		Version: p.Version, CreatedAt: p.CreatedAt,
	})
	if err != nil {
		panic(err)
	}
	a.SetNegative(p.Negative)
	return a
}

func (m *MemAccountRepo) GetByID(_ context.Context, id int64) (*domain.Account, error) {
	p, ok := m.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return m.build(p), nil
}

func (m *MemAccountRepo) GetByOwner(_ context.Context, owner int64) ([]domain.Account, error) {
	var out []domain.Account
	for _, p := range m.accounts {
		if p.Owner == owner {
			out = append(out, *m.build(p))
		}
	}
	return out, nil
}

func (m *MemAccountRepo) GetAll(_ context.Context) ([]domain.Account, error) {
	var out []domain.Account
	for _, p := range m.accounts {
		out = append(out, *m.build(p))
	}
	return out, nil
}

func (m *MemAccountRepo) Create(_ context.Context, owner int64) (*domain.Account, error) {
	if owner == 0 {
		return nil, domain.ErrOwnerRequired
	}
	if owner < 0 {
		return nil, domain.ErrOwnerOutOfRange
	}
	p := domain.AccountParams{
		ID:        m.nextID,
		Owner:     owner,
		Version:   1,
		CreatedAt: time.Now().UTC(),
	}
	m.accounts[m.nextID] = p
	m.nextID++
	return m.build(p), nil
}

func (m *MemAccountRepo) Update(_ context.Context, account *domain.Account) (*domain.Account, error) {
	p, ok := m.accounts[account.ID()]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	if p.Version != account.Version() {
		return nil, domain.ErrVersionConflict
	}
	p.Balance = account.Balance()
	p.Negative = account.Negative()
	p.Version++
	m.accounts[account.ID()] = p
	return m.build(p), nil
}

func (m *MemAccountRepo) Remove(_ context.Context, account *domain.Account) (int64, error) {
	if err, ok := m.RemoveErr[account.ID()]; ok {
		return 0, err
	}
	if _, ok := m.accounts[account.ID()]; !ok {
		return 0, domain.ErrAccountNotFound
	}
	delete(m.accounts, account.ID())
	return account.ID(), nil
}

func (m *MemAccountRepo) CreateTransaction(_ context.Context, txType domain.TransactionType, account *domain.Account, amount decimal.Decimal) error {
	m.Transactions = append(m.Transactions, domain.Transaction{
		ID:        int64(len(m.Transactions) + 1),
		AccountID: account.ID(),
		Type:      txType,
		Amount:    amount,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (m *MemAccountRepo) GetTransactions(_ context.Context, accountID int64) ([]domain.Transaction, error) {
	var out []domain.Transaction
	for _, tx := range m.Transactions {
		if tx.AccountID == accountID {
			out = append(out, tx)
		}
	}
	return out, nil
}

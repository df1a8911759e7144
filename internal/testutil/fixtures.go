package testutil

import (
	"database/sql"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ledgerkit/account-service/internal/domain"
)

// SeedAccount inserts an account row directly, bypassing the repository, and
// returns the persisted entity.
func SeedAccount(t *testing.T, db *sql.DB, owner int64, balance decimal.Decimal, negative bool) *domain.Account {
	t.Helper()

	var (
		id      int64
		version int64
	)
	err := db.QueryRow(
		`INSERT INTO accounts (owner, balance, negative) VALUES ($1, $2, $3)
		 RETURNING id, version`,
		owner, balance, negative,
	).Scan(&id, &version)
	if err != nil {
		t.Fatalf("seed account for owner %d: %v", owner, err)
	}

	account, err := domain.NewAccount(domain.AccountParams{
		ID:       id,
		Owner:    owner,
		Balance:  balance,
		Negative: negative,
		Version:  version,
	})
	if err != nil {
		t.Fatalf("build seeded account: %v", err)
	}
	return account
}

// GetBalance reads the stored balance for an account id.
func GetBalance(t *testing.T, db *sql.DB, accountID int64) decimal.Decimal {
	t.Helper()

	var balance decimal.Decimal
	err := db.QueryRow(`SELECT balance FROM accounts WHERE id = $1`, accountID).Scan(&balance)
	if err != nil {
		t.Fatalf("get balance for account %d: %v", accountID, err)
	}
	return balance
}

// CountAccounts reports the number of account rows for an owner.
func CountAccounts(t *testing.T, db *sql.DB, owner int64) int {
	t.Helper()

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM accounts WHERE owner = $1`, owner).Scan(&count)
	if err != nil {
		t.Fatalf("count accounts for owner %d: %v", owner, err)
	}
	return count
}

package repository_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerkit/account-service/internal/domain"
	"github.com/ledgerkit/account-service/internal/repository"
	"github.com/ledgerkit/account-service/internal/testutil"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCreate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewAccountRepository(db)
	ctx := context.Background()

	t.Run("valid owner", func(t *testing.T) {
		account, err := repo.Create(ctx, 1)
		require.NoError(t, err)
		assert.Positive(t, account.ID())
		assert.Equal(t, int64(1), account.Owner())
		assert.True(t, account.Balance().IsZero())
		assert.False(t, account.Negative())
		assert.False(t, account.CreatedAt().IsZero())
	})

	t.Run("missing owner", func(t *testing.T) {
		_, err := repo.Create(ctx, 0)
		assert.ErrorIs(t, err, domain.ErrOwnerRequired)
	})

	t.Run("owner out of range", func(t *testing.T) {
		_, err := repo.Create(ctx, -3)
		assert.ErrorIs(t, err, domain.ErrOwnerOutOfRange)
	})
}

func TestGetByID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewAccountRepository(db)
	ctx := context.Background()

	seeded := testutil.SeedAccount(t, db, 7, dec("123.45"), false)

	got, err := repo.GetByID(ctx, seeded.ID())
	require.NoError(t, err)
	assert.Equal(t, seeded.ID(), got.ID())
	assert.Equal(t, int64(7), got.Owner())
	assert.True(t, got.Balance().Equal(dec("123.45")),
		"balance: got %s", got.Balance())

	_, err = repo.GetByID(ctx, 999999)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestGetByOwnerAndGetAll(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewAccountRepository(db)
	ctx := context.Background()

	testutil.SeedAccount(t, db, 1, dec("10"), false)
	testutil.SeedAccount(t, db, 1, dec("20"), false)
	testutil.SeedAccount(t, db, 2, dec("30"), false)

	own, err := repo.GetByOwner(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, own, 2)

	none, err := repo.GetByOwner(ctx, 42)
	require.NoError(t, err)
	assert.Empty(t, none)

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestUpdate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewAccountRepository(db)
	ctx := context.Background()

	account := testutil.SeedAccount(t, db, 1, dec("50"), false)

	require.NoError(t, account.Deposit(dec("25")))
	account.SetNegative(true)

	updated, err := repo.Update(ctx, account)
	require.NoError(t, err)
	assert.True(t, updated.Balance().Equal(dec("75")))
	assert.True(t, updated.Negative())
	assert.Equal(t, account.Version()+1, updated.Version())

	// owner in the database is authoritative; update never writes it
	assert.Equal(t, int64(1), updated.Owner())
}

func TestUpdateStaleVersion(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewAccountRepository(db)
	ctx := context.Background()

	seeded := testutil.SeedAccount(t, db, 1, dec("100"), false)

	first, err := repo.GetByID(ctx, seeded.ID())
	require.NoError(t, err)
	second, err := repo.GetByID(ctx, seeded.ID())
	require.NoError(t, err)

	require.NoError(t, first.Deposit(dec("10")))
	_, err = repo.Update(ctx, first)
	require.NoError(t, err)

	// the second copy still holds the old version; its write must not win
	require.NoError(t, second.Debit(dec("100")))
	_, err = repo.Update(ctx, second)
	assert.ErrorIs(t, err, domain.ErrVersionConflict)

	balance := testutil.GetBalance(t, db, seeded.ID())
	assert.True(t, balance.Equal(dec("110")),
		"stale write overwrote balance: %s", balance)
}

func TestUpdateMissingAccount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewAccountRepository(db)
	ctx := context.Background()

	ghost, err := domain.NewAccount(domain.AccountParams{ID: 424242, Owner: 1, Version: 1})
	require.NoError(t, err)

	_, err = repo.Update(ctx, ghost)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestRemove(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewAccountRepository(db)
	ctx := context.Background()

	account := testutil.SeedAccount(t, db, 1, dec("0"), false)

	id, err := repo.Remove(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, account.ID(), id)

	_, err = repo.GetByID(ctx, account.ID())
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	_, err = repo.Remove(ctx, account)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestTransactionLog(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewAccountRepository(db)
	ctx := context.Background()

	account := testutil.SeedAccount(t, db, 1, dec("100"), false)

	require.NoError(t, repo.CreateTransaction(ctx, domain.TransactionTypeDeposit, account, dec("100")))
	require.NoError(t, repo.CreateTransaction(ctx, domain.TransactionTypeDebit, account, dec("40")))

	txs, err := repo.GetTransactions(ctx, account.ID())
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, domain.TransactionTypeDeposit, txs[0].Type)
	assert.True(t, txs[0].Amount.Equal(dec("100")))
	assert.Equal(t, domain.TransactionTypeDebit, txs[1].Type)
	assert.True(t, txs[1].Amount.Equal(dec("40")))

	empty, err := repo.GetTransactions(ctx, 999999)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

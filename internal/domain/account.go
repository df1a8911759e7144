package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is the ledger account aggregate. Balance and the negative flag are
// the only mutable state, and balance only moves through Deposit and Debit so
// the non-negativity invariant cannot be bypassed.
type Account struct {
	id        int64
	owner     int64
	balance   decimal.Decimal
	negative  bool
	version   int64
	createdAt time.Time
}

// AccountParams carries the optional construction fields. The zero value of
// each field is the documented default: balance 0, negative false.
type AccountParams struct {
	ID        int64
	Owner     int64
	Balance   decimal.Decimal
	Negative  bool
	Version   int64
	CreatedAt time.Time
}

// NewAccount builds an account from params, rejecting a negative starting
// balance unless the negative flag is set.
func NewAccount(p AccountParams) (*Account, error) {
	if !p.Negative && p.Balance.IsNegative() {
		return nil, ErrNegativeBalance
	}
	return &Account{
		id:        p.ID,
		owner:     p.Owner,
		balance:   p.Balance,
		negative:  p.Negative,
		version:   p.Version,
		createdAt: p.CreatedAt,
	}, nil
}

func (a *Account) ID() int64                { return a.id }
func (a *Account) Owner() int64             { return a.owner }
func (a *Account) Balance() decimal.Decimal { return a.balance }
func (a *Account) Negative() bool           { return a.negative }
func (a *Account) Version() int64           { return a.version }
func (a *Account) CreatedAt() time.Time     { return a.createdAt }

// SetNegative toggles whether the balance may fall below zero. It performs no
// re-validation: clearing the flag on an account already below zero leaves the
// balance as-is until the next debit attempt fails.
func (a *Account) SetNegative(value bool) { a.negative = value }

// Deposit increases the balance by amount. The amount must be strictly
// positive; the balance is untouched on error.
func (a *Account) Deposit(amount decimal.Decimal) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	a.balance = a.balance.Add(amount)
	return nil
}

// Debit decreases the balance by amount. The amount must be strictly positive
// and, unless the negative flag is set, must not take the balance below zero;
// the balance is untouched on error.
func (a *Account) Debit(amount decimal.Decimal) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	if !a.negative && a.balance.Sub(amount).IsNegative() {
		return ErrNegativeBalance
	}
	a.balance = a.balance.Sub(amount)
	return nil
}

func validateAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	if amount.IsZero() {
		return ErrZeroAmount
	}
	return nil
}

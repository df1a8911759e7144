package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeDeposit TransactionType = "DEPOSIT"
	TransactionTypeDebit   TransactionType = "DEBIT"
)

// Transaction is an audit-log record of a single balance mutation. Entries are
// written alongside deposits and debits; nothing in the service surface reads
// them back yet.
type Transaction struct {
	ID        int64
	AccountID int64
	Type      TransactionType
	Amount    decimal.Decimal
	CreatedAt time.Time
}

package bus

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerkit/account-service/internal/domain"
)

// Command names, one per operation on the account topic.
const (
	CmdCreate      = "CREATE"
	CmdGet         = "GET"
	CmdGetAll      = "GET.all"
	CmdDeposit     = "CALL.deposit"
	CmdDebit       = "CALL.debit"
	CmdClose       = "CLOSE"
	CmdCloseAll    = "CLOSE.all"
	CmdSetNegative = "SET.negative"
)

// User is the caller identity the upstream gateway attaches to a command.
type User struct {
	ID    int64    `json:"id"`
	Roles []string `json:"roles"`
}

type Meta struct {
	User *User `json:"user"`
}

// Payload carries the command arguments. Pointers distinguish absent fields
// from zero values so required-field validation can tell the difference.
type Payload struct {
	ID     *int64           `json:"id,omitempty"`
	Amount *decimal.Decimal `json:"amount,omitempty"`
	Value  *bool            `json:"value,omitempty"`
}

// Command is the message envelope read off the command stream.
type Command struct {
	ID      string  `json:"id"`
	Cmd     string  `json:"cmd"`
	Payload Payload `json:"payload"`
	Meta    Meta    `json:"meta"`
	ReplyTo string  `json:"reply_to"`
}

type ReplyError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Reply correlates to a Command by ID and carries either data or an error.
type Reply struct {
	ID    string          `json:"id"`
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *ReplyError     `json:"error,omitempty"`
}

type accountDTO struct {
	ID        int64           `json:"id"`
	Owner     int64           `json:"owner"`
	Balance   decimal.Decimal `json:"balance"`
	Negative  bool            `json:"negative"`
	CreatedAt time.Time       `json:"created_at"`
}

func toAccountDTO(a *domain.Account) accountDTO {
	return accountDTO{
		ID:        a.ID(),
		Owner:     a.Owner(),
		Balance:   a.Balance(),
		Negative:  a.Negative(),
		CreatedAt: a.CreatedAt(),
	}
}

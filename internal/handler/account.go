package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerkit/account-service/internal/auth"
	"github.com/ledgerkit/account-service/internal/domain"
	"github.com/ledgerkit/account-service/internal/logging"
	"github.com/ledgerkit/account-service/internal/service"
)

type accountService interface {
	Create(ctx context.Context, caller auth.Caller) (*domain.Account, error)
	Get(ctx context.Context, caller auth.Caller, id int64) (*domain.Account, error)
	GetAll(ctx context.Context, caller auth.Caller) ([]domain.Account, error)
	Deposit(ctx context.Context, caller auth.Caller, id int64, amount decimal.Decimal) (*domain.Account, error)
	Debit(ctx context.Context, caller auth.Caller, id int64, amount decimal.Decimal) (*domain.Account, error)
	Close(ctx context.Context, caller auth.Caller, id int64) (bool, error)
	CloseAll(ctx context.Context, caller auth.Caller) (*service.CloseAllResult, error)
	SetNegativeFlag(ctx context.Context, caller auth.Caller, id int64, value bool) (*domain.Account, error)
}

type AccountHandler struct {
	accounts accountService
}

func NewAccountHandler(accounts accountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type negativeRequest struct {
	Value *bool `json:"value"`
}

func (r negativeRequest) Validate() []FieldError {
	if r.Value == nil {
		return []FieldError{{Field: "value", Message: "required"}}
	}
	return nil
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

type closeResultDTO struct {
	Closed bool `json:"closed"`
}

type closeFailureDTO struct {
	ID    int64  `json:"id"`
	Error string `json:"error"`
}

type closeAllDTO struct {
	Closed []int64           `json:"closed"`
	Failed []closeFailureDTO `json:"failed,omitempty"`
}

func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	account, err := h.accounts.Create(r.Context(), caller)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to create account", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, toAccountDTO(account))
}

func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller, id, appErr := callerAndID(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	account, err := h.accounts.Get(r.Context(), caller, id)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toAccountDTO(account))
}

func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	accounts, err := h.accounts.GetAll(r.Context(), caller)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	dtos := make([]accountDTO, len(accounts))
	for i := range accounts {
		dtos[i] = toAccountDTO(&accounts[i])
	}
	RespondSuccess(w, http.StatusOK, dtos)
}

func (h *AccountHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.mutateBalance(w, r, h.accounts.Deposit)
}

func (h *AccountHandler) Debit(w http.ResponseWriter, r *http.Request) {
	h.mutateBalance(w, r, h.accounts.Debit)
}

func (h *AccountHandler) mutateBalance(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, caller auth.Caller, id int64, amount decimal.Decimal) (*domain.Account, error),
) {
	caller, id, appErr := callerAndID(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	account, err := op(r.Context(), caller, id, req.Amount)
	if err != nil {
		logging.FromContext(r.Context()).Error("balance mutation failed",
			"account_id", id, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toAccountDTO(account))
}

func (h *AccountHandler) Close(w http.ResponseWriter, r *http.Request) {
	caller, id, appErr := callerAndID(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	closed, err := h.accounts.Close(r.Context(), caller, id)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, closeResultDTO{Closed: closed})
}

func (h *AccountHandler) CloseAll(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	result, err := h.accounts.CloseAll(r.Context(), caller)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	dto := closeAllDTO{Closed: result.Closed}
	if dto.Closed == nil {
		dto.Closed = []int64{}
	}
	for _, f := range result.Failed {
		dto.Failed = append(dto.Failed, closeFailureDTO{ID: f.ID, Error: f.Err.Error()})
	}
	RespondSuccess(w, http.StatusOK, dto)
}

func (h *AccountHandler) SetNegative(w http.ResponseWriter, r *http.Request) {
	caller, id, appErr := callerAndID(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req negativeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	account, err := h.accounts.SetNegativeFlag(r.Context(), caller, id, *req.Value)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toAccountDTO(account))
}

func callerAndID(r *http.Request) (auth.Caller, int64, *AppError) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		return auth.Caller{}, 0, ErrMissingToken
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return auth.Caller{}, 0, ErrAccountNotFound
	}

	return caller, id, nil
}

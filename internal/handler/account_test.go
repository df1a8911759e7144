package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerkit/account-service/internal/auth"
	"github.com/ledgerkit/account-service/internal/handler"
	"github.com/ledgerkit/account-service/internal/middleware"
	"github.com/ledgerkit/account-service/internal/service"
	"github.com/ledgerkit/account-service/internal/testutil"
)

const testSecret = "test-jwt-secret"

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type accountBody struct {
	ID       int64           `json:"id"`
	Owner    int64           `json:"owner"`
	Balance  decimal.Decimal `json:"balance"`
	Negative bool            `json:"negative"`
}

func setupAPI(t *testing.T) http.Handler {
	t.Helper()

	accounts := service.NewAccountService(testutil.NewMemAccountRepo())
	accountHandler := handler.NewAccountHandler(accounts)

	api := http.NewServeMux()
	api.HandleFunc("POST /api/v1/accounts", accountHandler.Create)
	api.HandleFunc("GET /api/v1/accounts", accountHandler.List)
	api.HandleFunc("DELETE /api/v1/accounts", accountHandler.CloseAll)
	api.HandleFunc("GET /api/v1/accounts/{id}", accountHandler.Get)
	api.HandleFunc("DELETE /api/v1/accounts/{id}", accountHandler.Close)
	api.HandleFunc("POST /api/v1/accounts/{id}/deposit", accountHandler.Deposit)
	api.HandleFunc("POST /api/v1/accounts/{id}/debit", accountHandler.Debit)
	api.HandleFunc("PUT /api/v1/accounts/{id}/negative", accountHandler.SetNegative)

	return middleware.Tracing(
		middleware.Auth(testSecret)(middleware.Logging(middleware.Recovery(api))))
}

func token(t *testing.T, id int64, roles ...string) string {
	t.Helper()
	tok, err := auth.GenerateToken(auth.Caller{ID: id, Roles: roles}, testSecret, time.Hour)
	require.NoError(t, err)
	return tok
}

func doRequest(t *testing.T, h http.Handler, method, path, bearer string, body any) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp apiResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return rec, resp
}

func decodeAccount(t *testing.T, resp apiResponse) accountBody {
	t.Helper()
	var a accountBody
	require.NoError(t, json.Unmarshal(resp.Data, &a))
	return a
}

func TestAuthRequired(t *testing.T) {
	h := setupAPI(t)

	rec, resp := doRequest(t, h, http.MethodPost, "/api/v1/accounts", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "MISSING_TOKEN", resp.Error.Code)

	rec, resp = doRequest(t, h, http.MethodPost, "/api/v1/accounts", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_TOKEN", resp.Error.Code)
}

func TestCreateAccount(t *testing.T) {
	h := setupAPI(t)

	rec, resp := doRequest(t, h, http.MethodPost, "/api/v1/accounts", token(t, 1, auth.RoleUser), nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	account := decodeAccount(t, resp)
	assert.Equal(t, int64(1), account.Owner)
	assert.True(t, account.Balance.IsZero())

	// a caller without the USER role is rejected
	rec, resp = doRequest(t, h, http.MethodPost, "/api/v1/accounts", token(t, 1), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "MISSING_PERMISSION", resp.Error.Code)
}

func TestBalanceOperations(t *testing.T) {
	h := setupAPI(t)
	owner := token(t, 1, auth.RoleUser)

	_, _ = doRequest(t, h, http.MethodPost, "/api/v1/accounts", owner, nil)

	rec, resp := doRequest(t, h, http.MethodPost,
		"/api/v1/accounts/1/deposit", owner, map[string]string{"amount": "100"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeAccount(t, resp).Balance.Equal(decimal.RequireFromString("100")))

	rec, resp = doRequest(t, h, http.MethodPost,
		"/api/v1/accounts/1/debit", owner, map[string]string{"amount": "30"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeAccount(t, resp).Balance.Equal(decimal.RequireFromString("70")))

	rec, resp = doRequest(t, h, http.MethodPost,
		"/api/v1/accounts/1/debit", owner, map[string]string{"amount": "1000"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "NEGATIVE_BALANCE", resp.Error.Code)

	rec, resp = doRequest(t, h, http.MethodPost,
		"/api/v1/accounts/1/deposit", owner, map[string]string{"amount": "0"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ZERO_AMOUNT", resp.Error.Code)

	rec, resp = doRequest(t, h, http.MethodPut,
		"/api/v1/accounts/1/negative", owner, map[string]bool{"value": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeAccount(t, resp).Negative)

	rec, resp = doRequest(t, h, http.MethodPost,
		"/api/v1/accounts/1/debit", owner, map[string]string{"amount": "1000"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeAccount(t, resp).Balance.Equal(decimal.RequireFromString("-930")))
}

func TestOwnershipEnforcement(t *testing.T) {
	h := setupAPI(t)

	_, _ = doRequest(t, h, http.MethodPost, "/api/v1/accounts", token(t, 1, auth.RoleUser), nil)

	foreign := token(t, 2, auth.RoleUser)
	rec, resp := doRequest(t, h, http.MethodGet, "/api/v1/accounts/1", foreign, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "MISSING_PERMISSION", resp.Error.Code)

	adminTok := token(t, 2, auth.RoleUser, auth.RoleAdmin)
	rec, resp = doRequest(t, h, http.MethodGet, "/api/v1/accounts/1", adminTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), decodeAccount(t, resp).Owner)

	rec, resp = doRequest(t, h, http.MethodGet, "/api/v1/accounts/999", adminTok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "ACCOUNT_NOT_FOUND", resp.Error.Code)
}

func TestListAccounts(t *testing.T) {
	h := setupAPI(t)
	owner := token(t, 1, auth.RoleUser)
	other := token(t, 2, auth.RoleUser)
	adminTok := token(t, 3, auth.RoleUser, auth.RoleAdmin)

	_, _ = doRequest(t, h, http.MethodPost, "/api/v1/accounts", owner, nil)
	_, _ = doRequest(t, h, http.MethodPost, "/api/v1/accounts", owner, nil)
	_, _ = doRequest(t, h, http.MethodPost, "/api/v1/accounts", other, nil)

	rec, resp := doRequest(t, h, http.MethodGet, "/api/v1/accounts", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var accounts []accountBody
	require.NoError(t, json.Unmarshal(resp.Data, &accounts))
	assert.Len(t, accounts, 2)

	rec, resp = doRequest(t, h, http.MethodGet, "/api/v1/accounts", adminTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(resp.Data, &accounts))
	assert.Len(t, accounts, 3)
}

func TestCloseAndCloseAll(t *testing.T) {
	h := setupAPI(t)
	owner := token(t, 1, auth.RoleUser)

	_, _ = doRequest(t, h, http.MethodPost, "/api/v1/accounts", owner, nil)
	_, _ = doRequest(t, h, http.MethodPost, "/api/v1/accounts", owner, nil)

	rec, resp := doRequest(t, h, http.MethodDelete, "/api/v1/accounts/1", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var closeResult struct {
		Closed bool `json:"closed"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &closeResult))
	assert.True(t, closeResult.Closed)

	rec, resp = doRequest(t, h, http.MethodDelete, "/api/v1/accounts", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var batch struct {
		Closed []int64 `json:"closed"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &batch))
	assert.Equal(t, []int64{2}, batch.Closed)

	rec, resp = doRequest(t, h, http.MethodGet, "/api/v1/accounts", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var remaining []accountBody
	require.NoError(t, json.Unmarshal(resp.Data, &remaining))
	assert.Empty(t, remaining)
}

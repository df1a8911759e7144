package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrMissingToken     = &AppError{http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header required"}
	ErrInvalidToken     = &AppError{http.StatusUnauthorized, "INVALID_TOKEN", "Token is invalid or expired"}
	ErrInvalidRequest   = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrInternalError    = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}

	ErrMissingPermission = &AppError{http.StatusForbidden, "MISSING_PERMISSION", "Missing permission"}
	ErrAccountNotFound   = &AppError{http.StatusNotFound, "ACCOUNT_NOT_FOUND", "Account does not exist"}
	ErrNegativeAmount    = &AppError{http.StatusBadRequest, "NEGATIVE_AMOUNT", "Amount must not be negative"}
	ErrZeroAmount        = &AppError{http.StatusBadRequest, "ZERO_AMOUNT", "Amount must not be zero"}
	ErrNegativeBalance   = &AppError{http.StatusUnprocessableEntity, "NEGATIVE_BALANCE", "Account does not accept negative balance"}
	ErrOwnerRequired     = &AppError{http.StatusBadRequest, "OWNER_REQUIRED", "Owner is required"}
	ErrOwnerOutOfRange   = &AppError{http.StatusBadRequest, "OWNER_OUT_OF_RANGE", "Owner must be greater than zero"}
	ErrVersionConflict   = &AppError{http.StatusConflict, "VERSION_CONFLICT", "Account was modified concurrently, please retry"}
)

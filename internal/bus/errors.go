package bus

import (
	"errors"

	"github.com/ledgerkit/account-service/internal/domain"
)

// replyError maps a domain error to the wire {code, message} pair. Unknown
// errors collapse to INTERNAL_ERROR so internals never leak to callers.
func replyError(err error) *ReplyError {
	switch {
	case errors.Is(err, domain.ErrMissingPermission):
		return &ReplyError{Code: "MISSING_PERMISSION", Message: domain.ErrMissingPermission.Error()}
	case errors.Is(err, domain.ErrAccountNotFound):
		return &ReplyError{Code: "ACCOUNT_NOT_FOUND", Message: domain.ErrAccountNotFound.Error()}
	case errors.Is(err, domain.ErrNegativeAmount):
		return &ReplyError{Code: "NEGATIVE_AMOUNT", Message: domain.ErrNegativeAmount.Error()}
	case errors.Is(err, domain.ErrZeroAmount):
		return &ReplyError{Code: "ZERO_AMOUNT", Message: domain.ErrZeroAmount.Error()}
	case errors.Is(err, domain.ErrNegativeBalance):
		return &ReplyError{Code: "NEGATIVE_BALANCE", Message: domain.ErrNegativeBalance.Error()}
	case errors.Is(err, domain.ErrOwnerRequired):
		return &ReplyError{Code: "OWNER_REQUIRED", Message: domain.ErrOwnerRequired.Error()}
	case errors.Is(err, domain.ErrOwnerOutOfRange):
		return &ReplyError{Code: "OWNER_OUT_OF_RANGE", Message: domain.ErrOwnerOutOfRange.Error()}
	case errors.Is(err, domain.ErrVersionConflict):
		return &ReplyError{Code: "VERSION_CONFLICT", Message: domain.ErrVersionConflict.Error()}
	case errors.Is(err, domain.ErrInvalidRequest):
		return &ReplyError{Code: "INVALID_REQUEST", Message: err.Error()}
	default:
		return &ReplyError{Code: "INTERNAL_ERROR", Message: "an unexpected error occurred"}
	}
}

package domain

import "errors"

var (
	ErrNegativeAmount    = errors.New("amount must not be negative")
	ErrZeroAmount        = errors.New("amount must not be zero")
	ErrNegativeBalance   = errors.New("account does not accept negative balance")
	ErrOwnerRequired     = errors.New("owner is required")
	ErrOwnerOutOfRange   = errors.New("owner must be greater than zero")
	ErrAccountNotFound   = errors.New("account does not exist")
	ErrMissingPermission = errors.New("missing permission")
	ErrVersionConflict   = errors.New("account was modified concurrently")
	ErrInvalidRequest    = errors.New("invalid request")
)

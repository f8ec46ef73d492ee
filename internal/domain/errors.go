package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the engine and its collaborators.
var (
	ErrForbidden         = errors.New("merit: forbidden")
	ErrInsufficientFunds = errors.New("merit: insufficient funds")
	ErrConflict          = errors.New("merit: conflict, please retry")
	ErrInvalidRequest    = errors.New("merit: invalid request")
	ErrNotFound          = errors.New("merit: not found")

	// Both wrap ErrInsufficientFunds.
	ErrInsufficientQuota   = fmt.Errorf("%w: insufficient quota", ErrInsufficientFunds)
	ErrInsufficientBalance = fmt.Errorf("%w: insufficient balance", ErrInsufficientFunds)

	// Store level.
	ErrDuplicate = errors.New("merit: duplicate record")
	ErrOverflow  = fmt.Errorf("%w: balance overflow", ErrInvalidRequest)
)

// Invalid wraps ErrInvalidRequest with a reason.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// IsInsufficient reports whether err is any insufficient-funds error.
func IsInsufficient(err error) bool {
	return errors.Is(err, ErrInsufficientFunds)
}

// IsRetryable reports whether the caller may retry the same request.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}

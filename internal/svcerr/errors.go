package svcerr

import (
	"errors"
	"fmt"
)

// Error kinds. Every domain error wraps exactly one of these.
var (
	ErrValidation  = errors.New("validation error")
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrLockTimeout = errors.New("lock timeout")
	ErrPersistence = errors.New("persistence failure")
	ErrUpstream    = errors.New("upstream failure")
)

var (
	ErrInvalidAmount      = fmt.Errorf("invalid amount: %w", ErrValidation)
	ErrInvalidChoice      = fmt.Errorf("invalid choice: %w", ErrValidation)
	ErrMissingIdempotency = fmt.Errorf("idempotency key is required: %w", ErrValidation)
	ErrInvalidLaunchToken = fmt.Errorf("invalid or expired launch token: %w", ErrValidation)

	ErrWalletNotFound      = fmt.Errorf("wallet not found: %w", ErrNotFound)
	ErrTransactionNotFound = fmt.Errorf("transaction not found: %w", ErrNotFound)
	ErrInvalidSession      = fmt.Errorf("invalid session: %w", ErrNotFound)

	ErrWalletExists        = fmt.Errorf("wallet already exists: %w", ErrConflict)
	ErrWalletFrozen        = fmt.Errorf("wallet is frozen: %w", ErrConflict)
	ErrInsufficientFunds   = fmt.Errorf("insufficient funds: %w", ErrConflict)
	ErrInsufficientBalance = fmt.Errorf("insufficient balance: %w", ErrConflict)
	ErrDailyLimitExceeded  = fmt.Errorf("daily deposit limit exceeded: %w", ErrConflict)
	ErrSessionInUse        = fmt.Errorf("session is owned by another connection: %w", ErrConflict)
	ErrNoBetInFlight       = fmt.Errorf("no bet awaiting an outcome: %w", ErrConflict)
	ErrLaunchTokenUsed     = fmt.Errorf("launch token already used: %w", ErrConflict)
	ErrIdempotencyConflict = fmt.Errorf("idempotency key reused with different parameters: %w", ErrConflict)

	ErrPaymentInitiation = fmt.Errorf("payment initiation failed: %w", ErrUpstream)
)

// Persistence tags a storage error so callers can classify it while keeping the cause.
func Persistence(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

func IsLockTimeout(err error) bool {
	return errors.Is(err, ErrLockTimeout)
}

func IsPersistence(err error) bool {
	return errors.Is(err, ErrPersistence)
}

func IsUpstream(err error) bool {
	return errors.Is(err, ErrUpstream)
}

// IsDomain reports whether err is one of the classified kinds, as opposed to a raw driver error.
func IsDomain(err error) bool {
	return IsValidation(err) || IsNotFound(err) || IsConflict(err) ||
		IsLockTimeout(err) || IsPersistence(err) || IsUpstream(err)
}

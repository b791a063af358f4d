// internal/util/errors.go
package util

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Ledger error taxonomy. Every failure returned by the service unwraps to exactly one of these.
var (
	ErrNotFound             = errors.New("resource not found")
	ErrInvalidInput         = errors.New("invalid input provided")
	ErrInvalidRole          = errors.New("operation not permitted for this user role")
	ErrVerificationRequired = errors.New("identity verification required")
	ErrVerificationFailed   = errors.New("identity verification failed")
	ErrLimitExceeded        = errors.New("amount exceeds credit_limit")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrUnauthorized         = errors.New("loan does not belong to this user")
	ErrAlreadySettled       = errors.New("loan already paid")
	ErrUpstreamFailure      = errors.New("upstream service failure")
)

// Entity-specific not-found errors; both unwrap to ErrNotFound.
var (
	ErrUserNotFound = fmt.Errorf("user not found: %w", ErrNotFound)
	ErrLoanNotFound = fmt.Errorf("loan not found: %w", ErrNotFound)
)

// AmountError carries the numeric context of a limit or funds failure so the caller can react.
// Available is the borrower's current credit limit for ErrLimitExceeded and the current balance
// for ErrInsufficientFunds.
type AmountError struct {
	Err       error
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *AmountError) Error() string {
	return fmt.Sprintf("%s: requested %s, available %s", e.Err, e.Requested, e.Available)
}

func (e *AmountError) Unwrap() error {
	return e.Err
}

// NewLimitExceeded reports a request above the borrower's credit limit.
func NewLimitExceeded(requested, creditLimit decimal.Decimal) error {
	return &AmountError{Err: ErrLimitExceeded, Requested: requested, Available: creditLimit}
}

// NewInsufficientFunds reports a debit larger than the available balance.
func NewInsufficientFunds(requested, balance decimal.Decimal) error {
	return &AmountError{Err: ErrInsufficientFunds, Requested: requested, Available: balance}
}

// VerificationError is returned when the verification collaborator rejects a document.
type VerificationError struct {
	Reason string
}

func (e *VerificationError) Error() string {
	if e.Reason == "" {
		return ErrVerificationFailed.Error()
	}
	return fmt.Sprintf("%s: %s", ErrVerificationFailed, e.Reason)
}

func (e *VerificationError) Unwrap() error {
	return ErrVerificationFailed
}

// IsError reports whether any error in err's chain matches target.
func IsError(err, target error) bool {
	return errors.Is(err, target)
}

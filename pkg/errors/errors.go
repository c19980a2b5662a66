package errors

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidState       = errors.New("invalid state")
	ErrPersistenceFailure = errors.New("persistence failure")
	ErrLoanNotFound       = errors.New("loan not found")
	ErrCurrencyMismatch   = errors.New("currency does not match loan currency")
	ErrForbidden          = errors.New("forbidden")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// Is matches another BusinessError carrying the same code, so callers can
// compare against the sentinels as well as against fresh Wrap* values.
func (e *BusinessError) Is(target error) bool {
	var t *BusinessError
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeInvalidArgument    = "INVALID_ARGUMENT"
	ErrCodeInvalidState       = "INVALID_STATE"
	ErrCodePersistenceFailure = "PERSISTENCE_FAILURE"
	ErrCodeLoanNotFound       = "LOAN_NOT_FOUND"
	ErrCodeCurrencyMismatch   = "CURRENCY_MISMATCH"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeCacheError         = "CACHE_ERROR"
)

// CodeOf returns the code of the first BusinessError in err's chain, or "".
func CodeOf(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// Wrap common errors with business context
func WrapInvalidArgument(format string, args ...any) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidArgument,
		fmt.Sprintf(format, args...),
		ErrInvalidArgument,
	)
}

func WrapInvalidState(format string, args ...any) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidState,
		fmt.Sprintf(format, args...),
		ErrInvalidState,
	)
}

func WrapPersistenceFailure(err error) *BusinessError {
	return NewBusinessError(
		ErrCodePersistenceFailure,
		"database operation failed",
		fmt.Errorf("%w: %w", ErrPersistenceFailure, err),
	)
}

func WrapLoanNotFound(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanNotFound,
		fmt.Sprintf("Loan with ID %s not found", loanID),
		ErrLoanNotFound,
	)
}

func WrapCurrencyMismatch(expected, actual string) *BusinessError {
	return NewBusinessError(
		ErrCodeCurrencyMismatch,
		fmt.Sprintf("Repayment currency %s does not match loan currency %s", actual, expected),
		ErrCurrencyMismatch,
	)
}

func WrapForbidden(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeForbidden,
		fmt.Sprintf("Loan with ID %s does not belong to the caller", loanID),
		ErrForbidden,
	)
}

func WrapCacheError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeCacheError,
		"Cache operation failed",
		err,
	)
}

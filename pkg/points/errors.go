package points

import (
	"errors"
	"fmt"
)

// Domain-level error values returned by the points service.
var (
	ErrAmountTooLarge         = errors.New("amount too large")
	ErrAmountTooSmall         = errors.New("amount too small")
	ErrAmountNotAligned       = errors.New("amount not aligned")
	ErrBalanceCeilingExceeded = errors.New("balance ceiling exceeded")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrStorageUnavailable     = errors.New("storage unavailable")
	ErrInvalidUserID          = errors.New("invalid user id")
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrInvalidPoint           = errors.New("invalid point")
	ErrInvalidTransactionType = errors.New("invalid transaction type")
	ErrInvalidLimits          = errors.New("invalid limits")
	ErrInvalidServiceConfig   = errors.New("invalid service config")
)

// LimitError reports a rejected mutation together with the values that caused the rejection.
type LimitError struct {
	Kind    error
	Amount  Amount
	Balance Point
	Limit   int64
}

func (limitError LimitError) Error() string {
	return fmt.Sprintf("%v: amount=%d balance=%d limit=%d", limitError.Kind, limitError.Amount, limitError.Balance, limitError.Limit)
}

// Unwrap returns the error kind so callers can match it with errors.Is.
func (limitError LimitError) Unwrap() error {
	return limitError.Kind
}

// IsRejection reports whether err is a caller-correctable validation failure.
func IsRejection(err error) bool {
	var limitError LimitError
	return errors.As(err, &limitError)
}

// OperationError wraps a failure with a stable operation code.
type OperationError struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation returns the operation segment.
func (operationError OperationError) Operation() string {
	return operationError.operation
}

// Subject returns the subject segment.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code returns the stable error code segment.
func (operationError OperationError) Code() string {
	return operationError.code
}

// WrapError wraps an error with operation, subject, and code metadata.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}

// WrapStorageError tags a storage driver failure so it matches ErrStorageUnavailable.
func WrapStorageError(subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return WrapError(errorOperationStore, subject, code, fmt.Errorf("%w: %w", ErrStorageUnavailable, err))
}

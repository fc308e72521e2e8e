package exception

import (
	"context"
	"errors"
)

// Sentinel errors of the transfer error taxonomy. Errors produced by the constructors
// below match them with errors.Is.
var (
	// ErrInvalidConfiguration reports settings that can never succeed, such as a
	// non-positive worker count or an unknown database name.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrConnection reports a failure to open or keep a database connection. Transient.
	ErrConnection = errors.New("connection error")
	// ErrQuery reports a failed statement. Transient unless it is also ErrConstraintViolation.
	ErrQuery = errors.New("query error")
	// ErrConstraintViolation reports an integrity constraint failure. Never retried.
	ErrConstraintViolation = errors.New("constraint violation")
	// ErrInvalidIdentifier reports a table or column name rejected by the allow-list.
	ErrInvalidIdentifier = errors.New("invalid identifier")
	// ErrValidationMismatch reports a row count or content hash disagreement.
	ErrValidationMismatch = errors.New("validation mismatch")
	// ErrSagaExhausted reports partitions still failing after the last saga round.
	ErrSagaExhausted = errors.New("saga exhausted")
)

// NewInvalidConfiguration returns a fatal configuration error.
func NewInvalidConfiguration(module, message string) *BatchError {
	return NewBatchError(module, message, ErrInvalidConfiguration, false, false)
}

// NewInvalidIdentifier returns a fatal error for an identifier outside the allow-list.
func NewInvalidIdentifier(module, identifier string) *BatchError {
	return NewBatchErrorf(module, "identifier %q is not allowed", identifier, ErrInvalidIdentifier)
}

// NewConnectionError wraps err as a retryable connection failure.
func NewConnectionError(module, message string, err error) *BatchError {
	return NewBatchError(module, message, errors.Join(ErrConnection, err), false, !isCanceled(err))
}

// NewQueryError wraps err as a query failure. Constraint violations are marked
// permanent; everything else is retryable.
func NewQueryError(module, message string, err error) *BatchError {
	if IsConstraintViolation(err) {
		return NewBatchError(module, message, errors.Join(ErrQuery, ErrConstraintViolation, err), false, false)
	}
	return NewBatchError(module, message, errors.Join(ErrQuery, err), false, !isCanceled(err))
}

// NewValidationMismatch reports a reconciliation failure. It is never retried.
func NewValidationMismatch(module, message string) *BatchError {
	return NewBatchError(module, message, ErrValidationMismatch, false, false)
}

// NewSagaExhausted reports that retry rounds ran out with partitions still failing.
func NewSagaExhausted(module, message string) *BatchError {
	return NewBatchError(module, message, ErrSagaExhausted, false, false)
}

// IsPermanent reports whether retrying err cannot change the outcome.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrConstraintViolation) ||
		errors.Is(err, ErrInvalidIdentifier) ||
		errors.Is(err, ErrInvalidConfiguration) ||
		isCanceled(err) ||
		IsConstraintViolation(err)
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

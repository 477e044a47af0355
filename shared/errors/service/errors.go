package service

import (
	"errors"
	"fmt"
)

var (
	ErrValidation                 = errors.New("invalid order request")
	ErrOrderNotFound              = errors.New("order not found")
	ErrOrderAlreadyExists         = errors.New("order already exists")
	ErrAlreadyTerminalOrExecuting = errors.New("order is already terminal or executing")
	ErrRateLimitExceeded          = errors.New("order rate limit exceeded")
	ErrOracleUnavailable          = errors.New("price oracle unavailable")
	ErrSwapTransient              = errors.New("transient swap failure")
	ErrSwapPermanent              = errors.New("permanent swap failure")
)

type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

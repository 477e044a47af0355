package repository

import "errors"

var (
	ErrOrderNotFound              = errors.New("order not found")
	ErrOrderAlreadyExists         = errors.New("order already exists")
	ErrStateConflict              = errors.New("order status changed concurrently")
	ErrIllegalTransition          = errors.New("illegal order status transition")
	ErrAlreadyTerminalOrExecuting = errors.New("order is already terminal or executing")
	ErrJournalUnavailable         = errors.New("order journal unavailable")
)

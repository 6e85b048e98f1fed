package domain

import "errors"

var (
	// Common domain errors
	ErrJobNotFound       = errors.New("job not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrAlreadyExists     = errors.New("job already exists")
	ErrTerminalState     = errors.New("job already in a terminal state")
	ErrInvalidTransition = errors.New("invalid job state transition")
	ErrResultNotReady    = errors.New("job result not ready")
	ErrQueueSaturated    = errors.New("worker queue saturated")
	ErrReadDatabaseRow   = errors.New("failed to read database row")
)

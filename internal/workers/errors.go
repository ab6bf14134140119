package workers

import "errors"

// Domain errors for the workers package.
var (
	// ErrDuplicateDevice is returned when a device name is configured twice.
	ErrDuplicateDevice = errors.New("workers: duplicate device name")

	// ErrInvalidDevice is returned when a device entry is missing its name
	// or address.
	ErrInvalidDevice = errors.New("workers: invalid device")

	// ErrPollPanic wraps a panic recovered from a driver call.
	ErrPollPanic = errors.New("workers: driver panicked")

	// ErrUnknownWorker is returned when a worker name has no registered factory.
	ErrUnknownWorker = errors.New("workers: unknown worker")
)

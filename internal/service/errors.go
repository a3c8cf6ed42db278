package service

import (
	"errors"
	"fmt"
)

// Caller-facing failure taxonomy. Handlers map these onto HTTP status
// codes with errors.Is; every error carries a human-readable reason.
var (
	// ErrInvalidInput rejects bad caller input (empty title, empty tag
	// name, reminder after due date) before any persistence call.
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")

	// Backup import failures. All are recoverable: validation runs
	// before any mutation, so no partial state is committed.
	ErrBackupEmpty        = errors.New("backup file is empty")
	ErrInvalidSchema      = errors.New("invalid backup schema")
	ErrValidationFailed   = errors.New("backup validation failed")
	ErrVersionUnsupported = errors.New("backup version unsupported")

	// ErrPersistence wraps store save/fetch errors. The operation
	// aborts and no in-memory state diverges from what was committed.
	ErrPersistence = errors.New("persistence failure")
)

func invalidInputf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func notFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func validationFailedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidationFailed, fmt.Sprintf(format, args...))
}

func persistencef(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

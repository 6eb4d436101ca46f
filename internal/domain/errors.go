package domain

import "errors"

var (
	// ErrInvalidInput marks parameters rejected before any computation starts.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnstableResult marks an estimate whose numbers cannot be trusted at the
	// working precision, e.g. a vanishing acceptance probability.
	ErrUnstableResult = errors.New("numerically unstable result")
	// ErrNotFound marks a lookup of an unknown record.
	ErrNotFound = errors.New("not found")
)

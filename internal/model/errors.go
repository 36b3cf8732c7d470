package model

import "errors"

var (
	// ErrInsufficientData means a series is too short for the requested window.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrProviderUnavailable means market data could not be fetched for a symbol.
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrStaleQuote means the quote is older than the accepted age.
	ErrStaleQuote = errors.New("stale quote")
	// ErrPersistenceConflict means a conditional write found the record already changed.
	ErrPersistenceConflict = errors.New("persistence conflict")
	// ErrPersistenceFailure is a transient storage error.
	ErrPersistenceFailure = errors.New("persistence failure")
	// ErrNotFound means the record does not exist or is not owned by the caller.
	ErrNotFound = errors.New("not found")
	// ErrInvalidAlert means an alert request failed validation.
	ErrInvalidAlert = errors.New("invalid alert")
)

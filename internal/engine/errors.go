package engine

import "errors"

// Errors returned by engine operations.
var (
	// ErrClosed is returned by operations on a closed engine.
	ErrClosed = errors.New("engine is closed")

	// ErrNoDocument is returned by operations that need a document before
	// SetDocument was called.
	ErrNoDocument = errors.New("no document")
)

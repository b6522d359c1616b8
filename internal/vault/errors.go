package vault

import "errors"

var (
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("vault: closed")

	// ErrNotDirectory is returned when the root is not a directory.
	ErrNotDirectory = errors.New("vault: root is not a directory")

	// ErrOutsideRoot is returned for paths that escape the root.
	ErrOutsideRoot = errors.New("vault: path outside root")
)

package decor

import (
	"errors"
	"fmt"
)

var (
	// ErrUnordered is returned by Validate when entries are out of order.
	ErrUnordered = errors.New("decorations out of order")

	// ErrOverlap is returned by Validate when range-scoped entries overlap.
	ErrOverlap = errors.New("overlapping decorations")

	// ErrEmptyRange is returned by Validate for a range-scoped entry with no bytes.
	ErrEmptyRange = errors.New("empty decoration range")
)

// EntryError reports the entry that failed validation.
type EntryError struct {
	Index int
	Entry Entry
	Err   error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("entry %d %s: %v", e.Index, e.Entry, e.Err)
}

func (e *EntryError) Unwrap() error {
	return e.Err
}

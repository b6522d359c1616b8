package resolve

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a habit, note or item does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnknownOperator is returned for a filter operator outside the supported set.
	ErrUnknownOperator = errors.New("unknown filter operator")

	// ErrInvalidConfig is returned when block configuration fails validation.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnsupported is returned by collaborators that do not implement an operation.
	ErrUnsupported = errors.New("operation not supported")
)

// ConfigError describes a configuration problem at a YAML path.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

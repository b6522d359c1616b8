package config

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalid wraps every validation failure.
	ErrInvalid = errors.New("invalid configuration")

	// ErrUnknownSetting is returned for keys that match no setting.
	ErrUnknownSetting = errors.New("unknown setting")
)

// FieldError reports one invalid setting.
type FieldError struct {
	Path    string
	Value   any
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s = %v: %s", e.Path, e.Value, e.Message)
}

func (e *FieldError) Unwrap() error {
	return ErrInvalid
}

// ValidationError collects every invalid setting of a Config.
type ValidationError struct {
	Fields []*FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Error()
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalid
}

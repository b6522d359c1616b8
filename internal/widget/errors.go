package widget

import (
	"errors"
	"fmt"

	"github.com/dshills/livemark/internal/decor"
)

// Sentinel errors for widget interaction.
var (
	// ErrUnknownWidget is returned when no live instance has the key.
	ErrUnknownWidget = errors.New("unknown widget")

	// ErrUnknownAction is returned when a view does not offer the action.
	ErrUnknownAction = errors.New("unknown action")

	// ErrWrongKind is returned when an operation does not apply to the widget kind.
	ErrWrongKind = errors.New("operation does not apply to widget kind")

	// ErrNotReady is returned when an interaction needs loaded data.
	ErrNotReady = errors.New("widget data not loaded")

	// ErrNoCollaborator is returned when the contract needed for an action is not configured.
	ErrNoCollaborator = errors.New("collaborator not configured")

	// ErrNotEditable is returned when a habit block disallows edits.
	ErrNotEditable = errors.New("habit block is not editable")

	// ErrInvalidRating is returned for rating values outside 1..5.
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
)

// ConfigParseError reports block configuration that could not be parsed.
// It is shown inside the widget frame and never triggers a fetch.
type ConfigParseError struct {
	Kind decor.WidgetKind
	Err  error
}

func (e *ConfigParseError) Error() string {
	return fmt.Sprintf("invalid %s configuration: %v", e.Kind, e.Err)
}

func (e *ConfigParseError) Unwrap() error {
	return e.Err
}

// FetchError reports a failed resolution by an external collaborator.
type FetchError struct {
	Kind decor.WidgetKind
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s fetch failed: %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// RecursionLimitError reports an embed nested deeper than the limit.
type RecursionLimitError struct {
	Target string
	Depth  int
	Max    int
}

func (e *RecursionLimitError) Error() string {
	return fmt.Sprintf("Maximum embed depth (%d) exceeded at %s", e.Max, e.Target)
}

// PanicError wraps a value recovered from a panicking renderer.
type PanicError struct {
	Kind  decor.WidgetKind
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%s widget panicked: %v", e.Kind, e.Value)
}

package plugin

import (
	"errors"
	"fmt"
)

// Plugin system errors.
var (
	// ErrHostClosed is returned when scanning with a closed host.
	ErrHostClosed = errors.New("plugin host is closed")

	// ErrNoScanFunc is returned when a script does not define scan_line.
	ErrNoScanFunc = errors.New("plugin does not define scan_line")

	// ErrPluginDisabled is returned when a host was disabled after repeated failures.
	ErrPluginDisabled = errors.New("plugin is disabled")

	// ErrBadResult is returned when scan_line returns something other than a list.
	ErrBadResult = errors.New("scan_line must return a table")
)

// ScriptError wraps a failure inside a named plugin.
type ScriptError struct {
	Plugin string
	Err    error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("plugin %s: %v", e.Plugin, e.Err)
}

func (e *ScriptError) Unwrap() error {
	return e.Err
}

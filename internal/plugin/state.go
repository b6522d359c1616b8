package plugin

// State represents the lifecycle state of a plugin.
type State int

// Plugin states.
const (
	// StateUnloaded - no script has been loaded.
	StateUnloaded State = iota

	// StateActive - the script is loaded and scanning.
	StateActive

	// StateDisabled - the script failed too often and is skipped.
	StateDisabled

	// StateClosed - the Lua state was released.
	StateClosed
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateActive:
		return "active"
	case StateDisabled:
		return "disabled"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// IsUsable returns true if the plugin can scan.
func (s State) IsUsable() bool {
	return s == StateActive
}

package schedule

import "errors"

var (
	// ErrLoopClosed is returned by Run after Close.
	ErrLoopClosed = errors.New("schedule: loop closed")

	// ErrLoopRunning is returned when Run is called twice.
	ErrLoopRunning = errors.New("schedule: loop already running")
)

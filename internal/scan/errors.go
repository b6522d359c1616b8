package scan

import "errors"

// ErrUnmatchedBlock is returned internally when a block is opened but never closed.
// Such blocks are still being typed and are dropped without being surfaced.
var ErrUnmatchedBlock = errors.New("block opened but not closed")

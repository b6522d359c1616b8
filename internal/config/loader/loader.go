// Package loader reads configuration sources into generic maps.
//
// A file and the environment each produce a map[string]any keyed by section
// and setting; DeepMerge layers them before the config package decodes the
// result into typed sections.
package loader

import (
	"io/fs"
	"os"
)

// Loader produces a configuration map. A missing source yields nil, nil.
type Loader interface {
	Load() (map[string]any, error)
}

// FileSystem is the file access a loader needs. Tests substitute an
// in-memory implementation.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
	Stat(path string) (fs.FileInfo, error)
}

// OSFS reads from the real file system.
type OSFS struct{}

func (OSFS) ReadFile(path string) ([]byte, error) { return os.ReadFile(path) }

func (OSFS) Stat(path string) (fs.FileInfo, error) { return os.Stat(path) }

// DefaultFS returns the OS file system.
func DefaultFS() FileSystem {
	return OSFS{}
}

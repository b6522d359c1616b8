// Package document provides the read-only text snapshot the decoration engine works on.
//
// A Document is an immutable, line-indexed view of the editor text at one version.
// The host owns storage and editing; every mutation produces a new Document with a
// higher version, which lets downstream stages memoize on the version counter alone.
//
// All positions are byte offsets into the UTF-8 text. Lines are numbered from zero
// and their ranges exclude the trailing newline.
package document

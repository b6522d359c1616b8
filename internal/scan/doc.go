// Package scan detects structural blocks in a document.
//
// Each BlockScanner makes one linear pass over the whole document with a small
// state machine (not in block, in block). A start-marker line opens a block and a
// close-marker or non-continuation line closes it. Blocks still being typed, such
// as a fence without its closing marker, produce nothing.
//
// Blocks are transient: they are recomputed on every document version and matched
// across passes only by their raw text.
package scan

package scan

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/dshills/livemark/internal/document"
)

// Kind identifies the syntax family of a block.
type Kind uint8

const (
	// KindCallout is a "> [!type] title" callout with continuation lines.
	KindCallout Kind = iota

	// KindQueryEmbed is a fenced ```query block.
	KindQueryEmbed

	// KindHabitTracker is a fenced ```habit block.
	KindHabitTracker

	// KindFrontmatter is the YAML frontmatter at the start of the document.
	KindFrontmatter

	// KindCodeBlock is any other fenced code block. It is kept raw and styled.
	KindCodeBlock

	// KindInlineToken marks tokens found by inline scanners.
	KindInlineToken
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindCallout:
		return "callout"
	case KindQueryEmbed:
		return "query"
	case KindHabitTracker:
		return "habit"
	case KindFrontmatter:
		return "frontmatter"
	case KindCodeBlock:
		return "code"
	case KindInlineToken:
		return "inline"
	default:
		return "unknown"
	}
}

// Payload is the kind-specific parsed configuration of a block.
type Payload interface {
	isPayload()
}

// Block is a detected structural region of the document.
type Block struct {
	// Kind is the syntax family.
	Kind Kind

	// StartLine and EndLine are the first and last line, inclusive.
	StartLine int
	EndLine   int

	// From and To span the block text, excluding the final newline.
	From int
	To   int

	// Raw is the exact source text of the block lines.
	Raw string

	// Config holds the parsed configuration for the kind.
	Config Payload

	// Scanner is the name of the scanner that found the block.
	Scanner string
}

// Range returns the byte range of the block.
func (b Block) Range() document.Range {
	return document.Range{From: b.From, To: b.To}
}

// ContainsLine returns true if line n is part of the block.
func (b Block) ContainsLine(n int) bool {
	return n >= b.StartLine && n <= b.EndLine
}

// Lines returns the number of lines in the block.
func (b Block) Lines() int {
	return b.EndLine - b.StartLine + 1
}

// Callout returns the callout payload if the block is a callout.
func (b Block) Callout() (*Callout, bool) {
	c, ok := b.Config.(*Callout)
	return c, ok
}

// Fence returns the fence payload for query, habit and code blocks.
func (b Block) Fence() (*Fence, bool) {
	f, ok := b.Config.(*Fence)
	return f, ok
}

// Frontmatter returns the frontmatter payload.
func (b Block) Frontmatter() (*Frontmatter, bool) {
	f, ok := b.Config.(*Frontmatter)
	return f, ok
}

// ContentHash returns a stable hash of the raw block text.
func ContentHash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:8])
}

// newBlock builds a block covering lines start..end of doc.
func newBlock(doc *document.Document, kind Kind, start, end int, cfg Payload) Block {
	first := doc.Line(start)
	last := doc.Line(end)
	return Block{
		Kind:      kind,
		StartLine: start,
		EndLine:   end,
		From:      first.From,
		To:        last.To,
		Raw:       doc.Slice(document.Range{From: first.From, To: last.To}),
		Config:    cfg,
	}
}

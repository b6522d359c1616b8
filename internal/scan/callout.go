package scan

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/dshills/livemark/internal/document"
)

// Fold is the collapse modifier written after the callout type.
type Fold uint8

const (
	// FoldNone means no modifier; the callout starts expanded.
	FoldNone Fold = iota

	// FoldOpen is the "+" modifier: collapsible, expanded by default.
	FoldOpen

	// FoldClosed is the "-" modifier: collapsible, collapsed by default.
	FoldClosed
)

// Callout is the payload of a callout block.
type Callout struct {
	// Type is the case-folded callout type ("note", "warning", ...).
	Type string

	// Title is the explicit title, or the title-cased type when none is given.
	Title string

	// Fold is the collapse modifier.
	Fold Fold

	// Header is the raw header line.
	Header string

	// Content holds the content lines with the "> " prefix removed.
	Content []string

	// PrefixLens holds, per content line, the byte length of the quote prefix.
	PrefixLens []int

	// Key is the stable identity of the callout, assigned by the Registry.
	Key string
}

func (*Callout) isPayload() {}

// DefaultCollapsed reports whether the marker asks for a collapsed callout.
func (c *Callout) DefaultCollapsed() bool {
	return c.Fold == FoldClosed
}

var (
	calloutHeader = regexp.MustCompile(`^ {0,3}>\s*\[!([^\]\s]+)\]([+-]?)\s*(.*)$`)
	quotePrefix   = regexp.MustCompile(`^ {0,3}> ?`)

	titleCaser = cases.Title(language.English)
	typeFolder = cases.Fold()
)

// CalloutScanner detects callout blocks.
type CalloutScanner struct{}

// NewCalloutScanner creates a callout scanner.
func NewCalloutScanner() *CalloutScanner {
	return &CalloutScanner{}
}

// Name returns the scanner name.
func (s *CalloutScanner) Name() string { return "callout" }

// Scan finds all callouts. A callout runs from its header line through every
// following line that starts with a quote marker. A new header closes the
// previous callout and opens another.
func (s *CalloutScanner) Scan(doc *document.Document) []Block {
	var blocks []Block
	st := stateNotInBlock
	var cur *Callout
	start := 0

	closeBlock := func(end int) {
		blocks = append(blocks, newBlock(doc, KindCallout, start, end, cur))
		cur = nil
		st = stateNotInBlock
	}

	for n := 0; n < doc.LineCount(); n++ {
		text := doc.Line(n).Text
		header := calloutHeader.FindStringSubmatch(text)

		if st == stateInBlock {
			if header == nil && quotePrefix.MatchString(text) {
				prefix := quotePrefix.FindString(text)
				cur.Content = append(cur.Content, text[len(prefix):])
				cur.PrefixLens = append(cur.PrefixLens, len(prefix))
				continue
			}
			closeBlock(n - 1)
		}

		if header != nil {
			cur = parseCalloutHeader(text, header)
			start = n
			st = stateInBlock
		}
	}
	if st == stateInBlock {
		closeBlock(doc.LineCount() - 1)
	}
	return blocks
}

func parseCalloutHeader(line string, m []string) *Callout {
	c := &Callout{
		Type:   typeFolder.String(m[1]),
		Header: line,
	}
	switch m[2] {
	case "+":
		c.Fold = FoldOpen
	case "-":
		c.Fold = FoldClosed
	}
	c.Title = strings.TrimSpace(m[3])
	if c.Title == "" {
		c.Title = titleCaser.String(strings.ReplaceAll(c.Type, "-", " "))
	}
	return c
}

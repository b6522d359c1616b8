package scan

import (
	"regexp"
	"strings"

	"github.com/dshills/livemark/internal/document"
)

// Fence is the payload of fenced blocks.
type Fence struct {
	// Lang is the lower-cased info string word ("query", "habit", "go", ...).
	Lang string

	// Marker is the opening fence marker ("```" or "~~~~").
	Marker string

	// Body is the text between the fence lines.
	Body string
}

func (*Fence) isPayload() {}

var fenceOpen = regexp.MustCompile("^ {0,3}(`{3,}|~{3,})\\s*([^\\s`]*)")

// FenceScanner detects fenced blocks and classifies them by language.
type FenceScanner struct {
	langs map[string]Kind
}

// NewFenceScanner creates a fence scanner recognizing query and habit blocks.
// All other fences become code blocks.
func NewFenceScanner() *FenceScanner {
	return &FenceScanner{langs: map[string]Kind{
		"query":         KindQueryEmbed,
		"habit":         KindHabitTracker,
		"habits":        KindHabitTracker,
		"habit-tracker": KindHabitTracker,
	}}
}

// Name returns the scanner name.
func (s *FenceScanner) Name() string { return "fence" }

// Scan finds all closed fenced blocks.
func (s *FenceScanner) Scan(doc *document.Document) []Block {
	var blocks []Block
	for n := 0; n < doc.LineCount(); n++ {
		m := fenceOpen.FindStringSubmatch(doc.Line(n).Text)
		if m == nil {
			continue
		}
		b, err := s.scanFence(doc, n, m[1], strings.ToLower(m[2]))
		if err != nil {
			// Unterminated: everything after the opener is still being typed.
			break
		}
		blocks = append(blocks, b)
		n = b.EndLine
	}
	return blocks
}

func (s *FenceScanner) scanFence(doc *document.Document, start int, marker, lang string) (Block, error) {
	var body []string
	for n := start + 1; n < doc.LineCount(); n++ {
		text := doc.Line(n).Text
		if isFenceClose(text, marker) {
			kind, ok := s.langs[lang]
			if !ok {
				kind = KindCodeBlock
			}
			f := &Fence{Lang: lang, Marker: marker, Body: strings.Join(body, "\n")}
			return newBlock(doc, kind, start, n, f), nil
		}
		body = append(body, text)
	}
	return Block{}, ErrUnmatchedBlock
}

func isFenceClose(line, marker string) bool {
	t := strings.TrimSpace(line)
	if len(t) < len(marker) {
		return false
	}
	return strings.Trim(t, marker[:1]) == ""
}

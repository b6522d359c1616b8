package scan

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dshills/livemark/internal/document"
)

// state is the per-scanner block state.
type state uint8

const (
	stateNotInBlock state = iota
	stateInBlock
)

// BlockScanner finds blocks of one syntax family.
type BlockScanner interface {
	// Name identifies the scanner in decoration entries and logs.
	Name() string

	// Scan returns the blocks found in doc, in document order, never overlapping.
	Scan(doc *document.Document) []Block
}

// Registry runs an ordered set of block scanners and merges their output.
type Registry struct {
	scanners []BlockScanner
}

// NewRegistry creates a registry with the given scanners in priority order.
func NewRegistry(scanners ...BlockScanner) *Registry {
	return &Registry{scanners: scanners}
}

// DefaultRegistry returns the built-in scanners: frontmatter, fences, callouts.
func DefaultRegistry() *Registry {
	return NewRegistry(NewFrontmatterScanner(), NewFenceScanner(), NewCalloutScanner())
}

// Register appends a scanner with the lowest priority.
func (r *Registry) Register(s BlockScanner) {
	r.scanners = append(r.scanners, s)
}

// Scanners returns the registered scanners.
func (r *Registry) Scanners() []BlockScanner {
	return r.scanners
}

// Scan runs every scanner and returns a globally ordered, non-overlapping block list.
// When two blocks overlap, the one starting first wins; at equal start the
// higher-priority scanner wins. Callout keys are assigned after the merge.
func (r *Registry) Scan(doc *document.Document) []Block {
	type ranked struct {
		block    Block
		priority int
	}
	var all []ranked
	for i, s := range r.scanners {
		for _, b := range s.Scan(doc) {
			b.Scanner = s.Name()
			all = append(all, ranked{block: b, priority: i})
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].block.StartLine != all[j].block.StartLine {
			return all[i].block.StartLine < all[j].block.StartLine
		}
		return all[i].priority < all[j].priority
	})

	blocks := make([]Block, 0, len(all))
	lastEnd := -1
	for _, rb := range all {
		if rb.block.StartLine <= lastEnd {
			continue
		}
		blocks = append(blocks, rb.block)
		lastEnd = rb.block.EndLine
	}
	assignCalloutKeys(blocks)
	return blocks
}

// assignCalloutKeys derives a stable identity from the header text and its
// ordinal among callouts with the same header. Inserting or deleting lines
// elsewhere does not change the key.
func assignCalloutKeys(blocks []Block) {
	seen := make(map[string]int)
	for _, b := range blocks {
		c, ok := b.Callout()
		if !ok {
			continue
		}
		header := strings.TrimSpace(c.Header)
		c.Key = fmt.Sprintf("%s#%d", header, seen[header])
		seen[header]++
	}
}

// Memo caches the registry output behind the document version counter.
type Memo struct {
	registry *Registry
	version  uint64
	valid    bool
	blocks   []Block

	hits   uint64
	misses uint64
}

// NewMemo creates a memoizing wrapper around the registry.
func NewMemo(r *Registry) *Memo {
	return &Memo{registry: r}
}

// Blocks returns the blocks for doc, rescanning only when the version changed.
func (m *Memo) Blocks(doc *document.Document) []Block {
	if m.valid && m.version == doc.Version() {
		m.hits++
		return m.blocks
	}
	m.misses++
	m.blocks = m.registry.Scan(doc)
	m.version = doc.Version()
	m.valid = true
	return m.blocks
}

// Invalidate forces the next call to rescan.
func (m *Memo) Invalidate() {
	m.valid = false
}

// Stats returns the hit and miss counters.
func (m *Memo) Stats() (hits, misses uint64) {
	return m.hits, m.misses
}

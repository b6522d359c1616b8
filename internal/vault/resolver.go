package vault

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dshills/livemark/internal/resolve"
)

// ResolveEmbed implements resolve.EmbedResolver. Missing targets and the
// depth limit are reported in the result, not as errors.
func (v *Vault) ResolveEmbed(ctx context.Context, req resolve.EmbedRequest) (*resolve.EmbedResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Depth > resolve.MaxEmbedDepth {
		return &resolve.EmbedResult{
			Path:  req.Target,
			Error: fmt.Sprintf("Maximum embed depth (%d) exceeded", resolve.MaxEmbedDepth),
		}, nil
	}

	v.mu.RLock()
	closed := v.closed
	v.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}

	if kind := resolve.MediaKindOf(req.Target); kind != resolve.MediaNone {
		rel, ok := v.lookupMedia(req.Target)
		if !ok {
			return &resolve.EmbedResult{Path: req.Target, Media: kind, Error: "Media not found: " + req.Target}, nil
		}
		return &resolve.EmbedResult{
			Path:      rel,
			Media:     kind,
			AssetPath: filepath.Join(v.root, filepath.FromSlash(rel)),
		}, nil
	}

	n, ok := v.Lookup(req.Target)
	if !ok {
		return &resolve.EmbedResult{Path: req.Target, Error: "Note not found: " + req.Target}, nil
	}
	content := n.Content
	if req.Section != "" {
		section, found := resolve.ExtractSection(content, req.Section)
		if !found {
			section = fmt.Sprintf("Section '%s' not found", req.Section)
		}
		content = section
	}
	return &resolve.EmbedResult{NoteID: n.ID, Path: n.Path, Title: n.Title, Content: content}, nil
}

func (v *Vault) lookupMedia(target string) (string, bool) {
	key := strings.ToLower(strings.TrimPrefix(filepath.ToSlash(target), "./"))
	v.mu.RLock()
	defer v.mu.RUnlock()
	if rel, ok := v.media[key]; ok {
		return rel, true
	}
	rel, ok := v.media[filepath.Base(key)]
	return rel, ok
}

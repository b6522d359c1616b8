package widget

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/dshills/livemark/internal/cache"
	"github.com/dshills/livemark/internal/decor"
	"github.com/dshills/livemark/internal/event"
	"github.com/dshills/livemark/internal/resolve"
	"github.com/dshills/livemark/internal/scan/inline"
)

var nestedEmbedRe = regexp.MustCompile(`!\[\[([^\[\]]+)\]\]`)

// embedNode is one resolved level of an embed tree.
type embedNode struct {
	Req      resolve.EmbedRequest
	Result   *resolve.EmbedResult
	Err      error
	Children []nestedEmbed
}

// nestedEmbed is an embed found on a content line of its parent.
type nestedEmbed struct {
	Line int
	Node *embedNode
}

// walk calls fn for n and every descendant.
func (n *embedNode) walk(fn func(*embedNode)) {
	fn(n)
	for _, c := range n.Children {
		c.Node.walk(fn)
	}
}

type embedWidget struct {
	env    *Env
	embed  inline.Embed
	remote bool
}

func newEmbed(spec *decor.WidgetSpec, env *Env) *embedWidget {
	w := &embedWidget{env: env}
	if spec.Token != nil && spec.Token.Embed != nil {
		w.embed = *spec.Token.Embed
	}
	t := strings.ToLower(w.embed.Target)
	w.remote = strings.HasPrefix(t, "http://") || strings.HasPrefix(t, "https://")
	return w
}

func (*embedWidget) Kind() decor.WidgetKind { return decor.WidgetEmbed }

// getter returns the result for one request. ok is false when the
// result is not available without fetching.
type getter func(req resolve.EmbedRequest) (res *resolve.EmbedResult, ok bool, err error)

func (w *embedWidget) Peek() (Result, bool) {
	if w.embed.Target == "" {
		return Result{Err: &ConfigParseError{Kind: decor.WidgetEmbed, Err: errors.New("empty embed target")}}, true
	}
	if w.remote {
		kind := resolve.MediaKindOf(w.embed.Target)
		if kind == resolve.MediaNone {
			kind = resolve.MediaImage
		}
		res := &resolve.EmbedResult{Path: w.embed.Target, Media: kind, AssetPath: w.embed.Target}
		return Result{Data: &embedNode{Req: w.root(), Result: res}}, true
	}
	if w.env.Collab.Embeds == nil {
		return Result{Err: &FetchError{Kind: decor.WidgetEmbed, Err: fmt.Errorf("%w: embed resolver", ErrNoCollaborator)}}, true
	}
	n, ok := w.build(w.root(), w.cached)
	if !ok {
		return Result{}, false
	}
	return w.result(n), true
}

func (w *embedWidget) Load(ctx context.Context) Result {
	n, _ := w.build(w.root(), w.fetcher(ctx))
	return w.result(n)
}

func (w *embedWidget) root() resolve.EmbedRequest {
	return resolve.EmbedRequest{Target: w.embed.Target, Section: w.embed.Section, Depth: 1}
}

// result turns a failed root into a widget error; failures deeper in the
// tree render inline under their parent.
func (w *embedWidget) result(n *embedNode) Result {
	switch {
	case n.Err != nil:
		return Result{Err: n.Err}
	case n.Result.Error != "":
		return Result{Err: &FetchError{Kind: decor.WidgetEmbed, Err: errors.New(n.Result.Error)}}
	}
	return Result{Data: n}
}

func (w *embedWidget) cached(req resolve.EmbedRequest) (*resolve.EmbedResult, bool, error) {
	res, ok := w.env.Caches.Embed.Get(cache.EmbedKey(req.Target, req.Section, req.Depth))
	return res, ok, nil
}

func (w *embedWidget) fetcher(ctx context.Context) getter {
	return func(req resolve.EmbedRequest) (*resolve.EmbedResult, bool, error) {
		key := cache.EmbedKey(req.Target, req.Section, req.Depth)
		if res, ok := w.env.Caches.Embed.Get(key); ok {
			return res, true, nil
		}
		res, err := w.env.Collab.Embeds.ResolveEmbed(ctx, req)
		if err != nil {
			return nil, true, err
		}
		if res == nil {
			return nil, true, fmt.Errorf("%s: %w", req.Target, resolve.ErrNotFound)
		}
		if res.Error == "" {
			w.env.Caches.Embed.Set(key, res)
		}
		return res, true, nil
	}
}

// build resolves req and, for notes, every embed nested in its content,
// down to the depth limit. It returns false as soon as get cannot answer.
func (w *embedWidget) build(req resolve.EmbedRequest, get getter) (*embedNode, bool) {
	n := &embedNode{Req: req}
	if req.Depth > w.env.MaxEmbedDepth {
		n.Err = &RecursionLimitError{Target: req.Target, Depth: req.Depth, Max: w.env.MaxEmbedDepth}
		return n, true
	}
	res, ok, err := get(req)
	if !ok {
		return nil, false
	}
	if err != nil {
		n.Err = &FetchError{Kind: decor.WidgetEmbed, Err: err}
		return n, true
	}
	n.Result = res
	if res.Error != "" || res.IsMedia() {
		return n, true
	}

	for i, line := range contentLines(res.Content) {
		for _, m := range nestedEmbedRe.FindAllStringSubmatch(line, -1) {
			e := inline.ParseEmbed(m[1])
			if e.Target == "" {
				continue
			}
			child, ok := w.build(resolve.EmbedRequest{Target: e.Target, Section: e.Section, Depth: req.Depth + 1}, get)
			if !ok {
				return nil, false
			}
			n.Children = append(n.Children, nestedEmbed{Line: i, Node: child})
		}
	}
	return n, true
}

// OnExternalEvent marks the embed stale when a saved note is any level of
// its tree.
func (w *embedWidget) OnExternalEvent(ev event.Event, data any) bool {
	saved, ok := ev.Payload.(event.NoteSaved)
	if ev.Topic != event.TopicNoteSaved || !ok {
		return false
	}
	targets := saved.Targets()
	hit := func(target string) bool {
		t := cache.NormalizeTarget(target)
		for _, s := range targets {
			if cache.NormalizeTarget(s) == t {
				return true
			}
		}
		return false
	}

	n, _ := data.(*embedNode)
	if n == nil {
		return hit(w.embed.Target)
	}
	stale := false
	n.walk(func(c *embedNode) {
		if hit(c.Req.Target) {
			stale = true
		}
	})
	return stale
}


// contentLines splits note content into lines, dropping frontmatter.
func contentLines(content string) []string {
	lines := strings.Split(content, "\n")
	if len(lines) > 0 && strings.TrimSpace(lines[0]) == "---" {
		for i := 1; i < len(lines); i++ {
			if t := strings.TrimSpace(lines[i]); t == "---" || t == "..." {
				lines = lines[i+1:]
				break
			}
		}
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func (w *embedWidget) Render(rc RenderContext) View {
	n := rc.Data.(*embedNode)
	b := newBuilder(decor.WidgetEmbed, !n.Result.IsMedia())
	r := embedRenderer{b: b, g: rc.Glyphs}
	if n.Result.IsMedia() {
		r.media(n, "", w.embed)
		return b.build()
	}
	r.note(n, "")
	return b.build()
}

type embedRenderer struct {
	b *builder
	g Glyphs
}

func (r *embedRenderer) media(n *embedNode, prefix string, e inline.Embed) {
	res := n.Result
	label := e.Alt
	if label == "" {
		label = res.Path
	}
	text := string(res.Media) + ": " + label
	if e.Size != nil {
		text += " [" + e.Size.String() + "]"
	}
	segs := []Segment{}
	if prefix != "" {
		segs = append(segs, seg(prefix, "embed-gutter"))
	}
	segs = append(segs, seg(r.g.Embed+" ", "embed-icon"), seg(text, "embed-media embed-"+string(res.Media)))
	if res.AssetPath != "" && res.AssetPath != label {
		segs = append(segs, seg(" ("+res.AssetPath+")", "embed-asset"))
	}
	r.b.line("embed-media", segs...)
}

func (r *embedRenderer) note(n *embedNode, prefix string) {
	res := n.Result
	title := res.Title
	if title == "" {
		title = res.Path
	}
	if n.Req.Section != "" {
		title += " › " + n.Req.Section
	}
	link := Action{Kind: ActFollowLink, Link: resolve.Link{ID: res.NoteID, Path: res.Path, Title: res.Title}}
	r.b.line("embed-title", seg(prefix, "embed-gutter"), seg(r.g.Embed+" ", "embed-icon"), r.b.act(title, "embed-title", link))

	children := make(map[int][]*embedNode)
	for _, c := range n.Children {
		children[c.Line] = append(children[c.Line], c.Node)
	}
	for i, line := range contentLines(res.Content) {
		if kids, ok := children[i]; ok {
			for _, c := range kids {
				r.child(c, prefix+r.g.Nested)
			}
			continue
		}
		r.b.line("embed-content", seg(prefix, "embed-gutter"), seg(line, "embed-text"))
	}
}

func (r *embedRenderer) child(n *embedNode, prefix string) {
	switch {
	case n.Err != nil:
		r.errorLine(prefix, n.Err.Error())
	case n.Result.Error != "":
		r.errorLine(prefix, n.Result.Error)
	case n.Result.IsMedia():
		r.media(n, prefix, inline.Embed{Target: n.Req.Target})
	default:
		r.note(n, prefix)
	}
}

func (r *embedRenderer) errorLine(prefix, msg string) {
	r.b.line("widget-error", seg(prefix, "embed-gutter"), seg(r.g.Error+" ", "widget-error-icon"), seg(msg, "widget-error-message"))
}

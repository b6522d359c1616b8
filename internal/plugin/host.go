package plugin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"fortio.org/safecast"
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/livemark/internal/document"
	"github.com/dshills/livemark/internal/scan/inline"
)

// Default limits for plugin execution.
const (
	DefaultCallTimeout = 50 * time.Millisecond
	DefaultMaxFailures = 3
	DefaultClass       = "plugin"
)

// Host runs one Lua scanner script.
//
// gopher-lua states are not goroutine-safe; the mutex serializes calls.
type Host struct {
	mu sync.Mutex

	name        string
	L           *lua.LState
	state       State
	failures    int
	maxFailures int
	timeout     time.Duration
	lastErr     error
}

// HostOption configures a Host.
type HostOption func(*Host)

// WithCallTimeout sets the timeout for a single scan_line call.
func WithCallTimeout(d time.Duration) HostOption {
	return func(h *Host) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// WithMaxFailures sets how many consecutive failures disable the host.
func WithMaxFailures(n int) HostOption {
	return func(h *Host) {
		if n > 0 {
			h.maxFailures = n
		}
	}
}

// NewHost creates a host named name from Lua source.
func NewHost(name, source string, opts ...HostOption) (*Host, error) {
	h := &Host{
		name:        name,
		state:       StateUnloaded,
		maxFailures: DefaultMaxFailures,
		timeout:     DefaultCallTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}

	h.L = newSandboxedState()
	if err := h.load(source); err != nil {
		h.L.Close()
		h.state = StateClosed
		return nil, &ScriptError{Plugin: name, Err: err}
	}
	h.state = StateActive
	return h, nil
}

// LoadFile creates a host from a script on disk. The plugin is named after
// the file without its extension.
func LoadFile(path string, opts ...HostOption) (*Host, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plugin: %w", err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return NewHost(name, string(data), opts...)
}

func (h *Host) load(source string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout*10)
	defer cancel()
	h.L.SetContext(ctx)
	defer h.L.RemoveContext()

	if err := h.L.DoString(source); err != nil {
		return err
	}
	if fn := h.L.GetGlobal("scan_line"); fn.Type() != lua.LTFunction {
		return ErrNoScanFunc
	}
	return nil
}

// Name returns the plugin name.
func (h *Host) Name() string {
	return h.name
}

// State returns the host's lifecycle state.
func (h *Host) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// LastError returns the most recent scan failure.
func (h *Host) LastError() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastErr
}

// ScanLine calls scan_line with the text after skip and converts the
// returned spans to tokens. Spans outside the text are dropped.
func (h *Host) ScanLine(ctx context.Context, line document.Line, skip int) ([]inline.Token, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch h.state {
	case StateClosed:
		return nil, ErrHostClosed
	case StateDisabled:
		return nil, ErrPluginDisabled
	}
	if skip > len(line.Text) {
		skip = len(line.Text)
	}
	text := line.Text[skip:]

	result, err := h.call(ctx, text)
	if err != nil {
		h.failures++
		h.lastErr = err
		if h.failures >= h.maxFailures {
			h.state = StateDisabled
		}
		return nil, &ScriptError{Plugin: h.name, Err: err}
	}
	h.failures = 0

	base := line.From + skip
	var tokens []inline.Token
	result.ForEach(func(_, v lua.LValue) {
		tbl, ok := v.(*lua.LTable)
		if !ok {
			return
		}
		tok, ok := h.toToken(tbl, len(text), base)
		if !ok {
			return
		}
		tok.Line = line.Number
		tokens = append(tokens, tok)
	})
	return tokens, nil
}

func (h *Host) call(ctx context.Context, text string) (result *lua.LTable, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	h.L.SetContext(ctx)
	defer h.L.RemoveContext()

	top := h.L.GetTop()
	defer h.L.SetTop(top)

	err = h.L.CallByParam(lua.P{
		Fn:      h.L.GetGlobal("scan_line"),
		NRet:    1,
		Protect: true,
	}, lua.LString(text))
	if err != nil {
		return nil, err
	}

	ret := h.L.Get(-1)
	if ret == lua.LNil {
		return h.L.NewTable(), nil
	}
	tbl, ok := ret.(*lua.LTable)
	if !ok {
		return nil, ErrBadResult
	}
	return tbl, nil
}

// toToken converts a 1-based inclusive span to an absolute half-open token.
func (h *Host) toToken(tbl *lua.LTable, n, base int) (inline.Token, bool) {
	from, ok1 := tbl.RawGetString("from").(lua.LNumber)
	to, ok2 := tbl.RawGetString("to").(lua.LNumber)
	if !ok1 || !ok2 {
		return inline.Token{}, false
	}
	// Fractional, infinite and NaN positions name no byte.
	first, err1 := safecast.Convert[int](from)
	end, err2 := safecast.Convert[int](to)
	if err1 != nil || err2 != nil {
		return inline.Token{}, false
	}
	start := first - 1
	if start < 0 || end <= start || end > n {
		return inline.Token{}, false
	}

	r := document.Range{From: base + start, To: base + end}
	tok := inline.Token{
		Kind:   inline.KindPlugin,
		From:   r.From,
		To:     r.To,
		Source: h.name,
	}
	if lua.LVAsBool(tbl.RawGetString("hide")) {
		tok.Hide = []document.Range{r}
		return tok, true
	}
	tok.Content = r
	tok.Class = DefaultClass
	if class, ok := tbl.RawGetString("class").(lua.LString); ok && class != "" {
		tok.Class = string(class)
	}
	return tok, true
}

// Close releases the Lua state.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == StateClosed {
		return nil
	}
	h.L.Close()
	h.state = StateClosed
	return nil
}

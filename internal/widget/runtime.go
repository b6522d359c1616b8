package widget

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/dshills/livemark/internal/decor"
	"github.com/dshills/livemark/internal/event"
	"github.com/dshills/livemark/internal/logging"
)

// Instance is one live widget. It lives while its key keeps appearing in
// the decoration output of successive passes.
type Instance struct {
	key        string
	generation string
	spec       *decor.WidgetSpec
	r          Renderable
	state      State
	result     Result
	seq        uint64
	stale      bool
	view       View
}

// Key returns the widget identity key.
func (i *Instance) Key() string { return i.key }

// Generation returns the identifier of this incarnation of the key.
func (i *Instance) Generation() string { return i.generation }

// Kind returns the widget kind.
func (i *Instance) Kind() decor.WidgetKind { return i.spec.Kind }

// State returns the lifecycle state.
func (i *Instance) State() State { return i.state }

// Stale reports whether an external event invalidated the data.
func (i *Instance) Stale() bool { return i.stale }

// Spec returns the spec from the latest pass.
func (i *Instance) Spec() *decor.WidgetSpec { return i.spec }

// View returns the current view.
func (i *Instance) View() View { return i.view }

// SyncStats summarizes one Sync call.
type SyncStats struct {
	Live      int
	Created   int
	Reused    int
	Destroyed int
	Loading   int
}

// Runtime owns the widget instances. Every method must be called from the
// event loop; only Renderable.Load runs elsewhere.
type Runtime struct {
	env       *Env
	exec      Executor
	post      Poster
	collapse  *CollapseStore
	instances map[string]*Instance
	version   uint64
	patchFns  []func(Patch)
	log       *logging.Logger

	discarded uint64
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithCollapseStore shares a collapse store with the assembler.
func WithCollapseStore(s *CollapseStore) RuntimeOption {
	return func(rt *Runtime) {
		rt.collapse = s
	}
}

// NewRuntime creates a runtime. A nil exec runs loads in the caller and a
// nil post delivers results immediately.
func NewRuntime(env Env, exec Executor, post Poster, opts ...RuntimeOption) *Runtime {
	env.normalize()
	rt := &Runtime{
		env:       &env,
		exec:      exec,
		post:      post,
		instances: make(map[string]*Instance),
		log:       env.Log.WithComponent("widget"),
	}
	if rt.exec == nil {
		rt.exec = callerExecutor{}
	}
	if rt.post == nil {
		rt.post = directPoster{}
	}
	for _, opt := range opts {
		opt(rt)
	}
	if rt.collapse == nil {
		rt.collapse = NewCollapseStore()
	}
	return rt
}

type callerExecutor struct{}

func (callerExecutor) Submit(fn func(ctx context.Context)) { fn(context.Background()) }

type directPoster struct{}

func (directPoster) Post(fn func()) { fn() }

// Env returns the shared environment.
func (rt *Runtime) Env() *Env { return rt.env }

// Collapse returns the callout collapse store.
func (rt *Runtime) Collapse() *CollapseStore { return rt.collapse }

// OnPatch registers a callback for views that change between passes.
func (rt *Runtime) OnPatch(fn func(Patch)) {
	rt.patchFns = append(rt.patchFns, fn)
}

// Sync reconciles the live instances with the Replace entries of a pass.
// Keys seen before keep their instance and data; new keys get an instance
// and start resolving; keys no longer present are destroyed, and any late
// result for them is discarded.
func (rt *Runtime) Sync(entries []decor.Entry, version uint64) SyncStats {
	rt.version = version
	var st SyncStats
	seen := make(map[string]bool)
	for i := range entries {
		w := entries[i].Widget
		if entries[i].Kind != decor.KindReplace || w == nil || seen[w.Key] {
			continue
		}
		seen[w.Key] = true
		if inst, ok := rt.instances[w.Key]; ok {
			rt.update(inst, w)
			st.Reused++
			continue
		}
		rt.create(w)
		st.Created++
	}

	for key := range rt.instances {
		if !seen[key] {
			delete(rt.instances, key)
			st.Destroyed++
		}
	}
	for _, inst := range rt.instances {
		if inst.state == StateLoading {
			st.Loading++
		}
	}
	st.Live = len(rt.instances)
	return st
}

func (rt *Runtime) create(w *decor.WidgetSpec) {
	inst := &Instance{
		key:        w.Key,
		generation: uuid.NewString(),
		spec:       w,
		r:          Build(w, rt.env),
		state:      StateLoading,
	}
	rt.instances[w.Key] = inst
	rt.load(inst)
}

func (rt *Runtime) update(inst *Instance, w *decor.WidgetSpec) {
	prev := inst.spec
	inst.spec = w
	switch {
	case inst.stale:
		rt.load(inst)
	case prev.Collapsed != w.Collapsed:
		rt.render(inst)
	}
}

// load resolves the instance data. A cache hit settles in the caller; a
// miss renders the placeholder and submits the fetch. An instance that is
// already Ready keeps showing its data while a refetch runs.
func (rt *Runtime) load(inst *Instance) {
	inst.stale = false
	if res, ok := inst.r.Peek(); ok {
		rt.settle(inst, res)
		return
	}
	if inst.state != StateReady {
		inst.state = StateLoading
	}
	inst.seq++
	rt.render(inst)

	key, gen, seq, r := inst.key, inst.generation, inst.seq, inst.r
	rt.exec.Submit(func(ctx context.Context) {
		res := r.Load(ctx)
		rt.post.Post(func() {
			rt.deliver(key, gen, seq, res)
		})
	})
}

// deliver applies a fetch result if its instance is still live and no
// newer fetch was started.
func (rt *Runtime) deliver(key, gen string, seq uint64, res Result) {
	inst, ok := rt.instances[key]
	if !ok || inst.generation != gen || inst.seq != seq {
		rt.discarded++
		rt.log.Debug("discarding late result for %s", key)
		return
	}
	rt.settle(inst, res)
	rt.emit(inst)
}

func (rt *Runtime) settle(inst *Instance, res Result) {
	if res.Err != nil {
		inst.state = StateError
		rt.log.Warn("%s: %v", inst.key, res.Err)
	} else {
		inst.state = StateReady
	}
	inst.result = res
	rt.render(inst)
}

func (rt *Runtime) render(inst *Instance) {
	inst.view = rt.renderView(inst)
}

func (rt *Runtime) renderView(inst *Instance) (v View) {
	kind := inst.spec.Kind
	block := inst.spec.Block != nil
	defer func() {
		if p := recover(); p != nil {
			err := &PanicError{Kind: kind, Value: p}
			rt.log.Error("%s: %v", inst.key, err)
			v = errorView(kind, block, rt.env.Glyphs, err)
		}
		v.Key = inst.key
	}()

	switch inst.state {
	case StateLoading:
		return loadingView(kind, block, rt.env.Glyphs)
	case StateError:
		return errorView(kind, block, rt.env.Glyphs, inst.result.Err)
	}
	return inst.r.Render(RenderContext{
		Spec:   inst.spec,
		Data:   inst.result.Data,
		Glyphs: rt.env.Glyphs,
		Now:    rt.env.Now(),
	})
}

// refresh re-renders an instance and publishes the new view.
func (rt *Runtime) refresh(inst *Instance) {
	rt.render(inst)
	rt.emit(inst)
}

func (rt *Runtime) emit(inst *Instance) {
	p := Patch{Key: inst.key, Generation: inst.generation, View: inst.view}
	for _, fn := range rt.patchFns {
		fn(p)
	}
}

// Notify offers ev to every instance and marks those it affects stale.
// Stale instances refetch on the next Sync. It returns how many went stale.
func (rt *Runtime) Notify(ev event.Event) int {
	n := 0
	for _, inst := range rt.instances {
		if inst.r.OnExternalEvent(ev, inst.result.Data) {
			inst.stale = true
			n++
		}
	}
	return n
}

// View returns the view of a live widget.
func (rt *Runtime) View(key string) (View, bool) {
	inst, ok := rt.instances[key]
	if !ok {
		return View{}, false
	}
	return inst.view, true
}

// Views returns the views of all live widgets by key.
func (rt *Runtime) Views() map[string]View {
	out := make(map[string]View, len(rt.instances))
	for k, inst := range rt.instances {
		out[k] = inst.view
	}
	return out
}

// Instance returns a live instance.
func (rt *Runtime) Instance(key string) (*Instance, bool) {
	inst, ok := rt.instances[key]
	return inst, ok
}

// Keys returns the live keys in sorted order.
func (rt *Runtime) Keys() []string {
	keys := make([]string, 0, len(rt.instances))
	for k := range rt.instances {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of live instances.
func (rt *Runtime) Len() int {
	return len(rt.instances)
}

// Discarded returns how many late results were dropped.
func (rt *Runtime) Discarded() uint64 {
	return rt.discarded
}

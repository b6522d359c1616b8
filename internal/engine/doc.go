// Package engine is the facade over the live decoration pipeline.
//
// An Engine owns the widget caches, the widget runtime, the recompute
// scheduler, the event loop and the fetch pool, and wires them to the
// collaborators that answer queries, habits and embeds.
//
// # Threading
//
// The pipeline is single-threaded. Every method except Publish, Post and
// Close must be called on the loop goroutine: either before Run starts, from
// a function passed to Post, or by a host that drives the loop itself with
// Settle or Loop().Flush. Fetches run on the pool and deliver their results
// through the loop.
//
// # Basic Usage
//
//	e, err := engine.New(cfg, resolve.Full(host))
//	if err != nil {
//		return err
//	}
//	defer e.Close()
//
//	e.SetDocument(document.New(text, 1))
//	if err := e.Settle(ctx); err != nil {
//		return err
//	}
//	lines := e.Display()
//
// # External Events
//
// Publish accepts note.saved, note.property.changed, habit.entry.logged and
// config.reloaded. Affected cache entries are dropped, affected widgets are
// marked stale and a debounced refresh pass refetches them.
package engine

// Package schedule runs decoration passes and the single-threaded loop they
// execute on.
//
// A pass is triggered by a document change, a selection change, a viewport
// change or an explicit refresh. It runs synchronously: active lines, block
// scanning (memoized by document version), assembly with conflict resolution,
// then reconciliation of the widget runtime. Widget data resolution happens on
// a Pool and its results come back through the Loop, so a pass never waits on
// a fetch and every mutation of decoration state happens on one goroutine.
//
// Basic usage:
//
//	loop := schedule.NewLoop()
//	pool := schedule.NewPool(8)
//	rt := widget.NewRuntime(env, pool, loop)
//	s := schedule.New(rt)
//	s.SetDocument(document.New(text, 1))
//	go loop.Run(ctx)
package schedule

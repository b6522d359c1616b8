package vault

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/dshills/livemark/internal/event"
	"github.com/dshills/livemark/internal/resolve"
	"github.com/dshills/livemark/internal/watch"
)

// Publisher receives change events. *event.Bus satisfies it.
type Publisher interface {
	Publish(ev event.Event) error
}

// Watch keeps the index current until ctx is done, publishing a note.saved
// event for every note created, written or removed. It blocks.
func (v *Vault) Watch(ctx context.Context, pub Publisher, opts ...watch.Option) error {
	exts := append([]string{".md"}, resolve.MediaExtensions()...)
	opts = append([]watch.Option{watch.WithFilter(watch.Extensions(exts...)), watch.WithLogger(v.log)}, opts...)
	w, err := watch.New(opts...)
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.AddTree(v.root); err != nil {
		return err
	}
	v.log.Debug("watching %s (%d directories)", v.root, w.Dirs())

	w.Run(ctx, func(ev watch.Event) {
		v.apply(ev, pub)
	})
	return ctx.Err()
}

func (v *Vault) apply(ev watch.Event, pub Publisher) {
	if !strings.EqualFold(filepath.Ext(ev.Path), ".md") {
		v.UpdateMedia(ev.Path, ev.Gone())
		return
	}
	rel, err := v.Update(ev.Path)
	if err != nil {
		v.log.Warn("reindex %s: %v", ev.Path, err)
		return
	}
	if pub == nil {
		return
	}
	saved := event.NoteSavedEvent(rel)
	saved.Source = "vault"
	if err := pub.Publish(saved); err != nil {
		v.log.Warn("publish %s: %v", rel, err)
	}
}

package config

import (
	"context"
	"errors"
	"sync"

	"github.com/dshills/livemark/internal/config/loader"
	"github.com/dshills/livemark/internal/event"
	"github.com/dshills/livemark/internal/logging"
	"github.com/dshills/livemark/internal/watch"
)

// ErrNoPath is returned when a Reloader is created for a config without a file.
var ErrNoPath = errors.New("config: no file to watch")

// Publisher receives reload notifications. *event.Bus satisfies it.
type Publisher interface {
	Publish(ev event.Event) error
}

// Reloader re-reads the configuration file when it changes and publishes
// config.reloaded. A file that fails to load or validate is logged and the
// previous configuration stays current.
type Reloader struct {
	mu      sync.RWMutex
	current *Config
	env     loader.Loader
	pub     Publisher
	log     *logging.Logger
	w       *watch.Watcher
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewReloader creates a reloader for cfg.Path. env may be nil for the
// process environment.
func NewReloader(cfg *Config, pub Publisher, env loader.Loader, log *logging.Logger) (*Reloader, error) {
	if cfg == nil || cfg.Path == "" {
		return nil, ErrNoPath
	}
	return &Reloader{
		current: cfg,
		env:     env,
		pub:     pub,
		log:     logging.OrNop(log).WithComponent("config"),
	}, nil
}

// Current returns the configuration in effect.
func (r *Reloader) Current() *Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Reload reads the file now. On success the new configuration becomes
// current and is published.
func (r *Reloader) Reload() (*Config, error) {
	path := r.Current().Path
	cfg, err := LoadWith(Options{Path: path, Env: r.env})
	if err != nil {
		r.log.Warn("reload %s: %v", path, err)
		return nil, err
	}
	r.mu.Lock()
	r.current = cfg
	r.mu.Unlock()

	r.log.Info("reloaded %s", path)
	if r.pub != nil {
		ev := event.New(event.TopicConfigReloaded, event.ConfigReloaded{Path: path, Config: cfg}, "config")
		if err := r.pub.Publish(ev); err != nil {
			r.log.Warn("publish reload: %v", err)
		}
	}
	return cfg, nil
}

// Start watches the file until ctx is done or Close is called.
func (r *Reloader) Start(ctx context.Context, opts ...watch.Option) error {
	path := r.Current().Path
	opts = append([]watch.Option{watch.WithFilter(watch.Named(path)), watch.WithLogger(r.log)}, opts...)
	w, err := watch.New(opts...)
	if err != nil {
		return err
	}
	if err := w.AddFile(path); err != nil {
		w.Close()
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	r.w = w
	r.cancel = cancel
	r.done = make(chan struct{})
	go func() {
		defer close(r.done)
		w.Run(ctx, func(ev watch.Event) {
			if ev.Gone() {
				r.log.Debug("%s removed; keeping current configuration", ev.Path)
				return
			}
			_, _ = r.Reload()
		})
	}()
	return nil
}

// Close stops watching.
func (r *Reloader) Close() error {
	if r.w == nil {
		return nil
	}
	r.cancel()
	err := r.w.Close()
	<-r.done
	r.w = nil
	return err
}

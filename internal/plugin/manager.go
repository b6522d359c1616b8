package plugin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/dshills/livemark/internal/document"
	"github.com/dshills/livemark/internal/logging"
	"github.com/dshills/livemark/internal/scan/inline"
)

// Manager runs every loaded plugin over a line.
type Manager struct {
	mu sync.RWMutex

	// Loaded plugins by name
	plugins map[string]*Host

	// Plugin load order (for deterministic iteration)
	loadOrder []string

	config ManagerConfig
	log    *logging.Logger
}

// ManagerConfig configures the plugin manager.
type ManagerConfig struct {
	// Paths are Lua script files to load.
	Paths []string

	// CallTimeout bounds a single scan_line call.
	CallTimeout time.Duration

	// MaxFailures disables a plugin after this many consecutive failures.
	MaxFailures int
}

// DefaultManagerConfig returns sensible default configuration.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		CallTimeout: DefaultCallTimeout,
		MaxFailures: DefaultMaxFailures,
	}
}

// NewManager creates a new plugin manager.
func NewManager(config ManagerConfig, log *logging.Logger) *Manager {
	return &Manager{
		plugins: make(map[string]*Host),
		config:  config,
		log:     logging.OrNop(log).WithComponent("plugin"),
	}
}

func (m *Manager) hostOptions() []HostOption {
	return []HostOption{
		WithCallTimeout(m.config.CallTimeout),
		WithMaxFailures(m.config.MaxFailures),
	}
}

// LoadAll loads every configured path. A directory contributes each *.lua
// file it holds. Failures are collected; plugins that load are kept.
func (m *Manager) LoadAll() error {
	var errs []error
	for _, path := range expandPaths(m.config.Paths) {
		h, err := LoadFile(path, m.hostOptions()...)
		if err != nil {
			m.log.Warn("load %s: %v", path, err)
			errs = append(errs, err)
			continue
		}
		if err := m.Add(h); err != nil {
			_ = h.Close()
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func expandPaths(paths []string) []string {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || !info.IsDir() {
			out = append(out, p)
			continue
		}
		matches, _ := filepath.Glob(filepath.Join(p, "*.lua"))
		sort.Strings(matches)
		out = append(out, matches...)
	}
	return out
}

// LoadString loads a plugin from source.
func (m *Manager) LoadString(name, source string) error {
	h, err := NewHost(name, source, m.hostOptions()...)
	if err != nil {
		return err
	}
	if err := m.Add(h); err != nil {
		_ = h.Close()
		return err
	}
	return nil
}

// Add registers a host. Names must be unique.
func (m *Manager) Add(h *Host) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.plugins[h.Name()]; exists {
		return fmt.Errorf("plugin %q already loaded", h.Name())
	}
	m.plugins[h.Name()] = h
	m.loadOrder = append(m.loadOrder, h.Name())
	m.log.Debug("loaded plugin %s", h.Name())
	return nil
}

// Get returns a plugin by name.
func (m *Manager) Get(name string) (*Host, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.plugins[name]
	return h, ok
}

// Names returns plugin names in load order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.loadOrder...)
}

// Len returns the number of loaded plugins.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.plugins)
}

// Name returns the scanner name.
func (m *Manager) Name() string { return "plugins" }

// ScanLine runs all usable plugins over line in load order. Plugin errors
// are logged and never reach the caller.
func (m *Manager) ScanLine(line document.Line, skip int) []inline.Token {
	m.mu.RLock()
	hosts := make([]*Host, 0, len(m.loadOrder))
	for _, name := range m.loadOrder {
		hosts = append(hosts, m.plugins[name])
	}
	m.mu.RUnlock()

	var out []inline.Token
	for _, h := range hosts {
		if !h.State().IsUsable() {
			continue
		}
		toks, err := h.ScanLine(context.Background(), line, skip)
		if err != nil {
			m.log.WithField("plugin", h.Name()).Warn("scan line %d: %v", line.Number, err)
			if h.State() == StateDisabled {
				m.log.WithField("plugin", h.Name()).Warn("disabled after repeated failures")
			}
			continue
		}
		out = append(out, toks...)
	}
	return out
}

// Close releases all plugin states.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for _, name := range m.loadOrder {
		if err := m.plugins[name].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	m.plugins = make(map[string]*Host)
	m.loadOrder = nil
	return errors.Join(errs...)
}

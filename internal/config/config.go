package config

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/livemark/internal/cache"
	"github.com/dshills/livemark/internal/config/loader"
	"github.com/dshills/livemark/internal/logging"
	"github.com/dshills/livemark/internal/plugin"
	"github.com/dshills/livemark/internal/resolve"
)

// Config is the complete configuration.
type Config struct {
	Cache   CacheConfig   `toml:"cache"`
	Widgets WidgetsConfig `toml:"widgets"`
	Render  RenderConfig  `toml:"render"`
	Log     LogConfig     `toml:"log"`
	Bridge  BridgeConfig  `toml:"bridge"`
	Vault   VaultConfig   `toml:"vault"`
	Plugins PluginsConfig `toml:"plugins"`

	// Path is the file the configuration was read from, if any.
	Path string `toml:"-"`
}

// CacheConfig holds the lifetime of resolved widget data per kind.
type CacheConfig struct {
	QueryTTL Duration `toml:"query_ttl"`
	HabitTTL Duration `toml:"habit_ttl"`
	EmbedTTL Duration `toml:"embed_ttl"`
}

// TTLs converts the section for the cache layer.
func (c CacheConfig) TTLs() cache.TTLs {
	return cache.TTLs{
		Query: c.QueryTTL.Std(),
		Habit: c.HabitTTL.Std(),
		Embed: c.EmbedTTL.Std(),
	}
}

// WidgetsConfig tunes the widget runtime.
type WidgetsConfig struct {
	// MaxEmbedDepth is the deepest embed level rendered.
	MaxEmbedDepth int `toml:"max_embed_depth"`

	// MaxInFlight caps concurrent fetches. Zero removes the cap.
	MaxInFlight int `toml:"max_in_flight"`

	// RefreshDebounce coalesces refreshes caused by external events.
	RefreshDebounce Duration `toml:"refresh_debounce"`
}

// RenderConfig selects glyphs and colors.
type RenderConfig struct {
	// Glyphs is "unicode" or "ascii".
	Glyphs string `toml:"glyphs"`

	// Theme names a color theme.
	Theme string `toml:"theme"`

	// Width is the column count for non-interactive output.
	Width int `toml:"width"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `toml:"level"`
	JSON  bool   `toml:"json"`
}

// Logging converts the section for the logging package.
func (c LogConfig) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.ParseLevel(c.Level)
	cfg.JSON = c.JSON
	return cfg
}

// BridgeConfig configures the connection to the host process that answers
// queries and applies mutations. An empty URL disables the bridge.
type BridgeConfig struct {
	URL         string   `toml:"url"`
	DialTimeout Duration `toml:"dial_timeout"`
	CallTimeout Duration `toml:"call_timeout"`

	// MaxFailures consecutive failures open the circuit breaker.
	MaxFailures uint32 `toml:"max_failures"`

	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout Duration `toml:"open_timeout"`
}

// VaultConfig points at a directory of notes used to resolve embeds.
type VaultConfig struct {
	Root  string `toml:"root"`
	Watch bool   `toml:"watch"`
}

// PluginsConfig lists Lua scanner plugins.
type PluginsConfig struct {
	Paths       []string `toml:"paths"`
	CallTimeout Duration `toml:"call_timeout"`
	MaxFailures int      `toml:"max_failures"`
}

// Manager converts the section for the plugin manager.
func (c PluginsConfig) Manager() plugin.ManagerConfig {
	return plugin.ManagerConfig{
		Paths:       c.Paths,
		CallTimeout: c.CallTimeout.Std(),
		MaxFailures: c.MaxFailures,
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Cache: CacheConfig{
			QueryTTL: Duration(cache.DefaultQueryTTL),
			HabitTTL: Duration(cache.DefaultHabitTTL),
			EmbedTTL: Duration(cache.DefaultEmbedTTL),
		},
		Widgets: WidgetsConfig{
			MaxEmbedDepth:   resolve.MaxEmbedDepth,
			MaxInFlight:     8,
			RefreshDebounce: Duration(150 * time.Millisecond),
		},
		Render: RenderConfig{
			Glyphs: "unicode",
			Theme:  "default",
			Width:  80,
		},
		Log: LogConfig{
			Level: "info",
		},
		Bridge: BridgeConfig{
			DialTimeout: Duration(5 * time.Second),
			CallTimeout: Duration(10 * time.Second),
			MaxFailures: 5,
			OpenTimeout: Duration(30 * time.Second),
		},
		Vault: VaultConfig{
			Watch: true,
		},
		Plugins: PluginsConfig{
			CallTimeout: Duration(plugin.DefaultCallTimeout),
			MaxFailures: plugin.DefaultMaxFailures,
		},
	}
}

// Options selects the sources Load reads.
type Options struct {
	// Path is the TOML file. Empty skips the file layer.
	Path string

	// FS reads the file. Nil means the OS file system.
	FS loader.FileSystem

	// Env supplies environment overrides. Nil means the process environment.
	Env loader.Loader
}

// Load reads, merges, decodes and validates the configuration at path.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	return LoadWith(Options{Path: path})
}

// LoadWith is Load with explicit sources.
func LoadWith(opts Options) (*Config, error) {
	fsys := opts.FS
	if fsys == nil {
		fsys = loader.DefaultFS()
	}
	env := opts.Env
	if env == nil {
		env = loader.NewEnvLoader(loader.DefaultPrefix)
	}

	var merged map[string]any
	if opts.Path != "" {
		fm, err := loader.NewTOMLLoaderWithFS(fsys, opts.Path).Load()
		if err != nil {
			return nil, err
		}
		merged = loader.DeepMerge(merged, fm)
	}
	em, err := env.Load()
	if err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	merged = loader.DeepMerge(merged, em)

	cfg, err := Decode(merged)
	if err != nil {
		return nil, err
	}
	cfg.Path = opts.Path
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode applies m over the defaults. Unknown settings are rejected.
func Decode(m map[string]any) (*Config, error) {
	cfg := Default()
	if len(m) == 0 {
		return cfg, nil
	}
	data, err := toml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding merged config: %w", err)
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSetting, strict.String())
		}
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

// Encode renders cfg as TOML.
func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.Plugins.Paths = append([]string(nil), c.Plugins.Paths...)
	return &out
}

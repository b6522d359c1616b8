package config

import (
	"net/url"
	"slices"
	"strings"
)

// Glyph sets and themes known to the renderer.
var (
	GlyphSets = []string{"unicode", "ascii"}
	Themes    = []string{"default", "mono", "solarized"}
	LogLevels = []string{"debug", "info", "warn", "warning", "error"}
)

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var v validator
	v.nonNegative("cache.query_ttl", c.Cache.QueryTTL)
	v.nonNegative("cache.habit_ttl", c.Cache.HabitTTL)
	v.nonNegative("cache.embed_ttl", c.Cache.EmbedTTL)

	if c.Widgets.MaxEmbedDepth < 1 || c.Widgets.MaxEmbedDepth > 16 {
		v.fail("widgets.max_embed_depth", c.Widgets.MaxEmbedDepth, "must be between 1 and 16")
	}
	if c.Widgets.MaxInFlight < 0 {
		v.fail("widgets.max_in_flight", c.Widgets.MaxInFlight, "must not be negative")
	}
	v.nonNegative("widgets.refresh_debounce", c.Widgets.RefreshDebounce)

	v.oneOf("render.glyphs", c.Render.Glyphs, GlyphSets)
	v.oneOf("render.theme", c.Render.Theme, Themes)
	if c.Render.Width < 20 {
		v.fail("render.width", c.Render.Width, "must be at least 20")
	}

	v.oneOf("log.level", strings.ToLower(c.Log.Level), LogLevels)

	if c.Bridge.URL != "" {
		u, err := url.Parse(c.Bridge.URL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
			v.fail("bridge.url", c.Bridge.URL, "must be a ws:// or wss:// URL")
		}
	}
	v.positive("bridge.dial_timeout", c.Bridge.DialTimeout)
	v.positive("bridge.call_timeout", c.Bridge.CallTimeout)
	v.positive("bridge.open_timeout", c.Bridge.OpenTimeout)
	if c.Bridge.MaxFailures == 0 {
		v.fail("bridge.max_failures", c.Bridge.MaxFailures, "must be positive")
	}

	v.positive("plugins.call_timeout", c.Plugins.CallTimeout)
	if c.Plugins.MaxFailures < 1 {
		v.fail("plugins.max_failures", c.Plugins.MaxFailures, "must be positive")
	}
	for _, p := range c.Plugins.Paths {
		if strings.TrimSpace(p) == "" {
			v.fail("plugins.paths", p, "must not contain empty paths")
			break
		}
	}

	return v.err()
}

type validator struct {
	fields []*FieldError
}

func (v *validator) fail(path string, value any, msg string) {
	v.fields = append(v.fields, &FieldError{Path: path, Value: value, Message: msg})
}

func (v *validator) nonNegative(path string, d Duration) {
	if d < 0 {
		v.fail(path, d, "must not be negative")
	}
}

func (v *validator) positive(path string, d Duration) {
	if d <= 0 {
		v.fail(path, d, "must be positive")
	}
}

func (v *validator) oneOf(path, value string, allowed []string) {
	if !slices.Contains(allowed, value) {
		v.fail(path, value, "must be one of "+strings.Join(allowed, ", "))
	}
}

func (v *validator) err() error {
	if len(v.fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: v.fields}
}

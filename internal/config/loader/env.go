package loader

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
)

// DefaultPrefix is the environment variable prefix.
const DefaultPrefix = "LIVEMARK_"

// EnvLoader maps environment variables onto configuration paths.
// LIVEMARK_CACHE_QUERY_TTL sets cache.query_ttl: the first word after the
// prefix is the section and the rest is the setting.
type EnvLoader struct {
	prefix  string
	mapping map[string]string
	environ func() []string
}

// NewEnvLoader creates a loader for variables starting with prefix, which
// includes its trailing underscore.
func NewEnvLoader(prefix string) *EnvLoader {
	return &EnvLoader{
		prefix:  prefix,
		mapping: defaultEnvMapping(),
		environ: os.Environ,
	}
}

// NewEnvLoaderFrom reads variables from a fixed list of KEY=value pairs.
func NewEnvLoaderFrom(prefix string, environ []string) *EnvLoader {
	l := NewEnvLoader(prefix)
	l.environ = func() []string { return environ }
	return l
}

// defaultEnvMapping holds short names that do not follow the
// SECTION_SETTING pattern.
func defaultEnvMapping() map[string]string {
	return map[string]string{
		"LIVEMARK_VAULT":     "vault.root",
		"LIVEMARK_BRIDGE":    "bridge.url",
		"LIVEMARK_LOG":       "log.level",
		"LIVEMARK_MAX_DEPTH": "widgets.max_embed_depth",
	}
}

// AddMapping maps envVar to a dotted configuration path.
func (l *EnvLoader) AddMapping(envVar, path string) {
	l.mapping[envVar] = path
}

// Load returns the configuration set through the environment. Empty values
// count as set.
func (l *EnvLoader) Load() (map[string]any, error) {
	m := make(map[string]any)
	for _, kv := range l.environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, l.prefix) {
			continue
		}
		path, mapped := l.mapping[name]
		if !mapped {
			path = l.envToPath(name)
		}
		if path == "" {
			continue
		}
		setByPath(m, path, parseValue(value))
	}
	return m, nil
}

// envToPath converts LIVEMARK_WIDGETS_MAX_IN_FLIGHT to widgets.max_in_flight.
func (l *EnvLoader) envToPath(env string) string {
	name := strings.ToLower(strings.TrimPrefix(env, l.prefix))
	section, setting, ok := strings.Cut(name, "_")
	if !ok || section == "" || setting == "" {
		return ""
	}
	return section + "." + setting
}

// parseValue guesses the type of an environment value. Durations stay
// strings; the typed decoder parses them.
func parseValue(s string) any {
	switch strings.ToLower(s) {
	case "":
		return s
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	if strings.HasPrefix(s, "[") || strings.HasPrefix(s, "{") {
		var v any
		if err := json.Unmarshal([]byte(s), &v); err == nil {
			return normalizeJSON(v)
		}
	}
	return s
}

// normalizeJSON turns JSON numbers into int64 where they are whole, which
// is how the TOML decoder represents integers.
func normalizeJSON(v any) any {
	switch v := v.(type) {
	case float64:
		if v == float64(int64(v)) {
			return int64(v)
		}
		return v
	case []any:
		for i := range v {
			v[i] = normalizeJSON(v[i])
		}
		return v
	case map[string]any:
		for k := range v {
			v[k] = normalizeJSON(v[k])
		}
		return v
	default:
		return v
	}
}

func setByPath(m map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	cur := m
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[part] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}

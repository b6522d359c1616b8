// Package config loads livemark configuration.
//
// Settings come from three layers, lowest first: built-in defaults, a TOML
// file, and LIVEMARK_SECTION_SETTING environment variables. The merged result
// is decoded into typed sections and validated. Durations are written as Go
// duration strings ("5s", "250ms").
//
//	[cache]
//	query_ttl = "5s"
//	habit_ttl = "5s"
//	embed_ttl = "30s"
//
//	[widgets]
//	max_embed_depth = 3
//	max_in_flight = 8
//	refresh_debounce = "150ms"
//
// A Reloader watches the file and publishes config.reloaded on an event bus
// with the new *Config as payload.
package config

// Package config loads and validates the server configuration.
//
// Configuration is a single YAML document with ${VAR} environment
// expansion. Unknown fields are rejected so typos surface at startup
// instead of silently falling back to defaults. Zero-valued session
// fields take the pipeline defaults from pkg/viz.
package config

// Package cli provides common utilities for the auravis command-line tool.
//
// This package includes:
//   - Configuration management (named server contexts)
//   - Output formatting (JSON, YAML, raw)
//   - Request/scenario file loading (YAML/JSON)
//   - Terminal UI building blocks for the live monitor
//   - gojq-based output filtering
//
// Configuration is stored in the ~/.auravis/<app>/ directory, supporting
// multiple contexts similar to kubectl.
//
// Example usage:
//
//	// Initialize config for your app
//	cfg, err := cli.LoadConfig("auravis")
//
//	// Resolve the context to talk to
//	ctx, err := cfg.ResolveContext("")
//
//	// Output result
//	cli.Output(result, cli.OutputOptions{
//	    Format: cli.FormatJSON,
//	    File:   outputPath,
//	})
package cli

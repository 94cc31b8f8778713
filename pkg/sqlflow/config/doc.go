/*
Package config provides type-safe configuration extraction from map[string]any.

# Overview

config wraps a map[string]any and provides typed accessor methods that handle
missing keys and type mismatches gracefully by returning default values.
This is useful for extracting engine tuning values from YAML/JSON files or
environment variables without verbose type assertions and nil checks.

# Basic Usage

Create a Config from any map and extract values with defaults:

	cfg := config.New(map[string]any{
	    "query_timeout":  "30s",
	    "recent_window":  3,
	    "tracing":        true,
	})

	timeout := cfg.Duration("query_timeout", 10*time.Second) // 30s
	window := cfg.Int("recent_window", 3)                    // 3
	tracing := cfg.Bool("tracing", false)                    // true
	missing := cfg.String("missing", "default")              // "default"

# Type Coercion

Duration handles multiple input types:
  - string: parsed with time.ParseDuration ("30s", "1h30m")
  - int/float64: interpreted as seconds
  - time.Duration: used directly

Int and Bool also accept string values ("5", "true"), which keeps
environment-sourced configs usable without pre-conversion.

All methods return the default value if:
  - The key is missing
  - The value cannot be converted to the requested type
  - The conversion would lose precision (e.g., float to int with fraction)

# Loading

Load configuration from YAML or JSON files, or from the environment:

	cfg, err := config.FromFile("sqlflow.yaml")
	if err != nil {
	    log.Fatal(err)
	}

	// Overlay environment variables (SQLFLOW_RECENT_WINDOW=5 → "recent_window")
	cfg = cfg.Merge(config.FromEnv("SQLFLOW_"))

LoadEnv reads optional .env files into the process environment first:

	_ = config.LoadEnv(".env", ".env.local")

# Thread Safety

Config is safe for concurrent read access. The underlying map is not
modified after creation. However, if the original map is modified
externally, behavior is undefined.
*/
package config

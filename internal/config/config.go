// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package config loads and validates the codeguardian.toml configuration.
//
// Environment overrides recognized:
//
//	CODEGUARDIAN_CONFIG     path of the config file
//	CODEGUARDIAN_CACHE_DIR  cache directory
//	CODEGUARDIAN_WORKERS    worker ceiling
//	CODEGUARDIAN_ML_MODEL   frozen model path
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pelletier/go-toml/v2"

	"github.com/kraklabs/codeguardian/pkg/findings"
)

// DefaultFileName is looked up in the working directory when no explicit
// path is given.
const DefaultFileName = "codeguardian.toml"

// Config is the effective configuration after file, defaults and
// environment are merged.
type Config struct {
	Include []string `toml:"include"`
	Exclude []string `toml:"exclude"`

	// FailThreshold is the severity at or above which check exits 1.
	FailThreshold string `toml:"fail_threshold"`

	// StreamThreshold in bytes; files at or above it are streamed.
	StreamThreshold int64 `toml:"stream_threshold"`

	Analyzers   Analyzers   `toml:"analyzers"`
	Cache       Cache       `toml:"cache"`
	ML          ML          `toml:"ml"`
	Parallelism Parallelism `toml:"parallelism"`
	GitHub      GitHub      `toml:"github"`
}

// Analyzers holds per-analyzer enable flags and thresholds.
type Analyzers struct {
	// Disabled lists analyzer names switched off.
	Disabled []string `toml:"disabled"`

	EntropyMin    float64 `toml:"entropy_min"`
	ComplexityMax int     `toml:"complexity_max"`
	LongLine      int     `toml:"long_line"`
	LongFunction  int     `toml:"long_function"`
	TooManyParams int     `toml:"too_many_params"`
	DuplicateMin  int     `toml:"duplicate_min"`

	// BadPins maps "name@version" to a reason string.
	BadPins map[string]string `toml:"bad_pins"`
}

// Cache configures the finding cache.
type Cache struct {
	Dir        string `toml:"dir"`
	MaxEntries int    `toml:"max_entries"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// ML configures the relevance filter.
type ML struct {
	Enabled   bool    `toml:"enabled"`
	ModelPath string  `toml:"model_path"`
	Threshold float64 `toml:"threshold"`
}

// Parallelism bounds the worker pool.
type Parallelism struct {
	MaxWorkers int `toml:"max_workers"`
	BatchSize  int `toml:"batch_size"`
}

// GitHub configures the issue bridge.
type GitHub struct {
	Enabled bool `toml:"enabled"`

	// RateLimit is tracker requests per second.
	RateLimit float64 `toml:"rate_limit"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		FailThreshold:   string(findings.SeverityHigh),
		StreamThreshold: 5 * 1024 * 1024,
		Analyzers: Analyzers{
			EntropyMin:    3.5,
			ComplexityMax: 15,
			LongLine:      120,
			LongFunction:  100,
			TooManyParams: 6,
			DuplicateMin:  3,
		},
		Cache: Cache{
			Dir:        filepath.Join(".codeguardian", "cache"),
			MaxEntries: 10000,
			MaxAgeDays: 30,
		},
		ML: ML{
			Threshold: 0.3,
		},
		Parallelism: Parallelism{
			BatchSize: 64,
		},
		GitHub: GitHub{
			RateLimit: 1.0,
		},
	}
}

// Load reads the config file (explicit path, CODEGUARDIAN_CONFIG, or the
// default name; a missing default file just means defaults), applies
// environment overrides and validates.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if path == "" {
		path = os.Getenv("CODEGUARDIAN_CONFIG")
		explicit = path != ""
	}
	if path == "" {
		path = DefaultFileName
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
		// Defaults only.
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if dir := os.Getenv("CODEGUARDIAN_CACHE_DIR"); dir != "" {
		cfg.Cache.Dir = dir
	}
	if w := os.Getenv("CODEGUARDIAN_WORKERS"); w != "" {
		if n, err := strconv.Atoi(w); err == nil && n > 0 {
			cfg.Parallelism.MaxWorkers = n
		}
	}
	if m := os.Getenv("CODEGUARDIAN_ML_MODEL"); m != "" {
		cfg.ML.ModelPath = m
		cfg.ML.Enabled = true
	}
}

// Validate rejects configurations the engine cannot honor.
func (c *Config) Validate() error {
	if _, ok := findings.ParseSeverity(c.FailThreshold); !ok {
		return fmt.Errorf("fail_threshold %q is not a severity", c.FailThreshold)
	}
	if c.StreamThreshold <= 0 {
		return fmt.Errorf("stream_threshold must be positive")
	}
	if c.ML.Threshold < 0 || c.ML.Threshold > 1 {
		return fmt.Errorf("ml.threshold must be in [0,1]")
	}
	for _, g := range c.Exclude {
		if !doublestar.ValidatePattern(g) {
			return fmt.Errorf("exclude glob %q is invalid", g)
		}
	}
	for _, g := range c.Include {
		if !doublestar.ValidatePattern(g) {
			return fmt.Errorf("include glob %q is invalid", g)
		}
	}
	known := map[string]bool{
		"security": true, "secret": true, "non-production": true,
		"performance": true, "dependency": true, "code-quality": true,
		"integrity": true, "lint-drift": true,
	}
	for _, name := range c.Analyzers.Disabled {
		if !known[name] {
			return fmt.Errorf("unknown analyzer %q in analyzers.disabled", name)
		}
	}
	return nil
}

// FailSeverity returns the parsed fail threshold.
func (c *Config) FailSeverity() findings.Severity {
	sev, _ := findings.ParseSeverity(c.FailThreshold)
	return sev
}

// DisabledSet returns the disabled analyzers as a set.
func (c *Config) DisabledSet() map[string]bool {
	out := make(map[string]bool, len(c.Analyzers.Disabled))
	for _, name := range c.Analyzers.Disabled {
		out[name] = true
	}
	return out
}

// AnalysisFingerprint serializes every field that can change analysis
// output, in a fixed order, for the config digest. Fields that only affect
// presentation, caching or the tracker are deliberately absent.
func (c *Config) AnalysisFingerprint() []byte {
	var b strings.Builder

	writeList := func(name string, vs []string) {
		sorted := append([]string(nil), vs...)
		sort.Strings(sorted)
		fmt.Fprintf(&b, "%s=%s\n", name, strings.Join(sorted, ","))
	}

	writeList("include", c.Include)
	writeList("exclude", c.Exclude)
	writeList("analyzers.disabled", c.Analyzers.Disabled)
	fmt.Fprintf(&b, "stream_threshold=%d\n", c.StreamThreshold)
	fmt.Fprintf(&b, "entropy_min=%.4f\n", c.Analyzers.EntropyMin)
	fmt.Fprintf(&b, "complexity_max=%d\n", c.Analyzers.ComplexityMax)
	fmt.Fprintf(&b, "long_line=%d\n", c.Analyzers.LongLine)
	fmt.Fprintf(&b, "long_function=%d\n", c.Analyzers.LongFunction)
	fmt.Fprintf(&b, "too_many_params=%d\n", c.Analyzers.TooManyParams)
	fmt.Fprintf(&b, "duplicate_min=%d\n", c.Analyzers.DuplicateMin)

	pins := make([]string, 0, len(c.Analyzers.BadPins))
	for k, v := range c.Analyzers.BadPins {
		pins = append(pins, k+"="+v)
	}
	sort.Strings(pins)
	fmt.Fprintf(&b, "bad_pins=%s\n", strings.Join(pins, ","))

	fmt.Fprintf(&b, "ml.enabled=%t\n", c.ML.Enabled)
	fmt.Fprintf(&b, "ml.threshold=%.4f\n", c.ML.Threshold)

	return []byte(b.String())
}

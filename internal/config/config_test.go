// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/codeguardian/pkg/findings"
)

func chdir(t *testing.T, dir string) {
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestDefaultValidates(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, int64(5*1024*1024), cfg.StreamThreshold)
	assert.Equal(t, findings.SeverityHigh, cfg.FailSeverity())
}

func TestLoadExplicitMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "codeguardian.toml")
	content := `
fail_threshold = "medium"
exclude = ["vendor/**"]

[analyzers]
entropy_min = 4.0
disabled = ["lint-drift"]

[cache]
dir = "/tmp/cgcache"
max_entries = 50

[ml]
enabled = true
threshold = 0.5

[parallelism]
max_workers = 4
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, findings.SeverityMedium, cfg.FailSeverity())
	assert.Equal(t, 4.0, cfg.Analyzers.EntropyMin)
	assert.Equal(t, "/tmp/cgcache", cfg.Cache.Dir)
	assert.Equal(t, 50, cfg.Cache.MaxEntries)
	assert.Equal(t, 0.5, cfg.ML.Threshold)
	assert.Equal(t, 4, cfg.Parallelism.MaxWorkers)
	assert.True(t, cfg.DisabledSet()["lint-drift"])
	// Untouched fields keep defaults.
	assert.Equal(t, 15, cfg.Analyzers.ComplexityMax)
}

func TestEnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CODEGUARDIAN_CACHE_DIR", "/elsewhere/cache")
	t.Setenv("CODEGUARDIAN_WORKERS", "3")
	t.Setenv("CODEGUARDIAN_ML_MODEL", "/models/frozen.json")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/elsewhere/cache", cfg.Cache.Dir)
	assert.Equal(t, 3, cfg.Parallelism.MaxWorkers)
	assert.Equal(t, "/models/frozen.json", cfg.ML.ModelPath)
	assert.True(t, cfg.ML.Enabled)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad severity", func(c *Config) { c.FailThreshold = "severe" }},
		{"bad threshold", func(c *Config) { c.ML.Threshold = 1.5 }},
		{"bad glob", func(c *Config) { c.Exclude = []string{"[unclosed"} }},
		{"unknown analyzer", func(c *Config) { c.Analyzers.Disabled = []string{"quantum"} }},
		{"zero stream threshold", func(c *Config) { c.StreamThreshold = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestAnalysisFingerprintStable(t *testing.T) {
	a := Default().AnalysisFingerprint()
	b := Default().AnalysisFingerprint()
	assert.True(t, bytes.Equal(a, b), "same config must fingerprint identically")
}

func TestAnalysisFingerprintTracksAnalysisFields(t *testing.T) {
	base := Default().AnalysisFingerprint()

	changed := Default()
	changed.Analyzers.EntropyMin = 4.2
	assert.False(t, bytes.Equal(base, changed.AnalysisFingerprint()),
		"entropy change must change the fingerprint")

	presentation := Default()
	presentation.Cache.MaxEntries = 99
	presentation.GitHub.RateLimit = 9
	assert.True(t, bytes.Equal(base, presentation.AnalysisFingerprint()),
		"cache and tracker settings must not affect the fingerprint")
}

func TestBadPinsInFingerprintOrderIndependent(t *testing.T) {
	a := Default()
	a.Analyzers.BadPins = map[string]string{"x@1": "r1", "y@2": "r2"}
	b := Default()
	b.Analyzers.BadPins = map[string]string{"y@2": "r2", "x@1": "r1"}
	assert.True(t, bytes.Equal(a.AnalysisFingerprint(), b.AnalysisFingerprint()))
}

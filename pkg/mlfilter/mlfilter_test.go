// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package mlfilter

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/codeguardian/pkg/findings"
)

// writeModel produces a structurally valid 24->16->8->1 model. With bias
// fixed, zero weights give sigmoid(bias) for every input.
func writeModel(t *testing.T, outputBias float64) string {
	t.Helper()

	zeros := func(out, in int) [][]float64 {
		w := make([][]float64, out)
		for i := range w {
			w[i] = make([]float64, in)
		}
		return w
	}
	m := Model{
		FeatureSchema: FeatureSchemaVersion,
		InputDim:      FeatureDim,
		Layers: []layer{
			{Weights: zeros(16, 24), Biases: make([]float64, 16)},
			{Weights: zeros(8, 16), Biases: make([]float64, 8)},
			{Weights: zeros(1, 8), Biases: []float64{outputBias}},
		},
	}
	data, err := json.Marshal(&m)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestLoadValidModel(t *testing.T) {
	m, err := Load(writeModel(t, 0))
	require.NoError(t, err)
	assert.Len(t, m.Layers, 3)
}

func TestLoadMissingModel(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestLoadShapeMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"feature_schema_version":2,"input_dim":7,"layers":[]}`), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestScoreSigmoidRange(t *testing.T) {
	m, err := Load(writeModel(t, 0))
	require.NoError(t, err)
	p := m.Score(make([]float64, FeatureDim))
	assert.InDelta(t, 0.5, p, 0.0001, "zero logits must score sigmoid(0)")
}

func TestMissingModelIsIdentity(t *testing.T) {
	f := New("", 0.9, nil)
	assert.False(t, f.Enabled())

	in := []findings.Finding{
		{ID: "a", Severity: findings.SeverityInfo, Rule: "todo_marker"},
	}
	out := f.Apply(in)
	assert.Len(t, out, 1)
}

func TestUnloadableModelIsIdentity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.json")
	require.NoError(t, os.WriteFile(path, []byte("not a model"), 0o644))
	f := New(path, 0.9, nil)
	assert.False(t, f.Enabled())
}

// A strongly negative output bias pushes every score near zero, so the drop
// policy is exercised: low/medium go, critical/high stay.
func TestApplyNeverDropsHighSeverity(t *testing.T) {
	f := New(writeModel(t, -10), 0.5, nil)
	require.True(t, f.Enabled())

	in := []findings.Finding{
		{ID: "c", Severity: findings.SeverityCritical, Analyzer: "secret", Rule: "hardcoded_secret", File: "src/a.rs"},
		{ID: "h", Severity: findings.SeverityHigh, Analyzer: "security", Rule: "sql_string_concat", File: "src/a.rs"},
		{ID: "m", Severity: findings.SeverityMedium, Analyzer: "performance", Rule: "unwrap_use", File: "src/a.rs"},
		{ID: "l", Severity: findings.SeverityLow, Analyzer: "code-quality", Rule: "long_function", File: "src/a.rs"},
	}
	out := f.Apply(in)

	var ids []string
	for _, fd := range out {
		ids = append(ids, fd.ID)
	}
	assert.Equal(t, []string{"c", "h"}, ids)
}

func TestApplyKeepsAllAboveThreshold(t *testing.T) {
	// Large positive bias scores ~1.0 for everything.
	f := New(writeModel(t, 10), 0.5, nil)
	in := []findings.Finding{
		{ID: "l", Severity: findings.SeverityLow, Analyzer: "code-quality", Rule: "long_line", File: "src/a.rs"},
	}
	out := f.Apply(in)
	require.Len(t, out, 1)
	assert.Greater(t, out[0].Confidence, 0.99)
}

func TestFeaturesNormalized(t *testing.T) {
	fd := findings.Finding{
		Analyzer: "secret", Rule: "hardcoded_secret",
		Severity: findings.SeverityCritical,
		File:     "src/main.rs", Line: 10,
		Message:    "hardcoded secret assigned to password",
		Suggestion: "rotate it", Category: "credential",
	}
	v := Features(&fd)
	require.Len(t, v, FeatureDim)
	for i, x := range v {
		assert.GreaterOrEqual(t, x, 0.0, "feature %d", i)
		assert.LessOrEqual(t, x, 1.0, "feature %d", i)
	}
	assert.Equal(t, 1.0, v[1], "secret family one-hot")
	assert.Equal(t, 1.0, v[8], "critical severity one-hot")
	assert.Equal(t, 1.0, v[13], "rust language one-hot")
	assert.Equal(t, 1.0, v[18], "production flag")
}

func TestFeaturesTestPath(t *testing.T) {
	fd := findings.Finding{Analyzer: "secret", Severity: findings.SeverityInfo, File: "tests/fixtures.rs"}
	v := Features(&fd)
	assert.Equal(t, 0.0, v[18], "test path is not production")
}

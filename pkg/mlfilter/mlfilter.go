// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package mlfilter scores findings with a small frozen feedforward network
// and drops the ones unlikely to be actionable.
//
// The model file is produced by the training pipeline outside this
// repository; the filter only loads frozen weights. A missing model is not
// an error: the filter degrades to identity. Severity is monotone under
// filtering — critical and high findings are never dropped.
package mlfilter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/kraklabs/codeguardian/pkg/classify"
	"github.com/kraklabs/codeguardian/pkg/findings"
)

// FeatureSchemaVersion must match the model file's feature schema.
const FeatureSchemaVersion = 2

// FeatureDim is the input width of the network.
const FeatureDim = 24

// layer is one dense layer of frozen weights.
type layer struct {
	// Weights is [out][in].
	Weights [][]float64 `json:"weights"`
	Biases  []float64   `json:"biases"`
}

// Model is the loaded network. Immutable after load; safe for concurrent
// inference.
type Model struct {
	FeatureSchema int     `json:"feature_schema_version"`
	InputDim      int     `json:"input_dim"`
	Layers        []layer `json:"layers"`
}

// Load reads a frozen model from path and validates its shape.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse model: %w", err)
	}
	if m.FeatureSchema != FeatureSchemaVersion {
		return nil, fmt.Errorf("model feature schema %d, want %d", m.FeatureSchema, FeatureSchemaVersion)
	}
	if m.InputDim != FeatureDim {
		return nil, fmt.Errorf("model input dim %d, want %d", m.InputDim, FeatureDim)
	}
	if len(m.Layers) == 0 {
		return nil, fmt.Errorf("model has no layers")
	}
	in := m.InputDim
	for i, l := range m.Layers {
		if len(l.Weights) == 0 || len(l.Weights[0]) != in || len(l.Biases) != len(l.Weights) {
			return nil, fmt.Errorf("layer %d shape mismatch", i)
		}
		in = len(l.Weights)
	}
	if in != 1 {
		return nil, fmt.Errorf("model output dim %d, want 1", in)
	}
	return &m, nil
}

// Score runs the network: ReLU on hidden layers, sigmoid on the output.
// Inference is pure and allocation-light.
func (m *Model) Score(features []float64) float64 {
	cur := features
	for li, l := range m.Layers {
		next := make([]float64, len(l.Weights))
		for o, row := range l.Weights {
			sum := l.Biases[o]
			for i, w := range row {
				sum += w * cur[i]
			}
			if li < len(m.Layers)-1 && sum < 0 {
				sum = 0 // ReLU
			}
			next[o] = sum
		}
		cur = next
	}
	return sigmoid(cur[0])
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// Filter applies the model and drop policy to a finding slice.
type Filter struct {
	model     *Model
	threshold float64
	logger    *slog.Logger
}

// New builds a filter. An empty modelPath or a load failure yields an
// identity filter; load failures are logged once here.
func New(modelPath string, threshold float64, logger *slog.Logger) *Filter {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Filter{threshold: threshold, logger: logger}
	if modelPath == "" {
		return f
	}
	m, err := Load(modelPath)
	if err != nil {
		logger.Warn("mlfilter.load.failed", "path", modelPath, "err", err)
		return f
	}
	logger.Info("mlfilter.load.ok", "path", modelPath, "layers", len(m.Layers))
	f.model = m
	return f
}

// Enabled reports whether a model is loaded.
func (f *Filter) Enabled() bool {
	return f.model != nil
}

// Apply returns the findings that survive the drop policy: a finding is
// dropped only when its score is below the threshold AND its severity is
// medium or lower. Critical and high findings always pass. The input
// order is preserved.
func (f *Filter) Apply(fs []findings.Finding) []findings.Finding {
	if f.model == nil {
		return fs
	}
	out := fs[:0]
	dropped := 0
	for i := range fs {
		p := f.model.Score(Features(&fs[i]))
		if p < f.threshold && !fs[i].Severity.AtLeast(findings.SeverityHigh) {
			dropped++
			continue
		}
		if fs[i].Confidence == 0 {
			fs[i].Confidence = round4(p)
		}
		out = append(out, fs[i])
	}
	if dropped > 0 {
		f.logger.Debug("mlfilter.dropped", "count", dropped, "threshold", f.threshold)
	}
	return out
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// Features extracts the normalized 24-dim feature vector for one finding.
// Layout: rule family one-hot (8), severity one-hot (5), language group
// one-hot (5), production flag (1), message-length bucket (3), context
// richness (1), rule specificity (1).
func Features(fd *findings.Finding) []float64 {
	v := make([]float64, FeatureDim)

	famIdx := map[string]int{
		"security": 0, "secret": 1, "non-production": 2, "performance": 3,
		"dependency": 4, "code-quality": 5, "integrity": 6, "lint-drift": 7,
	}
	if i, ok := famIdx[fd.Analyzer]; ok {
		v[i] = 1
	}

	sevIdx := map[findings.Severity]int{
		findings.SeverityCritical: 8, findings.SeverityHigh: 9,
		findings.SeverityMedium: 10, findings.SeverityLow: 11,
		findings.SeverityInfo: 12,
	}
	if i, ok := sevIdx[fd.Severity]; ok {
		v[i] = 1
	}

	switch classify.DetectLanguage(fd.File) {
	case classify.LangRust:
		v[13] = 1
	case classify.LangJS, classify.LangTS:
		v[14] = 1
	case classify.LangPython:
		v[15] = 1
	case classify.LangGo:
		v[16] = 1
	default:
		v[17] = 1
	}

	// Production flag approximated from the path the same way the
	// classifier does it at analysis time.
	if classify.IsProductionPath(fd.File) {
		v[18] = 1
	}

	switch n := len(fd.Message); {
	case n < 40:
		v[19] = 1
	case n < 100:
		v[20] = 1
	default:
		v[21] = 1
	}

	richness := 0.0
	if fd.Description != "" {
		richness++
	}
	if fd.Suggestion != "" {
		richness++
	}
	if fd.Category != "" {
		richness++
	}
	v[22] = richness / 3

	// Longer, more specific rule names correlate with higher precision
	// rules; normalize into [0,1].
	spec := float64(len(fd.Rule)) / 32
	if spec > 1 {
		spec = 1
	}
	v[23] = spec

	return v
}

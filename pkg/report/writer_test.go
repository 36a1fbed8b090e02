// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/codeguardian/pkg/findings"
)

func sampleReport(at time.Time) *findings.Report {
	fs := []findings.Finding{
		{
			ID: "aabbccdd11223344", Analyzer: "secret", Rule: "hardcoded_secret",
			Severity: findings.SeverityCritical, File: "src/main.rs", Line: 10,
			Message: "hardcoded secret assigned to password", Suggestion: "rotate it",
			Confidence: 0.87654321,
		},
		{
			ID: "1122334455667788", Analyzer: "dependency", Rule: "permissive_version",
			Severity: findings.SeverityLow, File: "Cargo.toml", Line: 5,
			Message: "dependency serde uses permissive version \"*\"",
		},
	}
	findings.SortCanonical(fs)
	return &findings.Report{
		SchemaVersion: findings.SchemaVersion,
		ToolVersion:   "1.0.0",
		ConfigDigest:  "abcdef0123456789",
		GeneratedAt:   at,
		Summary:       findings.NewSummary(fs, 12, 340*time.Millisecond),
		Findings:      fs,
	}
}

func TestJSONRoundtrip(t *testing.T) {
	data, err := JSONBytes(sampleReport(time.Now()))
	require.NoError(t, err)

	var back findings.Report
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, findings.SchemaVersion, back.SchemaVersion)
	require.Len(t, back.Findings, 2)
	assert.Equal(t, "hardcoded_secret", back.Findings[0].Rule)
}

func TestJSONNormalizesConfidence(t *testing.T) {
	data, err := JSONBytes(sampleReport(time.Now()))
	require.NoError(t, err)
	assert.Contains(t, string(data), "0.8765")
	assert.NotContains(t, string(data), "0.87654321")
}

func TestCanonicalBytesIgnoresVolatileHeader(t *testing.T) {
	a, err := CanonicalBytes(sampleReport(time.Unix(1000, 0)))
	require.NoError(t, err)
	b, err := CanonicalBytes(sampleReport(time.Unix(999999, 0)))
	require.NoError(t, err)
	assert.True(t, bytes.Equal(a, b), "canonical form must not depend on generation time")
}

func TestCanonicalBytesTracksFindings(t *testing.T) {
	a, err := CanonicalBytes(sampleReport(time.Unix(0, 0)))
	require.NoError(t, err)

	changed := sampleReport(time.Unix(0, 0))
	changed.Findings[0].Message = "different"
	c, err := CanonicalBytes(changed)
	require.NoError(t, err)
	assert.False(t, bytes.Equal(a, c))
}

func TestWriteJSONAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "report.json")
	require.NoError(t, WriteJSON(path, sampleReport(time.Now())))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp residue")
	assert.Equal(t, "report.json", entries[0].Name())
}

func TestMarkdownGrouping(t *testing.T) {
	md := Markdown(sampleReport(time.Now()))

	critIdx := strings.Index(md, "## CRITICAL (1)")
	lowIdx := strings.Index(md, "## LOW (1)")
	require.GreaterOrEqual(t, critIdx, 0, "markdown: %s", md)
	require.GreaterOrEqual(t, lowIdx, 0)
	assert.Less(t, critIdx, lowIdx, "critical section must precede low")

	assert.Contains(t, md, "### secret")
	assert.Contains(t, md, "`src/main.rs:10`")
	assert.Contains(t, md, "Fix: rotate it")
}

func TestMarkdownErrorsBlock(t *testing.T) {
	r := sampleReport(time.Now())
	r.Summary.Errors = map[string]int{"io": 2, "timeout": 1}
	md := Markdown(r)
	assert.Contains(t, md, "## Errors")
	assert.Contains(t, md, "- io: 2")
	assert.Contains(t, md, "- timeout: 1")
}

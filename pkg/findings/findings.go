// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package findings defines the finding and report data model shared by every
// CodeGuardian analyzer, the cache, the report writer and the issue bridge.
//
// A Finding is the atomic unit of output. Its ID is a stable function of
// (rule, path, line, normalized message), so two runs over the same tree with
// the same configuration produce the same IDs and, after canonical sorting,
// byte-identical reports.
package findings

import (
	"sort"
	"time"
)

// SchemaVersion identifies the report and cache entry schema. Bump on any
// incompatible change to Finding or Report serialization.
const SchemaVersion = "1"

// Severity classifies how urgent a finding is.
type Severity string

// Severity levels, highest first.
const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// severityRank maps severities to sort ranks. Lower rank sorts first.
var severityRank = map[Severity]int{
	SeverityCritical: 0,
	SeverityHigh:     1,
	SeverityMedium:   2,
	SeverityLow:      3,
	SeverityInfo:     4,
}

// Rank returns the canonical sort rank of s. Unknown severities rank after
// info so malformed cache entries cannot jump the queue.
func (s Severity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return len(severityRank)
}

// AtLeast reports whether s is at least as severe as other.
func (s Severity) AtLeast(other Severity) bool {
	return s.Rank() <= other.Rank()
}

// Valid reports whether s is one of the five known levels.
func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// ParseSeverity converts a config string into a Severity.
func ParseSeverity(s string) (Severity, bool) {
	sev := Severity(s)
	return sev, sev.Valid()
}

// Finding is a single issue located in the analyzed tree.
type Finding struct {
	// ID is a 16-hex-digit stable digest of (rule, path, line, message).
	ID string `json:"id"`

	// Analyzer is the name of the analyzer that produced the finding.
	Analyzer string `json:"analyzer"`

	// Rule is the rule name within the analyzer's family.
	Rule string `json:"rule"`

	// Severity is one of critical, high, medium, low, info.
	Severity Severity `json:"severity"`

	// File is the repo-relative, slash-separated path.
	File string `json:"file"`

	// Line is 1-based. Zero means the finding applies to the whole file.
	Line int `json:"line"`

	// Message is the short, single-line description.
	Message string `json:"message"`

	// Description optionally elaborates on the message.
	Description string `json:"description,omitempty"`

	// Suggestion optionally tells the user how to fix the issue.
	Suggestion string `json:"suggestion,omitempty"`

	// Category optionally groups related rules (e.g. "injection").
	Category string `json:"category,omitempty"`

	// Confidence is the analyzer's own confidence in [0,1], 0 when unset.
	Confidence float64 `json:"confidence,omitempty"`
}

// Less imposes the canonical order: severity desc, path asc, line asc, ID asc.
func (f *Finding) Less(other *Finding) bool {
	if a, b := f.Severity.Rank(), other.Severity.Rank(); a != b {
		return a < b
	}
	if f.File != other.File {
		return f.File < other.File
	}
	if f.Line != other.Line {
		return f.Line < other.Line
	}
	return f.ID < other.ID
}

// SortCanonical sorts fs in place into the canonical report order.
func SortCanonical(fs []Finding) {
	sort.Slice(fs, func(i, j int) bool {
		return fs[i].Less(&fs[j])
	})
}

// Dedupe removes findings with duplicate IDs from a canonically sorted slice,
// keeping the first occurrence. The input must already be sorted; the result
// shares the input's backing array.
func Dedupe(fs []Finding) []Finding {
	seen := make(map[string]struct{}, len(fs))
	out := fs[:0]
	for i := range fs {
		if _, dup := seen[fs[i].ID]; dup {
			continue
		}
		seen[fs[i].ID] = struct{}{}
		out = append(out, fs[i])
	}
	return out
}

// Summary aggregates per-run counters for the report header.
type Summary struct {
	FilesScanned int            `json:"files_scanned"`
	DurationMS   int64          `json:"duration_ms"`
	BySeverity   map[string]int `json:"by_severity"`
	ByAnalyzer   map[string]int `json:"by_analyzer"`

	// Errors counts recoverable failures by kind (io, timeout, cache_corrupt).
	// Empty on a clean run.
	Errors map[string]int `json:"errors,omitempty"`
}

// Report is the top-level analysis result.
type Report struct {
	SchemaVersion string    `json:"schema_version"`
	ToolVersion   string    `json:"tool_version"`
	ConfigDigest  string    `json:"config_digest"`
	GeneratedAt   time.Time `json:"generated_at"`
	Summary       Summary   `json:"summary"`
	Findings      []Finding `json:"findings"`
}

// NewSummary computes counters over canonically ordered findings.
func NewSummary(fs []Finding, filesScanned int, duration time.Duration) Summary {
	s := Summary{
		FilesScanned: filesScanned,
		DurationMS:   duration.Milliseconds(),
		BySeverity:   make(map[string]int),
		ByAnalyzer:   make(map[string]int),
	}
	for i := range fs {
		s.BySeverity[string(fs[i].Severity)]++
		s.ByAnalyzer[fs[i].Analyzer]++
	}
	return s
}

// MaxSeverity returns the most severe level present in fs, or "" when empty.
func MaxSeverity(fs []Finding) Severity {
	var max Severity
	best := len(severityRank) + 1
	for i := range fs {
		if r := fs[i].Severity.Rank(); r < best {
			best = r
			max = fs[i].Severity
		}
	}
	return max
}

// CountAtLeast returns how many findings are at or above the given severity.
func CountAtLeast(fs []Finding, min Severity) int {
	n := 0
	for i := range fs {
		if fs[i].Severity.AtLeast(min) {
			n++
		}
	}
	return n
}

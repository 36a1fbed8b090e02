// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package report serializes an analysis report as canonical JSON and as
// Markdown. Key order is fixed by the struct layout, map keys serialize
// sorted, confidences are normalized to four decimals, and writes are
// atomic, so two runs over identical inputs produce identical files.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kraklabs/codeguardian/pkg/findings"
)

// severityOrder for Markdown section headers.
var severityOrder = []findings.Severity{
	findings.SeverityCritical,
	findings.SeverityHigh,
	findings.SeverityMedium,
	findings.SeverityLow,
	findings.SeverityInfo,
}

// JSONBytes renders the report as indented canonical JSON.
func JSONBytes(r *findings.Report) ([]byte, error) {
	normalize(r)
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	return buf.Bytes(), nil
}

// CanonicalBytes renders the report with its volatile header fields
// (generation time, duration) zeroed. Two runs over identical inputs and
// configuration produce byte-identical canonical output; this is the form
// the determinism checks compare.
func CanonicalBytes(r *findings.Report) ([]byte, error) {
	stable := *r
	stable.GeneratedAt = time.Time{}
	stable.Summary.DurationMS = 0
	return JSONBytes(&stable)
}

// WriteJSON writes the canonical JSON atomically.
func WriteJSON(path string, r *findings.Report) error {
	data, err := JSONBytes(r)
	if err != nil {
		return err
	}
	return atomicWrite(path, data)
}

// Markdown renders the report grouped by severity, then analyzer.
func Markdown(r *findings.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# CodeGuardian Report\n\n")
	fmt.Fprintf(&b, "- Tool version: %s\n", r.ToolVersion)
	fmt.Fprintf(&b, "- Config digest: `%s`\n", shortDigest(r.ConfigDigest))
	fmt.Fprintf(&b, "- Files scanned: %d\n", r.Summary.FilesScanned)
	fmt.Fprintf(&b, "- Duration: %d ms\n", r.Summary.DurationMS)
	fmt.Fprintf(&b, "- Findings: %d\n\n", len(r.Findings))

	if len(r.Summary.Errors) > 0 {
		fmt.Fprintf(&b, "## Errors\n\n")
		for _, kind := range sortedKeys(r.Summary.Errors) {
			fmt.Fprintf(&b, "- %s: %d\n", kind, r.Summary.Errors[kind])
		}
		b.WriteString("\n")
	}

	for _, sev := range severityOrder {
		group := bySeverity(r.Findings, sev)
		if len(group) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s (%d)\n\n", strings.ToUpper(string(sev)), len(group))

		byAnalyzer := map[string][]findings.Finding{}
		for _, f := range group {
			byAnalyzer[f.Analyzer] = append(byAnalyzer[f.Analyzer], f)
		}
		analyzers := make([]string, 0, len(byAnalyzer))
		for a := range byAnalyzer {
			analyzers = append(analyzers, a)
		}
		sort.Strings(analyzers)

		for _, a := range analyzers {
			fmt.Fprintf(&b, "### %s\n\n", a)
			for _, f := range byAnalyzer[a] {
				fmt.Fprintf(&b, "- **%s** `%s:%d` — %s (`%s`)\n", f.Rule, f.File, f.Line, f.Message, f.ID)
				if f.Suggestion != "" {
					fmt.Fprintf(&b, "  - Fix: %s\n", f.Suggestion)
				}
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// WriteMarkdown writes the Markdown rendering atomically.
func WriteMarkdown(path string, r *findings.Report) error {
	return atomicWrite(path, []byte(Markdown(r)))
}

// normalize clamps confidences to four decimals so float noise never leaks
// into the serialized form.
func normalize(r *findings.Report) {
	for i := range r.Findings {
		r.Findings[i].Confidence = math.Round(r.Findings[i].Confidence*10000) / 10000
	}
}

func bySeverity(fs []findings.Finding, sev findings.Severity) []findings.Finding {
	var out []findings.Finding
	for _, f := range fs {
		if f.Severity == sev {
			out = append(out, f)
		}
	}
	return out
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}

func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".report-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package contract

import (
	"testing"

	"github.com/kraklabs/codeguardian/pkg/findings"
)

func validReport() *findings.Report {
	fs := []findings.Finding{
		{ID: "aabbccdd00112233", Analyzer: "secret", Rule: "hardcoded_secret",
			Severity: findings.SeverityCritical, File: "src/a.rs", Line: 1},
		{ID: "ffeeddcc00112233", Analyzer: "dependency", Rule: "permissive_version",
			Severity: findings.SeverityLow, File: "Cargo.toml", Line: 5},
	}
	findings.SortCanonical(fs)
	return &findings.Report{
		SchemaVersion: findings.SchemaVersion,
		ToolVersion:   "1.0.0",
		ConfigDigest:  "abc",
		Findings:      fs,
	}
}

func TestValidateReportOK(t *testing.T) {
	res := ValidateReport(validReport())
	if !res.OK {
		t.Fatalf("valid report rejected: %s", res.Message)
	}
}

func TestValidateReportFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*findings.Report)
	}{
		{"wrong schema", func(r *findings.Report) { r.SchemaVersion = "999" }},
		{"empty digest", func(r *findings.Report) { r.ConfigDigest = "" }},
		{"short id", func(r *findings.Report) { r.Findings[0].ID = "abc" }},
		{"bad severity", func(r *findings.Report) { r.Findings[0].Severity = "severe" }},
		{"missing rule", func(r *findings.Report) { r.Findings[0].Rule = "" }},
		{"negative line", func(r *findings.Report) { r.Findings[0].Line = -2 }},
		{"out of order", func(r *findings.Report) {
			r.Findings[0], r.Findings[1] = r.Findings[1], r.Findings[0]
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validReport()
			tt.mutate(r)
			if res := ValidateReport(r); res.OK {
				t.Error("expected validation failure")
			}
		})
	}
}

// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package testing provides shared helpers for CodeGuardian tests: fixture
// tree builders and canned reports.
package testing

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kraklabs/codeguardian/pkg/findings"
)

// WriteTree lays out files (relative slash paths to contents) under a fresh
// temp dir and returns its root.
//
// Example:
//
//	root := testing.WriteTree(t, map[string]string{
//	    "src/main.rs": "fn main() {}\n",
//	    "Cargo.toml":  "[package]\nname = \"demo\"\n",
//	})
func WriteTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", path, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	return root
}

// SampleFindings returns a small canonical-ordered finding set covering
// multiple severities, for report and bridge tests.
func SampleFindings() []findings.Finding {
	fs := []findings.Finding{
		{
			ID: "aabbccdd00112233", Analyzer: "secret", Rule: "hardcoded_secret",
			Severity: findings.SeverityCritical, File: "src/main.rs", Line: 10,
			Message: "hardcoded secret assigned to password",
		},
		{
			ID: "bbccddee00112233", Analyzer: "security", Rule: "sql_string_concat",
			Severity: findings.SeverityHigh, File: "src/db.rs", Line: 42,
			Message: "SQL query assembled by string concatenation",
		},
		{
			ID: "ccddeeff00112233", Analyzer: "dependency", Rule: "permissive_version",
			Severity: findings.SeverityLow, File: "Cargo.toml", Line: 5,
			Message: "dependency serde uses permissive version \"*\"",
		},
	}
	findings.SortCanonical(fs)
	return fs
}

// SampleReport wraps SampleFindings in a schema-complete report.
func SampleReport() *findings.Report {
	fs := SampleFindings()
	return &findings.Report{
		SchemaVersion: findings.SchemaVersion,
		ToolVersion:   "1.0.0-test",
		ConfigDigest:  "cfg0123456789abcdef",
		GeneratedAt:   time.Unix(0, 0).UTC(),
		Summary:       findings.NewSummary(fs, 3, 120*time.Millisecond),
		Findings:      fs,
	}
}

// Copyright 2025 KrakLabs
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package contract validates report documents against the invariants the
// rest of the toolchain depends on: schema version, canonical ordering and
// well-formed findings. The `report` and `gh-issue` commands run these
// checks before trusting a JSON file from disk.
package contract

import (
	"fmt"

	"github.com/kraklabs/codeguardian/pkg/findings"
)

// ValidationResult represents the result of a validation check.
type ValidationResult struct {
	OK      bool
	Message string
}

func fail(format string, args ...any) *ValidationResult {
	return &ValidationResult{Message: fmt.Sprintf(format, args...)}
}

// ValidateReport checks a deserialized report document.
func ValidateReport(r *findings.Report) *ValidationResult {
	if r.SchemaVersion != findings.SchemaVersion {
		return fail("schema_version %q, this build expects %q", r.SchemaVersion, findings.SchemaVersion)
	}
	if r.ConfigDigest == "" {
		return fail("config_digest is empty")
	}

	for i := range r.Findings {
		f := &r.Findings[i]
		if len(f.ID) != 16 {
			return fail("finding %d: id %q is not 16 hex digits", i, f.ID)
		}
		if !f.Severity.Valid() {
			return fail("finding %d: unknown severity %q", i, f.Severity)
		}
		if f.File == "" || f.Rule == "" || f.Analyzer == "" {
			return fail("finding %d: missing file, rule or analyzer", i)
		}
		if f.Line < 0 {
			return fail("finding %d: negative line %d", i, f.Line)
		}
		if i > 0 && f.Less(&r.Findings[i-1]) {
			return fail("findings are not in canonical order at index %d", i)
		}
	}
	return &ValidationResult{OK: true}
}

// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package analyzers

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/kraklabs/codeguardian/pkg/findings"
)

// LintDrift compares on-disk formatter and linter configs against an
// expected shape and flags deviations that silently weaken the lint gate.
type LintDrift struct{}

// lintExpectation is one key the expected shape pins.
type lintExpectation struct {
	// keyPath navigates nested maps with dots.
	keyPath string

	// forbidden values for the key; empty means the key must merely exist.
	forbidden []string

	message  string
	severity findings.Severity
}

// lintConfigs maps known lint config basenames to their format and expected
// shape.
var lintConfigs = map[string]struct {
	format       string
	expectations []lintExpectation
}{
	".eslintrc.json": {format: "json", expectations: []lintExpectation{
		{keyPath: "rules.no-eval", forbidden: []string{"off", "0"},
			message: "no-eval is disabled", severity: findings.SeverityMedium},
	}},
	".eslintrc.yml": {format: "yaml", expectations: []lintExpectation{
		{keyPath: "rules.no-eval", forbidden: []string{"off", "0"},
			message: "no-eval is disabled", severity: findings.SeverityMedium},
	}},
	"rustfmt.toml": {format: "toml", expectations: []lintExpectation{
		{keyPath: "edition", message: "edition is not pinned", severity: findings.SeverityLow},
	}},
	"clippy.toml": {format: "toml"},
	".golangci.yml": {format: "yaml", expectations: []lintExpectation{
		{keyPath: "linters", message: "no linters section", severity: findings.SeverityLow},
	}},
	".prettierrc": {format: "json"},
}

func (l *LintDrift) Name() string { return "lint-drift" }

func (l *LintDrift) Supports(f File) bool {
	if f.Stream {
		return false
	}
	_, ok := lintConfigs[strings.ToLower(path.Base(f.Path))]
	return ok
}

func (l *LintDrift) Analyze(f File, c *Content, opts Options) ([]findings.Finding, error) {
	data, ok := c.Bytes()
	if !ok {
		return nil, nil
	}
	spec := lintConfigs[strings.ToLower(path.Base(f.Path))]

	doc := map[string]any{}
	var parseErr error
	switch spec.format {
	case "json":
		parseErr = json.Unmarshal(data, &doc)
	case "yaml":
		parseErr = yaml.Unmarshal(data, &doc)
	case "toml":
		parseErr = toml.Unmarshal(data, &doc)
	}
	if parseErr != nil {
		return []findings.Finding{adHocFinding(l.Name(), "lint_config_unparseable",
			findings.SeverityLow, f, 0,
			fmt.Sprintf("%s does not parse: %v", path.Base(f.Path), parseErr))}, nil
	}

	var out []findings.Finding
	for _, exp := range spec.expectations {
		val, present := lookupKeyPath(doc, exp.keyPath)
		if !present {
			if len(exp.forbidden) == 0 {
				out = append(out, adHocFinding(l.Name(), "lint_drift", exp.severity,
					f, 0, fmt.Sprintf("%s: %s", path.Base(f.Path), exp.message)))
			}
			continue
		}
		got := fmt.Sprintf("%v", val)
		for _, bad := range exp.forbidden {
			if got == bad {
				out = append(out, adHocFinding(l.Name(), "lint_drift", exp.severity,
					f, 0, fmt.Sprintf("%s: %s (found %q)", path.Base(f.Path), exp.message, got)))
				break
			}
		}
	}
	return out, nil
}

// lookupKeyPath walks nested maps by dotted key path. YAML decodes nested
// maps as map[string]any under yaml.v3, JSON and TOML likewise.
func lookupKeyPath(doc map[string]any, keyPath string) (any, bool) {
	parts := strings.Split(keyPath, ".")
	var cur any = doc
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

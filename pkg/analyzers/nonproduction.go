// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package analyzers

import (
	"github.com/kraklabs/codeguardian/pkg/classify"
	"github.com/kraklabs/codeguardian/pkg/findings"
	"github.com/kraklabs/codeguardian/pkg/patterns"
)

// NonProduction flags TODO/FIXME/HACK markers, leftover debug output and
// unreleased markers. Severity comes from the rule table for production
// files and is floored at info elsewhere.
type NonProduction struct{}

func (n *NonProduction) Name() string { return "non-production" }

func (n *NonProduction) Supports(f File) bool {
	return sourceLanguages[f.Language] || f.Language == classify.LangMarkdown
}

func (n *NonProduction) Analyze(f File, c *Content, opts Options) ([]findings.Finding, error) {
	rules := patterns.Default().Family(patterns.FamilyNonProduction)

	r, err := c.Lines()
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var out []findings.Finding
	for r.Scan() {
		line := r.Line()
		hits := patterns.ScanAll(rules, f.Language, line.Text)
		for _, h := range patterns.ResolveOverlaps(hits) {
			fd := newFinding(h.Rule, n.Name(), f, line.Number, firstGroup(h))
			if !f.Production {
				fd.Severity = findings.SeverityInfo
			}
			out = append(out, fd)
		}
	}
	return out, r.Err()
}

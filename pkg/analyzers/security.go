// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package analyzers

import (
	"github.com/kraklabs/codeguardian/pkg/findings"
	"github.com/kraklabs/codeguardian/pkg/patterns"
)

// Security detects dangerous calls, injection shapes, XSS sinks, weak crypto
// and unsafe blocks. Hits on non-production paths are suppressed; secret-like
// literals are left to the Secret analyzer.
type Security struct{}

func (s *Security) Name() string { return "security" }

func (s *Security) Supports(f File) bool {
	return sourceLanguages[f.Language]
}

func (s *Security) Analyze(f File, c *Content, opts Options) ([]findings.Finding, error) {
	if !f.Production {
		return nil, nil
	}

	rules := patterns.Default().Family(patterns.FamilySecurity)

	r, err := c.Lines()
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var out []findings.Finding
	for r.Scan() {
		line := r.Line()
		hits := patterns.ScanAll(rules, f.Language, line.Text)
		if len(hits) == 0 {
			continue
		}
		for _, h := range patterns.ResolveOverlaps(hits) {
			arg := ""
			if len(h.Groups) > 0 {
				arg = h.Groups[0]
			}
			out = append(out, newFinding(h.Rule, s.Name(), f, line.Number, arg))
		}
	}
	return out, r.Err()
}

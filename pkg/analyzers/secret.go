// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package analyzers

import (
	"math"
	"strings"
	"unicode"

	"github.com/kraklabs/codeguardian/pkg/classify"
	"github.com/kraklabs/codeguardian/pkg/findings"
	"github.com/kraklabs/codeguardian/pkg/patterns"
)

// Secret finds committed credentials with a hybrid of known patterns and a
// Shannon-entropy gate. Hits in test context are downgraded to info instead
// of dropped, so audits can still see them.
type Secret struct{}

// minLiteralLen is the shortest literal the entropy gate considers.
const minLiteralLen = 20

// minCharClasses is the character-class diversity the entropy gate requires.
const minCharClasses = 3

// testContextWords in a left-hand-side identifier mark an intentional sample
// value.
var testContextWords = []string{"example", "sample", "dummy", "placeholder", "mock", "test", "fake"}

// unitTestMarkers mark a file as test code regardless of its path.
var unitTestMarkers = []string{
	"#[test]", "#[cfg(test)]", "#[bench]",
	"func Test", "func Benchmark",
	"def test_", "import pytest", "unittest.TestCase",
	"@Test", "describe(", "it.each(", "test.each(",
}

func (s *Secret) Name() string { return "secret" }

func (s *Secret) Supports(f File) bool {
	switch f.Language {
	case classify.LangYAML, classify.LangTOML, classify.LangJSON:
		// Config formats are scanned only when small. A streamed one is a
		// generated artifact (lockfile, report, bundle) whose UUIDs, hashes
		// and base64 blobs would drown the entropy gate in noise; those
		// files get the orchestrator's large-file finding and nothing else.
		return !f.Stream
	}
	return sourceLanguages[f.Language]
}

func (s *Secret) Analyze(f File, c *Content, opts Options) ([]findings.Finding, error) {
	testScope, err := s.hasUnitTestMarker(c)
	if err != nil {
		return nil, err
	}

	rules := patterns.Default().Family(patterns.FamilySecret)

	r, err := c.Lines()
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var out []findings.Finding
	for r.Scan() {
		line := r.Line()
		text := line.Text

		var hits []patterns.Hit
		hits = append(hits, patterns.ScanAll(rules, f.Language, text)...)
		assignHits := patterns.SecretAssignmentPattern.ScanLine(text)
		hits = append(hits, assignHits...)

		// Entropy gate for generic literals, skipping spans an assignment
		// hit already covers.
		for _, lit := range patterns.GenericLiteralPattern.ScanLine(text) {
			if coveredBy(lit, assignHits) {
				continue
			}
			value := lit.Groups[0]
			if len(value) >= minLiteralLen &&
				charClasses(value) >= minCharClasses &&
				shannonEntropy(value) >= opts.EntropyMin {
				hits = append(hits, lit)
			}
		}

		for _, h := range patterns.ResolveOverlaps(hits) {
			fd := newFinding(h.Rule, s.Name(), f, line.Number, firstGroup(h))
			fd.Confidence = 0.9
			if h.Rule == patterns.GenericLiteralPattern {
				fd.Confidence = 0.6
			}
			if reason := s.suppressReason(f, testScope, h, text); reason != "" {
				fd.Severity = findings.SeverityInfo
				fd.Description = "downgraded: " + reason
				fd.Confidence = 0.2
			}
			out = append(out, fd)
		}
	}
	return out, r.Err()
}

// suppressReason returns a non-empty reason when the hit sits in test
// context and should be downgraded rather than reported at full severity.
func (s *Secret) suppressReason(f File, testScope bool, h patterns.Hit, line string) string {
	if !f.Production {
		return "non-production path"
	}
	if testScope {
		return "file contains unit-test markers"
	}
	if h.Rule == patterns.SecretAssignmentPattern && len(h.Groups) > 0 {
		ident := strings.ToLower(h.Groups[0])
		for _, w := range testContextWords {
			if strings.Contains(ident, w) {
				return "identifier suggests a sample value"
			}
		}
	}
	lower := strings.ToLower(line)
	for _, w := range []string{"example", "sample", "fixture", "placeholder", "dummy"} {
		if strings.Contains(lower, w) {
			return "sample context on the line"
		}
	}
	return ""
}

// hasUnitTestMarker does a cheap pre-pass over the file for test markers.
func (s *Secret) hasUnitTestMarker(c *Content) (bool, error) {
	if data, ok := c.Bytes(); ok {
		text := string(data)
		for _, m := range unitTestMarkers {
			if strings.Contains(text, m) {
				return true, nil
			}
		}
		return false, nil
	}

	r, err := c.Lines()
	if err != nil {
		return false, err
	}
	defer r.Close()
	for r.Scan() {
		text := r.Line().Text
		for _, m := range unitTestMarkers {
			if strings.Contains(text, m) {
				return true, nil
			}
		}
	}
	return false, r.Err()
}

func firstGroup(h patterns.Hit) string {
	if len(h.Groups) > 0 {
		return h.Groups[0]
	}
	return ""
}

func coveredBy(h patterns.Hit, covers []patterns.Hit) bool {
	for _, c := range covers {
		if h.Start >= c.Start && h.End <= c.End {
			return true
		}
	}
	return false
}

// shannonEntropy computes bits of entropy per character of s.
func shannonEntropy(s string) float64 {
	if s == "" {
		return 0
	}
	freq := make(map[rune]int)
	for _, r := range s {
		freq[r]++
	}
	n := float64(len([]rune(s)))
	entropy := 0.0
	for _, count := range freq {
		p := float64(count) / n
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// charClasses counts distinct character classes (lower, upper, digit,
// punctuation) present in s.
func charClasses(s string) int {
	var lower, upper, digit, other bool
	for _, r := range s {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		default:
			other = true
		}
	}
	n := 0
	for _, b := range []bool{lower, upper, digit, other} {
		if b {
			n++
		}
	}
	return n
}

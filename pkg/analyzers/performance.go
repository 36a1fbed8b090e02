// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package analyzers

import (
	"strings"

	"github.com/kraklabs/codeguardian/pkg/classify"
	"github.com/kraklabs/codeguardian/pkg/findings"
	"github.com/kraklabs/codeguardian/pkg/patterns"
)

// Performance detects pattern-shaped performance problems. Loop context is
// tracked lexically: a keyword starts a pending loop, its opening brace (or
// the indentation for Python) pushes a nesting level. No AST is built.
type Performance struct{}

// loopKeywords are shared by all languages and matched as plain substrings
// of the trimmed line.
var loopKeywords = []string{"for ", "for(", "while ", "while(", "loop {", "loop{", ".forEach(", "do {"}

func (p *Performance) Name() string { return "performance" }

func (p *Performance) Supports(f File) bool {
	return sourceLanguages[f.Language]
}

func (p *Performance) Analyze(f File, c *Content, opts Options) ([]findings.Finding, error) {
	if !f.Production {
		return nil, nil
	}

	lineRules := patterns.Default().Family(patterns.FamilyPerformance)

	r, err := c.Lines()
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var out []findings.Finding
	track := newLoopTracker(f.Language)
	reportedNest := false

	for r.Scan() {
		line := r.Line()
		text := line.Text
		trimmed := strings.TrimSpace(text)
		if isCommentLine(f.Language, trimmed) {
			track.observe(text)
			continue
		}

		depth := track.depth()
		startsLoop := hasLoopKeyword(trimmed)

		// Nested loop: a loop opening while one is already active.
		if startsLoop && depth >= 1 && !reportedNest {
			out = append(out, adHocFinding(p.Name(), "nested_loops", findings.SeverityMedium,
				f, line.Number, "nested loops; consider restructuring to a single pass"))
			reportedNest = true
		}

		for _, h := range patterns.ScanAll(lineRules, f.Language, text) {
			out = append(out, newFinding(h.Rule, p.Name(), f, line.Number, firstGroup(h)))
		}

		// Loop-sensitive rules only fire inside a loop body. The line that
		// opens the loop itself is exempt (its own range expression is not
		// per-iteration work).
		if depth >= 1 && !startsLoop {
			for _, rule := range patterns.LoopSensitiveRules {
				for range rule.ScanLine(text) {
					out = append(out, newFinding(rule, p.Name(), f, line.Number, ""))
					break
				}
			}
		}

		track.observe(text)
		if startsLoop {
			track.openLoop(text)
		}
	}
	return out, r.Err()
}

func hasLoopKeyword(trimmed string) bool {
	for _, kw := range loopKeywords {
		if strings.Contains(trimmed, kw) {
			return true
		}
	}
	return false
}

// loopTracker approximates loop nesting from braces (brace languages) or
// indentation (Python). It is deliberately coarse: false nesting from
// non-loop braces is avoided by only counting depth opened by loop lines.
type loopTracker struct {
	indentBased bool

	// braceDepths holds the brace depth at which each active loop opened.
	braceDepths []int
	braceLevel  int

	// indentStack holds the indentation of each active Python loop header.
	indentStack []int
}

func newLoopTracker(lang classify.Language) *loopTracker {
	return &loopTracker{indentBased: lang == classify.LangPython}
}

func (t *loopTracker) depth() int {
	if t.indentBased {
		return len(t.indentStack)
	}
	return len(t.braceDepths)
}

// observe updates brace/indent state for one line.
func (t *loopTracker) observe(line string) {
	if t.indentBased {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			return
		}
		indent := leadingSpaces(line)
		for len(t.indentStack) > 0 && indent <= t.indentStack[len(t.indentStack)-1] {
			t.indentStack = t.indentStack[:len(t.indentStack)-1]
		}
		return
	}

	for _, ch := range line {
		switch ch {
		case '{':
			t.braceLevel++
		case '}':
			t.braceLevel--
			for len(t.braceDepths) > 0 && t.braceLevel < t.braceDepths[len(t.braceDepths)-1] {
				t.braceDepths = t.braceDepths[:len(t.braceDepths)-1]
			}
		}
	}
}

// openLoop records a loop that opened on the line just observed. The
// untrimmed line is needed for Python indentation.
func (t *loopTracker) openLoop(line string) {
	if t.indentBased {
		t.indentStack = append(t.indentStack, leadingSpaces(line))
		return
	}
	t.braceDepths = append(t.braceDepths, t.braceLevel)
}

func leadingSpaces(s string) int {
	n := 0
	for _, ch := range s {
		if ch == ' ' {
			n++
		} else if ch == '\t' {
			n += 4
		} else {
			break
		}
	}
	return n
}

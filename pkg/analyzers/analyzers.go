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

// Package analyzers implements the rule groups that turn file content into
// findings: security, secret, non-production, performance, dependency,
// code-quality, integrity and lint-drift.
//
// Analyzers are stateless between files. Registration is static: All()
// returns the fixed set, and the orchestrator selects per file via
// Supports(). Within one file analyzers run sequentially, so each may pull
// its own line reader from the shared Content without contending.
package analyzers

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/kraklabs/codeguardian/pkg/classify"
	"github.com/kraklabs/codeguardian/pkg/findings"
	"github.com/kraklabs/codeguardian/pkg/fingerprint"
	"github.com/kraklabs/codeguardian/pkg/patterns"
	"github.com/kraklabs/codeguardian/pkg/streaming"
)

// File describes one file under analysis. Built by the orchestrator during
// the tree walk and dropped once the file's analyzers finish.
type File struct {
	// Path is repo-relative with forward slashes.
	Path string

	// AbsPath locates the file on disk for streamed re-reads.
	AbsPath string

	Size       int64
	Language   classify.Language
	Production bool
	Stream     bool
}

// Content hands analyzers the file's bytes or a fresh line reader. Small
// files are held in memory; streamed files are re-opened per analyzer so no
// analyzer ever sees more than one buffered chunk at a time.
type Content struct {
	data     []byte
	streamed bool
	absPath  string
	maxLine  int

	// readers tracks handed-out line readers so the orchestrator can see
	// whether any line was truncated. Analyzers run sequentially per file,
	// so no locking is needed.
	readers []*streaming.Reader
}

// NewContent wraps in-memory file content.
func NewContent(data []byte) *Content {
	return &Content{data: data}
}

// NewStreamedContent defers reading to per-analyzer line readers.
func NewStreamedContent(absPath string, maxLine int) *Content {
	return &Content{streamed: true, absPath: absPath, maxLine: maxLine}
}

// Bytes returns the full content for small files. ok is false for streamed
// files, whose content must be consumed through Lines.
func (c *Content) Bytes() ([]byte, bool) {
	if c.streamed {
		return nil, false
	}
	return c.data, true
}

// Lines returns a fresh, non-restartable line reader over the content.
func (c *Content) Lines() (*streaming.Reader, error) {
	var r *streaming.Reader
	if c.streamed {
		opened, err := streaming.Open(c.absPath, c.maxLine)
		if err != nil {
			return nil, err
		}
		r = opened
	} else {
		r = streaming.New(bytes.NewReader(c.data), c.maxLine)
	}
	c.readers = append(c.readers, r)
	return r, nil
}

// TruncatedLines reports the highest truncation count any reader observed.
// Meaningful once the file's analyzers have finished.
func (c *Content) TruncatedLines() int {
	max := 0
	for _, r := range c.readers {
		if r.TruncatedLines > max {
			max = r.TruncatedLines
		}
	}
	return max
}

// Options carries the analysis-affecting thresholds from configuration.
type Options struct {
	EntropyMin    float64
	ComplexityMax int
	LongLine      int
	LongFunction  int
	TooManyParams int
	DuplicateMin  int

	// BadPins maps "name@version" to the reason the pin is rejected.
	BadPins map[string]string

	// Disabled analyzers by name.
	Disabled map[string]bool
}

// DefaultOptions mirror the documented config defaults.
func DefaultOptions() Options {
	return Options{
		EntropyMin:    3.5,
		ComplexityMax: 15,
		LongLine:      120,
		LongFunction:  100,
		TooManyParams: 6,
		DuplicateMin:  3,
	}
}

// Analyzer is the capability interface every rule group implements.
type Analyzer interface {
	// Name identifies the analyzer in findings and config.
	Name() string

	// Supports reports whether the analyzer has anything to say about the
	// file. Streamed files are offered only to analyzers that can work from
	// a line reader.
	Supports(f File) bool

	// Analyze emits the analyzer's findings for the file. Malformed input
	// is reported as findings, never as an error; errors are reserved for
	// I/O failures on streamed reads.
	Analyze(f File, c *Content, opts Options) ([]findings.Finding, error)
}

// All returns the static analyzer set in registration order.
func All() []Analyzer {
	return []Analyzer{
		&Security{},
		&Secret{},
		&NonProduction{},
		&Performance{},
		&Dependency{},
		&CodeQuality{},
		&Integrity{},
		&LintDrift{},
	}
}

// Select returns the analyzers applicable to f, honoring disable flags.
func Select(f File, opts Options) []Analyzer {
	var out []Analyzer
	for _, a := range All() {
		if opts.Disabled[a.Name()] {
			continue
		}
		if a.Supports(f) {
			out = append(out, a)
		}
	}
	return out
}

// newFinding builds a finding with its stable ID from a compiled rule.
func newFinding(r *patterns.Rule, analyzer string, f File, line int, msgArg string) findings.Finding {
	msg := r.Description
	if msgArg != "" && strings.Contains(r.Description, "%s") {
		msg = fmt.Sprintf(r.Description, msgArg)
	}
	msg = fingerprint.NormalizeMessage(msg)
	return findings.Finding{
		ID:         fingerprint.FindingID(r.Name, f.Path, line, msg),
		Analyzer:   analyzer,
		Rule:       r.Name,
		Severity:   r.Severity,
		File:       f.Path,
		Line:       line,
		Message:    msg,
		Suggestion: r.Suggestion,
		Category:   r.Category,
	}
}

// adHocFinding builds a finding for rules that have no patterns.Rule entry
// (structural checks, parse errors).
func adHocFinding(analyzer, rule string, sev findings.Severity, f File, line int, msg string) findings.Finding {
	msg = fingerprint.NormalizeMessage(msg)
	return findings.Finding{
		ID:       fingerprint.FindingID(rule, f.Path, line, msg),
		Analyzer: analyzer,
		Rule:     rule,
		Severity: sev,
		File:     f.Path,
		Line:     line,
		Message:  msg,
	}
}

// sourceLanguages is the language set the line-rule analyzers run on.
var sourceLanguages = map[classify.Language]bool{
	classify.LangRust:   true,
	classify.LangJS:     true,
	classify.LangTS:     true,
	classify.LangPython: true,
	classify.LangGo:     true,
	classify.LangJava:   true,
	classify.LangC:      true,
	classify.LangCPP:    true,
	classify.LangShell:  true,
}

// isCommentLine reports whether the trimmed line is a comment for the
// file's language. Shared by the non-production and code-quality analyzers.
func isCommentLine(lang classify.Language, trimmed string) bool {
	switch lang {
	case classify.LangPython, classify.LangShell, classify.LangYAML, classify.LangTOML:
		return len(trimmed) > 0 && trimmed[0] == '#'
	default:
		if len(trimmed) >= 2 && trimmed[0] == '/' && (trimmed[1] == '/' || trimmed[1] == '*') {
			return true
		}
		return len(trimmed) >= 1 && trimmed[0] == '*'
	}
}

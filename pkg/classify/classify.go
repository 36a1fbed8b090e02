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

// Package classify decides, per file, which language a path belongs to,
// whether it counts as production code and whether it is large enough to be
// streamed instead of loaded whole. Decisions are pure: the only I/O input is
// the size already collected during the tree walk.
package classify

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Language identifies the detected source language of a file.
type Language string

// Known languages. Other covers everything the analyzers have no rules for.
const (
	LangRust     Language = "rust"
	LangJS       Language = "js"
	LangTS       Language = "ts"
	LangPython   Language = "python"
	LangGo       Language = "go"
	LangJava     Language = "java"
	LangC        Language = "c"
	LangCPP      Language = "cpp"
	LangShell    Language = "shell"
	LangMarkdown Language = "markdown"
	LangTOML     Language = "toml"
	LangYAML     Language = "yaml"
	LangJSON     Language = "json"
	LangOther    Language = "other"
)

// DefaultStreamThreshold is the file size at which analysis switches to the
// streaming reader.
const DefaultStreamThreshold = 5 * 1024 * 1024

var extLanguages = map[string]Language{
	".rs":       LangRust,
	".js":       LangJS,
	".jsx":      LangJS,
	".mjs":      LangJS,
	".cjs":      LangJS,
	".ts":       LangTS,
	".tsx":      LangTS,
	".py":       LangPython,
	".pyi":      LangPython,
	".go":       LangGo,
	".java":     LangJava,
	".c":        LangC,
	".h":        LangC,
	".cpp":      LangCPP,
	".cc":       LangCPP,
	".cxx":      LangCPP,
	".hpp":      LangCPP,
	".sh":       LangShell,
	".bash":     LangShell,
	".zsh":      LangShell,
	".md":       LangMarkdown,
	".markdown": LangMarkdown,
	".toml":     LangTOML,
	".yaml":     LangYAML,
	".yml":      LangYAML,
	".json":     LangJSON,
}

// basenameLanguages handles manifest files whose extension alone is ambiguous
// or missing.
var basenameLanguages = map[string]Language{
	"dockerfile": LangShell,
	"makefile":   LangOther,
	"go.mod":     LangOther,
	"go.sum":     LangOther,
}

// nonProductionSegments are path segments that mark test, benchmark, example
// or fixture trees. Matching any segment clears the production flag.
var nonProductionSegments = map[string]struct{}{
	"test":       {},
	"tests":      {},
	"testdata":   {},
	"benches":    {},
	"benchmarks": {},
	"examples":   {},
	"fixtures":   {},
	"__tests__":  {},
	"spec":       {},
}

// DetectLanguage maps a repo-relative path to a Language.
func DetectLanguage(path string) Language {
	base := strings.ToLower(filepath.Base(path))
	if lang, ok := basenameLanguages[base]; ok {
		return lang
	}
	if lang, ok := extLanguages[strings.ToLower(filepath.Ext(path))]; ok {
		return lang
	}
	return LangOther
}

// FileClass is the classification result for one file.
type FileClass struct {
	Language   Language
	Production bool
	Stream     bool
}

// Classifier applies the fixed exclusion set plus configured ignore globs.
type Classifier struct {
	ignoreGlobs     []string
	streamThreshold int64
}

// New creates a classifier. Invalid ignore globs are dropped by Classify
// rather than rejected here; config validation reports them earlier.
func New(ignoreGlobs []string, streamThreshold int64) *Classifier {
	if streamThreshold <= 0 {
		streamThreshold = DefaultStreamThreshold
	}
	return &Classifier{
		ignoreGlobs:     ignoreGlobs,
		streamThreshold: streamThreshold,
	}
}

// Classify decides language, production and stream flags for a repo-relative
// path of the given size.
func (c *Classifier) Classify(relPath string, size int64) FileClass {
	return FileClass{
		Language:   DetectLanguage(relPath),
		Production: c.IsProduction(relPath),
		Stream:     size >= c.streamThreshold,
	}
}

// IsProduction reports whether the path is production code: not under a
// test/bench/example/fixture segment, not a *_test.* / *_bench.* file, and
// not matched by a configured ignore glob.
func (c *Classifier) IsProduction(relPath string) bool {
	slashed := filepath.ToSlash(relPath)
	for _, seg := range strings.Split(slashed, "/") {
		if _, ok := nonProductionSegments[strings.ToLower(seg)]; ok {
			return false
		}
	}

	base := strings.ToLower(filepath.Base(slashed))
	stem := base
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		stem = base[:i]
	}
	if strings.HasSuffix(stem, "_test") || strings.HasSuffix(stem, "_bench") ||
		strings.HasSuffix(stem, ".test") || strings.HasSuffix(stem, ".spec") {
		return false
	}

	for _, glob := range c.ignoreGlobs {
		if ok, err := doublestar.Match(glob, slashed); err == nil && ok {
			return false
		}
	}
	return true
}

// IsProductionPath applies only the fixed exclusion set, for callers that
// have no configured globs in hand.
func IsProductionPath(relPath string) bool {
	return (&Classifier{}).IsProduction(relPath)
}

// Excluded reports whether a walk entry should be skipped entirely (as
// opposed to analyzed with the production flag cleared). Only configured
// ignore globs exclude; the fixed test-path set still gets analyzed so that
// downgraded findings stay auditable.
func (c *Classifier) Excluded(relPath string) bool {
	slashed := filepath.ToSlash(relPath)
	for _, glob := range c.ignoreGlobs {
		if ok, err := doublestar.Match(glob, slashed); err == nil && ok {
			return true
		}
	}
	return false
}

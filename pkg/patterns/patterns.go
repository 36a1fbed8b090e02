// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package patterns holds the process-wide registry of pre-compiled rule
// matchers. Rules are grouped by family, compiled exactly once on first use
// and shared read-only across all worker goroutines. No rule carries
// file-level state; everything mutable during a scan lives in the analyzers.
package patterns

import (
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/kraklabs/codeguardian/pkg/classify"
	"github.com/kraklabs/codeguardian/pkg/findings"
)

// Family groups related rules under the analyzer that runs them.
type Family string

// Rule families.
const (
	FamilySecurity      Family = "security"
	FamilySecret        Family = "secret"
	FamilyNonProduction Family = "non-production"
	FamilyPerformance   Family = "performance"
	FamilyDependency    Family = "dependency"
	FamilyCodeQuality   Family = "code-quality"
	FamilyIntegrity     Family = "integrity"
)

// Rule is one immutable, pre-compiled matcher.
type Rule struct {
	Family   Family
	Name     string
	Severity findings.Severity
	Category string

	// Description is the finding message template. %s is replaced with the
	// first captured group when present.
	Description string
	Suggestion  string

	// Substring is a cheap prefilter: when non-empty, lines that do not
	// contain it skip the regex entirely.
	Substring string

	// Pattern is the compiled line matcher.
	Pattern *regexp.Regexp

	// Languages limits the rule; nil means every language.
	Languages []classify.Language
}

// AppliesTo reports whether the rule runs for the given language.
func (r *Rule) AppliesTo(lang classify.Language) bool {
	if len(r.Languages) == 0 {
		return true
	}
	for _, l := range r.Languages {
		if l == lang {
			return true
		}
	}
	return false
}

// Hit is one match of a rule on a line.
type Hit struct {
	Rule   *Rule
	Start  int
	End    int
	Groups []string
}

// ScanLine returns every hit of r on the line, left to right.
func (r *Rule) ScanLine(line string) []Hit {
	if r.Substring != "" && !strings.Contains(line, r.Substring) {
		return nil
	}
	locs := r.Pattern.FindAllStringSubmatchIndex(line, -1)
	if locs == nil {
		return nil
	}
	hits := make([]Hit, 0, len(locs))
	for _, loc := range locs {
		h := Hit{Rule: r, Start: loc[0], End: loc[1]}
		for g := 1; g*2+1 < len(loc); g++ {
			s, e := loc[g*2], loc[g*2+1]
			if s < 0 {
				h.Groups = append(h.Groups, "")
			} else {
				h.Groups = append(h.Groups, line[s:e])
			}
		}
		hits = append(hits, h)
	}
	return hits
}

// ScanAll runs every applicable rule in the set over one line.
func ScanAll(rules []*Rule, lang classify.Language, line string) []Hit {
	var hits []Hit
	for _, r := range rules {
		if !r.AppliesTo(lang) {
			continue
		}
		hits = append(hits, r.ScanLine(line)...)
	}
	return hits
}

// ResolveOverlaps drops hits whose span overlaps a stronger hit. The winner
// on an overlapping span is the higher severity; on equal severity the rule
// name that sorts first wins.
func ResolveOverlaps(hits []Hit) []Hit {
	if len(hits) < 2 {
		return hits
	}
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if ra, rb := a.Rule.Severity.Rank(), b.Rule.Severity.Rank(); ra != rb {
			return ra < rb
		}
		return a.Rule.Name < b.Rule.Name
	})
	var kept []Hit
	for _, h := range hits {
		overlapped := false
		for _, k := range kept {
			if h.Start < k.End && k.Start < h.End {
				overlapped = true
				break
			}
		}
		if !overlapped {
			kept = append(kept, h)
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].Start < kept[j].Start })
	return kept
}

// Registry is the immutable set of compiled rules, grouped by family.
type Registry struct {
	byFamily map[Family][]*Rule
}

var (
	registryOnce sync.Once
	registry     *Registry
)

// Default returns the shared registry, compiling all rule tables on first
// call.
func Default() *Registry {
	registryOnce.Do(func() {
		registry = &Registry{byFamily: map[Family][]*Rule{
			FamilySecurity:      compile(securityRules),
			FamilySecret:        compile(secretRules),
			FamilyNonProduction: compile(nonProductionRules),
			FamilyPerformance:   compile(performanceRules),
		}}
	})
	return registry
}

// Family returns the compiled rules of one family. The returned slice must
// not be mutated.
func (rg *Registry) Family(f Family) []*Rule {
	return rg.byFamily[f]
}

// ruleSpec is the uncompiled form used by the per-family tables.
type ruleSpec struct {
	name        string
	severity    findings.Severity
	category    string
	description string
	suggestion  string
	substring   string
	pattern     string
	languages   []classify.Language
	family      Family
}

func compile(specs []ruleSpec) []*Rule {
	rules := make([]*Rule, len(specs))
	for i, s := range specs {
		rules[i] = &Rule{
			Family:      s.family,
			Name:        s.name,
			Severity:    s.severity,
			Category:    s.category,
			Description: s.description,
			Suggestion:  s.suggestion,
			Substring:   s.substring,
			Pattern:     regexp.MustCompile(s.pattern),
			Languages:   s.languages,
		}
	}
	return rules
}

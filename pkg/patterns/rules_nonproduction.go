// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package patterns

import (
	"github.com/kraklabs/codeguardian/pkg/classify"
	"github.com/kraklabs/codeguardian/pkg/findings"
)

// nonProductionRules flag work-in-progress markers and leftover debug
// output. The non-production analyzer lowers severities outside production
// paths.
var nonProductionRules = []ruleSpec{
	{
		family:      FamilyNonProduction,
		name:        "todo_marker",
		severity:    findings.SeverityLow,
		category:    "marker",
		description: "%s comment marker",
		pattern:     `\b(TODO|XXX)\b[:\s(]`,
	},
	{
		family:      FamilyNonProduction,
		name:        "fixme_marker",
		severity:    findings.SeverityMedium,
		category:    "marker",
		description: "%s comment marker",
		suggestion:  "Resolve before release",
		pattern:     `\b(FIXME|HACK|BUG)\b[:\s(]`,
	},
	{
		family:      FamilyNonProduction,
		name:        "do_not_merge",
		severity:    findings.SeverityHigh,
		category:    "marker",
		description: "explicit do-not-merge marker",
		suggestion:  "Remove the marker or keep the change off the release branch",
		pattern:     `(?i)\bdo[ _-]?not[ _-]?(merge|ship|release)\b|\bDNM\b`,
	},
	{
		family:      FamilyNonProduction,
		name:        "debug_print",
		severity:    findings.SeverityLow,
		category:    "debug",
		description: "debug print statement",
		suggestion:  "Route diagnostics through the project logger",
		pattern:     `\b(println!|dbg!|console\.(?:log|debug|trace)|fmt\.Println|print\s*\(\s*f?["'])`,
		languages: []classify.Language{
			classify.LangRust, classify.LangJS, classify.LangTS,
			classify.LangGo, classify.LangPython,
		},
	},
	{
		family:      FamilyNonProduction,
		name:        "debugger_statement",
		severity:    findings.SeverityMedium,
		category:    "debug",
		description: "debugger breakpoint left in source",
		suggestion:  "Remove breakpoints before committing",
		pattern:     `\b(debugger;|breakpoint\(\)|pdb\.set_trace\(\)|binding\.pry)`,
		languages: []classify.Language{
			classify.LangJS, classify.LangTS, classify.LangPython,
		},
	},
	{
		family:      FamilyNonProduction,
		name:        "unreleased_marker",
		severity:    findings.SeverityLow,
		category:    "marker",
		description: "unreleased/experimental marker",
		pattern:     `(?i)\b(unreleased|experimental|work[ -]in[ -]progress|\bWIP\b)\b`,
	},
}

// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package patterns

import (
	"github.com/kraklabs/codeguardian/pkg/classify"
	"github.com/kraklabs/codeguardian/pkg/findings"
)

// performanceRules are the line-shaped half of the performance analyzer. The
// structural half (nested loops, work inside loops) is a lexical pass in the
// analyzer that consults LoopSensitiveRules.
var performanceRules = []ruleSpec{
	{
		family:      FamilyPerformance,
		name:        "unwrap_use",
		severity:    findings.SeverityMedium,
		category:    "panic",
		description: "%s can panic at runtime",
		suggestion:  "Propagate the error with ? or handle the None/Err case",
		pattern:     `\.(unwrap|expect)\s*\(`,
		languages:   []classify.Language{classify.LangRust},
	},
	{
		family:      FamilyPerformance,
		name:        "vec_no_capacity",
		severity:    findings.SeverityLow,
		category:    "allocation",
		description: "growable collection created without capacity",
		suggestion:  "Use with_capacity / make(..., 0, n) when the size is known",
		pattern:     `\b(Vec::new\(\)|HashMap::new\(\)|make\(\[\][\w.]+, 0\))`,
		languages:   []classify.Language{classify.LangRust, classify.LangGo},
	},
	{
		family:      FamilyPerformance,
		name:        "sync_io_call",
		severity:    findings.SeverityLow,
		category:    "blocking-io",
		description: "blocking I/O call %s",
		suggestion:  "Keep blocking I/O off hot paths",
		pattern:     `\b(std::fs::(?:read|read_to_string|write)|fs\.readFileSync|fs\.writeFileSync|ioutil\.ReadAll)\b`,
		languages: []classify.Language{
			classify.LangRust, classify.LangJS, classify.LangTS, classify.LangGo,
		},
	},
	{
		family:      FamilyPerformance,
		name:        "inefficient_collect_count",
		severity:    findings.SeverityLow,
		category:    "collection",
		description: "collecting an iterator only to measure it",
		suggestion:  "Use .count() or .any() directly on the iterator",
		substring:   "collect",
		pattern:     `\.collect::<[^>]+>\(\)\s*\.\s*(len|is_empty|count)\(\)`,
		languages:   []classify.Language{classify.LangRust},
	},
}

// LoopSensitiveRules match operations that are acceptable at top level but
// expensive inside a loop. The performance analyzer applies them only when
// its lexical loop-nesting counter is positive. Grounded on per-language
// expensive-call tables; no AST is consulted.
var LoopSensitiveRules = []*Rule{
	mustRule(ruleSpec{
		family:      FamilyPerformance,
		name:        "regex_compile_in_loop",
		severity:    findings.SeverityHigh,
		category:    "loop",
		description: "regex compiled inside a loop",
		suggestion:  "Hoist the compiled regex out of the loop",
		pattern:     `\b(Regex::new|regexp\.(?:Compile|MustCompile)|re\.compile|new\s+RegExp|Pattern\.compile)\b`,
	}),
	mustRule(ruleSpec{
		family:      FamilyPerformance,
		name:        "string_concat_in_loop",
		severity:    findings.SeverityMedium,
		category:    "loop",
		description: "string concatenation inside a loop",
		suggestion:  "Accumulate in a builder/buffer and join once",
		pattern:     `\b[\w\]\.]+\s*(?:\+=\s*["'\w]|=\s*[\w\]\.]+\s*\+\s*["'])`,
	}),
	mustRule(ruleSpec{
		family:      FamilyPerformance,
		name:        "io_in_loop",
		severity:    findings.SeverityMedium,
		category:    "loop",
		description: "file or network I/O inside a loop",
		suggestion:  "Batch the I/O outside the loop",
		pattern:     `\b(std::fs::read|File::open|os\.(?:Open|ReadFile)|open\s*\(|fetch\s*\(|requests\.(?:get|post)|http\.(?:Get|Post))\b`,
	}),
	mustRule(ruleSpec{
		family:      FamilyPerformance,
		name:        "clone_in_loop",
		severity:    findings.SeverityLow,
		category:    "loop",
		description: "allocation-heavy clone inside a loop",
		suggestion:  "Borrow instead of cloning per iteration",
		substring:   ".clone()",
		pattern:     `\.clone\(\)`,
	}),
}

// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package patterns

import (
	"github.com/kraklabs/codeguardian/pkg/classify"
	"github.com/kraklabs/codeguardian/pkg/findings"
)

// securityRules detect dangerous calls, injection shapes and weak crypto.
// The security analyzer runs them on production paths only; hits on
// non-production paths are suppressed.
var securityRules = []ruleSpec{
	{
		family:      FamilySecurity,
		name:        "dangerous_eval",
		severity:    findings.SeverityCritical,
		category:    "code-execution",
		description: "call to %s evaluates dynamic code",
		suggestion:  "Avoid evaluating runtime-built strings; use data, not code",
		substring:   "eval",
		pattern:     `\b(eval)\s*\(`,
		languages:   []classify.Language{classify.LangJS, classify.LangTS, classify.LangPython, classify.LangShell},
	},
	{
		family:      FamilySecurity,
		name:        "dangerous_exec",
		severity:    findings.SeverityHigh,
		category:    "code-execution",
		description: "call to %s runs an external command",
		suggestion:  "Validate and allow-list any command arguments",
		pattern:     `\b(exec|system|shell_exec|popen|proc_open|passthru)\s*\(`,
	},
	{
		family:      FamilySecurity,
		name:        "process_command",
		severity:    findings.SeverityMedium,
		category:    "code-execution",
		description: "process spawn via %s",
		suggestion:  "Pass arguments as a list, never a shell-interpolated string",
		pattern:     `\b(Command::new|subprocess\.(?:run|call|Popen)|child_process\.(?:exec|spawn))\b`,
		languages:   []classify.Language{classify.LangRust, classify.LangPython, classify.LangJS, classify.LangTS},
	},
	{
		family:      FamilySecurity,
		name:        "sql_string_concat",
		severity:    findings.SeverityHigh,
		category:    "injection",
		description: "SQL query assembled by string concatenation",
		suggestion:  "Use parameterized queries or a prepared statement",
		pattern:     `(?i)["'][^"']*\b(?:select|insert|update|delete)\b[^"']*["']\s*(?:\+|\|\|)\s*\w`,
	},
	{
		family:      FamilySecurity,
		name:        "sql_format_query",
		severity:    findings.SeverityHigh,
		category:    "injection",
		description: "SQL query built with a format string",
		suggestion:  "Bind values with query placeholders instead of formatting",
		pattern:     `(?i)(?:f["']|\.format\s*\(|format!\s*\(\s*")[^"]*\b(?:select|insert|update|delete)\b[^"]*\{`,
		languages:   []classify.Language{classify.LangPython, classify.LangRust},
	},
	{
		family:      FamilySecurity,
		name:        "xss_sink",
		severity:    findings.SeverityHigh,
		category:    "xss",
		description: "assignment to DOM sink %s",
		suggestion:  "Sanitize input or assign via textContent",
		pattern:     `\b(innerHTML|outerHTML|document\.write|insertAdjacentHTML)\s*[(=]`,
		languages:   []classify.Language{classify.LangJS, classify.LangTS},
	},
	{
		family:      FamilySecurity,
		name:        "weak_crypto",
		severity:    findings.SeverityMedium,
		category:    "crypto",
		description: "use of weak cryptographic primitive %s",
		suggestion:  "Use SHA-256 or stronger; MD5/SHA-1/DES/RC4 are broken",
		pattern:     `(?i)\b(md5|sha-?1|\bdes\b|rc4|ecb)\b`,
	},
	{
		family:      FamilySecurity,
		name:        "unsafe_block",
		severity:    findings.SeverityMedium,
		category:    "memory-safety",
		description: "unsafe block in memory-safe language",
		suggestion:  "Document the invariant the unsafe block relies on",
		substring:   "unsafe",
		pattern:     `\bunsafe\s*\{`,
		languages:   []classify.Language{classify.LangRust, classify.LangGo},
	},
	{
		family:      FamilySecurity,
		name:        "insecure_transport",
		severity:    findings.SeverityLow,
		category:    "transport",
		description: "plain HTTP URL in source",
		suggestion:  "Prefer https:// endpoints",
		substring:   "http://",
		pattern:     `http://[a-zA-Z0-9][\w.-]*`,
	},
}

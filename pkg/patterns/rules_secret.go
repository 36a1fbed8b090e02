// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package patterns

import (
	"github.com/kraklabs/codeguardian/pkg/findings"
)

// secretRules match known credential shapes. The entropy gate for generic
// string literals lives in the secret analyzer; these patterns catch the
// prefixes that identify a credential regardless of entropy.
var secretRules = []ruleSpec{
	{
		family:      FamilySecret,
		name:        "aws_access_key",
		severity:    findings.SeverityCritical,
		category:    "credential",
		description: "AWS access key ID in source",
		suggestion:  "Rotate the key and load it from the environment",
		substring:   "AKIA",
		pattern:     `\bAKIA[0-9A-Z]{16}\b`,
	},
	{
		family:      FamilySecret,
		name:        "github_token",
		severity:    findings.SeverityCritical,
		category:    "credential",
		description: "GitHub token in source",
		suggestion:  "Revoke the token and use a secret store",
		pattern:     `\bgh[pousr]_[A-Za-z0-9]{36,255}\b`,
	},
	{
		family:      FamilySecret,
		name:        "slack_token",
		severity:    findings.SeverityCritical,
		category:    "credential",
		description: "Slack token in source",
		suggestion:  "Revoke the token and use a secret store",
		substring:   "xox",
		pattern:     `\bxox[baprs]-[A-Za-z0-9-]{10,}\b`,
	},
	{
		family:      FamilySecret,
		name:        "google_api_key",
		severity:    findings.SeverityCritical,
		category:    "credential",
		description: "Google API key in source",
		suggestion:  "Restrict and rotate the key",
		substring:   "AIza",
		pattern:     `\bAIza[0-9A-Za-z_-]{35}\b`,
	},
	{
		family:      FamilySecret,
		name:        "private_key_block",
		severity:    findings.SeverityCritical,
		category:    "credential",
		description: "private key material in source",
		suggestion:  "Remove the key and rotate it",
		substring:   "PRIVATE KEY",
		pattern:     `-----BEGIN (?:RSA |EC |OPENSSH |DSA |PGP )?PRIVATE KEY-----`,
	},
	{
		family:      FamilySecret,
		name:        "bearer_token",
		severity:    findings.SeverityHigh,
		category:    "credential",
		description: "bearer token literal in source",
		suggestion:  "Inject tokens at runtime, never commit them",
		substring:   "Bearer ",
		pattern:     `Bearer\s+[A-Za-z0-9_.=-]{20,}`,
	},
	{
		family:      FamilySecret,
		name:        "connection_string_password",
		severity:    findings.SeverityCritical,
		category:    "credential",
		description: "connection string with embedded password",
		suggestion:  "Keep credentials out of connection strings",
		substring:   "://",
		pattern:     `\b[a-z][a-z0-9+]*://[^:/\s]+:[^@\s]{4,}@`,
	},
}

// SecretAssignmentPattern matches `password = "..."`-shaped assignments. The
// secret analyzer uses the captured identifier for test-context suppression
// and the captured literal for the entropy gate, so it is exported separately
// from the table above.
var SecretAssignmentPattern = mustRule(ruleSpec{
	family:      FamilySecret,
	name:        "hardcoded_secret",
	severity:    findings.SeverityCritical,
	category:    "credential",
	description: "hardcoded secret assigned to %s",
	suggestion:  "Load the value from the environment or a secret store",
	pattern:     `(?i)\b([\w.]*(?:password|passwd|secret|token|api_?key|auth_?key|credential|private_?key)[\w]*)\s*[:=]+\s*["']([^"']{8,})["']`,
})

// GenericLiteralPattern extracts quoted string literals for the entropy gate.
var GenericLiteralPattern = mustRule(ruleSpec{
	family:      FamilySecret,
	name:        "high_entropy_literal",
	severity:    findings.SeverityHigh,
	category:    "credential",
	description: "high-entropy string literal",
	suggestion:  "If this is a credential, move it out of the source tree",
	pattern:     `["']([^"'\s]{20,})["']`,
})

func mustRule(s ruleSpec) *Rule {
	return compile([]ruleSpec{s})[0]
}

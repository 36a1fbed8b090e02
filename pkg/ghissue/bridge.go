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

// Package ghissue keeps one tracker issue per analysis group in sync with
// the latest report.
//
// The tracker is driven through the `gh` CLI as a subprocess; authentication
// (GH_TOKEN) is the CLI's business, never this package's. All operations are
// idempotent: replaying a sync against unchanged state performs no writes.
package ghissue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"os/exec"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kraklabs/codeguardian/pkg/findings"
)

// idsMarkerPrefix embeds the finding IDs machine-readably in the issue body
// so the next sync can diff added/resolved findings.
const idsMarkerPrefix = "<!-- codeguardian:ids "

// idsMarkerSuffix closes the marker comment.
const idsMarkerSuffix = " -->"

// defaultMaxAttempts bounds attempts per tracker call, the first call
// included.
const defaultMaxAttempts = 4

// Runner abstracts subprocess execution for tests.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs real subprocesses.
type ExecRunner struct{}

// Run executes the command and returns its stdout; stderr rides along in
// the error.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok && len(ee.Stderr) > 0 {
			return out, fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, strings.TrimSpace(string(ee.Stderr)))
		}
		return out, fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return out, nil
}

// Bridge syncs reports into tracker issues.
type Bridge struct {
	repo        string
	runner      Runner
	limiter     *rate.Limiter
	logger      *slog.Logger
	maxAttempts int
	baseBackoff time.Duration
}

// Options configures a Bridge.
type Options struct {
	// Repo is the owner/name target.
	Repo string

	// RateLimit is tracker requests per second (token bucket).
	RateLimit float64

	// Runner defaults to ExecRunner.
	Runner Runner

	Logger *slog.Logger

	// MaxAttempts bounds attempts per call, the first call included; zero
	// means the default.
	MaxAttempts int

	// BaseBackoff is the first retry delay; zero means one second.
	BaseBackoff time.Duration
}

// New builds a bridge.
func New(opts Options) (*Bridge, error) {
	if opts.Repo == "" || !strings.Contains(opts.Repo, "/") {
		return nil, fmt.Errorf("repo must be owner/name, got %q", opts.Repo)
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 1.0
	}
	if opts.Runner == nil {
		opts.Runner = ExecRunner{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = time.Second
	}
	return &Bridge{
		repo:        opts.Repo,
		runner:      opts.Runner,
		limiter:     rate.NewLimiter(rate.Limit(opts.RateLimit), 1),
		logger:      opts.Logger,
		maxAttempts: opts.MaxAttempts,
		baseBackoff: opts.BaseBackoff,
	}, nil
}

// SyncResult reports what a sync did.
type SyncResult struct {
	IssueNumber int  `json:"issue_number"`
	Created     bool `json:"created"`
	Updated     bool `json:"updated"`

	// DuplicatesCommented counts extra open issues that were pointed at the
	// canonical one.
	DuplicatesCommented int `json:"duplicates_commented"`

	Added    int `json:"added"`
	Resolved int `json:"resolved"`
}

// issueRef is the subset of `gh issue list --json` consumed here.
type issueRef struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

// Sync ensures exactly one open issue carries the group's report. Zero open
// issues creates one; one updates it; several update the lowest-numbered
// and comment on the rest.
func (b *Bridge) Sync(ctx context.Context, groupKey string, rep *findings.Report) (*SyncResult, error) {
	if groupKey == "" {
		return nil, fmt.Errorf("group key is required")
	}

	open, err := b.listOpen(ctx, groupKey)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}

	title := issueTitle(groupKey, rep)
	res := &SyncResult{}

	if len(open) == 0 {
		body := renderBody(groupKey, rep)
		out, err := b.run(ctx, "gh", "issue", "create",
			"--repo", b.repo,
			"--title", title,
			"--body", body,
			"--label", "codeguardian")
		if err != nil {
			return nil, fmt.Errorf("create issue: %w", err)
		}
		res.Created = true
		res.IssueNumber = parseIssueNumber(string(out))
		res.Added = len(rep.Findings)
		b.logger.Info("bridge.issue.created", "key", groupKey, "issue", res.IssueNumber)
		return res, nil
	}

	sort.Slice(open, func(i, j int) bool { return open[i].Number < open[j].Number })
	canonical := open[0]
	prevIDs := parseIDsMarker(canonical.Body)
	added, resolved := diffIDs(prevIDs, rep.Findings)
	res.IssueNumber = canonical.Number
	res.Added = added
	res.Resolved = resolved

	body := renderBody(groupKey, rep)
	if body != canonical.Body || canonical.Title != title {
		if _, err := b.run(ctx, "gh", "issue", "edit",
			fmt.Sprint(canonical.Number),
			"--repo", b.repo,
			"--title", title,
			"--body", body); err != nil {
			return nil, fmt.Errorf("update issue #%d: %w", canonical.Number, err)
		}
		res.Updated = true
		b.logger.Info("bridge.issue.updated", "key", groupKey, "issue", canonical.Number,
			"added", added, "resolved", resolved)
	} else {
		b.logger.Debug("bridge.issue.unchanged", "key", groupKey, "issue", canonical.Number)
	}

	for _, dup := range open[1:] {
		comment := fmt.Sprintf("Superseded by #%d, the canonical CodeGuardian issue for group `%s`.",
			canonical.Number, groupKey)
		if strings.Contains(dup.Body, comment) {
			continue
		}
		if _, err := b.run(ctx, "gh", "issue", "comment",
			fmt.Sprint(dup.Number),
			"--repo", b.repo,
			"--body", comment); err != nil {
			return nil, fmt.Errorf("comment on duplicate #%d: %w", dup.Number, err)
		}
		res.DuplicatesCommented++
	}
	return res, nil
}

// listOpen finds open issues whose title carries the group key.
func (b *Bridge) listOpen(ctx context.Context, groupKey string) ([]issueRef, error) {
	out, err := b.run(ctx, "gh", "issue", "list",
		"--repo", b.repo,
		"--state", "open",
		"--search", groupKey+" in:title",
		"--json", "number,title,body")
	if err != nil {
		return nil, err
	}
	var refs []issueRef
	if err := json.Unmarshal(out, &refs); err != nil {
		return nil, fmt.Errorf("parse issue list: %w", err)
	}
	// The search can be fuzzy; keep only exact key matches.
	var exact []issueRef
	for _, r := range refs {
		if strings.Contains(r.Title, "["+groupKey+"]") {
			exact = append(exact, r)
		}
	}
	return exact, nil
}

// run executes one tracker call under the rate limiter, retrying transient
// failures with exponential backoff and jitter.
func (b *Bridge) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < b.maxAttempts; attempt++ {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		out, err := b.runner.Run(ctx, name, args...)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !isTransient(err) {
			return nil, err
		}

		delay := b.baseBackoff << attempt
		delay += time.Duration(rand.Int63n(int64(delay)/2 + 1))
		b.logger.Warn("bridge.retry", "attempt", attempt+1, "delay", delay, "err", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("tracker call failed after %d attempts: %w", b.maxAttempts, lastErr)
}

// isTransient classifies tracker failures worth retrying.
func isTransient(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"rate limit", "429", "500", "502", "503", "504", "timeout", "connection"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func issueTitle(groupKey string, rep *findings.Report) string {
	return fmt.Sprintf("CodeGuardian: %d findings [%s]", len(rep.Findings), groupKey)
}

// renderBody produces the issue body: summary table, the finding list in
// canonical order and the machine-readable ID marker. The body is a pure
// function of the report, so re-syncing an unchanged report never edits
// the issue. The added/resolved diff is reported through SyncResult and
// logs only.
func renderBody(groupKey string, rep *findings.Report) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "CodeGuardian analysis for group `%s`.\n\n", groupKey)
	fmt.Fprintf(&sb, "| | |\n|---|---|\n")
	fmt.Fprintf(&sb, "| Files scanned | %d |\n", rep.Summary.FilesScanned)
	fmt.Fprintf(&sb, "| Findings | %d |\n", len(rep.Findings))
	fmt.Fprintf(&sb, "| Tool version | %s |\n\n", rep.ToolVersion)

	for _, f := range rep.Findings {
		fmt.Fprintf(&sb, "- **%s** [%s/%s] `%s:%d` — %s\n",
			strings.ToUpper(string(f.Severity)), f.Analyzer, f.Rule, f.File, f.Line, f.Message)
	}

	ids := make([]string, 0, len(rep.Findings))
	for _, f := range rep.Findings {
		ids = append(ids, f.ID)
	}
	sort.Strings(ids)
	fmt.Fprintf(&sb, "\n%s%s%s\n", idsMarkerPrefix, strings.Join(ids, ","), idsMarkerSuffix)
	return sb.String()
}

// parseIDsMarker recovers the previous sync's finding IDs from a body.
func parseIDsMarker(body string) map[string]bool {
	start := strings.LastIndex(body, idsMarkerPrefix)
	if start < 0 {
		return nil
	}
	rest := body[start+len(idsMarkerPrefix):]
	end := strings.Index(rest, idsMarkerSuffix)
	if end < 0 {
		return nil
	}
	ids := make(map[string]bool)
	for _, id := range strings.Split(rest[:end], ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids[id] = true
		}
	}
	return ids
}

// diffIDs counts findings added since the previous set and previous IDs no
// longer present.
func diffIDs(prev map[string]bool, cur []findings.Finding) (added, resolved int) {
	curSet := make(map[string]bool, len(cur))
	for _, f := range cur {
		curSet[f.ID] = true
		if !prev[f.ID] {
			added++
		}
	}
	for id := range prev {
		if !curSet[id] {
			resolved++
		}
	}
	return added, resolved
}

// parseIssueNumber extracts the issue number from `gh issue create` output,
// which ends with the new issue's URL.
func parseIssueNumber(out string) int {
	out = strings.TrimSpace(out)
	idx := strings.LastIndexByte(out, '/')
	if idx < 0 {
		return 0
	}
	n := 0
	fmt.Sscanf(out[idx+1:], "%d", &n)
	return n
}

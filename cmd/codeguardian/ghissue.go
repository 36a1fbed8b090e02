// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/kraklabs/codeguardian/internal/config"
	cgerrors "github.com/kraklabs/codeguardian/internal/errors"
	"github.com/kraklabs/codeguardian/internal/output"
	"github.com/kraklabs/codeguardian/internal/ui"
	"github.com/kraklabs/codeguardian/pkg/ghissue"
)

// runGHIssue executes 'gh-issue': create or update the tracker issue for a
// report. Authentication goes through the gh CLI (GH_TOKEN); this command
// never sees the token.
//
// Flags:
//   - --from: JSON report to publish (required)
//   - --repo: owner/name tracker repository (required)
//   - --key: group key; defaults to the short hash of HEAD
//   - --json: machine-readable result
//   - --timeout: total wall-clock budget for the sync
func runGHIssue(args []string, configPath string) {
	fs := pflag.NewFlagSet("gh-issue", pflag.ExitOnError)
	from := fs.String("from", "", "JSON report to publish (required)")
	repo := fs.String("repo", "", "Tracker repository as owner/name (required)")
	key := fs.String("key", "", "Group key (default: short hash of HEAD)")
	jsonOut := fs.Bool("json", false, "Machine-readable output")
	timeout := fs.Duration("timeout", 2*time.Minute, "Total wall-clock budget for the sync")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: codeguardian gh-issue --from <report.json> --repo <owner/name> [--key <group>]

Ensures one open tracker issue carries the report for the given group key.
Re-running with an unchanged report performs no tracker writes.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(cgerrors.ExitConfig)
	}

	if *from == "" || *repo == "" {
		cgerrors.FatalError(cgerrors.NewConfigError(
			"Missing --from or --repo",
			"the bridge needs a report file and a target repository",
			"Pass --from codeguardian-report.json --repo owner/name",
			nil,
		), *jsonOut)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		cgerrors.FatalError(cgerrors.NewConfigError(
			"Cannot load configuration", err.Error(), "Fix codeguardian.toml", err), *jsonOut)
	}

	if !cfg.GitHub.Enabled {
		slog.Warn("bridge.config.disabled", "note", "github.enabled is false; proceeding because gh-issue was invoked explicitly")
	}

	rep, err := loadReport(*from)
	if err != nil {
		cgerrors.FatalError(cgerrors.NewConfigError(
			"Cannot load report", err.Error(), "Re-run: codeguardian check", err), *jsonOut)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	groupKey := *key
	if groupKey == "" {
		groupKey, err = ghissue.GroupKeyFromGit(ctx, nil, ".")
		if err != nil {
			cgerrors.FatalError(cgerrors.NewConfigError(
				"Cannot derive group key",
				"no --key given and HEAD could not be resolved",
				"Pass --key explicitly or run inside a git repository",
				err,
			), *jsonOut)
		}
	}
	if err := ghissue.ValidateGroupKey(groupKey); err != nil {
		cgerrors.FatalError(cgerrors.NewConfigError(
			"Invalid group key", err.Error(), "Use a short commit hash or similar", err), *jsonOut)
	}

	bridge, err := ghissue.New(ghissue.Options{
		Repo:      *repo,
		RateLimit: cfg.GitHub.RateLimit,
		Logger:    slog.Default(),
	})
	if err != nil {
		cgerrors.FatalError(cgerrors.NewConfigError(
			"Cannot configure issue bridge", err.Error(), "Check the --repo value", err), *jsonOut)
	}

	res, err := bridge.Sync(ctx, groupKey, rep)
	if err != nil {
		// The bridge failing must not look like an analysis failure; the
		// report on disk is still valid.
		cgerrors.FatalError(cgerrors.NewInternalError("Tracker sync failed", err), *jsonOut)
	}

	if *jsonOut {
		_ = output.JSON(res)
		return
	}
	switch {
	case res.Created:
		ui.Successf("Created issue #%d for group %s", res.IssueNumber, groupKey)
	case res.Updated:
		ui.Successf("Updated issue #%d (%d added, %d resolved)", res.IssueNumber, res.Added, res.Resolved)
	default:
		ui.Infof("Issue #%d already up to date", res.IssueNumber)
	}
	if res.DuplicatesCommented > 0 {
		ui.Warningf("Pointed %d duplicate issue(s) at #%d", res.DuplicatesCommented, res.IssueNumber)
	}
}

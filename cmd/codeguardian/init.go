// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/kraklabs/codeguardian/internal/bootstrap"
	cgerrors "github.com/kraklabs/codeguardian/internal/errors"
	"github.com/kraklabs/codeguardian/internal/ui"
)

// runInit executes 'init': write a default codeguardian.toml and create the
// cache directory.
//
// Flags:
//   - --template: security, ci or minimal (default: minimal)
//   - --dir: target directory (default: .)
func runInit(args []string) {
	fs := pflag.NewFlagSet("init", pflag.ExitOnError)
	template := fs.String("template", bootstrap.TemplateMinimal, "Config template: security, ci or minimal")
	dir := fs.String("dir", ".", "Directory to initialize")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: codeguardian init [--template=security|ci|minimal] [--dir <path>]

Writes a commented codeguardian.toml and creates .codeguardian/cache.
Does nothing when a config file already exists.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(cgerrors.ExitConfig)
	}

	created, err := bootstrap.InitWorkspace(*dir, *template, nil)
	if err != nil {
		cgerrors.FatalError(cgerrors.NewConfigError(
			"Cannot initialize workspace", err.Error(),
			"Check the --template value and directory permissions", err), false)
	}

	if created {
		ui.Successf("Wrote codeguardian.toml (%s template)", *template)
	} else {
		ui.Info("codeguardian.toml already exists; nothing to do")
	}
}

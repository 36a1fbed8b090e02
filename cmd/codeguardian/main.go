// Copyright 2025 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Package main implements the CodeGuardian CLI, a security-oriented static
// analyzer for source trees.
//
// Usage:
//
//	codeguardian check [paths...]       Analyze paths and write a report
//	codeguardian turbo [paths...]       Check with aggressive parallelism
//	codeguardian report --from r.json   Render an existing JSON report
//	codeguardian init [--template=...]  Write a default configuration
//	codeguardian gh-issue --from r.json Sync a report into a tracker issue
package main

import (
	"flag"
	"fmt"
	"os"
)

// Version information (set via ldflags during build)
var (
	version = "dev"     // Version string
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// GlobalFlags are shared by every subcommand.
type GlobalFlags struct {
	ConfigPath string
	Quiet      bool
	NoColor    bool
	JSON       bool
}

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version and exit")
		configPath  = flag.String("config", "", "Path to codeguardian.toml (default: ./codeguardian.toml or CODEGUARDIAN_CONFIG)")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `CodeGuardian - security-oriented static analysis

Usage:
  codeguardian <command> [options] [paths...]

Commands:
  check         Analyze the given paths (default: .) and write a report
  turbo         check with aggressive parallelism presets
  report        Render an existing JSON report as Markdown or HTML
  init          Write a default codeguardian.toml
  gh-issue      Create or update the tracker issue for a report
  version       Show version information

Global Options:
  --config      Path to codeguardian.toml
  --version     Show version and exit

Exit Codes:
  0  no findings at or above fail_threshold
  1  findings at or above fail_threshold
  2  configuration or usage error
  3  internal error

Environment Variables:
  CODEGUARDIAN_CONFIG     Config file path
  CODEGUARDIAN_CACHE_DIR  Cache directory override
  CODEGUARDIAN_WORKERS    Worker ceiling override
  CODEGUARDIAN_ML_MODEL   Frozen relevance model path
  GH_TOKEN                Tracker token, consumed by the gh CLI

Examples:
  codeguardian check .
  codeguardian check --json src/ crates/
  codeguardian turbo .
  codeguardian report --from codeguardian-report.json --to md
  codeguardian gh-issue --from codeguardian-report.json --repo acme/demo --key abcd123

`)
	}

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "check":
		runCheck(cmdArgs, *configPath, checkPreset{})
	case "turbo":
		runTurbo(cmdArgs, *configPath)
	case "report":
		runReport(cmdArgs)
	case "init":
		runInit(cmdArgs)
	case "gh-issue":
		runGHIssue(cmdArgs, *configPath)
	case "version":
		printVersion()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(2)
	}
}

func printVersion() {
	fmt.Printf("codeguardian version %s\n", version)
	fmt.Printf("commit: %s\n", commit)
	fmt.Printf("built: %s\n", date)
}

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

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/kraklabs/codeguardian/internal/config"
	cgerrors "github.com/kraklabs/codeguardian/internal/errors"
	"github.com/kraklabs/codeguardian/internal/output"
	"github.com/kraklabs/codeguardian/internal/ui"
	"github.com/kraklabs/codeguardian/pkg/cache"
	"github.com/kraklabs/codeguardian/pkg/engine"
	"github.com/kraklabs/codeguardian/pkg/findings"
	"github.com/kraklabs/codeguardian/pkg/mlfilter"
	"github.com/kraklabs/codeguardian/pkg/report"
)

// checkPreset lets `turbo` override parallelism without its own flag
// surface.
type checkPreset struct {
	MaxWorkers int
	BatchSize  int
}

// checkResult is the --json output of the check command.
type checkResult struct {
	Findings     int            `json:"findings"`
	FilesScanned int            `json:"files_scanned"`
	DurationMS   int64          `json:"duration_ms"`
	BySeverity   map[string]int `json:"by_severity"`
	ReportPath   string         `json:"report_path"`
	ExitCode     int            `json:"exit_code"`
}

// runCheck executes the 'check' CLI command: analyze the given paths, write
// the JSON (and optionally Markdown) report and exit per the fail
// threshold.
//
// Flags:
//   - --out: report output path (default: codeguardian-report.json)
//   - --md: also write a Markdown rendering to this path
//   - --json: machine-readable result on stdout
//   - --quiet: no progress, no summary
//   - --no-color: disable colored output
//   - --debug: debug logging
//   - --no-cache: skip the finding cache entirely
//   - --timeout: soft per-file analysis budget
//   - --metrics-addr: HTTP address for Prometheus metrics (default: disabled)
func runCheck(args []string, configPath string, preset checkPreset) {
	fs := pflag.NewFlagSet("check", pflag.ExitOnError)
	outPath := fs.String("out", "codeguardian-report.json", "Report output path")
	mdPath := fs.String("md", "", "Also write a Markdown report to this path")
	jsonOut := fs.Bool("json", false, "Machine-readable output")
	quiet := fs.BoolP("quiet", "q", false, "Suppress progress and summary")
	noColor := fs.Bool("no-color", false, "Disable colored output")
	debug := fs.Bool("debug", false, "Enable debug logging")
	noCache := fs.Bool("no-cache", false, "Disable the finding cache")
	fileTimeout := fs.Duration("timeout", engine.DefaultFileTimeout, "Soft per-file analysis budget")
	metricsAddr := fs.String("metrics-addr", "", "HTTP listen address for Prometheus metrics (empty to disable)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: codeguardian check [options] [paths...]

Analyzes the given paths (default: current directory) and writes a report.
Exits 1 when findings reach the configured fail_threshold.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(cgerrors.ExitConfig)
	}

	globals := GlobalFlags{ConfigPath: configPath, Quiet: *quiet, NoColor: *noColor, JSON: *jsonOut}
	ui.InitColors(*noColor)

	roots := fs.Args()
	if len(roots) == 0 {
		roots = []string{"."}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		cgerrors.FatalError(cgerrors.NewConfigError(
			"Cannot load configuration",
			err.Error(),
			"Fix codeguardian.toml or run: codeguardian init",
			err,
		), *jsonOut)
	}
	if preset.MaxWorkers > 0 {
		cfg.Parallelism.MaxWorkers = preset.MaxWorkers
	}
	if preset.BatchSize > 0 {
		cfg.Parallelism.BatchSize = preset.BatchSize
	}

	logLevel := slog.LevelWarn
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			srv := &http.Server{Addr: *metricsAddr, Handler: mux}
			logger.Info("metrics.http.start", "addr", *metricsAddr, "path", "/metrics")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("metrics.http.error", "err", err)
			}
		}()
	}

	// Graceful shutdown on SIGINT/SIGTERM; the run stops at the next batch
	// boundary.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Warn("run.interrupt")
		cancel()
	}()

	var store *cache.Store
	if !*noCache {
		store, err = cache.Open(cache.Options{
			Dir:         cfg.Cache.Dir,
			ToolVersion: version,
			MaxEntries:  cfg.Cache.MaxEntries,
			MaxAge:      time.Duration(cfg.Cache.MaxAgeDays) * 24 * time.Hour,
			Logger:      logger,
		})
		if err != nil {
			logger.Warn("cache.open.failed", "dir", cfg.Cache.Dir, "err", err)
			store = nil // degrade to full recomputation
		}
	}

	var filter *mlfilter.Filter
	if cfg.ML.Enabled {
		filter = mlfilter.New(cfg.ML.ModelPath, cfg.ML.Threshold, logger)
	}

	bar := NewSpinner(NewProgressConfig(globals), "analyzing")
	eng := engine.New(cfg, engine.Options{
		Logger:      logger,
		ToolVersion: version,
		Store:       store,
		Filter:      filter,
		FileTimeout: *fileTimeout,
		OnFileProcessed: func() {
			if bar != nil {
				_ = bar.Add(1)
			}
		},
	})

	rep, err := eng.Run(ctx, roots)
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		if ctx.Err() != nil {
			cgerrors.FatalError(cgerrors.NewConfigError(
				"Analysis interrupted", "the run was cancelled before completing", "re-run the check", err), *jsonOut)
		}
		cgerrors.FatalError(cgerrors.NewInternalError("Analysis failed", err), *jsonOut)
	}

	// os.Exit below skips defers; flush the cache index explicitly.
	if store != nil {
		if err := store.Close(); err != nil {
			logger.Warn("cache.close.failed", "err", err)
		}
	}

	if err := report.WriteJSON(*outPath, rep); err != nil {
		cgerrors.FatalError(cgerrors.NewInternalError("Cannot write report", err), *jsonOut)
	}
	if *mdPath != "" {
		if err := report.WriteMarkdown(*mdPath, rep); err != nil {
			cgerrors.FatalError(cgerrors.NewInternalError("Cannot write Markdown report", err), *jsonOut)
		}
	}

	exitCode := cgerrors.ExitClean
	if findings.CountAtLeast(rep.Findings, cfg.FailSeverity()) > 0 {
		exitCode = cgerrors.ExitFindings
	}

	if *jsonOut {
		_ = output.JSON(&checkResult{
			Findings:     len(rep.Findings),
			FilesScanned: rep.Summary.FilesScanned,
			DurationMS:   rep.Summary.DurationMS,
			BySeverity:   rep.Summary.BySeverity,
			ReportPath:   *outPath,
			ExitCode:     exitCode,
		})
	} else if !*quiet {
		printCheckSummary(rep, *outPath)
	}
	os.Exit(exitCode)
}

// printCheckSummary renders the human-readable run summary.
func printCheckSummary(rep *findings.Report, outPath string) {
	ui.Header("CodeGuardian")
	fmt.Printf("%s %s\n", ui.Label("Files scanned:"), ui.CountText(rep.Summary.FilesScanned))
	fmt.Printf("%s %s in %d ms\n", ui.Label("Findings:"), ui.CountText(len(rep.Findings)), rep.Summary.DurationMS)

	for _, sev := range []findings.Severity{
		findings.SeverityCritical, findings.SeverityHigh, findings.SeverityMedium,
		findings.SeverityLow, findings.SeverityInfo,
	} {
		if n := rep.Summary.BySeverity[string(sev)]; n > 0 {
			fmt.Printf("  %s: %d\n", ui.SeverityText(sev), n)
		}
	}
	if len(rep.Summary.Errors) > 0 {
		ui.Warningf("%d files had recoverable errors", sumValues(rep.Summary.Errors))
	}

	if len(rep.Findings) == 0 {
		ui.Success("No findings")
	}
	fmt.Printf("%s %s\n", ui.Label("Report:"), ui.DimText(outPath))
}

func sumValues(m map[string]int) int {
	total := 0
	for _, n := range m {
		total += n
	}
	return total
}

// runTurbo executes 'turbo': check with aggressive parallelism presets.
func runTurbo(args []string, configPath string) {
	runCheck(args, configPath, checkPreset{
		MaxWorkers: runtime.NumCPU(),
		BatchSize:  128,
	})
}

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

// Package engine orchestrates a full analysis run: tree walk, batching,
// parallel per-file analysis with cache memoization, deterministic merge,
// relevance filtering and report assembly.
//
// Parallelism never leaks into the output: workers race freely, then the
// merge step imposes the canonical order (severity desc, path asc, line
// asc, ID asc), so two runs over identical inputs produce identical
// reports.
package engine

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kraklabs/codeguardian/internal/config"
	"github.com/kraklabs/codeguardian/pkg/analyzers"
	"github.com/kraklabs/codeguardian/pkg/cache"
	"github.com/kraklabs/codeguardian/pkg/classify"
	"github.com/kraklabs/codeguardian/pkg/findings"
	"github.com/kraklabs/codeguardian/pkg/fingerprint"
	"github.com/kraklabs/codeguardian/pkg/mlfilter"
	"github.com/kraklabs/codeguardian/pkg/streaming"
)

// DefaultFileTimeout is the soft per-file analysis budget.
const DefaultFileTimeout = 30 * time.Second

// maxLineLength is the longest line handed to analyzers before truncation.
const maxLineLength = streaming.DefaultMaxLine

// Engine runs the analysis pipeline. The matcher registry, model and
// configuration are immutable once the engine is built; the cache store is
// the only shared mutable resource.
type Engine struct {
	cfg          *config.Config
	logger       *slog.Logger
	store        *cache.Store
	filter       *mlfilter.Filter
	classifier   *classify.Classifier
	toolVersion  string
	configDigest string
	fileTimeout  time.Duration
	opts         analyzers.Options
	onFile       func()
}

// Options configures an Engine beyond its Config.
type Options struct {
	Logger      *slog.Logger
	ToolVersion string

	// Store is the finding cache; nil disables memoization.
	Store *cache.Store

	// Filter is the relevance filter; nil means identity.
	Filter *mlfilter.Filter

	// FileTimeout overrides the soft per-file budget.
	FileTimeout time.Duration

	// OnFileProcessed, when set, is called once per completed file. It must
	// be safe for concurrent use; the CLI wires its progress bar here.
	OnFileProcessed func()
}

// New builds an engine from validated configuration.
func New(cfg *config.Config, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.FileTimeout
	if timeout <= 0 {
		timeout = DefaultFileTimeout
	}

	aOpts := analyzers.Options{
		EntropyMin:    cfg.Analyzers.EntropyMin,
		ComplexityMax: cfg.Analyzers.ComplexityMax,
		LongLine:      cfg.Analyzers.LongLine,
		LongFunction:  cfg.Analyzers.LongFunction,
		TooManyParams: cfg.Analyzers.TooManyParams,
		DuplicateMin:  cfg.Analyzers.DuplicateMin,
		BadPins:       cfg.Analyzers.BadPins,
		Disabled:      cfg.DisabledSet(),
	}

	return &Engine{
		cfg:          cfg,
		logger:       logger,
		store:        opts.Store,
		filter:       opts.Filter,
		classifier:   classify.New(cfg.Exclude, cfg.StreamThreshold),
		toolVersion:  opts.ToolVersion,
		configDigest: fingerprint.ConfigDigest(cfg.AnalysisFingerprint()),
		fileTimeout:  timeout,
		opts:         aOpts,
		onFile:       opts.OnFileProcessed,
	}
}

// ConfigDigest exposes the digest of the analysis-affecting configuration.
func (e *Engine) ConfigDigest() string {
	return e.configDigest
}

// fileResult is one file's contribution to the run.
type fileResult struct {
	findings []findings.Finding
	errKind  string // "", "io", "timeout", "cache_corrupt"
}

// Run walks the roots and produces the report. Per-file failures never
// abort the run; they are counted in summary.errors. Cancellation is
// honored at batch boundaries: in-flight files finish, pending batches are
// dropped, and the error is returned with no report.
func (e *Engine) Run(ctx context.Context, roots []string) (*findings.Report, error) {
	start := time.Now()
	e.logger.Info("run.start", "roots", roots, "config_digest", e.configDigest[:12])

	walkStart := time.Now()
	var files []analyzers.File
	for _, root := range roots {
		res, err := e.walkTree(root)
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", root, err)
		}
		files = append(files, res.files...)
		if len(res.skipReasons) > 0 {
			e.logger.Debug("walk.skips", "root", root, "reasons", res.skipReasons)
		}
	}
	observeWalk(time.Since(walkStart).Seconds())

	batches := makeBatches(files, e.cfg.Parallelism.BatchSize)
	adaptive := newAdaptiveParallelism(e.cfg.Parallelism.MaxWorkers)
	e.logger.Info("run.plan", "files", len(files), "batches", len(batches), "workers", adaptive.workers())

	var (
		mu        sync.Mutex
		all       []findings.Finding
		errCounts = make(map[string]int)
	)

	for _, b := range batches {
		if err := ctx.Err(); err != nil {
			e.logger.Warn("run.cancelled", "pending_batches", true)
			return nil, err
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(adaptive.workers())
		for _, f := range b.files {
			f := f
			g.Go(func() error {
				res := e.processFile(gctx, f)
				mu.Lock()
				all = append(all, res.findings...)
				if res.errKind != "" {
					errCounts[res.errKind]++
				}
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			e.logger.Warn("run.cancelled", "pending_batches", false)
			return nil, err
		}
		adaptive.adjust()
	}

	// Deterministic merge.
	findings.SortCanonical(all)
	all = findings.Dedupe(all)
	recordFindings(len(all))

	if e.filter != nil && e.filter.Enabled() {
		before := len(all)
		all = e.filter.Apply(all)
		recordFiltered(before - len(all))
	}

	if e.store != nil {
		e.store.GC(time.Now())
		st := e.store.Stats()
		if st.Corrupt > 0 {
			errCounts["cache_corrupt"] += int(st.Corrupt)
		}
		e.logger.Debug("cache.stats", "hits", st.Hits, "misses", st.Misses, "evictions", st.Evictions)
	}

	duration := time.Since(start)
	observeTotal(duration.Seconds())

	summary := findings.NewSummary(all, len(files), duration)
	if len(errCounts) > 0 {
		summary.Errors = errCounts
	}

	report := &findings.Report{
		SchemaVersion: findings.SchemaVersion,
		ToolVersion:   e.toolVersion,
		ConfigDigest:  e.configDigest,
		GeneratedAt:   time.Now().UTC(),
		Summary:       summary,
		Findings:      all,
	}
	e.logger.Info("run.done", "files", len(files), "findings", len(all), "duration_ms", duration.Milliseconds())
	return report, nil
}

// processFile takes one file through digest, cache lookup, analysis and
// cache write. All failures degrade to an info finding plus an error count.
func (e *Engine) processFile(ctx context.Context, f analyzers.File) fileResult {
	analyzeStart := time.Now()
	defer func() {
		observeAnalyze(time.Since(analyzeStart).Seconds())
		if e.onFile != nil {
			e.onFile()
		}
	}()

	digest, err := fingerprint.FileDigest(f.AbsPath)
	if err != nil {
		e.logger.Warn("file.digest.error", "path", f.Path, "err", err)
		recordFailed()
		return fileResult{
			findings: []findings.Finding{failureFinding(f, "analysis_failed", "file could not be read")},
			errKind:  "io",
		}
	}

	key := cache.Key{
		FileDigest:    digest,
		ConfigDigest:  e.configDigest,
		SchemaVersion: findings.SchemaVersion,
	}
	if e.store != nil {
		if cached, ok := e.store.Get(key); ok {
			recordCacheHit()
			e.logger.Debug("cache.hit", "path", f.Path)
			return fileResult{findings: cached}
		}
		recordCacheMiss()
	}

	fs, errKind := e.analyzeFile(ctx, f)
	if errKind != "" {
		recordFailed()
		return fileResult{findings: fs, errKind: errKind}
	}

	recordAnalyzed()
	if e.store != nil {
		e.store.Put(key, fs)
	}
	return fileResult{findings: fs}
}

// analyzeFile runs the applicable analyzers sequentially over the file's
// content, honoring the soft timeout and context cancellation between
// analyzers.
func (e *Engine) analyzeFile(ctx context.Context, f analyzers.File) ([]findings.Finding, string) {
	var out []findings.Finding

	var content *analyzers.Content
	if f.Stream {
		recordStreamed()
		out = append(out, failureFinding(f, "large_file",
			fmt.Sprintf("large file (%d bytes) analyzed in streaming mode", f.Size)))

		// Probe once for binary content before fanning out analyzers.
		r, err := streaming.Open(f.AbsPath, maxLineLength)
		if err == streaming.ErrBinary {
			return []findings.Finding{failureFinding(f, "binary_file", "binary content; skipped")}, ""
		}
		if err != nil {
			return []findings.Finding{failureFinding(f, "analysis_failed", "file could not be read")}, "io"
		}
		r.Close()
		content = analyzers.NewStreamedContent(f.AbsPath, maxLineLength)
	} else {
		data, err := os.ReadFile(f.AbsPath)
		if err != nil {
			return []findings.Finding{failureFinding(f, "analysis_failed", "file could not be read")}, "io"
		}
		if isBinary(data) {
			return []findings.Finding{failureFinding(f, "binary_file", "binary content; skipped")}, ""
		}
		content = analyzers.NewContent(data)
	}

	deadline := time.Now().Add(e.fileTimeout)
	// Select sees the stream flag: analyzers that cannot (or should not)
	// work from a line reader decline streamed files, so a large generated
	// JSON runs zero analyzers and keeps only the large-file finding.
	for _, a := range analyzers.Select(f, e.opts) {
		if err := ctx.Err(); err != nil {
			// Partial findings are not emitted for cancelled files; the run
			// itself stops at the batch boundary.
			return nil, ""
		}
		if time.Now().After(deadline) {
			e.logger.Warn("file.timeout", "path", f.Path, "budget", e.fileTimeout)
			return []findings.Finding{failureFinding(f, "analysis_timeout",
				fmt.Sprintf("analysis exceeded the %s budget", e.fileTimeout))}, "timeout"
		}

		fs, err := a.Analyze(f, content, e.opts)
		if err != nil {
			e.logger.Warn("analyzer.error", "analyzer", a.Name(), "path", f.Path, "err", err)
			return []findings.Finding{failureFinding(f, "analysis_failed",
				fmt.Sprintf("%s analyzer failed", a.Name()))}, "io"
		}
		out = append(out, fs...)
	}

	if n := content.TruncatedLines(); n > 0 {
		out = append(out, failureFinding(f, "long_lines_truncated",
			fmt.Sprintf("%d lines exceeded the %d-byte limit and were truncated", n, maxLineLength)))
	}
	return out, ""
}

// failureFinding builds the synthetic info findings the orchestrator emits
// for skipped, failed or oversized files.
func failureFinding(f analyzers.File, rule, msg string) findings.Finding {
	msg = fingerprint.NormalizeMessage(msg)
	return findings.Finding{
		ID:       fingerprint.FindingID(rule, f.Path, 0, msg),
		Analyzer: "orchestrator",
		Rule:     rule,
		Severity: findings.SeverityInfo,
		File:     f.Path,
		Line:     0,
		Message:  msg,
	}
}

// isBinary mirrors the streaming reader's probe for in-memory content.
func isBinary(data []byte) bool {
	probe := data
	if len(probe) > 8*1024 {
		probe = probe[:8*1024]
	}
	return bytes.IndexByte(probe, 0) >= 0
}

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

package engine

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsEngine holds Prometheus metrics for the analysis engine.
type metricsEngine struct {
	once sync.Once

	filesWalked   prometheus.Counter
	filesSkipped  prometheus.Counter
	filesAnalyzed prometheus.Counter
	filesStreamed prometheus.Counter
	filesFailed   prometheus.Counter

	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter

	findingsEmitted  prometheus.Counter
	findingsFiltered prometheus.Counter

	workerAdjust prometheus.Counter

	walkDuration    prometheus.Histogram
	analyzeDuration prometheus.Histogram
	totalDuration   prometheus.Histogram
}

var engMetrics metricsEngine

func (m *metricsEngine) init() {
	m.once.Do(func() {
		m.filesWalked = prometheus.NewCounter(prometheus.CounterOpts{Name: "codeguardian_files_walked_total", Help: "Files discovered during the tree walk"})
		m.filesSkipped = prometheus.NewCounter(prometheus.CounterOpts{Name: "codeguardian_files_skipped_total", Help: "Files skipped by exclude or include globs"})
		m.filesAnalyzed = prometheus.NewCounter(prometheus.CounterOpts{Name: "codeguardian_files_analyzed_total", Help: "Files fully analyzed"})
		m.filesStreamed = prometheus.NewCounter(prometheus.CounterOpts{Name: "codeguardian_files_streamed_total", Help: "Files analyzed through the streaming reader"})
		m.filesFailed = prometheus.NewCounter(prometheus.CounterOpts{Name: "codeguardian_files_failed_total", Help: "Files whose analysis failed or timed out"})

		m.cacheHits = prometheus.NewCounter(prometheus.CounterOpts{Name: "codeguardian_cache_hits_total", Help: "Finding cache hits"})
		m.cacheMisses = prometheus.NewCounter(prometheus.CounterOpts{Name: "codeguardian_cache_misses_total", Help: "Finding cache misses"})

		m.findingsEmitted = prometheus.NewCounter(prometheus.CounterOpts{Name: "codeguardian_findings_total", Help: "Findings emitted before the relevance filter"})
		m.findingsFiltered = prometheus.NewCounter(prometheus.CounterOpts{Name: "codeguardian_findings_filtered_total", Help: "Findings dropped by the relevance filter"})

		m.workerAdjust = prometheus.NewCounter(prometheus.CounterOpts{Name: "codeguardian_worker_adjustments_total", Help: "Adaptive worker-count adjustments between batches"})

		buckets := []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}
		m.walkDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "codeguardian_walk_seconds", Help: "Tree walk duration", Buckets: buckets})
		m.analyzeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "codeguardian_analyze_seconds", Help: "Per-file analysis duration", Buckets: buckets})
		m.totalDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "codeguardian_run_seconds", Help: "Whole-run duration", Buckets: buckets})

		prometheus.MustRegister(
			m.filesWalked, m.filesSkipped, m.filesAnalyzed, m.filesStreamed, m.filesFailed,
			m.cacheHits, m.cacheMisses,
			m.findingsEmitted, m.findingsFiltered,
			m.workerAdjust,
			m.walkDuration, m.analyzeDuration, m.totalDuration,
		)
	})
}

// record helpers - used by the orchestrator.
func recordWalked(n int)         { engMetrics.init(); engMetrics.filesWalked.Add(float64(n)) }
func recordSkipped()             { engMetrics.init(); engMetrics.filesSkipped.Inc() }
func recordAnalyzed()            { engMetrics.init(); engMetrics.filesAnalyzed.Inc() }
func recordStreamed()            { engMetrics.init(); engMetrics.filesStreamed.Inc() }
func recordFailed()              { engMetrics.init(); engMetrics.filesFailed.Inc() }
func recordCacheHit()            { engMetrics.init(); engMetrics.cacheHits.Inc() }
func recordCacheMiss()           { engMetrics.init(); engMetrics.cacheMisses.Inc() }
func recordFindings(n int)       { engMetrics.init(); engMetrics.findingsEmitted.Add(float64(n)) }
func recordFiltered(n int)       { engMetrics.init(); engMetrics.findingsFiltered.Add(float64(n)) }
func recordWorkerAdjust()        { engMetrics.init(); engMetrics.workerAdjust.Inc() }
func observeWalk(sec float64)    { engMetrics.init(); engMetrics.walkDuration.Observe(sec) }
func observeAnalyze(sec float64) { engMetrics.init(); engMetrics.analyzeDuration.Observe(sec) }
func observeTotal(sec float64)   { engMetrics.init(); engMetrics.totalDuration.Observe(sec) }

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

// Package cache memoizes per-file findings across runs.
//
// Entries are content-addressed: the key is derived from the file's content
// digest, the configuration digest and the schema version, so any change to
// the file or to analysis-affecting configuration misses cleanly. The store
// is a correctness accelerator, never a source of truth: every failure path
// degrades to recomputation.
//
// Layout on disk: <dir>/<first two hex>/<remaining hex>.json per entry plus
// an index.json with last-use times for eviction.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kraklabs/codeguardian/pkg/findings"
)

// DefaultMaxEntries bounds the store before LRU eviction kicks in.
const DefaultMaxEntries = 10000

// DefaultMaxAge evicts entries older than this regardless of use.
const DefaultMaxAge = 30 * 24 * time.Hour

// Key addresses one cache entry.
type Key struct {
	FileDigest    string
	ConfigDigest  string
	SchemaVersion string
}

// hexKey collapses the key triple into the on-disk address.
func (k Key) hexKey() string {
	sum := sha256.Sum256([]byte(k.FileDigest + "|" + k.ConfigDigest + "|" + k.SchemaVersion))
	return hex.EncodeToString(sum[:])
}

// Entry is the stored value.
type Entry struct {
	SchemaVersion string             `json:"schema_version"`
	ToolVersion   string             `json:"tool_version"`
	FileDigest    string             `json:"file_digest"`
	ConfigDigest  string             `json:"config_digest"`
	Findings      []findings.Finding `json:"findings"`
	CachedAt      time.Time          `json:"cached_at"`
}

// Stats carries the store's counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Corrupt   int64
}

// indexEntry records last use for LRU decisions.
type indexEntry struct {
	LastUsed int64 `json:"last_used"`
	Created  int64 `json:"created"`
}

// Store is the sharded on-disk cache. Reads are lock-free against the
// filesystem snapshot; writers serialize per shard keyed by the first byte
// of the entry address.
type Store struct {
	dir         string
	toolVersion string
	maxEntries  int
	maxAge      time.Duration
	logger      *slog.Logger

	shards [256]sync.Mutex

	indexMu sync.Mutex
	index   map[string]indexEntry

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
	corrupt   atomic.Int64
}

// Options configures a Store.
type Options struct {
	Dir         string
	ToolVersion string
	MaxEntries  int
	MaxAge      time.Duration
	Logger      *slog.Logger
}

// Open loads (or initializes) the cache directory. A missing or unreadable
// index starts empty; the cache never fails open.
func Open(opts Options) (*Store, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("cache dir is required")
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = DefaultMaxAge
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		dir:         opts.Dir,
		toolVersion: opts.ToolVersion,
		maxEntries:  opts.MaxEntries,
		maxAge:      opts.MaxAge,
		logger:      logger,
		index:       make(map[string]indexEntry),
	}
	s.loadIndex()
	return s, nil
}

// Get returns the cached findings for key, or ok=false on any miss,
// mismatch or corruption. Mismatched entries are scheduled for eviction by
// deleting them in place.
func (s *Store) Get(key Key) ([]findings.Finding, bool) {
	hk := key.hexKey()
	path := s.entryPath(hk)

	data, err := os.ReadFile(path)
	if err != nil {
		s.misses.Add(1)
		return nil, false
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		s.corrupt.Add(1)
		s.remove(hk)
		s.logger.Warn("cache.entry.corrupt", "key", hk[:12], "err", err)
		return nil, false
	}

	if e.SchemaVersion != key.SchemaVersion || e.ToolVersion != s.toolVersion ||
		e.FileDigest != key.FileDigest || e.ConfigDigest != key.ConfigDigest {
		s.misses.Add(1)
		s.remove(hk)
		return nil, false
	}

	s.hits.Add(1)
	s.touch(hk)
	return e.Findings, true
}

// Put stores findings under key. Writes are atomic: temp file, fsync,
// rename. Failures are logged and swallowed; the next run recomputes.
func (s *Store) Put(key Key, fs []findings.Finding) {
	hk := key.hexKey()
	e := Entry{
		SchemaVersion: key.SchemaVersion,
		ToolVersion:   s.toolVersion,
		FileDigest:    key.FileDigest,
		ConfigDigest:  key.ConfigDigest,
		Findings:      fs,
		CachedAt:      time.Now().UTC(),
	}
	data, err := json.Marshal(&e)
	if err != nil {
		s.logger.Warn("cache.put.marshal", "err", err)
		return
	}

	shard := &s.shards[shardOf(hk)]
	shard.Lock()
	defer shard.Unlock()

	path := s.entryPath(hk)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		s.logger.Warn("cache.put.mkdir", "err", err)
		return
	}
	if err := atomicWrite(path, data); err != nil {
		s.logger.Warn("cache.put.write", "key", hk[:12], "err", err)
		return
	}
	now := time.Now().Unix()
	s.indexMu.Lock()
	s.index[hk] = indexEntry{LastUsed: now, Created: now}
	s.indexMu.Unlock()
}

// GC evicts entries beyond the age bound, then trims to the entry bound by
// least-recent use, and persists the index.
func (s *Store) GC(now time.Time) {
	type aged struct {
		key      string
		lastUsed int64
	}

	s.indexMu.Lock()
	cutoff := now.Add(-s.maxAge).Unix()
	var live []aged
	for k, ie := range s.index {
		if ie.Created < cutoff {
			delete(s.index, k)
			s.deleteEntry(k)
			s.evictions.Add(1)
			continue
		}
		live = append(live, aged{key: k, lastUsed: ie.LastUsed})
	}

	if len(live) > s.maxEntries {
		sort.Slice(live, func(i, j int) bool { return live[i].lastUsed < live[j].lastUsed })
		for _, victim := range live[:len(live)-s.maxEntries] {
			delete(s.index, victim.key)
			s.deleteEntry(victim.key)
			s.evictions.Add(1)
		}
	}
	s.indexMu.Unlock()

	s.flushIndex()
}

// Close persists the index.
func (s *Store) Close() error {
	return s.flushIndex()
}

// Stats returns a snapshot of the counters.
func (s *Store) Stats() Stats {
	return Stats{
		Hits:      s.hits.Load(),
		Misses:    s.misses.Load(),
		Evictions: s.evictions.Load(),
		Corrupt:   s.corrupt.Load(),
	}
}

// Len reports how many entries the index tracks.
func (s *Store) Len() int {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	return len(s.index)
}

func (s *Store) entryPath(hk string) string {
	return filepath.Join(s.dir, hk[:2], hk[2:]+".json")
}

func (s *Store) indexPath() string {
	return filepath.Join(s.dir, "index.json")
}

func (s *Store) touch(hk string) {
	s.indexMu.Lock()
	ie := s.index[hk]
	ie.LastUsed = time.Now().Unix()
	if ie.Created == 0 {
		ie.Created = ie.LastUsed
	}
	s.index[hk] = ie
	s.indexMu.Unlock()
}

func (s *Store) remove(hk string) {
	shard := &s.shards[shardOf(hk)]
	shard.Lock()
	s.deleteEntry(hk)
	shard.Unlock()

	s.indexMu.Lock()
	delete(s.index, hk)
	s.indexMu.Unlock()
}

func (s *Store) deleteEntry(hk string) {
	if err := os.Remove(s.entryPath(hk)); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("cache.evict.error", "key", hk[:12], "err", err)
	}
}

func (s *Store) loadIndex() {
	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		return
	}
	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	if err := json.Unmarshal(data, &s.index); err != nil {
		s.logger.Warn("cache.index.corrupt", "err", err)
		s.index = make(map[string]indexEntry)
	}
}

func (s *Store) flushIndex() error {
	s.indexMu.Lock()
	data, err := json.Marshal(s.index)
	s.indexMu.Unlock()
	if err != nil {
		return fmt.Errorf("marshal cache index: %w", err)
	}
	return atomicWrite(s.indexPath(), data)
}

func shardOf(hk string) byte {
	b, err := hex.DecodeString(hk[:2])
	if err != nil || len(b) == 0 {
		return 0
	}
	return b[0]
}

// atomicWrite writes data through a temp file with fsync and rename so a
// crash never leaves a half-written entry behind.
func atomicWrite(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/codeguardian/pkg/findings"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Options{
		Dir:         t.TempDir(),
		ToolVersion: "1.0.0-test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testKey(file string) Key {
	return Key{FileDigest: file, ConfigDigest: "cfgdigest", SchemaVersion: "1"}
}

func sample() []findings.Finding {
	return []findings.Finding{{
		ID: "deadbeefdeadbeef", Analyzer: "secret", Rule: "hardcoded_secret",
		Severity: findings.SeverityCritical, File: "src/main.rs", Line: 10,
		Message: "hardcoded secret",
	}}
}

func TestPutGetRoundtrip(t *testing.T) {
	s := testStore(t)
	key := testKey("f1")

	_, ok := s.Get(key)
	assert.False(t, ok, "empty store must miss")

	s.Put(key, sample())
	got, ok := s.Get(key)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, "hardcoded_secret", got[0].Rule)

	st := s.Stats()
	assert.Equal(t, int64(1), st.Hits)
	assert.Equal(t, int64(1), st.Misses)
}

func TestShardedLayout(t *testing.T) {
	s := testStore(t)
	key := testKey("f1")
	s.Put(key, sample())

	hk := key.hexKey()
	path := filepath.Join(s.dir, hk[:2], hk[2:]+".json")
	_, err := os.Stat(path)
	assert.NoError(t, err, "entry should live under its two-hex shard")
}

func TestDifferentConfigDigestMisses(t *testing.T) {
	s := testStore(t)
	s.Put(testKey("f1"), sample())

	other := Key{FileDigest: "f1", ConfigDigest: "changed", SchemaVersion: "1"}
	_, ok := s.Get(other)
	assert.False(t, ok, "config digest change must miss")
}

func TestToolVersionMismatchEvicts(t *testing.T) {
	dir := t.TempDir()
	old, err := Open(Options{Dir: dir, ToolVersion: "0.9.0"})
	require.NoError(t, err)
	key := testKey("f1")
	old.Put(key, sample())
	require.NoError(t, old.Close())

	cur, err := Open(Options{Dir: dir, ToolVersion: "1.0.0"})
	require.NoError(t, err)
	defer cur.Close()

	_, ok := cur.Get(key)
	assert.False(t, ok, "tool version mismatch behaves as a miss")

	// The stale entry is gone; a rewrite under the new version hits.
	cur.Put(key, sample())
	_, ok = cur.Get(key)
	assert.True(t, ok)
}

func TestCorruptEntryRecovered(t *testing.T) {
	s := testStore(t)
	key := testKey("f1")
	s.Put(key, sample())

	hk := key.hexKey()
	require.NoError(t, os.WriteFile(filepath.Join(s.dir, hk[:2], hk[2:]+".json"), []byte("{broken"), 0o644))

	_, ok := s.Get(key)
	assert.False(t, ok)
	assert.Equal(t, int64(1), s.Stats().Corrupt)

	// Recompute-and-put works afterwards.
	s.Put(key, sample())
	_, ok = s.Get(key)
	assert.True(t, ok)
}

func TestGCMaxEntries(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(Options{Dir: dir, ToolVersion: "1", MaxEntries: 2})
	require.NoError(t, err)
	defer s.Close()

	s.Put(testKey("a"), sample())
	s.Put(testKey("b"), sample())
	s.Put(testKey("c"), sample())
	require.Equal(t, 3, s.Len())

	s.GC(time.Now())
	assert.Equal(t, 2, s.Len())
	assert.GreaterOrEqual(t, s.Stats().Evictions, int64(1))
}

func TestGCMaxAge(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(Options{Dir: dir, ToolVersion: "1", MaxAge: time.Hour})
	require.NoError(t, err)
	defer s.Close()

	key := testKey("old")
	s.Put(key, sample())

	// An entry created over an hour "ago" from GC's perspective.
	s.GC(time.Now().Add(2 * time.Hour))
	_, ok := s.Get(key)
	assert.False(t, ok, "aged entry must be evicted")
}

func TestIndexPersistsAcrossOpens(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(Options{Dir: dir, ToolVersion: "1"})
	require.NoError(t, err)
	s.Put(testKey("a"), sample())
	require.NoError(t, s.Close())

	re, err := Open(Options{Dir: dir, ToolVersion: "1"})
	require.NoError(t, err)
	defer re.Close()
	assert.Equal(t, 1, re.Len())

	got, ok := re.Get(testKey("a"))
	require.True(t, ok)
	assert.Len(t, got, 1)
}

func TestConcurrentPutGet(t *testing.T) {
	s := testStore(t)
	done := make(chan struct{})
	for w := 0; w < 8; w++ {
		go func(w int) {
			defer func() { done <- struct{}{} }()
			key := testKey(string(rune('a' + w)))
			for i := 0; i < 50; i++ {
				s.Put(key, sample())
				s.Get(key)
			}
		}(w)
	}
	for w := 0; w < 8; w++ {
		<-done
	}
	assert.Equal(t, 8, s.Len())
}

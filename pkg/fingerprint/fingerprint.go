// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package fingerprint produces the digests that key the finding cache and the
// stable IDs attached to findings.
//
// All digests use SHA-256. File digests are streamed in fixed-size chunks so
// hashing a multi-gigabyte file never loads it into memory. Finding IDs are
// truncated to 16 hex digits; the inputs are normalized (paths cleaned to
// forward slashes, whitespace collapsed). FindingID strips no workspace
// prefix: it is given repo-relative paths, so IDs survive relocating the
// working copy.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// digestChunkSize is the read size used when streaming file contents.
const digestChunkSize = 64 * 1024

// findingIDLen is the number of hex digits kept from the full digest.
const findingIDLen = 16

// FileDigest returns the hex SHA-256 of the file's content, reading in
// bounded chunks. I/O errors are returned to the caller; the orchestrator
// reports the file as failed without retrying it.
func FileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for digest: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, digestChunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("read for digest: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ConfigDigest hashes the canonical serialization of the analysis-affecting
// configuration. Callers pass config.AnalysisFingerprint() output; fields that
// cannot change analysis results (colors, progress, tracker settings) must
// not be part of it.
func ConfigDigest(canonical []byte) string {
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

// FindingID derives the stable 16-hex finding identifier from the rule name,
// normalized path, 1-based line and normalized message.
func FindingID(rule, path string, line int, message string) string {
	idStr := fmt.Sprintf("%s|%s|%d|%s", rule, NormalizePath(path, ""), line, NormalizeMessage(message))
	sum := sha256.Sum256([]byte(idStr))
	return hex.EncodeToString(sum[:])[:findingIDLen]
}

// NormalizePath rewrites a path for consistent IDs across machines:
// the workspace root prefix is stripped, separators become forward slashes,
// and redundant elements are cleaned away.
func NormalizePath(path, workspaceRoot string) string {
	if workspaceRoot != "" {
		if rel, err := filepath.Rel(workspaceRoot, path); err == nil && !strings.HasPrefix(rel, "..") {
			path = rel
		}
	}
	path = strings.TrimPrefix(path, "./")
	path = filepath.Clean(path)
	return filepath.ToSlash(path)
}

// NormalizeMessage collapses runs of whitespace to single spaces and trims
// the ends, so cosmetic message tweaks do not churn IDs.
func NormalizeMessage(msg string) string {
	return strings.Join(strings.Fields(msg), " ")
}

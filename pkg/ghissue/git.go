// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package ghissue

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// validGroupKey keeps keys shell- and search-safe: short hex or simple
// word characters, as a commit abbreviation would be.
var validGroupKey = regexp.MustCompile(`^[A-Za-z0-9._-]{4,64}$`)

// ValidateGroupKey rejects keys the tracker search could misparse.
func ValidateGroupKey(key string) error {
	if !validGroupKey.MatchString(key) {
		return fmt.Errorf("group key %q must be 4-64 letters, digits, '.', '_' or '-'", key)
	}
	return nil
}

// GroupKeyFromGit derives the default group key from the commit under
// analysis: the short hash of HEAD in repoPath.
func GroupKeyFromGit(ctx context.Context, runner Runner, repoPath string) (string, error) {
	if runner == nil {
		runner = ExecRunner{}
	}
	out, err := runner.Run(ctx, "git", "-C", repoPath, "rev-parse", "--short=7", "HEAD")
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}
	key := strings.TrimSpace(string(out))
	if err := ValidateGroupKey(key); err != nil {
		return "", err
	}
	return key, nil
}

// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package ghissue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cgtesting "github.com/kraklabs/codeguardian/internal/testing"
)

// fakeTracker simulates the gh CLI against in-memory issue state.
type fakeTracker struct {
	issues   map[int]*issueRef
	nextNum  int
	calls    []string
	failures int // fail this many calls with a transient error first
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{issues: map[int]*issueRef{}, nextNum: 1}
}

func (f *fakeTracker) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, name+" "+strings.Join(args, " "))
	if f.failures > 0 {
		f.failures--
		return nil, fmt.Errorf("HTTP 503 service unavailable")
	}
	if name != "gh" {
		return nil, fmt.Errorf("unexpected command %s", name)
	}

	switch args[1] {
	case "list":
		var refs []issueRef
		for _, is := range f.issues {
			refs = append(refs, *is)
		}
		return json.Marshal(refs)
	case "create":
		is := &issueRef{Number: f.nextNum}
		f.nextNum++
		for i := 0; i < len(args)-1; i++ {
			switch args[i] {
			case "--title":
				is.Title = args[i+1]
			case "--body":
				is.Body = args[i+1]
			}
		}
		f.issues[is.Number] = is
		return []byte(fmt.Sprintf("https://github.com/acme/demo/issues/%d\n", is.Number)), nil
	case "edit":
		var num int
		fmt.Sscanf(args[2], "%d", &num)
		is, ok := f.issues[num]
		if !ok {
			return nil, fmt.Errorf("issue %d not found", num)
		}
		for i := 0; i < len(args)-1; i++ {
			switch args[i] {
			case "--title":
				is.Title = args[i+1]
			case "--body":
				is.Body = args[i+1]
			}
		}
		return nil, nil
	case "comment":
		var num int
		fmt.Sscanf(args[2], "%d", &num)
		is, ok := f.issues[num]
		if !ok {
			return nil, fmt.Errorf("issue %d not found", num)
		}
		for i := 0; i < len(args)-1; i++ {
			if args[i] == "--body" {
				is.Body += "\n" + args[i+1]
			}
		}
		return nil, nil
	}
	return nil, fmt.Errorf("unhandled gh subcommand %v", args)
}

func (f *fakeTracker) editCalls() int {
	n := 0
	for _, c := range f.calls {
		if strings.Contains(c, "issue edit") {
			n++
		}
	}
	return n
}

func newTestBridge(t *testing.T, tracker *fakeTracker) *Bridge {
	t.Helper()
	b, err := New(Options{
		Repo:        "acme/demo",
		RateLimit:   1000,
		Runner:      tracker,
		BaseBackoff: time.Millisecond,
	})
	require.NoError(t, err)
	return b
}

func TestSyncCreatesIssue(t *testing.T) {
	tracker := newFakeTracker()
	b := newTestBridge(t, tracker)

	res, err := b.Sync(context.Background(), "abcd123", cgtesting.SampleReport())
	require.NoError(t, err)

	assert.True(t, res.Created)
	assert.Equal(t, 1, res.IssueNumber)
	assert.Equal(t, 3, res.Added)
	require.Len(t, tracker.issues, 1)
	is := tracker.issues[1]
	assert.Contains(t, is.Title, "[abcd123]")
	assert.Contains(t, is.Body, idsMarkerPrefix)
	assert.Contains(t, is.Body, "hardcoded secret")
}

// Running the bridge twice with identical input converges: the second sync
// creates nothing and edits nothing.
func TestSyncIdempotent(t *testing.T) {
	tracker := newFakeTracker()
	b := newTestBridge(t, tracker)
	rep := cgtesting.SampleReport()

	first, err := b.Sync(context.Background(), "abcd123", rep)
	require.NoError(t, err)
	require.True(t, first.Created)

	second, err := b.Sync(context.Background(), "abcd123", rep)
	require.NoError(t, err)

	assert.False(t, second.Created)
	assert.False(t, second.Updated, "identical report must not rewrite the issue")
	assert.Len(t, tracker.issues, 1)
	assert.Equal(t, 0, tracker.editCalls())
}

func TestSyncUpdatesOnChange(t *testing.T) {
	tracker := newFakeTracker()
	b := newTestBridge(t, tracker)

	rep := cgtesting.SampleReport()
	_, err := b.Sync(context.Background(), "abcd123", rep)
	require.NoError(t, err)

	smaller := cgtesting.SampleReport()
	smaller.Findings = smaller.Findings[:1]
	res, err := b.Sync(context.Background(), "abcd123", smaller)
	require.NoError(t, err)

	assert.True(t, res.Updated)
	assert.Equal(t, 2, res.Resolved)
	assert.Equal(t, 0, res.Added)
}

func TestSyncCommentsOnDuplicates(t *testing.T) {
	tracker := newFakeTracker()
	rep := cgtesting.SampleReport()
	title := issueTitle("abcd123", rep)
	tracker.issues[4] = &issueRef{Number: 4, Title: title, Body: "dup"}
	tracker.issues[9] = &issueRef{Number: 9, Title: title, Body: "dup"}
	tracker.nextNum = 10

	b := newTestBridge(t, tracker)
	res, err := b.Sync(context.Background(), "abcd123", rep)
	require.NoError(t, err)

	assert.Equal(t, 4, res.IssueNumber, "lowest-numbered issue is canonical")
	assert.Equal(t, 1, res.DuplicatesCommented)
	assert.Contains(t, tracker.issues[9].Body, "Superseded by #4")
}

func TestSyncRetriesTransientFailures(t *testing.T) {
	tracker := newFakeTracker()
	tracker.failures = 2
	b := newTestBridge(t, tracker)

	res, err := b.Sync(context.Background(), "abcd123", cgtesting.SampleReport())
	require.NoError(t, err, "transient 503s must be retried")
	assert.True(t, res.Created)
}

func TestSyncGivesUpAfterMaxAttempts(t *testing.T) {
	tracker := newFakeTracker()
	tracker.failures = 99
	b := newTestBridge(t, tracker)

	_, err := b.Sync(context.Background(), "abcd123", cgtesting.SampleReport())
	assert.Error(t, err)
}

func TestSyncRejectsEmptyGroupKey(t *testing.T) {
	b := newTestBridge(t, newFakeTracker())
	_, err := b.Sync(context.Background(), "", cgtesting.SampleReport())
	assert.Error(t, err)
}

func TestNewRejectsBadRepo(t *testing.T) {
	_, err := New(Options{Repo: "not-a-repo"})
	assert.Error(t, err)
}

func TestValidateGroupKey(t *testing.T) {
	assert.NoError(t, ValidateGroupKey("abcd123"))
	assert.NoError(t, ValidateGroupKey("v1.2.3-rc1"))
	assert.Error(t, ValidateGroupKey("ab"))
	assert.Error(t, ValidateGroupKey("bad key with spaces"))
}

func TestGroupKeyFromGit(t *testing.T) {
	runner := runnerFunc(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		assert.Equal(t, "git", name)
		return []byte("f00dfeed\n"), nil
	})
	key, err := GroupKeyFromGit(context.Background(), runner, ".")
	require.NoError(t, err)
	assert.Equal(t, "f00dfeed", key)
}

func TestParseIDsMarkerRoundtrip(t *testing.T) {
	body := renderBody("k", cgtesting.SampleReport())
	ids := parseIDsMarker(body)
	assert.Len(t, ids, 3)
	for _, f := range cgtesting.SampleFindings() {
		assert.True(t, ids[f.ID], "missing id %s", f.ID)
	}
}

func TestParseIssueNumber(t *testing.T) {
	assert.Equal(t, 17, parseIssueNumber("https://github.com/acme/demo/issues/17\n"))
	assert.Equal(t, 0, parseIssueNumber("garbage"))
}

// runnerFunc adapts a function to the Runner interface.
type runnerFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func (f runnerFunc) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return f(ctx, name, args...)
}

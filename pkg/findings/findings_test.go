// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package findings

import (
	"testing"
	"time"
)

func TestSeverityRank(t *testing.T) {
	order := []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo}
	for i := 1; i < len(order); i++ {
		if order[i-1].Rank() >= order[i].Rank() {
			t.Errorf("rank(%s)=%d should be below rank(%s)=%d",
				order[i-1], order[i-1].Rank(), order[i], order[i].Rank())
		}
	}
	if Severity("bogus").Rank() <= SeverityInfo.Rank() {
		t.Error("unknown severity must rank after info")
	}
}

func TestSeverityAtLeast(t *testing.T) {
	tests := []struct {
		s, min Severity
		want   bool
	}{
		{SeverityCritical, SeverityHigh, true},
		{SeverityHigh, SeverityHigh, true},
		{SeverityMedium, SeverityHigh, false},
		{SeverityInfo, SeverityLow, false},
	}
	for _, tt := range tests {
		if got := tt.s.AtLeast(tt.min); got != tt.want {
			t.Errorf("%s.AtLeast(%s) = %v, want %v", tt.s, tt.min, got, tt.want)
		}
	}
}

func TestSortCanonical(t *testing.T) {
	fs := []Finding{
		{ID: "bb", Severity: SeverityLow, File: "a.go", Line: 5},
		{ID: "aa", Severity: SeverityLow, File: "a.go", Line: 5},
		{ID: "cc", Severity: SeverityCritical, File: "z.go", Line: 100},
		{ID: "dd", Severity: SeverityLow, File: "a.go", Line: 2},
		{ID: "ee", Severity: SeverityLow, File: "b.go", Line: 1},
	}
	SortCanonical(fs)

	wantIDs := []string{"cc", "dd", "aa", "bb", "ee"}
	for i, want := range wantIDs {
		if fs[i].ID != want {
			t.Fatalf("position %d: got %s, want %s (order %v)", i, fs[i].ID, want, fs)
		}
	}
}

func TestSortCanonicalDeterministic(t *testing.T) {
	// Same multiset in two insertion orders must sort identically.
	a := []Finding{
		{ID: "1", Severity: SeverityHigh, File: "m.rs", Line: 1},
		{ID: "2", Severity: SeverityHigh, File: "m.rs", Line: 1},
		{ID: "3", Severity: SeverityInfo, File: "a.rs", Line: 9},
	}
	b := []Finding{a[2], a[1], a[0]}
	SortCanonical(a)
	SortCanonical(b)
	for i := range a {
		if a[i].ID != b[i].ID {
			t.Fatalf("order differs at %d: %s vs %s", i, a[i].ID, b[i].ID)
		}
	}
}

func TestDedupe(t *testing.T) {
	fs := []Finding{
		{ID: "aa", Severity: SeverityHigh, File: "a.go", Line: 1},
		{ID: "aa", Severity: SeverityHigh, File: "a.go", Line: 1},
		{ID: "bb", Severity: SeverityLow, File: "a.go", Line: 2},
	}
	SortCanonical(fs)
	out := Dedupe(fs)
	if len(out) != 2 {
		t.Fatalf("got %d findings, want 2", len(out))
	}
}

func TestNewSummary(t *testing.T) {
	fs := []Finding{
		{ID: "a", Analyzer: "secret", Severity: SeverityCritical},
		{ID: "b", Analyzer: "secret", Severity: SeverityInfo},
		{ID: "c", Analyzer: "performance", Severity: SeverityMedium},
	}
	s := NewSummary(fs, 10, 1500*time.Millisecond)

	if s.FilesScanned != 10 {
		t.Errorf("FilesScanned = %d, want 10", s.FilesScanned)
	}
	if s.DurationMS != 1500 {
		t.Errorf("DurationMS = %d, want 1500", s.DurationMS)
	}
	if s.BySeverity["critical"] != 1 || s.BySeverity["info"] != 1 {
		t.Errorf("BySeverity = %v", s.BySeverity)
	}
	if s.ByAnalyzer["secret"] != 2 {
		t.Errorf("ByAnalyzer = %v", s.ByAnalyzer)
	}
}

func TestMaxSeverityAndCount(t *testing.T) {
	fs := []Finding{
		{ID: "a", Severity: SeverityLow},
		{ID: "b", Severity: SeverityHigh},
		{ID: "c", Severity: SeverityInfo},
	}
	if got := MaxSeverity(fs); got != SeverityHigh {
		t.Errorf("MaxSeverity = %s, want high", got)
	}
	if got := CountAtLeast(fs, SeverityLow); got != 2 {
		t.Errorf("CountAtLeast(low) = %d, want 2", got)
	}
	if got := MaxSeverity(nil); got != "" {
		t.Errorf("MaxSeverity(nil) = %q, want empty", got)
	}
}

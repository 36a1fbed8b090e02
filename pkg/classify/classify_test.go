// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package classify

import "testing"

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		path string
		want Language
	}{
		{"src/main.rs", LangRust},
		{"web/app.tsx", LangTS},
		{"web/app.jsx", LangJS},
		{"scripts/run.sh", LangShell},
		{"pkg/engine/engine.go", LangGo},
		{"native/ffi.cc", LangCPP},
		{"Cargo.toml", LangTOML},
		{"ci/deploy.yml", LangYAML},
		{"report.json", LangJSON},
		{"README.md", LangMarkdown},
		{"Dockerfile", LangShell},
		{"LICENSE", LangOther},
	}
	for _, tt := range tests {
		if got := DetectLanguage(tt.path); got != tt.want {
			t.Errorf("DetectLanguage(%q) = %s, want %s", tt.path, got, tt.want)
		}
	}
}

func TestIsProduction(t *testing.T) {
	c := New([]string{"vendor/**", "**/generated/**"}, 0)

	tests := []struct {
		path string
		want bool
	}{
		{"src/main.rs", true},
		{"internal/engine/run.go", true},
		{"tests/fixtures.rs", false},
		{"pkg/x/thing_test.go", false},
		{"benches/bench_big.rs", false},
		{"examples/demo.py", false},
		{"crates/core/benchmarks/big.rs", false},
		{"src/util_bench.rs", false},
		{"app/user.spec.ts", false},
		{"vendor/dep/lib.go", false},
		{"svc/generated/types.go", false},
		{"attestation/verify.go", true},
	}
	for _, tt := range tests {
		if got := c.IsProduction(tt.path); got != tt.want {
			t.Errorf("IsProduction(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestClassifyStreamFlag(t *testing.T) {
	c := New(nil, 1024)
	if got := c.Classify("big.json", 4096); !got.Stream {
		t.Error("4096 >= 1024 should stream")
	}
	if got := c.Classify("small.json", 100); got.Stream {
		t.Error("100 < 1024 should not stream")
	}

	// Default threshold applies when zero is configured.
	d := New(nil, 0)
	if got := d.Classify("mid.json", 1024*1024); got.Stream {
		t.Error("1 MiB is under the 5 MiB default")
	}
	if got := d.Classify("huge.json", 6*1024*1024); !got.Stream {
		t.Error("6 MiB is over the 5 MiB default")
	}
}

func TestExcluded(t *testing.T) {
	c := New([]string{"target/**"}, 0)
	if !c.Excluded("target/debug/build.rs") {
		t.Error("glob should exclude target/")
	}
	if c.Excluded("src/target_practice.rs") {
		t.Error("non-matching path excluded")
	}
}

// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package bootstrap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kraklabs/codeguardian/internal/config"
)

func TestInitWorkspaceWritesValidConfig(t *testing.T) {
	for _, tmpl := range []string{TemplateSecurity, TemplateCI, TemplateMinimal} {
		t.Run(tmpl, func(t *testing.T) {
			dir := t.TempDir()
			created, err := InitWorkspace(dir, tmpl, nil)
			if err != nil {
				t.Fatalf("InitWorkspace: %v", err)
			}
			if !created {
				t.Fatal("expected created=true in empty dir")
			}

			cfg, err := config.Load(filepath.Join(dir, config.DefaultFileName))
			if err != nil {
				t.Fatalf("written template must load cleanly: %v", err)
			}
			if err := cfg.Validate(); err != nil {
				t.Fatalf("written template must validate: %v", err)
			}
		})
	}
}

func TestInitWorkspaceIdempotent(t *testing.T) {
	dir := t.TempDir()
	if _, err := InitWorkspace(dir, "", nil); err != nil {
		t.Fatal(err)
	}
	created, err := InitWorkspace(dir, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Error("second init must not overwrite the config")
	}
}

func TestInitWorkspaceUnknownTemplate(t *testing.T) {
	if _, err := InitWorkspace(t.TempDir(), "quantum", nil); err == nil {
		t.Error("unknown template should error")
	}
}

func TestInitWorkspaceCreatesCacheDir(t *testing.T) {
	dir := t.TempDir()
	if _, err := InitWorkspace(dir, TemplateMinimal, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".codeguardian", "cache")); err != nil {
		t.Errorf("cache dir missing: %v", err)
	}
}

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

// Package bootstrap initializes a CodeGuardian workspace: the config file
// written by `codeguardian init` and the cache directory layout.
package bootstrap

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kraklabs/codeguardian/internal/config"
)

// Template names accepted by `codeguardian init --template`.
const (
	TemplateSecurity = "security"
	TemplateCI       = "ci"
	TemplateMinimal  = "minimal"
)

// configTemplates holds the commented TOML written per template.
var configTemplates = map[string]string{
	TemplateSecurity: `# CodeGuardian configuration - security profile
fail_threshold = "medium"

exclude = ["vendor/**", "third_party/**"]

[analyzers]
entropy_min = 3.2

[cache]
dir = ".codeguardian/cache"
max_entries = 10000
max_age_days = 30

[ml]
enabled = false
threshold = 0.3
`,
	TemplateCI: `# CodeGuardian configuration - CI profile
fail_threshold = "high"

exclude = ["vendor/**"]

[cache]
dir = ".codeguardian/cache"

[parallelism]
max_workers = 4
batch_size = 64

[github]
enabled = true
rate_limit = 1.0
`,
	TemplateMinimal: `# CodeGuardian configuration
fail_threshold = "high"
`,
}

// InitWorkspace writes the config file for the chosen template and creates
// the cache directory. Idempotent: an existing config file is left alone
// and reported via created=false.
func InitWorkspace(dir, template string, logger *slog.Logger) (created bool, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	if template == "" {
		template = TemplateMinimal
	}
	tmpl, ok := configTemplates[template]
	if !ok {
		return false, fmt.Errorf("unknown template %q (have security, ci, minimal)", template)
	}

	cfgPath := filepath.Join(dir, config.DefaultFileName)
	if _, err := os.Stat(cfgPath); err == nil {
		logger.Info("bootstrap.config.exists", "path", cfgPath)
		return false, nil
	}

	if err := os.WriteFile(cfgPath, []byte(tmpl), 0o644); err != nil {
		return false, fmt.Errorf("write config: %w", err)
	}

	cacheDir := filepath.Join(dir, ".codeguardian", "cache")
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return false, fmt.Errorf("create cache dir: %w", err)
	}

	logger.Info("bootstrap.done", "config", cfgPath, "template", template)
	return true, nil
}

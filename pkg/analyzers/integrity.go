// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package analyzers

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/kraklabs/codeguardian/pkg/classify"
	"github.com/kraklabs/codeguardian/pkg/findings"
)

// Integrity verifies that an allow-listed set of structured files actually
// parse as what their name claims. A repo whose Cargo.toml does not parse
// breaks every consumer downstream; catching it here is cheaper than letting
// the build find out.
type Integrity struct{}

// integrityAllowlist maps basenames to the format they must parse as.
// Workflow files are recognized by path in isWorkflowPath instead.
var integrityAllowlist = map[string]classify.Language{
	"cargo.toml":         classify.LangTOML,
	"pyproject.toml":     classify.LangTOML,
	"codeguardian.toml":  classify.LangTOML,
	"package.json":       classify.LangJSON,
	"tsconfig.json":      classify.LangJSON,
	"composer.json":      classify.LangJSON,
	".codecov.yml":       classify.LangYAML,
	"docker-compose.yml": classify.LangYAML,
}

func (n *Integrity) Name() string { return "integrity" }

func (n *Integrity) Supports(f File) bool {
	if f.Stream {
		return false
	}
	base := strings.ToLower(path.Base(f.Path))
	if _, ok := integrityAllowlist[base]; ok {
		return true
	}
	return isWorkflowPath(f.Path)
}

func (n *Integrity) Analyze(f File, c *Content, opts Options) ([]findings.Finding, error) {
	data, ok := c.Bytes()
	if !ok {
		return nil, nil
	}

	format := integrityAllowlist[strings.ToLower(path.Base(f.Path))]
	if isWorkflowPath(f.Path) {
		format = classify.LangYAML
	}

	var parseErr error
	switch format {
	case classify.LangTOML:
		var v map[string]any
		parseErr = toml.Unmarshal(data, &v)
	case classify.LangJSON:
		var v any
		parseErr = json.Unmarshal(data, &v)
	case classify.LangYAML:
		var v any
		parseErr = yaml.Unmarshal(data, &v)
	default:
		return nil, nil
	}

	if parseErr != nil {
		return []findings.Finding{adHocFinding(n.Name(), "malformed_config",
			findings.SeverityMedium, f, 0,
			fmt.Sprintf("%s does not parse as %s: %v", path.Base(f.Path), format, parseErr))}, nil
	}

	// Shape checks beyond parseability.
	if strings.EqualFold(path.Base(f.Path), "package.json") {
		var pkg struct {
			Name    string `json:"name"`
			Version string `json:"version"`
		}
		if err := json.Unmarshal(data, &pkg); err == nil && pkg.Name == "" {
			return []findings.Finding{adHocFinding(n.Name(), "schema_mismatch",
				findings.SeverityLow, f, 0, "package.json is missing the name field")}, nil
		}
	}
	return nil, nil
}

func isWorkflowPath(p string) bool {
	slashed := strings.ToLower(p)
	return strings.Contains(slashed, ".github/workflows/") &&
		(strings.HasSuffix(slashed, ".yml") || strings.HasSuffix(slashed, ".yaml"))
}

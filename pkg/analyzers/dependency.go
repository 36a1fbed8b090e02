// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package analyzers

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/kraklabs/codeguardian/pkg/findings"
)

// Dependency shallowly parses dependency manifests and flags permissive
// version ranges, duplicate declarations and configured bad pins. Manifests
// that fail to parse produce an info finding, not an error.
type Dependency struct{}

// manifestNames are the manifest basenames the analyzer understands.
var manifestNames = map[string]bool{
	"cargo.toml":       true,
	"package.json":     true,
	"requirements.txt": true,
	"go.mod":           true,
	"pom.xml":          true,
}

// declaration is one parsed dependency pin.
type declaration struct {
	name    string
	version string
	line    int
}

func (d *Dependency) Name() string { return "dependency" }

func (d *Dependency) Supports(f File) bool {
	return !f.Stream && manifestNames[strings.ToLower(path.Base(f.Path))]
}

func (d *Dependency) Analyze(f File, c *Content, opts Options) ([]findings.Finding, error) {
	data, ok := c.Bytes()
	if !ok {
		return nil, nil
	}

	var decls []declaration
	var parseErr error
	switch strings.ToLower(path.Base(f.Path)) {
	case "cargo.toml":
		decls, parseErr = parseCargoManifest(data)
	case "package.json":
		decls, parseErr = parsePackageJSON(data)
	case "requirements.txt":
		decls = parseRequirements(data)
	case "go.mod":
		decls = parseGoMod(data)
	case "pom.xml":
		decls, parseErr = parsePomXML(data)
	}
	if parseErr != nil {
		return []findings.Finding{adHocFinding(d.Name(), "manifest_unparseable",
			findings.SeverityInfo, f, 0,
			fmt.Sprintf("manifest could not be parsed: %v", parseErr))}, nil
	}

	var out []findings.Finding
	seen := make(map[string]int)
	for _, dec := range decls {
		if firstLine, dup := seen[dec.name]; dup {
			out = append(out, adHocFinding(d.Name(), "duplicate_dependency",
				findings.SeverityLow, f, dec.line,
				fmt.Sprintf("dependency %s declared more than once (first at line %d)", dec.name, firstLine)))
		} else {
			seen[dec.name] = dec.line
		}

		if permissiveVersion(dec.version) {
			out = append(out, adHocFinding(d.Name(), "permissive_version",
				findings.SeverityLow, f, dec.line,
				fmt.Sprintf("dependency %s uses permissive version %q", dec.name, dec.version)))
		}

		if reason, bad := opts.BadPins[dec.name+"@"+dec.version]; bad {
			out = append(out, adHocFinding(d.Name(), "known_bad_pin",
				findings.SeverityHigh, f, dec.line,
				fmt.Sprintf("dependency %s@%s is on the deny list: %s", dec.name, dec.version, reason)))
		}
	}
	return out, nil
}

// permissiveVersion reports whether a version spec accepts arbitrary future
// releases.
func permissiveVersion(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" || v == "*" || strings.EqualFold(v, "latest") {
		return true
	}
	switch v[0] {
	case '^', '~', '>', '*':
		return true
	}
	return strings.Contains(v, ".x") || strings.Contains(v, ".*")
}

// cargoManifest is the subset of Cargo.toml the analyzer reads. Dependency
// values are either a bare version string or a table with a version key.
type cargoManifest struct {
	Dependencies      map[string]any `toml:"dependencies"`
	DevDependencies   map[string]any `toml:"dev-dependencies"`
	BuildDependencies map[string]any `toml:"build-dependencies"`
}

func parseCargoManifest(data []byte) ([]declaration, error) {
	var m cargoManifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	lineOf := lineIndex(data)
	var decls []declaration
	for _, section := range []map[string]any{m.Dependencies, m.DevDependencies, m.BuildDependencies} {
		for name, v := range section {
			version := ""
			switch val := v.(type) {
			case string:
				version = val
			case map[string]any:
				if s, ok := val["version"].(string); ok {
					version = s
				}
			}
			decls = append(decls, declaration{name: name, version: version, line: lineOf(name)})
		}
	}
	sort.Slice(decls, func(i, j int) bool { return decls[i].name < decls[j].name })
	return decls, nil
}

type packageJSON struct {
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

func parsePackageJSON(data []byte) ([]declaration, error) {
	var m packageJSON
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	lineOf := lineIndex(data)
	var decls []declaration
	for _, section := range []map[string]string{m.Dependencies, m.DevDependencies} {
		for name, version := range section {
			decls = append(decls, declaration{name: name, version: version, line: lineOf(`"` + name + `"`)})
		}
	}
	sort.Slice(decls, func(i, j int) bool { return decls[i].name < decls[j].name })
	return decls, nil
}

func parseRequirements(data []byte) []declaration {
	var decls []declaration
	for i, raw := range strings.Split(string(data), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}
		name, version := line, ""
		for _, sep := range []string{"==", ">=", "<=", "~=", ">", "<"} {
			if idx := strings.Index(line, sep); idx >= 0 {
				name = strings.TrimSpace(line[:idx])
				version = strings.TrimSpace(line[idx:])
				break
			}
		}
		if version == "" && name != "" {
			// An unpinned requirement accepts anything.
			version = "*"
		}
		decls = append(decls, declaration{name: name, version: version, line: i + 1})
	}
	return decls
}

func parseGoMod(data []byte) []declaration {
	var decls []declaration
	inBlock := false
	for i, raw := range strings.Split(string(data), "\n") {
		line := strings.TrimSpace(raw)
		switch {
		case strings.HasPrefix(line, "require ("):
			inBlock = true
			continue
		case inBlock && line == ")":
			inBlock = false
			continue
		}
		rest := ""
		if inBlock && line != "" && !strings.HasPrefix(line, "//") {
			rest = line
		} else if strings.HasPrefix(line, "require ") {
			rest = strings.TrimPrefix(line, "require ")
		}
		if rest == "" {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) >= 2 {
			decls = append(decls, declaration{name: fields[0], version: fields[1], line: i + 1})
		}
	}
	return decls
}

type pomProject struct {
	Dependencies struct {
		Dependency []struct {
			GroupID    string `xml:"groupId"`
			ArtifactID string `xml:"artifactId"`
			Version    string `xml:"version"`
		} `xml:"dependency"`
	} `xml:"dependencies"`
}

func parsePomXML(data []byte) ([]declaration, error) {
	var p pomProject
	if err := xml.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	lineOf := lineIndex(data)
	var decls []declaration
	for _, dep := range p.Dependencies.Dependency {
		name := dep.GroupID + ":" + dep.ArtifactID
		version := dep.Version
		if strings.EqualFold(version, "LATEST") || strings.EqualFold(version, "RELEASE") {
			version = "latest"
		}
		decls = append(decls, declaration{name: name, version: version, line: lineOf(dep.ArtifactID)})
	}
	return decls, nil
}

// lineIndex returns a lookup from substring to its first 1-based line, used
// to attach findings to the declaring line of structured manifests.
func lineIndex(data []byte) func(string) int {
	lines := strings.Split(string(data), "\n")
	return func(needle string) int {
		for i, l := range lines {
			if strings.Contains(l, needle) {
				return i + 1
			}
		}
		return 0
	}
}

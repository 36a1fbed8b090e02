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

package engine

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/kraklabs/codeguardian/pkg/analyzers"
)

// alwaysSkippedDirs are never descended into regardless of configuration.
var alwaysSkippedDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	"target":       true,
	".codeguardian": true,
}

// walkResult is the tree walk's output.
type walkResult struct {
	files       []analyzers.File
	skipReasons map[string]int
}

// walkTree collects candidate files under root, honoring include and
// exclude globs. Permission errors are logged and skipped, never fatal.
// The result is sorted by path so downstream batching is deterministic.
func (e *Engine) walkTree(root string) (*walkResult, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	res := &walkResult{skipReasons: make(map[string]int)}

	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			e.logger.Warn("walk.error", "path", path, "err", err)
			res.skipReasons["walk_error"]++
			return nil
		}

		rel, relErr := filepath.Rel(absRoot, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel == "." {
				return nil
			}
			if alwaysSkippedDirs[d.Name()] || strings.HasPrefix(d.Name(), ".") && d.Name() != ".github" {
				res.skipReasons["skipped_dir"]++
				return filepath.SkipDir
			}
			if e.classifier.Excluded(rel) {
				res.skipReasons["excluded_dir"]++
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() {
			res.skipReasons["irregular"]++
			return nil
		}

		if e.classifier.Excluded(rel) {
			res.skipReasons["excluded"]++
			recordSkipped()
			return nil
		}
		if len(e.cfg.Include) > 0 && !matchesAny(e.cfg.Include, rel) {
			res.skipReasons["not_included"]++
			recordSkipped()
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			res.skipReasons["stat_error"]++
			return nil
		}

		class := e.classifier.Classify(rel, info.Size())
		res.files = append(res.files, analyzers.File{
			Path:       rel,
			AbsPath:    path,
			Size:       info.Size(),
			Language:   class.Language,
			Production: class.Production,
			Stream:     class.Stream,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(res.files, func(i, j int) bool { return res.files[i].Path < res.files[j].Path })
	recordWalked(len(res.files))
	return res, nil
}

func matchesAny(globs []string, rel string) bool {
	for _, g := range globs {
		if ok, err := doublestar.Match(g, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// Copyright 2025 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"sort"

	"github.com/kraklabs/codeguardian/pkg/analyzers"
	"github.com/kraklabs/codeguardian/pkg/classify"
)

// batch is one unit of scheduling: files of a single language group, or a
// single oversized file that will be streamed.
type batch struct {
	language classify.Language
	files    []analyzers.File
	streamed bool
}

// makeBatches partitions files into language-grouped batches of at most
// targetSize entries. Streamed files get their own single-file batches so a
// multi-gigabyte file never stalls a whole batch. The batch order is a
// deterministic function of the (sorted) input.
func makeBatches(files []analyzers.File, targetSize int) []batch {
	if targetSize <= 0 {
		targetSize = 64
	}

	byLang := make(map[classify.Language][]analyzers.File)
	var streamed []analyzers.File
	for _, f := range files {
		if f.Stream {
			streamed = append(streamed, f)
			continue
		}
		byLang[f.Language] = append(byLang[f.Language], f)
	}

	langs := make([]classify.Language, 0, len(byLang))
	for l := range byLang {
		langs = append(langs, l)
	}
	sort.Slice(langs, func(i, j int) bool { return langs[i] < langs[j] })

	var batches []batch
	for _, lang := range langs {
		group := byLang[lang]
		for start := 0; start < len(group); start += targetSize {
			end := start + targetSize
			if end > len(group) {
				end = len(group)
			}
			batches = append(batches, batch{language: lang, files: group[start:end]})
		}
	}
	for _, f := range streamed {
		batches = append(batches, batch{language: f.Language, files: []analyzers.File{f}, streamed: true})
	}
	return batches
}

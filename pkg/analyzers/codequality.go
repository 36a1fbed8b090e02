// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package analyzers

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/kraklabs/codeguardian/pkg/classify"
	"github.com/kraklabs/codeguardian/pkg/findings"
)

// CodeQuality runs the structural checks: complexity by keyword counting,
// long functions and lines, parameter counts, nesting depth, magic numbers,
// duplicated line windows, commented-out code, misplaced imports and
// single-letter declarations. Everything is line-lexical; no AST.
type CodeQuality struct{}

// dupWindowSize is the number of consecutive normalized lines hashed
// together for duplicate detection.
const dupWindowSize = 3

// maxNestingDepth is the brace/indent depth beyond which a function is
// flagged.
const maxNestingDepth = 5

var (
	funcStartPatterns = map[classify.Language]*regexp.Regexp{
		classify.LangRust:   regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?(?:async\s+)?fn\s+(\w+)\s*[(<]`),
		classify.LangGo:     regexp.MustCompile(`^func\s+(?:\([^)]+\)\s*)?(\w+)\s*\(`),
		classify.LangPython: regexp.MustCompile(`^\s*(?:async\s+)?def\s+(\w+)\s*\(`),
		classify.LangJS:     regexp.MustCompile(`^\s*(?:export\s+)?(?:async\s+)?function\s*\*?\s*(\w+)\s*\(`),
		classify.LangTS:     regexp.MustCompile(`^\s*(?:export\s+)?(?:async\s+)?function\s*\*?\s*(\w+)\s*\(`),
		classify.LangJava:   regexp.MustCompile(`^\s*(?:public|private|protected)\s+(?:static\s+)?[\w<>\[\]]+\s+(\w+)\s*\(`),
	}

	branchKeywordPattern = regexp.MustCompile(`\b(if|elif|else if|for|while|case|when|catch|except|match)\b`)
	boolOpPattern        = regexp.MustCompile(`&&|\|\|`)

	importPatterns = map[classify.Language]*regexp.Regexp{
		classify.LangRust:   regexp.MustCompile(`^\s*(?:pub\s+)?use\s+\w`),
		classify.LangGo:     regexp.MustCompile(`^import\s|^\t"|^\s*"[\w./-]+"$`),
		classify.LangPython: regexp.MustCompile(`^\s*(?:import\s+\w|from\s+[\w.]+\s+import)`),
		classify.LangJS:     regexp.MustCompile(`^\s*(?:import\s|const\s+\w+\s*=\s*require\()`),
		classify.LangTS:     regexp.MustCompile(`^\s*import\s`),
		classify.LangJava:   regexp.MustCompile(`^\s*import\s+[\w.]+;`),
	}

	magicNumberPattern      = regexp.MustCompile(`[^\w.]([2-9]\d{1,}|1\d+)(?:[^\w.]|$)`)
	singleLetterDeclPattern = regexp.MustCompile(`\b(?:let(?:\s+mut)?|var|const)\s+([a-zA-Z])\s*[:=]|(?:^|[^\w:])([a-hl-z])\s*:=`)

	// statementShapePattern recognizes commented-out code: the comment body
	// looks like a statement rather than prose.
	statementShapePattern = regexp.MustCompile(`(?:;\s*$|\{\s*$|^\s*\}|^(?:let|const|var|return|fn|func|def|if|for|while|import|use)\b.*[;{(=]|\)\s*[;{]\s*$)`)
)

func (q *CodeQuality) Name() string { return "code-quality" }

func (q *CodeQuality) Supports(f File) bool {
	return !f.Stream && sourceLanguages[f.Language]
}

func (q *CodeQuality) Analyze(f File, c *Content, opts Options) ([]findings.Finding, error) {
	if !f.Production {
		return nil, nil
	}
	data, ok := c.Bytes()
	if !ok {
		return nil, nil
	}
	lines := strings.Split(string(data), "\n")

	var out []findings.Finding
	out = append(out, q.scanFunctions(f, lines, opts)...)
	out = append(out, q.scanLines(f, lines, opts)...)
	out = append(out, q.scanDuplicates(f, lines, opts)...)
	out = append(out, q.scanImports(f, lines)...)
	return out, nil
}

// funcState accumulates per-function counters between its header and its
// closing brace (or dedent).
type funcState struct {
	name       string
	startLine  int
	braceDepth int
	indent     int
	complexity int
	maxDepth   int
	lines      int
}

func (q *CodeQuality) scanFunctions(f File, lines []string, opts Options) []findings.Finding {
	startPat := funcStartPatterns[f.Language]
	if startPat == nil {
		return nil
	}
	indentBased := f.Language == classify.LangPython

	var out []findings.Finding
	var fn *funcState
	depth := 0

	flush := func(endLine int) {
		if fn == nil {
			return
		}
		if fn.complexity > opts.ComplexityMax {
			out = append(out, adHocFinding(q.Name(), "high_complexity", findings.SeverityMedium,
				f, fn.startLine,
				fmt.Sprintf("function %s has cyclomatic complexity %d (max %d)", fn.name, fn.complexity, opts.ComplexityMax)))
		}
		if fn.lines > opts.LongFunction {
			out = append(out, adHocFinding(q.Name(), "long_function", findings.SeverityLow,
				f, fn.startLine,
				fmt.Sprintf("function %s is %d lines long (max %d)", fn.name, fn.lines, opts.LongFunction)))
		}
		if fn.maxDepth > maxNestingDepth {
			out = append(out, adHocFinding(q.Name(), "deep_nesting", findings.SeverityMedium,
				f, fn.startLine,
				fmt.Sprintf("function %s nests %d levels deep", fn.name, fn.maxDepth)))
		}
		fn = nil
	}

	for i, raw := range lines {
		trimmed := strings.TrimSpace(raw)
		if isCommentLine(f.Language, trimmed) {
			continue
		}

		if m := startPat.FindStringSubmatch(raw); m != nil {
			flush(i)
			fn = &funcState{
				name:       m[1],
				startLine:  i + 1,
				braceDepth: depth,
				indent:     leadingSpaces(raw),
				complexity: 1,
			}
			if params := countParams(raw); params > opts.TooManyParams {
				out = append(out, adHocFinding(q.Name(), "too_many_params", findings.SeverityLow,
					f, i+1,
					fmt.Sprintf("function %s takes %d parameters (max %d)", fn.name, params, opts.TooManyParams)))
			}
		}

		if indentBased {
			if fn != nil && trimmed != "" && i+1 > fn.startLine && leadingSpaces(raw) <= fn.indent {
				flush(i)
			}
		}

		if fn != nil {
			fn.lines++
			fn.complexity += len(branchKeywordPattern.FindAllString(trimmed, -1))
			fn.complexity += len(boolOpPattern.FindAllString(trimmed, -1))
			rel := depth - fn.braceDepth
			if indentBased {
				rel = (leadingSpaces(raw) - fn.indent) / 4
			}
			if rel > fn.maxDepth {
				fn.maxDepth = rel
			}
		}

		for _, ch := range raw {
			switch ch {
			case '{':
				depth++
			case '}':
				depth--
			}
		}
		if !indentBased && fn != nil && depth <= fn.braceDepth && i+1 > fn.startLine {
			flush(i)
		}
	}
	flush(len(lines))
	return out
}

func (q *CodeQuality) scanLines(f File, lines []string, opts Options) []findings.Finding {
	var out []findings.Finding
	for i, raw := range lines {
		trimmed := strings.TrimSpace(raw)
		lineNo := i + 1

		if len(raw) > opts.LongLine {
			out = append(out, adHocFinding(q.Name(), "long_line", findings.SeverityInfo,
				f, lineNo, fmt.Sprintf("line is %d characters (max %d)", len(raw), opts.LongLine)))
		}

		if isCommentLine(f.Language, trimmed) {
			body := strings.TrimLeft(trimmed, "/#* \t")
			if len(body) > 3 && statementShapePattern.MatchString(body) {
				out = append(out, adHocFinding(q.Name(), "commented_out_code", findings.SeverityLow,
					f, lineNo, "commented-out code; delete it, the history is in version control"))
			}
			continue
		}

		lower := strings.ToLower(trimmed)
		isConstDecl := strings.Contains(lower, "const") || strings.Contains(lower, "enum") ||
			strings.Contains(lower, "#define") || strings.Contains(lower, "static")
		if !isConstDecl && magicNumberPattern.MatchString(" "+trimmed) {
			out = append(out, adHocFinding(q.Name(), "magic_number", findings.SeverityInfo,
				f, lineNo, "unexplained numeric literal; name it as a constant"))
		}

		if m := singleLetterDecl(trimmed); m != "" && !strings.Contains(trimmed, "for") {
			out = append(out, adHocFinding(q.Name(), "single_letter_identifier", findings.SeverityInfo,
				f, lineNo, fmt.Sprintf("single-letter identifier %q in declaration", m)))
		}
	}
	return out
}

// singleLetterDecl extracts the offending identifier, if any.
func singleLetterDecl(trimmed string) string {
	m := singleLetterDeclPattern.FindStringSubmatch(trimmed)
	if m == nil {
		return ""
	}
	if m[1] != "" {
		return m[1]
	}
	return m[2]
}

func (q *CodeQuality) scanDuplicates(f File, lines []string, opts Options) []findings.Finding {
	minOccur := opts.DuplicateMin
	if minOccur < 2 {
		minOccur = 2
	}

	// Normalize lines; trivial lines (braces, blanks) are excluded from
	// windows so they cannot manufacture duplicates.
	normalized := make([]string, 0, len(lines))
	lineNos := make([]int, 0, len(lines))
	for i, raw := range lines {
		n := strings.Join(strings.Fields(raw), " ")
		if len(n) < 8 || isCommentLine(f.Language, n) {
			continue
		}
		normalized = append(normalized, n)
		lineNos = append(lineNos, i+1)
	}
	if len(normalized) < dupWindowSize {
		return nil
	}

	counts := make(map[uint64][]int)
	for i := 0; i+dupWindowSize <= len(normalized); i++ {
		h := xxhash.New()
		for w := 0; w < dupWindowSize; w++ {
			h.WriteString(normalized[i+w])
			h.Write([]byte{0})
		}
		key := h.Sum64()
		counts[key] = append(counts[key], lineNos[i])
	}

	var out []findings.Finding
	for _, occurrences := range counts {
		if len(occurrences) >= minOccur {
			out = append(out, adHocFinding(q.Name(), "duplicated_lines", findings.SeverityLow,
				f, occurrences[1],
				fmt.Sprintf("%d-line block duplicated %d times (first at line %d)",
					dupWindowSize, len(occurrences), occurrences[0])))
		}
	}
	return out
}

func (q *CodeQuality) scanImports(f File, lines []string) []findings.Finding {
	pat := importPatterns[f.Language]
	if pat == nil {
		return nil
	}

	var out []findings.Finding
	seenCode := false
	inHeader := true
	for i, raw := range lines {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" || isCommentLine(f.Language, trimmed) {
			continue
		}
		isImport := pat.MatchString(raw)
		switch {
		case isImport && seenCode && !inHeader:
			out = append(out, adHocFinding(q.Name(), "misplaced_import", findings.SeverityLow,
				f, i+1, "import after executable code; move it to the top of the file"))
		case !isImport && !isDeclarationHeader(f.Language, trimmed):
			seenCode = true
			inHeader = false
		}
	}
	return out
}

// isDeclarationHeader covers the lines legitimately above or between
// imports: package/module declarations, attributes, pragmas.
func isDeclarationHeader(lang classify.Language, trimmed string) bool {
	switch lang {
	case classify.LangGo:
		return strings.HasPrefix(trimmed, "package ") || trimmed == ")" || strings.HasPrefix(trimmed, "import")
	case classify.LangRust:
		return strings.HasPrefix(trimmed, "#![") || strings.HasPrefix(trimmed, "#[") ||
			strings.HasPrefix(trimmed, "mod ") || strings.HasPrefix(trimmed, "extern crate")
	case classify.LangPython:
		return strings.HasPrefix(trimmed, "\"\"\"") || strings.HasPrefix(trimmed, "from __future__")
	case classify.LangJava:
		return strings.HasPrefix(trimmed, "package ")
	default:
		return false
	}
}

func countParams(signature string) int {
	open := strings.IndexByte(signature, '(')
	if open < 0 {
		return 0
	}
	end := strings.IndexByte(signature[open:], ')')
	inner := ""
	if end > 0 {
		inner = signature[open+1 : open+end]
	} else {
		inner = signature[open+1:]
	}
	inner = strings.TrimSpace(inner)
	if inner == "" {
		return 0
	}
	depth := 0
	params := 1
	for _, ch := range inner {
		switch ch {
		case '(', '<', '[':
			depth++
		case ')', '>', ']':
			depth--
		case ',':
			if depth == 0 {
				params++
			}
		}
	}
	return params
}

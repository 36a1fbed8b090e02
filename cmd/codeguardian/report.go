// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"encoding/json"
	"fmt"
	"html"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/kraklabs/codeguardian/internal/contract"
	cgerrors "github.com/kraklabs/codeguardian/internal/errors"
	"github.com/kraklabs/codeguardian/pkg/findings"
	"github.com/kraklabs/codeguardian/pkg/report"
)

// runReport executes 'report': render an existing JSON report as Markdown
// or HTML.
//
// Flags:
//   - --from: JSON report to read (required)
//   - --to: output format, md or html (default: md)
//   - --out: output path (default: stdout)
func runReport(args []string) {
	fs := pflag.NewFlagSet("report", pflag.ExitOnError)
	from := fs.String("from", "", "JSON report to render (required)")
	to := fs.String("to", "md", "Output format: md or html")
	outPath := fs.String("out", "", "Output path (default: stdout)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: codeguardian report --from <report.json> [--to md|html] [--out <path>]

Renders an existing JSON report without re-analyzing anything.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(cgerrors.ExitConfig)
	}

	if *from == "" {
		cgerrors.FatalError(cgerrors.NewConfigError(
			"Missing --from",
			"report rendering needs an input file",
			"Pass --from codeguardian-report.json",
			nil,
		), false)
	}

	rep, err := loadReport(*from)
	if err != nil {
		cgerrors.FatalError(cgerrors.NewConfigError(
			"Cannot load report", err.Error(), "Re-run: codeguardian check", err), false)
	}

	var rendered string
	switch *to {
	case "md":
		rendered = report.Markdown(rep)
	case "html":
		rendered = renderHTML(rep)
	default:
		cgerrors.FatalError(cgerrors.NewConfigError(
			fmt.Sprintf("Unknown format %q", *to),
			"supported formats are md and html",
			"Pass --to md or --to html",
			nil,
		), false)
	}

	if *outPath == "" {
		fmt.Print(rendered)
		return
	}
	if err := os.WriteFile(*outPath, []byte(rendered), 0o644); err != nil {
		cgerrors.FatalError(cgerrors.NewInternalError("Cannot write output", err), false)
	}
}

// loadReport reads and validates a report document.
func loadReport(path string) (*findings.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rep findings.Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if res := contract.ValidateReport(&rep); !res.OK {
		return nil, fmt.Errorf("invalid report: %s", res.Message)
	}
	return &rep, nil
}

// renderHTML wraps the Markdown rendering in a minimal standalone page.
// Headings and list items are translated; everything else is escaped.
func renderHTML(rep *findings.Report) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	b.WriteString("<title>CodeGuardian Report</title>\n")
	b.WriteString("<style>body{font-family:sans-serif;max-width:60em;margin:2em auto}li{margin:0.2em 0}</style>\n")
	b.WriteString("</head>\n<body>\n")

	inList := false
	for _, line := range strings.Split(report.Markdown(rep), "\n") {
		switch {
		case strings.HasPrefix(line, "# "):
			closeList(&b, &inList)
			fmt.Fprintf(&b, "<h1>%s</h1>\n", html.EscapeString(line[2:]))
		case strings.HasPrefix(line, "## "):
			closeList(&b, &inList)
			fmt.Fprintf(&b, "<h2>%s</h2>\n", html.EscapeString(line[3:]))
		case strings.HasPrefix(line, "### "):
			closeList(&b, &inList)
			fmt.Fprintf(&b, "<h3>%s</h3>\n", html.EscapeString(line[4:]))
		case strings.HasPrefix(line, "- "):
			if !inList {
				b.WriteString("<ul>\n")
				inList = true
			}
			fmt.Fprintf(&b, "<li>%s</li>\n", html.EscapeString(line[2:]))
		case strings.TrimSpace(line) == "":
			closeList(&b, &inList)
		default:
			closeList(&b, &inList)
			fmt.Fprintf(&b, "<p>%s</p>\n", html.EscapeString(line))
		}
	}
	closeList(&b, &inList)
	b.WriteString("</body>\n</html>\n")
	return b.String()
}

func closeList(b *strings.Builder, inList *bool) {
	if *inList {
		b.WriteString("</ul>\n")
		*inList = false
	}
}

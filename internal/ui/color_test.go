// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package ui

import (
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/kraklabs/codeguardian/pkg/findings"
)

func TestSeverityTextNoColor(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = prev }()

	tests := []struct {
		sev  findings.Severity
		want string
	}{
		{findings.SeverityCritical, "CRITICAL"},
		{findings.SeverityHigh, "HIGH"},
		{findings.SeverityMedium, "MEDIUM"},
		{findings.SeverityLow, "LOW"},
		{findings.SeverityInfo, "INFO"},
	}
	for _, tt := range tests {
		if got := SeverityText(tt.sev); got != tt.want {
			t.Errorf("SeverityText(%s) = %q, want %q", tt.sev, got, tt.want)
		}
	}
}

func TestLabelHelpersNoColor(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = prev }()

	if got := Label("Findings:"); got != "Findings:" {
		t.Errorf("Label = %q", got)
	}
	if got := DimText("src/main.rs"); got != "src/main.rs" {
		t.Errorf("DimText = %q", got)
	}
	if got := CountText(42); !strings.Contains(got, "42") {
		t.Errorf("CountText = %q", got)
	}
}

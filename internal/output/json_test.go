// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package output

import (
	"bytes"
	"strings"
	"testing"
)

func TestJSONTo(t *testing.T) {
	var buf bytes.Buffer
	err := JSONTo(&buf, map[string]int{"findings": 3})
	if err != nil {
		t.Fatalf("JSONTo: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "\"findings\": 3") {
		t.Errorf("unexpected output %q", out)
	}
	if !strings.HasSuffix(out, "\n") {
		t.Error("output should end with a newline")
	}
}

func TestJSONCompactTo(t *testing.T) {
	var buf bytes.Buffer
	if err := JSONCompactTo(&buf, map[string]string{"a": "b"}); err != nil {
		t.Fatalf("JSONCompactTo: %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != `{"a":"b"}` {
		t.Errorf("compact output = %q", got)
	}
}

func TestJSONToUnencodable(t *testing.T) {
	var buf bytes.Buffer
	if err := JSONTo(&buf, func() {}); err == nil {
		t.Error("functions are not encodable; expected error")
	}
}

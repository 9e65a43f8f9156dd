package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestFormatFireTime(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"rfc3339", "2026-03-01T12:00:00Z", "2026-03-01 12:00:00 UTC"},
		{"with offset", "2026-03-01T15:00:00+03:00", "2026-03-01 12:00:00 UTC"},
		{"empty", "", ""},
		{"garbage passes through", "soon", "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatFireTime(tt.in); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestOutput_TableEmptyCells(t *testing.T) {
	var buf bytes.Buffer
	out := &Output{w: &buf, errW: &buf}

	out.Table(
		[]string{"ID", "OWNER", "NEXT_FIRE"},
		[][]string{{"abc", "", ""}},
	)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header, separator and one row, got %d lines", len(lines))
	}
	row := lines[2]
	if !strings.Contains(row, "-") {
		t.Errorf("empty cells should render as dashes, got %q", row)
	}
	if strings.Count(row, "-") < 2 {
		t.Errorf("expected a dash per empty cell, got %q", row)
	}
}

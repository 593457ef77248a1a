package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestWriteTableAlignsColumns(t *testing.T) {
	var buf bytes.Buffer
	err := writeTable(&buf, []string{"NAME", "TAGS"}, [][]string{
		{"smoke-test", "health"},
		{"x", "recovery"},
	})
	if err != nil {
		t.Fatalf("writeTable: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), buf.String())
	}

	col := strings.Index(lines[0], "TAGS")
	if col < 0 {
		t.Fatalf("header missing TAGS column: %q", lines[0])
	}
	if got := strings.Index(lines[1], "health"); got != col {
		t.Errorf("row 1 second column at %d, want %d", got, col)
	}
	if got := strings.Index(lines[2], "recovery"); got != col {
		t.Errorf("row 2 second column at %d, want %d", got, col)
	}
}

func TestWriteTableTruncatesWideCells(t *testing.T) {
	wide := strings.Repeat("z", cellWidthMax+20)

	var buf bytes.Buffer
	if err := writeTable(&buf, nil, [][]string{{"name", wide}}); err != nil {
		t.Fatalf("writeTable: %v", err)
	}

	if strings.Contains(buf.String(), wide) {
		t.Error("wide cell was not truncated")
	}
	if !strings.Contains(buf.String(), "...") {
		t.Errorf("truncated cell missing ellipsis: %q", buf.String())
	}
}

func TestWriteKeyValuesSkipsEmpty(t *testing.T) {
	var buf bytes.Buffer
	err := writeKeyValues(&buf, [][2]string{
		{"Name", "smoke-test"},
		{"Description", ""},
		{"Source", "builtin"},
	})
	if err != nil {
		t.Fatalf("writeKeyValues: %v", err)
	}

	out := buf.String()
	if strings.Contains(out, "Description") {
		t.Errorf("empty pair was rendered: %q", out)
	}
	if !strings.Contains(out, "Name:") || !strings.Contains(out, "builtin") {
		t.Errorf("missing detail lines: %q", out)
	}
}

func TestTruncateCell(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"short stays", "status", 48, "status"},
		{"exact stays", "abcd", 4, "abcd"},
		{"long cut", "abcdefghij", 8, "abcde..."},
		{"tiny max untouched", "abcdefghij", 3, "abcdefghij"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncateCell(tt.in, tt.max); got != tt.want {
				t.Errorf("truncateCell(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
			}
		})
	}
}

func TestFormatYesNo(t *testing.T) {
	if got := formatYesNo(true); got != "yes" {
		t.Errorf("formatYesNo(true) = %q", got)
	}
	if got := formatYesNo(false); got != "no" {
		t.Errorf("formatYesNo(false) = %q", got)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{750 * time.Microsecond, "750µs"},
		{123 * time.Millisecond, "120ms"},
		{456 * time.Millisecond, "460ms"},
		{1500 * time.Millisecond, "1.5s"},
		{2345 * time.Millisecond, "2.3s"},
		{time.Minute, "1m0s"},
	}

	for _, tt := range tests {
		if got := formatDuration(tt.in); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

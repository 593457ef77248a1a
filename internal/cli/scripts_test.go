// Package cli provides tests for script CLI helpers.
package cli

import (
	"testing"

	"github.com/fieldprobe/rigger/internal/script"
)

func TestFilterScripts(t *testing.T) {
	items := []*script.Script{
		{Name: "a", Tags: []string{"health", "bridge"}},
		{Name: "b", Tags: []string{"recovery"}},
		{Name: "c", Tags: []string{"health"}},
		{Name: "d", Tags: nil},
	}

	tests := []struct {
		name     string
		tags     []string
		expected int
	}{
		{"no filter", nil, 4},
		{"filter health", []string{"health"}, 2},
		{"filter recovery", []string{"recovery"}, 1},
		{"filter multiple", []string{"health", "recovery"}, 3},
		{"filter nonexistent", []string{"nonexistent"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := filterScripts(items, tt.tags)
			if len(result) != tt.expected {
				t.Errorf("filterScripts() = %d items, want %d", len(result), tt.expected)
			}
		})
	}
}

func TestFindScriptByName(t *testing.T) {
	items := []*script.Script{
		{Name: "smoke-test"},
		{Name: "reset-cycle"},
		{Name: "drain-exit"},
	}

	tests := []struct {
		name    string
		search  string
		wantNil bool
	}{
		{"exact match", "smoke-test", false},
		{"case insensitive", "RESET-CYCLE", false},
		{"not found", "nonexistent", true},
		{"partial match fails", "smoke", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := findScriptByName(items, tt.search)
			if (result == nil) != tt.wantNil {
				t.Errorf("findScriptByName(%q) nil = %v, want nil = %v", tt.search, result == nil, tt.wantNil)
			}
		})
	}
}

func TestParseVarFlags(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		wantLen int
		wantErr bool
	}{
		{"single var", []string{"key=value"}, 1, false},
		{"multiple vars", []string{"k1=v1", "k2=v2"}, 2, false},
		{"comma separated", []string{"k1=v1,k2=v2"}, 2, false},
		{"empty value", []string{"key="}, 1, false},
		{"missing equals", []string{"invalid"}, 0, true},
		{"empty key", []string{"=value"}, 0, true},
		{"empty input", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseVarFlags(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseVarFlags() error = %v, wantErr = %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && len(result) != tt.wantLen {
				t.Errorf("parseVarFlags() = %d vars, want %d", len(result), tt.wantLen)
			}
		})
	}
}

func TestNormalizeScriptName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple name", "myscript", false},
		{"with dashes", "my-script", false},
		{"with underscores", "my_script", false},
		{"empty", "", true},
		{"whitespace only", "   ", true},
		{"with slash", "foo/bar", true},
		{"with dots", "foo..bar", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := normalizeScriptName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("normalizeScriptName(%q) error = %v, wantErr = %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestScriptSourceLabel(t *testing.T) {
	paths := []string{
		"/project/.rigger/scripts",
		"/home/user/.config/rigger/scripts",
		"/usr/share/rigger/scripts",
		"/opt/lab/scripts",
	}

	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"builtin", "builtin", "builtin"},
		{"project script", "/project/.rigger/scripts/foo.yaml", "project"},
		{"user script", "/home/user/.config/rigger/scripts/foo.yaml", "user"},
		{"system script", "/usr/share/rigger/scripts/foo.yaml", "system"},
		{"configured extra", "/opt/lab/scripts/foo.yaml", "config"},
		{"other file", "/some/other/path.yaml", "file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := scriptSourceLabel(tt.source, paths)
			if result != tt.want {
				t.Errorf("scriptSourceLabel() = %q, want %q", result, tt.want)
			}
		})
	}
}

func TestFormatScriptStep(t *testing.T) {
	tests := []struct {
		name string
		step script.Step
		want string
	}{
		{"exec", script.Step{Type: script.StepTypeExec, Command: "make flash"}, "[exec] make flash"},
		{"send", script.Step{Type: script.StepTypeSend, Send: "reset"}, "[send] reset"},
		{"delay", script.Step{Type: script.StepTypeDelay, Duration: "500ms"}, "[delay] 500ms"},
		{"repeat", script.Step{Type: script.StepTypeRepeat, Count: 3}, "[repeat x3]"},
		{"repeat with delay", script.Step{Type: script.StepTypeRepeat, Count: 3, Duration: "1s"}, "[repeat x3 every 1s]"},
		{"wait exit", script.Step{Type: script.StepTypeWaitExit}, "[wait_exit]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatScriptStep(tt.step)
			if got != tt.want {
				t.Errorf("formatScriptStep() = %q, want %q", got, tt.want)
			}
		})
	}
}

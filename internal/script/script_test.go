package script

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "example.yaml")

	yamlSrc := `name: example
description: Example script
vars:
  - name: target
    default: "dev1"
steps:
  - type: log
    message: "starting {{.target}}"
  - type: SEND
    send: "ping {{.target}}"
  - type: repeat
    count: 3
    duration: 500ms
    steps:
      - type: delay
        duration: 1s
      - type: send
        send: "poll"
  - type: wait_exit
`

	if err := os.WriteFile(path, []byte(yamlSrc), 0644); err != nil {
		t.Fatalf("write script: %v", err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if s.Name != "example" {
		t.Fatalf("expected name example, got %q", s.Name)
	}
	if s.Source != path {
		t.Fatalf("expected source %q, got %q", path, s.Source)
	}
	if s.Steps[1].Type != StepTypeSend {
		t.Fatalf("expected type folding to %q, got %q", StepTypeSend, s.Steps[1].Type)
	}
	if got := len(s.Steps[2].Steps); got != 2 {
		t.Fatalf("expected 2 nested steps, got %d", got)
	}
	if got := CountSteps(s.Steps); got != 6 {
		t.Fatalf("expected 6 total steps, got %d", got)
	}
}

func TestParseScriptRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		src  string
	}{
		{
			"missing name",
			"steps:\n  - type: wait_exit\n",
		},
		{
			"missing steps",
			"name: empty\n",
		},
		{
			"unknown type",
			"name: bad\nsteps:\n  - type: teleport\n",
		},
		{
			"exec without command",
			"name: bad\nsteps:\n  - type: exec\n",
		},
		{
			"send without text",
			"name: bad\nsteps:\n  - type: send\n",
		},
		{
			"delay without duration",
			"name: bad\nsteps:\n  - type: delay\n",
		},
		{
			"delay with bad duration",
			"name: bad\nsteps:\n  - type: delay\n    duration: soon\n",
		},
		{
			"delay with zero duration",
			"name: bad\nsteps:\n  - type: delay\n    duration: 0s\n",
		},
		{
			"repeat without body",
			"name: bad\nsteps:\n  - type: repeat\n    count: 2\n",
		},
		{
			"repeat with negative count",
			"name: bad\nsteps:\n  - type: repeat\n    count: -1\n    steps:\n      - type: wait_exit\n",
		},
		{
			"nested steps on send",
			"name: bad\nsteps:\n  - type: send\n    send: hi\n    steps:\n      - type: wait_exit\n",
		},
		{
			"duplicate variable",
			"name: bad\nvars:\n  - name: x\n  - name: x\nsteps:\n  - type: wait_exit\n",
		},
	}

	for _, tc := range cases {
		if _, err := parseScript([]byte(tc.src)); err == nil {
			t.Errorf("%s: expected parse error", tc.name)
		}
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()

	writeScript := func(file, name string) {
		src := "name: " + name + "\nsteps:\n  - type: send\n    send: ping\n"
		if err := os.WriteFile(filepath.Join(dir, file), []byte(src), 0644); err != nil {
			t.Fatalf("write %s: %v", file, err)
		}
	}
	writeScript("b.yaml", "bravo")
	writeScript("a.yml", "alpha")
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not a script"), 0644); err != nil {
		t.Fatalf("write notes: %v", err)
	}

	scripts, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(scripts) != 2 {
		t.Fatalf("expected 2 scripts, got %d", len(scripts))
	}
	if scripts[0].Name != "alpha" || scripts[1].Name != "bravo" {
		t.Fatalf("expected sorted names alpha,bravo, got %s,%s", scripts[0].Name, scripts[1].Name)
	}
}

func TestLoadDirMissing(t *testing.T) {
	scripts, err := LoadDir(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(scripts) != 0 {
		t.Fatalf("expected no scripts, got %d", len(scripts))
	}
}

func TestLoadBuiltins(t *testing.T) {
	scripts, err := LoadBuiltins()
	if err != nil {
		t.Fatalf("LoadBuiltins: %v", err)
	}
	if len(scripts) < 4 {
		t.Fatalf("expected at least 4 builtin scripts, got %d", len(scripts))
	}

	names := make(map[string]bool)
	for _, s := range scripts {
		if s.Source != "builtin" {
			t.Fatalf("expected builtin source, got %q", s.Source)
		}
		if s.Name == "" {
			t.Fatal("builtin script missing name")
		}
		names[s.Name] = true
	}
	for _, want := range []string{"smoke-test", "reset-cycle", "drain-exit", "flash-verify"} {
		if !names[want] {
			t.Errorf("missing builtin script %q", want)
		}
	}
}

func TestSearchPathPrecedence(t *testing.T) {
	projectDir := t.TempDir()
	scriptsDir := filepath.Join(projectDir, ".rigger", "scripts")
	if err := os.MkdirAll(scriptsDir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	src := `name: smoke-test
description: project override
steps:
  - type: send
    send: "custom probe"
`
	path := filepath.Join(scriptsDir, "smoke-test.yaml")
	if err := os.WriteFile(path, []byte(src), 0644); err != nil {
		t.Fatalf("write override: %v", err)
	}

	s, err := Find(projectDir, "smoke-test")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if s.Source != path {
		t.Fatalf("expected project override to win, got source %q", s.Source)
	}
	if s.Description != "project override" {
		t.Fatalf("unexpected description %q", s.Description)
	}

	if _, err := Find(projectDir, "no-such-script"); !errors.Is(err, ErrScriptNotFound) {
		t.Fatalf("expected ErrScriptNotFound, got %v", err)
	}
}

func TestConfiguredExtraPaths(t *testing.T) {
	projectDir := t.TempDir()
	extraDir := t.TempDir()

	src := `name: lab-only
description: from a configured directory
steps:
  - type: log
    message: "hello"
`
	path := filepath.Join(extraDir, "lab-only.yaml")
	if err := os.WriteFile(path, []byte(src), 0644); err != nil {
		t.Fatalf("write script: %v", err)
	}

	if _, err := Find(projectDir, "lab-only"); !errors.Is(err, ErrScriptNotFound) {
		t.Fatalf("expected ErrScriptNotFound without extra path, got %v", err)
	}

	s, err := Find(projectDir, "lab-only", extraDir)
	if err != nil {
		t.Fatalf("Find with extra path: %v", err)
	}
	if s.Source != path {
		t.Fatalf("unexpected source %q", s.Source)
	}

	// Standard locations shadow configured extras on name collisions.
	scriptsDir := filepath.Join(projectDir, ".rigger", "scripts")
	if err := os.MkdirAll(scriptsDir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	override := filepath.Join(scriptsDir, "lab-only.yaml")
	if err := os.WriteFile(override, []byte(src), 0644); err != nil {
		t.Fatalf("write override: %v", err)
	}
	s, err = Find(projectDir, "lab-only", extraDir)
	if err != nil {
		t.Fatalf("Find with override: %v", err)
	}
	if s.Source != override {
		t.Fatalf("expected project copy to win, got source %q", s.Source)
	}

	paths := SearchPaths(projectDir, extraDir, "", "  ")
	if paths[len(paths)-1] != extraDir {
		t.Fatalf("expected extra dir last, got %v", paths)
	}
}

func TestRenderDefaults(t *testing.T) {
	s := &Script{
		Name: "render",
		Vars: []Variable{
			{Name: "who", Default: "bridge"},
			{Name: "image", Required: true},
		},
	}

	if _, err := resolveVars(s, nil); err == nil || !strings.Contains(err.Error(), "image") {
		t.Fatalf("expected missing required variable error, got %v", err)
	}

	data, err := resolveVars(s, map[string]string{"image": "fw.bin"})
	if err != nil {
		t.Fatalf("resolveVars: %v", err)
	}
	if data["who"] != "bridge" {
		t.Fatalf("expected default applied, got %q", data["who"])
	}

	text, err := renderText("t", `hello {{.who}} {{.missing | default "fallback"}}`, data)
	if err != nil {
		t.Fatalf("renderText: %v", err)
	}
	if text != "hello bridge fallback" {
		t.Fatalf("unexpected rendering %q", text)
	}
}

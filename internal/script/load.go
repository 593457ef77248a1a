package script

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads a single script from disk.
func Load(path string) (*Script, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("script path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script %s: %w", path, err)
	}

	s, err := parseScript(data)
	if err != nil {
		return nil, fmt.Errorf("parse script %s: %w", path, err)
	}
	s.Source = path
	return s, nil
}

// LoadDir loads all scripts from a directory, sorted by name. A missing
// directory yields an empty list.
func LoadDir(dir string) ([]*Script, error) {
	if strings.TrimSpace(dir) == "" {
		return []*Script{}, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*Script{}, nil
		}
		return nil, fmt.Errorf("read scripts dir %s: %w", dir, err)
	}

	scripts := make([]*Script, 0)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		s, err := Load(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		scripts = append(scripts, s)
	}

	sort.Slice(scripts, func(i, j int) bool {
		return scripts[i].Name < scripts[j].Name
	})

	return scripts, nil
}

func parseScript(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, err
	}

	s.Name = strings.TrimSpace(s.Name)
	if s.Name == "" {
		return nil, fmt.Errorf("script name is required")
	}
	s.Description = strings.TrimSpace(s.Description)

	if len(s.Steps) == 0 {
		return nil, fmt.Errorf("script steps are required")
	}

	seen := make(map[string]struct{})
	for i := range s.Vars {
		name := strings.TrimSpace(s.Vars[i].Name)
		if name == "" {
			return nil, fmt.Errorf("script variable name is required")
		}
		if _, exists := seen[name]; exists {
			return nil, fmt.Errorf("duplicate script variable %q", name)
		}
		seen[name] = struct{}{}
		s.Vars[i].Name = name
	}

	for i := range s.Steps {
		if err := normalizeStep(&s.Steps[i]); err != nil {
			return nil, fmt.Errorf("script step %d: %w", i+1, err)
		}
	}

	return &s, nil
}

func normalizeStep(step *Step) error {
	stepType := strings.ToLower(strings.TrimSpace(string(step.Type)))
	step.Type = StepType(stepType)

	step.Command = strings.TrimSpace(step.Command)
	step.Send = strings.TrimSpace(step.Send)
	step.Message = strings.TrimSpace(step.Message)
	step.Duration = strings.TrimSpace(step.Duration)

	if step.Type != StepTypeRepeat && len(step.Steps) > 0 {
		return fmt.Errorf("%s step cannot have nested steps", step.Type)
	}

	switch step.Type {
	case StepTypeExec:
		if step.Command == "" {
			return fmt.Errorf("exec command is required")
		}

	case StepTypeSend:
		if step.Send == "" {
			return fmt.Errorf("send text is required")
		}

	case StepTypeLog:
		if step.Message == "" {
			return fmt.Errorf("log message is required")
		}

	case StepTypeDelay:
		if step.Duration == "" {
			return fmt.Errorf("delay duration is required")
		}
		duration, err := time.ParseDuration(step.Duration)
		if err != nil {
			return fmt.Errorf("invalid delay duration: %w", err)
		}
		if duration <= 0 {
			return fmt.Errorf("delay duration must be greater than 0")
		}

	case StepTypeRepeat:
		if step.Count < 0 {
			return fmt.Errorf("repeat count must not be negative")
		}
		if len(step.Steps) == 0 {
			return fmt.Errorf("repeat body is required")
		}
		if step.Duration != "" {
			duration, err := time.ParseDuration(step.Duration)
			if err != nil {
				return fmt.Errorf("invalid repeat duration: %w", err)
			}
			if duration < 0 {
				return fmt.Errorf("repeat duration must not be negative")
			}
		}
		for i := range step.Steps {
			if err := normalizeStep(&step.Steps[i]); err != nil {
				return fmt.Errorf("repeat step %d: %w", i+1, err)
			}
		}

	case StepTypeWaitExit:
		// No fields to validate.

	default:
		return fmt.Errorf("unknown step type %q", step.Type)
	}

	return nil
}

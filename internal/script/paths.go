package script

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrScriptNotFound indicates no script with the requested name exists
// in the search paths or builtins.
var ErrScriptNotFound = errors.New("script not found")

// SearchPaths returns script search directories in precedence order.
// Extra directories, typically from configuration, rank after the
// standard locations.
func SearchPaths(projectDir string, extra ...string) []string {
	paths := make([]string, 0, 3+len(extra))
	if projectDir != "" {
		paths = append(paths, filepath.Join(projectDir, ".rigger", "scripts"))
	}

	if home, err := os.UserHomeDir(); err == nil && home != "" {
		paths = append(paths, filepath.Join(home, ".config", "rigger", "scripts"))
	}

	paths = append(paths, filepath.Join(string(filepath.Separator), "usr", "share", "rigger", "scripts"))

	for _, dir := range extra {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		paths = append(paths, dir)
	}
	return paths
}

// LoadFromSearchPaths loads scripts from the search paths plus builtins,
// with first-hit precedence on name collisions.
func LoadFromSearchPaths(projectDir string, extra ...string) ([]*Script, error) {
	paths := SearchPaths(projectDir, extra...)
	seen := make(map[string]*Script)
	order := make([]string, 0)

	for _, path := range paths {
		scripts, err := LoadDir(path)
		if err != nil {
			return nil, err
		}
		for _, s := range scripts {
			if _, exists := seen[s.Name]; exists {
				continue
			}
			seen[s.Name] = s
			order = append(order, s.Name)
		}
	}

	builtins, err := LoadBuiltins()
	if err != nil {
		return nil, err
	}
	for _, s := range builtins {
		if _, exists := seen[s.Name]; exists {
			continue
		}
		seen[s.Name] = s
		order = append(order, s.Name)
	}

	resolved := make([]*Script, 0, len(order))
	for _, name := range order {
		resolved = append(resolved, seen[name])
	}

	return resolved, nil
}

// Find returns the named script from the search paths and builtins.
func Find(projectDir, name string, extra ...string) (*Script, error) {
	scripts, err := LoadFromSearchPaths(projectDir, extra...)
	if err != nil {
		return nil, err
	}
	for _, s := range scripts {
		if s.Name == name {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrScriptNotFound, name)
}

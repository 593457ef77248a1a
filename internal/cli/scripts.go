// Package cli provides script listing and inspection commands.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fieldprobe/rigger/internal/script"
)

var scriptsListTags []string

func init() {
	rootCmd.AddCommand(scriptsCmd)
	scriptsCmd.AddCommand(scriptsListCmd)
	scriptsCmd.AddCommand(scriptsShowCmd)

	scriptsListCmd.Flags().StringSliceVar(&scriptsListTags, "tag", nil, "filter by tag (repeatable)")
}

var scriptsCmd = &cobra.Command{
	Use:   "scripts",
	Short: "Manage scripts",
	Long:  "List and inspect the scripts found in the search paths and built in.",
}

var scriptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available scripts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		items, err := script.LoadFromSearchPaths(cwd, GetConfig().Scripts.Paths...)
		if err != nil {
			return err
		}
		items = filterScripts(items, scriptsListTags)

		paths := script.SearchPaths(cwd, GetConfig().Scripts.Paths...)
		rows := make([][]string, 0, len(items))
		for _, s := range items {
			rows = append(rows, []string{
				s.Name,
				scriptSourceLabel(s.Source, paths),
				strings.Join(s.Tags, ","),
				fmt.Sprintf("%d", script.CountSteps(s.Steps)),
				s.Description,
			})
		}
		return writeTable(os.Stdout, []string{"NAME", "SOURCE", "TAGS", "STEPS", "DESCRIPTION"}, rows)
	},
}

var scriptsShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a script's variables and steps",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, err := normalizeScriptName(args[0])
		if err != nil {
			return err
		}
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		items, err := script.LoadFromSearchPaths(cwd, GetConfig().Scripts.Paths...)
		if err != nil {
			return err
		}
		s := findScriptByName(items, name)
		if s == nil {
			return fmt.Errorf("script %q not found", name)
		}

		details := [][2]string{
			{"Name", s.Name},
			{"Description", s.Description},
			{"Source", s.Source},
			{"Tags", strings.Join(s.Tags, ", ")},
		}
		if err := writeKeyValues(os.Stdout, details); err != nil {
			return err
		}

		if len(s.Vars) > 0 {
			fmt.Println("\nVariables:")
			rows := make([][]string, 0, len(s.Vars))
			for _, v := range s.Vars {
				rows = append(rows, []string{v.Name, v.Default, formatYesNo(v.Required), v.Description})
			}
			if err := writeTable(os.Stdout, []string{"NAME", "DEFAULT", "REQUIRED", "DESCRIPTION"}, rows); err != nil {
				return err
			}
		}

		fmt.Println("\nSteps:")
		printSteps(s.Steps, 1)
		return nil
	},
}

func printSteps(steps []script.Step, indent int) {
	prefix := strings.Repeat("  ", indent)
	for _, step := range steps {
		fmt.Printf("%s%s\n", prefix, formatScriptStep(step))
		if len(step.Steps) > 0 {
			printSteps(step.Steps, indent+1)
		}
	}
}

func formatScriptStep(step script.Step) string {
	switch step.Type {
	case script.StepTypeExec:
		return fmt.Sprintf("[exec] %s", step.Command)
	case script.StepTypeSend:
		return fmt.Sprintf("[send] %s", step.Send)
	case script.StepTypeLog:
		return fmt.Sprintf("[log] %s", step.Message)
	case script.StepTypeDelay:
		return fmt.Sprintf("[delay] %s", step.Duration)
	case script.StepTypeRepeat:
		if step.Duration != "" {
			return fmt.Sprintf("[repeat x%d every %s]", step.Count, step.Duration)
		}
		return fmt.Sprintf("[repeat x%d]", step.Count)
	case script.StepTypeWaitExit:
		return "[wait_exit]"
	default:
		return fmt.Sprintf("[%s]", step.Type)
	}
}

// filterScripts keeps scripts carrying at least one of the wanted tags.
func filterScripts(items []*script.Script, tags []string) []*script.Script {
	if len(tags) == 0 {
		return items
	}
	wanted := make(map[string]bool, len(tags))
	for _, tag := range tags {
		wanted[strings.ToLower(strings.TrimSpace(tag))] = true
	}

	var filtered []*script.Script
	for _, s := range items {
		for _, tag := range s.Tags {
			if wanted[strings.ToLower(tag)] {
				filtered = append(filtered, s)
				break
			}
		}
	}
	return filtered
}

func findScriptByName(items []*script.Script, name string) *script.Script {
	for _, s := range items {
		if strings.EqualFold(s.Name, name) {
			return s
		}
	}
	return nil
}

func normalizeScriptName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", fmt.Errorf("script name is required")
	}
	if strings.ContainsAny(trimmed, "/\\") || strings.Contains(trimmed, "..") {
		return "", fmt.Errorf("invalid script name %q", name)
	}
	return trimmed, nil
}

// parseVarFlags turns --var key=value flags into a variable map.
// Values may bundle several pairs separated by commas.
func parseVarFlags(values []string) (map[string]string, error) {
	vars := make(map[string]string)
	for _, raw := range values {
		for _, pair := range strings.Split(raw, ",") {
			pair = strings.TrimSpace(pair)
			if pair == "" {
				continue
			}
			key, value, ok := strings.Cut(pair, "=")
			if !ok {
				return nil, fmt.Errorf("invalid variable %q, expected key=value", pair)
			}
			key = strings.TrimSpace(key)
			if key == "" {
				return nil, fmt.Errorf("invalid variable %q, key must not be empty", pair)
			}
			vars[key] = value
		}
	}
	return vars, nil
}

// scriptSourceLabel names where a script came from. paths is the
// search path list, most specific first (project, user, system, then
// any configured extras).
func scriptSourceLabel(source string, paths []string) string {
	if source == "builtin" {
		return "builtin"
	}
	labels := []string{"project", "user", "system"}
	for i, dir := range paths {
		if dir == "" || !strings.HasPrefix(source, dir+string(os.PathSeparator)) {
			continue
		}
		if i < len(labels) {
			return labels[i]
		}
		return "config"
	}
	return "file"
}

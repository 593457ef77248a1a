// Package script provides loading, rendering, and compilation of YAML
// step scripts into runnable programs.
package script

// Script is an ordered list of program steps plus template variables.
type Script struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Vars        []Variable `yaml:"vars,omitempty"`
	Steps       []Step     `yaml:"steps"`
	Tags        []string   `yaml:"tags,omitempty"`
	Source      string     // file path or "builtin"
}

// Step represents a single operation in a script.
type Step struct {
	Type            StepType `yaml:"type"`
	Command         string   `yaml:"command,omitempty"`
	Send            string   `yaml:"send,omitempty"`
	Message         string   `yaml:"message,omitempty"`
	Duration        string   `yaml:"duration,omitempty"`
	Count           int      `yaml:"count,omitempty"`
	ContinueOnError bool     `yaml:"continue_on_error,omitempty"`
	Steps           []Step   `yaml:"steps,omitempty"`
}

// Variable describes a template variable used in a script.
type Variable struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Default     string `yaml:"default,omitempty"`
	Required    bool   `yaml:"required"`
}

// StepType defines the kind of script step.
type StepType string

const (
	StepTypeExec     StepType = "exec"
	StepTypeSend     StepType = "send"
	StepTypeLog      StepType = "log"
	StepTypeDelay    StepType = "delay"
	StepTypeRepeat   StepType = "repeat"
	StepTypeWaitExit StepType = "wait_exit"
)

// CountSteps returns the number of steps including nested repeat bodies.
func CountSteps(steps []Step) int {
	total := 0
	for _, step := range steps {
		total++
		if len(step.Steps) > 0 {
			total += CountSteps(step.Steps)
		}
	}
	return total
}

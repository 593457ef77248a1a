// Package cli provides the validate command.
package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/fieldprobe/rigger/internal/script"
)

var validateVars []string

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringArrayVar(&validateVars, "var", nil, "script variable as key=value (repeatable)")
}

var validateCmd = &cobra.Command{
	Use:   "validate <script>",
	Short: "Check a script without running it",
	Long:  "Parse, render, and compile a script, reporting problems without touching a bridge.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadScript(args[0])
		if err != nil {
			return err
		}
		vars, err := parseVarFlags(validateVars)
		if err != nil {
			return err
		}

		prog, err := script.Compile(s, vars, script.Deps{Conn: checkConn{}, Stdout: io.Discard})
		if err != nil {
			return err
		}

		fmt.Printf("%s: ok (%d program nodes)\n", s.Name, prog.Steps())
		return nil
	},
}

// checkConn stands in for a bridge during compile-only checks.
type checkConn struct{}

func (checkConn) Send(string) error       { return nil }
func (checkConn) OnExit(func(status int)) {}
func (checkConn) Output() []string        { return nil }

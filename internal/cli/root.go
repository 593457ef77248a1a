// Package cli implements the rigger command tree.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fieldprobe/rigger/internal/config"
	"github.com/fieldprobe/rigger/internal/journal"
	"github.com/fieldprobe/rigger/internal/logging"
)

// Version is the rigger build version, overridden at release time.
var Version = "dev"

var (
	cfgFile       string
	logLevelFlag  string
	logFormatFlag string
	noProgress    bool

	appConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "rigger",
	Short: "Drive bridge hardware through scripted command runs",
	Long: "Rigger compiles YAML scripts into step programs and drives them\n" +
		"against a bridge process, one step per tick on a timer loop.\n" +
		"Every run can be journaled for later inspection.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		flags := rootCmd.PersistentFlags()
		if flags.Changed("log-level") {
			cfg.LogLevel = logLevelFlag
		}
		if flags.Changed("log-format") {
			cfg.LogFormat = logFormatFlag
		}
		logging.Setup(cfg.LogLevel, cfg.LogFormat)
		appConfig = cfg
		return nil
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.config/rigger/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormatFlag, "log-format", "console", "log format (console, json)")
	rootCmd.PersistentFlags().BoolVar(&noProgress, "no-progress", false, "disable progress output")
}

// Execute runs the rigger command tree.
func Execute() error {
	return rootCmd.Execute()
}

// GetConfig returns the loaded configuration. Commands run through
// Execute always see the config the root command loaded.
func GetConfig() *config.Config {
	if appConfig == nil {
		cfg, err := config.Load("")
		if err != nil {
			cfg = &config.Config{}
		}
		appConfig = cfg
	}
	return appConfig
}

// openJournal opens the journal database at path, falling back to the
// configured location, and applies pending migrations.
func openJournal(path string) (*journal.DB, error) {
	if path == "" {
		path = GetConfig().Journal.Path
	}
	if path == "" {
		path = config.DefaultJournalPath()
	}

	database, err := journal.Open(path, logging.Component("journal"))
	if err != nil {
		return nil, err
	}
	if _, err := database.MigrateUp(context.Background()); err != nil {
		database.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return database, nil
}

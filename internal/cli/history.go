// Package cli provides journal inspection commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fieldprobe/rigger/internal/journal"
)

var (
	historyRunID       string
	historyLimit       int
	historyType        string
	historyJSON        bool
	historyFollow      bool
	historyJournalPath string
)

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVar(&historyRunID, "run", "", "show events for one run id")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 0, "maximum rows to return")
	historyCmd.Flags().StringVar(&historyType, "type", "", "filter events by type (step.execute, run.halted, ...)")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "emit results as JSON lines")
	historyCmd.Flags().BoolVar(&historyFollow, "follow", false, "stream new events as they are journaled")
	historyCmd.Flags().StringVar(&historyJournalPath, "journal", "", "journal database path")
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect journaled runs",
	Long:  "List past runs, show the events of a run, or follow new events as JSON lines.",
	Example: `  # Recent runs
  rigger history

  # Every event of one run, as JSON lines
  rigger history --run 7c9e1a42-3b77-4a0f-9b6e-2f1d8c9a5e01 --json

  # Follow new execute events as they land
  rigger history --follow --type step.execute`,
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openJournal(historyJournalPath)
		if err != nil {
			return err
		}
		defer database.Close()

		repo := journal.NewRepository(database)
		ctx := cmd.Context()

		if historyFollow {
			return followEvents(ctx, repo)
		}
		if historyRunID != "" {
			return printRunEvents(ctx, repo)
		}
		return printRuns(ctx, repo)
	},
}

func followEvents(parent context.Context, repo *journal.Repository) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	config := DefaultStreamConfig()
	config.RunID = historyRunID
	if historyType != "" {
		eventType := journal.EventType(historyType)
		config.Type = &eventType
	}
	if historyLimit > 0 {
		config.BatchSize = historyLimit
	}

	streamer := NewEventStreamer(repo, os.Stdout, config)
	return streamer.Stream(ctx)
}

func printRunEvents(ctx context.Context, repo *journal.Repository) error {
	var events []*journal.StepEvent
	if historyType != "" {
		eventType := journal.EventType(historyType)
		page, err := repo.QueryEvents(ctx, journal.Query{
			RunID: historyRunID,
			Type:  &eventType,
			Limit: historyLimit,
		})
		if err != nil {
			return err
		}
		events = page.Events
	} else {
		listed, err := repo.ListByRun(ctx, historyRunID, historyLimit)
		if err != nil {
			return err
		}
		events = listed
	}

	if historyJSON {
		encoder := json.NewEncoder(os.Stdout)
		for _, event := range events {
			if err := encoder.Encode(event); err != nil {
				return err
			}
		}
		return nil
	}

	rows := make([][]string, 0, len(events))
	for _, event := range events {
		rows = append(rows, []string{
			fmt.Sprintf("%d", event.Seq),
			string(event.Type),
			event.At.Local().Format("15:04:05.000"),
			string(event.Payload),
		})
	}
	return writeTable(os.Stdout, []string{"SEQ", "TYPE", "AT", "PAYLOAD"}, rows)
}

func printRuns(ctx context.Context, repo *journal.Repository) error {
	runs, err := repo.Runs(ctx, historyLimit)
	if err != nil {
		return err
	}

	if historyJSON {
		encoder := json.NewEncoder(os.Stdout)
		for _, run := range runs {
			if err := encoder.Encode(run); err != nil {
				return err
			}
		}
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			run.RunID,
			fmt.Sprintf("%d", run.Events),
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			formatDuration(run.EndedAt.Sub(run.StartedAt)),
		})
	}
	return writeTable(os.Stdout, []string{"RUN", "EVENTS", "STARTED", "DURATION"}, rows)
}

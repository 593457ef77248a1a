// Package cli provides event streaming for the history command.
package cli

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/fieldprobe/rigger/internal/journal"
)

// StreamConfig controls how journal events are followed.
type StreamConfig struct {
	// PollInterval is how often to check for new events.
	PollInterval time.Duration

	// BatchSize caps the events fetched per poll.
	BatchSize int

	// RunID restricts the stream to one run when set.
	RunID string

	// Type restricts the stream to one event type when set.
	Type *journal.EventType

	// IncludeExisting replays already-journaled events before
	// following new ones.
	IncludeExisting bool
}

// DefaultStreamConfig returns the standard streaming configuration.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		PollInterval: 500 * time.Millisecond,
		BatchSize:    100,
	}
}

// EventStreamer polls the journal and writes events as JSON lines.
type EventStreamer struct {
	repo   *journal.Repository
	out    io.Writer
	config StreamConfig
}

// NewEventStreamer creates a streamer writing to out.
func NewEventStreamer(repo *journal.Repository, out io.Writer, config StreamConfig) *EventStreamer {
	if config.PollInterval <= 0 {
		config.PollInterval = 500 * time.Millisecond
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	return &EventStreamer{
		repo:   repo,
		out:    out,
		config: config,
	}
}

// Stream follows the journal until ctx ends. Cancellation is the
// normal way to stop; it returns nil.
func (s *EventStreamer) Stream(ctx context.Context) error {
	var since *time.Time
	if !s.config.IncludeExisting {
		now := time.Now().UTC()
		since = &now
	}

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	cursor := ""
	for {
		events, next, err := s.poll(ctx, cursor, since)
		if err != nil {
			return err
		}
		for _, event := range events {
			if err := s.writeEvent(event); err != nil {
				return err
			}
		}
		if len(events) > 0 {
			cursor = next
			since = nil
			// A full batch means more may be waiting; drain before
			// sleeping.
			if len(events) == s.config.BatchSize {
				continue
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// poll fetches the next batch after cursor. The returned cursor is the
// last event seen, so repeated polls never replay events.
func (s *EventStreamer) poll(ctx context.Context, cursor string, since *time.Time) ([]*journal.StepEvent, string, error) {
	page, err := s.repo.QueryEvents(ctx, journal.Query{
		RunID:  s.config.RunID,
		Type:   s.config.Type,
		Since:  since,
		Cursor: cursor,
		Limit:  s.config.BatchSize,
	})
	if err != nil {
		return nil, "", err
	}

	next := cursor
	if len(page.Events) > 0 {
		next = page.Events[len(page.Events)-1].ID
	}
	return page.Events, next, nil
}

func (s *EventStreamer) writeEvent(event *journal.StepEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = s.out.Write(data)
	return err
}

package journal

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/fieldprobe/rigger/internal/engine"
)

// Sink persists engine run events through the journal repository. It
// implements engine.EventSink; closing the sink closes the database.
type Sink struct {
	mu       sync.Mutex
	repo     *Repository
	database *DB
	metadata map[string]string
	closed   bool
}

// NewSink creates a journal-backed engine sink. The metadata, when
// present, is stored on every entry.
func NewSink(database *DB, metadata map[string]string) *Sink {
	var repo *Repository
	if database != nil {
		repo = NewRepository(database)
	}

	return &Sink{
		repo:     repo,
		database: database,
		metadata: metadata,
	}
}

// stepDetail is the JSON payload stored for engine events.
type stepDetail struct {
	Value     int64  `json:"value"`
	Proceed   bool   `json:"proceed"`
	Delay     string `json:"delay,omitempty"`
	Depth     int    `json:"depth,omitempty"`
	Remaining int    `json:"remaining,omitempty"`
	Status    int    `json:"status,omitempty"`
}

// Emit persists one engine event.
func (s *Sink) Emit(ctx context.Context, event engine.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.repo == nil {
		return errors.New("journal repository is required")
	}
	if s.closed {
		return errors.New("journal sink closed")
	}

	detail := stepDetail{
		Value:     event.Value,
		Proceed:   event.Proceed,
		Depth:     event.Depth,
		Remaining: event.Remaining,
		Status:    event.Status,
	}
	if event.Delay > 0 {
		detail.Delay = event.Delay.String()
	}
	payload, err := json.Marshal(detail)
	if err != nil {
		return err
	}

	return s.repo.Append(ctx, &StepEvent{
		RunID:    event.RunID,
		Seq:      event.Seq,
		Type:     EventType(event.Type),
		At:       event.Timestamp,
		Payload:  payload,
		Metadata: s.metadata,
	})
}

// Close closes the underlying database connection if present.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.database != nil {
		return s.database.Close()
	}
	return nil
}

var _ engine.EventSink = (*Sink)(nil)

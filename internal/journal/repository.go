package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Journal errors.
var (
	ErrEventNotFound = errors.New("journal event not found")
	ErrInvalidEvent  = errors.New("invalid journal event")
)

// timeLayout pads fractional seconds so stored timestamps sort
// lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Repository handles step event persistence.
type Repository struct {
	db *DB
}

// NewRepository creates a Repository over db.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// Query defines filters for reading back step events.
type Query struct {
	RunID  string     // Filter by run
	Type   *EventType // Filter by event type
	Since  *time.Time // Events at or after this time (inclusive)
	Until  *time.Time // Events before this time (exclusive)
	Cursor string     // Pagination cursor (event ID)
	Limit  int        // Max results to return
}

// Page represents a page of query results.
type Page struct {
	Events     []*StepEvent
	NextCursor string
}

// RunSummary describes one run recorded in the journal.
type RunSummary struct {
	RunID     string
	Events    int
	StartedAt time.Time
	EndedAt   time.Time
}

// Append adds a step event to the journal.
// Returns ErrInvalidEvent if required fields are missing.
func (r *Repository) Append(ctx context.Context, event *StepEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	} else {
		event.At = event.At.UTC()
	}

	var payloadJSON *string
	if len(event.Payload) > 0 {
		s := string(event.Payload)
		payloadJSON = &s
	}

	var metadataJSON *string
	if event.Metadata != nil {
		data, err := json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		s := string(data)
		metadataJSON = &s
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO step_events (
			id, run_id, seq, type, at, payload_json, metadata_json
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		event.ID,
		event.RunID,
		event.Seq,
		string(event.Type),
		event.At.Format(timeLayout),
		payloadJSON,
		metadataJSON,
	)
	if err != nil {
		return fmt.Errorf("insert step event: %w", err)
	}

	return nil
}

// Get retrieves a step event by ID.
func (r *Repository) Get(ctx context.Context, id string) (*StepEvent, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, run_id, seq, type, at, payload_json, metadata_json
		FROM step_events WHERE id = ?
	`, id)

	event, err := r.scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return event, nil
}

// ListByRun retrieves a run's events in sequence order.
func (r *Repository) ListByRun(ctx context.Context, runID string, limit int) ([]*StepEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, run_id, seq, type, at, payload_json, metadata_json
		FROM step_events
		WHERE run_id = ?
		ORDER BY seq
		LIMIT ?
	`, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("query step events: %w", err)
	}
	defer rows.Close()

	return r.collectEvents(rows)
}

// QueryEvents retrieves events matching q with cursor-based pagination.
func (r *Repository) QueryEvents(ctx context.Context, q Query) (*Page, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, run_id, seq, type, at, payload_json, metadata_json FROM step_events WHERE 1=1`
	args := []any{}

	if q.RunID != "" {
		query += ` AND run_id = ?`
		args = append(args, q.RunID)
	}
	if q.Type != nil {
		query += ` AND type = ?`
		args = append(args, string(*q.Type))
	}
	if q.Since != nil {
		query += ` AND at >= ?`
		args = append(args, q.Since.UTC().Format(timeLayout))
	}
	if q.Until != nil {
		query += ` AND at < ?`
		args = append(args, q.Until.UTC().Format(timeLayout))
	}
	if q.Cursor != "" {
		// Resume strictly after the cursor event in (at, id) order.
		query += ` AND (at, id) > (SELECT at, id FROM step_events WHERE id = ?)`
		args = append(args, q.Cursor)
	}

	query += ` ORDER BY at, id LIMIT ?`
	args = append(args, limit+1) // one extra row decides whether a next page exists

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query step events: %w", err)
	}
	defer rows.Close()

	events, err := r.collectEvents(rows)
	if err != nil {
		return nil, err
	}

	page := &Page{}
	if len(events) > limit {
		page.Events = events[:limit]
		page.NextCursor = events[limit-1].ID
	} else {
		page.Events = events
	}

	return page, nil
}

// Runs lists recent runs, newest first.
func (r *Repository) Runs(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT run_id, COUNT(*), MIN(at), MAX(at)
		FROM step_events
		GROUP BY run_id
		ORDER BY MAX(at) DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var summary RunSummary
		var started, ended string
		if err := rows.Scan(&summary.RunID, &summary.Events, &started, &ended); err != nil {
			return nil, fmt.Errorf("scan run summary: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, started); err == nil {
			summary.StartedAt = t
		}
		if t, err := time.Parse(time.RFC3339Nano, ended); err == nil {
			summary.EndedAt = t
		}
		runs = append(runs, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	return runs, nil
}

// rowScanner covers both sql.Row and sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func (r *Repository) scanEvent(row rowScanner) (*StepEvent, error) {
	var event StepEvent
	var at, eventType string
	var payloadJSON sql.NullString
	var metadataJSON sql.NullString

	err := row.Scan(
		&event.ID,
		&event.RunID,
		&event.Seq,
		&eventType,
		&at,
		&payloadJSON,
		&metadataJSON,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan step event: %w", err)
	}

	event.Type = EventType(eventType)

	if t, err := time.Parse(time.RFC3339Nano, at); err == nil {
		event.At = t
	}

	if payloadJSON.Valid {
		event.Payload = json.RawMessage(payloadJSON.String)
	}
	if metadataJSON.Valid {
		if err := json.Unmarshal([]byte(metadataJSON.String), &event.Metadata); err != nil {
			r.db.logger.Warn().Err(err).Str("event_id", event.ID).Msg("failed to parse event metadata")
		}
	}

	return &event, nil
}

func (r *Repository) collectEvents(rows *sql.Rows) ([]*StepEvent, error) {
	var events []*StepEvent
	for rows.Next() {
		event, err := r.scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate step events: %w", err)
	}
	return events, nil
}

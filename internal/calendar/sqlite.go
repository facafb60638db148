package calendar

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/user/concierge/internal/interval"
	"github.com/user/concierge/internal/types"
)

//go:embed schema.sql
var schemaFS embed.FS

// SQLiteStore is the SQLite-backed event store.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the events database at path and
// applies the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create calendar dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open calendar db: %w", err)
	}
	// SQLite prefers a single writer connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")
	_, _ = db.Exec("PRAGMA busy_timeout = 5000")

	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("read schema: %w", err)
	}
	if _, err := db.Exec(string(schema)); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const eventColumns = "id, title, start_ms, end_ms, location, description, attendees, created_ms, updated_ms"

func scanEvent(row interface{ Scan(...any) error }) (*Event, error) {
	var (
		ev                  Event
		id, attendees       string
		startMs, endMs      int64
		createdMs, updateMs int64
	)
	err := row.Scan(&id, &ev.Title, &startMs, &endMs, &ev.Location, &ev.Description, &attendees, &createdMs, &updateMs)
	if err != nil {
		return nil, err
	}
	ev.ID = types.EventID(id)
	ev.Start = time.UnixMilli(startMs)
	ev.End = time.UnixMilli(endMs)
	ev.CreatedAt = time.UnixMilli(createdMs)
	ev.UpdatedAt = time.UnixMilli(updateMs)
	if err := json.Unmarshal([]byte(attendees), &ev.Attendees); err != nil {
		return nil, fmt.Errorf("unmarshal attendees: %w", err)
	}
	return &ev, nil
}

func (s *SQLiteStore) queryEvents(ctx context.Context, query string, args ...any) ([]*Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// ListEvents returns events intersecting r, ordered by start. Half-open
// semantics match interval.Overlaps: an event ending exactly at r.Start
// is not included.
func (s *SQLiteStore) ListEvents(ctx context.Context, r interval.TimeRange) ([]*Event, error) {
	return s.queryEvents(ctx,
		"SELECT "+eventColumns+" FROM events WHERE start_ms < ? AND end_ms > ? ORDER BY start_ms",
		r.End.UnixMilli(), r.Start.UnixMilli(),
	)
}

// ListUpcoming returns up to limit events starting at or after from.
func (s *SQLiteStore) ListUpcoming(ctx context.Context, from time.Time, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.queryEvents(ctx,
		"SELECT "+eventColumns+" FROM events WHERE start_ms >= ? ORDER BY start_ms LIMIT ?",
		from.UnixMilli(), limit,
	)
}

// Search returns up to limit events at or after from matching query in
// title or description.
func (s *SQLiteStore) Search(ctx context.Context, query string, from time.Time, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 10
	}
	pattern := "%" + query + "%"
	return s.queryEvents(ctx,
		"SELECT "+eventColumns+" FROM events WHERE start_ms >= ? AND (title LIKE ? OR description LIKE ?) ORDER BY start_ms LIMIT ?",
		from.UnixMilli(), pattern, pattern, limit,
	)
}

// GetEvent returns the event with the given id, or ErrNotFound.
func (s *SQLiteStore) GetEvent(ctx context.Context, id types.EventID) (*Event, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+eventColumns+" FROM events WHERE id = ?", string(id))
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return ev, nil
}

// CreateEvent inserts the event, assigning an id and timestamps.
func (s *SQLiteStore) CreateEvent(ctx context.Context, ev *Event) (*Event, error) {
	if !ev.Start.Before(ev.End) {
		return nil, fmt.Errorf("invalid event range: start is not before end")
	}
	if ev.ID == "" {
		ev.ID = types.NewEventID()
	}
	now := time.Now()
	ev.CreatedAt = now
	ev.UpdatedAt = now

	attendees, err := json.Marshal(ev.Attendees)
	if err != nil {
		return nil, fmt.Errorf("marshal attendees: %w", err)
	}
	if ev.Attendees == nil {
		attendees = []byte("[]")
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO events("+eventColumns+") VALUES(?,?,?,?,?,?,?,?,?)",
		string(ev.ID), ev.Title, ev.Start.UnixMilli(), ev.End.UnixMilli(),
		ev.Location, ev.Description, string(attendees),
		now.UnixMilli(), now.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return ev, nil
}

// UpdateEvent applies the patch and returns the updated event.
func (s *SQLiteStore) UpdateEvent(ctx context.Context, id types.EventID, p Patch) (*Event, error) {
	ev, err := s.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}

	if p.Title != nil {
		ev.Title = *p.Title
	}
	if p.Start != nil {
		ev.Start = *p.Start
	}
	if p.End != nil {
		ev.End = *p.End
	}
	if p.Location != nil {
		ev.Location = *p.Location
	}
	if p.Description != nil {
		ev.Description = *p.Description
	}
	if !ev.Start.Before(ev.End) {
		return nil, fmt.Errorf("invalid event range: start is not before end")
	}
	ev.UpdatedAt = time.Now()

	_, err = s.db.ExecContext(ctx,
		"UPDATE events SET title=?, start_ms=?, end_ms=?, location=?, description=?, updated_ms=? WHERE id=?",
		ev.Title, ev.Start.UnixMilli(), ev.End.UnixMilli(), ev.Location, ev.Description,
		ev.UpdatedAt.UnixMilli(), string(id),
	)
	if err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	return ev, nil
}

// DeleteEvent removes the event, or returns ErrNotFound.
func (s *SQLiteStore) DeleteEvent(ctx context.Context, id types.EventID) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM events WHERE id=?", string(id))
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Package store persists sessions and their append-only event log in sqlite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/linxy/chat-relay/internal/model/session"
)

// ErrSessionNotFound is returned when a requested session does not exist.
var ErrSessionNotFound = errors.New("session not found")

// SQLiteStore implements event-log appends and session-row updates on sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and ensures the
// schema exists. Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL keeps readers from blocking the per-connection writers.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	log.Printf("[store] sqlite store initialized at %s", path)
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			status TEXT NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT,
			duration_seconds INTEGER,
			summary TEXT
		);

		CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			role TEXT,
			content TEXT,
			tool_call_id TEXT,
			tool_name TEXT,
			tool_result TEXT,
			sequence_num INTEGER NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_events_session_seq
			ON events(session_id, sequence_num);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection is usable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// AppendEvent inserts an immutable event record. Events are never updated
// or deleted.
func (s *SQLiteStore) AppendEvent(ctx context.Context, ev *session.Event) error {
	query := `
		INSERT INTO events (
			session_id, event_type, role, content,
			tool_call_id, tool_name, tool_result, sequence_num, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		ev.SessionID,
		string(ev.Type),
		ev.Role,
		ev.Content,
		ev.ToolCallID,
		ev.ToolName,
		ev.ToolResult,
		ev.SequenceNum,
		ev.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

// ListEvents returns every event for a session ordered by sequence number.
func (s *SQLiteStore) ListEvents(ctx context.Context, sessionID string) ([]session.Event, error) {
	query := `
		SELECT session_id, event_type, role, content,
		       tool_call_id, tool_name, tool_result, sequence_num, created_at
		FROM events
		WHERE session_id = ?
		ORDER BY sequence_num ASC
	`

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var events []session.Event
	for rows.Next() {
		var ev session.Event
		var eventType, createdAt string

		if err := rows.Scan(
			&ev.SessionID,
			&eventType,
			&ev.Role,
			&ev.Content,
			&ev.ToolCallID,
			&ev.ToolName,
			&ev.ToolResult,
			&ev.SequenceNum,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scanning event row: %w", err)
		}

		ev.Type = session.EventType(eventType)
		ev.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing event timestamp: %w", err)
		}

		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating event rows: %w", err)
	}

	return events, nil
}

// CreateSession inserts a new session row with status=active.
func (s *SQLiteStore) CreateSession(ctx context.Context, sess *session.Session) error {
	query := `
		INSERT INTO sessions (session_id, user_id, status, start_time)
		VALUES (?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		sess.ID,
		sess.UserID,
		string(sess.Status),
		sess.StartTime.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

// CompleteSession applies the one-time finalization update to a session row.
func (s *SQLiteStore) CompleteSession(ctx context.Context, sessionID string, endTime time.Time, durationSeconds int64, summary string) error {
	query := `
		UPDATE sessions
		SET end_time = ?, duration_seconds = ?, summary = ?, status = ?
		WHERE session_id = ?
	`

	_, err := s.db.ExecContext(ctx, query,
		endTime.Format(time.RFC3339Nano),
		durationSeconds,
		summary,
		string(session.StatusCompleted),
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("updating session: %w", err)
	}
	return nil
}

// GetSession retrieves a session row by identifier.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (session.Session, error) {
	query := `
		SELECT session_id, user_id, status, start_time, end_time, duration_seconds, summary
		FROM sessions
		WHERE session_id = ?
	`

	var sess session.Session
	var status, startTime string
	var endTime, summary sql.NullString
	var duration sql.NullInt64

	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(
		&sess.ID,
		&sess.UserID,
		&status,
		&startTime,
		&endTime,
		&duration,
		&summary,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Session{}, ErrSessionNotFound
	}
	if err != nil {
		return session.Session{}, fmt.Errorf("querying session: %w", err)
	}

	sess.Status = session.Status(status)
	sess.StartTime, err = time.Parse(time.RFC3339Nano, startTime)
	if err != nil {
		return session.Session{}, fmt.Errorf("parsing session start time: %w", err)
	}

	if endTime.Valid {
		end, err := time.Parse(time.RFC3339Nano, endTime.String)
		if err != nil {
			return session.Session{}, fmt.Errorf("parsing session end time: %w", err)
		}
		sess.EndTime = &end
	}
	if duration.Valid {
		sess.DurationSeconds = &duration.Int64
	}
	if summary.Valid {
		sess.Summary = summary.String
	}

	return sess, nil
}

// Package store persists calls, transcripts, objections and summaries
// to a local SQLite database.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS calls (
	id         TEXT PRIMARY KEY,
	started_at INTEGER NOT NULL,
	stopped_at INTEGER
);
CREATE TABLE IF NOT EXISTS chunks (
	call_id    TEXT    NOT NULL,
	source     TEXT    NOT NULL,
	start_ms   INTEGER NOT NULL,
	end_ms     INTEGER NOT NULL,
	text       TEXT    NOT NULL,
	confidence REAL    NOT NULL,
	FOREIGN KEY (call_id) REFERENCES calls(id)
);
CREATE INDEX IF NOT EXISTS idx_chunks_call ON chunks(call_id, start_ms);
CREATE TABLE IF NOT EXISTS objections (
	id           TEXT PRIMARY KEY,
	call_id      TEXT    NOT NULL,
	timestamp_ms INTEGER NOT NULL,
	category     TEXT    NOT NULL,
	confidence   REAL    NOT NULL,
	snippet      TEXT    NOT NULL,
	FOREIGN KEY (call_id) REFERENCES calls(id)
);
CREATE TABLE IF NOT EXISTS summaries (
	call_id    TEXT PRIMARY KEY,
	document   TEXT    NOT NULL,
	created_at INTEGER NOT NULL,
	FOREIGN KEY (call_id) REFERENCES calls(id)
);
`

// Store wraps the SQLite database holding call history.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for an in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// The driver serializes writes itself but a single connection avoids
	// SQLITE_BUSY under concurrent access.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// StartCall records the beginning of a call session.
func (s *Store) StartCall(ctx context.Context, callID string, startedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO calls (id, started_at) VALUES (?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		callID, startedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert call: %w", err)
	}
	return nil
}

// StopCall records the end of a call session.
func (s *Store) StopCall(ctx context.Context, callID string, stoppedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE calls SET stopped_at = ? WHERE id = ?`,
		stoppedAt.UnixMilli(), callID)
	if err != nil {
		return fmt.Errorf("update call: %w", err)
	}
	return nil
}

// SaveChunk appends one transcript chunk.
func (s *Store) SaveChunk(ctx context.Context, callID, source string, startMS, endMS int64, text string, confidence float64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chunks (call_id, source, start_ms, end_ms, text, confidence)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		callID, source, startMS, endMS, text, confidence)
	if err != nil {
		return fmt.Errorf("insert chunk: %w", err)
	}
	return nil
}

// SaveObjection records a detected objection.
func (s *Store) SaveObjection(ctx context.Context, id, callID string, timestampMS int64, category string, confidence float64, snippet string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO objections (id, call_id, timestamp_ms, category, confidence, snippet)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		id, callID, timestampMS, category, confidence, snippet)
	if err != nil {
		return fmt.Errorf("insert objection: %w", err)
	}
	return nil
}

// SaveSummary stores the summary document for a call, replacing any
// previous one.
func (s *Store) SaveSummary(ctx context.Context, callID, document string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO summaries (call_id, document, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(call_id) DO UPDATE SET document = excluded.document, created_at = excluded.created_at`,
		callID, document, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("insert summary: %w", err)
	}
	return nil
}

// CallRecord is one row from the calls table.
type CallRecord struct {
	ID        string
	StartedAt time.Time
	StoppedAt time.Time
}

// Calls returns all recorded calls, most recent first.
func (s *Store) Calls(ctx context.Context) ([]CallRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, COALESCE(stopped_at, 0) FROM calls ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query calls: %w", err)
	}
	defer rows.Close()

	var out []CallRecord
	for rows.Next() {
		var rec CallRecord
		var started, stopped int64
		if err := rows.Scan(&rec.ID, &started, &stopped); err != nil {
			return nil, fmt.Errorf("scan call: %w", err)
		}
		rec.StartedAt = time.UnixMilli(started)
		if stopped != 0 {
			rec.StoppedAt = time.UnixMilli(stopped)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ChunkRecord is one row from the chunks table.
type ChunkRecord struct {
	Source     string
	StartMS    int64
	EndMS      int64
	Text       string
	Confidence float64
}

// Chunks returns the transcript of a call in timeline order.
func (s *Store) Chunks(ctx context.Context, callID string) ([]ChunkRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source, start_ms, end_ms, text, confidence FROM chunks
		 WHERE call_id = ? ORDER BY start_ms`, callID)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var out []ChunkRecord
	for rows.Next() {
		var rec ChunkRecord
		if err := rows.Scan(&rec.Source, &rec.StartMS, &rec.EndMS, &rec.Text, &rec.Confidence); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ObjectionRecord is one row from the objections table.
type ObjectionRecord struct {
	ID          string
	TimestampMS int64
	Category    string
	Confidence  float64
	Snippet     string
}

// Objections returns the objections of a call in timeline order.
func (s *Store) Objections(ctx context.Context, callID string) ([]ObjectionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, timestamp_ms, category, confidence, snippet FROM objections
		 WHERE call_id = ? ORDER BY timestamp_ms`, callID)
	if err != nil {
		return nil, fmt.Errorf("query objections: %w", err)
	}
	defer rows.Close()

	var out []ObjectionRecord
	for rows.Next() {
		var rec ObjectionRecord
		if err := rows.Scan(&rec.ID, &rec.TimestampMS, &rec.Category, &rec.Confidence, &rec.Snippet); err != nil {
			return nil, fmt.Errorf("scan objection: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Summary returns the stored summary document for a call, or sql.ErrNoRows.
func (s *Store) Summary(ctx context.Context, callID string) (string, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM summaries WHERE call_id = ?`, callID).Scan(&doc)
	if err != nil {
		return "", err
	}
	return doc, nil
}

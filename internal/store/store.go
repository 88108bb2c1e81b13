// Package store persists game sessions and their events to SQLite so a
// finished rack can be reviewed after the fact.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"poolmind/internal/detect"
	"poolmind/internal/game"
)

// Store handles SQLite persistence.
type Store struct {
	db *sql.DB
}

// SessionRecord is one rack from reset to game over.
type SessionRecord struct {
	ID          string
	StartedAt   time.Time
	EndedAt     sql.NullTime
	Winner      int
	TotalPotted int
}

// SessionSummary is a session joined with its event count, for the
// report page.
type SessionSummary struct {
	ID          string
	StartedAt   time.Time
	EndedAt     sql.NullTime
	Winner      int
	TotalPotted int
	EventCount  int
}

// New opens (or creates) the database at path.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL keeps the report endpoint readable while the pipeline writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the schema.
func (s *Store) Migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			started_at DATETIME NOT NULL,
			ended_at DATETIME,
			winner INTEGER DEFAULT 0,
			total_potted INTEGER DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS game_events (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			frame_seq INTEGER NOT NULL,
			timestamp DATETIME NOT NULL,
			type TEXT NOT NULL,
			subject_id INTEGER,
			class TEXT,
			zone TEXT,
			phase TEXT,
			player INTEGER,
			detail TEXT,
			FOREIGN KEY (session_id) REFERENCES sessions(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_session_time ON game_events(session_id, timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_events_type ON game_events(type)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// BeginSession records the start of a rack.
func (s *Store) BeginSession(id string, startedAt time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO sessions (id, started_at) VALUES (?, ?)`,
		id, startedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to begin session: %w", err)
	}
	return nil
}

// EndSession closes a rack with its final tallies.
func (s *Store) EndSession(id string, endedAt time.Time, winner, totalPotted int) error {
	_, err := s.db.Exec(
		`UPDATE sessions SET ended_at = ?, winner = ?, total_potted = ? WHERE id = ?`,
		endedAt, winner, totalPotted, id,
	)
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	return nil
}

// SaveEvent persists one game event under a session.
func (s *Store) SaveEvent(sessionID string, ev game.Event) error {
	query := `INSERT INTO game_events
		(id, session_id, frame_seq, timestamp, type, subject_id, class, zone, phase, player, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`

	_, err := s.db.Exec(query, ev.ID, sessionID, ev.FrameSeq, ev.Timestamp,
		string(ev.Type), ev.SubjectID, string(ev.Class), ev.Zone,
		string(ev.Phase), ev.Player, ev.Detail)
	if err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}
	return nil
}

// ListEvents returns a session's events oldest first, capped at limit
// (0 means no cap).
func (s *Store) ListEvents(sessionID string, limit int) ([]game.Event, error) {
	query := `SELECT id, frame_seq, timestamp, type, subject_id, class, zone, phase, player, detail
		FROM game_events WHERE session_id = ? ORDER BY timestamp, frame_seq`
	args := []any{sessionID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []game.Event
	for rows.Next() {
		var ev game.Event
		var typ, class, phase string
		if err := rows.Scan(&ev.ID, &ev.FrameSeq, &ev.Timestamp, &typ,
			&ev.SubjectID, &class, &ev.Zone, &phase, &ev.Player, &ev.Detail); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.Type = game.EventType(typ)
		ev.Class = detect.BallClass(class)
		ev.Phase = game.Phase(phase)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// CountEventsByType tallies a session's events per type.
func (s *Store) CountEventsByType(sessionID string) (map[game.EventType]int, error) {
	rows, err := s.db.Query(
		`SELECT type, COUNT(*) FROM game_events WHERE session_id = ? GROUP BY type`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	defer rows.Close()

	counts := make(map[game.EventType]int)
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[game.EventType(typ)] = n
	}
	return counts, rows.Err()
}

// ListSessions returns all sessions newest first with their event
// counts.
func (s *Store) ListSessions() ([]SessionSummary, error) {
	query := `SELECT s.id, s.started_at, s.ended_at, s.winner, s.total_potted, COUNT(e.id)
		FROM sessions s LEFT JOIN game_events e ON e.session_id = s.id
		GROUP BY s.id ORDER BY s.started_at DESC`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []SessionSummary
	for rows.Next() {
		var sum SessionSummary
		if err := rows.Scan(&sum.ID, &sum.StartedAt, &sum.EndedAt,
			&sum.Winner, &sum.TotalPotted, &sum.EventCount); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, sum)
	}
	return sessions, rows.Err()
}

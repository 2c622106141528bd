// Package db persists export session history in a local sqlite database so
// past runs can be listed and resumed-from by eye.
package db

import (
	"context"
	"database/sql"
	_ "embed"
	"time"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// Session is one stored export run.
type Session struct {
	ID              string
	Domain          string
	OutputMode      string
	TimestampFormat string
	ImagesEnabled   bool
	Status          string
	TotalCount      int
	NotesCount      int
	ImagesCount     int
	OutputPath      string
	ErrorMessage    string
	StartedAt       time.Time
	FinishedAt      *time.Time
}

type Store struct {
	db *sql.DB
}

// Open opens (and if needed creates) the session database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	handle, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := handle.ExecContext(ctx, schema); err != nil {
		handle.Close()
		return nil, err
	}
	return &Store{db: handle}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Insert(ctx context.Context, sess Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (
			id, domain, output_mode, timestamp_format, images_enabled,
			status, total_count, notes_count, images_count, output_path,
			error_message, started_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Domain, sess.OutputMode, sess.TimestampFormat,
		sess.ImagesEnabled, sess.Status, sess.TotalCount, sess.NotesCount,
		sess.ImagesCount, sess.OutputPath, nullIfEmpty(sess.ErrorMessage),
		sess.StartedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// UpdateProgress records the latest counters of a running session.
func (s *Store) UpdateProgress(ctx context.Context, id string, total, notes, images int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sessions
		SET total_count = ?, notes_count = ?, images_count = ?
		WHERE id = ?`,
		total, notes, images, id,
	)
	return err
}

// SetOutcome stamps a session's terminal status.
func (s *Store) SetOutcome(ctx context.Context, id, status, errorMessage, outputPath string, finishedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sessions
		SET status = ?, error_message = ?, output_path = ?, finished_at = ?
		WHERE id = ?`,
		status, nullIfEmpty(errorMessage), outputPath,
		finishedAt.UTC().Format(time.RFC3339), id,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	return scanSession(row)
}

// List returns every stored session, most recent first.
func (s *Store) List(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

const selectColumns = `
	SELECT id, domain, output_mode, timestamp_format, images_enabled,
	       status, total_count, notes_count, images_count, output_path,
	       error_message, started_at, finished_at
	FROM sessions`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (Session, error) {
	var sess Session
	var errorMessage sql.NullString
	var startedAt string
	var finishedAt sql.NullString

	err := row.Scan(
		&sess.ID, &sess.Domain, &sess.OutputMode, &sess.TimestampFormat,
		&sess.ImagesEnabled, &sess.Status, &sess.TotalCount,
		&sess.NotesCount, &sess.ImagesCount, &sess.OutputPath,
		&errorMessage, &startedAt, &finishedAt,
	)
	if err != nil {
		return Session{}, err
	}

	sess.ErrorMessage = errorMessage.String
	sess.StartedAt, err = time.Parse(time.RFC3339, startedAt)
	if err != nil {
		return Session{}, err
	}
	if finishedAt.Valid {
		parsed, err := time.Parse(time.RFC3339, finishedAt.String)
		if err != nil {
			return Session{}, err
		}
		sess.FinishedAt = &parsed
	}
	return sess, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

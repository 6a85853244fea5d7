// Package logstore persists rendered lines in a SQLite database,
// so that a buffer's scrollback survives a restart.
//
// Lines are keyed by server and buffer name rather than buffer id,
// because ids are only stable for one run of the client.
package logstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS lines (
	id     INTEGER PRIMARY KEY AUTOINCREMENT,
	run    TEXT NOT NULL,
	server TEXT NOT NULL,
	buffer TEXT NOT NULL COLLATE NOCASE,
	at     INTEGER NOT NULL,
	text   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS lines_buffer ON lines (server, buffer, id);
`

var ErrClosed = errors.New("logstore: closed")

// Entry is one stored line.
type Entry struct {
	Run    string // id of the client run that wrote the line
	Server string
	Buffer string
	Time   time.Time
	Text   string
}

// Store is a scrollback database. It belongs to the event loop, like the registry.
type Store struct {
	db  *sql.DB
	run string
}

// Open opens or creates the database at path. ":memory:" opens a private in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite has one writer; one connection also keeps an in-memory database alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &Store{db: db, run: uuid.New().String()}, nil
}

// Run identifies this client run. Each Open starts a new run.
func (s *Store) Run() string {
	return s.run
}

// Append stores one line for this run. e.Run is ignored.
func (s *Store) Append(ctx context.Context, e Entry) error {
	if s.db == nil {
		return ErrClosed
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO lines (run, server, buffer, at, text) VALUES (?, ?, ?, ?, ?)",
		s.run, e.Server, e.Buffer, e.Time.UnixNano(), e.Text)
	if err != nil {
		return fmt.Errorf("append line: %w", err)
	}
	return nil
}

// Recent returns up to n of the most recent lines of a buffer, oldest first.
// Buffer names are matched case-insensitively.
func (s *Store) Recent(ctx context.Context, server, buffer string, n int) ([]Entry, error) {
	if s.db == nil {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run, server, buffer, at, text FROM (
			SELECT id, run, server, buffer, at, text FROM lines
			WHERE server = ? AND buffer = ?
			ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`,
		server, buffer, n)
	if err != nil {
		return nil, fmt.Errorf("query recent lines: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var at int64
		if err := rows.Scan(&e.Run, &e.Server, &e.Buffer, &at, &e.Text); err != nil {
			return nil, fmt.Errorf("scan line: %w", err)
		}
		e.Time = time.Unix(0, at)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the database. Further calls return ErrClosed.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

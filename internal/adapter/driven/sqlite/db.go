// Package sqlite implements the C1 HTTP cache and C8 storage backend
// contracts against an embedded SQLite database.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB provides dual reader/writer connections with WAL mode enabled. The
// writer is limited to a single connection to avoid "database is locked"
// errors; the reader pool allows concurrent reads.
//
// In-memory databases (":memory:") share a single connection instead, since
// separate connections to ":memory:" would otherwise see distinct,
// unrelated databases.
type DB struct {
	Writer *sql.DB
	Reader *sql.DB
	path   string
}

// Open creates a dual-connection SQLite database at path (or a single-
// connection shared-cache in-memory database when path is ":memory:", which
// every Open(":memory:") in the process sees while any of them is still
// open), with WAL mode, a busy timeout, NORMAL synchronous mode, and foreign
// keys enabled.
func Open(path string) (*DB, error) {
	if path == ":memory:" {
		return openMemory()
	}

	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)",
		path,
	)

	writer, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open writer: %w", err)
	}
	writer.SetMaxOpenConns(1)
	if err := writer.Ping(); err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("ping writer: %w", err)
	}

	reader, err := sql.Open("sqlite", dsn)
	if err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("open reader: %w", err)
	}
	reader.SetMaxOpenConns(4)
	if err := reader.Ping(); err != nil {
		_ = reader.Close()
		_ = writer.Close()
		return nil, fmt.Errorf("ping reader: %w", err)
	}

	return &DB{Writer: writer, Reader: reader, path: path}, nil
}

func openMemory() (*DB, error) {
	dsn := "file::memory:?cache=shared&_pragma=foreign_keys(ON)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open in-memory db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping in-memory db: %w", err)
	}

	return &DB{Writer: db, Reader: db, path: ":memory:"}, nil
}

// Close closes both connections, returning the first error encountered.
func (db *DB) Close() error {
	if db.path == ":memory:" {
		return db.Writer.Close()
	}

	var firstErr error
	if err := db.Reader.Close(); err != nil {
		firstErr = fmt.Errorf("close reader: %w", err)
	}
	if err := db.Writer.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close writer: %w", err)
	}
	return firstErr
}

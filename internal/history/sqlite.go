// Package history records deposit operations in a local database.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"sdr-go/internal/history/migrations"
	"sdr-go/internal/sdr"
)

// SQLiteHistory implements sdr.History on SQLite.
type SQLiteHistory struct {
	db   *sql.DB
	path string
}

// NewSQLiteHistory opens the database at path, migrating it to the current
// schema. path may be ":memory:".
func NewSQLiteHistory(path string) (*SQLiteHistory, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}

	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrations.CheckDBMigrationStatus(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteHistory{db: db, path: path}, nil
}

// OpenConnection opens a SQLite database with the settings history needs.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	// Every pooled connection to :memory: would be a separate database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("configuring history database: %w", err)
	}
	return db, nil
}

func (h *SQLiteHistory) CreateOperation(operation, parameters string, startedAt time.Time) (*sdr.OperationRecord, error) {
	res, err := h.db.Exec(
		`INSERT INTO operations (operation, parameters, status, started_at) VALUES (?, ?, ?, ?)`,
		operation, parameters, sdr.OperationRunning, startedAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating operation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading operation id: %w", err)
	}
	return &sdr.OperationRecord{
		ID:         id,
		Operation:  operation,
		Parameters: parameters,
		Status:     sdr.OperationRunning,
		StartedAt:  startedAt.UTC(),
	}, nil
}

func (h *SQLiteHistory) FinishOperation(id int64, status, jobID, druid string, finishedAt time.Time) error {
	res, err := h.db.Exec(
		`UPDATE operations SET status = ?, job_id = ?, druid = ?, finished_at = ? WHERE id = ?`,
		status, jobID, druid, finishedAt.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("finishing operation %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finishing operation %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("finishing operation %d: not found", id)
	}
	return nil
}

// ListOperations returns up to limit operations, newest first. A limit of
// zero or less returns all of them.
func (h *SQLiteHistory) ListOperations(limit int) ([]*sdr.OperationRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := h.db.Query(
		`SELECT id, operation, parameters, status, job_id, druid, started_at, finished_at
		 FROM operations ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	defer rows.Close()

	var records []*sdr.OperationRecord
	for rows.Next() {
		var r sdr.OperationRecord
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.Operation, &r.Parameters, &r.Status, &r.JobID, &r.Druid, &r.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("scanning operation: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	return records, nil
}

func (h *SQLiteHistory) Close() error {
	if h.db != nil {
		return h.db.Close()
	}
	return nil
}

// Compile-time check that SQLiteHistory implements sdr.History interface
var _ sdr.History = (*SQLiteHistory)(nil)

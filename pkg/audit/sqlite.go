package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jllopis/a2a/pkg/protocol"
)

// SQLiteStore persists journal entries in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLite-backed journal and ensures schema.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if err := ensureSchema(db); err != nil {
		return nil, fmt.Errorf("task journal schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Record stores a single entry.
func (s *SQLiteStore) Record(ctx context.Context, entry Entry) error {
	input, err := encodePayload(entry.Input)
	if err != nil {
		return err
	}
	output, err := encodePayload(entry.Output)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO task_journal (
			task_id, action, sender, status, input_json, output_json, error_text, received_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.TaskID,
		entry.Action,
		entry.Sender,
		string(entry.Status),
		input,
		output,
		entry.Error,
		unixMilli(entry.ReceivedAt),
		unixMilli(entry.FinishedAt),
	)
	return err
}

// List returns entries matching the filter, newest first.
func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]Entry, error) {
	query := `
		SELECT task_id, action, sender, status, input_json, output_json, error_text, received_at, finished_at
		FROM task_journal
	`
	var args []any
	where := ""
	addFilter := func(clause string, value any) {
		if where == "" {
			where = " WHERE " + clause
		} else {
			where += " AND " + clause
		}
		args = append(args, value)
	}
	if filter.TaskID != "" {
		addFilter("task_id = ?", filter.TaskID)
	}
	if filter.Action != "" {
		addFilter("action = ?", filter.Action)
	}
	if filter.Status != "" {
		addFilter("status = ?", string(filter.Status))
	}
	query += where + " ORDER BY id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			entry      Entry
			status     string
			inputJSON  sql.NullString
			outputJSON sql.NullString
			errorText  sql.NullString
			receivedMs int64
			finishedMs int64
		)
		if err := rows.Scan(
			&entry.TaskID,
			&entry.Action,
			&entry.Sender,
			&status,
			&inputJSON,
			&outputJSON,
			&errorText,
			&receivedMs,
			&finishedMs,
		); err != nil {
			return nil, err
		}
		entry.Status = protocol.TaskStatus(status)
		if in, err := decodePayload(inputJSON.String); err == nil {
			entry.Input = in
		}
		if out, err := decodePayload(outputJSON.String); err == nil {
			entry.Output = out
		}
		entry.Error = errorText.String
		entry.ReceivedAt = fromUnixMilli(receivedMs)
		entry.FinishedAt = fromUnixMilli(finishedMs)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS task_journal (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			task_id TEXT NOT NULL,
			action TEXT NOT NULL,
			sender TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			input_json TEXT,
			output_json TEXT,
			error_text TEXT,
			received_at INTEGER NOT NULL DEFAULT 0,
			finished_at INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_task_journal_task ON task_journal(task_id);
		CREATE INDEX IF NOT EXISTS idx_task_journal_status ON task_journal(status);
	`)
	return err
}

func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromUnixMilli(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

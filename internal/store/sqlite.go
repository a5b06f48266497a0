package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite persists the entity stores in a SQLite database. Each SaveX is a
// full replacement (delete + insert) inside one transaction, matching the
// save-all contract.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (and if needed initializes) a SQLite-backed store.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS vault_entries (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		label TEXT,
		preview TEXT,
		truncated INTEGER NOT NULL DEFAULT 0,
		size INTEGER NOT NULL DEFAULT 0,
		payload TEXT,
		source TEXT,
		notes TEXT,
		tags TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS memory_entries (
		id TEXT PRIMARY KEY,
		heading TEXT NOT NULL,
		content TEXT,
		notes TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS task_entries (
		id TEXT PRIMARY KEY,
		heading TEXT NOT NULL,
		content TEXT,
		status TEXT NOT NULL,
		notes TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS goal_entries (
		id TEXT PRIMARY KEY,
		heading TEXT NOT NULL,
		content TEXT,
		notes TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS final_outputs (
		id TEXT PRIMARY KEY,
		title TEXT,
		content TEXT,
		state TEXT NOT NULL,
		verified INTEGER NOT NULL DEFAULT 0,
		confidence INTEGER NOT NULL DEFAULT 0,
		resolved_refs INTEGER NOT NULL DEFAULT 0,
		failure_reason TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS activity_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		type TEXT NOT NULL,
		detail TEXT,
		ref_id TEXT,
		timestamp DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS execution_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		code TEXT,
		output TEXT,
		status TEXT NOT NULL,
		error TEXT,
		err_class TEXT,
		warnings TEXT,
		vault_ids TEXT,
		missing_ids TEXT,
		timestamp DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// LoadAll loads the four entity stores.
func (s *SQLite) LoadAll(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, label, preview, truncated, size, payload, source, notes, tags, created_at
		FROM vault_entries ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to load vault entries: %w", err)
	}
	for rows.Next() {
		var e VaultEntry
		var label, preview, payload, source, notes, tagsJSON sql.NullString
		if err := rows.Scan(&e.ID, &e.Kind, &label, &preview, &e.Truncated, &e.Size,
			&payload, &source, &notes, &tagsJSON, &e.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan vault entry: %w", err)
		}
		e.Label = label.String
		e.Preview = preview.String
		e.Payload = payload.String
		e.Source = source.String
		e.Notes = notes.String
		if tagsJSON.Valid && tagsJSON.String != "" && tagsJSON.String != "null" {
			json.Unmarshal([]byte(tagsJSON.String), &e.Tags)
		}
		snap.Vault = append(snap.Vault, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT id, heading, content, notes, created_at FROM memory_entries ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to load memory entries: %w", err)
	}
	for rows.Next() {
		var e MemoryEntry
		var content, notes sql.NullString
		if err := rows.Scan(&e.ID, &e.Heading, &content, &notes, &e.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan memory entry: %w", err)
		}
		e.Content = content.String
		e.Notes = notes.String
		snap.Memory = append(snap.Memory, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT id, heading, content, status, notes, created_at FROM task_entries ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to load task entries: %w", err)
	}
	for rows.Next() {
		var e TaskEntry
		var content, notes sql.NullString
		if err := rows.Scan(&e.ID, &e.Heading, &content, &e.Status, &notes, &e.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan task entry: %w", err)
		}
		e.Content = content.String
		e.Notes = notes.String
		snap.Tasks = append(snap.Tasks, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT id, heading, content, notes, created_at FROM goal_entries ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to load goal entries: %w", err)
	}
	for rows.Next() {
		var e GoalEntry
		var content, notes sql.NullString
		if err := rows.Scan(&e.ID, &e.Heading, &content, &notes, &e.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan goal entry: %w", err)
		}
		e.Content = content.String
		e.Notes = notes.String
		snap.Goals = append(snap.Goals, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return snap, nil
}

// SaveVault replaces the vault store.
func (s *SQLite) SaveVault(ctx context.Context, entries []VaultEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM vault_entries"); err != nil {
		return fmt.Errorf("failed to clear vault entries: %w", err)
	}
	for _, e := range entries {
		tagsJSON, _ := json.Marshal(e.Tags)
		_, err := tx.ExecContext(ctx, `
			INSERT INTO vault_entries (id, kind, label, preview, truncated, size, payload, source, notes, tags, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.Kind, e.Label, e.Preview, e.Truncated, e.Size, e.Payload,
			e.Source, e.Notes, string(tagsJSON), e.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to save vault entry %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

// SaveMemory replaces the memory store.
func (s *SQLite) SaveMemory(ctx context.Context, entries []MemoryEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM memory_entries"); err != nil {
		return fmt.Errorf("failed to clear memory entries: %w", err)
	}
	for _, e := range entries {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO memory_entries (id, heading, content, notes, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			e.ID, e.Heading, e.Content, e.Notes, e.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to save memory entry %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

// SaveTasks replaces the tasks store.
func (s *SQLite) SaveTasks(ctx context.Context, entries []TaskEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM task_entries"); err != nil {
		return fmt.Errorf("failed to clear task entries: %w", err)
	}
	for _, e := range entries {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO task_entries (id, heading, content, status, notes, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			e.ID, e.Heading, e.Content, e.Status, e.Notes, e.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to save task entry %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

// SaveGoals replaces the goals store.
func (s *SQLite) SaveGoals(ctx context.Context, entries []GoalEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM goal_entries"); err != nil {
		return fmt.Errorf("failed to clear goal entries: %w", err)
	}
	for _, e := range entries {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO goal_entries (id, heading, content, notes, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			e.ID, e.Heading, e.Content, e.Notes, e.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to save goal entry %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

// SaveFinalOutput inserts or updates a final output record.
func (s *SQLite) SaveFinalOutput(ctx context.Context, out FinalOutput) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO final_outputs (id, title, content, state, verified, confidence, resolved_refs, failure_reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			verified = excluded.verified,
			confidence = excluded.confidence,
			resolved_refs = excluded.resolved_refs,
			failure_reason = excluded.failure_reason`,
		out.ID, out.Title, out.Content, out.State, out.Verified, out.Confidence,
		out.ResolvedRefs, out.FailureReason, out.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save final output: %w", err)
	}
	return nil
}

// AppendActivity appends to the tool-activity log.
func (s *SQLite) AppendActivity(ctx context.Context, rec ActivityRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activity_log (type, detail, ref_id, timestamp)
		VALUES (?, ?, ?, ?)`,
		rec.Type, rec.Detail, rec.RefID, rec.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to append activity: %w", err)
	}
	return nil
}

// AppendExecution appends to the code-execution log.
func (s *SQLite) AppendExecution(ctx context.Context, rec ExecutionRecord) error {
	warningsJSON, _ := json.Marshal(rec.Warnings)
	vaultJSON, _ := json.Marshal(rec.VaultIDs)
	missingJSON, _ := json.Marshal(rec.MissingIDs)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO execution_log (code, output, status, error, err_class, warnings, vault_ids, missing_ids, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Code, rec.Output, rec.Status, rec.Error, rec.ErrClass,
		string(warningsJSON), string(vaultJSON), string(missingJSON), rec.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to append execution: %w", err)
	}
	return nil
}

// CurrentQuery returns the query being served, or "" when none is set.
func (s *SQLite) CurrentQuery(ctx context.Context) (string, error) {
	row := s.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = 'current_query'")
	var q string
	if err := row.Scan(&q); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("failed to load current query: %w", err)
	}
	return q, nil
}

// SetCurrentQuery records the query being served.
func (s *SQLite) SetCurrentQuery(ctx context.Context, query string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES ('current_query', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, query)
	if err != nil {
		return fmt.Errorf("failed to set current query: %w", err)
	}
	return nil
}

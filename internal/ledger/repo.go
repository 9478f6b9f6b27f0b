package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/skilltally/internal/models"
)

// NoteRow represents a row in the processed_notes table.
type NoteRow struct {
	Path        string
	Checksum    string
	Skills      []string
	ProcessedAt time.Time
}

// MarkNote records path as processed. Re-marking keeps the first record.
func (db *DB) MarkNote(ctx context.Context, n NoteRow) error {
	skills := n.Skills
	if skills == nil {
		skills = []string{}
	}
	skillsJSON, err := json.Marshal(skills)
	if err != nil {
		return fmt.Errorf("ledger: encode skills: %w", err)
	}
	if n.ProcessedAt.IsZero() {
		n.ProcessedAt = time.Now().UTC()
	}
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO processed_notes (path, checksum, skills, processed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO NOTHING
	`, n.Path, n.Checksum, string(skillsJSON), n.ProcessedAt)
	if err != nil {
		return fmt.Errorf("ledger: mark note: %w", err)
	}
	return nil
}

// GetNote returns the record for path, or nil when the note is unknown.
func (db *DB) GetNote(ctx context.Context, path string) (*NoteRow, error) {
	var (
		n          NoteRow
		skillsJSON string
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT path, checksum, skills, processed_at FROM processed_notes WHERE path = ?`, path,
	).Scan(&n.Path, &n.Checksum, &skillsJSON, &n.ProcessedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: get note: %w", err)
	}
	if err := json.Unmarshal([]byte(skillsJSON), &n.Skills); err != nil {
		return nil, fmt.Errorf("ledger: decode skills for %s: %w", path, err)
	}
	return &n, nil
}

// RecordRun appends a run summary and returns its id.
func (db *DB) RecordRun(ctx context.Context, r models.Run) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO runs (uid, started_at, finished_at, scanned, counted, filtered, skipped, marked, increments)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.UID, r.StartedAt.UTC(), r.FinishedAt.UTC(), r.Scanned, r.Counted, r.Filtered, r.Skipped, r.Marked, r.Increments)
	if err != nil {
		return 0, fmt.Errorf("ledger: record run: %w", err)
	}
	return res.LastInsertId()
}

// Runs returns the most recent runs, newest first.
func (db *DB) Runs(ctx context.Context, limit int) ([]models.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, uid, started_at, finished_at, scanned, counted, filtered, skipped, marked, increments
		FROM runs
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: runs: %w", err)
	}
	defer rows.Close()

	var out []models.Run
	for rows.Next() {
		var r models.Run
		if err := rows.Scan(&r.ID, &r.UID, &r.StartedAt, &r.FinishedAt, &r.Scanned, &r.Counted,
			&r.Filtered, &r.Skipped, &r.Marked, &r.Increments); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

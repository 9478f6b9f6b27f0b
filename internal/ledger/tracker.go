package ledger

import (
	"context"

	"github.com/starford/skilltally/internal/checksum"
)

// Tracker records processed notes in the ledger instead of editing them.
// Notes without a header are tracked like any other.
type Tracker struct {
	db *DB
}

// NewTracker creates a ledger-backed tracker.
func NewTracker(db *DB) *Tracker {
	return &Tracker{db: db}
}

// Seen reports whether path was processed in an earlier run. Later content
// changes do not make a note eligible again.
func (t *Tracker) Seen(ctx context.Context, path string) (bool, error) {
	n, err := t.db.GetNote(ctx, path)
	if err != nil {
		return false, err
	}
	return n != nil, nil
}

// Mark stores the note identity, its content hash, and the skills it contributed.
func (t *Tracker) Mark(ctx context.Context, path string, content []byte, skills []string) (bool, error) {
	err := t.db.MarkNote(ctx, NoteRow{
		Path:     path,
		Checksum: checksum.Sum(content),
		Skills:   skills,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

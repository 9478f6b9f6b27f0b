package ledger

import (
	"context"
	"fmt"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/starford/skilltally/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "skilltally-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM processed_notes`).Scan(&count); err != nil {
		t.Fatalf("processed_notes table missing: %v", err)
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM runs`).Scan(&count); err != nil {
		t.Fatalf("runs table missing: %v", err)
	}
}

func TestMarkAndGetNote(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	if err := db.MarkNote(ctx, NoteRow{Path: "a.md", Checksum: "abc", Skills: []string{"Go", "SQL"}}); err != nil {
		t.Fatalf("MarkNote: %v", err)
	}
	n, err := db.GetNote(ctx, "a.md")
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	if n == nil || n.Checksum != "abc" || !reflect.DeepEqual(n.Skills, []string{"Go", "SQL"}) {
		t.Errorf("note = %+v", n)
	}
}

func TestMarkNote_KeepsFirstRecord(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	_ = db.MarkNote(ctx, NoteRow{Path: "a.md", Checksum: "1"})
	_ = db.MarkNote(ctx, NoteRow{Path: "a.md", Checksum: "2"})
	n, _ := db.GetNote(ctx, "a.md")
	if n.Checksum != "1" {
		t.Errorf("checksum = %q, want 1", n.Checksum)
	}
}

func TestGetNote_NotFound(t *testing.T) {
	db := testDB(t)
	n, err := db.GetNote(context.Background(), "missing.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != nil {
		t.Errorf("expected nil, got %+v", n)
	}
}

func TestRecordAndListRuns(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	start := time.Now().Add(-time.Second)
	for i := 1; i <= 3; i++ {
		_, err := db.RecordRun(ctx, models.Run{UID: fmt.Sprintf("run-%d", i), StartedAt: start, FinishedAt: start.Add(time.Millisecond), Scanned: i, Increments: i * 2})
		if err != nil {
			t.Fatalf("RecordRun: %v", err)
		}
	}
	runs, err := db.Runs(ctx, 2)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("len = %d, want 2", len(runs))
	}
	if runs[0].UID != "run-3" || runs[0].Scanned != 3 || runs[0].Increments != 6 {
		t.Errorf("newest run = %+v", runs[0])
	}
}

func TestTracker(t *testing.T) {
	db := testDB(t)
	tr := NewTracker(db)
	ctx := context.Background()

	seen, err := tr.Seen(ctx, "job.md")
	if err != nil || seen {
		t.Fatalf("Seen before mark = %v, %v", seen, err)
	}
	marked, err := tr.Mark(ctx, "job.md", []byte("[[Go]]"), []string{"Go"})
	if err != nil || !marked {
		t.Fatalf("Mark = %v, %v", marked, err)
	}
	seen, _ = tr.Seen(ctx, "job.md")
	if !seen {
		t.Error("expected note to be seen after Mark")
	}
}

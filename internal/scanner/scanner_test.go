package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/starford/skilltally/internal/models"
	"github.com/starford/skilltally/internal/parser"
	"github.com/starford/skilltally/internal/storage"
)

func defaultOptions() Options {
	return Options{
		IndexFile:    "Mapping job descriptions.md",
		IgnoreSkills: []string{"Mapping job descriptions", "Data Engineering"},
		IncludeTag:   "jobs",
		RejectTag:    "reject",
		ProcessedTag: "processed",
	}
}

func testScanner(t *testing.T, files map[string]string) (*Scanner, string) {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return New(store, NewMarkerTracker(store, "processed"), defaultOptions(), nil), dir
}

func readFile(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestScan_RepeatedSkillCountsOnce(t *testing.T) {
	s, _ := testScanner(t, map[string]string{
		"a.md": "---\ntags:\n  - jobs\n---\n[[Python]] [[Python]] [[Python]]\n",
	})
	res, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if got := res.Increments.Get("Python"); got != 1 {
		t.Errorf("Python = %d, want 1", got)
	}
}

func TestScan_RejectedNoteMarkedNotCounted(t *testing.T) {
	s, dir := testScanner(t, map[string]string{
		"b.md": "---\ntags:\n  - jobs\n  - reject\n---\n[[Python]]\n",
	})
	res, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res.Increments.Len() != 0 {
		t.Errorf("increments = %v, want none", res.Increments.Map())
	}
	if res.Notes[0].Outcome != models.OutcomeFiltered || !res.Notes[0].Marked {
		t.Errorf("note = %+v", res.Notes[0])
	}
	if !parser.Parse([]byte(readFile(t, dir, "b.md"))).HasTag("processed") {
		t.Error("rejected note should carry the marker")
	}
}

func TestScan_MissingJobsTagMarkedNotCounted(t *testing.T) {
	s, dir := testScanner(t, map[string]string{
		"c.md": "---\ntags:\n  - personal\n---\n[[Go]]\n",
	})
	res, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res.Increments.Len() != 0 {
		t.Errorf("increments = %v, want none", res.Increments.Map())
	}
	if !parser.Parse([]byte(readFile(t, dir, "c.md"))).HasTag("processed") {
		t.Error("filtered note should carry the marker")
	}
}

func TestScan_HeaderlessNoteCountedNotMarked(t *testing.T) {
	content := "Looking for [[Go]] and [[Kubernetes]] and [[Go]].\n"
	s, dir := testScanner(t, map[string]string{"d.md": content})

	for run := 0; run < 2; run++ {
		res, err := s.Scan(context.Background())
		if err != nil {
			t.Fatalf("Scan: %v", err)
		}
		if res.Increments.Get("Go") != 1 || res.Increments.Get("Kubernetes") != 1 {
			t.Errorf("run %d increments = %v", run, res.Increments.Map())
		}
		if res.Notes[0].Marked {
			t.Errorf("run %d: header-less note must not be marked", run)
		}
	}
	if readFile(t, dir, "d.md") != content {
		t.Error("header-less note must not be modified")
	}
}

func TestScan_ProcessedAndIndexSkipped(t *testing.T) {
	s, _ := testScanner(t, map[string]string{
		"Mapping job descriptions.md": "[[Python]] [[Data Engineering]]\n",
		"done.md":                     "---\ntags:\n  - jobs\n  - processed\n---\n[[Rust]]\n",
	})
	res, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res.Increments.Len() != 0 {
		t.Errorf("increments = %v", res.Increments.Map())
	}
	if res.Count(models.OutcomeSkippedIndex) != 1 || res.Count(models.OutcomeSkippedProcessed) != 1 {
		t.Errorf("notes = %+v", res.Notes)
	}
}

func TestScan_SecondRunFindsNothing(t *testing.T) {
	s, _ := testScanner(t, map[string]string{
		"a.md": "---\ntags:\n  - jobs\n---\n[[Python]] [[SQL]]\n",
	})
	first, err := s.Scan(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if first.Increments.Len() != 2 {
		t.Fatalf("first run = %v", first.Increments.Map())
	}
	second, err := s.Scan(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if second.Increments.Len() != 0 {
		t.Errorf("second run = %v", second.Increments.Map())
	}
}

func TestExtractSkills_IgnoreSet(t *testing.T) {
	s := New(nil, nil, defaultOptions(), nil)
	got := s.ExtractSkills("[[Data Engineering]] [[Airflow]] [[Mapping job descriptions]] [[dbt]] [[Airflow]]")
	if !reflect.DeepEqual(got, []string{"Airflow", "dbt"}) {
		t.Errorf("skills = %v", got)
	}
}

func TestAccepts(t *testing.T) {
	s := New(nil, nil, defaultOptions(), nil)
	cases := []struct {
		name string
		in   string
		want bool
	}{
		{"no header", "[[Go]]", true},
		{"header without tags", "---\ntitle: x\n---\n", true},
		{"jobs", "---\ntags: [jobs]\n---\n", true},
		{"jobs and reject", "---\ntags: [jobs, reject]\n---\n", false},
		{"reject only", "---\ntags: [reject]\n---\n", false},
		{"other tag", "---\ntags: [notes]\n---\n", false},
		{"empty list", "---\ntags: []\n---\n", false},
		{"case differs", "---\ntags: [Jobs]\n---\n", false},
	}
	for _, tc := range cases {
		if got := s.Accepts(parser.Parse([]byte(tc.in))); got != tc.want {
			t.Errorf("%s: Accepts = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestIsEligible(t *testing.T) {
	s, _ := testScanner(t, nil)
	ctx := context.Background()
	job := parser.Parse([]byte("---\ntags: [jobs]\n---\n"))
	done := parser.Parse([]byte("---\ntags: [jobs, processed]\n---\n"))

	if ok, _ := s.IsEligible(ctx, "a.md", job); !ok {
		t.Error("job note should be eligible")
	}
	if ok, _ := s.IsEligible(ctx, "a.md", done); ok {
		t.Error("processed note should not be eligible")
	}
	if ok, _ := s.IsEligible(ctx, "Mapping job descriptions.md", job); ok {
		t.Error("index note should not be eligible")
	}
}

type stubTracker struct {
	seen    map[string]bool
	marked  []string
	markErr error
}

func (s *stubTracker) Seen(_ context.Context, p string) (bool, error) { return s.seen[p], nil }

func (s *stubTracker) Mark(_ context.Context, p string, _ []byte, _ []string) (bool, error) {
	if s.markErr != nil {
		return false, s.markErr
	}
	s.marked = append(s.marked, p)
	return true, nil
}

func TestScan_TrackerSeenSkips(t *testing.T) {
	dir := t.TempDir()
	_ = os.WriteFile(filepath.Join(dir, "a.md"), []byte("[[Go]]"), 0o644)
	_ = os.WriteFile(filepath.Join(dir, "b.md"), []byte("[[Rust]]"), 0o644)
	store, _ := storage.NewFS(dir)
	tr := &stubTracker{seen: map[string]bool{"a.md": true}}

	res, err := New(store, tr, defaultOptions(), nil).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res.Increments.Has("Go") || res.Increments.Get("Rust") != 1 {
		t.Errorf("increments = %v", res.Increments.Map())
	}
	if !reflect.DeepEqual(tr.marked, []string{"b.md"}) {
		t.Errorf("marked = %v", tr.marked)
	}
}

func TestScan_MarkErrorAborts(t *testing.T) {
	dir := t.TempDir()
	_ = os.WriteFile(filepath.Join(dir, "a.md"), []byte("[[Go]]"), 0o644)
	store, _ := storage.NewFS(dir)
	boom := errors.New("disk full")

	_, err := New(store, &stubTracker{markErr: boom}, defaultOptions(), nil).Scan(context.Background())
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}

func TestPreview_MarksNothing(t *testing.T) {
	note := "---\ntags:\n  - jobs\n---\n[[Python]]\n"
	s, dir := testScanner(t, map[string]string{"a.md": note})

	for i := 0; i < 2; i++ {
		res, err := s.Preview(context.Background())
		if err != nil {
			t.Fatalf("Preview: %v", err)
		}
		if res.Increments.Get("Python") != 1 || res.Marked() != 0 {
			t.Errorf("preview %d = %+v", i, res.Notes)
		}
	}
	if readFile(t, dir, "a.md") != note {
		t.Error("preview must not modify notes")
	}
}

package counter

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/starford/skilltally/internal/apperr"
)

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "skills_count.json"))
	tbl, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tbl.Len() != 0 {
		t.Errorf("len = %d, want 0", tbl.Len())
	}
}

func TestLoad_CorruptFile(t *testing.T) {
	cases := map[string]string{
		"garbage":  "not json",
		"float":    `{"Go": 1.5}`,
		"string":   `{"Go": "many"}`,
		"negative": `{"Go": -1}`,
		"null":     `{"Go": null}`,
		"array":    `[1, 2]`,
		"trailing": `{"Go": 1} {}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			p := filepath.Join(t.TempDir(), "skills_count.json")
			if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := NewStore(p).Load()
			if !errors.Is(err, apperr.ErrCorruptCounts) {
				t.Errorf("err = %v, want ErrCorruptCounts", err)
			}
		})
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "skills_count.json"))
	tbl := NewTable()
	tbl.Add("SQL", 3)
	tbl.Add("Python", 7)
	tbl.Add("Análise de dados", 2)
	tbl.Add("C++ & <Qt>", 1)

	if err := s.Save(tbl); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got.Map(), tbl.Map()) {
		t.Errorf("round trip = %v, want %v", got.Map(), tbl.Map())
	}
}

func TestSave_SortedIndentedUTF8(t *testing.T) {
	p := filepath.Join(t.TempDir(), "skills_count.json")
	tbl := NewTable()
	tbl.Add("SQL", 1)
	tbl.Add("Python", 2)
	tbl.Add("Programação", 1)

	if err := NewStore(p).Save(tbl); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		t.Fatal(err)
	}
	want := "{\n    \"Python\": 2,\n    \"SQL\": 1,\n    \"Programação\": 1\n}\n"
	if string(data) != want {
		t.Errorf("file =\n%s\nwant\n%s", data, want)
	}
}

func TestSave_NoHTMLEscaping(t *testing.T) {
	tbl := NewTable()
	tbl.Add("C++ & <Qt>", 1)
	data, err := Encode(tbl)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if string(data) != "{\n    \"C++ & <Qt>\": 1\n}\n" {
		t.Errorf("encoded = %q", data)
	}
}

func TestSave_EmptyTable(t *testing.T) {
	p := filepath.Join(t.TempDir(), "skills_count.json")
	if err := NewStore(p).Save(NewTable()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, _ := os.ReadFile(p)
	if string(data) != "{}\n" {
		t.Errorf("file = %q", data)
	}
}

func TestLoad_PreservesFileOrderForTies(t *testing.T) {
	p := filepath.Join(t.TempDir(), "skills_count.json")
	_ = os.WriteFile(p, []byte(`{"Zig": 1, "Ada": 1, "Go": 2}`), 0o644)
	tbl, err := NewStore(p).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	sorted := tbl.Sorted()
	names := []string{sorted[0].Name, sorted[1].Name, sorted[2].Name}
	if !reflect.DeepEqual(names, []string{"Go", "Zig", "Ada"}) {
		t.Errorf("order = %v", names)
	}
}

func TestMerge(t *testing.T) {
	base := NewTable()
	base.Add("Python", 4)
	inc := NewTable()
	inc.Add("Python", 1)
	inc.Add("Kafka", 1)

	base.Merge(inc)
	if base.Get("Python") != 5 || base.Get("Kafka") != 1 {
		t.Errorf("merged = %v", base.Map())
	}
	if base.Total() != 6 {
		t.Errorf("total = %d, want 6", base.Total())
	}
	entries := base.Entries()
	if entries[1].Name != "Kafka" {
		t.Errorf("new skills are appended, got %v", entries)
	}
}

func TestTop(t *testing.T) {
	tbl := NewTable()
	for i, name := range []string{"a", "b", "c"} {
		tbl.Add(name, 3-i)
	}
	if got := Top(tbl.Sorted(), 2); len(got) != 2 || got[0].Name != "a" {
		t.Errorf("Top(2) = %v", got)
	}
	if got := Top(tbl.Sorted(), 0); len(got) != 3 {
		t.Errorf("Top(0) = %v", got)
	}
	if got := Top(tbl.Sorted(), 50); len(got) != 3 {
		t.Errorf("Top(50) = %v", got)
	}
}

package counter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/starford/skilltally/internal/apperr"
	"github.com/starford/skilltally/internal/storage"
)

// Store persists a Table as a pretty-printed JSON object.
type Store struct {
	path string
}

// NewStore creates a store for the count file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the count file location.
func (s *Store) Path() string { return s.path }

// Load reads the count file. A missing file yields an empty table; a file
// that cannot be read or decoded is an error.
func (s *Store) Load() (*Table, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return NewTable(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("counter: read %s: %w", s.path, err)
	}
	t, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("counter: %w: %s: %v", apperr.ErrCorruptCounts, s.path, err)
	}
	return t, nil
}

// Save writes t sorted by count descending, replacing the previous file.
func (s *Store) Save(t *Table) error {
	data, err := Encode(t)
	if err != nil {
		return err
	}
	if err := storage.WriteFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("counter: save %s: %w", s.path, err)
	}
	return nil
}

// Decode parses a JSON object of skill counts, keeping key order.
func Decode(data []byte) (*Table, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}
	t := NewTable()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected key %v", tok)
		}
		var n *int
		if err := dec.Decode(&n); err != nil {
			return nil, fmt.Errorf("count for %q: %w", name, err)
		}
		if n == nil {
			return nil, fmt.Errorf("missing count for %q", name)
		}
		if *n < 0 {
			return nil, fmt.Errorf("negative count for %q", name)
		}
		t.m.Set(name, *n)
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after object")
	}
	return t, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

// Encode renders t as the persisted JSON document: sorted by count
// descending, four-space indent, UTF-8 kept unescaped, trailing newline.
func Encode(t *Table) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range t.Sorted() {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString("\n    ")
		key, err := encodeString(e.Name)
		if err != nil {
			return nil, fmt.Errorf("counter: encode %q: %w", e.Name, err)
		}
		buf.Write(key)
		buf.WriteString(": ")
		buf.WriteString(strconv.Itoa(e.Count))
	}
	if t.Len() > 0 {
		buf.WriteByte('\n')
	}
	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

func encodeString(s string) ([]byte, error) {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimRight(b.Bytes(), "\n"), nil
}

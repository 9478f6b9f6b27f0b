package scanner

import (
	"context"
	"fmt"

	"github.com/starford/skilltally/internal/marker"
	"github.com/starford/skilltally/internal/storage"
)

// MarkerTracker records processing by adding a tag to the note header.
// Notes without a header cannot be marked and are scanned again next run.
type MarkerTracker struct {
	store storage.Provider
	tag   string
}

// NewMarkerTracker creates a tracker that writes tag into note headers.
func NewMarkerTracker(store storage.Provider, tag string) *MarkerTracker {
	return &MarkerTracker{store: store, tag: tag}
}

// Seen always reports false; the header tag is checked by the scanner.
func (m *MarkerTracker) Seen(context.Context, string) (bool, error) {
	return false, nil
}

// Mark adds the marker tag and rewrites the note atomically.
func (m *MarkerTracker) Mark(_ context.Context, path string, content []byte, _ []string) (bool, error) {
	updated, changed, err := marker.Apply(content, m.tag)
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}
	if err := m.store.Write(path, updated); err != nil {
		return false, fmt.Errorf("write marker: %w", err)
	}
	return true, nil
}

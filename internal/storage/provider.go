// Package storage defines the note directory file-system abstraction.
package storage

import "github.com/starford/skilltally/internal/models"

// Provider is the interface for note file operations.
type Provider interface {
	// List returns metadata for every note file under dir (relative to the
	// notes root), in directory listing order.
	List(dir string) ([]models.NoteMetadata, error)
	// Read returns the raw bytes of the file at path (relative to the notes root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to the notes root).
	Write(path string, content []byte) error
}

// Package storage is the local notes directory: rendered notes at the root,
// downloaded media flat under assets/.
package storage

import "github.com/starford/tgvault/internal/models"

// AssetsDir is the name of the media subdirectory under the notes root.
const AssetsDir = "assets"

// Provider is the interface for notes directory operations.
type Provider interface {
	// List returns metadata for every .md note under dir (relative to the notes root).
	List(dir string) ([]models.NoteMetadata, error)
	// Read returns the raw bytes of the file at path (relative to the notes root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to the notes root).
	Write(path string, content []byte) error
	// Delete removes the file at path (relative to the notes root).
	Delete(path string) error
}

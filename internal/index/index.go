package index

import "github.com/starford/tgvault/internal/models"

// NoteIndex is the catalogue of notes under the notes root.
// Consumers depend on this interface rather than *DB so they can be tested
// with fakes.
type NoteIndex interface {
	IndexFile(path string, data []byte) (bool, error)
	UpsertNote(n models.NoteRecord, body string) error
	DeleteNote(path string) error
	GetChecksum(path string) (string, error)
	GetNote(path string) (*models.NoteRecord, error)
	ListNotes(q ListQuery) ([]models.NoteRecord, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

var _ NoteIndex = (*DB)(nil)

// Package models defines the domain types for tgvault.
package models

import "time"

// NoteRecord is a catalogued note in the vault.
type NoteRecord struct {
	Path      string    `json:"path"`
	Title     string    `json:"title"`
	Channel   string    `json:"channel,omitempty"`
	Author    string    `json:"author,omitempty"`
	SourceURL string    `json:"source_url,omitempty"`
	Tags      []string  `json:"tags"`
	Checksum  string    `json:"checksum"`
	Date      time.Time `json:"date"` // message date from front-matter
	UpdatedAt time.Time `json:"updated_at"`
}

// NoteMetadata is a lightweight representation returned by list operations.
type NoteMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ExtractedMeta is what the extractor derives from a message body.
// URLs and Tags keep first-occurrence order and are not deduplicated.
type ExtractedMeta struct {
	Title string
	URLs  []string
	Tags  []string
}

// LocalAsset is a downloaded media file inside the assets directory.
type LocalAsset struct {
	Path    string // absolute
	RelPath string // relative to the notes root, e.g. assets/20240101-120000-chan-file_1.jpg
}

// NoteFields is everything the renderer needs to build one note.
type NoteFields struct {
	Title   string
	Body    string
	Channel string
	Author  string
	Date    time.Time
	Assets  []string // paths relative to the notes root
	Tags    []string
	URLs    []string
}

// SourceURL returns the first URL found in the message, or "".
func (f NoteFields) SourceURL() string {
	if len(f.URLs) == 0 {
		return ""
	}
	return f.URLs[0]
}

// StoredNote is the result of a successful local write.
type StoredNote struct {
	Name       string // file name, e.g. 20240101-120000-hello.md
	Path       string // absolute path
	AssetPaths []string
	Content    string
}

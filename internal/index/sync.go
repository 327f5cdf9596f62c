package index

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/tgvault/internal/models"
	"github.com/starford/tgvault/internal/parser"
	"github.com/starford/tgvault/internal/storage"
)

// Sync walks the notes root and brings the index up to date:
//   - new or changed notes are parsed and upserted
//   - notes removed from disk are deleted from the index
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	indexed := 0
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if _, err := db.IndexFile(m.Path, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		indexed++
	}

	removed := 0
	for p := range checksums {
		if _, ok := disk[p]; ok {
			continue
		}
		if err := db.DeleteNote(p); err != nil {
			logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		removed++
	}

	logger.Info("sync: done",
		slog.Int("notes", len(metas)),
		slog.Int("indexed", indexed),
		slog.Int("removed", removed))
	return nil
}

// IndexFile parses a stored note and upserts it. It reports false without
// writing when the stored checksum already matches data.
func (db *DB) IndexFile(path string, data []byte) (bool, error) {
	cs := storage.Checksum(data)
	current, err := db.GetChecksum(path)
	if err != nil {
		return false, err
	}
	if current == cs {
		return false, nil
	}

	res, err := parser.Parse(data)
	if err != nil {
		return false, fmt.Errorf("index: parse %s: %w", path, err)
	}
	row := rowFromParse(path, cs, res)
	if err := db.UpsertNote(row, res.Body); err != nil {
		return false, err
	}
	return true, nil
}

// rowFromParse maps a parse result onto a catalogue row.
func rowFromParse(path, checksum string, res *parser.Result) models.NoteRecord {
	return models.NoteRecord{
		Path:      path,
		Title:     res.Title,
		Channel:   res.Channel,
		Author:    res.Author,
		SourceURL: res.SourceURL,
		Tags:      res.Tags,
		Checksum:  checksum,
		Date:      res.Date,
		UpdatedAt: time.Now().UTC(),
	}
}

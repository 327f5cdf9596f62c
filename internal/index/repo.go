package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/tgvault/internal/apperr"
	"github.com/starford/tgvault/internal/models"
)

// Default and maximum page sizes for ListNotes.
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// ListQuery filters and pages ListNotes. Empty filters match everything.
type ListQuery struct {
	Limit   int
	Offset  int
	Tag     string
	Channel string
}

// Normalize clamps Limit into [1, MaxListLimit] (zero means DefaultListLimit)
// and negative offsets to zero.
func (q ListQuery) Normalize() ListQuery {
	if q.Limit <= 0 {
		q.Limit = DefaultListLimit
	}
	if q.Limit > MaxListLimit {
		q.Limit = MaxListLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}

// SearchResult represents one search hit.
type SearchResult struct {
	Path    string `json:"path"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// UpsertNote inserts or replaces a note and its FTS entry within a transaction.
func (db *DB) UpsertNote(n models.NoteRecord, body string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if n.Tags == nil {
		n.Tags = []string{}
	}
	tagsJSON, _ := json.Marshal(n.Tags)
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = time.Now().UTC()
	}

	_, err = tx.Exec(`
		INSERT INTO notes (path, title, channel, author, source_url, checksum, tags, body, date, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title      = excluded.title,
			channel    = excluded.channel,
			author     = excluded.author,
			source_url = excluded.source_url,
			checksum   = excluded.checksum,
			tags       = excluded.tags,
			body       = excluded.body,
			date       = excluded.date,
			updated_at = excluded.updated_at
	`, n.Path, n.Title, n.Channel, n.Author, n.SourceURL, n.Checksum, string(tagsJSON), body,
		nullTime(n.Date), n.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("index: upsert note: %w", err)
	}

	// No-op when the FTS5 tag is absent.
	if err := ftsUpsert(tx, n, body); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteNote removes a note and its FTS entry.
func (db *DB) DeleteNote(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	if _, err := tx.Exec(`DELETE FROM notes WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete note: %w", err)
	}
	return tx.Commit()
}

// GetChecksum returns the stored checksum for a note, or "" if not indexed.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM notes WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

const noteColumns = `path, title, channel, author, source_url, checksum, tags, date, updated_at`

// GetNote returns one catalogued note or apperr.ErrNotFound.
func (db *DB) GetNote(path string) (*models.NoteRecord, error) {
	row := db.conn.QueryRow(`SELECT `+noteColumns+` FROM notes WHERE path = ?`, path)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get note: %w", err)
	}
	return n, nil
}

// ListNotes returns one page of notes, newest message first, and the total
// number of notes matching the filters.
func (db *DB) ListNotes(q ListQuery) ([]models.NoteRecord, int, error) {
	q = q.Normalize()

	var (
		where []string
		args  []any
	)
	if q.Tag != "" {
		where = append(where, `EXISTS (SELECT 1 FROM json_each(notes.tags) WHERE json_each.value = ?)`)
		args = append(args, strings.TrimPrefix(q.Tag, "#"))
	}
	if q.Channel != "" {
		where = append(where, `channel = ?`)
		args = append(args, q.Channel)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count notes: %w", err)
	}

	rows, err := db.conn.Query(`SELECT `+noteColumns+` FROM notes`+clause+
		` ORDER BY COALESCE(date, updated_at) DESC, path DESC LIMIT ? OFFSET ?`,
		append(args, q.Limit, q.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list notes: %w", err)
	}
	defer rows.Close()

	out := []models.NoteRecord{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("index: scan note: %w", err)
		}
		out = append(out, *n)
	}
	return out, total, rows.Err()
}

// AllChecksums returns path → checksum for every indexed note.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(s scanner) (*models.NoteRecord, error) {
	var (
		n        models.NoteRecord
		tagsJSON string
		date     sql.NullTime
	)
	if err := s.Scan(&n.Path, &n.Title, &n.Channel, &n.Author, &n.SourceURL,
		&n.Checksum, &tagsJSON, &date, &n.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &n.Tags); err != nil || n.Tags == nil {
		n.Tags = []string{}
	}
	if date.Valid {
		n.Date = date.Time.UTC()
	}
	n.UpdatedAt = n.UpdatedAt.UTC()
	return &n, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/starford/tgvault/internal/models"
)

func initFTS(_ *sql.DB) error { return nil }

// Body is already stored in the notes table.
func ftsUpsert(_ *sql.Tx, _ models.NoteRecord, _ string) error { return nil }

func ftsDelete(_ *sql.Tx, _ string) {}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Search matches notes containing every term in the title, body, tags or
// channel, newest message first. Matching is case-insensitive for ASCII only.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	terms := searchTerms(query)
	if len(terms) == 0 {
		return []SearchResult{}, nil
	}

	var (
		where []string
		args  []any
	)
	for _, t := range terms {
		like := "%" + likeEscaper.Replace(t) + "%"
		where = append(where, `(title LIKE ? ESCAPE '\' OR body LIKE ? ESCAPE '\' OR tags LIKE ? ESCAPE '\' OR channel LIKE ? ESCAPE '\')`)
		args = append(args, like, like, like, like)
	}
	args = append(args, searchLimit(limit))

	rows, err := db.conn.Query(`
		SELECT path, title, substr(body, 1, 200)
		FROM notes
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY COALESCE(date, updated_at) DESC
		LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	return scanResults(rows)
}

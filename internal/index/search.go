package index

import (
	"database/sql"
	"fmt"
	"strings"
)

// Search result limits.
const (
	DefaultSearchLimit = 20
	MaxSearchLimit     = 200
)

// searchTerms splits a query on whitespace and drops a leading '#', so that
// "#golang tips" looks for the tag and the word.
func searchTerms(query string) []string {
	var terms []string
	for _, f := range strings.Fields(query) {
		if t := strings.TrimLeft(f, "#"); t != "" {
			terms = append(terms, t)
		}
	}
	return terms
}

func searchLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultSearchLimit
	case limit > MaxSearchLimit:
		return MaxSearchLimit
	}
	return limit
}

func scanResults(rows *sql.Rows) ([]SearchResult, error) {
	defer rows.Close()

	out := []SearchResult{}
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Path, &r.Title, &r.Snippet); err != nil {
			return nil, fmt.Errorf("index: scan result: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Package parser reads front-matter and body back out of stored notes.
package parser

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Result holds the output of parsing a stored note.
type Result struct {
	Frontmatter map[string]any
	Body        string
	Title       string
	Channel     string
	Author      string
	SourceURL   string
	Tags        []string
	Media       []string
	Date        time.Time // zero when absent or unparseable
}

// Parse splits front-matter from body and maps the known note keys.
// Notes without (or with invalid) front-matter are returned as body only.
func Parse(data []byte) (*Result, error) {
	fm, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Frontmatter: fm,
		Body:        body,
		Channel:     stringValue(fm, "channel"),
		Author:      stringValue(fm, "author"),
		SourceURL:   stringValue(fm, "original-url"),
		Tags:        listValue(fm, "tags"),
		Media:       listValue(fm, "media-image"),
		Date:        timeValue(fm, "date"),
	}
	res.Title = deriveTitle(fm, body)
	return res, nil
}

// SplitFrontmatter returns the raw front-matter map, failing on invalid YAML.
// Used where a note must be well-formed, e.g. after rendering.
func SplitFrontmatter(data []byte) (map[string]any, error) {
	block, _, ok := cut(data)
	if !ok {
		return nil, fmt.Errorf("parser: no front-matter block")
	}
	var fm map[string]any
	if err := yaml.Unmarshal(block, &fm); err != nil {
		return nil, fmt.Errorf("parser: front-matter: %w", err)
	}
	return fm, nil
}

// splitFrontmatter separates YAML front-matter (between leading --- delimiters)
// from the Markdown body. If no front-matter is found the entire content is body.
func splitFrontmatter(data []byte) (map[string]any, string, error) {
	block, rest, ok := cut(data)
	if !ok {
		return nil, string(data), nil
	}

	var fm map[string]any
	if err := yaml.Unmarshal(block, &fm); err != nil {
		// Invalid YAML: keep the note searchable as plain text.
		return nil, string(data), nil
	}
	return fm, strings.TrimLeft(string(rest), "\n\r"), nil
}

func cut(data []byte) (block, rest []byte, ok bool) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, nil, false
	}
	after := trimmed[len(delim):]
	idx := bytes.Index(after, []byte("\n"+delim))
	if idx < 0 {
		return nil, nil, false
	}
	return after[:idx], after[idx+1+len(delim):], true
}

func stringValue(fm map[string]any, key string) string {
	if fm == nil {
		return ""
	}
	switch v := fm[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func timeValue(fm map[string]any, key string) time.Time {
	if fm == nil {
		return time.Time{}
	}
	switch v := fm[key].(type) {
	case time.Time:
		return v.UTC()
	case string:
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}
		}
		return t.UTC()
	default:
		return time.Time{}
	}
}

func listValue(fm map[string]any, key string) []string {
	out := []string{}
	if fm == nil {
		return out
	}
	items, ok := fm[key].([]any)
	if !ok {
		return out
	}
	for _, item := range items {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

// deriveTitle prefers the "topic" key, then the first H1 heading.
func deriveTitle(fm map[string]any, body string) string {
	if t := stringValue(fm, "topic"); t != "" {
		return t
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}

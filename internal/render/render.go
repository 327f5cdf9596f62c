// Package render turns note fields into the Markdown document stored in the vault.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/starford/tgvault/internal/models"
)

// Fixed front-matter values.
const (
	SourceType = "telegram"
	Platform   = "telegram"
)

const none = "none"

// Render builds the note document. It is pure: identical fields always
// produce identical output.
func Render(f models.NoteFields) string {
	var b strings.Builder

	b.WriteString("---\n")
	writeScalar(&b, "source-type", SourceType)
	writeScalar(&b, "platform", Platform)
	writeScalar(&b, "channel", f.Channel)
	writeScalar(&b, "author", f.Author)
	writeScalar(&b, "date", formatDate(f.Date))
	writeScalar(&b, "original-url", f.SourceURL())
	writeList(&b, "media-image", f.Assets)
	writeScalar(&b, "topic", f.Title)
	writeList(&b, "tags", f.Tags)
	b.WriteString("---\n\n")

	b.WriteString("# " + f.Title + "\n\n")

	for _, a := range f.Assets {
		b.WriteString("![](" + a + ")\n\n")
	}

	b.WriteString("---\n\n")
	b.WriteString("## Description\n\n")
	b.WriteString(f.Body + "\n\n")
	b.WriteString("---\n\n")

	b.WriteString("## Source\n\n")
	b.WriteString("- Channel: " + f.Channel + "\n")
	b.WriteString("- Author: " + f.Author + "\n")
	b.WriteString("- Link: " + orNone(f.SourceURL()) + "\n\n")

	b.WriteString("## Summary\n\n")
	b.WriteString("- Title: " + f.Title + "\n")
	b.WriteString("- Tags: " + orNone(hashtags(f.Tags)) + "\n")
	b.WriteString("- Links: " + orNone(strings.Join(f.URLs, ", ")) + "\n")

	return b.String()
}

// Escape encodes s for a double-quoted YAML scalar. Control characters,
// Unicode line separators and non-characters become YAML escapes so the
// value survives a parse unchanged.
func Escape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\\':
			b.WriteString(`\\`)
		case r == '"':
			b.WriteString(`\"`)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case r < 0x20, r == 0x7f, r >= 0x80 && r <= 0x9f:
			fmt.Fprintf(&b, `\x%02X`, r)
		case r == 0x2028, r == 0x2029, r == 0xfeff, r == 0xfffe, r == 0xffff:
			fmt.Fprintf(&b, `\u%04X`, r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func writeScalar(b *strings.Builder, key, value string) {
	b.WriteString(key + `: "` + Escape(value) + "\"\n")
}

func writeList(b *strings.Builder, key string, values []string) {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = `"` + Escape(v) + `"`
	}
	b.WriteString(key + ": [" + strings.Join(quoted, ", ") + "]\n")
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func hashtags(tags []string) string {
	parts := make([]string, len(tags))
	for i, t := range tags {
		parts[i] = "#" + t
	}
	return strings.Join(parts, " ")
}

func orNone(s string) string {
	if s == "" {
		return none
	}
	return s
}

// Package extract derives a title, links and hashtags from a chat message body.
package extract

import (
	"regexp"
	"strings"

	"github.com/starford/tgvault/internal/models"
)

// FallbackTitle is used when the body has no non-empty line.
const FallbackTitle = "Untitled"

// MaxTitleLen is the title length limit, in characters.
const MaxTitleLen = 120

var (
	urlRe = regexp.MustCompile(`https?://\S+`)
	tagRe = regexp.MustCompile(`#([\p{Latin}\p{Cyrillic}0-9_-]+)`)
)

// Extract returns the title candidate, URLs and tags found in text.
// It never fails; empty input yields the fallback title and empty slices.
func Extract(text string) models.ExtractedMeta {
	return models.ExtractedMeta{
		Title: Title(text),
		URLs:  URLs(text),
		Tags:  Tags(text),
	}
}

// Title returns the first non-empty line, truncated to MaxTitleLen characters.
func Title(text string) string {
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		return truncate(trimmed, MaxTitleLen)
	}
	return FallbackTitle
}

// URLs returns every http(s) URL in order of appearance.
func URLs(text string) []string {
	out := urlRe.FindAllString(text, -1)
	if out == nil {
		return []string{}
	}
	return out
}

// Tags returns every #hashtag without the leading '#', in order of appearance.
func Tags(text string) []string {
	matches := tagRe.FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

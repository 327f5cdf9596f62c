// Package naming builds the file names used for notes and assets.
package naming

import (
	"path"
	"regexp"
	"strings"
	"time"
	"unicode"
)

// TimestampLayout is the second-resolution prefix shared by notes and assets.
const TimestampLayout = "20060102-150405"

var unsafeNameRe = regexp.MustCompile(`[^\p{L}\p{N}._-]+`)

// Timestamp formats t with TimestampLayout in t's own location.
func Timestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// Slug lowercases s, replaces every run of non letter/digit characters with a
// single '-' and trims dashes. The result is cut to max runes (0 means no limit).
func Slug(s string, max int) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimRight(b.String(), "-")
	if max > 0 {
		if r := []rune(out); len(r) > max {
			out = strings.TrimRight(string(r[:max]), "-")
		}
	}
	return out
}

// SafeBase reduces a declared or server-side file name to a plain base name
// without separators. Returns fallback when nothing usable is left.
func SafeBase(name, fallback string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	base = unsafeNameRe.ReplaceAllString(base, "_")
	base = strings.Trim(base, "._")
	if base == "" {
		return fallback
	}
	return base
}

package mirror

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// NoteMimeType is the content type used for uploaded notes.
const NoteMimeType = "text/markdown"

const fallbackMimeType = "application/octet-stream"

// DetectMIME guesses a content type from the file extension, falling back to
// sniffing the file contents.
func DetectMIME(path string) string {
	if ext := filepath.Ext(path); ext != "" {
		if t := mime.TypeByExtension(strings.ToLower(ext)); t != "" {
			return stripParams(t)
		}
	}
	mt, err := mimetype.DetectFile(path)
	if err != nil || mt == nil {
		return fallbackMimeType
	}
	return stripParams(mt.String())
}

func stripParams(t string) string {
	if i := strings.Index(t, ";"); i >= 0 {
		return strings.TrimSpace(t[:i])
	}
	return t
}

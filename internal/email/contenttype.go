package email

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultContentType is used when nothing better can be determined.
const DefaultContentType = "application/octet-stream"

// ContentType guesses the media type of an attachment, first from the
// file name extension and then by sniffing content.
func ContentType(filename string, content []byte) string {
	if ext := strings.ToLower(filepath.Ext(filename)); ext != "" {
		if t := mime.TypeByExtension(ext); t != "" {
			return t
		}
	}
	if len(content) == 0 {
		return DefaultContentType
	}
	return mimetype.Detect(content).String()
}

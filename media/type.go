package media

import (
	"mime"
	"net/url"
	"path"
	"strings"
)

// Container extensions not reliably present in the platform MIME database.
var mimeTypes = map[string]string{
	".aac":  "audio/aac",
	".adts": "audio/aac",
	".flac": "audio/flac",
	".m4a":  "audio/mp4",
	".mkv":  "video/x-matroska",
	".mp3":  "audio/mpeg",
	".mp4":  "video/mp4",
	".ogg":  "audio/ogg",
	".srt":  "application/x-subrip",
	".ts":   "video/mp2t",
	".vtt":  "text/vtt",
	".wav":  "audio/wav",
	".webm": "video/webm",
}

var extensions = map[string]string{
	"audio/aac":        "aac",
	"audio/flac":       "flac",
	"audio/mp4":        "m4a",
	"audio/mpeg":       "mp3",
	"audio/ogg":        "ogg",
	"audio/wav":        "wav",
	"audio/x-wav":      "wav",
	"video/mp2t":       "ts",
	"video/mp4":        "mp4",
	"video/webm":       "webm",
	"video/x-matroska": "mkv",
}

// MIMETypeByExtension resolves a MIME type from a file extension
// (with or without the leading dot). Unknown extensions yield "".
func MIMETypeByExtension(ext string) string {
	if ext == "" {
		return ""
	}

	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	ext = strings.ToLower(ext)
	if value, ok := mimeTypes[ext]; ok {
		return value
	}

	value, _, err := mime.ParseMediaType(mime.TypeByExtension(ext))
	if err != nil {
		return ""
	}

	return value
}

// URLFileName extracts the file name from the path component of a URL,
// ignoring query and fragment.
func URLFileName(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		return path.Base(u.Path)
	}

	return path.Base(rawURL)
}

// URLExtension resolves the container extension (without dot) from the path
// component of a URL, ignoring query and fragment.
func URLExtension(rawURL string) string {
	return strings.TrimPrefix(path.Ext(URLFileName(rawURL)), ".")
}

// ExtensionByMIMEType resolves the canonical extension (without dot) for a
// media MIME type. Unknown types yield "".
func ExtensionByMIMEType(mimeType string) string {
	if ext, ok := extensions[strings.ToLower(mimeType)]; ok {
		return ext
	}

	exts, err := mime.ExtensionsByType(mimeType)
	if err != nil || len(exts) == 0 {
		return ""
	}

	return strings.TrimPrefix(exts[0], ".")
}

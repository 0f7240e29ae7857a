package httpserver

import (
	"mime"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

const (
	maxZipBaseName = 120
	maxZipPath     = 240
)

// commonTypes covers what phones and laptops usually drop into a share, for
// hosts whose mime tables lack them.
var commonTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".heic": "image/heic",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".pdf":  "application/pdf",
	".txt":  "text/plain; charset=utf-8",
	".md":   "text/plain; charset=utf-8",
	".csv":  "text/plain; charset=utf-8",
	".zip":  "application/zip",
}

// contentTypeForName guesses a download's Content-Type from its extension.
// Empty means unknown.
func contentTypeForName(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return ""
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return commonTypes[ext]
}

func isImageExt(ext string) bool {
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return true
	default:
		return false
	}
}

// sanitizeZipBaseName turns a folder name into the archive's base name
// (without .zip) and its top-level directory inside the archive.
func sanitizeZipBaseName(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ".zip")
	s = strings.ReplaceAll(s, "\x00", "")
	s = strings.NewReplacer("/", "-", `\`, "-").Replace(s)
	s = strings.Trim(s, ". ")
	if s == "" {
		return "download"
	}
	return truncateUTF8(s, maxZipBaseName)
}

// sanitizeZipPath makes p a relative slash path that cannot climb out of
// the archive root. "" means skip the entry.
func sanitizeZipPath(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	p = strings.ReplaceAll(p, "\x00", "")
	if p == "." || p == "" {
		return ""
	}
	return truncateUTF8(p, maxZipPath)
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

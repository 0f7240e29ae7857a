package httpserver

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncateUTF8(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"abc", 5, "abc"},
		{"abcdef", 3, "abc"},
		{"aé", 2, "a"}, // é is two bytes
		{"日本", 4, "日"},
		{"日本", 2, ""},
	}
	for _, tt := range tests {
		if got := truncateUTF8(tt.in, tt.n); got != tt.want {
			t.Errorf("truncateUTF8(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestSanitizeZipPath_LongUnicode(t *testing.T) {
	long := "photos/" + strings.Repeat("é", 200) + ".jpg"
	got := sanitizeZipPath(long)
	if len(got) > maxZipPath || !utf8.ValidString(got) {
		t.Errorf("sanitizeZipPath = %d bytes, valid UTF-8 %v", len(got), utf8.ValidString(got))
	}
	base := sanitizeZipBaseName(strings.Repeat("ü", 100))
	if len(base) > maxZipBaseName || !utf8.ValidString(base) {
		t.Errorf("sanitizeZipBaseName = %d bytes, valid UTF-8 %v", len(base), utf8.ValidString(base))
	}
}

func TestContentTypeForName(t *testing.T) {
	if got := contentTypeForName("notes.md"); !strings.HasPrefix(got, "text/") {
		t.Errorf("notes.md = %q", got)
	}
	if got := contentTypeForName("photo.JPG"); got != "image/jpeg" {
		t.Errorf("photo.JPG = %q", got)
	}
	if got := contentTypeForName("README"); got != "" {
		t.Errorf("README = %q, want empty", got)
	}
	if got := contentTypeForName("x.unknownext"); got != "" {
		t.Errorf("x.unknownext = %q, want empty", got)
	}
}

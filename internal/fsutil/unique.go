package fsutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// ErrInvalidName is returned for upload names that reduce to nothing usable.
var ErrInvalidName = errors.New("invalid file name")

// maxUniqueAttempts bounds the _N search so a pathological directory cannot
// spin a request forever.
const maxUniqueAttempts = 10000

// SanitizeName keeps only the base name of a client supplied file name and
// strips control characters. Both slash styles count as separators since
// browsers on Windows may send full paths.
func SanitizeName(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return "", ErrInvalidName
	}
	return name, nil
}

// CandidateName returns the n-th collision alternative for name: report.txt,
// report_1.txt, report_2.txt, ... Dotfiles like ".env" keep their name as the
// stem.
func CandidateName(name string, n int) string {
	if n == 0 {
		return name
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	if stem == "" {
		stem, ext = name, ""
	}
	return fmt.Sprintf("%s_%d%s", stem, n, ext)
}

// CreateUnique creates a new file in dir named name, or the first free
// CandidateName. The existence check and the create are one O_EXCL open, so
// two concurrent uploads of the same name never overwrite each other.
func CreateUnique(dir, name string) (*os.File, string, error) {
	for n := 0; n < maxUniqueAttempts; n++ {
		cand := CandidateName(name, n)
		f, err := os.OpenFile(filepath.Join(dir, cand), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			return f, cand, nil
		}
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		return nil, "", err
	}
	return nil, "", fmt.Errorf("no free name for %q after %d attempts", name, maxUniqueAttempts)
}

package fsutil

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrUnsafePath is returned when a relative path resolves outside the root.
var ErrUnsafePath = errors.New("path escapes shared root")

// CleanRelPath normalizes a user path like "", ".", "a//b", "a\b" into a
// slash-based path with no leading slash. Unlike path.Clean on an absolute
// path it keeps leading ".." elements, so escapes stay visible to Resolve.
func CleanRelPath(p string) string {
	p = strings.TrimSpace(p)
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimLeft(p, "/")
	if p == "" {
		return ""
	}
	p = path.Clean(p)
	if p == "." {
		return ""
	}
	return p
}

// Resolve maps rel onto rootAbs and returns the canonical absolute path that
// callers must use to access the file. Symlinks are evaluated on the longest
// existing prefix, so a link pointing outside the root is rejected even when
// the lexical path looks fine. Any resolution failure yields ErrUnsafePath.
func Resolve(rootAbs string, rel string) (string, error) {
	if rootAbs == "" || !filepath.IsAbs(rootAbs) {
		return "", ErrUnsafePath
	}
	if strings.ContainsRune(rel, 0) {
		return "", ErrUnsafePath
	}
	root, err := filepath.EvalSymlinks(filepath.Clean(rootAbs))
	if err != nil {
		return "", ErrUnsafePath
	}
	rel = CleanRelPath(rel)
	lexical := filepath.Join(root, filepath.FromSlash(rel))
	if !within(root, lexical) {
		return "", ErrUnsafePath
	}
	real, err := evalExisting(lexical)
	if err != nil {
		return "", ErrUnsafePath
	}
	if !within(root, real) {
		return "", ErrUnsafePath
	}
	return real, nil
}

// IsSafe reports whether rel stays inside rootAbs. It shares Resolve's rules
// exactly; the root itself counts as inside.
func IsSafe(rootAbs string, rel string) bool {
	_, err := Resolve(rootAbs, rel)
	return err == nil
}

// within reports whether p is root or below it. Works for "/" and drive
// roots, where root already ends in a separator.
func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// evalExisting resolves symlinks of the deepest existing ancestor of p and
// re-attaches the missing tail.
func evalExisting(p string) (string, error) {
	var tail []string
	cur := p
	for {
		real, err := filepath.EvalSymlinks(cur)
		if err == nil {
			for i := len(tail) - 1; i >= 0; i-- {
				real = filepath.Join(real, tail[i])
			}
			return real, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", err
		}
		tail = append(tail, filepath.Base(cur))
		cur = parent
	}
}

// IsDir reports whether p exists and is a directory.
func IsDir(p string) bool {
	st, err := os.Stat(p)
	return err == nil && st.IsDir()
}

package fsutil

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Kind classifies a listing entry.
type Kind string

const (
	KindFile      Kind = "file"
	KindDirectory Kind = "directory"
)

// Entry is one immediate child of a scanned directory.
type Entry struct {
	Name    string    `json:"name"`
	Kind    Kind      `json:"type"`
	Size    string    `json:"size,omitempty"` // files only
	Bytes   int64     `json:"bytes,omitempty"`
	ModTime time.Time `json:"mtime"`
}

func (e Entry) IsDir() bool { return e.Kind == KindDirectory }

// Scan lists the immediate children of dir, directories first and then
// files, each group ordered case-insensitively. Symlinks are classified by
// their target. Unreadable directories produce an empty listing and
// unreadable or special children are skipped; Scan never fails.
func Scan(dir string) []Entry {
	return scan(dir, "")
}

// ScanWithin is Scan for a directory below rootAbs. Symlinked children whose
// target lies outside rootAbs are left out, so every listed entry can be
// opened through Resolve.
func ScanWithin(rootAbs, dir string) []Entry {
	root, err := filepath.EvalSymlinks(rootAbs)
	if err != nil {
		return []Entry{}
	}
	return scan(dir, root)
}

func scan(dir, root string) []Entry {
	ents, err := os.ReadDir(dir)
	if err != nil && len(ents) == 0 {
		return []Entry{}
	}
	items := make([]Entry, 0, len(ents))
	for _, e := range ents {
		name := e.Name()
		full := filepath.Join(dir, name)
		if root != "" && e.Type()&fs.ModeSymlink != 0 {
			real, err := filepath.EvalSymlinks(full)
			if err != nil || !within(root, real) {
				continue
			}
		}
		st, err := os.Stat(full)
		if err != nil {
			continue
		}
		switch {
		case st.IsDir():
			items = append(items, Entry{Name: name, Kind: KindDirectory, ModTime: st.ModTime()})
		case st.Mode().IsRegular():
			items = append(items, Entry{
				Name:    name,
				Kind:    KindFile,
				Size:    FormatSize(st.Size()),
				Bytes:   st.Size(),
				ModTime: st.ModTime(),
			})
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].IsDir() != items[j].IsDir() {
			return items[i].IsDir()
		}
		li, lj := strings.ToLower(items[i].Name), strings.ToLower(items[j].Name)
		if li != lj {
			return li < lj
		}
		return items[i].Name < items[j].Name
	})
	return items
}

var sizeUnits = []string{"B", "KB", "MB", "GB", "TB"}

// FormatSize renders n bytes with binary prefixes and one decimal place,
// e.g. 1536 -> "1.5 KB". Values past GB stay in TB.
func FormatSize(n int64) string {
	size := float64(n)
	last := len(sizeUnits) - 1
	for _, unit := range sizeUnits[:last] {
		if size < 1024 {
			return fmt.Sprintf("%.1f %s", size, unit)
		}
		size /= 1024
	}
	return fmt.Sprintf("%.1f %s", size, sizeUnits[last])
}

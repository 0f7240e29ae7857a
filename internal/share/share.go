// Package share holds the single directory currently exposed to the network.
package share

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	// ErrNoRoot is returned while no folder is shared.
	ErrNoRoot = errors.New("no folder is being shared")
	// ErrNotDirectory is returned by Set for paths that are not directories.
	ErrNotDirectory = errors.New("not a directory")
)

// Root is the SharedRoot reference. Set is last-writer-wins; a reader that
// already fetched the old path keeps using it until its request completes.
type Root struct {
	mu   sync.RWMutex
	path string
}

// Get returns the absolute shared path, or ErrNoRoot.
func (r *Root) Get() (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.path == "" {
		return "", ErrNoRoot
	}
	return r.path, nil
}

// Path returns the shared path or "" while unset.
func (r *Root) Path() string {
	p, _ := r.Get()
	return p
}

// Set validates p and makes its absolute form the shared root. On error the
// previous root stays in place.
func (r *Root) Set(p string) (string, error) {
	p = strings.Trim(strings.TrimSpace(p), `"'`)
	if p == "" {
		return "", fmt.Errorf("empty folder path: %w", ErrNotDirectory)
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", p, err)
	}
	st, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", abs, err)
	}
	if !st.IsDir() {
		return "", fmt.Errorf("%s: %w", abs, ErrNotDirectory)
	}
	r.mu.Lock()
	r.path = abs
	r.mu.Unlock()
	return abs, nil
}

// Name is the base name of the shared folder, for display.
func (r *Root) Name() string {
	p := r.Path()
	if p == "" {
		return ""
	}
	return filepath.Base(p)
}

package httpserver

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"

	"golang.org/x/net/webdav"

	"lanshare/internal/fsutil"
	"lanshare/internal/share"
)

// davFS is a read-only webdav.FileSystem over whatever folder is currently
// shared. Every name goes through fsutil.Resolve, the same as the browse and
// download handlers.
type davFS struct {
	root *share.Root
}

func (d davFS) resolve(name string) (string, error) {
	base, err := d.root.Get()
	if err != nil {
		return "", os.ErrNotExist
	}
	p, err := fsutil.Resolve(base, strings.TrimPrefix(name, "/"))
	if err != nil {
		return "", os.ErrPermission
	}
	return p, nil
}

func (d davFS) Mkdir(ctx context.Context, name string, perm os.FileMode) error {
	return os.ErrPermission
}

func (d davFS) OpenFile(ctx context.Context, name string, flag int, perm os.FileMode) (webdav.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC|os.O_APPEND) != 0 {
		return nil, os.ErrPermission
	}
	p, err := d.resolve(name)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

func (d davFS) RemoveAll(ctx context.Context, name string) error {
	return os.ErrPermission
}

func (d davFS) Rename(ctx context.Context, oldName, newName string) error {
	return os.ErrPermission
}

func (d davFS) Stat(ctx context.Context, name string) (os.FileInfo, error) {
	p, err := d.resolve(name)
	if err != nil {
		return nil, err
	}
	return os.Stat(p)
}

var errDAVReadOnly = errors.New("webdav mount is read-only")

func (s *Server) davHandler() http.Handler {
	dav := &webdav.Handler{
		Prefix:     "/dav",
		FileSystem: davFS{root: s.root},
		LockSystem: webdav.NewMemLS(),
		Logger: func(r *http.Request, err error) {
			if err != nil && !errors.Is(err, os.ErrNotExist) {
				LoggerFromContext(r.Context()).Debug("webdav", "method", r.Method, "path", r.URL.Path, "error", err)
			}
		},
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions, "PROPFIND":
		default:
			w.Header().Set("Allow", "GET, HEAD, OPTIONS, PROPFIND")
			http.Error(w, errDAVReadOnly.Error(), http.StatusMethodNotAllowed)
			return
		}
		if _, err := s.root.Get(); err != nil {
			http.Error(w, "No folder is being shared", http.StatusServiceUnavailable)
			return
		}
		dav.ServeHTTP(w, r)
	})
}

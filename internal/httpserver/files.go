package httpserver

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"lanshare/internal/fsutil"
	"lanshare/internal/presence"
)

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	base, err := s.root.Get()
	if err != nil {
		http.Error(w, "No folder is being shared", http.StatusNotFound)
		return
	}
	rel := fsutil.CleanRelPath(r.PathValue("filename"))
	target, err := fsutil.Resolve(base, rel)
	if err != nil {
		LoggerFromContext(r.Context()).Warn("download rejected", "path", rel, "remote", clientIP(r))
		http.Error(w, "Access denied", http.StatusForbidden)
		return
	}
	f, err := os.Open(target)
	if err != nil {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil || !st.Mode().IsRegular() {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	s.touch(r, sess, "downloading: /"+rel)
	if r.Method == http.MethodGet {
		s.record(r, sess, presence.KindDownload, rel)
	}

	ct := contentTypeForName(st.Name())
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", attachment(st.Name()))
	w.Header().Set("ETag", fileETag(rel, st))
	http.ServeContent(w, r, st.Name(), st.ModTime(), f)
}

func attachment(name string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "attachment"
}

// fileETag is a weak validator over path, size and mtime.
func fileETag(rel string, st os.FileInfo) string {
	h := xxhash.New()
	_, _ = h.WriteString(rel)
	_, _ = h.WriteString("\x00" + strconv.FormatInt(st.Size(), 10))
	_, _ = h.WriteString("\x00" + strconv.FormatInt(st.ModTime().UnixNano(), 10))
	return fmt.Sprintf(`W/"%016x"`, h.Sum64())
}

// handleZip streams a file or a whole directory tree as a zip attachment.
// Only regular files are added; symlinks inside the tree are skipped so the
// archive never reaches outside the shared root.
func (s *Server) handleZip(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	base, err := s.root.Get()
	if err != nil {
		http.Error(w, "No folder is being shared", http.StatusNotFound)
		return
	}
	rel := fsutil.CleanRelPath(r.PathValue("path"))
	target, err := fsutil.Resolve(base, rel)
	if err != nil {
		http.Error(w, "Access denied", http.StatusForbidden)
		return
	}
	st, err := os.Stat(target)
	if err != nil {
		http.Error(w, "Path not found", http.StatusNotFound)
		return
	}

	name := sanitizeZipBaseName(filepath.Base(target))
	s.touch(r, sess, "downloading: /"+rel)
	s.record(r, sess, presence.KindDownload, "/"+rel+" (zip)")

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", attachment(name+".zip"))
	zw := zip.NewWriter(w)
	defer zw.Close()

	if !st.IsDir() {
		_ = addZipFile(zw, target, sanitizeZipPath(st.Name()), st)
		return
	}
	ctx := r.Context()
	err = filepath.WalkDir(target, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !d.Type().IsRegular() {
			return nil
		}
		relp, err := filepath.Rel(target, p)
		if err != nil {
			return nil
		}
		zipPath := sanitizeZipPath(path.Join(name, filepath.ToSlash(relp)))
		if zipPath == "" {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		return addZipFile(zw, p, zipPath, info)
	})
	if err != nil {
		LoggerFromContext(ctx).Info("zip aborted", "path", rel, "error", err)
	}
}

func addZipFile(zw *zip.Writer, abs, zipPath string, info os.FileInfo) error {
	f, err := os.Open(abs)
	if err != nil {
		return nil
	}
	defer f.Close()
	h := &zip.FileHeader{Name: zipPath, Method: zip.Deflate, Modified: info.ModTime()}
	wr, err := zw.CreateHeader(h)
	if err != nil {
		return err
	}
	_, err = io.Copy(wr, f)
	return err
}

func (s *Server) handleThumb(w http.ResponseWriter, r *http.Request) {
	base, err := s.root.Get()
	if err != nil {
		http.NotFound(w, r)
		return
	}
	target, err := fsutil.Resolve(base, r.URL.Query().Get("path"))
	if err != nil {
		http.Error(w, "Access denied", http.StatusForbidden)
		return
	}
	st, err := os.Stat(target)
	if err != nil || !st.Mode().IsRegular() || !isImageExt(strings.ToLower(filepath.Ext(target))) {
		http.NotFound(w, r)
		return
	}
	b, err := makeThumb(target, thumbSize)
	if err != nil {
		LoggerFromContext(r.Context()).Debug("thumbnail failed", "path", target, "error", err)
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	_, _ = w.Write(b)
}

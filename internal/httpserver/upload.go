package httpserver

import (
	"fmt"
	"mime/multipart"
	"net/http"

	"lanshare/internal/fsutil"
	"lanshare/internal/presence"
	"lanshare/internal/upload"
)

type uploadResponse struct {
	Message string          `json:"message"`
	Results []upload.Result `json:"results"`
}

type uploadFailure struct {
	Error   string          `json:"error"`
	Details []upload.Result `json:"details"`
}

// handleUpload saves every "file" part into the shared root, or into the
// browsed subfolder named by the optional "path" field.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	log := LoggerFromContext(r.Context())
	base, err := s.root.Get()
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "No folder is being shared")
		return
	}
	if err := r.ParseMultipartForm(s.cfg.Upload.MaxMemoryMB << 20); err != nil {
		writeJSONError(w, http.StatusBadRequest, "No file selected")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	files := nonEmpty(r.MultipartForm.File["file"])
	if len(files) == 0 {
		writeJSONError(w, http.StatusBadRequest, "No file selected")
		return
	}
	sub := fsutil.CleanRelPath(r.FormValue("path"))
	dir, err := fsutil.Resolve(base, sub)
	if err != nil {
		log.Warn("upload rejected", "path", sub, "remote", clientIP(r))
		writeJSONError(w, http.StatusForbidden, "Access denied")
		return
	}
	if !fsutil.IsDir(dir) {
		writeJSONError(w, http.StatusNotFound, "Upload folder not found")
		return
	}

	location := "uploading to root"
	if sub != "" {
		location = "uploading to /" + sub
	}
	s.touch(r, sess, location)

	results := s.saver.SaveAll(dir, files)
	ok := 0
	for _, res := range results {
		if !res.OK() {
			log.Info("upload failed", "file", res.Filename, "reason", res.Message)
			s.observeUpload("error", 0)
			continue
		}
		ok++
		s.observeUpload("success", res.Size)
		detail := res.Filename
		if sub != "" {
			detail = sub + "/" + res.Filename
		}
		s.record(r, sess, presence.KindUpload, detail)
	}
	if ok == 0 {
		writeJSON(w, http.StatusBadRequest, uploadFailure{Error: "No files were uploaded", Details: results})
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{
		Message: fmt.Sprintf("%d of %d file(s) uploaded successfully", ok, len(results)),
		Results: results,
	})
}

// nonEmpty drops parts sent by an empty file input.
func nonEmpty(files []*multipart.FileHeader) []*multipart.FileHeader {
	out := files[:0:0]
	for _, fh := range files {
		if fh.Filename != "" {
			out = append(out, fh)
		}
	}
	return out
}

func (s *Server) observeUpload(result string, n int64) {
	if s.metrics == nil {
		return
	}
	s.metrics.UploadedFiles.WithLabelValues(result).Inc()
	if n > 0 {
		s.metrics.UploadedBytes.Add(float64(n))
	}
}

package upload

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"

	"lanshare/internal/fsutil"
)

// Multipart upload into a shared directory:
// - every part of field "file" is saved on its own
// - a name collision never overwrites and never rejects: report.txt becomes
//   report_1.txt, report_2.txt, ... checked against the directory as it is
//   when that particular file is saved
// - one failing file does not stop the rest of the batch

type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Result describes one file of a batch. Filename is the name actually used
// on disk for successes and the sanitized (or raw) client name otherwise.
type Result struct {
	Filename string `json:"filename"`
	Status   Status `json:"status"`
	Message  string `json:"message"`
	Size     int64  `json:"-"`
	Renamed  bool   `json:"-"`
}

func (r Result) OK() bool { return r.Status == StatusSuccess }

type Saver struct{}

// SaveAll stores each header into dirAbs in order.
func (s Saver) SaveAll(dirAbs string, files []*multipart.FileHeader) []Result {
	out := make([]Result, 0, len(files))
	for _, fh := range files {
		out = append(out, s.Save(dirAbs, fh))
	}
	return out
}

// Save stores one uploaded file into dirAbs.
func (s Saver) Save(dirAbs string, fh *multipart.FileHeader) Result {
	name, err := fsutil.SanitizeName(fh.Filename)
	if err != nil {
		return Result{Filename: fh.Filename, Status: StatusError, Message: "Invalid file name"}
	}
	src, err := fh.Open()
	if err != nil {
		return Result{Filename: name, Status: StatusError, Message: "Could not read upload: " + err.Error()}
	}
	defer src.Close()

	final, n, err := s.write(dirAbs, name, src)
	if err != nil {
		return Result{Filename: name, Status: StatusError, Message: "Upload failed: " + err.Error()}
	}
	res := Result{Filename: final, Status: StatusSuccess, Size: n, Renamed: final != name}
	if res.Renamed {
		res.Message = fmt.Sprintf("Uploaded as %s (%s already exists)", final, name)
	} else {
		res.Message = "Uploaded successfully"
	}
	return res
}

func (s Saver) write(dirAbs, name string, src io.Reader) (string, int64, error) {
	dst, final, err := fsutil.CreateUnique(dirAbs, name)
	if err != nil {
		return "", 0, err
	}
	full := filepath.Join(dirAbs, final)
	n, err := io.Copy(dst, src)
	if err == nil {
		err = dst.Sync()
	}
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		// do not leave a truncated file behind under the claimed name
		_ = os.Remove(full)
		return "", 0, errors.Join(fmt.Errorf("write %s", final), err)
	}
	return final, n, nil
}

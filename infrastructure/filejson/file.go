package filejson

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"yt-elt/domain/apperror"
	"yt-elt/domain/model"
	"yt-elt/infrastructure/logger"
)

const (
	DateLayout      = "2006-01-02"
	DatePlaceholder = "{date}"
)

// ResolvePath substitutes the run date into the output path template.
func ResolvePath(template string, date time.Time) string {
	return strings.ReplaceAll(template, DatePlaceholder, date.Format(DateLayout))
}

// Write serializes records as a 4-space indented JSON array and replaces path atomically.
// Re-running with identical records for the same path produces identical bytes.
func Write(records []model.VideoRecord, path string) error {
	if records == nil {
		records = []model.VideoRecord{}
	}

	w, err := newAtomicWriter(path)
	if err != nil {
		logger.GetLogger().WithField("error", err).WithField("path", path).Error("Error while open file")
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(records); err != nil {
		_ = w.abort()
		return &apperror.IOError{Op: "encode", Path: path, Err: err}
	}
	if err := w.commit(); err != nil {
		return err
	}

	logger.GetLogger().
		WithField("path", path).
		WithField("records", len(records)).
		Info("Output written")
	return nil
}

// atomicWriter writes to a temp file next to the target and renames it into place on commit.
type atomicWriter struct {
	path string
	file *os.File
}

func newAtomicWriter(path string) (*atomicWriter, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &apperror.IOError{Op: "mkdir", Path: dir, Err: err}
	}
	f, err := os.CreateTemp(dir, ".yt-elt-*.tmp")
	if err != nil {
		return nil, &apperror.IOError{Op: "create", Path: path, Err: err}
	}
	return &atomicWriter{path: path, file: f}, nil
}

func (w *atomicWriter) Write(p []byte) (int, error) {
	return w.file.Write(p)
}

func (w *atomicWriter) commit() error {
	tmp := w.file.Name()
	if err := w.file.Sync(); err != nil {
		_ = w.abort()
		return &apperror.IOError{Op: "sync", Path: w.path, Err: err}
	}
	if err := w.file.Close(); err != nil {
		_ = os.Remove(tmp)
		return &apperror.IOError{Op: "close", Path: w.path, Err: err}
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		_ = os.Remove(tmp)
		return &apperror.IOError{Op: "chmod", Path: w.path, Err: err}
	}
	if err := os.Rename(tmp, w.path); err != nil {
		_ = os.Remove(tmp)
		return &apperror.IOError{Op: "rename", Path: w.path, Err: err}
	}
	return nil
}

func (w *atomicWriter) abort() error {
	_ = w.file.Close()
	return os.Remove(w.file.Name())
}

package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/junsooki/reel/internal/decoder"
	"github.com/junsooki/reel/internal/encoder"
)

// Writer saves every N-th decoded frame to <dir>/<prefix>-<frame number><ext>.
type Writer struct {
	dir     string
	prefix  string
	every   int64
	enc     encoder.Encoder
	written int
}

// NewWriter creates dir if needed and returns a Writer. every < 1 is treated as 1.
func NewWriter(dir, prefix string, every int, enc encoder.Encoder) (*Writer, error) {
	if dir == "" {
		return nil, fmt.Errorf("snapshot directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}
	if every < 1 {
		every = 1
	}
	return &Writer{
		dir:    dir,
		prefix: prefix,
		every:  int64(every),
		enc:    enc,
	}, nil
}

// PrefixFor derives a file name prefix from an input path or URL,
// e.g. "/movies/MyMov.mp4" gives "MyMov".
func PrefixFor(input string) string {
	base := filepath.Base(input)
	if i := strings.IndexAny(base, "?#"); i >= 0 {
		base = base[:i]
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "frame"
	}
	return base
}

// Path returns the file name used for frame number n.
func (w *Writer) Path(n int64) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s-%d%s", w.prefix, n, w.enc.Extension()))
}

// Wants reports whether frame number n will be written.
func (w *Writer) Wants(n int64) bool {
	return n > 0 && (n-1)%w.every == 0
}

// WriteFrame saves f if it is one of the selected frames.
func (w *Writer) WriteFrame(_ context.Context, f *decoder.Frame) error {
	if !w.Wants(f.Number) {
		return nil
	}
	if f.Image == nil {
		return fmt.Errorf("frame %d has not been converted", f.Number)
	}

	path := w.Path(f.Number)
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := w.enc.EncodeTo(file, f.Image); err != nil {
		file.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	w.written++

	logrus.WithFields(logrus.Fields{
		"function": "WriteFrame",
		"frame":    f.Number,
		"path":     path,
	}).Debug("Saved frame")
	return nil
}

// Written returns how many files were saved.
func (w *Writer) Written() int {
	return w.written
}

func (w *Writer) Close() error {
	logrus.WithFields(logrus.Fields{
		"function": "Close",
		"dir":      w.dir,
		"written":  w.written,
	}).Info("Snapshots saved")
	return nil
}

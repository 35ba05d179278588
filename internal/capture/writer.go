package capture

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// Writer stores encoded images by writing a temporary file next to the
// destination and renaming it into place.
type Writer struct {
	fs afero.Fs
}

// NewWriter returns a Writer on fs. A nil fs means the host filesystem.
func NewWriter(fs afero.Fs) *Writer {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Writer{fs: fs}
}

// Write atomically replaces path with data, creating the parent directory if
// needed. On failure no temporary file is left behind.
func (w *Writer) Write(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if _, statErr := w.fs.Stat(dir); statErr != nil {
		if err := w.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(path), uuid.NewString()))
	f, err := w.fs.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = w.fs.Remove(tmp)
		}
	}()

	if _, err = f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err = f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to sync temporary file: %w", err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file: %w", err)
	}
	if err = w.fs.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to move file into place: %w", err)
	}
	return nil
}

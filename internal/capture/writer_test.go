package capture

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
)

// renameFailFs fails every rename, simulating a destination that cannot be
// replaced.
type renameFailFs struct {
	afero.Fs
}

func (renameFailFs) Rename(oldname, newname string) error {
	return &os.LinkError{Op: "rename", Old: oldname, New: newname, Err: errors.New("device busy")}
}

func TestWriterWrite(t *testing.T) {
	t.Run("creates directory and file", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		w := NewWriter(fs)

		path := filepath.Join("/shots", "nested", "a-10x10.png")
		if err := w.Write(path, []byte("data")); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		got, err := afero.ReadFile(fs, path)
		if err != nil || string(got) != "data" {
			t.Fatalf("ReadFile = %q, %v", got, err)
		}
		entries, _ := afero.ReadDir(fs, filepath.Dir(path))
		if len(entries) != 1 {
			t.Errorf("expected only the final file, got %d entries", len(entries))
		}
	})

	t.Run("overwrites existing file", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		w := NewWriter(fs)
		if err := afero.WriteFile(fs, "/out/a.png", []byte("old"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := w.Write("/out/a.png", []byte("new")); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		got, _ := afero.ReadFile(fs, "/out/a.png")
		if string(got) != "new" {
			t.Errorf("content = %q, want %q", got, "new")
		}
	})

	t.Run("removes temporary file when rename fails", func(t *testing.T) {
		base := afero.NewMemMapFs()
		w := NewWriter(renameFailFs{Fs: base})

		if err := w.Write("/out/a.png", []byte("data")); err == nil {
			t.Fatal("expected Write to fail")
		}
		entries, err := afero.ReadDir(base, "/out")
		if err != nil {
			t.Fatalf("ReadDir failed: %v", err)
		}
		for _, e := range entries {
			t.Errorf("leftover file %s", e.Name())
		}
	})

	t.Run("read-only filesystem", func(t *testing.T) {
		base := afero.NewMemMapFs()
		_ = base.MkdirAll("/out", 0o755)
		w := NewWriter(afero.NewReadOnlyFs(base))

		if err := w.Write("/out/a.png", []byte("data")); err == nil {
			t.Fatal("expected Write to fail on a read-only filesystem")
		}
	})
}

func TestWriterOsFs(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(nil)

	path := filepath.Join(dir, "b-1x1.png")
	if err := w.Write(path, []byte{1, 2, 3}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "b-1x1.png" {
		t.Errorf("unexpected directory contents: %v", entries)
	}
}

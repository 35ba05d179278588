package browser

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveChromePath(t *testing.T) {
	dir := t.TempDir()
	fakeChrome := filepath.Join(dir, "chrome")
	if err := os.WriteFile(fakeChrome, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		configured string
		env        string
		want       string
	}{
		{"configured wins over env", "/custom/chrome", fakeChrome, "/custom/chrome"},
		{"configured is trimmed", "  /custom/chrome ", "", "/custom/chrome"},
		{"env used when not configured", "", fakeChrome, fakeChrome},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CHROME_BIN", tt.env)
			if got := ResolveChromePath(tt.configured); got != tt.want {
				t.Errorf("ResolveChromePath(%q) = %q, want %q", tt.configured, got, tt.want)
			}
		})
	}

	t.Run("env naming a directory is ignored", func(t *testing.T) {
		t.Setenv("CHROME_BIN", dir)
		if got := ResolveChromePath(""); got == dir {
			t.Errorf("ResolveChromePath returned directory %q", got)
		}
	})
}

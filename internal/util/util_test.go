package util

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExists(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty")
	full := filepath.Join(dir, "full")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		path     string
		dir      bool
		file     bool
		nonEmpty bool
	}{
		{"directory", dir, true, false, false},
		{"empty file", empty, false, true, false},
		{"full file", full, false, true, true},
		{"missing", filepath.Join(dir, "nope"), false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DirExists(tt.path); got != tt.dir {
				t.Errorf("DirExists(%q) = %v, want %v", tt.path, got, tt.dir)
			}
			if got := FileExists(tt.path); got != tt.file {
				t.Errorf("FileExists(%q) = %v, want %v", tt.path, got, tt.file)
			}
			if got := NonEmptyFile(tt.path); got != tt.nonEmpty {
				t.Errorf("NonEmptyFile(%q) = %v, want %v", tt.path, got, tt.nonEmpty)
			}
		})
	}
}

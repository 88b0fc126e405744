package osfilesystem

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileSystem_WriteCreatesParentsAndReadsBack(t *testing.T) {
	fs := New()
	path := filepath.Join(t.TempDir(), "debug", "views", "view-000001.json")

	if err := fs.WriteFile(path, []byte(`{"seq":1}`)); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	data, err := fs.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != `{"seq":1}` {
		t.Errorf("ReadFile = %q", data)
	}
}

func TestFileSystem_ExistsAndIsDir(t *testing.T) {
	fs := New()
	dir := t.TempDir()
	file := filepath.Join(dir, "run.mp4")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(dir, "a", "b")
	if err := fs.MkdirAll(sub); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}

	tests := []struct {
		path   string
		exists bool
		isDir  bool
	}{
		{file, true, false},
		{sub, true, true},
		{filepath.Join(dir, "missing.mp4"), false, false},
	}

	for _, tt := range tests {
		exists, err := fs.Exists(tt.path)
		if err != nil {
			t.Fatalf("Exists(%s) failed: %v", tt.path, err)
		}
		if exists != tt.exists {
			t.Errorf("Exists(%s) = %v, want %v", tt.path, exists, tt.exists)
		}

		isDir, err := fs.IsDir(tt.path)
		if err != nil {
			t.Fatalf("IsDir(%s) failed: %v", tt.path, err)
		}
		if isDir != tt.isDir {
			t.Errorf("IsDir(%s) = %v, want %v", tt.path, isDir, tt.isDir)
		}
	}
}

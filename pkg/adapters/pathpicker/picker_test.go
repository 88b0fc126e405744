package pathpicker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/user/scoresplit/pkg/mocks"
)

func TestPicker_Pick(t *testing.T) {
	fs := mocks.NewFileSystem()
	root := filepath.Join("media")
	video := filepath.Join(root, "games", "final.mp4")
	fs.WriteFile(video, []byte("mp4"))
	fs.MkdirAll(filepath.Join(root, "games"))

	tests := []struct {
		name     string
		path     string
		wantPath string
		wantOK   bool
		wantErr  error
	}{
		{"empty cancels", "", "", false, nil},
		{"blank cancels", "   ", "", false, nil},
		{"relative to root", filepath.Join("games", "final.mp4"), video, true, nil},
		{"root prefix is not stripped", video, "", false, ErrNotFound},
		{"missing", filepath.Join("games", "missing.mp4"), "", false, ErrNotFound},
		{"directory", "games", "", false, ErrIsDirectory},
		{"escapes root", filepath.Join("..", "etc", "passwd"), "", false, ErrOutsideRoot},
	}

	pick := Factory(fs, root)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, ok, err := pick(tt.path).Pick(context.Background())
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ok != tt.wantOK || path != tt.wantPath {
				t.Errorf("Pick = (%q, %v), want (%q, %v)", path, ok, tt.wantPath, tt.wantOK)
			}
		})
	}
}

func TestPicker_NoRoot(t *testing.T) {
	fs := mocks.NewFileSystem()
	abs := filepath.Join(string(filepath.Separator), "videos", "run.mp4")
	fs.WriteFile(abs, []byte("mp4"))

	path, ok, err := New(fs, "", abs).Pick(context.Background())
	if err != nil || !ok || path != abs {
		t.Errorf("Pick = (%q, %v, %v), want (%q, true, nil)", path, ok, err, abs)
	}
}

func TestPicker_StatError(t *testing.T) {
	fs := mocks.NewFileSystem()
	errIO := errors.New("input/output error")
	fs.ExistsFunc = func(path string) (bool, error) { return false, errIO }

	if _, _, err := New(fs, "", "/x.mp4").Pick(context.Background()); !errors.Is(err, errIO) {
		t.Errorf("error = %v, want wrapped %v", err, errIO)
	}
}

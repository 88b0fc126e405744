// Package pathpicker resolves a video path typed or chosen in the UI.
//
// The browser has no native file dialog with access to the server's disk,
// so the UI sends a path and the picker validates it. An empty path is a
// cancelled selection.
package pathpicker

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/user/scoresplit/pkg/ports"
)

var (
	// ErrNotFound is returned when the chosen path does not exist.
	ErrNotFound = errors.New("pathpicker: file not found")

	// ErrIsDirectory is returned when the chosen path is a directory.
	ErrIsDirectory = errors.New("pathpicker: path is a directory")

	// ErrOutsideRoot is returned when a relative path escapes the media root.
	ErrOutsideRoot = errors.New("pathpicker: path outside media root")
)

// Picker validates one path against the file system.
type Picker struct {
	fs   ports.FileSystem
	root string
	path string
}

// New creates a picker for path. Relative paths are resolved against root
// when root is set.
func New(fs ports.FileSystem, root, path string) *Picker {
	return &Picker{fs: fs, root: root, path: path}
}

// Factory returns a function creating pickers that share fs and root.
func Factory(fs ports.FileSystem, root string) func(path string) ports.FilePicker {
	return func(path string) ports.FilePicker {
		return New(fs, root, path)
	}
}

// Pick implements ports.FilePicker.
func (p *Picker) Pick(ctx context.Context) (string, bool, error) {
	path := strings.TrimSpace(p.path)
	if path == "" {
		return "", false, nil
	}

	resolved, err := p.resolve(path)
	if err != nil {
		return "", false, err
	}

	exists, err := p.fs.Exists(resolved)
	if err != nil {
		return "", false, fmt.Errorf("stat %s: %w", resolved, err)
	}
	if !exists {
		return "", false, fmt.Errorf("%w: %s", ErrNotFound, resolved)
	}
	isDir, err := p.fs.IsDir(resolved)
	if err != nil {
		return "", false, fmt.Errorf("stat %s: %w", resolved, err)
	}
	if isDir {
		return "", false, fmt.Errorf("%w: %s", ErrIsDirectory, resolved)
	}
	return resolved, true, nil
}

func (p *Picker) resolve(path string) (string, error) {
	if p.root == "" || filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}
	joined := filepath.Join(p.root, path)
	rel, err := filepath.Rel(p.root, joined)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	return joined, nil
}

// Ensure Picker implements ports.FilePicker
var _ ports.FilePicker = (*Picker)(nil)

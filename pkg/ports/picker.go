package ports

import "context"

// FilePicker resolves the operator's choice of a video file.
type FilePicker interface {
	// Pick returns the chosen path. ok is false when the operator cancelled
	// the selection; in that case path is empty and err is nil.
	Pick(ctx context.Context) (path string, ok bool, err error)
}

// PickerFunc adapts a function to FilePicker.
type PickerFunc func(ctx context.Context) (string, bool, error)

// Pick calls f.
func (f PickerFunc) Pick(ctx context.Context) (string, bool, error) {
	return f(ctx)
}

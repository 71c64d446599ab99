package core

import (
	"context"
	"errors"
)

var ErrOutputNotFound = errors.New("executable output not found")

// OutputStore persists state and info of executables.
//
// Updates merge: an empty state, a nil info map or an empty text leave the
// stored value untouched. Implementations must serialize concurrent updates
// of the same executable.
type OutputStore interface {
	GetOutput(ctx context.Context, id string) (*Output, error)
	UpdateOutput(ctx context.Context, id string, state ExecutableState, info map[string]string, text string) error
	AddInfo(ctx context.Context, id string, info map[string]string) error
}

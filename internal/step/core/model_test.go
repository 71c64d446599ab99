package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExecutableState_IsStopped(t *testing.T) {
	tests := []struct {
		state ExecutableState
		want  bool
	}{
		{StateReady, false},
		{StateRunning, false},
		{StateSucceed, false},
		{StateError, false},
		{StateStopped, true},
		{StateDiscarded, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.IsStopped())
			assert.True(t, tt.state.Valid())
		})
	}
	assert.False(t, ExecutableState("PAUSED").Valid())
}

func TestJobStatus_IsComplete(t *testing.T) {
	assert.False(t, JobStatusNew.IsComplete())
	assert.False(t, JobStatusWaiting.IsComplete())
	assert.False(t, JobStatusRunning.IsComplete())
	assert.True(t, JobStatusFinished.IsComplete())
	assert.True(t, JobStatusError.IsComplete())
}

func TestErrors_Unwrap(t *testing.T) {
	cause := errors.New("boom")

	var backendErr *BackendError
	err := fmt.Errorf("wrapped: %w", &BackendError{Op: "sample", Err: cause})
	assert.True(t, errors.As(err, &backendErr))
	assert.Equal(t, "sample", backendErr.Op)
	assert.ErrorIs(t, err, cause)

	err = &InterruptedError{Err: context.Canceled}
	assert.ErrorIs(t, err, context.Canceled)

	err = &ResolutionError{Job: "nope", Err: cause}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), `"nope"`)

	assert.Equal(t, "missing required parameter mr_job_name", (&ConfigurationError{Param: "mr_job_name"}).Error())
}

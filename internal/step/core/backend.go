package core

import "context"

// Backend is the compute system that runs MapReduce jobs.
type Backend interface {
	Submit(ctx context.Context, spec JobSpec) (Handle, error)
	// Attach looks up a job submitted earlier, possibly by another process.
	Attach(ctx context.Context, externalID string) (Handle, error)
	Sample(ctx context.Context, handle Handle) (*StatusSample, error)
	Counters(ctx context.Context, handle Handle) (Counters, error)
}

// Releaser is implemented by backends that keep per-job state between
// samples. Release is called once monitoring of handle ends.
type Releaser interface {
	Release(handle Handle)
}

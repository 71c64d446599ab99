package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nemanja-m/mrstep/internal/shared/logging"
	"github.com/nemanja-m/mrstep/internal/step/core"
	mrcore "github.com/nemanja-m/mrstep/pkg/core"
	"github.com/nemanja-m/mrstep/pkg/jobs"
	engine "github.com/nemanja-m/mrstep/pkg/local"
)

var (
	ErrUnknownJob     = errors.New("unknown job")
	ErrJobNotComplete = errors.New("job is not complete")
	ErrClosed         = errors.New("backend is closed")
)

// Snapshot is a point-in-time copy of a job's state.
type Snapshot struct {
	ID          string
	Name        string
	Status      core.JobStatus
	Phase       engine.Phase
	Spec        core.JobSpec
	OutputDir   string
	Log         string
	Counters    mrcore.Counters
	Error       string
	SubmittedAt time.Time
	StartedAt   *time.Time
	FinishedAt  *time.Time
}

type job struct {
	snapshot Snapshot
	log      strings.Builder
}

// Backend runs registered MapReduce jobs inside the current process. At most
// slots jobs run at once; the others wait in the WAITING status.
type Backend struct {
	mu   sync.RWMutex
	jobs map[string]*job

	pool       *engine.Pool
	mappers    int
	outputRoot string

	ctx     context.Context
	cancel  context.CancelFunc
	pending sync.WaitGroup
	closed  bool

	logger logging.Logger
}

func NewBackend(slots, mappers int, outputRoot string, logger logging.Logger) *Backend {
	if outputRoot == "" {
		outputRoot = os.TempDir()
	}
	ctx, cancel := context.WithCancel(context.Background())
	pool := engine.NewPool(slots)
	pool.Start()

	return &Backend{
		jobs:       make(map[string]*job),
		pool:       pool,
		mappers:    mappers,
		outputRoot: outputRoot,
		ctx:        ctx,
		cancel:     cancel,
		logger:     logger,
	}
}

func (b *Backend) Submit(_ context.Context, spec core.JobSpec) (core.Handle, error) {
	definition, err := jobs.Get(spec.Name)
	if err != nil {
		return core.Handle{}, err
	}

	id := uuid.New().String()
	outputDir := spec.Output
	if outputDir == "" {
		outputDir = filepath.Join(b.outputRoot, "mrstep-"+id)
	}

	j := &job{snapshot: Snapshot{
		ID:          id,
		Name:        spec.Name,
		Status:      core.JobStatusWaiting,
		Spec:        spec,
		OutputDir:   outputDir,
		SubmittedAt: time.Now().UTC(),
	}}
	j.logf("job %s submitted, waiting for a free slot", id)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return core.Handle{}, ErrClosed
	}
	b.jobs[id] = j
	b.pending.Add(1)
	b.mu.Unlock()

	config := mrcore.JobConfig{
		Input:       spec.Input,
		Output:      outputDir,
		NumReducers: spec.NumReducers,
		MapFunc:     definition.Map,
		ReduceFunc:  definition.Reduce,
	}

	go func() {
		defer b.pending.Done()
		err := b.pool.Submit(b.ctx, func() { b.run(j, config) })
		if err != nil {
			b.finish(j, mrcore.Counters{}, fmt.Errorf("job was never started: %w", err))
		}
	}()

	b.logger.Info("Job queued", "job_id", id, "name", spec.Name, "output", outputDir)
	return core.Handle{ID: id}, nil
}

func (b *Backend) run(j *job, config mrcore.JobConfig) {
	b.mu.Lock()
	now := time.Now().UTC()
	j.snapshot.Status = core.JobStatusRunning
	j.snapshot.StartedAt = &now
	j.logf("job %s started", j.snapshot.ID)
	b.mu.Unlock()

	runner := engine.NewEngine(config, b.mappers, func(phase engine.Phase) {
		b.mu.Lock()
		defer b.mu.Unlock()
		j.snapshot.Phase = phase
		j.logf("phase %s", phase)
	})

	counters, err := runner.Run(b.ctx)
	b.finish(j, counters, err)
}

func (b *Backend) finish(j *job, counters mrcore.Counters, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now().UTC()
	j.snapshot.FinishedAt = &now
	j.snapshot.Counters = counters
	if err != nil {
		j.snapshot.Status = core.JobStatusError
		j.snapshot.Error = err.Error()
		j.logf("job %s failed: %v", j.snapshot.ID, err)
		b.logger.Error("Job failed", "job_id", j.snapshot.ID, "error", err)
		return
	}

	j.snapshot.Status = core.JobStatusFinished
	j.logf("job %s finished: %d input records, %d bytes written",
		j.snapshot.ID, counters.MapInputRecords, counters.BytesWritten)
	b.logger.Info("Job finished",
		"job_id", j.snapshot.ID,
		"input_records", counters.MapInputRecords,
		"bytes_written", counters.BytesWritten,
	)
}

func (b *Backend) Attach(_ context.Context, externalID string) (core.Handle, error) {
	if _, err := b.Snapshot(externalID); err != nil {
		return core.Handle{}, err
	}
	return core.Handle{ID: externalID}, nil
}

func (b *Backend) Sample(_ context.Context, handle core.Handle) (*core.StatusSample, error) {
	snapshot, err := b.Snapshot(handle.ID)
	if err != nil {
		return nil, err
	}

	info := map[string]string{
		"mr_job_status": string(snapshot.Status),
		"mr_output_dir": snapshot.OutputDir,
	}
	if snapshot.Phase != "" {
		info["mr_job_phase"] = string(snapshot.Phase)
	}
	return &core.StatusSample{
		Status: snapshot.Status,
		Output: snapshot.Log,
		Info:   info,
	}, nil
}

func (b *Backend) Counters(_ context.Context, handle core.Handle) (core.Counters, error) {
	snapshot, err := b.Snapshot(handle.ID)
	if err != nil {
		return core.Counters{}, err
	}
	if !snapshot.Status.IsComplete() {
		return core.Counters{}, fmt.Errorf("%w: %s is %s", ErrJobNotComplete, handle.ID, snapshot.Status)
	}
	return core.Counters{
		RecordsProcessed: snapshot.Counters.MapInputRecords,
		BytesWritten:     snapshot.Counters.BytesWritten,
	}, nil
}

func (b *Backend) Snapshot(id string) (Snapshot, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	j, exists := b.jobs[id]
	if !exists {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrUnknownJob, id)
	}
	snapshot := j.snapshot
	snapshot.Log = j.log.String()
	return snapshot, nil
}

// List returns snapshots ordered by submission time.
func (b *Backend) List() []Snapshot {
	b.mu.RLock()
	ids := make([]string, 0, len(b.jobs))
	for id := range b.jobs {
		ids = append(ids, id)
	}
	b.mu.RUnlock()

	snapshots := make([]Snapshot, 0, len(ids))
	for _, id := range ids {
		if snapshot, err := b.Snapshot(id); err == nil {
			snapshots = append(snapshots, snapshot)
		}
	}
	slices.SortFunc(snapshots, func(x, y Snapshot) int {
		return x.SubmittedAt.Compare(y.SubmittedAt)
	})
	return snapshots
}

// Close cancels running jobs and waits for them to finish.
func (b *Backend) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	b.pending.Wait()
	b.pool.Close()
}

// logf must be called with the backend lock held.
func (j *job) logf(format string, args ...any) {
	fmt.Fprintf(&j.log, format+"\n", args...)
}

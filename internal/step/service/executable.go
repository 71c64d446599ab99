package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/nemanja-m/mrstep/internal/shared/logging"
	"github.com/nemanja-m/mrstep/internal/step/core"
	"github.com/nemanja-m/mrstep/pkg/jobs"
)

// MapReduceExecutable submits (or resumes) a MapReduce job on a backend and
// monitors it until it reaches a terminal status or the scheduler stops it.
//
// A single goroutine drives one executable; the scheduler guarantees that no
// two workers run the same executable id at once.
type MapReduceExecutable struct {
	id      string
	params  map[string]string
	store   core.OutputStore
	backend core.Backend

	pollInterval time.Duration
	clock        clock.Clock
	wait         Waiter
	metrics      *Metrics
	logger       logging.Logger
}

type Option func(*MapReduceExecutable)

func WithClock(clk clock.Clock) Option {
	return func(e *MapReduceExecutable) {
		e.clock = clk
	}
}

// WithWaiter replaces the timer based suspension between two polls.
func WithWaiter(wait Waiter) Option {
	return func(e *MapReduceExecutable) {
		e.wait = wait
	}
}

func WithMetrics(metrics *Metrics) Option {
	return func(e *MapReduceExecutable) {
		e.metrics = metrics
	}
}

// WithParams seeds the executable parameters, e.g. when restoring a step.
func WithParams(params map[string]string) Option {
	return func(e *MapReduceExecutable) {
		maps.Copy(e.params, params)
	}
}

func NewMapReduceExecutable(
	id string,
	store core.OutputStore,
	backend core.Backend,
	pollInterval time.Duration,
	logger logging.Logger,
	opts ...Option,
) *MapReduceExecutable {
	e := &MapReduceExecutable{
		id:           id,
		params:       make(map[string]string),
		store:        store,
		backend:      backend,
		pollInterval: pollInterval,
		clock:        clock.New(),
		logger:       logger.With("executable_id", id),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.wait == nil {
		e.wait = ClockWaiter(e.clock)
	}
	return e
}

func (e *MapReduceExecutable) ID() string {
	return e.id
}

func (e *MapReduceExecutable) SetJobName(name string) {
	e.params[ParamJobName] = name
}

func (e *MapReduceExecutable) JobName() string {
	return e.params[ParamJobName]
}

func (e *MapReduceExecutable) SetJobParams(params string) {
	e.params[ParamJobParams] = params
}

func (e *MapReduceExecutable) JobParams() string {
	return e.params[ParamJobParams]
}

func (e *MapReduceExecutable) Params() map[string]string {
	return maps.Clone(e.params)
}

// OnExecuteStart marks the executable as running. The start time is only
// recorded on the first attempt so that wait time keeps counting from the
// first start after a restart. Failures are logged and never fail the step.
func (e *MapReduceExecutable) OnExecuteStart(ctx context.Context) {
	output, err := e.loadOutput(ctx)
	if err != nil {
		e.logger.Error("Failed to read executable output", "error", err)
		// Without knowing whether a start time exists, never write one.
		output = nil
	}

	var info map[string]string
	if output != nil {
		if _, exists := output.Info[core.InfoStartTime]; !exists {
			info = map[string]string{
				core.InfoStartTime: strconv.FormatInt(e.clock.Now().UnixMilli(), 10),
			}
		}
	}

	if err := e.store.UpdateOutput(ctx, e.id, core.StateRunning, info, ""); err != nil {
		e.logger.Error("Failed to mark executable as running", "error", err)
	}
}

// DoWork blocks until the job is terminal or the executable is stopped. It
// never returns an error: every failure is reported as an ERROR result.
func (e *MapReduceExecutable) DoWork(ctx context.Context) core.ExecuteResult {
	result, err := e.doWork(ctx)
	if err != nil {
		result = e.errorResult(err)
	}
	e.metrics.observeResult(result.State)
	return result
}

func (e *MapReduceExecutable) doWork(ctx context.Context) (core.ExecuteResult, error) {
	handle, prior, err := e.prepareJob(ctx)
	if err != nil {
		return core.ExecuteResult{}, err
	}
	if releaser, ok := e.backend.(core.Releaser); ok {
		defer releaser.Release(handle)
	}
	return e.monitor(ctx, handle, prior)
}

// prepareJob attaches to the job recorded by a previous attempt or submits a
// new one. The handle is persisted by the first poll, not here. On resume it
// also returns the text stored by the earlier attempt.
func (e *MapReduceExecutable) prepareJob(ctx context.Context) (core.Handle, string, error) {
	name := e.JobName()
	if name == "" {
		return core.Handle{}, "", &core.ConfigurationError{Param: ParamJobName}
	}
	params, exists := e.params[ParamJobParams]
	if !exists {
		return core.Handle{}, "", &core.ConfigurationError{Param: ParamJobParams}
	}

	output, err := e.loadOutput(ctx)
	if err != nil {
		return core.Handle{}, "", err
	}

	if jobID := output.Info[core.InfoJobID]; jobID != "" {
		handle, err := e.backend.Attach(ctx, jobID)
		if err != nil {
			return core.Handle{}, "", &core.BackendError{Op: "attach", Err: err}
		}
		e.logger.Info("MapReduce job resumed", "job_id", jobID)
		return handle, output.Text, nil
	}

	if _, err := jobs.Get(name); err != nil {
		return core.Handle{}, "", &core.ResolutionError{Job: name, Err: err}
	}
	spec, err := parseJobSpec(name, params)
	if err != nil {
		return core.Handle{}, "", &core.ResolutionError{Job: name, Err: err}
	}

	handle, err := e.backend.Submit(ctx, spec)
	if err != nil {
		return core.Handle{}, "", &core.BackendError{Op: "submit", Err: err}
	}
	e.logger.Info("MapReduce job submitted",
		"job", name,
		"job_id", handle.ID,
		"input", spec.Input,
		"reducers", spec.NumReducers,
	)
	return handle, "", nil
}

// OnExecuteFinished records the state that follows from result. A stopped
// executable keeps whatever state the scheduler already set.
func (e *MapReduceExecutable) OnExecuteFinished(ctx context.Context, result core.ExecuteResult) error {
	var state core.ExecutableState
	switch result.State {
	case core.ResultSucceeded:
		state = core.StateSucceed
	case core.ResultFailed, core.ResultError:
		state = core.StateError
	default:
		return nil
	}
	if err := e.store.UpdateOutput(ctx, e.id, state, nil, result.Output); err != nil {
		return fmt.Errorf("failed to record %s state of %s: %w", state, e.id, err)
	}
	return nil
}

func (e *MapReduceExecutable) errorResult(err error) core.ExecuteResult {
	var (
		configErr     *core.ConfigurationError
		resolutionErr *core.ResolutionError
	)
	if errors.As(err, &configErr) || errors.As(err, &resolutionErr) {
		e.logger.Error("Failed to resolve MapReduce job", "job", e.JobName(), "error", err)
	} else {
		e.logger.Error("Failed to execute MapReduce job", "job", e.JobName(), "error", err)
	}
	return core.ExecuteResult{State: core.ResultError, Output: err.Error()}
}

// isStopped always asks the store; the scheduler changes the state behind our back.
func (e *MapReduceExecutable) isStopped(ctx context.Context) (bool, error) {
	output, err := e.loadOutput(ctx)
	if err != nil {
		return false, err
	}
	return output.State.IsStopped(), nil
}

// WaitTime returns how long the job waited before the backend ran it, or
// zero if no wait was observed.
func (e *MapReduceExecutable) WaitTime(ctx context.Context) (time.Duration, error) {
	output, err := e.loadOutput(ctx)
	if err != nil {
		return 0, err
	}
	value, exists := output.Info[core.InfoWaitTime]
	if !exists {
		return 0, nil
	}
	millis, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", core.InfoWaitTime, value, err)
	}
	return time.Duration(millis) * time.Millisecond, nil
}

func (e *MapReduceExecutable) loadOutput(ctx context.Context) (*core.Output, error) {
	output, err := e.store.GetOutput(ctx, e.id)
	if errors.Is(err, core.ErrOutputNotFound) {
		return &core.Output{ID: e.id, State: core.StateReady, Info: map[string]string{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read output of %s: %w", e.id, err)
	}
	if output.Info == nil {
		output.Info = map[string]string{}
	}
	return output, nil
}

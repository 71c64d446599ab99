package service

import (
	"context"
	"fmt"
	"maps"
	"strconv"
	"strings"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/nemanja-m/mrstep/internal/step/core"
)

// Waiter suspends the poll loop for d. It returns an error when the wait was
// cut short.
type Waiter func(ctx context.Context, d time.Duration) error

// ClockWaiter waits on a timer of clk and gives up when ctx is done.
func ClockWaiter(clk clock.Clock) Waiter {
	return func(ctx context.Context, d time.Duration) error {
		timer := clk.Timer(d)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return &core.InterruptedError{Err: ctx.Err()}
		case <-timer.C:
			return nil
		}
	}
}

// monitor polls the backend until the job is terminal or the executable is
// stopped. Each tick samples, records wait time, persists info and only then
// looks at the stop flag. Text stored by an earlier attempt stays in front of
// everything sampled now.
func (e *MapReduceExecutable) monitor(ctx context.Context, handle core.Handle, prior string) (core.ExecuteResult, error) {
	status := core.JobStatusNew
	waitRecorded := false

	for {
		sample, err := e.backend.Sample(ctx, handle)
		if err != nil {
			return core.ExecuteResult{}, &core.BackendError{Op: "sample", Err: err}
		}
		e.metrics.observeTick()

		if status == core.JobStatusWaiting && leftWaiting(sample.Status) && !waitRecorded {
			if err := e.recordWaitTime(ctx); err != nil {
				return core.ExecuteResult{}, err
			}
			waitRecorded = true
		}

		if sample.Status != status {
			e.logger.Info("MapReduce job status changed",
				"job_id", handle.ID,
				"from", status,
				"to", sample.Status,
			)
			e.metrics.observeTransition(sample.Status)
		}
		status = sample.Status

		text := mergeText(prior, sample.Output)
		info := tickInfo(handle, sample)
		if err := e.store.UpdateOutput(ctx, e.id, "", info, text); err != nil {
			return core.ExecuteResult{}, fmt.Errorf("failed to persist job info: %w", err)
		}

		if status.IsComplete() {
			return e.complete(ctx, handle, status, info, text)
		}

		stopped, err := e.isStopped(ctx)
		if err != nil {
			return core.ExecuteResult{}, err
		}
		if stopped {
			e.logger.Info("MapReduce executable stopped", "job_id", handle.ID, "status", status)
			return core.ExecuteResult{State: core.ResultStopped, Output: text}, nil
		}

		if err := e.wait(ctx, e.pollInterval); err != nil {
			return core.ExecuteResult{}, err
		}
	}
}

func mergeText(prior, sampled string) string {
	if prior == "" || sampled == "" {
		return prior + sampled
	}
	if !strings.HasSuffix(prior, "\n") {
		prior += "\n"
	}
	return prior + sampled
}

func leftWaiting(status core.JobStatus) bool {
	return status == core.JobStatusRunning || status.IsComplete()
}

// tickInfo is the info written on every tick. It carries the job id, which
// is how a restarted process finds the job again.
func tickInfo(handle core.Handle, sample *core.StatusSample) map[string]string {
	info := maps.Clone(sample.Info)
	if info == nil {
		info = make(map[string]string)
	}
	info[core.InfoJobID] = handle.ID
	if handle.URL != "" {
		info[core.InfoJobURL] = handle.URL
	}
	return info
}

// recordWaitTime stores the time between the first start and now. A wait
// time recorded by an earlier attempt is kept.
func (e *MapReduceExecutable) recordWaitTime(ctx context.Context) error {
	output, err := e.loadOutput(ctx)
	if err != nil {
		return err
	}
	if _, exists := output.Info[core.InfoWaitTime]; exists {
		return nil
	}

	startMillis, err := strconv.ParseInt(output.Info[core.InfoStartTime], 10, 64)
	if err != nil {
		e.logger.Warn("Start time missing, wait time not recorded", "error", err)
		return nil
	}

	waitTime := e.clock.Now().Sub(time.UnixMilli(startMillis))
	if err := e.store.AddInfo(ctx, e.id, map[string]string{
		core.InfoWaitTime: strconv.FormatInt(waitTime.Milliseconds(), 10),
	}); err != nil {
		return fmt.Errorf("failed to persist wait time: %w", err)
	}

	e.metrics.observeWaitTime(waitTime.Seconds())
	e.logger.Info("MapReduce job left waiting", "wait_time_ms", waitTime.Milliseconds())
	return nil
}

func (e *MapReduceExecutable) complete(
	ctx context.Context,
	handle core.Handle,
	status core.JobStatus,
	info map[string]string,
	output string,
) (core.ExecuteResult, error) {
	counters, err := e.backend.Counters(ctx, handle)
	if err != nil {
		return core.ExecuteResult{}, &core.BackendError{Op: "counters", Err: err}
	}

	info[core.InfoSourceRecordsCount] = strconv.FormatInt(counters.RecordsProcessed, 10)
	info[core.InfoHDFSBytesWritten] = strconv.FormatInt(counters.BytesWritten, 10)
	if err := e.store.AddInfo(ctx, e.id, info); err != nil {
		return core.ExecuteResult{}, fmt.Errorf("failed to persist job counters: %w", err)
	}

	e.logger.Info("MapReduce job completed",
		"job_id", handle.ID,
		"status", status,
		"records", counters.RecordsProcessed,
		"bytes_written", counters.BytesWritten,
	)

	if status == core.JobStatusFinished {
		return core.ExecuteResult{State: core.ResultSucceeded, Output: output}, nil
	}
	return core.ExecuteResult{State: core.ResultFailed, Output: output}, nil
}

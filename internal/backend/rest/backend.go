package rest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"

	api "github.com/nemanja-m/mrstep/internal/coordinator/api/rest"
	"github.com/nemanja-m/mrstep/internal/shared/logging"
	"github.com/nemanja-m/mrstep/internal/step/core"
)

var (
	ErrUnknownJob     = errors.New("unknown job")
	ErrJobNotComplete = errors.New("job is not complete")
)

// StatusError is returned when the coordinator answers with a non-2xx code.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("coordinator returned %d: %s", e.Code, e.Message)
}

func (e *StatusError) Unwrap() error {
	switch e.Code {
	case http.StatusNotFound:
		return ErrUnknownJob
	case http.StatusConflict:
		return ErrJobNotComplete
	}
	return nil
}

type progress struct {
	log  strings.Builder
	last string
}

// Backend talks to the coordinator status service over HTTP.
type Backend struct {
	baseURL        string
	client         *http.Client
	maxRetries     int
	initialBackoff time.Duration
	logger         logging.Logger

	mu       sync.Mutex
	progress map[string]*progress
}

type Option func(*Backend)

func WithHTTPClient(client *http.Client) Option {
	return func(b *Backend) {
		b.client = client
	}
}

func WithInitialBackoff(d time.Duration) Option {
	return func(b *Backend) {
		b.initialBackoff = d
	}
}

func NewBackend(baseURL string, timeout time.Duration, maxRetries int, logger logging.Logger, opts ...Option) *Backend {
	b := &Backend{
		baseURL:        strings.TrimSuffix(baseURL, "/"),
		client:         &http.Client{Timeout: timeout},
		maxRetries:     max(maxRetries, 0),
		initialBackoff: 500 * time.Millisecond,
		logger:         logger,
		progress:       make(map[string]*progress),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Submit is never retried, a retry after a lost response could start the job twice.
func (b *Backend) Submit(ctx context.Context, spec core.JobSpec) (core.Handle, error) {
	req := api.SubmitJobRequest{
		Name:   spec.Name,
		Input:  api.InputConfig{Paths: spec.Input},
		Output: spec.Output,
		Config: api.JobConfig{NumReducers: spec.NumReducers},
	}

	var resp api.SubmitJobResponse
	if err := b.do(ctx, http.MethodPost, "/api/jobs", req, &resp, 0); err != nil {
		return core.Handle{}, err
	}
	return b.handle(resp.JobID), nil
}

func (b *Backend) Attach(ctx context.Context, externalID string) (core.Handle, error) {
	if _, err := b.getJob(ctx, externalID); err != nil {
		return core.Handle{}, err
	}
	return b.handle(externalID), nil
}

// Release drops the progress text kept for handle.
func (b *Backend) Release(handle core.Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.progress, handle.ID)
}

func (b *Backend) Sample(ctx context.Context, handle core.Handle) (*core.StatusSample, error) {
	job, err := b.getJob(ctx, handle.ID)
	if err != nil {
		return nil, err
	}

	status, err := FromAPIStatus(job.Status)
	if err != nil {
		return nil, err
	}

	line := "status=" + job.Status
	if job.Phase != "" {
		line += " phase=" + job.Phase
	}
	if job.Error != "" {
		line += " error=" + job.Error
	}

	b.mu.Lock()
	p, exists := b.progress[handle.ID]
	if !exists {
		p = &progress{}
		b.progress[handle.ID] = p
	}
	if line != p.last {
		p.log.WriteString(line + "\n")
		p.last = line
	}
	output := p.log.String()
	if status.IsComplete() {
		delete(b.progress, handle.ID)
	}
	b.mu.Unlock()

	return &core.StatusSample{
		Status: status,
		Output: output,
		Info: map[string]string{
			"mr_job_status": job.Status,
			"mr_output_dir": job.Output.Location,
		},
	}, nil
}

func (b *Backend) Counters(ctx context.Context, handle core.Handle) (core.Counters, error) {
	var resp api.CountersResponse
	path := "/api/jobs/" + url.PathEscape(handle.ID) + "/counters"
	if err := b.do(ctx, http.MethodGet, path, nil, &resp, b.maxRetries); err != nil {
		return core.Counters{}, err
	}
	return core.Counters{
		RecordsProcessed: resp.MapInputRecords,
		BytesWritten:     resp.BytesWritten,
	}, nil
}

// FromAPIStatus maps a coordinator status to the job status seen by the executor.
func FromAPIStatus(status string) (core.JobStatus, error) {
	switch status {
	case api.StatusPending, api.StatusPlanning:
		return core.JobStatusWaiting, nil
	case api.StatusRunning:
		return core.JobStatusRunning, nil
	case api.StatusCompleted:
		return core.JobStatusFinished, nil
	case api.StatusFailed:
		return core.JobStatusError, nil
	}
	return "", fmt.Errorf("unknown coordinator status %q", status)
}

func (b *Backend) getJob(ctx context.Context, id string) (*api.GetJobResponse, error) {
	var resp api.GetJobResponse
	if err := b.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(id), nil, &resp, b.maxRetries); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (b *Backend) handle(id string) core.Handle {
	return core.Handle{ID: id, URL: b.baseURL + "/api/jobs/" + url.PathEscape(id)}
}

// do sends one request and retries transport errors and 5xx answers with
// exponential backoff. Other non-2xx answers fail immediately.
func (b *Backend) do(ctx context.Context, method, path string, in, out any, retries int) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	attempt := 0
	operation := func() error {
		attempt++
		req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		if in != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := b.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			b.logger.Warn("Coordinator request failed", "method", method, "path", path, "attempt", attempt, "error", err)
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			statusErr := readStatusError(resp)
			if resp.StatusCode >= 500 {
				b.logger.Warn("Coordinator returned an error", "method", method, "path", path, "attempt", attempt, "status", resp.StatusCode)
				return statusErr
			}
			return backoff.Permanent(statusErr)
		}

		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = b.initialBackoff
	policy.MaxElapsedTime = 0
	return backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(retries)), ctx))
}

func readStatusError(resp *http.Response) *StatusError {
	statusErr := &StatusError{Code: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return statusErr
	}
	var apiErr api.ErrorResponse
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
		statusErr.Message = apiErr.Error
		if apiErr.Message != "" {
			statusErr.Message += ": " + apiErr.Message
		}
	}
	return statusErr
}

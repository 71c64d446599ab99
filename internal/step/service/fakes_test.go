package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/goleak"

	"github.com/nemanja-m/mrstep/examples/echo"
	"github.com/nemanja-m/mrstep/internal/shared/logging"
	"github.com/nemanja-m/mrstep/internal/step/core"
	"github.com/nemanja-m/mrstep/internal/step/storage"
	"github.com/nemanja-m/mrstep/pkg/jobs"
)

func init() {
	jobs.MustRegister("EchoJob", jobs.Job{Map: echo.Map, Reduce: echo.Reduce})
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testInterval = 5 * time.Second

// mockLogger is a no-op logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(msg string, args ...any)   {}
func (m *mockLogger) Info(msg string, args ...any)    {}
func (m *mockLogger) Warn(msg string, args ...any)    {}
func (m *mockLogger) Error(msg string, args ...any)   {}
func (m *mockLogger) Fatal(msg string, args ...any)   {}
func (m *mockLogger) With(args ...any) logging.Logger { return m }

// fakeBackend replays a fixed list of statuses, one per Sample call. The
// last status repeats once the list is exhausted.
type fakeBackend struct {
	mu sync.Mutex

	statuses []core.JobStatus
	counters core.Counters

	submitErr   error
	attachErr   error
	sampleErr   error
	countersErr error

	// onSample runs after the n-th (1-based) sample was produced.
	onSample func(n int)

	submitted    []core.JobSpec
	attached     []string
	sampleCalls  int
	counterCalls int
	output       strings.Builder
}

func (b *fakeBackend) Submit(_ context.Context, spec core.JobSpec) (core.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.submitErr != nil {
		return core.Handle{}, b.submitErr
	}
	b.submitted = append(b.submitted, spec)
	return core.Handle{ID: "job-1", URL: "http://backend/jobs/job-1"}, nil
}

func (b *fakeBackend) Attach(_ context.Context, externalID string) (core.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.attachErr != nil {
		return core.Handle{}, b.attachErr
	}
	b.attached = append(b.attached, externalID)
	return core.Handle{ID: externalID}, nil
}

func (b *fakeBackend) Sample(_ context.Context, handle core.Handle) (*core.StatusSample, error) {
	b.mu.Lock()
	if b.sampleErr != nil {
		b.mu.Unlock()
		return nil, b.sampleErr
	}
	status := b.statuses[min(b.sampleCalls, len(b.statuses)-1)]
	b.sampleCalls++
	n := b.sampleCalls
	fmt.Fprintf(&b.output, "tick %d: %s\n", n, status)
	sample := &core.StatusSample{
		Status: status,
		Output: b.output.String(),
		Info:   map[string]string{"last_status": string(status)},
	}
	hook := b.onSample
	b.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	return sample, nil
}

func (b *fakeBackend) Counters(_ context.Context, _ core.Handle) (core.Counters, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.counterCalls++
	if b.countersErr != nil {
		return core.Counters{}, b.countersErr
	}
	return b.counters, nil
}

func (b *fakeBackend) calls() (submits, attaches, samples, counters int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.submitted), len(b.attached), b.sampleCalls, b.counterCalls
}

// releasingBackend records the handles released after monitoring.
type releasingBackend struct {
	*fakeBackend
	released []string
}

func (b *releasingBackend) Release(handle core.Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.released = append(b.released, handle.ID)
}

// recordingStore counts info writes per key on top of the in-memory store.
type recordingStore struct {
	*storage.InMemoryOutputStore

	mu        sync.Mutex
	keyWrites map[string]int
	getErr    error
	updateErr error
}

func newRecordingStore() *recordingStore {
	return &recordingStore{
		InMemoryOutputStore: storage.NewInMemoryOutputStore(),
		keyWrites:           make(map[string]int),
	}
}

func (s *recordingStore) GetOutput(ctx context.Context, id string) (*core.Output, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.InMemoryOutputStore.GetOutput(ctx, id)
}

func (s *recordingStore) UpdateOutput(ctx context.Context, id string, state core.ExecutableState, info map[string]string, text string) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.count(info)
	return s.InMemoryOutputStore.UpdateOutput(ctx, id, state, info, text)
}

func (s *recordingStore) AddInfo(ctx context.Context, id string, info map[string]string) error {
	s.count(info)
	return s.InMemoryOutputStore.AddInfo(ctx, id, info)
}

func (s *recordingStore) count(info map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range info {
		s.keyWrites[key]++
	}
}

func (s *recordingStore) writes(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keyWrites[key]
}

// advancingWaiter moves the mock clock forward instead of sleeping.
func advancingWaiter(mock *clock.Mock) Waiter {
	return func(_ context.Context, d time.Duration) error {
		mock.Add(d)
		return nil
	}
}

func newTestExecutable(store core.OutputStore, backend core.Backend, mock *clock.Mock, opts ...Option) *MapReduceExecutable {
	opts = append([]Option{WithClock(mock), WithWaiter(advancingWaiter(mock))}, opts...)
	exec := NewMapReduceExecutable("exec-1", store, backend, testInterval, &mockLogger{}, opts...)
	exec.SetJobName("EchoJob")
	exec.SetJobParams("--input x")
	return exec
}

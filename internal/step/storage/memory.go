package storage

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/nemanja-m/mrstep/internal/step/core"
)

type InMemoryOutputStore struct {
	mu      sync.RWMutex
	outputs map[string]*core.Output
	now     func() time.Time
}

func NewInMemoryOutputStore() *InMemoryOutputStore {
	return &InMemoryOutputStore{
		outputs: make(map[string]*core.Output),
		now:     time.Now,
	}
}

// GetOutput returns a copy, so callers never share state with the store.
func (s *InMemoryOutputStore) GetOutput(_ context.Context, id string) (*core.Output, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	output, exists := s.outputs[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", core.ErrOutputNotFound, id)
	}
	clone := *output
	clone.Info = maps.Clone(output.Info)
	return &clone, nil
}

func (s *InMemoryOutputStore) UpdateOutput(
	_ context.Context,
	id string,
	state core.ExecutableState,
	info map[string]string,
	text string,
) error {
	if state != "" && !state.Valid() {
		return fmt.Errorf("invalid executable state: %s", state)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	output := s.getOrCreate(id)
	if state != "" {
		output.State = state
	}
	maps.Copy(output.Info, info)
	if text != "" {
		output.Text = text
	}
	output.UpdatedAt = s.now().UTC()
	return nil
}

func (s *InMemoryOutputStore) AddInfo(_ context.Context, id string, info map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	output := s.getOrCreate(id)
	maps.Copy(output.Info, info)
	output.UpdatedAt = s.now().UTC()
	return nil
}

func (s *InMemoryOutputStore) getOrCreate(id string) *core.Output {
	output, exists := s.outputs[id]
	if !exists {
		output = &core.Output{
			ID:    id,
			State: core.StateReady,
			Info:  make(map[string]string),
		}
		s.outputs[id] = output
	}
	return output
}

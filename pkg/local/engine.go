package local

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/nemanja-m/mrstep/pkg/core"
)

type Phase string

const (
	PhaseMap    Phase = "MAP"
	PhaseReduce Phase = "REDUCE"
	PhaseWrite  Phase = "WRITE"
)

// Observer is notified when the engine enters a new phase.
type Observer func(phase Phase)

type Engine struct {
	config     core.JobConfig
	numMappers int
	observer   Observer

	mapInputRecords  atomic.Int64
	mapOutputRecords atomic.Int64
}

func NewEngine(config core.JobConfig, numMappers int, observer Observer) *Engine {
	if observer == nil {
		observer = func(Phase) {}
	}
	return &Engine{
		config:     config,
		numMappers: max(numMappers, 1),
		observer:   observer,
	}
}

// Run executes map, shuffle and reduce and writes one part file per reducer.
func (e *Engine) Run(ctx context.Context) (core.Counters, error) {
	if e.config.NumReducers <= 0 {
		return core.Counters{}, fmt.Errorf("number of reducers must be positive, got %d", e.config.NumReducers)
	}

	files, err := FindFiles(e.config.Input)
	if err != nil {
		return core.Counters{}, err
	}
	if len(files) == 0 {
		return core.Counters{}, fmt.Errorf("no files matched the input patterns: %v", e.config.Input)
	}

	e.observer(PhaseMap)
	mapped, err := e.runMap(ctx, files)
	if err != nil {
		return core.Counters{}, err
	}

	e.observer(PhaseReduce)
	partitioned := e.runShuffle(mapped)
	results := e.runReduce(partitioned)

	if err := ctx.Err(); err != nil {
		return core.Counters{}, err
	}

	e.observer(PhaseWrite)
	written, err := e.writeResults(results)
	if err != nil {
		return core.Counters{}, err
	}

	var groups int64
	for _, records := range results {
		groups += int64(len(records))
	}

	return core.Counters{
		MapInputRecords:    e.mapInputRecords.Load(),
		MapOutputRecords:   e.mapOutputRecords.Load(),
		ReduceOutputGroups: groups,
		BytesWritten:       written,
	}, nil
}

func (e *Engine) runMap(ctx context.Context, files []string) ([]core.KeyValue, error) {
	pool := NewPool(e.numMappers)
	pool.Start()

	var (
		mu       sync.Mutex
		results  []core.KeyValue
		firstErr error
	)

	for _, file := range files {
		err := pool.Submit(ctx, func() {
			lines, err := ReadLines(file)
			if err != nil {
				mu.Lock()
				firstErr = cmp.Or(firstErr, err)
				mu.Unlock()
				return
			}

			var kvs []core.KeyValue
			for _, line := range lines {
				kvs = append(kvs, e.config.MapFunc(fmt.Sprintf("%s:%d", line.Filename, line.Number), line.Text)...)
			}
			e.mapInputRecords.Add(int64(len(lines)))
			e.mapOutputRecords.Add(int64(len(kvs)))

			mu.Lock()
			results = append(results, kvs...)
			mu.Unlock()
		})
		if err != nil {
			pool.Close()
			return nil, err
		}
	}
	pool.Close()

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

func (e *Engine) runShuffle(mapped []core.KeyValue) map[int][]core.KeyValue {
	partitioned := make(map[int][]core.KeyValue)
	for _, kv := range mapped {
		partition := core.Partition(kv.Key, e.config.NumReducers)
		partitioned[partition] = append(partitioned[partition], kv)
	}

	for _, records := range partitioned {
		slices.SortStableFunc(records, func(left, right core.KeyValue) int {
			return cmp.Compare(left.Key, right.Key)
		})
	}

	return partitioned
}

func (e *Engine) runReduce(partitioned map[int][]core.KeyValue) map[int][]core.KeyValue {
	results := make(map[int][]core.KeyValue)
	for part, sortedPartition := range partitioned {
		results[part] = e.reducePartition(sortedPartition)
	}
	return results
}

func (e *Engine) reducePartition(sortedPartition []core.KeyValue) []core.KeyValue {
	var results []core.KeyValue

	i := 0
	for i < len(sortedPartition) {
		key := sortedPartition[i].Key
		values := []string{}

		for i < len(sortedPartition) && sortedPartition[i].Key == key {
			values = append(values, sortedPartition[i].Value)
			i++
		}

		// Streaming reduce
		results = append(results, e.config.ReduceFunc(key, values))
	}

	return results
}

func (e *Engine) writeResults(results map[int][]core.KeyValue) (int64, error) {
	if err := os.MkdirAll(e.config.Output, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create output directory: %w", err)
	}

	var total int64
	for part := range e.config.NumReducers {
		records := results[part]
		outputPath := filepath.Join(e.config.Output, fmt.Sprintf("part-%04d.tsv", part))

		lines := make([]string, 0, len(records))
		for _, record := range records {
			lines = append(lines, fmt.Sprintf("%s\t%s\n", record.Key, record.Value))
		}

		n, err := WriteLines(outputPath, lines)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

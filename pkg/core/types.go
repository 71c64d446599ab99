package core

import "hash/fnv"

type MapFunc func(string, string) []KeyValue

type ReduceFunc func(string, []string) KeyValue

type KeyValue struct {
	Key   string
	Value string
}

// JobConfig describes a single MapReduce run over local files.
type JobConfig struct {
	Input       []string
	Output      string
	NumReducers int
	MapFunc     MapFunc
	ReduceFunc  ReduceFunc
}

// Counters are collected by the engine while a job runs.
type Counters struct {
	MapInputRecords    int64
	MapOutputRecords   int64
	ReduceOutputGroups int64
	BytesWritten       int64
}

// Partition assigns a key to one of numPartitions reducers.
func Partition(key string, numPartitions int) int {
	if numPartitions <= 0 {
		return 0
	}
	hash := fnv.New32a()
	hash.Write([]byte(key))
	return int(hash.Sum32() % uint32(numPartitions))
}

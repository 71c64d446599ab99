package core

import (
	"time"
)

// ExecutableState is the scheduler-facing lifecycle state of an executable.
type ExecutableState string

const (
	StateReady     ExecutableState = "READY"
	StateRunning   ExecutableState = "RUNNING"
	StateSucceed   ExecutableState = "SUCCEED"
	StateError     ExecutableState = "ERROR"
	StateStopped   ExecutableState = "STOPPED"
	StateDiscarded ExecutableState = "DISCARDED"
)

// IsStopped reports whether the scheduler asked the executable to stop.
func (s ExecutableState) IsStopped() bool {
	return s == StateStopped || s == StateDiscarded
}

func (s ExecutableState) Valid() bool {
	switch s {
	case StateReady, StateRunning, StateSucceed, StateError, StateStopped, StateDiscarded:
		return true
	}
	return false
}

// JobStatus is the status of the external MapReduce job as reported by a backend.
type JobStatus string

const (
	JobStatusNew      JobStatus = "NEW"
	JobStatusWaiting  JobStatus = "WAITING"
	JobStatusRunning  JobStatus = "RUNNING"
	JobStatusFinished JobStatus = "FINISHED"
	JobStatusError    JobStatus = "ERROR"
)

func (s JobStatus) IsComplete() bool {
	return s == JobStatusFinished || s == JobStatusError
}

type ResultState string

const (
	ResultSucceeded ResultState = "SUCCEEDED"
	ResultFailed    ResultState = "FAILED"
	ResultError     ResultState = "ERROR"
	ResultStopped   ResultState = "STOPPED"
)

// ExecuteResult is returned exactly once per DoWork call.
type ExecuteResult struct {
	State  ResultState
	Output string
}

// Output is what the output store keeps for one executable.
type Output struct {
	ID        string
	State     ExecutableState
	Info      map[string]string
	Text      string
	UpdatedAt time.Time
}

// StatusSample is a single observation of a running job.
type StatusSample struct {
	Status JobStatus
	Output string
	Info   map[string]string
}

// Counters are only meaningful once the job reached a terminal status.
type Counters struct {
	RecordsProcessed int64
	BytesWritten     int64
}

// JobSpec is a resolved submission request.
type JobSpec struct {
	Name        string
	Input       []string
	Output      string
	NumReducers int
}

// Handle identifies a job inside a backend.
type Handle struct {
	ID  string
	URL string
}

// Info keys written by the executable.
const (
	InfoStartTime          = "startTime"
	InfoWaitTime           = "mapReduceWaitTime"
	InfoJobID              = "mr_job_id"
	InfoJobURL             = "mr_job_url"
	InfoSourceRecordsCount = "sourceRecordsCount"
	InfoHDFSBytesWritten   = "hdfsBytesWritten"
)

package rest

import (
	"time"
)

// Coordinator job statuses as exposed over HTTP.
const (
	StatusPending   = "PENDING"
	StatusPlanning  = "PLANNING"
	StatusRunning   = "RUNNING"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

type SubmitJobRequest struct {
	Name     string            `json:"name"`
	Input    InputConfig       `json:"input"`
	Output   string            `json:"output,omitempty"`
	Config   JobConfig         `json:"config"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type InputConfig struct {
	Paths []string `json:"paths"` // Glob patterns or specific paths
}

type JobConfig struct {
	NumReducers int `json:"numReducers"`
}

type SubmitJobResponse struct {
	JobID       string    `json:"job_id"`
	Status      string    `json:"status"`
	SubmittedAt time.Time `json:"submitted_at"`
	Links       Links     `json:"links"`
}

type Links struct {
	Self     string `json:"self"`
	Counters string `json:"counters"`
}

type GetJobResponse struct {
	JobID      string         `json:"job_id"`
	Name       string         `json:"name"`
	Status     string         `json:"status"`
	Phase      string         `json:"phase,omitempty"`
	Timestamps TimestampsInfo `json:"timestamps"`
	Output     OutputInfo     `json:"output"`
	Log        string         `json:"log"`
	Error      string         `json:"error,omitempty"`
}

type TimestampsInfo struct {
	Submitted time.Time  `json:"submitted"`
	Started   *time.Time `json:"started"`
	Completed *time.Time `json:"completed"`
}

type OutputInfo struct {
	Location  string `json:"location"`
	Available bool   `json:"available"`
}

type CountersResponse struct {
	JobID              string `json:"job_id"`
	MapInputRecords    int64  `json:"map_input_records"`
	MapOutputRecords   int64  `json:"map_output_records"`
	ReduceOutputGroups int64  `json:"reduce_output_groups"`
	BytesWritten       int64  `json:"bytes_written"`
}

type ListJobsResponse struct {
	Jobs       []JobSummary `json:"jobs"`
	Total      int          `json:"total"`
	Limit      int          `json:"limit"`
	Offset     int          `json:"offset"`
	NextOffset *int         `json:"next_offset,omitempty"`
}

type JobSummary struct {
	JobID       string     `json:"job_id"`
	Name        string     `json:"name"`
	Status      string     `json:"status"`
	SubmittedAt time.Time  `json:"submitted_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

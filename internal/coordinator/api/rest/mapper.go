package rest

import (
	"fmt"

	"github.com/nemanja-m/mrstep/internal/backend/local"
	"github.com/nemanja-m/mrstep/internal/step/core"
	engine "github.com/nemanja-m/mrstep/pkg/local"
)

const DefaultNumReducers = 1

func (req *SubmitJobRequest) ToJobSpec() core.JobSpec {
	numReducers := req.Config.NumReducers
	if numReducers == 0 {
		numReducers = DefaultNumReducers
	}
	return core.JobSpec{
		Name:        req.Name,
		Input:       req.Input.Paths,
		Output:      req.Output,
		NumReducers: numReducers,
	}
}

// ToStatus maps a backend job status to its HTTP representation. A running
// job that has not entered the map phase yet is still planning its input.
func ToStatus(status core.JobStatus, phase engine.Phase) string {
	switch status {
	case core.JobStatusRunning:
		if phase == "" {
			return StatusPlanning
		}
		return StatusRunning
	case core.JobStatusFinished:
		return StatusCompleted
	case core.JobStatusError:
		return StatusFailed
	default:
		return StatusPending
	}
}

func ToGetJobResponse(job local.Snapshot) GetJobResponse {
	return GetJobResponse{
		JobID:  job.ID,
		Name:   job.Name,
		Status: ToStatus(job.Status, job.Phase),
		Phase:  string(job.Phase),
		Timestamps: TimestampsInfo{
			Submitted: job.SubmittedAt,
			Started:   job.StartedAt,
			Completed: job.FinishedAt,
		},
		Output: OutputInfo{
			Location:  job.OutputDir,
			Available: job.Status == core.JobStatusFinished,
		},
		Log:   job.Log,
		Error: job.Error,
	}
}

func ToJobSummary(job local.Snapshot) JobSummary {
	return JobSummary{
		JobID:       job.ID,
		Name:        job.Name,
		Status:      ToStatus(job.Status, job.Phase),
		SubmittedAt: job.SubmittedAt,
		CompletedAt: job.FinishedAt,
	}
}

func ToCountersResponse(job local.Snapshot) CountersResponse {
	return CountersResponse{
		JobID:              job.ID,
		MapInputRecords:    job.Counters.MapInputRecords,
		MapOutputRecords:   job.Counters.MapOutputRecords,
		ReduceOutputGroups: job.Counters.ReduceOutputGroups,
		BytesWritten:       job.Counters.BytesWritten,
	}
}

func jobLinks(jobID string) Links {
	return Links{
		Self:     fmt.Sprintf("/api/jobs/%s", jobID),
		Counters: fmt.Sprintf("/api/jobs/%s/counters", jobID),
	}
}

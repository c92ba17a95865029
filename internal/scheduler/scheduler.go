package scheduler

import (
	"context"

	"github.com/me/jobmon/pkg/model"
)

// SubmitRequest carries everything a backend needs to start one job.
type SubmitRequest struct {
	// Command is the full command line to execute.
	Command string
	// Name is the job name shown by the backend.
	Name string
	// StdoutLog and StderrLog are paths where the job's output is captured.
	// StderrLog may be empty, in which case stderr goes wherever the backend's
	// convention sends it (the serial backend folds it into the stdout log).
	StdoutLog string
	StderrLog string
	// Processors and MemoryMB are the resource request; zero values fall back
	// to the backend's defaults.
	Processors int
	MemoryMB   int
	// Extra holds backend-specific arguments not covered by the fields above.
	Extra map[string]string
}

// JobScheduler is a pluggable backend that submits, tracks, and kills jobs.
//
// Submit returns the backend-assigned system ID, or an error when the backend
// rejected the job; callers must check the error and treat it as a submission
// failure, never retry it silently.
//
// Status never fails: a handle the backend cannot account for collapses to
// SchedulerStatusError rather than propagating a lookup error.
//
// Kill is best-effort and reports whether the termination request was
// accepted, not whether the job actually stopped.
type JobScheduler interface {
	Type() model.SchedulerType
	Submit(ctx context.Context, req SubmitRequest) (string, error)
	Status(ctx context.Context, systemID string) model.SchedulerStatus
	Kill(ctx context.Context, systemID string) bool
}

// Defaults is the resource request applied when a SubmitRequest leaves
// Processors or MemoryMB unset.
type Defaults struct {
	Processors int
	MemoryMB   int
}

// DefaultResources matches the historical per-job request of the pipeline.
func DefaultResources() Defaults {
	return Defaults{Processors: 1, MemoryMB: 6000}
}

// apply fills zero-valued resource fields of req from the defaults.
func (d Defaults) apply(req SubmitRequest) SubmitRequest {
	if req.Processors <= 0 {
		req.Processors = d.Processors
	}
	if req.MemoryMB <= 0 {
		req.MemoryMB = d.MemoryMB
	}
	return req
}

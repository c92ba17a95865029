package monitor

import (
	"context"

	"github.com/me/jobmon/internal/scheduler"
	"github.com/me/jobmon/pkg/model"
)

// ClassifyJob derives the monitor-level status of a job from the backend's
// report and, on apparent success, from output validation.
//
// A job without a system ID has not been handed to the backend yet, so it is
// still waiting on its dependencies. A backend COMPLETED is only an apparent
// success: the step's validator has the final word, and a validation failure
// downgrades the job to FAILED exactly like a backend failure. Anything the
// backend reports outside its known vocabulary, including its ERROR sentinel,
// is treated as FAILED so the job re-enters the resubmission path rather than
// wedging the run.
func ClassifyJob(ctx context.Context, job *model.Job, step PipelineStep, sched scheduler.JobScheduler) model.JobStatus {
	if job.SystemID == "" {
		return model.JobStatusWaitingForDependency
	}

	switch sched.Status(ctx, job.SystemID) {
	case model.SchedulerStatusPending, model.SchedulerStatusRunning:
		return model.JobStatusSubmitted
	case model.SchedulerStatusCompleted:
		if step != nil && step.IsOutputValid(job.ValidationAttributes) {
			return model.JobStatusCompleted
		}
		return model.JobStatusFailed
	default:
		return model.JobStatusFailed
	}
}

package model

// JobStatus is the monitor's classification of a job, combining the backend
// report with output validation.
type JobStatus string

const (
	// JobStatusSubmitted means the job is on the backend, running or waiting.
	JobStatusSubmitted JobStatus = "SUBMITTED"
	// JobStatusFailed means the job finished with error status or its output
	// failed validation.
	JobStatusFailed JobStatus = "FAILED"
	// JobStatusStalled means the job is running without its output advancing.
	// No classification rule currently derives it; it is reserved for backends
	// that can report stalls.
	JobStatusStalled JobStatus = "STALLED"
	// JobStatusCompleted means the job finished and its output validated.
	JobStatusCompleted JobStatus = "COMPLETED"
	// JobStatusWaitingForDependency means the job has not been submitted to a
	// backend yet.
	JobStatusWaitingForDependency JobStatus = "WAITING_FOR_DEPENDENCY"
)

// String returns the string representation of the job status.
func (s JobStatus) String() string {
	return string(s)
}

// SchedulerStatus is the coarse status a scheduler backend reports for one
// submitted job.
type SchedulerStatus string

const (
	SchedulerStatusPending   SchedulerStatus = "PENDING"
	SchedulerStatusRunning   SchedulerStatus = "RUNNING"
	SchedulerStatusCompleted SchedulerStatus = "COMPLETED"
	SchedulerStatusFailed    SchedulerStatus = "FAILED"
	// SchedulerStatusError means the backend could not report a status for the
	// job. Callers must treat it as a failure, never as "still running".
	SchedulerStatusError SchedulerStatus = "ERROR"
)

// String returns the string representation of the scheduler status.
func (s SchedulerStatus) String() string {
	return string(s)
}

// IsTerminal returns true if the backend considers the job finished.
func (s SchedulerStatus) IsTerminal() bool {
	switch s {
	case SchedulerStatusCompleted, SchedulerStatusFailed, SchedulerStatusError:
		return true
	}
	return false
}

// SchedulerType identifies which scheduler backend submits and tracks jobs.
type SchedulerType string

const (
	SchedulerTypeSerial SchedulerType = "serial"
	SchedulerTypeBatch  SchedulerType = "batch"
	SchedulerTypeLSF    SchedulerType = "lsf"
	SchedulerTypeSGE    SchedulerType = "sge"
)

package model

import "fmt"

// ErrorCode classifies the fatal conditions raised by the job monitor. All of
// them indicate orchestration-invariant breakage or a terminal condition and
// are expected to halt the run; only job-execution failures are retried.
type ErrorCode string

const (
	ErrUnsupportedScheduler ErrorCode = "UNSUPPORTED_SCHEDULER"
	ErrStepNotRegistered    ErrorCode = "STEP_NOT_REGISTERED"
	ErrInvalidStep          ErrorCode = "INVALID_STEP"
	ErrDuplicateJob         ErrorCode = "DUPLICATE_JOB"
	ErrJobNotFound          ErrorCode = "JOB_NOT_FOUND"
	ErrSubmissionFailed     ErrorCode = "SUBMISSION_FAILED"
	ErrResubmissionLimit    ErrorCode = "RESUBMISSION_LIMIT"
)

// MonitorError is the single fatal error kind raised by the job monitor.
// Queues, when set, carries the queue state at the time of the failure.
type MonitorError struct {
	Code    ErrorCode
	Message string
	Queues  *QueueSnapshot
}

func (e *MonitorError) Error() string {
	if e.Queues == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s\nqueue state: %s", e.Code, e.Message, e.Queues)
}

// NewMonitorError creates a MonitorError without queue context.
func NewMonitorError(code ErrorCode, format string, args ...any) *MonitorError {
	return &MonitorError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithQueues attaches a queue snapshot to the error and returns it.
func (e *MonitorError) WithQueues(q *QueueSnapshot) *MonitorError {
	e.Queues = q
	return e
}

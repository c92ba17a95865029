package model

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Directory names used inside a job's output directory.
const (
	LogDirectoryName  = "logs"
	DataDirectoryName = "data"
)

// Job describes one schedulable unit of work: the command to run, the
// pipeline step it belongs to, the jobs it depends on, and everything needed
// to submit (or resubmit) it to a scheduler backend.
type Job struct {
	// ID uniquely identifies the job across all monitor queues.
	ID string
	// SampleID is an optional back-reference to a Sample; empty when the job
	// is not tied to a specific sample.
	SampleID string
	// StepName keys into the monitor's pipeline-step registry.
	StepName string
	// Command is the full command line executed by the backend.
	Command string
	// SchedulerArguments is forwarded to the backend on submission. Recognized
	// keys are backend-specific; common ones are job_name, stdout_log,
	// stderr_log, processors, and memory_mb.
	SchedulerArguments map[string]string
	// ValidationAttributes is the opaque bundle handed to the step's
	// IsOutputValid to decide real success vs. apparent success.
	ValidationAttributes map[string]any
	// OutputDir is where the job's output and logs are stored.
	OutputDir string
	// SystemID is the backend-assigned identifier. Empty means the job has not
	// been submitted to a backend yet.
	SystemID string
	// ResubmissionCounter advances by exactly one on each resubmission.
	ResubmissionCounter int

	dependencies map[string]struct{}
}

// NewJob creates a Job. A non-empty systemID marks the job as already
// submitted to a backend; dependencies are deduplicated.
func NewJob(id, command, sampleID, stepName string, schedulerArgs map[string]string,
	validationAttrs map[string]any, outputDir, systemID string, dependencies []string) *Job {
	j := &Job{
		ID:                   id,
		SampleID:             sampleID,
		StepName:             stepName,
		Command:              command,
		SchedulerArguments:   schedulerArgs,
		ValidationAttributes: validationAttrs,
		OutputDir:            outputDir,
		SystemID:             systemID,
		dependencies:         make(map[string]struct{}),
	}
	j.AddDependencies(dependencies...)
	return j
}

// AddDependencies adds the given job IDs to the dependency set, ignoring
// duplicates.
func (j *Job) AddDependencies(jobIDs ...string) {
	for _, id := range jobIDs {
		j.dependencies[id] = struct{}{}
	}
}

// HasDependency reports whether the given job ID is in the dependency set.
func (j *Job) HasDependency(jobID string) bool {
	_, ok := j.dependencies[jobID]
	return ok
}

// Dependencies returns the dependency set as a sorted slice.
func (j *Job) Dependencies() []string {
	ids := make([]string, 0, len(j.dependencies))
	for id := range j.dependencies {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// LogDir returns the log directory under the job's output directory.
func (j *Job) LogDir() string {
	return filepath.Join(j.OutputDir, LogDirectoryName)
}

// DataDir returns the data directory under the job's output directory.
func (j *Job) DataDir() string {
	return filepath.Join(j.OutputDir, DataDirectoryName)
}

// String renders the job for queue-state dumps in fatal errors.
func (j *Job) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Job - id: %s\n", j.ID)
	fmt.Fprintf(&b, "      step_name: %s\n", j.StepName)
	fmt.Fprintf(&b, "      sample_id: %s\n", j.SampleID)
	fmt.Fprintf(&b, "      system_id: %s\n", j.SystemID)
	fmt.Fprintf(&b, "      dependencies: %v\n", j.Dependencies())
	fmt.Fprintf(&b, "      resubmissions: %d\n", j.ResubmissionCounter)
	fmt.Fprintf(&b, "      command: %s", j.Command)
	return b.String()
}

// Summary returns a compact, serializable view of the job.
func (j *Job) Summary() JobSummary {
	return JobSummary{
		ID:            j.ID,
		StepName:      j.StepName,
		SampleID:      j.SampleID,
		SystemID:      j.SystemID,
		Resubmissions: j.ResubmissionCounter,
		Dependencies:  j.Dependencies(),
	}
}

// JobSummary is the read-only view of a Job exposed by queue snapshots and
// the status API.
type JobSummary struct {
	ID            string   `json:"id"`
	StepName      string   `json:"step_name"`
	SampleID      string   `json:"sample_id,omitempty"`
	SystemID      string   `json:"system_id,omitempty"`
	Resubmissions int      `json:"resubmissions"`
	Dependencies  []string `json:"dependencies,omitempty"`
}

// QueueSnapshot captures the contents of the monitor's four queues at one
// point in time. It is attached to fatal errors so a failed run can be
// diagnosed without re-running, and served by the status API.
type QueueSnapshot struct {
	Pending      []JobSummary `json:"pending"`
	Running      []JobSummary `json:"running"`
	Resubmission []JobSummary `json:"resubmission"`
	Completed    []JobSummary `json:"completed"`
}

// String renders queue counts and the contents of the non-completed queues.
func (q *QueueSnapshot) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "pending:%d running:%d resubmission:%d completed:%d",
		len(q.Pending), len(q.Running), len(q.Resubmission), len(q.Completed))
	writeQueue := func(name string, jobs []JobSummary) {
		for _, j := range jobs {
			fmt.Fprintf(&b, "\n  [%s] %s step=%s system_id=%s resubmissions=%d",
				name, j.ID, j.StepName, j.SystemID, j.Resubmissions)
		}
	}
	writeQueue("pending", q.Pending)
	writeQueue("running", q.Running)
	writeQueue("resubmission", q.Resubmission)
	return b.String()
}

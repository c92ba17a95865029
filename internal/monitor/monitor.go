// Package monitor tracks the status of jobs running throughout a pipeline
// run. It owns four queues (pending, running, resubmission, completed), moves
// jobs between them based on backend status and output validation, enforces
// inter-job dependencies, and resubmits failed jobs up to a limit.
package monitor

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/me/jobmon/internal/scheduler"
	"github.com/me/jobmon/pkg/model"
)

// DefaultMaxResubmissions bounds how often a single job is retried before the
// whole run halts.
const DefaultMaxResubmissions = 3

// PipelineStep is the capability a pipeline step must expose so the monitor
// can tell real success from apparent success.
type PipelineStep interface {
	// IsOutputValid reports whether the output described by the validation
	// attribute bundle is complete and intact.
	IsOutputValid(attrs map[string]any) bool
}

// JobRequest describes a job handed to SubmitNewJob.
type JobRequest struct {
	JobID                string
	Command              string
	Sample               *model.Sample
	StepName             string
	SchedulerArguments   map[string]string
	ValidationAttributes map[string]any
	OutputDir            string
	// SystemID, when set, marks the job as already submitted to a backend; it
	// goes straight to the running queue regardless of dependencies.
	SystemID     string
	Dependencies []string
}

// Monitor is the dependency-aware queue machine. It is a single-writer
// structure: all queue mutation happens through its methods, from one
// goroutine. The lock exists so read-only snapshots (the status API) can be
// taken while the control loop runs.
type Monitor struct {
	mu sync.RWMutex

	outputDir        string
	maxResubmissions int
	defaults         scheduler.Defaults
	scheduler        scheduler.JobScheduler
	logger           *slog.Logger

	// A job ID lives in exactly one of these four maps at any time.
	pending      map[string]*model.Job
	running      map[string]*model.Job
	resubmission map[string]*model.Job
	completed    map[string]*model.Job

	samples map[string]*model.Sample
	steps   map[string]PipelineStep
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithMaxResubmissions overrides the resubmission limit.
func WithMaxResubmissions(n int) Option {
	return func(m *Monitor) { m.maxResubmissions = n }
}

// WithDefaults sets the default resource request forwarded to the backend.
func WithDefaults(d scheduler.Defaults) Option {
	return func(m *Monitor) { m.defaults = d }
}

// WithLogger sets the monitor's logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) { m.logger = l.With("component", "job-monitor") }
}

// New creates a Monitor bound to one scheduler backend.
func New(outputDir string, sched scheduler.JobScheduler, opts ...Option) *Monitor {
	m := &Monitor{
		outputDir:        outputDir,
		maxResubmissions: DefaultMaxResubmissions,
		defaults:         scheduler.DefaultResources(),
		scheduler:        sched,
		logger:           slog.Default().With("component", "job-monitor"),
		pending:          make(map[string]*model.Job),
		running:          make(map[string]*model.Job),
		resubmission:     make(map[string]*model.Job),
		completed:        make(map[string]*model.Job),
		samples:          make(map[string]*model.Sample),
		steps:            make(map[string]PipelineStep),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RegisterStep adds a pipeline step to the validator registry.
func (m *Monitor) RegisterStep(name string, step PipelineStep) error {
	if step == nil {
		return model.NewMonitorError(model.ErrInvalidStep,
			"step %s cannot be registered without a validator", name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps[name] = step
	return nil
}

// Step returns the registered pipeline step for the given name.
func (m *Monitor) Step(name string) (PipelineStep, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	step, ok := m.steps[name]
	return step, ok
}

// Sample returns the sample registered under the given ID, or nil.
func (m *Monitor) Sample(sampleID string) *model.Sample {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.samples[sampleID]
}

// SubmitNewJob creates a Job and adds it to the running queue when a system
// ID is supplied, otherwise to the pending queue. The job's step must already
// be registered, and its ID must not exist in the running or pending queue.
// Queues are left unchanged on error.
func (m *Monitor) SubmitNewJob(req JobRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.steps[req.StepName]; !ok {
		return model.NewMonitorError(model.ErrStepNotRegistered,
			"cannot add job %s: its pipeline step (%s) is not tracked by the job monitor",
			req.JobID, req.StepName)
	}

	sampleID := ""
	if req.Sample != nil {
		sampleID = req.Sample.ID
	}
	job := model.NewJob(req.JobID, req.Command, sampleID, req.StepName,
		req.SchedulerArguments, req.ValidationAttributes, req.OutputDir,
		req.SystemID, req.Dependencies)

	if _, inRunning := m.running[job.ID]; inRunning {
		return m.duplicateJobError(job)
	}
	if _, inPending := m.pending[job.ID]; inPending {
		return m.duplicateJobError(job)
	}

	if job.SystemID != "" {
		m.running[job.ID] = job
	} else {
		m.pending[job.ID] = job
	}
	if sampleID != "" {
		if _, ok := m.samples[sampleID]; !ok {
			m.samples[sampleID] = req.Sample
		}
	}

	m.logger.Debug("job accepted",
		"job_id", job.ID,
		"step", job.StepName,
		"queue", queueNameFor(job.SystemID),
		"dependencies", len(job.Dependencies()),
	)
	return nil
}

func queueNameFor(systemID string) string {
	if systemID != "" {
		return "running"
	}
	return "pending"
}

func (m *Monitor) duplicateJobError(job *model.Job) error {
	m.logger.Error("duplicate job submission", "job_id", job.ID, "job", job.String())
	return model.NewMonitorError(model.ErrDuplicateJob,
		"job %s is already in the list of running or pending jobs; "+
			"to move a job from pending to running, use SubmitPendingJob", job.ID).
		WithQueues(m.snapshotLocked())
}

// SubmitPendingJob submits a job through the scheduler backend and moves it
// from the pending queue to the running queue. A backend submission failure
// is fatal and leaves the job in the pending queue.
func (m *Monitor) SubmitPendingJob(ctx context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.submitFromQueue(ctx, jobID, m.pending, false)
}

// ResubmitJob submits a job through the scheduler backend and moves it from
// the resubmission queue to the running queue, advancing its resubmission
// counter. Hitting the resubmission limit is fatal and mutates nothing.
func (m *Monitor) ResubmitJob(ctx context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.submitFromQueue(ctx, jobID, m.resubmission, true)
}

// submitFromQueue is the shared path behind SubmitPendingJob and ResubmitJob.
// The caller holds the write lock.
//
// The running queue (and the sibling source queue) are checked before the
// source queue: if presence in the source were tested first, a job sitting in
// the wrong queue would always be reported as "missing", hiding what actually
// went wrong.
func (m *Monitor) submitFromQueue(ctx context.Context, jobID string, source map[string]*model.Job, isResubmit bool) error {
	var sibling map[string]*model.Job
	if isResubmit {
		sibling = m.pending
	} else {
		sibling = m.resubmission
	}
	if _, ok := m.running[jobID]; ok {
		return m.wrongQueueError(jobID, isResubmit)
	}
	if _, ok := sibling[jobID]; ok {
		return m.wrongQueueError(jobID, isResubmit)
	}

	job, ok := source[jobID]
	if !ok {
		if isResubmit {
			return model.NewMonitorError(model.ErrJobNotFound,
				"job %s is missing from the list of jobs marked for resubmission", jobID).
				WithQueues(m.snapshotLocked())
		}
		return model.NewMonitorError(model.ErrJobNotFound,
			"job %s is missing from the list of pending jobs", jobID).
			WithQueues(m.snapshotLocked())
	}

	// The counter advances by exactly one per resubmission, so equality is
	// the limit check.
	if isResubmit && job.ResubmissionCounter == m.maxResubmissions {
		return model.NewMonitorError(model.ErrResubmissionLimit,
			"job %s exceeded the maximum resubmission limit of %d", jobID, m.maxResubmissions).
			WithQueues(m.snapshotLocked())
	}

	m.logger.Info("submitting job",
		"job_id", job.ID,
		"step", job.StepName,
		"scheduler", m.scheduler.Type(),
		"sample", m.sampleNameLocked(job.SampleID),
		"resubmit", isResubmit,
	)

	systemID, err := m.scheduler.Submit(ctx, m.buildSubmitRequest(job))
	if err != nil {
		m.logger.Error("job submission failed",
			"job_id", job.ID,
			"step", job.StepName,
			"scheduler_arguments", job.SchedulerArguments,
			"command", job.Command,
			"error", err,
		)
		return model.NewMonitorError(model.ErrSubmissionFailed,
			"job submission failed for step %s (job %s): %v", job.StepName, jobID, err).
			WithQueues(m.snapshotLocked())
	}

	job.SystemID = systemID
	if isResubmit {
		job.ResubmissionCounter++
	}
	m.running[jobID] = job
	delete(source, jobID)

	m.logger.Info("job running",
		"job_id", job.ID,
		"system_id", systemID,
		"resubmissions", job.ResubmissionCounter,
	)
	return nil
}

func (m *Monitor) wrongQueueError(jobID string, isResubmit bool) error {
	if isResubmit {
		return model.NewMonitorError(model.ErrDuplicateJob,
			"resubmitted job %s is already in the list of running or pending jobs", jobID).
			WithQueues(m.snapshotLocked())
	}
	return model.NewMonitorError(model.ErrDuplicateJob,
		"job %s is already in the list of running jobs or jobs marked for resubmission", jobID).
		WithQueues(m.snapshotLocked())
}

// sampleNameLocked resolves a sample ID to its name for log lines. The caller
// holds at least the read lock.
func (m *Monitor) sampleNameLocked(sampleID string) string {
	if s, ok := m.samples[sampleID]; ok {
		return s.Name
	}
	return ""
}

// buildSubmitRequest assembles the backend request from the job's scheduler
// arguments. Recognized keys: job_name, stdout_log, stderr_log, processors,
// memory_mb; everything else is forwarded untouched in Extra.
func (m *Monitor) buildSubmitRequest(job *model.Job) scheduler.SubmitRequest {
	req := scheduler.SubmitRequest{
		Command:    job.Command,
		Name:       job.ID,
		Processors: m.defaults.Processors,
		MemoryMB:   m.defaults.MemoryMB,
		Extra:      make(map[string]string),
	}
	for key, value := range job.SchedulerArguments {
		switch key {
		case "job_name":
			req.Name = value
		case "stdout_log":
			req.StdoutLog = value
		case "stderr_log":
			req.StderrLog = value
		case "processors":
			if n, err := strconv.Atoi(value); err == nil {
				req.Processors = n
			} else {
				m.logger.Warn("ignoring bad processors value", "job_id", job.ID, "value", value)
			}
		case "memory_mb":
			if n, err := strconv.Atoi(value); err == nil {
				req.MemoryMB = n
			} else {
				m.logger.Warn("ignoring bad memory_mb value", "job_id", job.ID, "value", value)
			}
		default:
			req.Extra[key] = value
		}
	}
	return req
}

// MarkCompleted moves a job from the running queue to the completed queue.
// The job is assumed to be present in the running queue.
func (m *Monitor) MarkCompleted(jobID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.moveFromRunning(jobID, m.completed, "completed")
}

// MarkForResubmission moves a job from the running queue to the resubmission
// queue. The job is assumed to be present in the running queue.
func (m *Monitor) MarkForResubmission(jobID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.moveFromRunning(jobID, m.resubmission, "resubmission")
}

func (m *Monitor) moveFromRunning(jobID string, dest map[string]*model.Job, destName string) {
	job, ok := m.running[jobID]
	if !ok {
		m.logger.Warn("job not in running queue", "job_id", jobID, "destination", destName)
		return
	}
	dest[jobID] = job
	delete(m.running, jobID)
	m.logger.Debug("job moved", "job_id", jobID, "queue", destName)
}

// DependenciesSatisfied reports whether every dependency of the given pending
// job is in the completed queue. A job with no dependencies is trivially
// satisfied.
func (m *Monitor) DependenciesSatisfied(jobID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.pending[jobID]
	if !ok {
		return false, model.NewMonitorError(model.ErrJobNotFound,
			"job %s is missing from the list of pending jobs", jobID)
	}
	for _, dep := range job.Dependencies() {
		if _, done := m.completed[dep]; !done {
			return false, nil
		}
	}
	return true, nil
}

// PollOnce classifies every job currently in the running queue and moves the
// failed ones to the resubmission queue and the completed ones to the
// completed queue. It returns whether the run is finished, i.e. the running,
// pending, and resubmission queues are all empty.
//
// Classification runs against a snapshot of the running queue taken at entry,
// so the queue moves triggered here cannot disturb the iteration.
func (m *Monitor) PollOnce(ctx context.Context) bool {
	m.mu.RLock()
	snapshot := make([]*model.Job, 0, len(m.running))
	for _, job := range m.running {
		snapshot = append(snapshot, job)
	}
	m.mu.RUnlock()

	for _, job := range snapshot {
		step, _ := m.Step(job.StepName)
		switch ClassifyJob(ctx, job, step, m.scheduler) {
		case model.JobStatusFailed:
			m.MarkForResubmission(job.ID)
		case model.JobStatusCompleted:
			m.MarkCompleted(job.ID)
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	m.logger.Info("queue status",
		"running", len(m.running),
		"pending", len(m.pending),
		"resubmission", len(m.resubmission),
		"completed", len(m.completed),
	)
	return len(m.running) == 0 && len(m.pending) == 0 && len(m.resubmission) == 0
}

// RunUntilComplete polls until every queue but completed is empty. Each cycle
// resubmits jobs awaiting retry before promoting pending jobs whose
// dependencies are satisfied, so retried jobs cannot starve newly-eligible
// pending jobs and newly pending jobs are re-checked after this cycle's
// resubmissions. Fatal errors propagate immediately and halt the run.
func (m *Monitor) RunUntilComplete(ctx context.Context, pollInterval time.Duration) error {
	m.logger.Info("monitoring until all jobs complete",
		"output_dir", m.outputDir,
		"poll_interval", pollInterval,
	)
	for {
		if m.PollOnce(ctx) {
			m.logger.Info("all jobs completed")
			return nil
		}

		resub := m.queueIDs(m.resubmission)
		if len(resub) > 0 {
			m.logger.Info("resubmitting failed jobs", "count", len(resub))
			for _, jobID := range resub {
				if err := m.ResubmitJob(ctx, jobID); err != nil {
					return err
				}
			}
		}

		for _, jobID := range m.queueIDs(m.pending) {
			satisfied, err := m.DependenciesSatisfied(jobID)
			if err != nil {
				return err
			}
			if !satisfied {
				continue
			}
			if err := m.SubmitPendingJob(ctx, jobID); err != nil {
				return err
			}
		}

		select {
		case <-ctx.Done():
			m.logger.Warn("run interrupted; killing running jobs")
			m.KillRunning(ctx)
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// KillRunning asks the backend to terminate every job still alive in the
// running queue. Jobs the backend already reports terminal are left alone.
// Best-effort: unacknowledged kills are logged, not retried.
func (m *Monitor) KillRunning(ctx context.Context) {
	// The caller is usually shutting down with a cancelled context, and the
	// kill commands still have to run.
	ctx = context.WithoutCancel(ctx)

	m.mu.RLock()
	snapshot := make([]*model.Job, 0, len(m.running))
	for _, job := range m.running {
		snapshot = append(snapshot, job)
	}
	m.mu.RUnlock()

	for _, job := range snapshot {
		if m.scheduler.Status(ctx, job.SystemID).IsTerminal() {
			continue
		}
		if m.scheduler.Kill(ctx, job.SystemID) {
			m.logger.Info("job killed", "job_id", job.ID, "system_id", job.SystemID)
		} else {
			m.logger.Warn("kill not acknowledged", "job_id", job.ID, "system_id", job.SystemID)
		}
	}
}

// queueIDs snapshots the sorted key set of a queue.
func (m *Monitor) queueIDs(queue map[string]*model.Job) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(queue))
	for id := range queue {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Snapshot captures the current contents of all four queues.
func (m *Monitor) Snapshot() *model.QueueSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

// snapshotLocked builds a queue snapshot. The caller holds at least the read
// lock.
func (m *Monitor) snapshotLocked() *model.QueueSnapshot {
	return &model.QueueSnapshot{
		Pending:      summarize(m.pending),
		Running:      summarize(m.running),
		Resubmission: summarize(m.resubmission),
		Completed:    summarize(m.completed),
	}
}

func summarize(queue map[string]*model.Job) []model.JobSummary {
	out := make([]model.JobSummary, 0, len(queue))
	for _, job := range queue {
		out = append(out, job.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

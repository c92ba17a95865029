package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"strings"

	"github.com/me/jobmon/pkg/model"
)

// commandRunner executes a shell command and returns its combined output.
// Backends hold it as a field so tests can substitute canned output.
type commandRunner func(ctx context.Context, command string) (string, error)

func runShellCommand(ctx context.Context, command string) (string, error) {
	out, err := exec.CommandContext(ctx, "/bin/sh", "-c", command).CombinedOutput()
	return string(out), err
}

// bjobs output: a header line followed by one row per job.
var lsfStatusPattern = regexp.MustCompile(`JOBID\s+USER\s+STAT\s+QUEUE\s+FROM_HOST\s+EXEC_HOST\s+JOB_NAME\s+SUBMIT_TIME\n(?P<job_id>\d+)\s+\S+\s+(?P<job_status>\S+)\s+`)

// bsub acknowledgement: Job <1234> is submitted to queue <normal>.
var lsfSubmitPattern = regexp.MustCompile(`Job <(?P<job_id>\d+)> is submitted`)

// bkill acknowledgement. Only termination (or already-finished) counts as
// accepted; bkill prints "Job <1234> is not found" in the same shape.
var lsfKillPattern = regexp.MustCompile(`Job <(?P<job_id>\d+)>( is being terminated|: Job has already finished)`)

// LSFScheduler submits, monitors, and kills jobs on a Load Sharing Facility
// cluster by shelling out to bsub, bjobs, and bkill.
type LSFScheduler struct {
	defaults Defaults
	run      commandRunner
	logger   *slog.Logger
}

// NewLSFScheduler creates an LSF backend.
func NewLSFScheduler(defaults Defaults, logger *slog.Logger) *LSFScheduler {
	return &LSFScheduler{
		defaults: defaults,
		run:      runShellCommand,
		logger:   logger.With("component", "lsf-scheduler"),
	}
}

// Type returns model.SchedulerTypeLSF.
func (s *LSFScheduler) Type() model.SchedulerType {
	return model.SchedulerTypeLSF
}

// Submit runs bsub and parses the assigned job ID out of its acknowledgement.
// The command cannot contain unix output redirection unless it is enclosed in
// single quotes.
func (s *LSFScheduler) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	req = s.defaults.apply(req)

	var b strings.Builder
	fmt.Fprintf(&b, "bsub -J %q -n %d -R \"span[hosts=1]\" -M %d -R \"rusage[mem=%d]\"",
		req.Name, req.Processors, req.MemoryMB, req.MemoryMB)
	if req.StdoutLog != "" {
		fmt.Fprintf(&b, " -oo %s", req.StdoutLog)
	}
	if req.StderrLog != "" {
		fmt.Fprintf(&b, " -eo %s", req.StderrLog)
	}
	if extra := req.Extra["additional_args"]; extra != "" {
		fmt.Fprintf(&b, " %s", extra)
	}
	fmt.Fprintf(&b, " %s", req.Command)

	out, err := s.run(ctx, b.String())
	if err != nil {
		return "", fmt.Errorf("bsub %s: %w: %s", req.Name, err, strings.TrimSpace(out))
	}

	m := lsfSubmitPattern.FindStringSubmatch(out)
	if m == nil {
		return "", fmt.Errorf("bsub %s: no job id in output: %s", req.Name, strings.TrimSpace(out))
	}
	systemID := m[lsfSubmitPattern.SubexpIndex("job_id")]
	s.logger.Info("job submitted", "job_name", req.Name, "system_id", systemID)
	return systemID, nil
}

// Status runs bjobs and maps the LSF state column onto the scheduler status
// vocabulary. Jobs bjobs cannot account for collapse to ERROR.
func (s *LSFScheduler) Status(ctx context.Context, systemID string) model.SchedulerStatus {
	out, err := s.run(ctx, fmt.Sprintf("bjobs %s", systemID))
	if err != nil {
		s.logger.Warn("bjobs failed", "system_id", systemID, "error", err)
		return model.SchedulerStatusError
	}
	return parseLSFStatus(out)
}

// parseLSFStatus extracts the STAT column from bjobs output.
func parseLSFStatus(out string) model.SchedulerStatus {
	m := lsfStatusPattern.FindStringSubmatch(out)
	if m == nil {
		return model.SchedulerStatusError
	}
	switch m[lsfStatusPattern.SubexpIndex("job_status")] {
	case "RUN":
		return model.SchedulerStatusRunning
	case "PEND", "WAIT":
		return model.SchedulerStatusPending
	case "EXIT", "UNKWN":
		return model.SchedulerStatusFailed
	case "DONE":
		return model.SchedulerStatusCompleted
	default:
		return model.SchedulerStatusError
	}
}

// Kill runs bkill and reports whether LSF acknowledged the request.
func (s *LSFScheduler) Kill(ctx context.Context, systemID string) bool {
	out, err := s.run(ctx, fmt.Sprintf("bkill %s", systemID))
	if err != nil {
		s.logger.Warn("bkill failed", "system_id", systemID, "error", err)
		return false
	}
	return lsfKillPattern.MatchString(out)
}

package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/me/jobmon/pkg/model"
)

// qstat data row: job-ID, prior, name, user, state. Header and separator
// lines do not match.
var sgeRowPattern = regexp.MustCompile(`^\s*(?P<job_id>\d+)\s+\S+\s+\S+\s+\S+\s+(?P<job_status>\S+)\s+`)

// qsub acknowledgement: Your job 1234 ("name") has been submitted
var sgeSubmitPattern = regexp.MustCompile(`Your job (?P<job_id>\d+) \(.*\) has been submitted`)

// qdel acknowledgement: ... has registered the job 1234 for deletion
var sgeKillPattern = regexp.MustCompile(`has (registered the job|deleted job) (?P<job_id>\d+)`)

// SGEScheduler submits, monitors, and kills jobs on a Sun Grid Engine
// cluster by shelling out to qsub, qstat, and qdel.
type SGEScheduler struct {
	defaults Defaults
	run      commandRunner
	logger   *slog.Logger
}

// NewSGEScheduler creates an SGE backend.
func NewSGEScheduler(defaults Defaults, logger *slog.Logger) *SGEScheduler {
	return &SGEScheduler{
		defaults: defaults,
		run:      runShellCommand,
		logger:   logger.With("component", "sge-scheduler"),
	}
}

// Type returns model.SchedulerTypeSGE.
func (s *SGEScheduler) Type() model.SchedulerType {
	return model.SchedulerTypeSGE
}

// Submit runs qsub and parses the assigned job ID out of its acknowledgement.
func (s *SGEScheduler) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	req = s.defaults.apply(req)

	var b strings.Builder
	fmt.Fprintf(&b, "qsub -N %q -V -cwd -pe smp %d -l h_vmem=%dM",
		req.Name, req.Processors, req.MemoryMB)
	if req.StdoutLog != "" {
		fmt.Fprintf(&b, " -o %s", req.StdoutLog)
	}
	if req.StderrLog != "" {
		fmt.Fprintf(&b, " -e %s", req.StderrLog)
	}
	if extra := req.Extra["additional_args"]; extra != "" {
		fmt.Fprintf(&b, " %s", extra)
	}
	fmt.Fprintf(&b, " -b y %s", req.Command)

	out, err := s.run(ctx, b.String())
	if err != nil {
		return "", fmt.Errorf("qsub %s: %w: %s", req.Name, err, strings.TrimSpace(out))
	}

	m := sgeSubmitPattern.FindStringSubmatch(out)
	if m == nil {
		return "", fmt.Errorf("qsub %s: no job id in output: %s", req.Name, strings.TrimSpace(out))
	}
	systemID := m[sgeSubmitPattern.SubexpIndex("job_id")]
	s.logger.Info("job submitted", "job_name", req.Name, "system_id", systemID)
	return systemID, nil
}

// Status runs qstat scoped to the given job and maps the SGE state column
// onto the scheduler status vocabulary. Jobs qstat cannot account for
// collapse to ERROR.
func (s *SGEScheduler) Status(ctx context.Context, systemID string) model.SchedulerStatus {
	out, err := s.run(ctx, fmt.Sprintf("qstat %s", systemID))
	if err != nil {
		s.logger.Warn("qstat failed", "system_id", systemID, "error", err)
		return model.SchedulerStatusError
	}
	return parseSGEStatus(out, systemID)
}

// parseSGEStatus extracts the state column for the given job from qstat
// output. The row's job-ID must match; qstat may list other jobs.
func parseSGEStatus(out, systemID string) model.SchedulerStatus {
	for _, line := range strings.Split(out, "\n") {
		m := sgeRowPattern.FindStringSubmatch(line)
		if m == nil || m[sgeRowPattern.SubexpIndex("job_id")] != systemID {
			continue
		}
		switch m[sgeRowPattern.SubexpIndex("job_status")] {
		case "r", "t":
			return model.SchedulerStatusRunning
		case "qw", "hqw", "WAIT":
			return model.SchedulerStatusPending
		case "EXIT", "ZOMBI", "UNKWN", "Eqw", "dr":
			return model.SchedulerStatusFailed
		case "DONE":
			return model.SchedulerStatusCompleted
		default:
			return model.SchedulerStatusError
		}
	}
	return model.SchedulerStatusError
}

// Kill runs qdel and reports whether SGE acknowledged the request.
func (s *SGEScheduler) Kill(ctx context.Context, systemID string) bool {
	out, err := s.run(ctx, fmt.Sprintf("qdel %s", systemID))
	if err != nil {
		s.logger.Warn("qdel failed", "system_id", systemID, "error", err)
		return false
	}
	return sgeKillPattern.MatchString(out)
}

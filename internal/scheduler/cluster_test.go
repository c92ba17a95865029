package scheduler

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/me/jobmon/pkg/model"
)

const lsfBjobsHeader = "JOBID   USER    STAT  QUEUE      FROM_HOST   EXEC_HOST   JOB_NAME   SUBMIT_TIME\n"

func TestParseLSFStatus(t *testing.T) {
	tests := []struct {
		stat string
		want model.SchedulerStatus
	}{
		{"RUN", model.SchedulerStatusRunning},
		{"PEND", model.SchedulerStatusPending},
		{"WAIT", model.SchedulerStatusPending},
		{"EXIT", model.SchedulerStatusFailed},
		{"UNKWN", model.SchedulerStatusFailed},
		{"DONE", model.SchedulerStatusCompleted},
		{"PSUSP", model.SchedulerStatusError},
	}

	for _, tt := range tests {
		out := lsfBjobsHeader + "1234    beers   " + tt.stat + "  normal     hostA       hostB       align      Jan  1 10:00\n"
		if got := parseLSFStatus(out); got != tt.want {
			t.Errorf("parseLSFStatus(%s) = %q, want %q", tt.stat, got, tt.want)
		}
	}

	if got := parseLSFStatus("Job <1234> is not found\n"); got != model.SchedulerStatusError {
		t.Errorf("parseLSFStatus(not found) = %q, want ERROR", got)
	}
}

func TestLSFScheduler_Submit(t *testing.T) {
	var captured string
	sched := NewLSFScheduler(Defaults{Processors: 4, MemoryMB: 12000}, testLogger())
	sched.run = func(_ context.Context, command string) (string, error) {
		captured = command
		return "Job <5678> is submitted to queue <normal>.\n", nil
	}

	systemID, err := sched.Submit(context.Background(), SubmitRequest{
		Command:   "align --sample 1",
		Name:      "align.1",
		StdoutLog: "/logs/align.out",
		StderrLog: "/logs/align.err",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if systemID != "5678" {
		t.Errorf("systemID = %q, want %q", systemID, "5678")
	}

	for _, want := range []string{
		`bsub -J "align.1"`, "-n 4", "-M 12000", "rusage[mem=12000]",
		"-oo /logs/align.out", "-eo /logs/align.err", "align --sample 1",
	} {
		if !strings.Contains(captured, want) {
			t.Errorf("bsub command missing %q: %s", want, captured)
		}
	}
}

func TestLSFScheduler_SubmitUnparseable(t *testing.T) {
	sched := NewLSFScheduler(DefaultResources(), testLogger())
	sched.run = func(_ context.Context, _ string) (string, error) {
		return "Request aborted by esub.\n", nil
	}
	if _, err := sched.Submit(context.Background(), SubmitRequest{Command: "true", Name: "j"}); err == nil {
		t.Error("Submit with unparseable bsub output succeeded, want error")
	}
}

func TestLSFScheduler_StatusCommandFailure(t *testing.T) {
	sched := NewLSFScheduler(DefaultResources(), testLogger())
	sched.run = func(_ context.Context, _ string) (string, error) {
		return "", errors.New("bjobs: command not found")
	}
	if got := sched.Status(context.Background(), "5678"); got != model.SchedulerStatusError {
		t.Errorf("Status = %q, want ERROR", got)
	}
}

func TestLSFScheduler_Kill(t *testing.T) {
	tests := []struct {
		output string
		want   bool
	}{
		{"Job <5678> is being terminated\n", true},
		{"Job <5678>: Job has already finished\n", true},
		{"Job <5678> is not found\n", false},
	}

	for _, tt := range tests {
		sched := NewLSFScheduler(DefaultResources(), testLogger())
		sched.run = func(_ context.Context, _ string) (string, error) {
			return tt.output, nil
		}
		if got := sched.Kill(context.Background(), "5678"); got != tt.want {
			t.Errorf("Kill with %q = %v, want %v", strings.TrimSpace(tt.output), got, tt.want)
		}
	}
}

func TestParseSGEStatus(t *testing.T) {
	header := "job-ID  prior   name       user         state submit/start at     queue                          slots ja-task-ID\n" +
		"-----------------------------------------------------------------------------------------------------------------\n"

	tests := []struct {
		state string
		want  model.SchedulerStatus
	}{
		{"r", model.SchedulerStatusRunning},
		{"t", model.SchedulerStatusRunning},
		{"qw", model.SchedulerStatusPending},
		{"hqw", model.SchedulerStatusPending},
		{"WAIT", model.SchedulerStatusPending},
		{"EXIT", model.SchedulerStatusFailed},
		{"ZOMBI", model.SchedulerStatusFailed},
		{"UNKWN", model.SchedulerStatusFailed},
		{"Eqw", model.SchedulerStatusFailed},
		{"dr", model.SchedulerStatusFailed},
		{"DONE", model.SchedulerStatusCompleted},
		{"s", model.SchedulerStatusError},
	}

	for _, tt := range tests {
		out := header + "  91 0.55500 align      beers        " + tt.state + "     01/01/2026 10:00:00 all.q@node1                        1\n"
		if got := parseSGEStatus(out, "91"); got != tt.want {
			t.Errorf("parseSGEStatus(%s) = %q, want %q", tt.state, got, tt.want)
		}
	}

	if got := parseSGEStatus("", "91"); got != model.SchedulerStatusError {
		t.Errorf("parseSGEStatus(empty) = %q, want ERROR", got)
	}
}

func TestParseSGEStatus_MatchesRequestedJobOnly(t *testing.T) {
	out := "job-ID  prior   name       user         state submit/start at     queue                          slots ja-task-ID\n" +
		"-----------------------------------------------------------------------------------------------------------------\n" +
		"  90 0.55500 sort       beers        r     01/01/2026 09:00:00 all.q@node1                        1\n" +
		"  91 0.55500 align      beers        DONE  01/01/2026 10:00:00 all.q@node1                        1\n"

	if got := parseSGEStatus(out, "91"); got != model.SchedulerStatusCompleted {
		t.Errorf("parseSGEStatus(job 91) = %q, want COMPLETED from its own row", got)
	}
	if got := parseSGEStatus(out, "90"); got != model.SchedulerStatusRunning {
		t.Errorf("parseSGEStatus(job 90) = %q, want RUNNING", got)
	}
	if got := parseSGEStatus(out, "92"); got != model.SchedulerStatusError {
		t.Errorf("parseSGEStatus(absent job) = %q, want ERROR", got)
	}
}

func TestSGEScheduler_StatusScopesQueryToJob(t *testing.T) {
	var captured string
	sched := NewSGEScheduler(DefaultResources(), testLogger())
	sched.run = func(_ context.Context, command string) (string, error) {
		captured = command
		return "", nil
	}

	sched.Status(context.Background(), "91")
	if captured != "qstat 91" {
		t.Errorf("status command = %q, want %q", captured, "qstat 91")
	}
}

func TestSGEScheduler_Submit(t *testing.T) {
	var captured string
	sched := NewSGEScheduler(DefaultResources(), testLogger())
	sched.run = func(_ context.Context, command string) (string, error) {
		captured = command
		return `Your job 91 ("align.1") has been submitted` + "\n", nil
	}

	systemID, err := sched.Submit(context.Background(), SubmitRequest{
		Command: "align --sample 1",
		Name:    "align.1",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if systemID != "91" {
		t.Errorf("systemID = %q, want %q", systemID, "91")
	}
	for _, want := range []string{`qsub -N "align.1"`, "-pe smp 1", "-l h_vmem=6000M", "-b y align --sample 1"} {
		if !strings.Contains(captured, want) {
			t.Errorf("qsub command missing %q: %s", want, captured)
		}
	}
}

func TestSGEScheduler_Kill(t *testing.T) {
	sched := NewSGEScheduler(DefaultResources(), testLogger())
	sched.run = func(_ context.Context, _ string) (string, error) {
		return "beers has registered the job 91 for deletion\n", nil
	}
	if !sched.Kill(context.Background(), "91") {
		t.Error("Kill = false, want true")
	}
}

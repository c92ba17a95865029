package scheduler

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/me/jobmon/pkg/model"
)

const serialTimeFormat = "Mon Jan 02 2006 15:04:05 MST"

// SerialScheduler runs jobs synchronously on the local machine, one at a
// time. A job executes entirely within Submit, so Status always reports
// COMPLETED and Kill always succeeds; final verification of a step's output
// is left to the step's validator.
type SerialScheduler struct {
	defaults Defaults
	seq      *idSequence
	logger   *slog.Logger
}

// NewSerialScheduler creates a serial backend. The default resources are
// accepted for interface compatibility and ignored at execution time.
func NewSerialScheduler(defaults Defaults, logger *slog.Logger) *SerialScheduler {
	return &SerialScheduler{
		defaults: defaults,
		seq:      &idSequence{},
		logger:   logger.With("component", "serial-scheduler"),
	}
}

// Type returns model.SchedulerTypeSerial.
func (s *SerialScheduler) Type() model.SchedulerType {
	return model.SchedulerTypeSerial
}

// Submit runs the command through /bin/sh and captures its output. The stdout
// log, when requested, is annotated with the submission ID, the literal
// command, start/end timestamps, and a success/failure banner; stderr is
// folded into it unless a separate stderr log was requested. The command
// should not contain shell output redirection, or the log files will simply
// end up empty.
func (s *SerialScheduler) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	systemID := strconv.Itoa(s.seq.Next())
	start := time.Now()

	if req.StdoutLog != "" {
		header := fmt.Sprintf("Job submission ID: %s\nJob command: %s\nJob start time: %s\n",
			systemID, req.Command, start.Format(serialTimeFormat))
		if err := os.WriteFile(req.StdoutLog, []byte(header), 0o644); err != nil {
			return "", fmt.Errorf("write stdout log %s: %w", req.StdoutLog, err)
		}
	}

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", req.Command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	end := time.Now()

	s.logger.Debug("job executed",
		"system_id", systemID,
		"command", req.Command,
		"duration", end.Sub(start),
		"failed", runErr != nil,
	)

	if req.StdoutLog != "" {
		if err := s.appendOutcome(req, runErr, stdout.String(), stderr.String(), end); err != nil {
			return "", err
		}
	}
	if req.StderrLog != "" {
		if err := os.WriteFile(req.StderrLog, stderr.Bytes(), 0o644); err != nil {
			return "", fmt.Errorf("write stderr log %s: %w", req.StderrLog, err)
		}
	}

	if runErr != nil {
		return "", fmt.Errorf("job %s (%s): %w", req.Name, systemID, runErr)
	}
	return systemID, nil
}

// appendOutcome writes the end timestamp, outcome banner, and captured output
// to the stdout log.
func (s *SerialScheduler) appendOutcome(req SubmitRequest, runErr error, stdout, stderr string, end time.Time) error {
	f, err := os.OpenFile(req.StdoutLog, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("append stdout log %s: %w", req.StdoutLog, err)
	}
	defer f.Close()

	fmt.Fprintf(f, "Job end time: %s\n", end.Format(serialTimeFormat))
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			fmt.Fprintf(f, "\nFAILURE - Exit code %d.\n", exitErr.ExitCode())
		} else {
			fmt.Fprintf(f, "\nFAILURE - %v.\n", runErr)
		}
	} else {
		fmt.Fprint(f, "\nSuccessfully completed.\n")
	}
	if req.StderrLog != "" {
		fmt.Fprintf(f, "\nFor stderr see %s\n", req.StderrLog)
	}
	fmt.Fprint(f, "Output (if any) follows:\n")
	fmt.Fprint(f, "\n------------STDOUT------------\n")
	fmt.Fprint(f, stdout)
	if req.StderrLog == "" {
		fmt.Fprint(f, "\n------------STDERR------------\n")
		fmt.Fprint(f, stderr)
	}
	return nil
}

// Status always reports COMPLETED: a serial job only ever runs inside Submit,
// so by the time anyone can ask, it has finished.
func (s *SerialScheduler) Status(_ context.Context, _ string) model.SchedulerStatus {
	return model.SchedulerStatusCompleted
}

// Kill always reports success; there is nothing left to kill once Submit has
// returned.
func (s *SerialScheduler) Kill(_ context.Context, _ string) bool {
	return true
}

// idSequence hands out submission IDs unique to one scheduler instance. The
// monitor is the single caller, so no synchronization is needed.
type idSequence struct {
	n int
}

// Next advances the sequence and returns the new value.
func (s *idSequence) Next() int {
	s.n++
	return s.n
}

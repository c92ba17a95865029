package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/me/jobmon/pkg/model"
)

func TestSerialScheduler_SubmitWritesAnnotatedLog(t *testing.T) {
	sched := NewSerialScheduler(DefaultResources(), testLogger())
	dir := t.TempDir()
	stdoutLog := filepath.Join(dir, "job.out")

	systemID, err := sched.Submit(context.Background(), SubmitRequest{
		Command:   "echo hello; echo oops >&2",
		Name:      "echo_job",
		StdoutLog: stdoutLog,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if systemID != "1" {
		t.Errorf("systemID = %q, want %q", systemID, "1")
	}

	data, err := os.ReadFile(stdoutLog)
	if err != nil {
		t.Fatalf("read stdout log: %v", err)
	}
	log := string(data)
	for _, want := range []string{
		"Job submission ID: 1",
		"Job command: echo hello; echo oops >&2",
		"Job start time:",
		"Job end time:",
		"Successfully completed.",
		"------------STDOUT------------",
		"hello",
		"------------STDERR------------",
		"oops",
	} {
		if !strings.Contains(log, want) {
			t.Errorf("stdout log missing %q:\n%s", want, log)
		}
	}
}

func TestSerialScheduler_SeparateStderrLog(t *testing.T) {
	sched := NewSerialScheduler(DefaultResources(), testLogger())
	dir := t.TempDir()
	stdoutLog := filepath.Join(dir, "job.out")
	stderrLog := filepath.Join(dir, "job.err")

	_, err := sched.Submit(context.Background(), SubmitRequest{
		Command:   "echo oops >&2",
		Name:      "stderr_job",
		StdoutLog: stdoutLog,
		StderrLog: stderrLog,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	outData, _ := os.ReadFile(stdoutLog)
	if strings.Contains(string(outData), "------------STDERR------------") {
		t.Error("stdout log contains stderr section despite separate stderr log")
	}
	if !strings.Contains(string(outData), "For stderr see "+stderrLog) {
		t.Error("stdout log missing pointer to stderr log")
	}

	errData, err := os.ReadFile(stderrLog)
	if err != nil {
		t.Fatalf("read stderr log: %v", err)
	}
	if got := strings.TrimSpace(string(errData)); got != "oops" {
		t.Errorf("stderr log = %q, want %q", got, "oops")
	}
}

func TestSerialScheduler_SubmitFailure(t *testing.T) {
	sched := NewSerialScheduler(DefaultResources(), testLogger())
	dir := t.TempDir()
	stdoutLog := filepath.Join(dir, "job.out")

	_, err := sched.Submit(context.Background(), SubmitRequest{
		Command:   "exit 3",
		Name:      "failing_job",
		StdoutLog: stdoutLog,
	})
	if err == nil {
		t.Fatal("Submit of failing command succeeded, want error")
	}

	data, _ := os.ReadFile(stdoutLog)
	if !strings.Contains(string(data), "FAILURE - Exit code 3.") {
		t.Errorf("stdout log missing failure banner:\n%s", data)
	}
}

func TestSerialScheduler_SequentialIDs(t *testing.T) {
	sched := NewSerialScheduler(DefaultResources(), testLogger())
	ctx := context.Background()

	for _, want := range []string{"1", "2", "3"} {
		id, err := sched.Submit(ctx, SubmitRequest{Command: "true", Name: "noop"})
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		if id != want {
			t.Errorf("systemID = %q, want %q", id, want)
		}
	}
}

func TestSerialScheduler_StatusAndKill(t *testing.T) {
	sched := NewSerialScheduler(DefaultResources(), testLogger())
	ctx := context.Background()

	if got := sched.Status(ctx, "1"); got != model.SchedulerStatusCompleted {
		t.Errorf("Status() = %q, want %q", got, model.SchedulerStatusCompleted)
	}
	if !sched.Kill(ctx, "1") {
		t.Error("Kill() = false, want true")
	}
}

package scheduler

import (
	"context"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	"github.com/me/jobmon/pkg/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegistry_Supported(t *testing.T) {
	reg := DefaultRegistry(testLogger())
	want := []string{"batch", "lsf", "serial", "sge"}
	if got := reg.Supported(); !reflect.DeepEqual(got, want) {
		t.Errorf("Supported() = %v, want %v", got, want)
	}
}

func TestRegistry_CreateSerial(t *testing.T) {
	reg := DefaultRegistry(testLogger())
	cfg := Config{Defaults: DefaultResources(), Logger: testLogger()}

	sched, err := reg.Create(context.Background(), model.SchedulerTypeSerial, cfg)
	if err != nil {
		t.Fatalf("Create(serial): %v", err)
	}
	if sched.Type() != model.SchedulerTypeSerial {
		t.Errorf("Type() = %q, want %q", sched.Type(), model.SchedulerTypeSerial)
	}
}

func TestRegistry_CreateUnknownListsSupported(t *testing.T) {
	reg := DefaultRegistry(testLogger())
	cfg := Config{Defaults: DefaultResources(), Logger: testLogger()}

	_, err := reg.Create(context.Background(), model.SchedulerType("slurm"), cfg)
	if err == nil {
		t.Fatal("Create(slurm) succeeded, want error")
	}

	monErr, ok := err.(*model.MonitorError)
	if !ok {
		t.Fatalf("error type = %T, want *model.MonitorError", err)
	}
	if monErr.Code != model.ErrUnsupportedScheduler {
		t.Errorf("Code = %q, want %q", monErr.Code, model.ErrUnsupportedScheduler)
	}
	for _, name := range []string{"batch", "lsf", "serial", "sge"} {
		if !strings.Contains(monErr.Message, name) {
			t.Errorf("error message does not enumerate %q: %s", name, monErr.Message)
		}
	}
}

func TestRegistry_CreateBatchWithoutQueue(t *testing.T) {
	reg := DefaultRegistry(testLogger())
	cfg := Config{Defaults: DefaultResources(), Logger: testLogger()}

	if _, err := reg.Create(context.Background(), model.SchedulerTypeBatch, cfg); err == nil {
		t.Error("Create(batch) without queue config succeeded, want error")
	}
}

package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()

	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)

	err := root.Execute()
	return buf.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSchedulersCommand(t *testing.T) {
	output, err := runCLI(t, "schedulers")
	if err != nil {
		t.Fatalf("schedulers error: %v", err)
	}
	for _, name := range []string{"serial", "batch", "lsf", "sge"} {
		if !strings.Contains(output, name) {
			t.Errorf("expected %q in output, got: %s", name, output)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	output, err := runCLI(t, "version")
	if err != nil {
		t.Fatalf("version error: %v", err)
	}
	if !strings.Contains(output, "jobmon") {
		t.Errorf("expected 'jobmon' in output, got: %s", output)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "manifest.yaml", `
run_id: run42
samples:
  - id: "1"
    name: sample1
    fastq_files: [sample1_1.fastq, sample1_2.fastq]
    gender: female
jobs:
  - id: align.1
    step: align
    command: "align --sample 1"
    sample: "1"
    scheduler_arguments:
      memory_mb: "32000"
  - id: sort.1
    step: sort
    command: "sort --sample 1"
    sample: "1"
    dependencies: [align.1]
    validation_attributes:
      output_files: [/data/sorted.bam]
`)

	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if m.RunID != "run42" {
		t.Errorf("RunID = %q, want run42", m.RunID)
	}
	if len(m.Jobs) != 2 || len(m.Samples) != 1 {
		t.Fatalf("manifest = %d jobs, %d samples; want 2, 1", len(m.Jobs), len(m.Samples))
	}
	if got := m.Jobs[1].Dependencies; len(got) != 1 || got[0] != "align.1" {
		t.Errorf("sort.1 dependencies = %v", got)
	}
	if m.Jobs[0].SchedulerArguments["memory_mb"] != "32000" {
		t.Errorf("scheduler_arguments = %v", m.Jobs[0].SchedulerArguments)
	}
}

func TestLoadManifest_Invalid(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{"no jobs", "samples: []\n"},
		{"missing command", "jobs:\n  - id: j1\n    step: align\n"},
		{"duplicate id", "jobs:\n  - {id: j1, step: align, command: a}\n  - {id: j1, step: align, command: b}\n"},
		{"unknown dependency", "jobs:\n  - {id: j1, step: align, command: a, dependencies: [ghost]}\n"},
		{"unknown sample", "jobs:\n  - {id: j1, step: align, command: a, sample: \"9\"}\n"},
	}
	for _, tt := range tests {
		path := writeFile(t, dir, strings.ReplaceAll(tt.name, " ", "_")+".yaml", tt.content)
		if _, err := LoadManifest(path); err == nil {
			t.Errorf("%s: LoadManifest succeeded, want error", tt.name)
		}
	}
}

func TestRunCommand_SerialEndToEnd(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "output")
	marker := filepath.Join(dir, "upstream.done")

	manifest := writeFile(t, dir, "manifest.yaml", `
run_id: e2e
jobs:
  - id: upstream
    step: touch
    command: "echo done > `+marker+`"
    validation_attributes:
      output_files: [`+marker+`]
  - id: downstream
    step: check
    command: "test -s `+marker+`"
    dependencies: [upstream]
`)
	cfg := writeFile(t, dir, "config.yaml", `
scheduler: serial
output_dir: `+outDir+`
poll_interval: 10ms
`)

	output, err := runCLI(t, "--config", cfg, "run", manifest)
	if err != nil {
		t.Fatalf("run error: %v\noutput: %s", err, output)
	}
	if _, err := os.Stat(marker); err != nil {
		t.Errorf("upstream output missing: %v", err)
	}
	entries, err := os.ReadDir(filepath.Join(outDir, "logs"))
	if err != nil || len(entries) == 0 {
		t.Errorf("run log not written under %s/logs: %v", outDir, err)
	}
}

func TestRunCommand_MissingManifest(t *testing.T) {
	if _, err := runCLI(t, "run", "nonexistent.yaml"); err == nil {
		t.Fatal("expected error for missing manifest")
	}
}

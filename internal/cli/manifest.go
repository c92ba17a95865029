package cli

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/me/jobmon/internal/monitor"
	"github.com/me/jobmon/pkg/model"
)

// Manifest is the YAML description of one run: the samples involved and the
// jobs to execute, with their dependency edges.
type Manifest struct {
	RunID   string        `yaml:"run_id"`
	Samples []SampleEntry `yaml:"samples"`
	Jobs    []JobEntry    `yaml:"jobs"`
}

// SampleEntry describes one sample in the manifest.
type SampleEntry struct {
	ID         string   `yaml:"id"`
	Name       string   `yaml:"name"`
	FastqFiles []string `yaml:"fastq_files"`
	BamFile    string   `yaml:"bam_file"`
	Gender     string   `yaml:"gender"`
	Adapters   []string `yaml:"adapters"`
}

// JobEntry describes one job in the manifest.
type JobEntry struct {
	ID                   string            `yaml:"id"`
	Step                 string            `yaml:"step"`
	Command              string            `yaml:"command"`
	Sample               string            `yaml:"sample"`
	OutputDir            string            `yaml:"output_dir"`
	Dependencies         []string          `yaml:"dependencies"`
	SchedulerArguments   map[string]string `yaml:"scheduler_arguments"`
	ValidationAttributes map[string]any    `yaml:"validation_attributes"`
}

// LoadManifest reads and validates a run manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	if len(m.Jobs) == 0 {
		return fmt.Errorf("manifest declares no jobs")
	}
	ids := make(map[string]struct{}, len(m.Jobs))
	for _, job := range m.Jobs {
		if job.ID == "" || job.Step == "" || job.Command == "" {
			return fmt.Errorf("job %q needs id, step, and command", job.ID)
		}
		if _, dup := ids[job.ID]; dup {
			return fmt.Errorf("duplicate job id %q in manifest", job.ID)
		}
		ids[job.ID] = struct{}{}
	}
	samples := make(map[string]struct{}, len(m.Samples))
	for _, s := range m.Samples {
		samples[s.ID] = struct{}{}
	}
	for _, job := range m.Jobs {
		for _, dep := range job.Dependencies {
			if _, ok := ids[dep]; !ok {
				return fmt.Errorf("job %q depends on unknown job %q", job.ID, dep)
			}
		}
		if job.Sample != "" {
			if _, ok := samples[job.Sample]; !ok {
				return fmt.Errorf("job %q references unknown sample %q", job.ID, job.Sample)
			}
		}
	}
	return nil
}

// sample builds the model.Sample for a sample entry.
func (e SampleEntry) sample() *model.Sample {
	return &model.Sample{
		ID:               e.ID,
		Name:             e.Name,
		FastqFilePaths:   e.FastqFiles,
		BamFilePath:      e.BamFile,
		Gender:           e.Gender,
		AdapterSequences: e.Adapters,
	}
}

// submit registers the manifest's steps and feeds its jobs to the monitor.
// Jobs with unmet dependencies go in as pending; the monitor's control loop
// promotes them as upstream jobs complete.
func (m *Manifest) submit(mon *monitor.Monitor, defaultOutputDir string) error {
	samples := make(map[string]*model.Sample, len(m.Samples))
	for _, entry := range m.Samples {
		samples[entry.ID] = entry.sample()
	}

	for _, job := range m.Jobs {
		if _, ok := mon.Step(job.Step); !ok {
			if err := mon.RegisterStep(job.Step, &monitor.FileOutputStep{Name: job.Step, Logger: logger}); err != nil {
				return err
			}
		}
	}

	for _, job := range m.Jobs {
		outputDir := job.OutputDir
		if outputDir == "" {
			outputDir = defaultOutputDir
		}
		req := monitor.JobRequest{
			JobID:                job.ID,
			Command:              job.Command,
			Sample:               samples[job.Sample],
			StepName:             job.Step,
			SchedulerArguments:   job.SchedulerArguments,
			ValidationAttributes: job.ValidationAttributes,
			OutputDir:            outputDir,
			Dependencies:         job.Dependencies,
		}
		if err := mon.SubmitNewJob(req); err != nil {
			return err
		}
	}
	return nil
}

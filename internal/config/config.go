// Package config loads the job monitor's run configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/me/jobmon/internal/scheduler"
	"github.com/me/jobmon/pkg/model"
)

// Environment variables that override the AWS Batch settings. They match the
// names the worker containers are launched with, so one deployment manifest
// can configure both sides.
const (
	EnvBatchQueue         = "JOB_QUEUE_ARN"
	EnvBatchJobDefinition = "WORKER_JOB_DEFINITION_NAME"
)

// Config holds a full run configuration.
type Config struct {
	// OutputDir is the root directory for job output, logs, and data.
	OutputDir string `yaml:"output_dir"`
	// Scheduler selects the backend: serial, batch, lsf, or sge.
	Scheduler model.SchedulerType `yaml:"scheduler"`
	// MaxResubmissions bounds retries per job before the run halts.
	MaxResubmissions int `yaml:"max_resubmissions"`

	DefaultProcessors int `yaml:"default_processors"`
	DefaultMemoryMB   int `yaml:"default_memory_mb"`

	// PollInterval is the sleep between monitor polling cycles.
	PollInterval time.Duration `yaml:"poll_interval"`

	LogLevel  string `yaml:"log_level"`  // debug, info, warn, error
	LogFormat string `yaml:"log_format"` // text, json

	// HTTPAddr, when non-empty, enables the read-only status API.
	HTTPAddr string `yaml:"http_addr"`

	Batch scheduler.BatchConfig `yaml:"batch"`
}

// Default returns sensible defaults: serial execution in ./output with the
// standard resource request.
func Default() Config {
	defaults := scheduler.DefaultResources()
	return Config{
		OutputDir:         "output",
		Scheduler:         model.SchedulerTypeSerial,
		MaxResubmissions:  3,
		DefaultProcessors: defaults.Processors,
		DefaultMemoryMB:   defaults.MemoryMB,
		PollInterval:      10 * time.Second,
		LogLevel:          "info",
		LogFormat:         "text",
	}
}

// Load reads a YAML config file over the defaults, then applies environment
// overrides. An empty path yields defaults plus environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvBatchQueue); v != "" {
		c.Batch.Queue = v
	}
	if v := os.Getenv(EnvBatchJobDefinition); v != "" {
		c.Batch.JobDefinition = v
	}
}

func (c *Config) validate() error {
	switch c.Scheduler {
	case model.SchedulerTypeSerial, model.SchedulerTypeBatch, model.SchedulerTypeLSF, model.SchedulerTypeSGE:
	default:
		return model.NewMonitorError(model.ErrUnsupportedScheduler,
			"unknown scheduler %q in config", c.Scheduler)
	}
	if c.MaxResubmissions < 0 {
		return fmt.Errorf("max_resubmissions must not be negative, got %d", c.MaxResubmissions)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval)
	}
	return nil
}

// Defaults returns the resource request derived from the config.
func (c *Config) Defaults() scheduler.Defaults {
	return scheduler.Defaults{Processors: c.DefaultProcessors, MemoryMB: c.DefaultMemoryMB}
}

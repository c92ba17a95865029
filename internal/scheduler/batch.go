package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/batch"
	"github.com/aws/aws-sdk-go-v2/service/batch/types"

	"github.com/me/jobmon/pkg/model"
)

// Environment variables the remote worker container reads to place its logs.
const (
	batchStdoutLogEnv = "STDOUT_LOG"
	batchStderrLogEnv = "STDERR_LOG"
)

// BatchConfig identifies where batch jobs are sent.
type BatchConfig struct {
	// Queue is the AWS Batch job queue name or ARN.
	Queue string `yaml:"queue"`
	// JobDefinition is the worker job definition name that wraps pipeline
	// commands on the remote side.
	JobDefinition string `yaml:"job_definition"`
}

// BatchAPI is the subset of the AWS Batch client used by BatchScheduler.
type BatchAPI interface {
	SubmitJob(ctx context.Context, params *batch.SubmitJobInput, optFns ...func(*batch.Options)) (*batch.SubmitJobOutput, error)
	DescribeJobs(ctx context.Context, params *batch.DescribeJobsInput, optFns ...func(*batch.Options)) (*batch.DescribeJobsOutput, error)
	TerminateJob(ctx context.Context, params *batch.TerminateJobInput, optFns ...func(*batch.Options)) (*batch.TerminateJobOutput, error)
}

// BatchScheduler submits, monitors, and terminates jobs on AWS Batch. Submit
// is asynchronous; the monitor polls Status until the job reaches a terminal
// state.
type BatchScheduler struct {
	api      BatchAPI
	cfg      BatchConfig
	defaults Defaults
	logger   *slog.Logger
}

// NewBatchScheduler creates a Batch backend on top of an existing client.
func NewBatchScheduler(api BatchAPI, cfg BatchConfig, defaults Defaults, logger *slog.Logger) *BatchScheduler {
	return &BatchScheduler{
		api:      api,
		cfg:      cfg,
		defaults: defaults,
		logger:   logger.With("component", "batch-scheduler"),
	}
}

// NewBatchSchedulerFromConfig builds the AWS client from the default
// credential chain and wraps it in a BatchScheduler.
func NewBatchSchedulerFromConfig(ctx context.Context, cfg BatchConfig, defaults Defaults, logger *slog.Logger) (*BatchScheduler, error) {
	if cfg.Queue == "" || cfg.JobDefinition == "" {
		return nil, fmt.Errorf("batch scheduler requires a job queue and a worker job definition")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewBatchScheduler(batch.NewFromConfig(awsCfg), cfg, defaults, logger), nil
}

// Type returns model.SchedulerTypeBatch.
func (s *BatchScheduler) Type() model.SchedulerType {
	return model.SchedulerTypeBatch
}

// Submit sends the job to the configured queue. The container override passes
// the command through the worker job definition, the log paths through the
// environment, and the resource request as MEMORY/VCPU requirements.
func (s *BatchScheduler) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	req = s.defaults.apply(req)

	out, err := s.api.SubmitJob(ctx, &batch.SubmitJobInput{
		JobName:       aws.String(req.Name),
		JobQueue:      aws.String(s.cfg.Queue),
		JobDefinition: aws.String(s.cfg.JobDefinition),
		ContainerOverrides: &types.ContainerOverrides{
			Command: []string{"/bin/sh", "-c", req.Command},
			Environment: []types.KeyValuePair{
				{Name: aws.String(batchStdoutLogEnv), Value: aws.String(req.StdoutLog)},
				{Name: aws.String(batchStderrLogEnv), Value: aws.String(req.StderrLog)},
			},
			ResourceRequirements: []types.ResourceRequirement{
				{Type: types.ResourceTypeMemory, Value: aws.String(strconv.Itoa(req.MemoryMB))},
				{Type: types.ResourceTypeVcpu, Value: aws.String(strconv.Itoa(req.Processors))},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("batch submit %s: %w", req.Name, err)
	}

	systemID := aws.ToString(out.JobId)
	s.logger.Info("job submitted",
		"job_name", req.Name,
		"system_id", systemID,
		"queue", s.cfg.Queue,
	)
	return systemID, nil
}

// Status maps the Batch job status onto the scheduler status vocabulary.
// Describe failures and handles Batch cannot account for collapse to ERROR.
func (s *BatchScheduler) Status(ctx context.Context, systemID string) model.SchedulerStatus {
	out, err := s.api.DescribeJobs(ctx, &batch.DescribeJobsInput{Jobs: []string{systemID}})
	if err != nil {
		s.logger.Warn("describe jobs failed", "system_id", systemID, "error", err)
		return model.SchedulerStatusError
	}
	if len(out.Jobs) == 0 {
		s.logger.Warn("job unknown to batch", "system_id", systemID)
		return model.SchedulerStatusError
	}

	switch out.Jobs[0].Status {
	case types.JobStatusSubmitted, types.JobStatusPending, types.JobStatusRunnable, types.JobStatusStarting:
		return model.SchedulerStatusPending
	case types.JobStatusRunning:
		return model.SchedulerStatusRunning
	case types.JobStatusSucceeded:
		return model.SchedulerStatusCompleted
	case types.JobStatusFailed:
		return model.SchedulerStatusFailed
	default:
		return model.SchedulerStatusError
	}
}

// Kill requests termination of the job and reports whether the request was
// accepted.
func (s *BatchScheduler) Kill(ctx context.Context, systemID string) bool {
	_, err := s.api.TerminateJob(ctx, &batch.TerminateJobInput{
		JobId:  aws.String(systemID),
		Reason: aws.String("terminated by job monitor"),
	})
	if err != nil {
		s.logger.Warn("terminate job failed", "system_id", systemID, "error", err)
		return false
	}
	return true
}

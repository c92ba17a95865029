package cli

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/me/jobmon/internal/config"
	"github.com/me/jobmon/internal/logging"
	"github.com/me/jobmon/internal/monitor"
	"github.com/me/jobmon/internal/scheduler"
	"github.com/me/jobmon/internal/server"
	"github.com/me/jobmon/pkg/model"
)

func newRunCmd() *cobra.Command {
	var flagScheduler string
	var flagOutputDir string
	var flagHTTPAddr string

	cmd := &cobra.Command{
		Use:   "run <manifest>",
		Short: "Run the jobs in a manifest to completion",
		Long: `Loads a YAML run manifest, submits its jobs to the configured scheduler
backend in dependency order, and polls until every job has completed or a
fatal error halts the run. Failed jobs are resubmitted up to the configured
limit.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flagConfig)
			if err != nil {
				return err
			}
			if flagScheduler != "" {
				cfg.Scheduler = model.SchedulerType(flagScheduler)
			}
			if flagOutputDir != "" {
				cfg.OutputDir = flagOutputDir
			}
			if flagHTTPAddr != "" {
				cfg.HTTPAddr = flagHTTPAddr
			}

			manifest, err := LoadManifest(args[0])
			if err != nil {
				return err
			}
			return runManifest(cmd, cfg, manifest)
		},
	}

	cmd.Flags().StringVar(&flagScheduler, "scheduler", "", "Scheduler backend (serial, batch, lsf, sge); overrides config")
	cmd.Flags().StringVar(&flagOutputDir, "output-dir", "", "Root output directory; overrides config")
	cmd.Flags().StringVar(&flagHTTPAddr, "http-addr", "", "Serve the status API on this address while running")

	return cmd
}

func runManifest(cmd *cobra.Command, cfg config.Config, manifest *Manifest) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := manifest.RunID
	if runID == "" {
		runID = uuid.New().String()[:8]
	}

	// From here on the logger also writes to the run log, so a halted run can
	// be diagnosed from the output directory alone.
	runLogger, closer, err := logging.NewRunLogger(
		logging.ParseLevel(cfg.LogLevel), cfg.LogFormat,
		filepath.Join(cfg.OutputDir, model.LogDirectoryName), runID)
	if err != nil {
		return err
	}
	defer closer.Close()
	runLogger = runLogger.With("run_id", runID)

	sched, err := scheduler.DefaultRegistry(runLogger).Create(ctx, cfg.Scheduler, scheduler.Config{
		Defaults: cfg.Defaults(),
		Batch:    cfg.Batch,
		Logger:   runLogger,
	})
	if err != nil {
		return err
	}

	mon := monitor.New(cfg.OutputDir, sched,
		monitor.WithMaxResubmissions(cfg.MaxResubmissions),
		monitor.WithDefaults(cfg.Defaults()),
		monitor.WithLogger(runLogger),
	)
	if err := manifest.submit(mon, cfg.OutputDir); err != nil {
		return err
	}

	if cfg.HTTPAddr != "" {
		srv := &http.Server{
			Addr:    cfg.HTTPAddr,
			Handler: server.New(mon, cfg.Scheduler, runLogger),
		}
		go func() {
			runLogger.Info("status API listening", "addr", cfg.HTTPAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				runLogger.Error("status API stopped", "error", err)
			}
		}()
		defer srv.Close()
	}

	runLogger.Info("run starting",
		"scheduler", cfg.Scheduler,
		"jobs", len(manifest.Jobs),
		"samples", len(manifest.Samples),
		"max_resubmissions", cfg.MaxResubmissions,
	)

	if err := mon.RunUntilComplete(ctx, cfg.PollInterval); err != nil {
		var monErr *model.MonitorError
		if errors.As(err, &monErr) && monErr.Queues != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "queue state at failure:\n%s\n", monErr.Queues)
		}
		return err
	}
	return nil
}

func newSchedulersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedulers",
		Short: "List the supported scheduler backends",
		Run: func(cmd *cobra.Command, args []string) {
			names := scheduler.DefaultRegistry(logger).Supported()
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(names, "\n"))
		},
	}
}

package scheduler

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/me/jobmon/pkg/model"
)

// Config carries everything a scheduler factory may need to build a backend.
type Config struct {
	Defaults Defaults
	Batch    BatchConfig
	Logger   *slog.Logger
}

// Factory constructs a JobScheduler from a Config.
type Factory func(ctx context.Context, cfg Config) (JobScheduler, error)

// Registry maps scheduler names to their backend constructors. Registration
// happens at startup before concurrent access, so no mutex is needed.
type Registry struct {
	factories map[model.SchedulerType]Factory
	logger    *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		factories: make(map[model.SchedulerType]Factory),
		logger:    logger.With("component", "scheduler-registry"),
	}
}

// Register adds a backend constructor under the given name.
func (r *Registry) Register(t model.SchedulerType, f Factory) {
	r.factories[t] = f
	r.logger.Debug("scheduler registered", "type", t)
}

// Supported returns the sorted list of registered scheduler names.
func (r *Registry) Supported() []string {
	names := make([]string, 0, len(r.factories))
	for t := range r.factories {
		names = append(names, string(t))
	}
	sort.Strings(names)
	return names
}

// Create builds the backend registered under the given name. An unknown name
// is a configuration-time fatal error enumerating the supported names.
func (r *Registry) Create(ctx context.Context, t model.SchedulerType, cfg Config) (JobScheduler, error) {
	f, ok := r.factories[t]
	if !ok {
		return nil, model.NewMonitorError(model.ErrUnsupportedScheduler,
			"%q is not a supported scheduler; should be one of: %s",
			t, strings.Join(r.Supported(), ", "))
	}
	return f(ctx, cfg)
}

// DefaultRegistry returns a Registry with all built-in backends registered.
func DefaultRegistry(logger *slog.Logger) *Registry {
	r := NewRegistry(logger)
	r.Register(model.SchedulerTypeSerial, func(_ context.Context, cfg Config) (JobScheduler, error) {
		return NewSerialScheduler(cfg.Defaults, cfg.Logger), nil
	})
	r.Register(model.SchedulerTypeBatch, func(ctx context.Context, cfg Config) (JobScheduler, error) {
		return NewBatchSchedulerFromConfig(ctx, cfg.Batch, cfg.Defaults, cfg.Logger)
	})
	r.Register(model.SchedulerTypeLSF, func(_ context.Context, cfg Config) (JobScheduler, error) {
		return NewLSFScheduler(cfg.Defaults, cfg.Logger), nil
	})
	r.Register(model.SchedulerTypeSGE, func(_ context.Context, cfg Config) (JobScheduler, error) {
		return NewSGEScheduler(cfg.Defaults, cfg.Logger), nil
	})
	return r
}

package taskrunner

import (
	"log/slog"

	"github.com/ygrebnov/errorc"

	"github.com/ygrebnov/taskrunner/metrics"
)

// config holds Runner configuration.
type config struct {
	// Concurrency is the maximum number of tasks executing at the same time.
	// Default: 1.
	Concurrency uint

	// Logger receives lifecycle records. Default: a logger discarding everything.
	Logger *slog.Logger

	// Metrics provides instruments for task counters and durations.
	// Default: metrics.Noop.
	Metrics metrics.Provider

	// Name identifies the runner in log records and instrument attributes.
	// Default: "runner".
	Name string

	// StopOnError installs an error callback aborting the run on the first failure.
	// A callback set later with SetErrorCallback replaces it.
	// Default: false.
	StopOnError bool
}

// defaultConfig centralizes default values for config.
func defaultConfig() config {
	return config{
		Concurrency: 1,
		Logger:      slog.New(slog.DiscardHandler),
		Metrics:     metrics.Noop{},
		Name:        "runner",
	}
}

// validateConfig checks constraints the options cannot enforce on their own.
func validateConfig(cfg *config) error {
	switch {
	case cfg.Concurrency == 0:
		return errorc.With(ErrInvalidConfig, errorc.String("", "concurrency must be > 0"))
	case cfg.Logger == nil:
		return errorc.With(ErrInvalidConfig, errorc.String("", "logger must not be nil"))
	case cfg.Metrics == nil:
		return errorc.With(ErrInvalidConfig, errorc.String("", "metrics provider must not be nil"))
	}
	return nil
}

// Option configures a Runner. Options return an error on invalid input.
type Option func(*config) error

// WithConcurrency sets the concurrency ceiling (must be > 0).
func WithConcurrency(n uint) Option {
	return func(cfg *config) error {
		if n == 0 {
			return errorc.With(ErrInvalidConfig, errorc.String("", "WithConcurrency requires n > 0"))
		}
		cfg.Concurrency = n
		return nil
	}
}

// WithLogger sets the structured logger used for lifecycle records.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *config) error {
		if l == nil {
			return errorc.With(ErrInvalidConfig, errorc.String("", "WithLogger requires a non-nil logger"))
		}
		cfg.Logger = l
		return nil
	}
}

// WithMetrics sets the metrics provider.
func WithMetrics(p metrics.Provider) Option {
	return func(cfg *config) error {
		if p == nil {
			return errorc.With(ErrInvalidConfig, errorc.String("", "WithMetrics requires a non-nil provider"))
		}
		cfg.Metrics = p
		return nil
	}
}

// WithName names the runner in logs and metric attributes.
func WithName(name string) Option {
	return func(cfg *config) error {
		if name == "" {
			return errorc.With(ErrInvalidConfig, errorc.String("", "WithName requires a non-empty name"))
		}
		cfg.Name = name
		return nil
	}
}

// WithStopOnError aborts the run on the first task failure.
func WithStopOnError() Option {
	return func(cfg *config) error {
		cfg.StopOnError = true
		return nil
	}
}

// Package pipeline discovers working copies, collects them concurrently and
// aggregates the results of one run.
package pipeline

import (
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/repopulse/internal/config"
	"github.com/Sumatoshi-tech/repopulse/internal/observability"
	"github.com/Sumatoshi-tech/repopulse/pkg/aggregate"
	"github.com/Sumatoshi-tech/repopulse/pkg/timewindow"
)

// Env is everything a run shares. It is built once by the caller and passed
// down explicitly.
type Env struct {
	Logger  *slog.Logger
	Config  *config.Config
	Windows timewindow.Set
	Now     time.Time
	Tracer  trace.Tracer
	// Metrics may be nil.
	Metrics *observability.RunMetrics
}

func (e Env) withDefaults() Env {
	if e.Logger == nil {
		e.Logger = slog.New(slog.DiscardHandler)
	}

	if e.Tracer == nil {
		e.Tracer = noop.NewTracerProvider().Tracer("repopulse")
	}

	if e.Now.IsZero() {
		e.Now = e.Windows.Now()
	}

	return e
}

// ComputeWindows anchors the configured windows at now. A bad window
// definition is a configuration error.
func ComputeWindows(cfg *config.Config, now time.Time) (timewindow.Set, error) {
	windows, err := timewindow.Compute(cfg.TimeWindows, now)
	if err != nil {
		return timewindow.Set{}, fmt.Errorf("%w: %w", config.ErrConfig, err)
	}

	return windows, nil
}

// AggregateOptions maps the configuration onto engine options.
func (e Env) AggregateOptions() aggregate.Options {
	cfg := e.Config

	return aggregate.Options{
		PrimaryWindow: cfg.PrimaryWindow,
		TopN:          cfg.Output.TopNRepos,
		BottomN:       cfg.Output.BottomNRepos,
		AgeBuckets: aggregate.AgeBuckets{
			VeryOldYears: cfg.AgeBuckets.VeryOldYears,
			OldYears:     cfg.AgeBuckets.OldYears,
		},
		PlaceholderEmail: cfg.DataQuality.UnknownEmailPlaceholder,
	}
}

package observability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricReposTotal        = "repopulse.repositories.total"
	metricRepoErrorsTotal   = "repopulse.repository.errors.total"
	metricCommitsTotal      = "repopulse.commits.parsed.total"
	metricCollectDuration   = "repopulse.repository.collect.duration.seconds"
	metricCacheLookupsTotal = "repopulse.cache.lookups.total"
	metricAPICallsTotal     = "repopulse.api.calls.total"

	attrResult = "result"
	attrAPI    = "api"

	resultHit     = "hit"
	resultMiss    = "miss"
	resultOK      = "ok"
	resultFailure = "error"
)

// collectBucketBoundaries covers 10ms to 10min per repository.
var collectBucketBoundaries = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600}

// RunMetrics holds the OTel instruments recorded during a report run.
type RunMetrics struct {
	reposTotal      metric.Int64Counter
	repoErrorsTotal metric.Int64Counter
	commitsTotal    metric.Int64Counter
	collectDuration metric.Float64Histogram
	cacheLookups    metric.Int64Counter
	apiCalls        metric.Int64Counter
}

// NewRunMetrics creates run metric instruments from the given meter.
func NewRunMetrics(mt metric.Meter) (*RunMetrics, error) {
	b := newInstruments(mt)

	rm := &RunMetrics{
		reposTotal:      b.counter(metricReposTotal, "Repositories collected", "{repository}"),
		repoErrorsTotal: b.counter(metricRepoErrorsTotal, "Repositories that recorded collection errors", "{repository}"),
		commitsTotal:    b.counter(metricCommitsTotal, "Commits parsed from git logs", "{commit}"),
		collectDuration: b.histogram(metricCollectDuration, "Per-repository collection duration in seconds", "s",
			collectBucketBoundaries...),
		cacheLookups: b.counter(metricCacheLookupsTotal, "Repository cache lookups by result", "{lookup}"),
		apiCalls:     b.counter(metricAPICallsTotal, "Remote API calls by api and result", "{call}"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return rm, nil
}

// instruments creates OTel instruments and collects every creation error,
// so a set of instruments is built with a single check at the end.
type instruments struct {
	meter metric.Meter
	err   error
}

func newInstruments(mt metric.Meter) *instruments {
	return &instruments{meter: mt}
}

func (b *instruments) counter(name, desc, unit string) metric.Int64Counter {
	c, err := b.meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	b.fail(name, err)

	return c
}

func (b *instruments) histogram(name, desc, unit string, bounds ...float64) metric.Float64Histogram {
	h, err := b.meter.Float64Histogram(name,
		metric.WithDescription(desc),
		metric.WithUnit(unit),
		metric.WithExplicitBucketBoundaries(bounds...))
	b.fail(name, err)

	return h
}

func (b *instruments) fail(name string, err error) {
	if err != nil {
		b.err = errors.Join(b.err, fmt.Errorf("create instrument %s: %w", name, err))
	}
}

// RecordRepository records one collected repository.
// Safe to call on a nil receiver (no-op).
func (rm *RunMetrics) RecordRepository(ctx context.Context, commits int, failed bool, took time.Duration) {
	if rm == nil {
		return
	}

	rm.reposTotal.Add(ctx, 1)
	rm.commitsTotal.Add(ctx, int64(commits))
	rm.collectDuration.Record(ctx, took.Seconds())

	if failed {
		rm.repoErrorsTotal.Add(ctx, 1)
	}
}

// RecordCacheLookup records a cache hit or miss.
// Safe to call on a nil receiver (no-op).
func (rm *RunMetrics) RecordCacheLookup(ctx context.Context, hit bool) {
	if rm == nil {
		return
	}

	result := resultMiss
	if hit {
		result = resultHit
	}

	rm.cacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordAPICall records one remote API call.
// Safe to call on a nil receiver (no-op).
func (rm *RunMetrics) RecordAPICall(ctx context.Context, api string, failed bool) {
	if rm == nil {
		return
	}

	result := resultOK
	if failed {
		result = resultFailure
	}

	rm.apiCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrAPI, api),
		attribute.String(attrResult, result),
	))
}

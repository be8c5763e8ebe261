package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/repopulse/internal/observability"
	"github.com/Sumatoshi-tech/repopulse/pkg/aggregate"
	"github.com/Sumatoshi-tech/repopulse/pkg/cache"
	"github.com/Sumatoshi-tech/repopulse/pkg/collector"
	"github.com/Sumatoshi-tech/repopulse/pkg/enrich"
	"github.com/Sumatoshi-tech/repopulse/pkg/features"
	"github.com/Sumatoshi-tech/repopulse/pkg/gitlog"
	"github.com/Sumatoshi-tech/repopulse/pkg/identity"
)

// ErrWorkerPanic is recorded against a repository whose worker panicked.
var ErrWorkerPanic = errors.New("repository worker panicked")

// Result is the outcome of one run: records in discovery order and their
// aggregation.
type Result struct {
	Repositories []collector.Repository
	Report       aggregate.Report
	// JenkinsAllocation is nil unless Jenkins lookups are on.
	JenkinsAllocation *enrich.Allocation
}

// Runner collects repositories with a bounded worker pool.
type Runner struct {
	env       Env
	collector *collector.Collector
	registry  *features.Registry
	store     *cache.Store[collector.Repository]
	github    *enrich.GitHubWorkflows
	apiStats  *enrich.Stats

	gerritCfg  *enrich.GerritConfig
	jenkinsCfg *enrich.JenkinsConfig
}

// remote holds the per-run Gerrit and Jenkins state.
type remote struct {
	gerrit     *enrich.Gerrit
	projects   map[string]enrich.GerritProject
	jenkins    *enrich.Jenkins
	allocation *enrich.Allocation
}

// NewRunner wires the collector, feature registry, optional cache and
// optional remote enrichments from env.Config.
func NewRunner(env Env, source gitlog.Source) (*Runner, error) {
	env = env.withDefaults()
	cfg := env.Config

	normalizer := identity.NewNormalizer(
		cfg.DataQuality.UnknownEmailPlaceholder,
		identity.NewDomainMapper(cfg.Organizations.PreserveFullDomain, cfg.Organizations.CustomMappings),
	)

	r := &Runner{
		env: env,
		collector: collector.New(source, env.Windows, collector.Options{
			ActivityThresholdDays: cfg.ActivityThresholdDays,
			SkipBinary:            cfg.DataQuality.SkipBinaryChanges,
			Normalizer:            normalizer,
		}, env.Logger),
	}

	if cfg.Performance.Cache {
		store, err := cache.Open[collector.Repository](cfg.Performance.CacheDir, func(hit bool) {
			env.Metrics.RecordCacheLookup(context.Background(), hit)
		})
		if err != nil {
			env.Logger.Warn("repository cache disabled", "dir", cfg.Performance.CacheDir, "error", err)
		} else {
			r.store = store
			r.collector.WithCache(store)
		}
	}

	gh := cfg.Extensions.GitHubAPI
	if gh.Enabled {
		client, err := enrich.NewGitHubWorkflows(enrich.GitHubConfig{
			Token:     cfg.GitHubToken(os.LookupEnv),
			Org:       gh.Org,
			BaseURL:   gh.BaseURL,
			RateLimit: gh.RateLimit,
			RateBurst: gh.RateBurst,
		}, r.stats(), env.Logger)
		if err != nil {
			r.Close()

			return nil, fmt.Errorf("github enrichment: %w", err)
		}

		r.github = client
	}

	featureOpts := features.Options{
		VerifyPatterns: cfg.Workflows.Classify.Verify,
		MergePatterns:  cfg.Workflows.Classify.Merge,
		GitHubOrg:      gh.Org,
		Logger:         env.Logger,
	}
	if r.github != nil {
		featureOpts.Mirrors = r.github
	}

	r.registry = features.NewDefaultRegistry(featureOpts)

	if cfg.Gerrit.Enabled {
		r.stats()
		r.gerritCfg = &enrich.GerritConfig{
			Host:      cfg.Gerrit.Host,
			BaseURL:   cfg.Gerrit.BaseURL,
			Timeout:   cfg.Gerrit.Timeout,
			RateLimit: gh.RateLimit,
			RateBurst: gh.RateBurst,
		}
	}

	host, baseURL := cfg.JenkinsEndpoint(os.LookupEnv)

	switch {
	case host != "" || baseURL != "":
		r.stats()
		r.jenkinsCfg = &enrich.JenkinsConfig{
			Host:      host,
			BaseURL:   baseURL,
			Timeout:   cfg.Jenkins.Timeout,
			RateLimit: gh.RateLimit,
			RateBurst: gh.RateBurst,
		}
	case cfg.Jenkins.Enabled:
		env.Logger.Warn("jenkins enabled but no host configured")
	}

	return r, nil
}

// stats returns the shared API statistics, creating them on first use.
func (r *Runner) stats() *enrich.Stats {
	if r.apiStats == nil {
		r.apiStats = enrich.NewStats()
		r.apiStats.Observe(func(api string, failed bool) {
			r.env.Metrics.RecordAPICall(context.Background(), api, failed)
		})
	}

	return r.apiStats
}

// connect sets up the Gerrit and Jenkins clients for one run and allocates
// Jenkins jobs across every target up front. Failures disable the affected
// enrichment and are logged.
func (r *Runner) connect(ctx context.Context, targets []Target) remote {
	var rem remote

	if r.gerritCfg != nil {
		client, err := enrich.NewGerrit(ctx, *r.gerritCfg, r.apiStats, r.env.Logger)
		if err != nil {
			r.env.Logger.Error("gerrit enrichment disabled", "error", err)
		} else {
			rem.gerrit = client

			projects, listErr := client.Projects(ctx)
			if listErr != nil {
				r.env.Logger.Warn("list gerrit projects, falling back to per-project lookups", "error", listErr)
			}

			rem.projects = projects
		}
	}

	if r.jenkinsCfg == nil {
		return rem
	}

	client, err := enrich.NewJenkins(ctx, *r.jenkinsCfg, r.apiStats, r.env.Logger)
	if err != nil {
		r.env.Logger.Error("jenkins enrichment disabled", "error", err)

		return rem
	}

	jobs, err := client.JobNames(ctx)
	if err != nil {
		r.env.Logger.Error("jenkins enrichment disabled", "error", err)

		return rem
	}

	names := make([]string, len(targets))
	for i, target := range targets {
		names[i] = target.Name
	}

	archived := map[string]string{}

	for name, project := range rem.projects {
		if project.Archived() {
			archived[name] = project.State
		}
	}

	allocation := enrich.Allocate(jobs, names, archived)
	rem.jenkins, rem.allocation = client, &allocation

	r.env.Logger.Info("jenkins job allocation",
		"total", allocation.TotalJobs,
		"allocated", allocation.AllocatedJobs,
		"unallocated", allocation.Unallocated,
		"percentage", allocation.Percentage,
		"orphaned", len(allocation.Orphaned),
		"infrastructure", len(allocation.Infrastructure))

	if len(allocation.UnallocatedProjectJobs) > 0 {
		r.env.Logger.Warn("unallocated jenkins project jobs",
			"count", len(allocation.UnallocatedProjectJobs), "jobs", allocation.UnallocatedProjectJobs)
	}

	return rem
}

// APIStats returns the enrichment call statistics, or nil when no remote
// API is enabled.
func (r *Runner) APIStats() *enrich.Stats {
	return r.apiStats
}

// Close releases the cache.
func (r *Runner) Close() error {
	if r.store == nil {
		return nil
	}

	hits, misses := r.store.Stats()
	r.env.Logger.Debug("repository cache", "hits", hits, "misses", misses)

	return r.store.Close()
}

// Run collects every target with at most performance.max_workers in flight,
// then aggregates. A failing or panicking repository is recorded in its own
// record and never stops the others.
func (r *Runner) Run(ctx context.Context, targets []Target, progress Progress) Result {
	if progress == nil {
		progress = silentProgress{}
	}

	ctx, span := r.env.Tracer.Start(ctx, "repopulse.collect",
		trace.WithAttributes(attribute.Int("repositories", len(targets))))
	defer span.End()

	rem := r.connect(ctx, targets)
	records := make([]collector.Repository, len(targets))

	var g errgroup.Group

	g.SetLimit(max(1, r.env.Config.Performance.MaxWorkers))

	for i, target := range targets {
		g.Go(func() error {
			records[i] = r.collectOne(ctx, target, rem)
			_ = progress.Add(1)

			return nil
		})
	}

	_ = g.Wait()
	_ = progress.Finish()

	_, aggSpan := r.env.Tracer.Start(ctx, "repopulse.aggregate")
	report := aggregate.NewEngine(r.env.AggregateOptions(), r.env.Logger).Aggregate(records)
	aggSpan.End()

	return Result{Repositories: records, Report: report, JenkinsAllocation: rem.allocation}
}

func (r *Runner) collectOne(ctx context.Context, target Target, rem remote) (rec collector.Repository) {
	start := time.Now()
	ctx = observability.WithRepository(ctx, target.Name)

	ctx, span := r.env.Tracer.Start(ctx, "repopulse.repository",
		trace.WithAttributes(attribute.String("repository", target.Name)))

	defer func() {
		if recovered := recover(); recovered != nil {
			r.env.Logger.ErrorContext(ctx, "repository worker panicked",
				"panic", recovered, "stack", string(debug.Stack()))

			rec = collector.Empty(target.Name, target.Path, r.env.Windows.Names())
			rec.AddError(fmt.Errorf("%w: %v", ErrWorkerPanic, recovered))
		}

		if rec.Failed() {
			span.SetStatus(codes.Error, rec.Errors[0])
		}

		r.env.Metrics.RecordRepository(ctx, rec.TotalCommitsEver, rec.Failed(), time.Since(start))
		span.End()
	}()

	if ctxErr := ctx.Err(); ctxErr != nil {
		rec = collector.Empty(target.Name, target.Path, r.env.Windows.Names())
		rec.AddError(ctxErr)

		return rec
	}

	rec = r.collector.Collect(ctx, target.Name, target.Path)

	info, statErr := os.Stat(target.Path)
	if statErr == nil && info.IsDir() {
		rec.Features = r.registry.Run(ctx, features.Target{Name: target.Name, FS: os.DirFS(target.Path)}, r.env.Config.Features.Enabled)
	}

	if r.github != nil {
		summary := r.github.Summarize(ctx, target.Name)
		rec.GitHub = &summary
	}

	r.enrichGerrit(ctx, &rec, rem)

	if rem.jenkins != nil {
		summary := rem.jenkins.Summarize(ctx, rem.allocation.ByProject[target.Name])
		rec.Jenkins = &summary
	}

	return rec
}

// enrichGerrit attaches the project's Gerrit metadata, from the bulk listing
// when there is one.
func (r *Runner) enrichGerrit(ctx context.Context, rec *collector.Repository, rem remote) {
	if rem.gerrit == nil {
		return
	}

	if rem.projects != nil {
		project, ok := rem.projects[rec.Name]
		if !ok {
			r.env.Logger.WarnContext(ctx, "repository not found in gerrit")

			return
		}

		rec.Gerrit = &project

		return
	}

	project, found, err := rem.gerrit.Project(ctx, rec.Name)
	if err != nil {
		r.env.Logger.WarnContext(ctx, "gerrit project lookup", "error", err)

		return
	}

	if found {
		rec.Gerrit = &project
	}
}

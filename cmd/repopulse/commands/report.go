package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/repopulse/internal/config"
	"github.com/Sumatoshi-tech/repopulse/internal/observability"
	"github.com/Sumatoshi-tech/repopulse/pkg/aggregate"
	"github.com/Sumatoshi-tech/repopulse/pkg/enrich"
	"github.com/Sumatoshi-tech/repopulse/pkg/gitlog"
	"github.com/Sumatoshi-tech/repopulse/pkg/pipeline"
	"github.com/Sumatoshi-tech/repopulse/pkg/report"
	"github.com/Sumatoshi-tech/repopulse/pkg/version"
)

// ErrInterrupted is returned when the run was cancelled by a signal.
var ErrInterrupted = errors.New("interrupted")

// ReportCommand holds flags and dependencies for the report command.
type ReportCommand struct {
	configFlags

	reposPath   string
	outputDir   string
	noHTML      bool
	noZip       bool
	verbose     bool
	cache       bool
	workers     int
	metricsFile string
	noColor     bool
	quiet       bool
	exclude     []string

	source func(cfg *config.Config) gitlog.Source
	now    func() time.Time
}

// NewReportCommand creates the report command.
func NewReportCommand() *cobra.Command {
	return newReportCommandWithDeps(
		func(cfg *config.Config) gitlog.Source { return gitlog.NewExecSource(cfg.Performance.GitTimeout) },
		time.Now,
	)
}

func newReportCommandWithDeps(source func(cfg *config.Config) gitlog.Source, now func() time.Time) *cobra.Command {
	rc := &ReportCommand{source: source, now: now}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Collect, aggregate and render repository activity",
		Long: `Discover every working copy under --repos-path, collect per-window
commit, line and contributor metrics, detect repository features, and write
report_raw.json, report.md, report.html, report_charts.html,
config_resolved.json and a zip bundle under <output-dir>/<project>/.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          rc.run,
	}

	rc.register(cmd)

	cmd.Flags().StringVar(&rc.reposPath, "repos-path", ".", "Directory holding the working copies to analyze")
	cmd.Flags().StringVar(&rc.outputDir, "output-dir", config.DefaultOutputDir, "Directory receiving <project>/ report artifacts")
	cmd.Flags().BoolVar(&rc.noHTML, "no-html", false, "Skip report.html")
	cmd.Flags().BoolVar(&rc.noZip, "no-zip", false, "Skip the zip bundle")
	cmd.Flags().BoolVarP(&rc.verbose, "verbose", "v", false, "Debug logging")
	cmd.Flags().BoolVar(&rc.cache, "cache", false, "Reuse collected records for unchanged HEADs")
	cmd.Flags().IntVar(&rc.workers, "workers", 0, "Parallel repository workers (0 = performance.max_workers)")
	cmd.Flags().StringVar(&rc.metricsFile, "metrics-file", "", "Write run metrics in Prometheus text format to this file")
	cmd.Flags().BoolVar(&rc.noColor, "no-color", false, "Disable colored console output")
	cmd.Flags().BoolVarP(&rc.quiet, "quiet", "q", false, "No progress bar or console summary")
	cmd.Flags().StringSliceVar(&rc.exclude, "exclude", nil, "Glob patterns of directories to skip during discovery")

	return cmd
}

func (rc *ReportCommand) overrides(cmd *cobra.Command) map[string]any {
	out := map[string]any{}

	if cmd.Flags().Changed("no-html") {
		out[config.Key("output", "no_html")] = rc.noHTML
	}

	if cmd.Flags().Changed("no-zip") {
		out[config.Key("output", "no_zip")] = rc.noZip
	}

	if cmd.Flags().Changed("cache") {
		out[config.Key("performance", "cache")] = rc.cache
	}

	if rc.workers > 0 {
		out[config.Key("performance", "max_workers")] = rc.workers
	}

	if rc.verbose {
		out[config.Key("logging", "level")] = "debug"
	}

	return out
}

func (rc *ReportCommand) run(cmd *cobra.Command, _ []string) error {
	if rc.noColor {
		color.NoColor = true
	}

	cfg, err := rc.load(rc.overrides(cmd))
	if err != nil {
		return err
	}

	if cfg.Extensions.GitHubAPI.Enabled {
		org, source := ResolveGitHubOrg(cfg.Extensions.GitHubAPI.Org, rc.reposPath, os.LookupEnv)
		cfg.Extensions.GitHubAPI.Org = org
		cfg.Extensions.GitHubAPI.Enabled = org != ""

		if org == "" {
			fmt.Fprintln(cmd.ErrOrStderr(), "GitHub organization not configured; workflow status will not be queried")
		} else if source == OrgFromPath {
			fmt.Fprintf(cmd.ErrOrStderr(), "Derived GitHub organization %q from repository path\n", org)
		}
	}

	providers, err := observability.Init(observabilityConfig(cfg, rc.metricsFile != ""))
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	defer func() {
		shutdownErr := providers.Shutdown(context.Background())
		if shutdownErr != nil {
			providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
		}
	}()

	return rc.execute(cmd, cfg, providers)
}

func observabilityConfig(cfg *config.Config, prometheusRegistry bool) observability.Config {
	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Project = cfg.Project
	obsCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	obsCfg.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	obsCfg.PrometheusRegistry = prometheusRegistry
	obsCfg.LogLevel = observability.ParseLevel(cfg.Logging.Level)
	obsCfg.LogJSON = cfg.Logging.Format == config.LogFormatJSON

	return obsCfg
}

func (rc *ReportCommand) execute(cmd *cobra.Command, cfg *config.Config, providers observability.Providers) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	logger := providers.Logger

	digest, err := cfg.Digest()
	if err != nil {
		return fmt.Errorf("compute digest: %w", err)
	}

	logger.Info("starting report", "project", cfg.Project, "version", version.Version, "config_digest", digest[:shortDigest])

	metrics, err := observability.NewRunMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("create run metrics: %w", err)
	}

	now := rc.now().UTC()

	windows, err := pipeline.ComputeWindows(cfg, now)
	if err != nil {
		return err
	}

	targets, err := pipeline.Discover(rc.reposPath, rc.exclude)
	if err != nil {
		return err
	}

	logger.Info("discovered repositories", "count", len(targets), "root", rc.reposPath)

	env := pipeline.Env{
		Logger:  logger,
		Config:  cfg,
		Windows: windows,
		Now:     now,
		Tracer:  providers.Tracer,
		Metrics: metrics,
	}

	runner, err := pipeline.NewRunner(env, rc.source(cfg))
	if err != nil {
		return err
	}

	defer func() {
		closeErr := runner.Close()
		if closeErr != nil {
			logger.Warn("close repository cache", "error", closeErr)
		}
	}()

	var progress pipeline.Progress
	if !rc.quiet {
		progress = pipeline.NewProgress(len(targets))
	}

	result := runner.Run(ctx, targets, progress)
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ErrInterrupted, ctx.Err())
	}

	var apiSummary []enrich.APISummary
	if stats := runner.APIStats(); stats != nil {
		apiSummary = stats.Summary()
	}

	snap := report.NewSnapshot(report.SnapshotInput{
		Project:           cfg.Project,
		ConfigDigest:      digest,
		Windows:           windows,
		Repositories:      result.Repositories,
		Report:            result.Report,
		APIStatistics:     apiSummary,
		JenkinsAllocation: result.JenkinsAllocation,
		GeneratedAt:       now,
	})

	opts, numbers := writeOptions(cfg, rc.outputDir)

	artifacts, err := report.Write(&snap, opts, logger)
	if err != nil {
		return err
	}

	rc.printOutcome(cmd, &snap, numbers, artifacts, runner.APIStats())

	summaryErr := AppendStepSummary(os.Getenv(stepSummaryEnv), &snap, runner.APIStats())
	if summaryErr != nil {
		logger.Warn("write step summary", "error", summaryErr)
	}

	return rc.writeMetrics(providers, runner.APIStats(), logger)
}

// writeOptions maps the configuration onto artifact writer options rooted at
// <outputDir>/<project>.
func writeOptions(cfg *config.Config, outputDir string) (report.WriteOptions, report.NumberFormat) {
	numbers := report.NumberFormat{
		Abbreviate: cfg.Render.AbbreviateLargeNumbers,
		Threshold:  cfg.Render.LargeNumberThreshold,
	}

	return report.WriteOptions{
		Dir:    filepath.Join(outputDir, cfg.Project),
		NoHTML: cfg.Output.NoHTML,
		NoZip:  cfg.Output.NoZip,
		Markdown: report.MarkdownOptions{
			Numbers:               numbers,
			ActivityThresholdDays: cfg.ActivityThresholdDays,
			AgeBuckets: aggregate.AgeBuckets{
				VeryOldYears: cfg.AgeBuckets.VeryOldYears,
				OldYears:     cfg.AgeBuckets.OldYears,
			},
			SectionEnabled: cfg.Output.SectionEnabled,
		},
		ResolvedConfig: cfg.ResolvedSettings(),
	}, numbers
}

func (rc *ReportCommand) printOutcome(
	cmd *cobra.Command, snap *report.Snapshot, numbers report.NumberFormat, artifacts report.Artifacts, stats *enrich.Stats,
) {
	if rc.quiet {
		return
	}

	out := cmd.OutOrStdout()

	report.PrintSummary(out, snap, numbers)

	fmt.Fprintln(out)
	color.New(color.FgGreen, color.Bold).Fprintln(out, "Report generation completed successfully")
	fmt.Fprintf(out, "  - Analyzed: %d repositories\n", len(snap.Repositories))
	fmt.Fprintf(out, "  - Errors: %d\n", len(snap.Errors))
	fmt.Fprintf(out, "  - Output directory: %s\n", filepath.Dir(artifacts.Raw))

	if len(snap.Errors) > 0 {
		fmt.Fprintf(out, "  - Check %s for error details\n", artifacts.Raw)
	}

	if stats != nil {
		fmt.Fprint(out, stats.Format())
	}
}

func (rc *ReportCommand) writeMetrics(providers observability.Providers, stats *enrich.Stats, logger *slog.Logger) error {
	if rc.metricsFile == "" {
		return nil
	}

	gatherers := prometheus.Gatherers{}
	if providers.Gatherer != nil {
		gatherers = append(gatherers, providers.Gatherer)
	}

	if stats != nil {
		gatherers = append(gatherers, stats.Gatherer())
	}

	err := observability.WriteMetricsFile(gatherers, rc.metricsFile)
	if err != nil {
		return err
	}

	logger.Info("metrics written", "path", rc.metricsFile)

	return nil
}

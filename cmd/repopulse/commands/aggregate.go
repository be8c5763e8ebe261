package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/repopulse/internal/config"
	"github.com/Sumatoshi-tech/repopulse/internal/observability"
	"github.com/Sumatoshi-tech/repopulse/pkg/aggregate"
	"github.com/Sumatoshi-tech/repopulse/pkg/pipeline"
	"github.com/Sumatoshi-tech/repopulse/pkg/report"
	"github.com/Sumatoshi-tech/repopulse/pkg/timewindow"
)

// AggregateCommand re-aggregates previously collected repository records
// without touching any working copy.
type AggregateCommand struct {
	configFlags

	input     string
	outputDir string
	noHTML    bool
	noZip     bool
	quiet     bool

	now func() time.Time
}

// NewAggregateCommand creates the aggregate command.
func NewAggregateCommand() *cobra.Command {
	return newAggregateCommandWithDeps(time.Now)
}

func newAggregateCommandWithDeps(now func() time.Time) *cobra.Command {
	ac := &AggregateCommand{now: now}

	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Re-aggregate saved repository records into a new report",
		Long: `Read repository records from --input, either a JSON array of records or a
report_raw.json snapshot, aggregate them with the current configuration and
write the report artifacts. Time windows are taken from the snapshot when
present and computed from the configuration otherwise.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          ac.run,
	}

	ac.register(cmd)

	cmd.Flags().StringVar(&ac.input, "input", "", "Repository records or report_raw.json to aggregate (required)")
	cmd.Flags().StringVar(&ac.outputDir, "output-dir", config.DefaultOutputDir, "Directory receiving <project>/ report artifacts")
	cmd.Flags().BoolVar(&ac.noHTML, "no-html", false, "Skip report.html")
	cmd.Flags().BoolVar(&ac.noZip, "no-zip", false, "Skip the zip bundle")
	cmd.Flags().BoolVarP(&ac.quiet, "quiet", "q", false, "No console summary")

	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func (ac *AggregateCommand) run(cmd *cobra.Command, _ []string) error {
	overrides := map[string]any{}

	if cmd.Flags().Changed("no-html") {
		overrides[config.Key("output", "no_html")] = ac.noHTML
	}

	if cmd.Flags().Changed("no-zip") {
		overrides[config.Key("output", "no_zip")] = ac.noZip
	}

	cfg, err := ac.load(overrides)
	if err != nil {
		return err
	}

	providers, err := observability.Init(observabilityConfig(cfg, false))
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	defer func() {
		shutdownErr := providers.Shutdown(context.Background())
		if shutdownErr != nil {
			providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
		}
	}()

	data, err := os.ReadFile(ac.input)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	records, stored, err := splitInput(data)
	if err != nil {
		return err
	}

	now := ac.now().UTC()

	windows := timewindow.FromWindows(stored)
	if windows.Len() == 0 {
		windows, err = pipeline.ComputeWindows(cfg, now)
		if err != nil {
			return err
		}
	}

	env := pipeline.Env{Logger: providers.Logger, Config: cfg, Windows: windows, Now: now}
	engine := aggregate.NewEngine(env.AggregateOptions(), providers.Logger)

	result, repos, err := engine.AggregateJSON(records)
	if err != nil {
		return err
	}

	digest, err := cfg.Digest()
	if err != nil {
		return fmt.Errorf("compute digest: %w", err)
	}

	snap := report.NewSnapshot(report.SnapshotInput{
		Project:      cfg.Project,
		ConfigDigest: digest,
		Windows:      windows,
		Repositories: repos,
		Report:       result,
		GeneratedAt:  now,
	})

	opts, numbers := writeOptions(cfg, ac.outputDir)

	artifacts, err := report.Write(&snap, opts, providers.Logger)
	if err != nil {
		return err
	}

	if !ac.quiet {
		out := cmd.OutOrStdout()
		report.PrintSummary(out, &snap, numbers)
		color.New(color.FgGreen, color.Bold).Fprintf(out, "Re-aggregated %d repositories into %s\n", len(repos), artifacts.Raw)
	}

	return nil
}

// splitInput accepts a bare array of records or a snapshot object and returns
// the records together with any stored time windows.
func splitInput(data []byte) (json.RawMessage, map[string]timewindow.Window, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed, nil, nil
	}

	var doc struct {
		Repositories json.RawMessage              `json:"repositories"`
		TimeWindows  map[string]timewindow.Window `json:"time_windows"`
	}

	decodeErr := json.Unmarshal(trimmed, &doc)
	if decodeErr != nil {
		return nil, nil, fmt.Errorf("%w: %w", aggregate.ErrAggregation, decodeErr)
	}

	return doc.Repositories, doc.TimeWindows, nil
}

// Package aggregate combines collected repository records into author and
// organization rollups, activity distributions and ranked leaderboards.
// Everything here is pure: no I/O and identical output for identical input.
package aggregate

import (
	"errors"
	"log/slog"

	"github.com/Sumatoshi-tech/repopulse/pkg/collector"
)

// DefaultPrimaryWindow is the window leaderboards rank by.
const DefaultPrimaryWindow = "last_365_days"

// ErrAggregation indicates input that is not a sequence of repository records.
var ErrAggregation = errors.New("invalid aggregation input")

// Options configures an Engine.
type Options struct {
	PrimaryWindow    string
	TopN             int
	BottomN          int
	AgeBuckets       AgeBuckets
	PlaceholderEmail string
}

// RunError is a problem recorded against one repository.
type RunError struct {
	Repository string `json:"repository"`
	Error      string `json:"error"`
}

// Report is the engine output and the canonical snapshot payload.
type Report struct {
	Authors       []AuthorRollup `json:"authors"`
	Organizations []OrgRollup    `json:"organizations"`
	Summaries     Summaries      `json:"summaries"`
	Errors        []RunError     `json:"errors"`
}

// Engine aggregates repository records.
type Engine struct {
	opts   Options
	logger *slog.Logger
}

// NewEngine creates an Engine. A nil logger discards output.
func NewEngine(opts Options, logger *slog.Logger) *Engine {
	if opts.PrimaryWindow == "" {
		opts.PrimaryWindow = DefaultPrimaryWindow
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Engine{opts: opts, logger: logger}
}

// Aggregate computes the full report. It never fails: malformed or failed
// records contribute what they have and their errors are listed.
func (e *Engine) Aggregate(repos []collector.Repository) Report {
	authors := ComputeAuthorRollups(repos, e.opts.PlaceholderEmail)
	orgs := ComputeOrgRollups(authors)
	summaries := e.summarize(repos, authors, orgs)

	e.logger.Info("aggregation complete",
		"repositories", summaries.Counts.TotalRepositories,
		"active", summaries.Counts.ActiveRepositories,
		"inactive", summaries.Counts.InactiveRepositories,
		"no_commit", summaries.Counts.NoCommitRepositories,
		"authors", len(authors),
		"organizations", len(orgs))

	return Report{
		Authors:       authors,
		Organizations: orgs,
		Summaries:     summaries,
		Errors:        collectErrors(repos),
	}
}

// AggregateGlobalData computes only the summaries.
func (e *Engine) AggregateGlobalData(repos []collector.Repository) Summaries {
	authors := ComputeAuthorRollups(repos, e.opts.PlaceholderEmail)

	return e.summarize(repos, authors, ComputeOrgRollups(authors))
}

// AggregateJSON decodes a JSON array of repository records and aggregates it.
// Anything other than an array of objects yields ErrAggregation; malformed
// fields inside a record are recorded in that record's errors.
func (e *Engine) AggregateJSON(data []byte) (Report, []collector.Repository, error) {
	repos, err := DecodeRepositories(data)
	if err != nil {
		return Report{}, nil, err
	}

	return e.Aggregate(repos), repos, nil
}

func collectErrors(repos []collector.Repository) []RunError {
	out := []RunError{}

	for _, repo := range repos {
		for _, msg := range repo.Errors {
			out = append(out, RunError{Repository: repo.Name, Error: msg})
		}
	}

	return out
}

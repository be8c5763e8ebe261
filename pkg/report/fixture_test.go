package report_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/repopulse/pkg/aggregate"
	"github.com/Sumatoshi-tech/repopulse/pkg/collector"
	"github.com/Sumatoshi-tech/repopulse/pkg/report"
	"github.com/Sumatoshi-tech/repopulse/pkg/timewindow"
)

const (
	w30  = "last_30_days"
	w365 = "last_365_days"
)

var fixtureNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func intPtr(i int) *int { return &i }

func fixtureRepo(name string, days *int, active bool, commits int) collector.Repository {
	r := collector.Empty(name, "/src/"+name, []string{w30, w365})
	r.DaysSinceLastCommit = days
	r.IsActive = active
	r.HasAnyCommits = days != nil
	r.TotalCommitsEver = commits
	r.CommitCounts[w365] = commits
	r.LOCStats[w365] = collector.LOCStats{Added: commits * 10, Removed: commits, Net: commits * 9}

	if commits > 0 {
		r.Authors = []collector.AuthorMetrics{{
			Name:         "Alice",
			Email:        "alice@example.org",
			Username:     "alice",
			Domain:       "example.org",
			Commits:      map[string]int{w30: 0, w365: commits},
			LinesAdded:   map[string]int{w30: 0, w365: commits * 10},
			LinesRemoved: map[string]int{w30: 0, w365: commits},
			LinesNet:     map[string]int{w30: 0, w365: commits * 9},
		}}
	}

	return r
}

// fixtureSnapshot builds a small but complete snapshot: one active, one old
// and one empty repository, plus one collection error.
func fixtureSnapshot(t *testing.T) *report.Snapshot {
	t.Helper()

	windows, err := timewindow.Compute(map[string]int{w30: 30, w365: 365}, fixtureNow)
	require.NoError(t, err)

	broken := fixtureRepo("gamma|pipe", nil, false, 0)
	broken.Errors = append(broken.Errors, "git log failed")

	repos := []collector.Repository{
		fixtureRepo("alpha", intPtr(3), true, 42),
		fixtureRepo("beta", intPtr(800), false, 7),
		broken,
	}

	engine := aggregate.NewEngine(aggregate.Options{
		TopN:       10,
		BottomN:    10,
		AgeBuckets: aggregate.AgeBuckets{VeryOldYears: 3, OldYears: 1},
	}, nil)

	snap := report.NewSnapshot(report.SnapshotInput{
		Project:      "demo",
		ConfigDigest: "abc123",
		Windows:      windows,
		Repositories: repos,
		Report:       engine.Aggregate(repos),
		GeneratedAt:  fixtureNow,
	})

	return &snap
}

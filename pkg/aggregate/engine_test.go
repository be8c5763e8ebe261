package aggregate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/repopulse/pkg/aggregate"
	"github.com/Sumatoshi-tech/repopulse/pkg/collector"
)

const (
	w30  = "last_30_days"
	w365 = "last_365_days"
)

var windowNames = []string{w30, w365}

func intPtr(i int) *int { return &i }

func author(name, email, domain string, commits30, commits365, added, removed int) collector.AuthorMetrics {
	return collector.AuthorMetrics{
		Name:         name,
		Email:        email,
		Domain:       domain,
		Commits:      map[string]int{w30: commits30, w365: commits365},
		LinesAdded:   map[string]int{w30: 0, w365: added},
		LinesRemoved: map[string]int{w30: 0, w365: removed},
		LinesNet:     map[string]int{w30: 0, w365: added - removed},
	}
}

func repo(name string, days int, active bool, commits365 int, authors ...collector.AuthorMetrics) collector.Repository {
	r := collector.Empty(name, "/src/"+name, windowNames)
	r.DaysSinceLastCommit = intPtr(days)
	r.IsActive = active
	r.HasAnyCommits = true
	r.CommitCounts[w365] = commits365
	r.LOCStats[w365] = collector.LOCStats{Added: commits365 * 10, Removed: commits365, Net: commits365 * 9}
	r.Authors = authors

	return r
}

func newEngine() *aggregate.Engine {
	return aggregate.NewEngine(aggregate.Options{
		TopN:       10,
		BottomN:    10,
		AgeBuckets: aggregate.AgeBuckets{VeryOldYears: 3, OldYears: 1},
	}, nil)
}

func TestComputeAuthorRollups_SumsAcrossRepositories(t *testing.T) {
	t.Parallel()

	repos := []collector.Repository{
		repo("r1", 3, true, 120, author("Alice", "alice@example.org", "example.org", 5, 120, 1000, 200)),
		repo("r2", 3, true, 100, author("Alice Smith", "alice@example.org", "example.org", 0, 100, 50, 10)),
	}

	rollups := aggregate.ComputeAuthorRollups(repos, "")
	require.Len(t, rollups, 1)

	alice := rollups[0]
	assert.Equal(t, "Alice", alice.Name)
	assert.Equal(t, 220, alice.Commits[w365])
	assert.Equal(t, 2, alice.RepositoriesCount[w365])
	assert.Equal(t, 1, alice.RepositoriesCount[w30])
	assert.Equal(t, 1050, alice.LinesAdded[w365])
	assert.Equal(t, 840, alice.LinesNet[w365])
}

func TestComputeAuthorRollups_FirstSeenWinsAndPlaceholderSkipped(t *testing.T) {
	t.Parallel()

	repos := []collector.Repository{
		repo("r1", 3, true, 2,
			author("Bob", "Bob@Corp.com", "corp.com", 1, 1, 1, 0),
			author("Unknown", "unknown@unknown", "unknown", 1, 1, 1, 0),
		),
		repo("r2", 3, true, 1,
			author("Robert", "bob@corp.com", "other.com", 0, 1, 1, 0),
			author("Ann", "ann@corp.com", "corp.com", 0, 1, 1, 0),
		),
	}

	rollups := aggregate.ComputeAuthorRollups(repos, "")
	require.Len(t, rollups, 2)

	assert.Equal(t, "bob@corp.com", rollups[0].Email)
	assert.Equal(t, "Bob", rollups[0].Name)
	assert.Equal(t, "corp.com", rollups[0].Domain)
	assert.Equal(t, "ann@corp.com", rollups[1].Email)
}

func TestComputeAuthorRollups_CustomPlaceholderSkipped(t *testing.T) {
	t.Parallel()

	repos := []collector.Repository{
		repo("r1", 3, true, 2,
			author("Ghost", "nobody@example.org", "example.org", 1, 1, 1, 0),
			author("Ann", "ann@corp.com", "corp.com", 1, 1, 1, 0),
			author("Default", "unknown@unknown", "unknown", 1, 1, 1, 0),
		),
	}

	rollups := aggregate.ComputeAuthorRollups(repos, "Nobody@Example.org")
	require.Len(t, rollups, 2)
	assert.Equal(t, "ann@corp.com", rollups[0].Email)
	assert.Equal(t, "unknown@unknown", rollups[1].Email)
}

func TestComputeAuthorRollups_ZeroCommitWindowNotCounted(t *testing.T) {
	t.Parallel()

	repos := []collector.Repository{
		repo("r1", 400, false, 0, author("Old", "old@example.org", "example.org", 0, 0, 0, 0)),
	}

	rollups := aggregate.ComputeAuthorRollups(repos, "")
	require.Len(t, rollups, 1)
	assert.Equal(t, 0, rollups[0].RepositoriesCount[w365])
	assert.Contains(t, rollups[0].RepositoriesCount, w365)
}

func TestComputeOrgRollups_SumsMembers(t *testing.T) {
	t.Parallel()

	repos := []collector.Repository{
		repo("r1", 3, true, 12,
			author("A", "a@example.org", "example.org", 2, 10, 100, 20),
			author("B", "b@example.org", "example.org", 1, 2, 30, 5),
			author("L", "l@localhost", "localhost", 1, 1, 1, 1),
		),
		repo("r2", 3, true, 4,
			author("A", "a@example.org", "example.org", 0, 3, 7, 0),
			author("C", "c@other.com", "other.com", 1, 1, 5, 5),
		),
	}

	authors := aggregate.ComputeAuthorRollups(repos, "")
	orgs := aggregate.ComputeOrgRollups(authors)

	require.Len(t, orgs, 2)

	example := orgs[0]
	assert.Equal(t, "example.org", example.Domain)
	assert.Equal(t, 2, example.ContributorCount)
	assert.Equal(t, 2, example.RepositoriesCount[w365])
	assert.Equal(t, 1, example.RepositoriesCount[w30])

	for _, w := range windowNames {
		var commits, added, removed, net int

		for _, a := range authors {
			if a.Domain != "example.org" {
				continue
			}

			commits += a.Commits[w]
			added += a.LinesAdded[w]
			removed += a.LinesRemoved[w]
			net += a.LinesNet[w]
		}

		assert.Equal(t, commits, example.Commits[w], w)
		assert.Equal(t, added, example.LinesAdded[w], w)
		assert.Equal(t, removed, example.LinesRemoved[w], w)
		assert.Equal(t, net, example.LinesNet[w], w)
		assert.Equal(t, example.LinesAdded[w]-example.LinesRemoved[w], example.LinesNet[w], w)
	}

	assert.Equal(t, "other.com", orgs[1].Domain)
}

func TestAgeBuckets_Classify(t *testing.T) {
	t.Parallel()

	buckets := aggregate.AgeBuckets{VeryOldYears: 3, OldYears: 1}

	tests := []struct {
		days int
		want aggregate.AgeBucket
	}{
		{days: 960, want: aggregate.BucketOld},
		{days: 100, want: aggregate.BucketRecentInactive},
		{days: 365, want: aggregate.BucketRecentInactive},
		{days: 366, want: aggregate.BucketOld},
		{days: 1096, want: aggregate.BucketVeryOld},
		{days: aggregate.MissingDaysSortValue, want: aggregate.BucketVeryOld},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, buckets.Classify(tt.days), "days=%d", tt.days)
	}
}

func TestAgeBuckets_BoundaryGoesToOlderBucket(t *testing.T) {
	t.Parallel()

	buckets := aggregate.AgeBuckets{VeryOldYears: 2, OldYears: 1}

	// 730.5 days is exactly two years; 731 is the first whole day at or past it.
	assert.Equal(t, aggregate.BucketOld, buckets.Classify(730))
	assert.Equal(t, aggregate.BucketVeryOld, buckets.Classify(731))

	same := aggregate.AgeBuckets{VeryOldYears: 1, OldYears: 1}
	assert.Equal(t, aggregate.BucketVeryOld, same.Classify(400))

	exact := aggregate.AgeBuckets{VeryOldYears: 0, OldYears: 0}
	assert.Equal(t, aggregate.BucketVeryOld, exact.Classify(0))
}

func TestClassifyAndDistribute(t *testing.T) {
	t.Parallel()

	none := collector.Empty("empty", "/src/empty", windowNames)
	unknownDays := repo("unknown-days", 0, false, 0)
	unknownDays.DaysSinceLastCommit = nil

	repos := []collector.Repository{
		repo("fresh", 3, true, 10),
		repo("stale", 960, false, 0),
		repo("ancient", 2000, false, 0),
		repo("recent", 400, false, 0),
		repo("older-recent", 500, false, 0),
		unknownDays,
		none,
	}

	dist := aggregate.ClassifyAndDistribute(repos, aggregate.AgeBuckets{VeryOldYears: 3, OldYears: 1.5})

	assert.Equal(t, 1, dist.Active)
	assert.Equal(t, 5, dist.Inactive)
	assert.Equal(t, 1, dist.NoCommit)
	assert.Len(t, dist.Old, 1)
	assert.Equal(t, "stale", dist.Old[0].Name)
	require.Len(t, dist.VeryOld, 2)
	assert.Equal(t, "unknown-days", dist.VeryOld[0].Name)
	assert.Equal(t, "ancient", dist.VeryOld[1].Name)
	require.Len(t, dist.RecentInactive, 2)
	assert.Equal(t, "older-recent", dist.RecentInactive[0].Name)
	assert.Equal(t, dist.Old, dist.Bucket(aggregate.BucketOld))
}

func TestClassifyAndDistribute_NoCommitNeverActive(t *testing.T) {
	t.Parallel()

	flagged := collector.Empty("flagged", "/src/flagged", windowNames)
	flagged.IsActive = true

	repos := []collector.Repository{flagged, repo("live", 2, true, 3), repo("idle", 900, false, 0)}

	dist := aggregate.ClassifyAndDistribute(repos, aggregate.AgeBuckets{VeryOldYears: 3, OldYears: 1})
	assert.Equal(t, 1, dist.Active)
	assert.Equal(t, 1, dist.Inactive)
	assert.Equal(t, 1, dist.NoCommit)

	counts := newEngine().Aggregate(repos).Summaries.Counts
	assert.Equal(t, 1, counts.ActiveRepositories)
	assert.Equal(t, 1, counts.InactiveRepositories)
	assert.Equal(t, 1, counts.NoCommitRepositories)
	assert.Equal(t, counts.TotalRepositories,
		counts.ActiveRepositories+counts.InactiveRepositories+counts.NoCommitRepositories)
}

func TestAggregate_Leaderboards(t *testing.T) {
	t.Parallel()

	repos := []collector.Repository{
		repo("repo-b", 1, true, 100, author("B", "b@beta.io", "beta.io", 0, 100, 10, 0)),
		repo("repo-a", 2, true, 200, author("A", "a@alpha.io", "alpha.io", 0, 200, 5, 0)),
		repo("repo-c", 3, true, 100, author("C", "c@gamma.io", "gamma.io", 0, 100, 50, 0)),
		repo("repo-d", 800, false, 0),
	}

	engine := aggregate.NewEngine(aggregate.Options{TopN: 2, BottomN: 2, AgeBuckets: aggregate.AgeBuckets{VeryOldYears: 3, OldYears: 1}}, nil)
	report := engine.Aggregate(repos)
	s := report.Summaries

	assert.Equal(t, aggregate.DefaultPrimaryWindow, s.PrimaryWindow)
	assert.Equal(t, []string{"repo-a", "repo-b"}, repoNames(s.TopActiveRepositories))
	assert.Equal(t, []string{"repo-d", "repo-b"}, repoNames(s.LeastActiveRepositories))
	assert.Equal(t, []string{"repo-a", "repo-b", "repo-c", "repo-d"}, repoNames(s.AllRepositories))
	assert.Equal(t, []string{"repo-d"}, repoNames(s.LongestInactive))

	require.Len(t, s.TopContributorsCommits, 2)
	assert.Equal(t, "A", s.TopContributorsCommits[0].Name)
	assert.Equal(t, "B", s.TopContributorsCommits[1].Name)

	require.Len(t, s.TopContributorsLOC, 2)
	assert.Equal(t, "C", s.TopContributorsLOC[0].Name)

	require.Len(t, s.TopOrganizations, 2)
	assert.Equal(t, "alpha.io", s.TopOrganizations[0].Domain)
	assert.Equal(t, "beta.io", s.TopOrganizations[1].Domain)

	assert.Equal(t, aggregate.Counts{
		TotalRepositories:    4,
		ActiveRepositories:   3,
		InactiveRepositories: 1,
		TotalCommits:         400,
		TotalLinesAdded:      4000,
		TotalAuthors:         3,
		TotalOrganizations:   3,
	}, s.Counts)

	assert.Len(t, report.Authors, 3)
	assert.Len(t, report.Organizations, 3)
}

func TestAggregate_UnpaddedWhenFewerThanCap(t *testing.T) {
	t.Parallel()

	report := newEngine().Aggregate([]collector.Repository{repo("only", 1, true, 1)})

	assert.Len(t, report.Summaries.TopActiveRepositories, 1)
	assert.Empty(t, report.Summaries.TopContributorsCommits)
	assert.NotNil(t, report.Summaries.TopContributorsCommits)
}

func TestAggregate_MissingAuthorsStillCounted(t *testing.T) {
	t.Parallel()

	bare := repo("bare", 10, true, 5)
	bare.Authors = nil

	report := newEngine().Aggregate([]collector.Repository{
		bare,
		repo("full", 10, true, 3, author("A", "a@example.org", "example.org", 1, 3, 9, 0)),
	})

	assert.Equal(t, 2, report.Summaries.Counts.TotalRepositories)
	assert.Equal(t, 1, report.Summaries.Counts.TotalAuthors)
	assert.Equal(t, 3, report.Authors[0].Commits[w365])
}

func TestAggregate_AllFailedStillComplete(t *testing.T) {
	t.Parallel()

	failed := collector.Empty("broken", "/src/broken", windowNames)
	failed.AddError(&collector.CollectionError{Repository: "broken", Err: collector.ErrNotRepository})

	report := newEngine().Aggregate([]collector.Repository{failed})

	assert.Equal(t, 1, report.Summaries.Counts.TotalRepositories)
	assert.Equal(t, 1, report.Summaries.Counts.NoCommitRepositories)
	assert.Equal(t, []string{"broken"}, repoNames(report.Summaries.NoCommitRepositories))
	assert.Empty(t, report.Summaries.AllRepositories)
	assert.NotNil(t, report.Authors)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, "broken", report.Errors[0].Repository)
	assert.Contains(t, report.Errors[0].Error, "not a git repository")
}

func TestAggregate_Deterministic(t *testing.T) {
	t.Parallel()

	repos := []collector.Repository{
		repo("x", 1, true, 5, author("P", "p@a.io", "a.io", 1, 5, 1, 0)),
		repo("y", 1, true, 5, author("Q", "q@b.io", "b.io", 1, 5, 1, 0)),
	}
	reversed := []collector.Repository{repos[1], repos[0]}

	first := newEngine().Aggregate(repos).Summaries
	second := newEngine().Aggregate(reversed).Summaries

	assert.Equal(t, repoNames(first.AllRepositories), repoNames(second.AllRepositories))
	assert.Equal(t, first.TopContributorsCommits[0].Email, second.TopContributorsCommits[0].Email)
	assert.Equal(t, first.TopOrganizations[0].Domain, second.TopOrganizations[0].Domain)
}

func TestAggregateGlobalData_MatchesAggregate(t *testing.T) {
	t.Parallel()

	repos := []collector.Repository{repo("r", 1, true, 2, author("A", "a@x.io", "x.io", 1, 2, 3, 1))}
	engine := newEngine()

	assert.Equal(t, engine.Aggregate(repos).Summaries.Counts, engine.AggregateGlobalData(repos).Counts)
}

func TestAggregateJSON(t *testing.T) {
	t.Parallel()

	engine := newEngine()

	report, repos, err := engine.AggregateJSON([]byte(`[
		{"name": "no-authors", "has_any_commits": true, "is_active": true, "days_since_last_commit": 4,
		 "commit_counts": {"last_365_days": 7}},
		{"name": "with-authors", "has_any_commits": true, "days_since_last_commit": 900,
		 "authors": [{"name": "A", "email": "a@example.org", "domain": "example.org",
		              "commits": {"last_365_days": 2}, "lines_added": {"last_365_days": 4}}]}
	]`))
	require.NoError(t, err)
	require.Len(t, repos, 2)

	assert.Equal(t, 2, report.Summaries.Counts.TotalRepositories)
	assert.Equal(t, 7, report.Summaries.Counts.TotalCommits)
	require.Len(t, report.Authors, 1)
	assert.Equal(t, 4, report.Authors[0].LinesNet[w365])
	assert.Len(t, report.Summaries.ActivityDistribution.Old, 1)
}

func TestAggregateJSON_RejectsNonSequence(t *testing.T) {
	t.Parallel()

	for _, input := range []string{`{"name": "x"}`, `42`, ``, `[1, 2]`, `["a"]`} {
		_, _, err := newEngine().AggregateJSON([]byte(input))
		require.ErrorIs(t, err, aggregate.ErrAggregation, input)
	}
}

func TestAggregateJSON_MalformedRecordDegrades(t *testing.T) {
	t.Parallel()

	report, repos, err := newEngine().AggregateJSON([]byte(`[
		{"name": "good", "has_any_commits": true, "is_active": true, "days_since_last_commit": 2,
		 "commit_counts": {"last_365_days": 5}},
		{"name": "bad", "has_any_commits": true, "days_since_last_commit": 3.5,
		 "commit_counts": {"last_365_days": "7", "last_30_days": "lots"},
		 "authors": "none"},
		{"name": "half-author", "has_any_commits": true, "is_active": true,
		 "authors": [{"name": "A", "email": "a@example.org", "domain": "example.org",
		              "commits": {"last_365_days": "4"}}, 17]}
	]`))
	require.NoError(t, err)
	require.Len(t, repos, 3)

	assert.Empty(t, repos[0].Errors)

	bad := repos[1]
	assert.Equal(t, "bad", bad.Name)
	require.NotNil(t, bad.DaysSinceLastCommit)
	assert.Equal(t, 3, *bad.DaysSinceLastCommit)
	assert.Equal(t, map[string]int{w365: 7}, bad.CommitCounts)
	assert.Empty(t, bad.Authors)
	assert.Equal(t, []string{
		"malformed record: authors: not a list of authors",
		"malformed record: commit_counts.last_30_days: not an integer",
	}, bad.Errors)

	half := repos[2]
	require.Len(t, half.Authors, 2)
	assert.Equal(t, 4, half.Authors[0].Commits[w365])
	assert.Equal(t, []string{"malformed record: authors[1]: not an author object"}, half.Errors)

	assert.Equal(t, 3, report.Summaries.Counts.TotalRepositories)
	assert.Equal(t, 12, report.Summaries.Counts.TotalCommits)
	require.Len(t, report.Authors, 1)
	assert.Equal(t, 4, report.Authors[0].Commits[w365])
	assert.Len(t, report.Errors, 3)
}

func repoNames(repos []collector.Repository) []string {
	out := make([]string, 0, len(repos))
	for _, r := range repos {
		out = append(out, r.Name)
	}

	return out
}

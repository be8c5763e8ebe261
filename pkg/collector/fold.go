package collector

import (
	"math"
	"strings"
	"time"

	"github.com/Sumatoshi-tech/repopulse/pkg/gitlog"
	"github.com/Sumatoshi-tech/repopulse/pkg/identity"
	"github.com/Sumatoshi-tech/repopulse/pkg/timewindow"
)

const hoursPerDay = 24

// gerritTLDs are the suffix fragments that mark a path element as a host name.
var gerritTLDs = []string{".org", ".com", ".net", ".io"}

// FoldOptions control how commits become metrics.
type FoldOptions struct {
	ActivityThresholdDays int
	Normalizer            *identity.Normalizer
}

type authorAcc struct {
	metrics AuthorMetrics
}

// Fold folds commits into rec. Each commit is counted in every window that
// contains its date. rec must come from Empty with the same window names.
func Fold(rec *Repository, commits []gitlog.Commit, windows timewindow.Set, opts FoldOptions) {
	names := windows.Names()
	norm := opts.Normalizer

	if norm == nil {
		norm = identity.NewNormalizer("", nil)
	}

	contributors := make(map[string]map[string]struct{}, len(names))
	for _, w := range names {
		contributors[w] = map[string]struct{}{}
	}

	authors := map[string]*authorAcc{}

	var order []string

	var latest time.Time

	for _, commit := range commits {
		if commit.Date.After(latest) {
			latest = commit.Date
		}

		author := norm.Normalize(commit.AuthorName, commit.AuthorEmail)

		acc, ok := authors[author.Email]
		if !ok {
			acc = newAuthorAcc(author, names)
			authors[author.Email] = acc
			order = append(order, author.Email)
		}

		added, removed := commit.Added(), commit.Removed()

		for _, w := range windows.Matching(commit.Date) {
			rec.CommitCounts[w]++

			loc := rec.LOCStats[w]
			loc.Add(added, removed)
			rec.LOCStats[w] = loc

			contributors[w][author.Email] = struct{}{}

			acc.metrics.Commits[w]++
			acc.metrics.LinesAdded[w] += added
			acc.metrics.LinesRemoved[w] += removed
			acc.metrics.LinesNet[w] = acc.metrics.LinesAdded[w] - acc.metrics.LinesRemoved[w]
		}
	}

	for _, w := range names {
		rec.UniqueContributors[w] = len(contributors[w])
	}

	rec.Authors = make([]AuthorMetrics, 0, len(order))
	for _, email := range order {
		rec.Authors = append(rec.Authors, authors[email].metrics)
	}

	rec.TotalCommitsEver = len(commits)
	rec.HasAnyCommits = len(commits) > 0

	if rec.HasAnyCommits {
		SetLastCommit(rec, latest, windows.Now(), opts.ActivityThresholdDays)
	}
}

func newAuthorAcc(a identity.Author, windows []string) *authorAcc {
	m := AuthorMetrics{
		Name:         a.Name,
		Email:        a.Email,
		Username:     a.Username,
		Domain:       a.Domain,
		Commits:      make(map[string]int, len(windows)),
		LinesAdded:   make(map[string]int, len(windows)),
		LinesRemoved: make(map[string]int, len(windows)),
		LinesNet:     make(map[string]int, len(windows)),
	}

	for _, w := range windows {
		m.Commits[w] = 0
		m.LinesAdded[w] = 0
		m.LinesRemoved[w] = 0
		m.LinesNet[w] = 0
	}

	return &authorAcc{metrics: m}
}

// SetLastCommit stores the last commit instant, the whole days elapsed since
// then and the activity flag.
func SetLastCommit(rec *Repository, last, now time.Time, thresholdDays int) {
	last = last.UTC()
	days := DaysBetween(last, now)

	rec.LastCommitTimestamp = &last
	rec.DaysSinceLastCommit = &days
	rec.IsActive = days <= thresholdDays
}

// DaysBetween returns the whole days from then to now, rounded down.
func DaysBetween(then, now time.Time) int {
	return int(math.Floor(now.Sub(then).Hours() / hoursPerDay))
}

// GerritHost returns the first path element that looks like a host name, or
// an empty string.
func GerritHost(path string) string {
	for _, part := range strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '\\' }) {
		if !strings.Contains(part, ".") {
			continue
		}

		for _, tld := range gerritTLDs {
			if strings.Contains(part, tld) {
				return part
			}
		}
	}

	return ""
}

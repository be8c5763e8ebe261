// Package collector turns one repository's commit history into a
// Repository record with per-window commit, line and contributor metrics.
package collector

import (
	"time"

	"github.com/Sumatoshi-tech/repopulse/pkg/enrich"
	"github.com/Sumatoshi-tech/repopulse/pkg/features"
)

// LOCStats holds line deltas for one window. Net is always Added - Removed.
type LOCStats struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
	Net     int `json:"net"`
}

// Add accumulates a commit's deltas.
func (s *LOCStats) Add(added, removed int) {
	s.Added += added
	s.Removed += removed
	s.Net = s.Added - s.Removed
}

// AuthorMetrics is one author's activity within a single repository.
type AuthorMetrics struct {
	Name         string         `json:"name"`
	Email        string         `json:"email"`
	Username     string         `json:"username"`
	Domain       string         `json:"domain"`
	Commits      map[string]int `json:"commits"`
	LinesAdded   map[string]int `json:"lines_added"`
	LinesRemoved map[string]int `json:"lines_removed"`
	LinesNet     map[string]int `json:"lines_net"`
}

// Repository is the collected record for one working copy.
type Repository struct {
	Name                string                  `json:"name"`
	Path                string                  `json:"path"`
	GerritHost          string                  `json:"gerrit_host,omitempty"`
	Head                string                  `json:"head,omitempty"`
	LastCommitTimestamp *time.Time              `json:"last_commit_timestamp"`
	DaysSinceLastCommit *int                    `json:"days_since_last_commit"`
	IsActive            bool                    `json:"is_active"`
	HasAnyCommits       bool                    `json:"has_any_commits"`
	TotalCommitsEver    int                     `json:"total_commits_ever"`
	CommitCounts        map[string]int          `json:"commit_counts"`
	LOCStats            map[string]LOCStats     `json:"loc_stats"`
	UniqueContributors  map[string]int          `json:"unique_contributors"`
	Authors             []AuthorMetrics         `json:"authors"`
	Features            features.FeatureMap     `json:"features"`
	GitHub              *enrich.WorkflowSummary `json:"github,omitempty"`
	Gerrit              *enrich.GerritProject   `json:"gerrit,omitempty"`
	Jenkins             *enrich.JenkinsSummary  `json:"jenkins,omitempty"`
	Errors              []string                `json:"errors"`
}

// Empty returns a record with every window present and zeroed.
func Empty(name, path string, windows []string) Repository {
	repo := Repository{
		Name:               name,
		Path:               path,
		GerritHost:         GerritHost(path),
		CommitCounts:       make(map[string]int, len(windows)),
		LOCStats:           make(map[string]LOCStats, len(windows)),
		UniqueContributors: make(map[string]int, len(windows)),
		Authors:            []AuthorMetrics{},
		Features:           features.FeatureMap{},
		Errors:             []string{},
	}

	for _, w := range windows {
		repo.CommitCounts[w] = 0
		repo.LOCStats[w] = LOCStats{}
		repo.UniqueContributors[w] = 0
	}

	return repo
}

// AddError records a non-fatal problem.
func (r *Repository) AddError(err error) {
	r.Errors = append(r.Errors, err.Error())
}

// Failed reports whether any error was recorded.
func (r *Repository) Failed() bool {
	return len(r.Errors) > 0
}

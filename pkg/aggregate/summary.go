package aggregate

import (
	"github.com/Sumatoshi-tech/repopulse/pkg/collector"
)

// Counts are the global totals of one run. Commit and line totals cover the
// primary window.
type Counts struct {
	TotalRepositories    int `json:"total_repositories"`
	ActiveRepositories   int `json:"active_repositories"`
	InactiveRepositories int `json:"inactive_repositories"`
	NoCommitRepositories int `json:"no_commit_repositories"`
	TotalCommits         int `json:"total_commits"`
	TotalLinesAdded      int `json:"total_lines_added"`
	TotalAuthors         int `json:"total_authors"`
	TotalOrganizations   int `json:"total_organizations"`
}

// Summaries holds the global counts, the activity distribution and every
// leaderboard, each already in final order.
type Summaries struct {
	PrimaryWindow           string                 `json:"primary_window"`
	Counts                  Counts                 `json:"counts"`
	ActivityDistribution    Distribution           `json:"activity_distribution"`
	TopActiveRepositories   []collector.Repository `json:"top_active_repositories"`
	LeastActiveRepositories []collector.Repository `json:"least_active_repositories"`
	LongestInactive         []collector.Repository `json:"longest_inactive"`
	AllRepositories         []collector.Repository `json:"all_repositories"`
	NoCommitRepositories    []collector.Repository `json:"no_commit_repositories"`
	TopContributorsCommits  []AuthorRollup         `json:"top_contributors_commits"`
	TopContributorsLOC      []AuthorRollup         `json:"top_contributors_loc"`
	TopOrganizations        []OrgRollup            `json:"top_organizations"`
}

func (e *Engine) summarize(repos []collector.Repository, authors []AuthorRollup, orgs []OrgRollup) Summaries {
	primary := e.opts.PrimaryWindow
	commitsPath := "commit_counts." + primary

	withHistory := make([]collector.Repository, 0, len(repos))
	inactive := make([]collector.Repository, 0, len(repos))
	noCommit := make([]collector.Repository, 0)

	counts := Counts{
		TotalRepositories:  len(repos),
		TotalAuthors:       len(authors),
		TotalOrganizations: len(orgs),
	}

	for _, repo := range repos {
		counts.TotalCommits += repo.CommitCounts[primary]
		counts.TotalLinesAdded += repo.LOCStats[primary].Added

		if !repo.HasAnyCommits {
			noCommit = append(noCommit, repo)

			continue
		}

		withHistory = append(withHistory, repo)

		if !repo.IsActive {
			inactive = append(inactive, repo)
		}
	}

	dist := ClassifyAndDistribute(repos, e.opts.AgeBuckets)
	counts.ActiveRepositories = dist.Active
	counts.InactiveRepositories = dist.Inactive
	counts.NoCommitRepositories = dist.NoCommit

	return Summaries{
		PrimaryWindow:           primary,
		Counts:                  counts,
		ActivityDistribution:    dist,
		TopActiveRepositories:   RankRepositories(withHistory, commitsPath, true, e.opts.TopN),
		LeastActiveRepositories: RankRepositories(withHistory, commitsPath, false, e.opts.BottomN),
		LongestInactive:         RankRepositories(inactive, daysSinceLastCommitPath, true, e.opts.BottomN),
		AllRepositories:         RankRepositories(withHistory, commitsPath, true, 0),
		NoCommitRepositories:    RankRepositories(noCommit, "name", false, 0),
		TopContributorsCommits:  RankN(authors, "commits."+primary, true, e.opts.TopN),
		TopContributorsLOC:      RankN(authors, "lines_net."+primary, true, e.opts.TopN),
		TopOrganizations:        RankN(orgs, "commits."+primary, true, e.opts.TopN),
	}
}

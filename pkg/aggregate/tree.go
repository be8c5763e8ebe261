package aggregate

import (
	"time"

	"github.com/Sumatoshi-tech/repopulse/pkg/collector"
	"github.com/Sumatoshi-tech/repopulse/pkg/features"
)

// RepositoryEntry adapts a collected record to Entity.
type RepositoryEntry collector.Repository

// Tree exposes the record's rankable fields.
func (r RepositoryEntry) Tree() Value {
	return RepositoryTree(collector.Repository(r))
}

// RepositoryTree builds the Value tree of a repository record. Feature results
// contribute their scalar fields only.
func RepositoryTree(r collector.Repository) Value {
	days := Null()
	if r.DaysSinceLastCommit != nil {
		days = Int(*r.DaysSinceLastCommit)
	}

	last := Null()
	if r.LastCommitTimestamp != nil {
		last = String(r.LastCommitTimestamp.UTC().Format(time.RFC3339))
	}

	loc := make(map[string]Value, len(r.LOCStats))
	for w, s := range r.LOCStats {
		loc[w] = Map(map[string]Value{
			"added":   Int(s.Added),
			"removed": Int(s.Removed),
			"net":     Int(s.Net),
		})
	}

	authors := make([]Value, 0, len(r.Authors))
	for _, a := range r.Authors {
		authors = append(authors, Map(map[string]Value{
			"name":          String(a.Name),
			"email":         String(a.Email),
			"username":      String(a.Username),
			"domain":        String(a.Domain),
			"commits":       IntMap(a.Commits),
			"lines_added":   IntMap(a.LinesAdded),
			"lines_removed": IntMap(a.LinesRemoved),
			"lines_net":     IntMap(a.LinesNet),
		}))
	}

	return Map(map[string]Value{
		"name":                   String(r.Name),
		"gerrit_project":         String(r.Name),
		"gerrit_host":            String(r.GerritHost),
		"path":                   String(r.Path),
		"last_commit_timestamp":  last,
		"days_since_last_commit": days,
		"is_active":              Bool(r.IsActive),
		"has_any_commits":        Bool(r.HasAnyCommits),
		"total_commits_ever":     Int(r.TotalCommitsEver),
		"commit_counts":          IntMap(r.CommitCounts),
		"loc_stats":              Map(loc),
		"unique_contributors":    IntMap(r.UniqueContributors),
		"authors":                List(authors...),
		"features":               featureTree(r.Features),
		"errors":                 Int(len(r.Errors)),
	})
}

func featureTree(fm features.FeatureMap) Value {
	out := make(map[string]Value, len(fm))

	for name, result := range fm {
		fields := make(map[string]Value, len(result))

		for key, raw := range result {
			if v, ok := scalar(raw); ok {
				fields[key] = v
			}
		}

		out[name] = Map(fields)
	}

	return Map(out)
}

func scalar(raw any) (Value, bool) {
	switch v := raw.(type) {
	case nil:
		return Null(), true
	case bool:
		return Bool(v), true
	case int:
		return Int(v), true
	case int64:
		return Number(float64(v)), true
	case float64:
		return Number(v), true
	case string:
		return String(v), true
	default:
		return Null(), false
	}
}

func repositoryEntries(repos []collector.Repository) []RepositoryEntry {
	out := make([]RepositoryEntry, len(repos))
	for i, r := range repos {
		out[i] = RepositoryEntry(r)
	}

	return out
}

func repositoryRecords(entries []RepositoryEntry) []collector.Repository {
	out := make([]collector.Repository, len(entries))
	for i, e := range entries {
		out[i] = collector.Repository(e)
	}

	return out
}

// RankRepositories ranks repository records by path. See RankN.
func RankRepositories(repos []collector.Repository, path string, reverse bool, limit int) []collector.Repository {
	return repositoryRecords(RankN(repositoryEntries(repos), path, reverse, limit))
}

package aggregate

import (
	"strings"

	"github.com/Sumatoshi-tech/repopulse/pkg/identity"
)

// OrgRollup is the activity of every author sharing an email domain.
type OrgRollup struct {
	Domain            string         `json:"domain"`
	ContributorCount  int            `json:"contributor_count"`
	Commits           map[string]int `json:"commits"`
	LinesAdded        map[string]int `json:"lines_added"`
	LinesRemoved      map[string]int `json:"lines_removed"`
	LinesNet          map[string]int `json:"lines_net"`
	RepositoriesCount map[string]int `json:"repositories_count"`
}

// Tree exposes the rollup's rankable fields.
func (o OrgRollup) Tree() Value {
	return Map(map[string]Value{
		"domain":             String(o.Domain),
		"contributor_count":  Int(o.ContributorCount),
		"commits":            IntMap(o.Commits),
		"lines_added":        IntMap(o.LinesAdded),
		"lines_removed":      IntMap(o.LinesRemoved),
		"lines_net":          IntMap(o.LinesNet),
		"repositories_count": IntMap(o.RepositoriesCount),
	})
}

type orgAcc struct {
	rollup       OrgRollup
	contributors map[string]struct{}
	repositories map[string]map[string]struct{}
}

// ComputeOrgRollups groups author rollups by domain and sums their window
// metrics. contributor_count is the number of distinct authors; a window's
// repositories_count is the union of the members' repositories. Authors
// without a usable domain are skipped.
func ComputeOrgRollups(authors []AuthorRollup) []OrgRollup {
	byDomain := map[string]*orgAcc{}

	var order []string

	for _, author := range authors {
		domain := strings.ToLower(strings.TrimSpace(author.Domain))
		if identity.IsUnknownDomain(domain) {
			continue
		}

		acc, seen := byDomain[domain]
		if !seen {
			acc = &orgAcc{
				rollup: OrgRollup{
					Domain:            domain,
					Commits:           map[string]int{},
					LinesAdded:        map[string]int{},
					LinesRemoved:      map[string]int{},
					LinesNet:          map[string]int{},
					RepositoriesCount: map[string]int{},
				},
				contributors: map[string]struct{}{},
				repositories: map[string]map[string]struct{}{},
			}
			byDomain[domain] = acc
			order = append(order, domain)
		}

		acc.add(author)
	}

	out := make([]OrgRollup, 0, len(order))
	for _, domain := range order {
		out = append(out, byDomain[domain].rollup)
	}

	return out
}

func (acc *orgAcc) add(author AuthorRollup) {
	acc.contributors[author.Email] = struct{}{}
	acc.rollup.ContributorCount = len(acc.contributors)

	for w, commits := range author.Commits {
		acc.rollup.Commits[w] += commits
	}

	for w, added := range author.LinesAdded {
		acc.rollup.LinesAdded[w] += added
	}

	for w, removed := range author.LinesRemoved {
		acc.rollup.LinesRemoved[w] += removed
	}

	for w, net := range author.LinesNet {
		acc.rollup.LinesNet[w] += net
	}

	for w := range author.RepositoriesCount {
		if acc.repositories[w] == nil {
			acc.repositories[w] = map[string]struct{}{}
		}

		for repo := range author.touched[w] {
			acc.repositories[w][repo] = struct{}{}
		}

		acc.rollup.RepositoriesCount[w] = len(acc.repositories[w])
	}
}

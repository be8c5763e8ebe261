package aggregate

import (
	"slices"
	"strings"

	"github.com/Sumatoshi-tech/repopulse/pkg/collector"
	"github.com/Sumatoshi-tech/repopulse/pkg/identity"
)

// AuthorRollup is one author's activity summed over every repository.
type AuthorRollup struct {
	Name              string         `json:"name"`
	Email             string         `json:"email"`
	Username          string         `json:"username"`
	Domain            string         `json:"domain"`
	Commits           map[string]int `json:"commits"`
	LinesAdded        map[string]int `json:"lines_added"`
	LinesRemoved      map[string]int `json:"lines_removed"`
	LinesNet          map[string]int `json:"lines_net"`
	RepositoriesCount map[string]int `json:"repositories_count"`

	touched map[string]map[string]struct{}
}

// Tree exposes the rollup's rankable fields.
func (a AuthorRollup) Tree() Value {
	return Map(map[string]Value{
		"name":               String(a.Name),
		"email":              String(a.Email),
		"username":           String(a.Username),
		"domain":             String(a.Domain),
		"commits":            IntMap(a.Commits),
		"lines_added":        IntMap(a.LinesAdded),
		"lines_removed":      IntMap(a.LinesRemoved),
		"lines_net":          IntMap(a.LinesNet),
		"repositories_count": IntMap(a.RepositoriesCount),
	})
}

func newAuthorRollup(m collector.AuthorMetrics, email string) *AuthorRollup {
	return &AuthorRollup{
		Name:              m.Name,
		Email:             email,
		Username:          m.Username,
		Domain:            m.Domain,
		Commits:           map[string]int{},
		LinesAdded:        map[string]int{},
		LinesRemoved:      map[string]int{},
		LinesNet:          map[string]int{},
		RepositoriesCount: map[string]int{},
		touched:           map[string]map[string]struct{}{},
	}
}

// ComputeAuthorRollups folds every repository's author metrics into one
// rollup per normalized email, in first-seen order. The first occurrence of
// an email fixes name, username and domain. repositories_count for a window
// counts the distinct repositories where the author has commits in it.
// Authors carrying the placeholder email, or no email, are skipped.
func ComputeAuthorRollups(repos []collector.Repository, placeholder string) []AuthorRollup {
	norm := identity.NewNormalizer(placeholder, nil)

	byEmail := map[string]*AuthorRollup{}

	var order []string

	for _, repo := range repos {
		for _, author := range repo.Authors {
			email := strings.ToLower(strings.TrimSpace(author.Email))
			if email == "" || norm.IsPlaceholder(email) {
				continue
			}

			rollup, seen := byEmail[email]
			if !seen {
				rollup = newAuthorRollup(author, email)
				byEmail[email] = rollup
				order = append(order, email)
			}

			rollup.fold(repo.Name, author)
		}
	}

	out := make([]AuthorRollup, 0, len(order))
	for _, email := range order {
		out = append(out, *byEmail[email])
	}

	return out
}

func (a *AuthorRollup) fold(repo string, m collector.AuthorMetrics) {
	for _, w := range metricWindows(m) {
		a.Commits[w] += m.Commits[w]
		a.LinesAdded[w] += m.LinesAdded[w]
		a.LinesRemoved[w] += m.LinesRemoved[w]
		a.LinesNet[w] = a.LinesAdded[w] - a.LinesRemoved[w]

		if a.touched[w] == nil {
			a.touched[w] = map[string]struct{}{}
		}

		if m.Commits[w] > 0 {
			a.touched[w][repo] = struct{}{}
		}

		a.RepositoriesCount[w] = len(a.touched[w])
	}
}

// metricWindows returns every window named by any of the author's maps.
func metricWindows(m collector.AuthorMetrics) []string {
	seen := map[string]struct{}{}

	for _, metrics := range []map[string]int{m.Commits, m.LinesAdded, m.LinesRemoved, m.LinesNet} {
		for w := range metrics {
			seen[w] = struct{}{}
		}
	}

	windows := make([]string, 0, len(seen))
	for w := range seen {
		windows = append(windows, w)
	}

	slices.Sort(windows)

	return windows
}

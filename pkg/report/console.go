package report

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
)

const consoleTopN = 10

// PrintSummary writes a short console digest of the run: counts, the top
// repositories and contributors, and any errors.
func PrintSummary(w io.Writer, snap *Snapshot, numbers NumberFormat) {
	c := snap.Summaries.Counts
	primary := snap.Summaries.PrimaryWindow

	header := color.New(color.FgCyan, color.Bold)
	header.Fprintf(w, "repopulse: %s\n", snap.Project)

	counts := table.NewWriter()
	counts.SetOutputMirror(w)
	counts.SetStyle(table.StyleLight)
	counts.AppendHeader(table.Row{"Metric", "Value"})
	counts.AppendRows([]table.Row{
		{"Repositories", numbers.Format(c.TotalRepositories)},
		{"Active", numbers.Format(c.ActiveRepositories)},
		{"Inactive", numbers.Format(c.InactiveRepositories)},
		{"No commits", numbers.Format(c.NoCommitRepositories)},
		{"Commits (" + primary + ")", numbers.Format(c.TotalCommits)},
		{"Contributors", numbers.Format(c.TotalAuthors)},
		{"Organizations", numbers.Format(c.TotalOrganizations)},
	})
	counts.Render()

	top := table.NewWriter()
	top.SetOutputMirror(w)
	top.SetStyle(table.StyleLight)
	top.SetTitle("Most active repositories")
	top.AppendHeader(table.Row{"#", "Repository", "Commits", "LOC"})

	for i, r := range snap.Summaries.TopActiveRepositories {
		if i == consoleTopN {
			break
		}

		top.AppendRow(table.Row{i + 1, r.Name, numbers.Format(r.CommitCounts[primary]), numbers.Signed(r.LOCStats[primary].Net)})
	}

	top.Render()

	people := table.NewWriter()
	people.SetOutputMirror(w)
	people.SetStyle(table.StyleLight)
	people.SetTitle("Top contributors")
	people.AppendHeader(table.Row{"#", "Contributor", "Commits", "Repositories"})

	for i, a := range snap.Summaries.TopContributorsCommits {
		if i == consoleTopN {
			break
		}

		people.AppendRow(table.Row{i + 1, a.Name, numbers.Format(a.Commits[primary]), a.RepositoriesCount[primary]})
	}

	people.Render()

	if len(snap.Errors) == 0 {
		color.New(color.FgGreen).Fprintln(w, "no collection errors")

		return
	}

	color.New(color.FgYellow).Fprintf(w, "%d collection errors:\n", len(snap.Errors))

	for _, e := range snap.Errors {
		fmt.Fprintf(w, "  - %s: %s\n", e.Repository, e.Error)
	}
}

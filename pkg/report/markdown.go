package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/Sumatoshi-tech/repopulse/pkg/aggregate"
	"github.com/Sumatoshi-tech/repopulse/pkg/collector"
	"github.com/Sumatoshi-tech/repopulse/pkg/features"
)

// Markdown section names usable in output.include_sections.
const (
	SectionSummary       = "summary"
	SectionOrganizations = "organizations"
	SectionContributors  = "contributors"
	SectionDistribution  = "inactive_distributions"
	SectionRepositories  = "all_repositories"
	SectionNoCommit      = "no_commit_repositories"
	SectionFeatureMatrix = "repo_feature_matrix"
	SectionWorkflows     = "workflows"
	SectionErrors        = "errors"
)

const (
	generatedLayout = "January 02, 2006 at 15:04 UTC"
	percent         = 100
	footer          = "Generated by repopulse"
)

// MarkdownOptions controls Markdown rendering.
type MarkdownOptions struct {
	Numbers               NumberFormat
	ActivityThresholdDays int
	AgeBuckets            aggregate.AgeBuckets
	// SectionEnabled reports whether an optional section is rendered. Nil
	// renders everything.
	SectionEnabled func(name string) bool
}

type markdownWriter struct {
	snap    *Snapshot
	opts    MarkdownOptions
	primary string
	b       strings.Builder
}

// RenderMarkdown writes the human-readable report. Lists appear in the order
// the snapshot holds them.
func RenderMarkdown(w io.Writer, snap *Snapshot, opts MarkdownOptions) error {
	mw := &markdownWriter{snap: snap, opts: opts, primary: snap.Summaries.PrimaryWindow}
	if mw.primary == "" {
		mw.primary = aggregate.DefaultPrimaryWindow
	}

	sections := []struct {
		name   string
		render func() string
	}{
		{"", mw.title},
		{SectionSummary, mw.summary},
		{SectionOrganizations, mw.organizations},
		{SectionContributors, mw.contributors},
		{SectionDistribution, mw.distribution},
		{SectionRepositories, mw.repositories},
		{SectionNoCommit, mw.noCommit},
		{SectionFeatureMatrix, mw.featureMatrix},
		{SectionWorkflows, mw.workflows},
		{SectionErrors, mw.errors},
		{"", func() string { return footer }},
	}

	var parts []string

	for _, s := range sections {
		if s.name != "" && opts.SectionEnabled != nil && !opts.SectionEnabled(s.name) {
			continue
		}

		if text := s.render(); strings.TrimSpace(text) != "" {
			parts = append(parts, text)
		}
	}

	_, err := io.WriteString(w, strings.Join(parts, "\n\n")+"\n")
	if err != nil {
		return fmt.Errorf("%w: write markdown: %w", ErrRender, err)
	}

	return nil
}

func (m *markdownWriter) num(n int) string {
	return m.opts.Numbers.Format(n)
}

func (m *markdownWriter) signed(n int) string {
	return m.opts.Numbers.Signed(n)
}

func (m *markdownWriter) title() string {
	generated := "Unknown"
	if !m.snap.GeneratedAt.IsZero() {
		generated = m.snap.GeneratedAt.UTC().Format(generatedLayout)
	}

	return fmt.Sprintf("# 📊 Repository Analysis Report: %s\n\n**Generated:** %s  \n**Schema Version:** %s  \n**Run ID:** `%s`",
		m.snap.Project, generated, m.snap.SchemaVersion, m.snap.RunID)
}

func share(part, total int) string {
	if total == 0 {
		return "0.0%"
	}

	return fmt.Sprintf("%.1f%%", float64(part)/float64(total)*percent)
}

func (m *markdownWriter) summary() string {
	c := m.snap.Summaries.Counts

	lines := []string{
		"## 📈 Global Summary",
		"",
		fmt.Sprintf("**✅ Active** commits within the last %d days  ", m.opts.ActivityThresholdDays),
		fmt.Sprintf("**☑️ Inactive** no commits in the last %d days  ", m.opts.ActivityThresholdDays),
		"**⚪ No commits** no history found",
		"",
		"| Metric | Count | Percentage |",
		"|--------|-------|------------|",
		fmt.Sprintf("| Total Repositories | %s | 100%% |", m.num(c.TotalRepositories)),
		fmt.Sprintf("| Active Repositories | %s | %s |", m.num(c.ActiveRepositories), share(c.ActiveRepositories, c.TotalRepositories)),
		fmt.Sprintf("| Inactive Repositories | %s | %s |", m.num(c.InactiveRepositories), share(c.InactiveRepositories, c.TotalRepositories)),
		fmt.Sprintf("| No Apparent Commits | %s | %s |", m.num(c.NoCommitRepositories), share(c.NoCommitRepositories, c.TotalRepositories)),
		fmt.Sprintf("| Total Commits (%s) | %s | - |", m.primary, m.num(c.TotalCommits)),
		fmt.Sprintf("| Lines Added (%s) | %s | - |", m.primary, m.num(c.TotalLinesAdded)),
		fmt.Sprintf("| Contributors | %s | - |", m.num(c.TotalAuthors)),
		fmt.Sprintf("| Organizations | %s | - |", m.num(c.TotalOrganizations)),
	}

	return strings.Join(lines, "\n")
}

func avgPerCommit(net, commits int) string {
	if commits <= 0 {
		return "-"
	}

	return fmt.Sprintf("%+.1f", float64(net)/float64(commits))
}

func (m *markdownWriter) organizations() string {
	orgs := m.snap.Summaries.TopOrganizations
	if len(orgs) == 0 {
		return "## 🏢 Organizations\n\nNo organization data available."
	}

	lines := []string{
		"## 🏢 Top Organizations (" + m.primary + ")",
		"",
		fmt.Sprintf("**Organizations Found:** %s", m.num(m.snap.Summaries.Counts.TotalOrganizations)),
		"",
		"| Rank | Organization | Contributors | Commits | LOC | Δ LOC | Avg LOC/Commit | Unique Repositories |",
		"|------|--------------|--------------|---------|-----|-------|----------------|---------------------|",
	}

	for i, org := range orgs {
		commits := org.Commits[m.primary]
		net := org.LinesNet[m.primary]
		delta := org.LinesAdded[m.primary] + org.LinesRemoved[m.primary]

		lines = append(lines, fmt.Sprintf("| %d | %s | %s | %s | %s | %s | %s | %s |",
			i+1, escapeCell(org.Domain), m.num(org.ContributorCount), m.num(commits), m.signed(net),
			m.num(delta), avgPerCommit(net, commits), m.num(org.RepositoriesCount[m.primary])))
	}

	return strings.Join(lines, "\n")
}

// contributorRows merges both contributor leaderboards: the commit board in
// its order, then LOC-board entries it lacks, in theirs.
func contributorRows(byCommits, byLOC []aggregate.AuthorRollup) []aggregate.AuthorRollup {
	seen := make(map[string]struct{}, len(byCommits))
	rows := make([]aggregate.AuthorRollup, 0, len(byCommits)+len(byLOC))

	for _, list := range [][]aggregate.AuthorRollup{byCommits, byLOC} {
		for _, a := range list {
			if _, dup := seen[a.Email]; dup {
				continue
			}

			seen[a.Email] = struct{}{}
			rows = append(rows, a)
		}
	}

	return rows
}

func (m *markdownWriter) contributors() string {
	rows := contributorRows(m.snap.Summaries.TopContributorsCommits, m.snap.Summaries.TopContributorsLOC)

	lines := []string{
		"## 👥 Top Contributors (" + m.primary + ")",
		"",
		fmt.Sprintf("**Contributors Found:** %s", m.num(m.snap.Summaries.Counts.TotalAuthors)),
	}

	if len(rows) == 0 {
		return strings.Join(append(lines, "", "No contributor data available."), "\n")
	}

	lines = append(lines,
		"",
		"| Rank | Contributor | Commits | LOC | Δ LOC | Avg LOC/Commit | Repositories | Organization |",
		"|------|-------------|---------|-----|-------|----------------|--------------|--------------|",
	)

	for i, a := range rows {
		commits := a.Commits[m.primary]
		net := a.LinesNet[m.primary]
		delta := a.LinesAdded[m.primary] + a.LinesRemoved[m.primary]

		org := a.Domain
		if org == "" || org == "unknown" {
			org = "-"
		}

		lines = append(lines, fmt.Sprintf("| %d | %s | %s | %s | %s | %s | %s | %s |",
			i+1, escapeCell(a.Name), m.num(commits), m.signed(net), m.num(delta),
			avgPerCommit(net, commits), m.num(a.RepositoriesCount[m.primary]), escapeCell(org)))
	}

	return strings.Join(lines, "\n")
}

func (m *markdownWriter) distribution() string {
	d := m.snap.Summaries.ActivityDistribution
	b := m.opts.AgeBuckets

	lines := []string{
		"## 📅 Repository Activity Distribution",
		"",
		fmt.Sprintf("**Active:** %s · **Inactive:** %s · **No commits:** %s", m.num(d.Active), m.num(d.Inactive), m.num(d.NoCommit)),
	}

	buckets := []struct {
		title   string
		entries []aggregate.RepositoryAge
	}{
		{fmt.Sprintf("### Very Old (%g+ years)", b.VeryOldYears), d.Bucket(aggregate.BucketVeryOld)},
		{fmt.Sprintf("### Old (%g-%g years)", b.OldYears, b.VeryOldYears), d.Bucket(aggregate.BucketOld)},
		{fmt.Sprintf("### Recently Inactive (under %g years)", b.OldYears), d.Bucket(aggregate.BucketRecentInactive)},
	}

	for _, bucket := range buckets {
		lines = append(lines, "", bucket.title, "")

		if len(bucket.entries) == 0 {
			lines = append(lines, "No repositories in this category.")

			continue
		}

		lines = append(lines,
			"| Repository | Days Inactive | Age |",
			"|------------|---------------|-----|",
		)

		for _, e := range bucket.entries {
			days := e.DaysSinceLastCommit

			daysText := m.num(days)
			if days >= aggregate.MissingDaysSortValue {
				daysText = "N/A"
			}

			lines = append(lines, fmt.Sprintf("| %s | %s | %s |", escapeCell(e.Name), daysText, FormatAge(&days)))
		}
	}

	return strings.Join(lines, "\n")
}

func lastCommitDate(r collector.Repository) string {
	if r.LastCommitTimestamp == nil {
		return "Unknown"
	}

	return r.LastCommitTimestamp.UTC().Format(time.DateOnly)
}

func (m *markdownWriter) repositories() string {
	repos := m.snap.Summaries.AllRepositories
	if len(repos) == 0 {
		return "## 📊 Repositories\n\nNo repositories found."
	}

	lines := []string{
		"## 📊 Repositories",
		"",
		"| Repository | Commits | LOC | Contributors | Days Inactive | Last Commit Date | Status |",
		"|------------|---------|-----|--------------|---------------|------------------|--------|",
	}

	for _, r := range repos {
		days := "N/A"
		if r.DaysSinceLastCommit != nil {
			days = m.num(*r.DaysSinceLastCommit)
		}

		lines = append(lines, fmt.Sprintf("| %s | %s | %s | %s | %s | %s | %s |",
			escapeCell(r.Name), m.num(r.CommitCounts[m.primary]), m.signed(r.LOCStats[m.primary].Net),
			m.num(r.UniqueContributors[m.primary]), days, lastCommitDate(r), ActivityGlyph(r.IsActive, r.HasAnyCommits)))
	}

	lines = append(lines, "", fmt.Sprintf("**Total:** %d repositories", len(repos)))

	return strings.Join(lines, "\n")
}

func (m *markdownWriter) noCommit() string {
	repos := m.snap.Summaries.NoCommitRepositories
	if len(repos) == 0 {
		return ""
	}

	lines := []string{
		"## 📝 Repositories with No Apparent Commits",
		"",
		"**WARNING:** every repository should hold at least one commit. The repositories below may be empty or failed to scan.",
		"",
		"| Repository | Errors |",
		"|------------|--------|",
	}

	for _, r := range repos {
		lines = append(lines, fmt.Sprintf("| %s | %d |", escapeCell(r.Name), len(r.Errors)))
	}

	lines = append(lines, "", fmt.Sprintf("**Total:** %d repositories with no apparent commits", len(repos)))

	return strings.Join(lines, "\n")
}

// matrixRepositories lists repositories with history first, then those
// without, both in snapshot order.
func (m *markdownWriter) matrixRepositories() []collector.Repository {
	s := m.snap.Summaries
	out := make([]collector.Repository, 0, len(s.AllRepositories)+len(s.NoCommitRepositories))

	return append(append(out, s.AllRepositories...), s.NoCommitRepositories...)
}

func primaryType(fm features.FeatureMap) string {
	res, ran := fm[features.CheckProjectTypes]
	if !ran {
		return notApplicable
	}

	if t, ok := res["primary_type"].(string); ok && t != "" {
		return t
	}

	return "unknown"
}

func primaryLanguage(fm features.FeatureMap) string {
	res, ran := fm[features.CheckLanguages]
	if !ran {
		return notApplicable
	}

	if lang, ok := res["primary"].(string); ok && lang != "" {
		return lang
	}

	return "-"
}

func (m *markdownWriter) featureMatrix() string {
	repos := m.matrixRepositories()
	if len(repos) == 0 {
		return "## 🔧 Repository Feature Matrix\n\nNo repositories analyzed."
	}

	columns := []struct {
		title string
		check string
	}{
		{"Dependabot", features.CheckDependabot},
		{"Pre-commit", features.CheckPreCommit},
		{"ReadTheDocs", features.CheckReadTheDocs},
		{".gitreview", features.CheckGitReview},
		{"G2G", features.CheckG2G},
		{"Sonatype", features.CheckSonatype},
	}

	header := "| Repository | Type | Language |"
	rule := "|------------|------|----------|"

	for _, c := range columns {
		header += " " + c.title + " |"
		rule += strings.Repeat("-", len(c.title)+2) + "|"
	}

	lines := []string{"## 🔧 Repository Feature Matrix", "", header + " Status |", rule + "--------|"}

	for _, r := range repos {
		row := fmt.Sprintf("| %s | %s | %s |",
			escapeCell(r.Name), escapeCell(primaryType(r.Features)), escapeCell(primaryLanguage(r.Features)))
		for _, c := range columns {
			res, ok := r.Features[c.check]
			row += " " + FeatureGlyph(res, ok) + " |"
		}

		lines = append(lines, row+" "+ActivityGlyph(r.IsActive, r.HasAnyCommits)+" |")
	}

	return strings.Join(lines, "\n")
}

func workflowCount(fm features.FeatureMap, key string) int {
	switch v := fm[features.CheckWorkflows][key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

func (m *markdownWriter) workflows() string {
	var lines []string

	for _, r := range m.matrixRepositories() {
		_, ran := r.Features[features.CheckWorkflows]

		count := workflowCount(r.Features, "count")

		jobs := 0
		if r.Jenkins != nil {
			jobs = r.Jenkins.JobCount
		}

		if count == 0 && r.GitHub == nil && jobs == 0 {
			continue
		}

		status := "-"
		if r.GitHub != nil {
			status = r.GitHub.OverallStatus
		}

		name := escapeCell(r.Name)
		if count > 0 && mirrorMissing(r.Features) {
			name = "⚠️ " + name
		}

		total, verify, merge := notApplicable, notApplicable, notApplicable
		if ran {
			total = strconv.Itoa(count)
			verify = strconv.Itoa(classifiedCount(r.Features, "verify"))
			merge = strconv.Itoa(classifiedCount(r.Features, "merge"))
		}

		lines = append(lines, fmt.Sprintf("| %s | %s | %s | %s | %s | %d |", name, total, verify, merge, status, jobs))
	}

	if len(lines) == 0 {
		return ""
	}

	head := []string{
		"## 🏁 CI Workflows",
		"",
		"| Repository | Workflows | Verify | Merge | GitHub Status | Jenkins Jobs |",
		"|------------|-----------|--------|-------|---------------|--------------|",
	}

	return strings.Join(append(head, lines...), "\n")
}

// mirrorMissing reports whether the repository has workflows but no GitHub
// mirror to run them.
func mirrorMissing(fm features.FeatureMap) bool {
	reason, _ := fm[features.CheckGitHubMirror]["reason"].(string)

	return reason == features.MirrorNotFound
}

func classifiedCount(fm features.FeatureMap, class string) int {
	switch v := fm[features.CheckWorkflows]["classified"].(type) {
	case map[string]int:
		return v[class]
	case map[string]any:
		if f, ok := v[class].(float64); ok {
			return int(f)
		}
	}

	return 0
}

func (m *markdownWriter) errors() string {
	errs := m.snap.Errors
	if len(errs) == 0 {
		return ""
	}

	lines := []string{
		"## ⚠️ Appendix: Errors",
		"",
		"| Repository | Error |",
		"|------------|-------|",
	}

	for _, e := range errs {
		lines = append(lines, fmt.Sprintf("| %s | %s |", escapeCell(e.Repository), escapeCell(e.Error)))
	}

	return strings.Join(lines, "\n")
}

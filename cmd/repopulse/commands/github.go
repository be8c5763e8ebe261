package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Sumatoshi-tech/repopulse/pkg/enrich"
	"github.com/Sumatoshi-tech/repopulse/pkg/report"
)

const (
	githubOrgEnv   = "GITHUB_ORG"
	stepSummaryEnv = "GITHUB_STEP_SUMMARY"
)

// Sources of a resolved GitHub organization.
const (
	OrgFromEnv    = "env"
	OrgFromConfig = "config"
	OrgFromPath   = "path"
)

var hostPrefixes = []string{"gerrit.", "git."}

// ResolveGitHubOrg picks the GitHub organization: GITHUB_ORG first, then
// the configured value, then a gerrit.<org>.<tld> or git.<org>.<tld>
// component of reposPath. It returns "" when none applies.
func ResolveGitHubOrg(configured, reposPath string, lookupEnv func(string) (string, bool)) (org, source string) {
	if env, ok := lookupEnv(githubOrgEnv); ok && env != "" {
		return env, OrgFromEnv
	}

	if configured != "" {
		return configured, OrgFromConfig
	}

	for _, part := range strings.Split(filepath.ToSlash(filepath.Clean(reposPath)), "/") {
		lower := strings.ToLower(part)

		for _, prefix := range hostPrefixes {
			if !strings.HasPrefix(lower, prefix) {
				continue
			}

			labels := strings.Split(part[len(prefix):], ".")
			if len(labels) >= 2 {
				return strings.Join(labels[:len(labels)-1], "."), OrgFromPath
			}
		}
	}

	return "", ""
}

// AppendStepSummary appends a short run digest to the GitHub Actions step
// summary file at path. An empty path is a no-op.
func AppendStepSummary(path string, snap *report.Snapshot, stats *enrich.Stats) error {
	if path == "" {
		return nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open step summary: %w", err)
	}

	c := snap.Summaries.Counts

	var b strings.Builder

	fmt.Fprintf(&b, "\n## 📊 Repository report for %s\n\n", snap.Project)
	fmt.Fprintf(&b, "- **Repositories:** %d (%d active, %d inactive, %d without commits)\n",
		c.TotalRepositories, c.ActiveRepositories, c.InactiveRepositories, c.NoCommitRepositories)
	fmt.Fprintf(&b, "- **Contributors:** %d across %d organizations\n", c.TotalAuthors, c.TotalOrganizations)
	fmt.Fprintf(&b, "- **Errors:** %d\n", len(snap.Errors))
	fmt.Fprintf(&b, "- **Config Digest:** `%s...`\n", snap.ConfigDigest[:min(shortDigest, len(snap.ConfigDigest))])

	if stats != nil && len(stats.Summary()) > 0 {
		fmt.Fprintf(&b, "\n### API statistics\n\n```\n%s```\n", stats.Format())
	}

	_, writeErr := f.WriteString(b.String())

	return errors.Join(writeErr, f.Close())
}

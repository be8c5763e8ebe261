package features

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
)

// CheckGitHubMirror reports whether a repository has a GitHub mirror.
const CheckGitHubMirror = "github_mirror"

// Reasons recorded by the github_mirror check.
const (
	MirrorVerified     = "verified"
	MirrorNotFound     = "not_found_on_github"
	MirrorNotVerified  = "not_verified"
	MirrorNoIndicators = "no_github_indicators"
	MirrorUnknownName  = "cannot_determine_github_info"
)

const gitConfigPath = ".git/config"

var githubRemote = regexp.MustCompile(
	`(?m)^\s*url\s*=\s*(?:https?://(?:[^@/\s]+@)?github\.com/|git@github\.com:|ssh://git@github\.com/)([^/\s]+)/([^/\s]+?)(?:\.git)?/?\s*$`)

// MirrorVerifier confirms that a GitHub repository exists.
type MirrorVerifier interface {
	RepositoryExists(ctx context.Context, owner, repo string) (bool, error)
}

type mirrorCheck struct {
	org      string
	verifier MirrorVerifier
}

// check looks for a github.com remote or GitHub workflows. The mirror name
// comes from the remote, or else from the configured organization and the
// dashed repository name. Without a verifier a resolvable mirror is reported
// present but not verified.
func (m mirrorCheck) check(ctx context.Context, t Target) (Result, error) {
	gitConfig, _ := fs.ReadFile(t.FS, gitConfigPath)

	if !bytes.Contains(bytes.ToLower(gitConfig), []byte("github.com")) && !hasWorkflowDir(t.FS) {
		return mirrorResult(false, "", "", MirrorNoIndicators), nil
	}

	owner, repo := remoteOwnerRepo(gitConfig)
	if owner == "" && m.org != "" {
		owner, repo = m.org, strings.ReplaceAll(strings.Trim(t.Name, "/"), "/", "-")
	}

	if owner == "" || repo == "" {
		return mirrorResult(false, owner, repo, MirrorUnknownName), nil
	}

	if m.verifier == nil {
		return mirrorResult(true, owner, repo, MirrorNotVerified), nil
	}

	exists, err := m.verifier.RepositoryExists(ctx, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("verify %s/%s: %w", owner, repo, err)
	}

	if !exists {
		return mirrorResult(false, owner, repo, MirrorNotFound), nil
	}

	res := mirrorResult(true, owner, repo, MirrorVerified)
	res["exists"] = true

	return res, nil
}

func mirrorResult(present bool, owner, repo, reason string) Result {
	return Result{KeyPresent: present, "exists": false, "owner": owner, "repo": repo, "reason": reason}
}

func hasWorkflowDir(fsys fs.FS) bool {
	entries, err := fs.ReadDir(fsys, workflowsDir)

	return err == nil && len(entries) > 0
}

// remoteOwnerRepo extracts owner and repository from the first github.com
// remote URL in a git config file.
func remoteOwnerRepo(gitConfig []byte) (owner, repo string) {
	match := githubRemote.FindSubmatch(gitConfig)
	if match == nil {
		return "", ""
	}

	return string(match[1]), string(match[2])
}

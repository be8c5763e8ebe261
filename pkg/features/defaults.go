package features

import (
	"log/slog"
)

// DefaultVerifyPatterns and DefaultMergePatterns classify workflows when none are configured.
var (
	DefaultVerifyPatterns = []string{"verify", "test", "ci", "check"}
	DefaultMergePatterns  = []string{"merge", "release", "deploy", "publish"}
)

// Options configures the built-in checks.
type Options struct {
	VerifyPatterns []string
	MergePatterns  []string
	// GitHubOrg names mirrors of repositories without a github.com remote.
	GitHubOrg string
	// Mirrors confirms mirrors exist; nil leaves them unverified.
	Mirrors MirrorVerifier
	Logger  *slog.Logger
}

// NewDefaultRegistry returns a registry with every built-in check registered.
func NewDefaultRegistry(opts Options) *Registry {
	verify := opts.VerifyPatterns
	if len(verify) == 0 {
		verify = DefaultVerifyPatterns
	}

	merge := opts.MergePatterns
	if len(merge) == 0 {
		merge = DefaultMergePatterns
	}

	classifier := NewWorkflowClassifier(verify, merge)

	r := NewRegistry(opts.Logger)
	r.Register(NewCheck(CheckDependabot, checkDependabot))
	r.Register(NewCheck(CheckGitHub2Gerrit, checkGitHub2Gerrit))
	r.Register(NewCheck(CheckG2G, checkG2G))
	r.Register(NewCheck(CheckPreCommit, checkPreCommit))
	r.Register(NewCheck(CheckReadTheDocs, checkReadTheDocs))
	r.Register(NewCheck(CheckSonatype, checkSonatype))
	r.Register(NewCheck(CheckProjectTypes, checkProjectTypes))
	r.Register(NewCheck(CheckWorkflows, classifier.check))
	r.Register(NewCheck(CheckGitReview, checkGitReview))
	r.Register(NewCheck(CheckLanguages, checkLanguages))
	r.Register(NewCheck(CheckGitHubMirror, mirrorCheck{org: opts.GitHubOrg, verifier: opts.Mirrors}.check))

	return r
}

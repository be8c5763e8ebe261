package features_test

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/repopulse/pkg/features"
)

func file(content string) *fstest.MapFile {
	return &fstest.MapFile{Data: []byte(content)}
}

func runOne(t *testing.T, name string, target features.Target) features.Result {
	t.Helper()

	r := features.NewDefaultRegistry(features.Options{})
	got := r.Run(context.Background(), target, []string{name})

	res, ok := got[name]
	require.True(t, ok)
	require.Empty(t, res.Err())

	return res
}

func TestDependabot(t *testing.T) {
	t.Parallel()

	res := runOne(t, features.CheckDependabot, features.Target{FS: fstest.MapFS{
		".github/dependabot.yaml": file("version: 2\n"),
	}})

	assert.True(t, res.Present())
	assert.Equal(t, []string{".github/dependabot.yaml"}, res["files"])

	res = runOne(t, features.CheckDependabot, features.Target{FS: fstest.MapFS{}})
	assert.False(t, res.Present())
}

func TestGitHub2GerritWorkflow(t *testing.T) {
	t.Parallel()

	res := runOne(t, features.CheckGitHub2Gerrit, features.Target{FS: fstest.MapFS{
		".github/workflows/sync.yml":  file("name: Push to Gerrit\n"),
		".github/workflows/build.yml": file("name: build\n"),
	}})

	assert.True(t, res.Present())
	assert.Equal(t, []map[string]string{{"file": "sync.yml", "pattern": "gerrit"}}, res["workflows"])
}

func TestG2G(t *testing.T) {
	t.Parallel()

	res := runOne(t, features.CheckG2G, features.Target{FS: fstest.MapFS{
		".github/workflows/call-github2gerrit.yaml": file("on: pull_request\n"),
	}})

	assert.True(t, res.Present())
	assert.Equal(t, ".github/workflows/call-github2gerrit.yaml", res["file_path"])

	res = runOne(t, features.CheckG2G, features.Target{FS: fstest.MapFS{}})
	assert.False(t, res.Present())
	assert.Nil(t, res["file_path"])
}

func TestPreCommit_ReposCount(t *testing.T) {
	t.Parallel()

	cfg := `repos:
  - repo: https://github.com/pre-commit/pre-commit-hooks
    rev: v4.0.0
    hooks:
      - id: trailing-whitespace
  - repo: https://github.com/psf/black
    rev: 23.1.0
    hooks:
      - id: black
`

	res := runOne(t, features.CheckPreCommit, features.Target{FS: fstest.MapFS{
		".pre-commit-config.yaml": file(cfg),
	}})

	assert.True(t, res.Present())
	assert.Equal(t, ".pre-commit-config.yaml", res["config_file"])
	assert.Equal(t, 2, res["repos_count"])
}

func TestReadTheDocs_FirstGroupWinsType(t *testing.T) {
	t.Parallel()

	res := runOne(t, features.CheckReadTheDocs, features.Target{FS: fstest.MapFS{
		"docs/conf.py": file(""),
		"mkdocs.yml":   file(""),
	}})

	assert.True(t, res.Present())
	assert.Equal(t, "sphinx", res["config_type"])
	assert.Equal(t, []string{"docs/conf.py", "mkdocs.yml"}, res["config_files"])
}

func TestSonatype(t *testing.T) {
	t.Parallel()

	res := runOne(t, features.CheckSonatype, features.Target{FS: fstest.MapFS{"lift.toml": file("")}})

	assert.True(t, res.Present())
	assert.Equal(t, []string{"lift.toml"}, res["config_files"])
}

func TestGitReview(t *testing.T) {
	t.Parallel()

	res := runOne(t, features.CheckGitReview, features.Target{FS: fstest.MapFS{
		".gitreview": file("[gerrit]\nhost=gerrit.example.org\nport = 29418\n# comment\nproject=foo/bar.git\n"),
	}})

	assert.True(t, res.Present())
	assert.Equal(t, map[string]string{
		"host":    "gerrit.example.org",
		"port":    "29418",
		"project": "foo/bar.git",
	}, res["config"])

	res = runOne(t, features.CheckGitReview, features.Target{FS: fstest.MapFS{}})
	assert.False(t, res.Present())
}

func TestProjectTypes(t *testing.T) {
	t.Parallel()

	res := runOne(t, features.CheckProjectTypes, features.Target{Name: "svc", FS: fstest.MapFS{
		"go.mod":        file("module x\n"),
		"go.sum":        file(""),
		"Dockerfile":    file("FROM scratch\n"),
		"App.csproj":    file(""),
		"src/inner.sln": file(""),
	}})

	assert.True(t, res.Present())
	assert.Equal(t, []string{"docker", "go", "dotnet"}, res["detected_types"])
	assert.Equal(t, "go", res["primary_type"])

	details, ok := res["details"].([]features.TypeDetail)
	require.True(t, ok)
	assert.Equal(t, features.TypeDetail{Type: "dotnet", Files: []string{"App.csproj"}, Confidence: 1}, details[2])
}

func TestProjectTypes_CIManagement(t *testing.T) {
	t.Parallel()

	res := runOne(t, features.CheckProjectTypes, features.Target{Name: "ci-management", FS: fstest.MapFS{"pom.xml": file("")}})

	assert.Equal(t, "jjb", res["primary_type"])
	assert.Equal(t, []string{"jjb"}, res["detected_types"])
}

func TestProjectTypes_DocumentationFallback(t *testing.T) {
	t.Parallel()

	res := runOne(t, features.CheckProjectTypes, features.Target{Name: "user-guide", FS: fstest.MapFS{"README.md": file("")}})

	assert.Equal(t, "documentation", res["primary_type"])

	res = runOne(t, features.CheckProjectTypes, features.Target{Name: "misc", FS: fstest.MapFS{"notes.bin": file("")}})
	assert.False(t, res.Present())
	assert.Nil(t, res["primary_type"])
}

func TestLanguages(t *testing.T) {
	t.Parallel()

	res := runOne(t, features.CheckLanguages, features.Target{FS: fstest.MapFS{
		"main.go":           file("package main\n"),
		"pkg/util.go":       file("package pkg\n"),
		"README.md":         file("# readme\n"),
		"vendor/dep/dep.go": file("package dep\n"),
		".git/config":       file(""),
		"assets/blob":       file("\x00\x01\x02"),
	}})

	assert.True(t, res.Present())
	assert.Equal(t, "Go", res["primary"])

	shares, ok := res["languages"].([]features.LanguageShare)
	require.True(t, ok)
	assert.Equal(t, features.LanguageShare{Language: "Go", Files: 2}, shares[0])

	total := 0
	for _, s := range shares {
		total += s.Files
	}

	assert.LessOrEqual(t, total, 3)
}

type fakeMirrors struct {
	known map[string]bool
	err   error
}

func (f fakeMirrors) RepositoryExists(_ context.Context, owner, repo string) (bool, error) {
	return f.known[owner+"/"+repo], f.err
}

func runMirror(t *testing.T, opts features.Options, target features.Target) features.Result {
	t.Helper()

	got := features.NewDefaultRegistry(opts).Run(context.Background(), target, []string{features.CheckGitHubMirror})

	res, ok := got[features.CheckGitHubMirror]
	require.True(t, ok)

	return res
}

func TestGitHubMirror_NoIndicators(t *testing.T) {
	t.Parallel()

	res := runMirror(t, features.Options{GitHubOrg: "example"}, features.Target{Name: "aai/babel", FS: fstest.MapFS{
		".git/config": file("[remote \"origin\"]\n\turl = https://gerrit.example.org/r/aai/babel\n"),
	}})

	assert.False(t, res.Present())
	assert.Equal(t, features.MirrorNoIndicators, res["reason"])
}

func TestGitHubMirror_RemoteURL(t *testing.T) {
	t.Parallel()

	target := features.Target{Name: "tools", FS: fstest.MapFS{
		".git/config": file("[remote \"origin\"]\n\turl = git@github.com:acme/tools.git\n"),
	}}

	res := runMirror(t, features.Options{}, target)
	assert.True(t, res.Present())
	assert.Equal(t, "acme", res["owner"])
	assert.Equal(t, "tools", res["repo"])
	assert.Equal(t, features.MirrorNotVerified, res["reason"])

	res = runMirror(t, features.Options{Mirrors: fakeMirrors{known: map[string]bool{"acme/tools": true}}}, target)
	assert.True(t, res.Present())
	assert.Equal(t, true, res["exists"])
	assert.Equal(t, features.MirrorVerified, res["reason"])
}

func TestGitHubMirror_InferredFromOrgAndWorkflows(t *testing.T) {
	t.Parallel()

	target := features.Target{Name: "aai/babel", FS: fstest.MapFS{
		".github/workflows/verify.yaml": file("name: verify\n"),
	}}

	res := runMirror(t, features.Options{GitHubOrg: "onap", Mirrors: fakeMirrors{}}, target)
	assert.False(t, res.Present())
	assert.Equal(t, "onap", res["owner"])
	assert.Equal(t, "aai-babel", res["repo"])
	assert.Equal(t, features.MirrorNotFound, res["reason"])

	res = runMirror(t, features.Options{}, target)
	assert.False(t, res.Present())
	assert.Equal(t, features.MirrorUnknownName, res["reason"])
}

func TestGitHubMirror_VerifierFailureIsRecorded(t *testing.T) {
	t.Parallel()

	target := features.Target{Name: "tools", FS: fstest.MapFS{
		".git/config": file("\turl = https://github.com/acme/tools\n"),
	}}

	res := runMirror(t, features.Options{Mirrors: fakeMirrors{err: errors.New("rate limited")}}, target)
	assert.Contains(t, res.Err(), "rate limited")
}

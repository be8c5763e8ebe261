package features

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io/fs"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Built-in check names.
const (
	CheckDependabot    = "dependabot"
	CheckGitHub2Gerrit = "github2gerrit_workflow"
	CheckG2G           = "g2g"
	CheckPreCommit     = "pre_commit"
	CheckReadTheDocs   = "readthedocs"
	CheckSonatype      = "sonatype_config"
	CheckProjectTypes  = "project_types"
	CheckWorkflows     = "workflows"
	CheckGitReview     = "gitreview"
	CheckLanguages     = "languages"
)

const workflowsDir = ".github/workflows"

var preCommitRepoLine = regexp.MustCompile(`(?m)^\s*-\s*repo:`)

// exists reports whether name exists in fsys. Errors other than not-exist
// count as absent.
func exists(fsys fs.FS, name string) bool {
	_, err := fs.Stat(fsys, name)

	return err == nil
}

func isDir(fsys fs.FS, name string) bool {
	info, err := fs.Stat(fsys, name)

	return err == nil && info.IsDir()
}

func existing(fsys fs.FS, candidates []string) []string {
	found := []string{}

	for _, name := range candidates {
		if exists(fsys, name) {
			found = append(found, name)
		}
	}

	return found
}

// workflowFiles lists .yml then .yaml files directly under .github/workflows.
func workflowFiles(fsys fs.FS) []string {
	var files []string

	for _, pattern := range []string{workflowsDir + "/*.yml", workflowsDir + "/*.yaml"} {
		matches, err := fs.Glob(fsys, pattern)
		if err != nil {
			continue
		}

		files = append(files, matches...)
	}

	return files
}

func baseName(p string) string {
	if idx := strings.LastIndexByte(p, '/'); idx >= 0 {
		return p[idx+1:]
	}

	return p
}

func checkDependabot(_ context.Context, t Target) (Result, error) {
	found := existing(t.FS, []string{".github/dependabot.yml", ".github/dependabot.yaml"})

	return Result{KeyPresent: len(found) > 0, "files": found}, nil
}

var gerritPatterns = []string{
	"gerrit",
	"review",
	"submit",
	"replication",
	"github2gerrit",
	"gerrit-review",
	"gerrit-submit",
}

func checkGitHub2Gerrit(_ context.Context, t Target) (Result, error) {
	matching := []map[string]string{}

	for _, file := range workflowFiles(t.FS) {
		content, err := fs.ReadFile(t.FS, file)
		if err != nil {
			continue
		}

		lower := strings.ToLower(string(content))

		for _, pattern := range gerritPatterns {
			if strings.Contains(lower, pattern) {
				matching = append(matching, map[string]string{"file": baseName(file), "pattern": pattern})

				break
			}
		}
	}

	return Result{KeyPresent: len(matching) > 0, "workflows": matching}, nil
}

func checkG2G(_ context.Context, t Target) (Result, error) {
	found := existing(t.FS, []string{
		workflowsDir + "/github2gerrit.yaml",
		workflowsDir + "/call-github2gerrit.yaml",
	})

	var first any
	if len(found) > 0 {
		first = found[0]
	}

	return Result{KeyPresent: len(found) > 0, "file_paths": found, "file_path": first}, nil
}

type preCommitConfig struct {
	Repos []yaml.Node `yaml:"repos"`
}

func checkPreCommit(_ context.Context, t Target) (Result, error) {
	found := existing(t.FS, []string{".pre-commit-config.yaml", ".pre-commit-config.yml"})
	if len(found) == 0 {
		return Result{KeyPresent: false, "config_file": nil}, nil
	}

	res := Result{KeyPresent: true, "config_file": found[0]}

	content, err := fs.ReadFile(t.FS, found[0])
	if err != nil {
		return res, nil
	}

	var cfg preCommitConfig
	if yaml.Unmarshal(content, &cfg) == nil {
		res["repos_count"] = len(cfg.Repos)
	} else {
		res["repos_count"] = len(preCommitRepoLine.FindAll(content, -1))
	}

	return res, nil
}

func checkReadTheDocs(_ context.Context, t Target) (Result, error) {
	groups := []struct {
		kind  string
		files []string
	}{
		{"readthedocs", []string{".readthedocs.yml", ".readthedocs.yaml", "readthedocs.yml", "readthedocs.yaml"}},
		{"sphinx", []string{"docs/conf.py", "doc/conf.py", "documentation/conf.py"}},
		{"mkdocs", []string{"mkdocs.yml", "mkdocs.yaml"}},
	}

	found := []string{}

	var configType any

	for _, g := range groups {
		matched := existing(t.FS, g.files)
		if len(matched) > 0 && configType == nil {
			configType = g.kind
		}

		found = append(found, matched...)
	}

	return Result{KeyPresent: len(found) > 0, "config_type": configType, "config_files": found}, nil
}

func checkSonatype(_ context.Context, t Target) (Result, error) {
	found := existing(t.FS, []string{
		".sonatype-lift.yaml",
		".sonatype-lift.yml",
		"lift.toml",
		"lifecycle.json",
		".lift.toml",
		"sonatype-lift.yml",
		"sonatype-lift.yaml",
	})

	return Result{KeyPresent: len(found) > 0, "config_files": found}, nil
}

func checkGitReview(_ context.Context, t Target) (Result, error) {
	content, err := fs.ReadFile(t.FS, ".gitreview")
	if errors.Is(err, fs.ErrNotExist) {
		return Result{KeyPresent: false, "file": nil, "config": map[string]string{}}, nil
	}

	config := map[string]string{}

	if err == nil {
		config = ParseGitReview(content)
	}

	return Result{KeyPresent: true, "file": ".gitreview", "config": config}, nil
}

// ParseGitReview reads key=value lines, ignoring comments, blank lines and
// section headers.
func ParseGitReview(content []byte) map[string]string {
	config := map[string]string{}

	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}

		config[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	return config
}

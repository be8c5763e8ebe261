package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/repopulse/internal/config"
	"github.com/Sumatoshi-tech/repopulse/pkg/enrich"
	"github.com/Sumatoshi-tech/repopulse/pkg/features"
	"github.com/Sumatoshi-tech/repopulse/pkg/pipeline"
	"github.com/Sumatoshi-tech/repopulse/pkg/timewindow"
)

var now = time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

// fakeSource serves logs by working copy base name. A log of "panic"
// makes Log panic.
type fakeSource struct {
	mu    sync.Mutex
	logs  map[string]string
	calls map[string]int
}

func newFakeSource(logs map[string]string) *fakeSource {
	return &fakeSource{logs: logs, calls: map[string]int{}}
}

func (f *fakeSource) Log(_ context.Context, dir string) ([]byte, error) {
	name := filepath.Base(dir)

	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()

	log, ok := f.logs[name]

	switch {
	case !ok:
		return nil, errors.New("fatal: not a git repository")
	case log == "panic":
		panic("corrupt pack")
	default:
		return []byte(log), nil
	}
}

func (f *fakeSource) Head(_ context.Context, dir string) (string, error) {
	return "head-" + filepath.Base(dir), nil
}

func (f *fakeSource) LastCommitDate(context.Context, string) (time.Time, error) {
	return time.Time{}, errors.New("no date")
}

func (f *fakeSource) logCalls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls[name]
}

type countingProgress struct {
	added    atomic.Int32
	finished atomic.Int32
}

func (p *countingProgress) Add(n int) error {
	p.added.Add(int32(n))

	return nil
}

func (p *countingProgress) Finish() error {
	p.finished.Add(1)

	return nil
}

func commitLog(email string, daysAgo int) string {
	at := now.AddDate(0, 0, -daysAgo).Format("2006-01-02 15:04:05 -0700")

	return fmt.Sprintf("aaaaaaa1|%s|Alice|%s|subject\n12\t2\tmain.go\n", at, email)
}

func newEnv(t *testing.T, cfg *config.Config) pipeline.Env {
	t.Helper()

	set, err := timewindow.Compute(cfg.TimeWindows, now)
	require.NoError(t, err)

	return pipeline.Env{Config: cfg, Windows: set, Now: now}
}

func targetsIn(t *testing.T, root string, names ...string) []pipeline.Target {
	t.Helper()

	out := make([]pipeline.Target, 0, len(names))
	for _, name := range names {
		out = append(out, pipeline.Target{Name: name, Path: mkGitDir(t, root, name)})
	}

	return out
}

func TestComputeWindows_BadDaysIsConfigError(t *testing.T) {
	t.Parallel()

	cfg := config.Default("demo")
	cfg.TimeWindows = map[string]int{"last_30_days": 30, "broken": 0}

	_, err := pipeline.ComputeWindows(cfg, now)
	require.ErrorIs(t, err, config.ErrConfig)
	require.ErrorIs(t, err, timewindow.ErrInvalidDays)

	cfg.TimeWindows = map[string]int{"last_30_days": 30}

	windows, err := pipeline.ComputeWindows(cfg, now)
	require.NoError(t, err)
	assert.Equal(t, []string{"last_30_days"}, windows.Names())
}

func TestRunner_IsolatesFailures(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	targets := targetsIn(t, root, "good", "broken", "boom")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "good", ".github"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "good", ".github", "dependabot.yml"), []byte("version: 2\n"), 0o600))

	cfg := config.Default("demo")
	cfg.Performance.MaxWorkers = 2

	src := newFakeSource(map[string]string{
		"good": commitLog("alice@example.org", 5),
		"boom": "panic",
	})

	runner, err := pipeline.NewRunner(newEnv(t, cfg), src)
	require.NoError(t, err)

	t.Cleanup(func() { runner.Close() })

	progress := &countingProgress{}
	result := runner.Run(context.Background(), targets, progress)

	require.Len(t, result.Repositories, 3)
	assert.Equal(t, "good", result.Repositories[0].Name)
	assert.Equal(t, "broken", result.Repositories[1].Name)
	assert.Equal(t, "boom", result.Repositories[2].Name)

	good := result.Repositories[0]
	assert.Empty(t, good.Errors)
	assert.Equal(t, 1, good.CommitCounts["last_30_days"])
	assert.True(t, good.Features[features.CheckDependabot].Present())

	assert.NotEmpty(t, result.Repositories[1].Errors)
	require.Len(t, result.Repositories[2].Errors, 1)
	assert.Contains(t, result.Repositories[2].Errors[0], pipeline.ErrWorkerPanic.Error())

	assert.Len(t, result.Report.Errors, 2)
	assert.Equal(t, 3, result.Report.Summaries.Counts.TotalRepositories)
	assert.Equal(t, 1, result.Report.Summaries.Counts.ActiveRepositories)
	assert.Equal(t, 1, result.Report.Summaries.Counts.TotalAuthors)

	assert.Equal(t, int32(3), progress.added.Load())
	assert.Equal(t, int32(1), progress.finished.Load())
	assert.Nil(t, runner.APIStats())
}

func TestRunner_CancelledContext(t *testing.T) {
	t.Parallel()

	targets := targetsIn(t, t.TempDir(), "one", "two")
	src := newFakeSource(map[string]string{"one": commitLog("a@example.org", 1), "two": commitLog("b@example.org", 1)})

	runner, err := pipeline.NewRunner(newEnv(t, config.Default("demo")), src)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := runner.Run(ctx, targets, nil)

	for _, rec := range result.Repositories {
		assert.Equal(t, []string{context.Canceled.Error()}, rec.Errors)
	}

	assert.Zero(t, src.logCalls("one"))
}

func TestRunner_CacheSkipsSecondScan(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	targets := targetsIn(t, root, "cached")
	src := newFakeSource(map[string]string{"cached": commitLog("a@example.org", 3)})

	cfg := config.Default("demo")
	cfg.Performance.Cache = true
	cfg.Performance.CacheDir = filepath.Join(root, ".cache")

	for range 2 {
		runner, err := pipeline.NewRunner(newEnv(t, cfg), src)
		require.NoError(t, err)

		result := runner.Run(context.Background(), targets, nil)
		require.NoError(t, runner.Close())

		assert.Equal(t, 1, result.Repositories[0].TotalCommitsEver)
	}

	assert.Equal(t, 1, src.logCalls("cached"))
}

func TestRunner_GerritAndJenkinsEnrichment(t *testing.T) {
	t.Parallel()

	gerritMux := http.NewServeMux()
	gerritMux.HandleFunc("/projects/", func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, ")]}'\n"+`{"aai/babel":{"id":"aai%2Fbabel","state":"ACTIVE"},"old/tool":{"id":"old%2Ftool","state":"READ_ONLY"}}`)
	})

	gerrit := httptest.NewServer(gerritMux)
	t.Cleanup(gerrit.Close)

	jenkinsMux := http.NewServeMux()
	jenkinsMux.HandleFunc("/api/json", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"jobs":[{"name":"aai-babel-verify"},{"name":"old-tool-merge"},{"name":"lf-infra-packer"}]}`)
	})
	jenkinsMux.HandleFunc("/job/aai-babel-verify/api/json", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"color":"blue","buildable":true}`)
	})
	jenkinsMux.HandleFunc("/job/aai-babel-verify/lastBuild/api/json", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"number":3,"result":"SUCCESS"}`)
	})

	jenkins := httptest.NewServer(jenkinsMux)
	t.Cleanup(jenkins.Close)

	root := t.TempDir()
	targets := targetsIn(t, root, "aai/babel", "ccsdk")

	cfg := config.Default("demo")
	cfg.Gerrit.Enabled = true
	cfg.Gerrit.BaseURL = gerrit.URL
	cfg.Jenkins.Enabled = true
	cfg.Jenkins.BaseURL = jenkins.URL

	src := newFakeSource(map[string]string{
		"babel": commitLog("a@example.org", 2),
		"ccsdk": commitLog("b@example.org", 2),
	})

	runner, err := pipeline.NewRunner(newEnv(t, cfg), src)
	require.NoError(t, err)

	t.Cleanup(func() { runner.Close() })

	result := runner.Run(context.Background(), targets, nil)
	require.Len(t, result.Repositories, 2)

	babel := result.Repositories[0]
	require.NotNil(t, babel.Gerrit)
	assert.Equal(t, enrich.GerritStateActive, babel.Gerrit.State)
	require.NotNil(t, babel.Jenkins)
	assert.Equal(t, 1, babel.Jenkins.JobCount)
	assert.Equal(t, enrich.StatusSuccess, babel.Jenkins.Jobs[0].Status)

	ccsdk := result.Repositories[1]
	assert.Nil(t, ccsdk.Gerrit)
	require.NotNil(t, ccsdk.Jenkins)
	assert.False(t, ccsdk.Jenkins.HasJobs)

	alloc := result.JenkinsAllocation
	require.NotNil(t, alloc)
	assert.Equal(t, 3, alloc.TotalJobs)
	assert.Equal(t, 1, alloc.AllocatedJobs)
	assert.Equal(t, "old/tool", alloc.Orphaned["old-tool-merge"].Project)
	assert.Equal(t, []string{"lf-infra-packer"}, alloc.Infrastructure)

	require.NotNil(t, runner.APIStats())
	assert.False(t, runner.APIStats().HasErrors())
}

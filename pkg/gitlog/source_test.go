package gitlog_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/repopulse/pkg/gitlog"
)

func initRepo(t *testing.T) string {
	t.Helper()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}

	dir := t.TempDir()

	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=Alice", "GIT_AUTHOR_EMAIL=alice@example.com",
			"GIT_COMMITTER_NAME=Alice", "GIT_COMMITTER_EMAIL=alice@example.com",
			"GIT_AUTHOR_DATE=2024-03-01T10:00:00Z", "GIT_COMMITTER_DATE=2024-03-01T10:00:00Z",
		)
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}

	run("init", "-q")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("one\ntwo\n"), 0o600))
	run("add", "a.txt")
	run("-c", "commit.gpgsign=false", "commit", "-q", "-m", "initial")

	return dir
}

func TestExecSource_LogHeadDate(t *testing.T) {
	t.Parallel()

	dir := initRepo(t)
	src := gitlog.NewExecSource(time.Minute)
	ctx := context.Background()

	raw, err := src.Log(ctx, dir)
	require.NoError(t, err)

	commits, warnings := gitlog.Parse(strings.NewReader(string(raw)), gitlog.ParseOptions{})
	require.Empty(t, warnings)
	require.Len(t, commits, 1)
	assert.Equal(t, "initial", commits[0].Subject)
	assert.Equal(t, 2, commits[0].Added())

	head, err := src.Head(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, commits[0].Hash, head)

	date, err := src.LastCommitDate(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC), date)
}

func TestExecSource_NotARepository(t *testing.T) {
	t.Parallel()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}

	src := gitlog.NewExecSource(time.Minute)

	_, err := src.Head(context.Background(), t.TempDir())
	assert.ErrorIs(t, err, gitlog.ErrGitCommand)
}

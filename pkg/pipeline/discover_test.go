package pipeline_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/repopulse/pkg/pipeline"
)

func mkGitDir(t *testing.T, root, rel string) string {
	t.Helper()

	dir := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git", "objects"), 0o755))

	return dir
}

func names(targets []pipeline.Target) []string {
	out := make([]string, 0, len(targets))
	for _, tg := range targets {
		out = append(out, tg.Name)
	}

	return out
}

func TestDiscover_DeepestFirstThenByPath(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	mkGitDir(t, root, "ric-plt/e2")
	mkGitDir(t, root, "ric-plt")
	mkGitDir(t, root, "alpha")
	mkGitDir(t, root, "ric-app/kpimon")

	worktree := filepath.Join(root, "linked")
	require.NoError(t, os.MkdirAll(worktree, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(worktree, ".git"), []byte("gitdir: ../x\n"), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "plain", "dir"), 0o755))

	targets, err := pipeline.Discover(root, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"ric-app/kpimon", "ric-plt/e2", "alpha", "linked", "ric-plt"}, names(targets))
	assert.Equal(t, filepath.Join(root, "ric-plt", "e2"), targets[1].Path)
}

func TestDiscover_RootIsRepository(t *testing.T) {
	t.Parallel()

	root := mkGitDir(t, t.TempDir(), "solo")

	targets, err := pipeline.Discover(root, nil)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, "solo", targets[0].Name)
	assert.Equal(t, root, targets[0].Path)
}

func TestDiscover_Exclude(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	mkGitDir(t, root, "keep")
	mkGitDir(t, root, "vendor/dep")
	mkGitDir(t, root, "archive/old/one")

	targets, err := pipeline.Discover(root, []string{"vendor", "archive/**"})
	require.NoError(t, err)
	assert.Equal(t, []string{"keep"}, names(targets))
}

func TestDiscover_Errors(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	file := filepath.Join(root, "file")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	tests := []struct {
		name    string
		root    string
		exclude []string
	}{
		{"missing root", filepath.Join(root, "missing"), nil},
		{"root is a file", file, nil},
		{"bad pattern", root, []string{"[unclosed"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := pipeline.Discover(tt.root, tt.exclude)
			require.ErrorIs(t, err, pipeline.ErrDiscovery)
		})
	}
}

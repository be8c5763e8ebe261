package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/repopulse/internal/config"
)

func loadDigest(t *testing.T, template string) string {
	t.Helper()

	dir := t.TempDir()
	writeFile(t, dir, "template.config", template)

	cfg, err := config.LoadConfig(config.LoadOptions{ConfigDir: dir, Project: "demo"})
	require.NoError(t, err)

	digest, err := cfg.Digest()
	require.NoError(t, err)

	return digest
}

func TestDigest_KeyOrderIndependent(t *testing.T) {
	t.Parallel()

	first := loadDigest(t, `activity_threshold_days: 200
output:
  top_n_repos: 12
  bottom_n_repos: 7
time_windows:
  last_30_days: 30
  last_365_days: 365
`)
	second := loadDigest(t, `time_windows:
  last_365_days: 365
  last_30_days: 30
output:
  bottom_n_repos: 7
  top_n_repos: 12
activity_threshold_days: 200
`)

	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
}

func TestDigest_ChangedValue_DiffersFromOriginal(t *testing.T) {
	t.Parallel()

	first := loadDigest(t, "activity_threshold_days: 200\n")
	second := loadDigest(t, "activity_threshold_days: 201\n")

	assert.NotEqual(t, first, second)
}

func TestDigest_NestedMapsSorted(t *testing.T) {
	t.Parallel()

	a := map[string]any{"b": 1, "a": map[string]any{"y": 2, "x": 3}}
	b := map[string]any{"a": map[string]any{"x": 3, "y": 2}, "b": 1}

	da, err := config.Digest(a)
	require.NoError(t, err)

	db, err := config.Digest(b)
	require.NoError(t, err)

	assert.Equal(t, da, db)
}

func TestDigest_SecretChange_DoesNotAffectDigest(t *testing.T) {
	t.Parallel()

	first := loadDigest(t, "extensions:\n  github_api:\n    token: one\n")
	second := loadDigest(t, "extensions:\n  github_api:\n    token: two\n")

	assert.Equal(t, first, second)
}

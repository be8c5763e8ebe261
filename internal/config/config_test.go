package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/repopulse/internal/config"
)

func TestValidate_Defaults_NoError(t *testing.T) {
	t.Parallel()

	cfg := config.Default("demo")
	require.NoError(t, cfg.Validate())
}

func TestValidate_MissingProject_ReturnsError(t *testing.T) {
	t.Parallel()

	cfg := config.Default("")

	err := cfg.Validate()
	require.ErrorIs(t, err, config.ErrMissingProject)
	assert.ErrorIs(t, err, config.ErrConfig)
}

func TestValidate_NonPositiveWindow_ReturnsError(t *testing.T) {
	t.Parallel()

	cfg := config.Default("demo")
	cfg.TimeWindows["broken"] = 0

	err := cfg.Validate()
	require.ErrorIs(t, err, config.ErrInvalidTimeWindow)
	assert.ErrorIs(t, err, config.ErrConfig)
}

func TestValidate_UnknownPrimaryWindow_ReturnsError(t *testing.T) {
	t.Parallel()

	cfg := config.Default("demo")
	cfg.PrimaryWindow = "last_week"

	assert.ErrorIs(t, cfg.Validate(), config.ErrUnknownPrimaryWindow)
}

func TestValidate_NonPositiveActivityThreshold_ReturnsError(t *testing.T) {
	t.Parallel()

	cfg := config.Default("demo")
	cfg.ActivityThresholdDays = 0

	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidActivityThreshold)
}

func TestValidate_InvertedAgeBuckets_ReturnsError(t *testing.T) {
	t.Parallel()

	cfg := config.Default("demo")
	cfg.AgeBuckets.OldYears = 4
	cfg.AgeBuckets.VeryOldYears = 2

	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidAgeBuckets)
}

func TestValidate_NegativeTopN_ReturnsError(t *testing.T) {
	t.Parallel()

	cfg := config.Default("demo")
	cfg.Output.BottomNRepos = -1

	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidTopN)
}

func TestValidate_ZeroWorkers_ReturnsError(t *testing.T) {
	t.Parallel()

	cfg := config.Default("demo")
	cfg.Performance.MaxWorkers = 0

	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidWorkers)
}

func TestValidate_UnknownLogFormat_ReturnsError(t *testing.T) {
	t.Parallel()

	cfg := config.Default("demo")
	cfg.Logging.Format = "xml"

	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidLogFormat)
}

func TestValidate_GitHubEnabledWithoutRate_ReturnsError(t *testing.T) {
	t.Parallel()

	cfg := config.Default("demo")
	cfg.Extensions.GitHubAPI.Enabled = true
	cfg.Extensions.GitHubAPI.RateLimit = 0

	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidRateLimit)
}

func TestSectionEnabled_UnlistedIsOn(t *testing.T) {
	t.Parallel()

	out := config.OutputConfig{IncludeSections: map[string]bool{"contributors": false}}

	assert.False(t, out.SectionEnabled("contributors"))
	assert.True(t, out.SectionEnabled("organizations"))
}

func TestGitHubToken_FallsBackToEnv(t *testing.T) {
	t.Parallel()

	cfg := config.Default("demo")
	lookup := func(name string) (string, bool) {
		if name == config.DefaultGitHubTokenEnvName {
			return "from-env", true
		}

		return "", false
	}

	assert.Equal(t, "from-env", cfg.GitHubToken(lookup))

	cfg.Extensions.GitHubAPI.Token = "from-config"
	assert.Equal(t, "from-config", cfg.GitHubToken(lookup))
}

func TestValidate_GerritEnabledWithoutHost_ReturnsError(t *testing.T) {
	t.Parallel()

	cfg := config.Default("demo")
	cfg.Gerrit.Enabled = true

	require.ErrorIs(t, cfg.Validate(), config.ErrMissingGerritHost)
	require.ErrorIs(t, cfg.Validate(), config.ErrConfig)

	cfg.Gerrit.Host = "gerrit.example.org"
	require.NoError(t, cfg.Validate())
}

func TestJenkinsEndpoint_EnvTakesPrecedence(t *testing.T) {
	t.Parallel()

	noEnv := func(string) (string, bool) { return "", false }
	withEnv := func(name string) (string, bool) {
		if name == config.JenkinsHostEnvName {
			return "jenkins.env.example.org", true
		}

		return "", false
	}

	cfg := config.Default("demo")
	cfg.Jenkins.Host = "jenkins.example.org"
	cfg.Jenkins.BaseURL = "http://127.0.0.1:8080"

	host, base := cfg.JenkinsEndpoint(noEnv)
	assert.Empty(t, host)
	assert.Empty(t, base)

	host, base = cfg.JenkinsEndpoint(withEnv)
	assert.Equal(t, "jenkins.env.example.org", host)
	assert.Empty(t, base)

	cfg.Jenkins.Enabled = true

	host, base = cfg.JenkinsEndpoint(noEnv)
	assert.Equal(t, "jenkins.example.org", host)
	assert.Equal(t, "http://127.0.0.1:8080", base)

	host, _ = cfg.JenkinsEndpoint(withEnv)
	assert.Equal(t, "jenkins.env.example.org", host)
}

// Package config loads and validates repopulse run configuration.
package config

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// Log output formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config is the effective, merged configuration of one run.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Project               string              `mapstructure:"project"`
	TimeWindows           map[string]int      `mapstructure:"time_windows"`
	PrimaryWindow         string              `mapstructure:"primary_window"`
	ActivityThresholdDays int                 `mapstructure:"activity_threshold_days"`
	AgeBuckets            AgeBucketsConfig    `mapstructure:"age_buckets"`
	Output                OutputConfig        `mapstructure:"output"`
	Render                RenderConfig        `mapstructure:"render"`
	DataQuality           DataQualityConfig   `mapstructure:"data_quality"`
	Features              FeaturesConfig      `mapstructure:"features"`
	Workflows             WorkflowsConfig     `mapstructure:"workflows"`
	Performance           PerformanceConfig   `mapstructure:"performance"`
	Logging               LoggingConfig       `mapstructure:"logging"`
	Organizations         OrganizationsConfig `mapstructure:"organizations"`
	Extensions            ExtensionsConfig    `mapstructure:"extensions"`
	Gerrit                GerritConfig        `mapstructure:"gerrit"`
	Jenkins               JenkinsConfig       `mapstructure:"jenkins"`
	Telemetry             TelemetryConfig     `mapstructure:"telemetry"`

	settings map[string]any
}

// AgeBucketsConfig holds the year thresholds for inactive repository buckets.
type AgeBucketsConfig struct {
	VeryOldYears float64 `mapstructure:"very_old_years"`
	OldYears     float64 `mapstructure:"old_years"`
}

// OutputConfig controls leaderboard sizes and produced artifacts.
type OutputConfig struct {
	TopNRepos       int             `mapstructure:"top_n_repos"`
	BottomNRepos    int             `mapstructure:"bottom_n_repos"`
	NoHTML          bool            `mapstructure:"no_html"`
	NoZip           bool            `mapstructure:"no_zip"`
	IncludeSections map[string]bool `mapstructure:"include_sections"`
}

// SectionEnabled reports whether a Markdown section is enabled. Unlisted sections are on.
func (o OutputConfig) SectionEnabled(name string) bool {
	enabled, ok := o.IncludeSections[name]

	return !ok || enabled
}

// RenderConfig holds presentation knobs.
type RenderConfig struct {
	AbbreviateLargeNumbers bool `mapstructure:"abbreviate_large_numbers"`
	LargeNumberThreshold   int  `mapstructure:"large_number_threshold"`
}

// DataQualityConfig holds identity and numstat normalization knobs.
type DataQualityConfig struct {
	UnknownEmailPlaceholder string `mapstructure:"unknown_email_placeholder"`
	SkipBinaryChanges       bool   `mapstructure:"skip_binary_changes"`
}

// FeaturesConfig lists enabled feature checks in no particular order.
type FeaturesConfig struct {
	Enabled []string `mapstructure:"enabled"`
}

// WorkflowsConfig holds CI workflow classification patterns.
type WorkflowsConfig struct {
	Classify ClassifyConfig `mapstructure:"classify"`
}

// ClassifyConfig holds the name fragments used to score workflows.
type ClassifyConfig struct {
	Verify []string `mapstructure:"verify"`
	Merge  []string `mapstructure:"merge"`
}

// PerformanceConfig holds resource knobs.
type PerformanceConfig struct {
	MaxWorkers int           `mapstructure:"max_workers"`
	Cache      bool          `mapstructure:"cache"`
	CacheDir   string        `mapstructure:"cache_dir"`
	GitTimeout time.Duration `mapstructure:"git_timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// OrganizationsConfig controls how email domains fold into organizations.
type OrganizationsConfig struct {
	PreserveFullDomain []string          `mapstructure:"preserve_full_domain"`
	CustomMappings     map[string]string `mapstructure:"custom_mappings"`
}

// ExtensionsConfig holds optional remote enrichments.
type ExtensionsConfig struct {
	GitHubAPI GitHubAPIConfig `mapstructure:"github_api"`
}

// GitHubAPIConfig configures workflow status enrichment.
type GitHubAPIConfig struct {
	Enabled   bool    `mapstructure:"enabled"`
	Token     string  `mapstructure:"token"`
	Org       string  `mapstructure:"github_org"`
	BaseURL   string  `mapstructure:"base_url"`
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`
}

// GerritConfig configures project metadata lookups against a Gerrit server.
type GerritConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Host    string        `mapstructure:"host"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// JenkinsConfig configures job lookups against a Jenkins server.
type JenkinsConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Host    string        `mapstructure:"host"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
}

// Sentinel errors for configuration validation. All of them match ErrConfig.
var (
	// ErrConfig is the class of every configuration error; it aborts a run before collection.
	ErrConfig = errors.New("config error")
	// ErrInvalidTimeWindow indicates a window with a non-positive or non-integer day count.
	ErrInvalidTimeWindow = fmt.Errorf("%w: time window days must be a positive integer", ErrConfig)
	// ErrUnknownPrimaryWindow indicates primary_window names no configured window.
	ErrUnknownPrimaryWindow = fmt.Errorf("%w: primary_window is not a configured time window", ErrConfig)
	// ErrInvalidActivityThreshold indicates a non-positive activity threshold.
	ErrInvalidActivityThreshold = fmt.Errorf("%w: activity_threshold_days must be positive", ErrConfig)
	// ErrInvalidAgeBuckets indicates non-positive or inverted age bucket thresholds.
	ErrInvalidAgeBuckets = fmt.Errorf("%w: age_buckets require 0 < old_years <= very_old_years", ErrConfig)
	// ErrInvalidTopN indicates a negative leaderboard size.
	ErrInvalidTopN = fmt.Errorf("%w: output.top_n_repos and output.bottom_n_repos must be non-negative", ErrConfig)
	// ErrInvalidWorkers indicates a non-positive worker count.
	ErrInvalidWorkers = fmt.Errorf("%w: performance.max_workers must be positive", ErrConfig)
	// ErrInvalidLogFormat indicates an unsupported log format.
	ErrInvalidLogFormat = fmt.Errorf("%w: logging.format must be text or json", ErrConfig)
	// ErrInvalidRateLimit indicates a non-positive API rate limit.
	ErrInvalidRateLimit = fmt.Errorf("%w: extensions.github_api.rate_limit must be positive", ErrConfig)
	// ErrMissingGerritHost indicates Gerrit lookups were enabled without a server.
	ErrMissingGerritHost = fmt.Errorf("%w: gerrit.host or gerrit.base_url is required when gerrit is enabled", ErrConfig)
	// ErrMissingProject indicates no project name was given.
	ErrMissingProject = fmt.Errorf("%w: project name is required", ErrConfig)
)

// Validate checks Config invariants and returns the first error found.
func (c *Config) Validate() error {
	if c.Project == "" {
		return ErrMissingProject
	}

	windowsErr := c.validateWindows()
	if windowsErr != nil {
		return windowsErr
	}

	thresholdsErr := c.validateThresholds()
	if thresholdsErr != nil {
		return thresholdsErr
	}

	if c.Performance.MaxWorkers <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, c.Performance.MaxWorkers)
	}

	if !slices.Contains([]string{LogFormatText, LogFormatJSON}, c.Logging.Format) {
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Logging.Format)
	}

	if c.Extensions.GitHubAPI.Enabled && c.Extensions.GitHubAPI.RateLimit <= 0 {
		return ErrInvalidRateLimit
	}

	if c.Gerrit.Enabled && c.Gerrit.Host == "" && c.Gerrit.BaseURL == "" {
		return ErrMissingGerritHost
	}

	return nil
}

func (c *Config) validateWindows() error {
	for name, days := range c.TimeWindows {
		if days <= 0 {
			return fmt.Errorf("%w: %s=%d", ErrInvalidTimeWindow, name, days)
		}
	}

	if len(c.TimeWindows) > 0 && c.PrimaryWindow != "" {
		if _, ok := c.TimeWindows[c.PrimaryWindow]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownPrimaryWindow, c.PrimaryWindow)
		}
	}

	return nil
}

func (c *Config) validateThresholds() error {
	if c.ActivityThresholdDays <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidActivityThreshold, c.ActivityThresholdDays)
	}

	if c.AgeBuckets.OldYears <= 0 || c.AgeBuckets.VeryOldYears < c.AgeBuckets.OldYears {
		return fmt.Errorf("%w: old=%g very_old=%g",
			ErrInvalidAgeBuckets, c.AgeBuckets.OldYears, c.AgeBuckets.VeryOldYears)
	}

	if c.Output.TopNRepos < 0 || c.Output.BottomNRepos < 0 {
		return ErrInvalidTopN
	}

	return nil
}

// Settings returns the merged raw settings tree the Config was decoded from.
// It is nil for configs built in code.
func (c *Config) Settings() map[string]any {
	return c.settings
}

// GitHubToken returns the configured API token, falling back to the conventional env var.
func (c *Config) GitHubToken(lookupEnv func(string) (string, bool)) string {
	if c.Extensions.GitHubAPI.Token != "" {
		return c.Extensions.GitHubAPI.Token
	}

	if lookupEnv == nil {
		return ""
	}

	token, _ := lookupEnv(DefaultGitHubTokenEnvName)

	return token
}

// JenkinsEndpoint returns the Jenkins server to query. Both values are empty
// when Jenkins lookups are off. The JENKINS_HOST environment variable enables
// them on its own and takes precedence over the jenkins section.
func (c *Config) JenkinsEndpoint(lookupEnv func(string) (string, bool)) (host, baseURL string) {
	if lookupEnv != nil {
		if envHost, ok := lookupEnv(JenkinsHostEnvName); ok && envHost != "" {
			return envHost, ""
		}
	}

	if !c.Jenkins.Enabled {
		return "", ""
	}

	return c.Jenkins.Host, c.Jenkins.BaseURL
}

// Default returns a Config populated with built-in defaults for the given project.
func Default(project string) *Config {
	return &Config{
		Project:               project,
		TimeWindows:           DefaultTimeWindows(),
		PrimaryWindow:         DefaultPrimaryWindow,
		ActivityThresholdDays: DefaultActivityThresholdDays,
		AgeBuckets: AgeBucketsConfig{
			VeryOldYears: DefaultVeryOldYears,
			OldYears:     DefaultOldYears,
		},
		Output: OutputConfig{
			TopNRepos:    DefaultTopNRepos,
			BottomNRepos: DefaultBottomNRepos,
			NoHTML:       DefaultNoHTML,
			NoZip:        DefaultNoZip,
		},
		Render: RenderConfig{
			AbbreviateLargeNumbers: DefaultAbbreviateLargeNumbers,
			LargeNumberThreshold:   DefaultLargeNumberThreshold,
		},
		DataQuality: DataQualityConfig{
			UnknownEmailPlaceholder: DefaultUnknownEmailPlaceholder,
			SkipBinaryChanges:       DefaultSkipBinaryChanges,
		},
		Features: FeaturesConfig{Enabled: DefaultFeatures()},
		Workflows: WorkflowsConfig{Classify: ClassifyConfig{
			Verify: DefaultVerifyPatterns(),
			Merge:  DefaultMergePatterns(),
		}},
		Performance: PerformanceConfig{
			MaxWorkers: DefaultMaxWorkers,
			Cache:      DefaultCacheEnabled,
			CacheDir:   DefaultCacheDir,
			GitTimeout: DefaultGitTimeout,
		},
		Logging: LoggingConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
		Extensions: ExtensionsConfig{GitHubAPI: GitHubAPIConfig{
			Enabled:   DefaultGitHubAPIEnabled,
			RateLimit: DefaultGitHubRateLimit,
			RateBurst: DefaultGitHubRateBurst,
		}},
		Gerrit:  GerritConfig{Timeout: DefaultAPITimeout},
		Jenkins: JenkinsConfig{Timeout: DefaultAPITimeout},
	}
}

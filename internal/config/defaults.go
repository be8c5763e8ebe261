package config

import "time"

// Default time windows keyed by name.
const (
	DefaultWindowLast30Days  = 30
	DefaultWindowLast90Days  = 90
	DefaultWindowLast365Days = 365
	DefaultWindowLast3Years  = 1095
)

// DefaultPrimaryWindow is the window used for leaderboards and summary counts.
const DefaultPrimaryWindow = "last_365_days"

// Activity and age classification defaults.
const (
	DefaultActivityThresholdDays = 365
	DefaultVeryOldYears          = 3.0
	DefaultOldYears              = 1.0
)

// Output defaults.
const (
	DefaultTopNRepos    = 30
	DefaultBottomNRepos = 30
	DefaultNoHTML       = false
	DefaultNoZip        = false
	DefaultOutputDir    = "reports"
)

// Render defaults.
const (
	DefaultAbbreviateLargeNumbers = true
	DefaultLargeNumberThreshold   = 10000
)

// Data quality defaults.
const (
	DefaultUnknownEmailPlaceholder = "unknown@unknown"
	DefaultSkipBinaryChanges       = true
)

// Performance defaults.
const (
	DefaultMaxWorkers   = 8
	DefaultCacheEnabled = false
	DefaultCacheDir     = ".repopulse-cache"
	DefaultGitTimeout   = 5 * time.Minute
)

// Logging defaults.
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = LogFormatText
)

// GitHub API extension defaults.
const (
	DefaultGitHubAPIEnabled   = false
	DefaultGitHubRateLimit    = 10.0
	DefaultGitHubRateBurst    = 5
	DefaultGitHubTokenEnvName = "CLASSIC_READ_ONLY_PAT_TOKEN"
)

// Gerrit and Jenkins lookup defaults.
const (
	DefaultAPITimeout  = 30 * time.Second
	JenkinsHostEnvName = "JENKINS_HOST"
)

// DefaultTimeWindows returns a fresh copy of the built-in window set.
func DefaultTimeWindows() map[string]int {
	return map[string]int{
		"last_30_days":  DefaultWindowLast30Days,
		"last_90_days":  DefaultWindowLast90Days,
		"last_365_days": DefaultWindowLast365Days,
		"last_3_years":  DefaultWindowLast3Years,
	}
}

// DefaultFeatures lists the feature checks enabled when configuration names none.
func DefaultFeatures() []string {
	return []string{
		"dependabot",
		"github2gerrit_workflow",
		"g2g",
		"pre_commit",
		"readthedocs",
		"sonatype_config",
		"project_types",
		"workflows",
		"gitreview",
		"languages",
		"github_mirror",
	}
}

// DefaultVerifyPatterns are the workflow name fragments that mark a verify job.
func DefaultVerifyPatterns() []string {
	return []string{"verify", "test", "ci", "check"}
}

// DefaultMergePatterns are the workflow name fragments that mark a merge job.
func DefaultMergePatterns() []string {
	return []string{"merge", "release", "deploy", "publish"}
}

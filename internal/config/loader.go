package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// templateName is the shared base configuration file inside the config dir.
const templateName = "template.config"

// projectSuffix is appended to the project name to find its override file.
const projectSuffix = ".config"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for repopulse settings.
const envPrefix = "REPOPULSE"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// keyDelimiter separates nested keys. Dots are left alone because domain
// names appear as map keys in organizations.custom_mappings.
const keyDelimiter = "::"

// Key joins nested key parts with the loader's delimiter.
func Key(parts ...string) string {
	return strings.Join(parts, keyDelimiter)
}

// LoadOptions selects the configuration sources of a run.
type LoadOptions struct {
	// ConfigDir holds template.config and <project>.config. Empty skips both.
	ConfigDir string
	// ConfigFile is an extra YAML file merged last, after the project override.
	ConfigFile string
	// Project names the run and selects the project override file.
	Project string
	// Overrides are applied after every file, keyed with Key.
	Overrides map[string]any
}

// LoadConfig loads the template, merges the project override on top of it,
// applies env vars and explicit overrides, then validates the result.
// Missing template or project files are not errors; defaults are used.
func LoadConfig(opts LoadOptions) (*Config, error) {
	viperCfg := viper.NewWithOptions(viper.KeyDelimiter(keyDelimiter))

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(keyDelimiter, envKeySeparator))
	viperCfg.AutomaticEnv()

	files, resolveErr := configFiles(opts)
	if resolveErr != nil {
		return nil, resolveErr
	}

	for _, path := range files {
		viperCfg.SetConfigFile(path)

		mergeErr := viperCfg.MergeInConfig()
		if mergeErr != nil {
			return nil, fmt.Errorf("%w: read %s: %w", ErrConfig, path, mergeErr)
		}
	}

	if opts.Project != "" {
		viperCfg.Set("project", opts.Project)
	}

	for key, value := range opts.Overrides {
		viperCfg.Set(key, value)
	}

	windowsErr := checkWindowValues(viperCfg.GetStringMap("time_windows"))
	if windowsErr != nil {
		return nil, windowsErr
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("%w: unmarshal config: %w", ErrConfig, unmarshalErr)
	}

	cfg.settings = viperCfg.AllSettings()

	// Window maps replace each other wholesale, so defaults apply only when no source names any.
	if len(cfg.TimeWindows) == 0 {
		cfg.TimeWindows = DefaultTimeWindows()
		cfg.settings["time_windows"] = DefaultTimeWindows()
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

// configFiles returns the existing config files in merge order.
func configFiles(opts LoadOptions) ([]string, error) {
	var files []string

	if opts.ConfigDir != "" {
		template := filepath.Join(opts.ConfigDir, templateName)
		if fileExists(template) {
			files = append(files, template)
		}

		if opts.Project != "" {
			override, findErr := findProjectConfig(opts.ConfigDir, opts.Project)
			if findErr != nil {
				return nil, findErr
			}

			if override != "" {
				files = append(files, override)
			}
		}
	}

	if opts.ConfigFile != "" {
		if !fileExists(opts.ConfigFile) {
			return nil, fmt.Errorf("%w: config file not found: %s", ErrConfig, opts.ConfigFile)
		}

		files = append(files, opts.ConfigFile)
	}

	return files, nil
}

// findProjectConfig looks for <project>.config, exact match first, then case-insensitively.
func findProjectConfig(dir, project string) (string, error) {
	want := project + projectSuffix

	exact := filepath.Join(dir, want)
	if fileExists(exact) {
		return exact, nil
	}

	entries, readErr := os.ReadDir(dir)
	if readErr != nil {
		if errors.Is(readErr, fs.ErrNotExist) {
			return "", nil
		}

		return "", fmt.Errorf("%w: read config dir: %w", ErrConfig, readErr)
	}

	for _, entry := range entries {
		if !entry.IsDir() && strings.EqualFold(entry.Name(), want) {
			return filepath.Join(dir, entry.Name()), nil
		}
	}

	return "", nil
}

// checkWindowValues rejects day counts that are not whole numbers before
// mapstructure gets a chance to coerce them.
func checkWindowValues(raw map[string]any) error {
	for name, value := range raw {
		switch days := value.(type) {
		case int, int64, int32, uint64, uint32, uint:
		case float64:
			if days != math.Trunc(days) {
				return fmt.Errorf("%w: %s=%v", ErrInvalidTimeWindow, name, value)
			}
		default:
			return fmt.Errorf("%w: %s=%v", ErrInvalidTimeWindow, name, value)
		}
	}

	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)

	return err == nil && !info.IsDir()
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment without overriding variables that are already set.
// Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		loadErr := godotenv.Load(path)
		if loadErr != nil && !errors.Is(loadErr, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", path, loadErr)
		}
	}

	return nil
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("project", "")
	viperCfg.SetDefault("primary_window", DefaultPrimaryWindow)
	viperCfg.SetDefault("activity_threshold_days", DefaultActivityThresholdDays)

	viperCfg.SetDefault(Key("age_buckets", "very_old_years"), DefaultVeryOldYears)
	viperCfg.SetDefault(Key("age_buckets", "old_years"), DefaultOldYears)

	viperCfg.SetDefault(Key("output", "top_n_repos"), DefaultTopNRepos)
	viperCfg.SetDefault(Key("output", "bottom_n_repos"), DefaultBottomNRepos)
	viperCfg.SetDefault(Key("output", "no_html"), DefaultNoHTML)
	viperCfg.SetDefault(Key("output", "no_zip"), DefaultNoZip)

	viperCfg.SetDefault(Key("render", "abbreviate_large_numbers"), DefaultAbbreviateLargeNumbers)
	viperCfg.SetDefault(Key("render", "large_number_threshold"), DefaultLargeNumberThreshold)

	viperCfg.SetDefault(Key("data_quality", "unknown_email_placeholder"), DefaultUnknownEmailPlaceholder)
	viperCfg.SetDefault(Key("data_quality", "skip_binary_changes"), DefaultSkipBinaryChanges)

	viperCfg.SetDefault(Key("features", "enabled"), DefaultFeatures())

	viperCfg.SetDefault(Key("workflows", "classify", "verify"), DefaultVerifyPatterns())
	viperCfg.SetDefault(Key("workflows", "classify", "merge"), DefaultMergePatterns())

	viperCfg.SetDefault(Key("performance", "max_workers"), DefaultMaxWorkers)
	viperCfg.SetDefault(Key("performance", "cache"), DefaultCacheEnabled)
	viperCfg.SetDefault(Key("performance", "cache_dir"), DefaultCacheDir)
	viperCfg.SetDefault(Key("performance", "git_timeout"), DefaultGitTimeout.String())

	viperCfg.SetDefault(Key("logging", "level"), DefaultLogLevel)
	viperCfg.SetDefault(Key("logging", "format"), DefaultLogFormat)

	viperCfg.SetDefault(Key("extensions", "github_api", "enabled"), DefaultGitHubAPIEnabled)
	viperCfg.SetDefault(Key("extensions", "github_api", "token"), "")
	viperCfg.SetDefault(Key("extensions", "github_api", "github_org"), "")
	viperCfg.SetDefault(Key("extensions", "github_api", "base_url"), "")
	viperCfg.SetDefault(Key("extensions", "github_api", "rate_limit"), DefaultGitHubRateLimit)
	viperCfg.SetDefault(Key("extensions", "github_api", "rate_burst"), DefaultGitHubRateBurst)

	viperCfg.SetDefault(Key("gerrit", "enabled"), false)
	viperCfg.SetDefault(Key("gerrit", "host"), "")
	viperCfg.SetDefault(Key("gerrit", "base_url"), "")
	viperCfg.SetDefault(Key("gerrit", "timeout"), DefaultAPITimeout.String())

	viperCfg.SetDefault(Key("jenkins", "enabled"), false)
	viperCfg.SetDefault(Key("jenkins", "host"), "")
	viperCfg.SetDefault(Key("jenkins", "base_url"), "")
	viperCfg.SetDefault(Key("jenkins", "timeout"), DefaultAPITimeout.String())

	viperCfg.SetDefault(Key("telemetry", "otlp_endpoint"), "")
	viperCfg.SetDefault(Key("telemetry", "otlp_insecure"), false)
}

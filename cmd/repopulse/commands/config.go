// Package commands implements CLI command handlers for repopulse.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/repopulse/internal/config"
)

const (
	defaultConfigDir = "configuration"
	dotEnvFile       = ".env"
)

// configFlags are shared by every command that loads configuration.
type configFlags struct {
	project    string
	configDir  string
	configFile string
	logLevel   string
}

func (f *configFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.project, "project", "", "Project name; selects <config-dir>/<project>.config")
	cmd.Flags().StringVar(&f.configDir, "config-dir", defaultConfigDir, "Directory holding template.config and project overrides")
	cmd.Flags().StringVar(&f.configFile, "config", "", "Extra YAML config merged after the project override")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")

	_ = cmd.MarkFlagRequired("project")
}

// load reads .env, then the layered configuration with overrides applied.
func (f *configFlags) load(overrides map[string]any) (*config.Config, error) {
	dotEnvErr := config.LoadDotEnv(dotEnvFile)
	if dotEnvErr != nil {
		return nil, dotEnvErr
	}

	if overrides == nil {
		overrides = map[string]any{}
	}

	if f.logLevel != "" {
		overrides[config.Key("logging", "level")] = f.logLevel
	}

	return config.LoadConfig(config.LoadOptions{
		ConfigDir:  f.configDir,
		ConfigFile: f.configFile,
		Project:    f.project,
		Overrides:  overrides,
	})
}

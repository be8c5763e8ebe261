package commands

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/repopulse/pkg/report"
)

const shortDigest = 12

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	var (
		flags    configFlags
		snapshot string
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and optionally a report snapshot",
		Long: `Load and validate the layered configuration for a project without
collecting anything. With --snapshot, also check a report_raw.json file
against the published schema.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.load(nil)
			if err != nil {
				return err
			}

			digest, err := cfg.Digest()
			if err != nil {
				return fmt.Errorf("compute digest: %w", err)
			}

			windows := make([]string, 0, len(cfg.TimeWindows))
			for name := range cfg.TimeWindows {
				windows = append(windows, name)
			}

			slices.Sort(windows)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Configuration valid for project %q\n", cfg.Project)
			fmt.Fprintf(out, "  - Time windows: %s\n", strings.Join(windows, ", "))
			fmt.Fprintf(out, "  - Primary window: %s\n", cfg.PrimaryWindow)
			fmt.Fprintf(out, "  - Features enabled: %d\n", len(cfg.Features.Enabled))
			fmt.Fprintf(out, "  - Config digest: %s...\n", digest[:shortDigest])

			if snapshot == "" {
				return nil
			}

			data, err := os.ReadFile(snapshot)
			if err != nil {
				return fmt.Errorf("read snapshot: %w", err)
			}

			validateErr := report.ValidateSnapshot(data)
			if validateErr != nil {
				return validateErr
			}

			fmt.Fprintf(out, "Snapshot %s matches schema %s\n", snapshot, report.SchemaVersion)

			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&snapshot, "snapshot", "", "Path of a report_raw.json to validate against the schema")

	return cmd
}

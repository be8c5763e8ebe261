package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewDigestCommand creates the digest command.
func NewDigestCommand() *cobra.Command {
	var flags configFlags

	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Print the configuration digest",
		Long:  "Print the SHA-256 digest of the resolved configuration, as recorded in report_raw.json.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.load(nil)
			if err != nil {
				return err
			}

			digest, err := cfg.Digest()
			if err != nil {
				return fmt.Errorf("compute digest: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), digest)

			return nil
		},
	}

	flags.register(cmd)

	return cmd
}

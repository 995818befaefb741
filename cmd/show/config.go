package show

import (
	"github.com/endorses/lippyguard/internal/pkg/cmdutil"
	"github.com/endorses/lippyguard/internal/pkg/output"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the configuration after defaults, the config file and LIPPYGUARD_*
environment variables are applied, with the detection preset resolved.

Example:
  lippyguard show config
  LIPPYGUARD_DETECTION_PRESET=legacy lippyguard show config --format json`,
	RunE: runConfig,
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := cmdutil.LoadConfig()
	if err != nil {
		return err
	}
	f := format
	if f == "" {
		f = output.FormatYAML
	}
	return output.Write(cmd.OutOrStdout(), cfg, f)
}

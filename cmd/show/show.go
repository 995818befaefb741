package show

import (
	"github.com/spf13/cobra"
)

// ShowCmd groups read-only inspection commands.
var ShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display configuration and stored results",
	Long:  `Display the effective configuration and records flagged by earlier sessions.`,
}

var format string

func init() {
	ShowCmd.PersistentFlags().StringVar(&format, "format", "", "output format (json, yaml)")

	ShowCmd.AddCommand(configCmd)
	ShowCmd.AddCommand(flaggedCmd)
}

package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/endorses/lippyguard/internal/pkg/capture"
	"github.com/endorses/lippyguard/internal/pkg/output"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var interfacesCmd = &cobra.Command{
	Use:   "interfaces",
	Short: "List network interfaces available for capture",
	Long: `List network interfaces that lippyguard can capture on, in the order
used for automatic selection. Interfaces on the hardware address allow-list
(capture.allowed_macs) are marked with '*'.`,
	RunE: runInterfaces,
}

var interfacesJSON bool

func init() {
	interfacesCmd.Flags().BoolVar(&interfacesJSON, "json", false, "Output in JSON format")
}

func runInterfaces(cmd *cobra.Command, args []string) error {
	ifaces, err := capture.PcapEnumerator{}.Interfaces()
	if err != nil {
		return fmt.Errorf("unable to list network interfaces (insufficient permissions?): %w", err)
	}

	if interfacesJSON {
		return output.Write(cmd.OutOrStdout(), ifaces, output.FormatJSON)
	}

	if os.Geteuid() != 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "Warning: Running without root privileges. Some interfaces may not be accessible.")
	}

	allowed := viper.GetStringSlice("capture.allowed_macs")
	out := cmd.OutOrStdout()
	if len(ifaces) == 0 {
		fmt.Fprintln(out, "No capture interfaces found.")
		return nil
	}
	for _, iface := range ifaces {
		marker := " "
		if capture.MatchesAllowList(iface.HardwareAddr, allowed) {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %s", marker, iface.Name)
		if iface.HardwareAddr != "" {
			fmt.Fprintf(out, " [%s]", iface.HardwareAddr)
		}
		if iface.Description != "" {
			fmt.Fprintf(out, " - %s", iface.Description)
		}
		if len(iface.Addresses) > 0 {
			fmt.Fprintf(out, " (%s)", strings.Join(iface.Addresses, ", "))
		}
		fmt.Fprintln(out)
	}
	return nil
}

package show

import (
	"fmt"
	"text/tabwriter"

	"github.com/endorses/lippyguard/internal/pkg/cmdutil"
	"github.com/endorses/lippyguard/internal/pkg/output"
	"github.com/endorses/lippyguard/internal/pkg/store/sqlite"
	"github.com/endorses/lippyguard/internal/pkg/types"
	"github.com/spf13/cobra"
)

var flaggedCmd = &cobra.Command{
	Use:   "flagged",
	Short: "List records flagged by earlier sessions",
	Long: `List the most recent flagged records from the SQLite store
(storage.sqlite.path), newest first.

Example:
  lippyguard show flagged --limit 20
  lippyguard show flagged --db /var/lib/lippyguard/lippyguard.db --format json`,
	RunE: runFlagged,
}

var (
	flaggedLimit int
	flaggedDB    string
)

func init() {
	flaggedCmd.Flags().IntVarP(&flaggedLimit, "limit", "n", 50, "maximum number of records")
	flaggedCmd.Flags().StringVar(&flaggedDB, "db", "", "SQLite database path (default storage.sqlite.path)")
}

func runFlagged(cmd *cobra.Command, args []string) error {
	cfg, err := cmdutil.LoadConfig()
	if err != nil {
		return err
	}
	path := flaggedDB
	if path == "" {
		path = cfg.Storage.SQLite.Path
	}

	st, err := sqlite.Open(path)
	if err != nil {
		return err
	}
	defer st.Close()

	records, err := st.Recent(cmd.Context(), flaggedLimit)
	if err != nil {
		return fmt.Errorf("failed to read flagged records: %w", err)
	}

	if format != "" {
		return output.Write(cmd.OutOrStdout(), records, format)
	}
	return printTable(cmd, records)
}

func printTable(cmd *cobra.Command, records []*types.PacketRecord) error {
	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No flagged records.")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tVERSION\tPROTO\tSOURCE\tDESTINATION\tLENGTH\tFLAGS")
	for _, r := range records {
		src, dst := r.Ports()
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			r.Timestamp.Format("2006-01-02 15:04:05"),
			r.IPVersion,
			r.Protocol,
			endpoint(r.SourceIP, src, r.SourcePort != nil),
			endpoint(r.DestinationIP, dst, r.DestinationPort != nil),
			r.TotalLength,
			flags(r))
	}
	return tw.Flush()
}

func endpoint(ip string, port uint16, hasPort bool) string {
	if !hasPort {
		return ip
	}
	return fmt.Sprintf("%s:%d", ip, port)
}

func flags(r *types.PacketRecord) string {
	switch {
	case r.IsMalicious:
		return "malicious"
	case r.IsSuspicious:
		return "suspicious"
	default:
		return "-"
	}
}

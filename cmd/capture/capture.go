package capture

import (
	"fmt"
	"path/filepath"

	"github.com/endorses/lippyguard/internal/pkg/capture"
	"github.com/endorses/lippyguard/internal/pkg/cmdutil"
	"github.com/endorses/lippyguard/internal/pkg/config"
	"github.com/endorses/lippyguard/internal/pkg/logger"
	"github.com/endorses/lippyguard/internal/pkg/output"
	"github.com/endorses/lippyguard/internal/pkg/session"
	"github.com/endorses/lippyguard/internal/pkg/store"
	"github.com/endorses/lippyguard/internal/pkg/types"
	"github.com/spf13/cobra"
)

var CaptureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Run one capture session and report flagged traffic",
	Long: `Run one capture session: select an interface, capture for the configured
window, run the anomaly detectors and store flagged records.

Press Ctrl-C to end the window early; records captured so far are still
analyzed and stored. A second Ctrl-C exits immediately.

Example:
  lippyguard capture -i eth0 --window 30s
  lippyguard capture --allow-mac 00:11:22:33:44:55 --syn-threshold 200
  lippyguard capture -r attack.pcap --records --format yaml`,
	// Bindings are made per run since capture and serve share config keys.
	PreRunE: func(cmd *cobra.Command, args []string) error {
		cmdutil.BindFlags(cmd, captureBindings)
		return nil
	},
	RunE: runCapture,
}

var (
	readFile    string
	showRecords bool
	format      string
	bufferSize  cmdutil.SizeFlag
)

var captureBindings = map[string]string{
	"capture.interface":             "interface",
	"capture.allowed_macs":          "allow-mac",
	"capture.window":                "window",
	"capture.bpf_filter":            "filter",
	"capture.buffer_size":           "buffer-size",
	"capture.max_records":           "max-records",
	"detection.window":              "detection-window",
	"detection.syn_threshold":       "syn-threshold",
	"detection.udp_threshold":       "udp-threshold",
	"detection.port_scan_threshold": "port-scan-threshold",
	"detection.preset":              "preset",
	"storage.driver":                "store",
	"storage.sqlite.path":           "sqlite-path",
}

func init() {
	CaptureCmd.Flags().StringP("interface", "i", "", "interface to capture on (default: first allow-listed, else first found)")
	CaptureCmd.Flags().StringSlice("allow-mac", nil, "hardware addresses preferred for interface selection")
	CaptureCmd.Flags().DurationP("window", "w", 0, "capture window (default 60s)")
	CaptureCmd.Flags().StringP("filter", "f", "", "bpf filter to apply")
	CaptureCmd.Flags().Var(&bufferSize, "buffer-size", "kernel capture buffer, e.g. 16M")
	CaptureCmd.Flags().Int("max-records", 0, "maximum records kept per session (0 = unlimited)")
	CaptureCmd.Flags().Duration("detection-window", 0, "sliding window for flood and scan detection (default 15s)")
	CaptureCmd.Flags().Int("syn-threshold", 0, "SYN-only segments per source that count as a flood (default 150)")
	CaptureCmd.Flags().Int("udp-threshold", 0, "UDP datagrams per source that count as a flood (default 150)")
	CaptureCmd.Flags().Int("port-scan-threshold", 0, "distinct TCP destination ports per source that count as a scan (default 5)")
	CaptureCmd.Flags().String("preset", "", "detection threshold preset (default, legacy)")
	CaptureCmd.Flags().String("store", "", "flagged record storage (sqlite, mongodb, none)")
	CaptureCmd.Flags().String("sqlite-path", "", "SQLite database path")

	CaptureCmd.Flags().StringVarP(&readFile, "read-file", "r", "", "read frames from a pcap file instead of an interface")
	CaptureCmd.Flags().BoolVar(&showRecords, "records", false, "include every record in the output")
	CaptureCmd.Flags().StringVar(&format, "format", output.FormatJSON, "output format (json, yaml)")
}

func runCapture(cmd *cobra.Command, args []string) error {
	cfg, err := cmdutil.LoadConfig()
	if err != nil {
		return err
	}

	ctx, stop := cmdutil.SignalContext(cmd.Context())
	defer stop()

	flagged, err := store.Open(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := flagged.Close(); err != nil {
			logger.Warn("Failed to close storage", "error", err)
		}
	}()

	opts := []session.Option{session.WithStore(flagged)}
	if readFile != "" {
		cfg.Capture.Interface = ""
		opts = append(opts,
			session.WithEnumerator(capture.FixedEnumerator{Iface: capture.InterfaceInfo{Name: "file:" + filepath.Base(readFile)}}),
			session.WithOpener(capture.FileOpener{Path: readFile, BPFFilter: cfg.Capture.BPFFilter}),
		)
	}

	orch := session.New(cfg, opts...)
	result, err := orch.Run(ctx, session.Overrides{})
	if err != nil {
		return err
	}
	return report(cmd, cfg, result)
}

type captureReport struct {
	session.Summary `yaml:",inline"`
	Thresholds      config.Detection      `json:"thresholds" yaml:"thresholds"`
	FlaggedRecords  []*types.PacketRecord `json:"flagged_records" yaml:"flagged_records"`
	Records         []*types.PacketRecord `json:"records,omitempty" yaml:"records,omitempty"`
}

func report(cmd *cobra.Command, cfg config.Config, result *session.Result) error {
	rep := captureReport{
		Summary:        result.Summary(),
		Thresholds:     cfg.Detection,
		FlaggedRecords: result.Flagged,
	}
	if showRecords {
		rep.Records = result.Records
	}
	return output.Write(cmd.OutOrStdout(), rep, format)
}


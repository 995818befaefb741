// Package config is the single source of truth for capture, detection,
// streaming and storage settings. Values come from viper, so every field can
// be set from the config file, LIPPYGUARD_* environment variables or flags.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/endorses/lippyguard/internal/pkg/constants"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. LIPPYGUARD_CAPTURE_WINDOW.
const EnvPrefix = "LIPPYGUARD"

// Config is the full runtime configuration.
type Config struct {
	Capture   Capture   `mapstructure:"capture" yaml:"capture" json:"capture"`
	Detection Detection `mapstructure:"detection" yaml:"detection" json:"detection"`
	Stream    Stream    `mapstructure:"stream" yaml:"stream" json:"stream"`
	Storage   Storage   `mapstructure:"storage" yaml:"storage" json:"storage"`
	Server    Server    `mapstructure:"server" yaml:"server" json:"server"`
	Log       Log       `mapstructure:"log" yaml:"log" json:"log"`
}

// Capture configures the frame source.
type Capture struct {
	Interface   string        `mapstructure:"interface" yaml:"interface" json:"interface"`
	AllowedMACs []string      `mapstructure:"allowed_macs" yaml:"allowed_macs" json:"allowed_macs"`
	Window      time.Duration `mapstructure:"window" yaml:"window" json:"window"`
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout" json:"read_timeout"`
	Promiscuous bool          `mapstructure:"promiscuous" yaml:"promiscuous" json:"promiscuous"`
	SnapLen     int           `mapstructure:"snaplen" yaml:"snaplen" json:"snaplen"`
	BufferSize  int           `mapstructure:"buffer_size" yaml:"buffer_size" json:"buffer_size"`
	BPFFilter   string        `mapstructure:"bpf_filter" yaml:"bpf_filter" json:"bpf_filter"`
	MaxRecords  int           `mapstructure:"max_records" yaml:"max_records" json:"max_records"`
}

// Detection configures the anomaly detectors.
//
// SYN, UDP and port-scan passes share Window unless their own window is set.
type Detection struct {
	Preset            string        `mapstructure:"preset" yaml:"preset" json:"preset"`
	Window            time.Duration `mapstructure:"window" yaml:"window" json:"window"`
	SYNThreshold      int           `mapstructure:"syn_threshold" yaml:"syn_threshold" json:"syn_threshold"`
	SYNWindow         time.Duration `mapstructure:"syn_window" yaml:"syn_window" json:"syn_window"`
	UDPThreshold      int           `mapstructure:"udp_threshold" yaml:"udp_threshold" json:"udp_threshold"`
	UDPWindow         time.Duration `mapstructure:"udp_window" yaml:"udp_window" json:"udp_window"`
	PortScanThreshold int           `mapstructure:"port_scan_threshold" yaml:"port_scan_threshold" json:"port_scan_threshold"`
	PortScanWindow    time.Duration `mapstructure:"port_scan_window" yaml:"port_scan_window" json:"port_scan_window"`
	PoDMaxLength      int           `mapstructure:"pod_max_length" yaml:"pod_max_length" json:"pod_max_length"`
}

// Stream configures the WebSocket streaming hub.
type Stream struct {
	MaxSubscribers int           `mapstructure:"max_subscribers" yaml:"max_subscribers" json:"max_subscribers"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout" yaml:"write_timeout" json:"write_timeout"`
}

// Storage selects and configures the flagged-record store.
type Storage struct {
	Driver  string        `mapstructure:"driver" yaml:"driver" json:"driver"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	SQLite  SQLite        `mapstructure:"sqlite" yaml:"sqlite" json:"sqlite"`
	MongoDB MongoDB       `mapstructure:"mongodb" yaml:"mongodb" json:"mongodb"`
}

// SQLite configures the embedded store.
type SQLite struct {
	Path string `mapstructure:"path" yaml:"path" json:"path"`
}

// MongoDB configures the document store.
type MongoDB struct {
	URI            string        `mapstructure:"uri" yaml:"uri" json:"uri"`
	Database       string        `mapstructure:"database" yaml:"database" json:"database"`
	Collection     string        `mapstructure:"collection" yaml:"collection" json:"collection"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout" json:"connect_timeout"`
}

// Server configures the HTTP service.
type Server struct {
	Listen string `mapstructure:"listen" yaml:"listen" json:"listen"`
}

// Log configures the process logger.
type Log struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"`
}

// Storage drivers
const (
	DriverNone    = "none"
	DriverSQLite  = "sqlite"
	DriverMongoDB = "mongodb"
)

// Detection presets
const (
	PresetDefault = "default"
	PresetLegacy  = "legacy"
)

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("capture.interface", "")
	v.SetDefault("capture.allowed_macs", []string{})
	v.SetDefault("capture.window", constants.DefaultCaptureWindow)
	v.SetDefault("capture.read_timeout", constants.DefaultReadTimeout)
	v.SetDefault("capture.promiscuous", true)
	v.SetDefault("capture.snaplen", constants.DefaultSnapshotLen)
	v.SetDefault("capture.buffer_size", constants.DefaultPcapBufferSize)
	v.SetDefault("capture.bpf_filter", "")
	v.SetDefault("capture.max_records", constants.DefaultMaxRecords)

	v.SetDefault("detection.preset", PresetDefault)
	v.SetDefault("detection.window", constants.DefaultDetectionWindow)
	v.SetDefault("detection.syn_threshold", constants.DefaultSYNThreshold)
	v.SetDefault("detection.syn_window", time.Duration(0))
	v.SetDefault("detection.udp_threshold", constants.DefaultUDPThreshold)
	v.SetDefault("detection.udp_window", time.Duration(0))
	v.SetDefault("detection.port_scan_threshold", constants.DefaultPortScanThreshold)
	v.SetDefault("detection.port_scan_window", time.Duration(0))
	v.SetDefault("detection.pod_max_length", constants.MaxIPDatagramLength)

	v.SetDefault("stream.max_subscribers", 100)
	v.SetDefault("stream.write_timeout", constants.DefaultStreamWriteTimeout)

	v.SetDefault("storage.driver", DriverSQLite)
	v.SetDefault("storage.timeout", constants.DefaultStorageTimeout)
	v.SetDefault("storage.sqlite.path", "lippyguard.db")
	v.SetDefault("storage.mongodb.uri", "mongodb://127.0.0.1:27017")
	v.SetDefault("storage.mongodb.database", "lippyguard")
	v.SetDefault("storage.mongodb.collection", "flagged_packets")
	v.SetDefault("storage.mongodb.connect_timeout", constants.DefaultStorageTimeout)

	v.SetDefault("server.listen", ":8080")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Default returns the configuration with only defaults applied.
func Default() Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := Load(v)
	if err != nil {
		// Defaults always decode.
		panic(err)
	}
	return cfg
}

// ConfigureEnv enables LIPPYGUARD_SECTION_KEY environment overrides on v.
func ConfigureEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load decodes v into a Config, applies the detection preset and validates.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := cfg.Detection.applyPreset(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings that would make a session meaningless.
func (c Config) Validate() error {
	if c.Capture.Window <= 0 {
		return fmt.Errorf("capture.window must be positive, got %s", c.Capture.Window)
	}
	if c.Capture.ReadTimeout <= 0 {
		return fmt.Errorf("capture.read_timeout must be positive, got %s", c.Capture.ReadTimeout)
	}
	if c.Capture.MaxRecords < 0 {
		return fmt.Errorf("capture.max_records must not be negative")
	}
	if c.Detection.SYNThreshold < 0 || c.Detection.UDPThreshold < 0 || c.Detection.PortScanThreshold < 0 {
		return fmt.Errorf("detection thresholds must not be negative")
	}
	switch c.Storage.Driver {
	case DriverNone, DriverSQLite, DriverMongoDB:
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}
	return nil
}

// applyPreset overlays a named threshold set. The legacy preset reproduces
// the historical module-level constants, which were never the values applied
// at detection time.
func (d *Detection) applyPreset() error {
	switch d.Preset {
	case "", PresetDefault:
		d.Preset = PresetDefault
	case PresetLegacy:
		d.SYNThreshold = LegacySYNThresholds[0].Threshold
		d.SYNWindow = LegacySYNThresholds[0].Window
		d.PortScanThreshold = LegacyPortScanThreshold
	default:
		return fmt.Errorf("unknown detection.preset %q", d.Preset)
	}
	return nil
}

// WindowedThreshold pairs a count threshold with its sliding window.
type WindowedThreshold struct {
	Threshold int
	Window    time.Duration
}

// Historical defaults kept for comparison with the applied values.
var LegacySYNThresholds = []WindowedThreshold{
	{Threshold: 600, Window: 60 * time.Second},
	{Threshold: 300, Window: 30 * time.Second},
	{Threshold: 150, Window: 15 * time.Second},
}

// LegacyPortScanThreshold is the historical distinct-port threshold.
const LegacyPortScanThreshold = 20

// SYN returns the effective SYN-flood threshold and window.
func (d Detection) SYN() WindowedThreshold {
	return WindowedThreshold{Threshold: d.SYNThreshold, Window: d.windowOr(d.SYNWindow)}
}

// UDP returns the effective UDP-flood threshold and window.
func (d Detection) UDP() WindowedThreshold {
	return WindowedThreshold{Threshold: d.UDPThreshold, Window: d.windowOr(d.UDPWindow)}
}

// PortScan returns the effective port-scan threshold and window.
func (d Detection) PortScan() WindowedThreshold {
	return WindowedThreshold{Threshold: d.PortScanThreshold, Window: d.windowOr(d.PortScanWindow)}
}

func (d Detection) windowOr(w time.Duration) time.Duration {
	if w > 0 {
		return w
	}
	return d.Window
}

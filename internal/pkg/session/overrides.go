package session

import (
	"fmt"
	"time"

	"github.com/endorses/lippyguard/internal/pkg/config"
)

// Overrides adjusts one session without touching the orchestrator's
// configuration. Zero values leave the configured setting in place.
type Overrides struct {
	Interface         string
	AllowedMACs       []string
	Window            time.Duration
	DetectionWindow   time.Duration
	SYNThreshold      *int
	UDPThreshold      *int
	PortScanThreshold *int
}

// Apply returns base with the overrides laid over it.
func (ov Overrides) Apply(base config.Config) (config.Config, error) {
	cfg := base
	if ov.Interface != "" {
		cfg.Capture.Interface = ov.Interface
	}
	if len(ov.AllowedMACs) > 0 {
		cfg.Capture.AllowedMACs = append([]string(nil), ov.AllowedMACs...)
	}
	if ov.Window != 0 {
		cfg.Capture.Window = ov.Window
	}
	if ov.DetectionWindow != 0 {
		cfg.Detection.Window = ov.DetectionWindow
	}
	if ov.SYNThreshold != nil {
		cfg.Detection.SYNThreshold = *ov.SYNThreshold
	}
	if ov.UDPThreshold != nil {
		cfg.Detection.UDPThreshold = *ov.UDPThreshold
	}
	if ov.PortScanThreshold != nil {
		cfg.Detection.PortScanThreshold = *ov.PortScanThreshold
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid session overrides: %w", err)
	}
	if cfg.Detection.Window <= 0 {
		return config.Config{}, fmt.Errorf("invalid session overrides: detection window must be positive")
	}
	return cfg, nil
}

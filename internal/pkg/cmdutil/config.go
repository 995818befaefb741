// Package cmdutil provides shared utilities for CLI command implementations.
package cmdutil

import (
	"context"
	"fmt"
	"strings"

	"github.com/endorses/lippyguard/internal/pkg/config"
	"github.com/endorses/lippyguard/internal/pkg/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// LoadConfig decodes the process configuration from the global viper
// instance (defaults, config file, LIPPYGUARD_* environment, bound flags).
func LoadConfig() (config.Config, error) {
	return config.Load(viper.GetViper())
}

// BindFlags binds each config key to the named flag of cmd.
func BindFlags(cmd *cobra.Command, bindings map[string]string) {
	for key, flag := range bindings {
		_ = viper.BindPFlag(key, cmd.Flags().Lookup(flag))
	}
}

// SizeFlag is a pflag value accepting sizes such as "16M".
type SizeFlag struct {
	Bytes int64
}

var _ pflag.Value = (*SizeFlag)(nil)

func (f *SizeFlag) String() string {
	return fmt.Sprintf("%d", f.Bytes)
}

func (f *SizeFlag) Set(s string) error {
	n, err := ParseSizeString(s)
	if err != nil {
		return err
	}
	f.Bytes = n
	return nil
}

func (f *SizeFlag) Type() string {
	return "size"
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM and a
// function that releases the handler.
func SignalContext(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	cleanup := signals.SetupHandler(ctx, cancel)
	return ctx, func() {
		cleanup()
		cancel()
	}
}

// ParseSizeString parses a size string (e.g., "100M", "1G", "500K") and returns bytes.
// Supported suffixes: K/k (KiB), M/m (MiB), G/g (GiB), T/t (TiB).
func ParseSizeString(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}

	lastChar := s[len(s)-1]
	var multiplier int64 = 1

	switch lastChar {
	case 'K', 'k':
		multiplier = 1024
		s = s[:len(s)-1]
	case 'M', 'm':
		multiplier = 1024 * 1024
		s = s[:len(s)-1]
	case 'G', 'g':
		multiplier = 1024 * 1024 * 1024
		s = s[:len(s)-1]
	case 'T', 't':
		multiplier = 1024 * 1024 * 1024 * 1024
		s = s[:len(s)-1]
	}

	var value int64
	if _, err := fmt.Sscanf(s, "%d", &value); err != nil {
		return 0, fmt.Errorf("invalid size value: %w", err)
	}
	if value < 0 {
		return 0, fmt.Errorf("size must not be negative")
	}

	return value * multiplier, nil
}

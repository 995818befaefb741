// Package constants provides shared constants used across lippyguard components.
package constants

import "time"

// Capture session defaults
const (
	// DefaultCaptureWindow is how long one session captures before analysis
	DefaultCaptureWindow = 60 * time.Second

	// DefaultReadTimeout bounds a single device read; a timeout means "no frame yet"
	DefaultReadTimeout = 1 * time.Second

	// DefaultSnapshotLen captures whole frames
	DefaultSnapshotLen = 65536

	// DefaultPcapBufferSize is the kernel buffer for live capture.
	// The libpcap default (~2MB) drops frames on busy interfaces.
	DefaultPcapBufferSize = 16 * 1024 * 1024

	// DefaultMaxRecords bounds the per-session aggregator. Records beyond it are dropped.
	DefaultMaxRecords = 1_000_000
)

// Detection defaults applied by the orchestrator
const (
	DefaultDetectionWindow   = 15 * time.Second
	DefaultSYNThreshold      = 150
	DefaultUDPThreshold      = 150
	DefaultPortScanThreshold = 5

	// MaxIPDatagramLength is the largest legal IP datagram; anything longer is a Ping of Death
	MaxIPDatagramLength = 65535
)

// Channel buffer sizes
const (
	// SignalChannelBuffer is the buffer size for OS signal channels
	SignalChannelBuffer = 1

	// SubscriberChannelBuffer is the per-subscriber session batch queue
	SubscriberChannelBuffer = 16
)

// Shutdown and network timeouts
const (
	// GracefulShutdownTimeout is the time to wait for the HTTP server to drain
	GracefulShutdownTimeout = 5 * time.Second

	// DefaultStreamWriteTimeout bounds one WebSocket write
	DefaultStreamWriteTimeout = 5 * time.Second

	// StreamPingInterval is how often idle WebSocket subscribers are pinged
	StreamPingInterval = 30 * time.Second

	// DefaultStorageTimeout bounds connect and insert calls to the storage backend
	DefaultStorageTimeout = 10 * time.Second
)

package capture

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/endorses/lippyguard/internal/pkg/logger"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
)

// ErrTimeout is the "no frame yet" result of a device read. pcap reports it
// as pcap.NextErrorTimeoutExpired; other Device implementations may return
// this value instead.
var ErrTimeout = errors.New("capture read timeout")

// RawFrame is one link-layer frame as delivered by the device.
type RawFrame struct {
	Data     []byte
	Info     gopacket.CaptureInfo
	LinkType layers.LinkType
}

// FrameHandler consumes frames from the poll loop.
type FrameHandler func(RawFrame)

// RunStats summarizes one capture window.
type RunStats struct {
	Frames     int           `json:"frames"`
	Timeouts   int           `json:"timeouts"`
	Elapsed    time.Duration `json:"elapsed"`
	EndedEarly bool          `json:"ended_early"`
}

// Loop polls a device for a fixed wall-clock window.
type Loop struct {
	Window time.Duration
	Now    func() time.Time
}

// Run reads frames until the window measured from the first call elapses,
// the device runs dry or fails, or ctx is cancelled. The returned error is
// the device failure that ended the loop early, if any; the frames handled
// before it remain valid.
func (l Loop) Run(ctx context.Context, dev Device, handle FrameHandler) (RunStats, error) {
	now := l.Now
	if now == nil {
		now = time.Now
	}

	var stats RunStats
	start := now()
	deadline := start.Add(l.Window)
	linkType := dev.LinkType()

	defer func() {
		stats.Elapsed = now().Sub(start)
	}()

	for now().Before(deadline) {
		select {
		case <-ctx.Done():
			stats.EndedEarly = true
			return stats, ctx.Err()
		default:
		}

		data, ci, err := dev.ReadPacketData()
		switch {
		case err == nil:
			stats.Frames++
			handle(RawFrame{Data: data, Info: ci, LinkType: linkType})
		case isTimeout(err):
			stats.Timeouts++
		case isExhausted(err):
			logger.Debug("Capture source exhausted before window elapsed", "frames", stats.Frames)
			stats.EndedEarly = true
			return stats, nil
		default:
			logger.Error("Capture device failed, ending window early",
				"error", err,
				"frames", stats.Frames)
			stats.EndedEarly = true
			return stats, err
		}
	}
	return stats, nil
}

func isTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, pcap.NextErrorTimeoutExpired)
}

func isExhausted(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, pcap.NextErrorNoMorePackets)
}

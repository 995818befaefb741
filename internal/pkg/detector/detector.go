// Package detector implements the post-capture anomaly passes. Each pass
// reads a whole session's records and raises flags on the ones that match;
// flags are never cleared.
package detector

import (
	"time"

	"github.com/endorses/lippyguard/internal/pkg/types"
)

// Detector is one pass over a session snapshot. Detect returns how many
// records it newly flagged.
type Detector interface {
	Name() string
	Detect(records []*types.PacketRecord, now time.Time) int
}

// Pass names
const (
	NameSYNFlood      = "syn_flood"
	NameUDPFlood      = "udp_flood"
	NamePortScan      = "port_scan"
	NamePingOfDeathV4 = "ping_of_death_v4"
	NamePingOfDeathV6 = "ping_of_death_v6"
)

// inWindow reports whether ts falls in the trailing window ending at now.
// Timestamps after now are inside.
func inWindow(ts, now time.Time, window time.Duration) bool {
	return now.Sub(ts) <= window
}

func markSuspicious(r *types.PacketRecord) int {
	if r.IsSuspicious {
		return 0
	}
	r.MarkSuspicious()
	return 1
}

func markMalicious(r *types.PacketRecord) int {
	if r.IsMalicious {
		return 0
	}
	r.MarkMalicious()
	return 1
}

// floodPass flags every matching record of a source whose matching count
// exceeds threshold.
func floodPass(records []*types.PacketRecord, match func(*types.PacketRecord) bool, threshold int) int {
	var (
		counts   = make(map[string]int)
		selected = make([]*types.PacketRecord, 0, len(records))
	)
	for _, r := range records {
		if match(r) {
			counts[r.SourceIP]++
			selected = append(selected, r)
		}
	}

	marked := 0
	for _, r := range selected {
		if counts[r.SourceIP] > threshold {
			marked += markSuspicious(r)
		}
	}
	return marked
}

// SYNFlood flags connection-opening TCP segments from sources that send more
// than Threshold of them within Window.
type SYNFlood struct {
	Threshold int
	Window    time.Duration
}

func (d SYNFlood) Name() string { return NameSYNFlood }

func (d SYNFlood) Detect(records []*types.PacketRecord, now time.Time) int {
	return floodPass(records, func(r *types.PacketRecord) bool {
		if r.Protocol != types.ProtocolTCP || !inWindow(r.Timestamp, now, d.Window) {
			return false
		}
		seg, ok := r.Transport.(types.TCPSegment)
		return ok && seg.SYNOnly()
	}, d.Threshold)
}

// UDPFlood flags UDP datagrams from sources that send more than Threshold of
// them within Window.
type UDPFlood struct {
	Threshold int
	Window    time.Duration
}

func (d UDPFlood) Name() string { return NameUDPFlood }

func (d UDPFlood) Detect(records []*types.PacketRecord, now time.Time) int {
	return floodPass(records, func(r *types.PacketRecord) bool {
		return r.Protocol == types.ProtocolUDP && inWindow(r.Timestamp, now, d.Window)
	}, d.Threshold)
}

// PortScan counts distinct TCP destination ports per source within Window.
// A source above Threshold has every one of its records flagged, whatever
// the protocol or time.
type PortScan struct {
	Threshold int
	Window    time.Duration
}

func (d PortScan) Name() string { return NamePortScan }

func (d PortScan) Detect(records []*types.PacketRecord, now time.Time) int {
	ports := make(map[string]map[uint16]struct{})
	for _, r := range records {
		if r.Protocol != types.ProtocolTCP || r.DestinationPort == nil || !inWindow(r.Timestamp, now, d.Window) {
			continue
		}
		set, ok := ports[r.SourceIP]
		if !ok {
			set = make(map[uint16]struct{})
			ports[r.SourceIP] = set
		}
		set[*r.DestinationPort] = struct{}{}
	}

	scanners := make(map[string]bool)
	for src, set := range ports {
		if len(set) > d.Threshold {
			scanners[src] = true
		}
	}
	if len(scanners) == 0 {
		return 0
	}

	marked := 0
	for _, r := range records {
		if scanners[r.SourceIP] {
			marked += markSuspicious(r)
		}
	}
	return marked
}

// PingOfDeathV4 flags ICMPv4 echo requests whose IP total length exceeds
// MaxLength. Matches are marked malicious.
type PingOfDeathV4 struct {
	MaxLength int
}

func (d PingOfDeathV4) Name() string { return NamePingOfDeathV4 }

func (d PingOfDeathV4) Detect(records []*types.PacketRecord, _ time.Time) int {
	marked := 0
	for _, r := range records {
		if r.IPVersion != types.IPv4 {
			continue
		}
		msg, ok := r.Transport.(types.ICMPv4Message)
		if ok && msg.EchoRequest() && r.TotalLength > d.MaxLength {
			marked += markMalicious(r)
		}
	}
	return marked
}

// PingOfDeathV6 is PingOfDeathV4 for ICMPv6, measured on the IPv6 payload
// length, which excludes the fixed header.
type PingOfDeathV6 struct {
	MaxLength int
}

func (d PingOfDeathV6) Name() string { return NamePingOfDeathV6 }

func (d PingOfDeathV6) Detect(records []*types.PacketRecord, _ time.Time) int {
	marked := 0
	for _, r := range records {
		if r.IPVersion != types.IPv6 {
			continue
		}
		msg, ok := r.Transport.(types.ICMPv6Message)
		if ok && msg.EchoRequest() && r.PayloadLength > d.MaxLength {
			marked += markMalicious(r)
		}
	}
	return marked
}

package detector

import (
	"time"

	"github.com/endorses/lippyguard/internal/pkg/types"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func syn(src string, dstPort uint16, ts time.Time) *types.PacketRecord {
	r := &types.PacketRecord{
		IPVersion:     types.IPv4,
		SourceIP:      src,
		DestinationIP: "10.0.0.1",
		Protocol:      types.ProtocolTCP,
		Timestamp:     ts,
		Transport:     types.TCPSegment{SrcPort: 40000, DstPort: dstPort, SYN: true},
	}
	r.SetPorts(40000, dstPort)
	return r
}

func ack(src string, dstPort uint16, ts time.Time) *types.PacketRecord {
	r := syn(src, dstPort, ts)
	r.Transport = types.TCPSegment{SrcPort: 40000, DstPort: dstPort, SYN: true, ACK: true}
	return r
}

func udp(src string, dstPort uint16, ts time.Time) *types.PacketRecord {
	r := &types.PacketRecord{
		IPVersion:     types.IPv4,
		SourceIP:      src,
		DestinationIP: "10.0.0.1",
		Protocol:      types.ProtocolUDP,
		Timestamp:     ts,
		Transport:     types.UDPDatagram{SrcPort: 5000, DstPort: dstPort},
	}
	r.SetPorts(5000, dstPort)
	return r
}

func echoV4(totalLength int) *types.PacketRecord {
	return &types.PacketRecord{
		IPVersion:   types.IPv4,
		SourceIP:    "192.0.2.9",
		Protocol:    types.ProtocolICMP,
		Timestamp:   now,
		TotalLength: totalLength,
		Transport:   types.ICMPv4Message{Type: types.ICMPv4EchoRequest},
	}
}

func echoV6(payloadLength int) *types.PacketRecord {
	return &types.PacketRecord{
		IPVersion:     types.IPv6,
		SourceIP:      "2001:db8::9",
		Protocol:      types.ProtocolICMPv6,
		Timestamp:     now,
		PayloadLength: payloadLength,
		TotalLength:   40 + payloadLength,
		Transport:     types.ICMPv6Message{Type: types.ICMPv6EchoRequest},
	}
}

func repeat(n int, mk func(i int) *types.PacketRecord) []*types.PacketRecord {
	out := make([]*types.PacketRecord, n)
	for i := range out {
		out[i] = mk(i)
	}
	return out
}

func countSuspicious(records []*types.PacketRecord) int {
	n := 0
	for _, r := range records {
		if r.IsSuspicious {
			n++
		}
	}
	return n
}

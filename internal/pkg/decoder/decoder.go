// Package decoder turns raw link-layer frames into PacketRecords.
package decoder

import (
	"errors"
	"time"

	"github.com/endorses/lippyguard/internal/pkg/capture"
	"github.com/endorses/lippyguard/internal/pkg/classifier"
	"github.com/endorses/lippyguard/internal/pkg/types"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// ErrNoIPLayer is returned for frames without an IPv4 or IPv6 layer. Such
// frames are skipped and never become records.
var ErrNoIPLayer = errors.New("frame has no IP layer")

// IPv6HeaderLength is the fixed IPv6 header size.
const IPv6HeaderLength = 40

// ClassifyFunc summarizes a transport payload.
type ClassifyFunc func(payload []byte, srcPort, dstPort uint16) classifier.Result

// Decoder is not safe for concurrent use by multiple capture loops that
// share fragment state; create one per session.
type Decoder struct {
	classify ClassifyFunc
	now      func() time.Time
	frags    *fragmentTracker
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithClock sets the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(d *Decoder) { d.now = now }
}

// WithClassifier replaces the application-layer classifier.
func WithClassifier(fn ClassifyFunc) Option {
	return func(d *Decoder) { d.classify = fn }
}

func New(opts ...Option) *Decoder {
	d := &Decoder{
		classify: classifier.Classify,
		now:      time.Now,
		frags:    newFragmentTracker(defaultFragmentEntries),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

var decodeOptions = gopacket.DecodeOptions{Lazy: true, NoCopy: true}

// Decode parses one frame. The record carries its protocol, ports and
// application-layer summary before it is returned.
func (d *Decoder) Decode(frame capture.RawFrame) (*types.PacketRecord, error) {
	packet := gopacket.NewPacket(frame.Data, frame.LinkType, decodeOptions)
	return d.DecodePacket(packet)
}

// DecodePacket is Decode for an already parsed packet.
func (d *Decoder) DecodePacket(packet gopacket.Packet) (*types.PacketRecord, error) {
	rec := &types.PacketRecord{Timestamp: d.now()}

	var (
		transport types.Transport
		payload   []byte
	)

	switch {
	case packet.Layer(layers.LayerTypeIPv4) != nil:
		ip := packet.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
		rec.IPVersion = types.IPv4
		rec.SourceIP = ip.SrcIP.String()
		rec.DestinationIP = ip.DstIP.String()
		rec.HeaderLength = int(ip.IHL) * 4
		// A fragment describes the datagram up to its own end, which is how
		// oversized reassemblies show up.
		rec.TotalLength = int(ip.FragOffset)*8 + int(ip.Length)

		if isIPv4Fragment(ip) {
			key := fragmentKey{src: rec.SourceIP, dst: rec.DestinationIP, id: uint32(ip.Id), proto: uint8(ip.Protocol)}
			transport, payload = d.fragmentTransport(key, ip.FragOffset == 0, ip.Protocol, ip.LayerPayload())
		} else {
			transport, payload = transportFrom(packet, ip.Protocol)
		}

	case packet.Layer(layers.LayerTypeIPv6) != nil:
		ip := packet.Layer(layers.LayerTypeIPv6).(*layers.IPv6)
		rec.IPVersion = types.IPv6
		rec.SourceIP = ip.SrcIP.String()
		rec.DestinationIP = ip.DstIP.String()
		rec.HeaderLength = IPv6HeaderLength
		rec.PayloadLength = int(ip.Length)

		if frag, ok := packet.Layer(layers.LayerTypeIPv6Fragment).(*layers.IPv6Fragment); ok {
			rec.PayloadLength += int(frag.FragmentOffset) * 8
			key := fragmentKey{src: rec.SourceIP, dst: rec.DestinationIP, id: frag.Identification, proto: uint8(frag.NextHeader)}
			transport, payload = d.fragmentTransport(key, frag.FragmentOffset == 0, frag.NextHeader, frag.LayerPayload())
		} else {
			transport, payload = transportFrom(packet, ip.NextHeader)
		}
		rec.TotalLength = IPv6HeaderLength + rec.PayloadLength

	default:
		return nil, ErrNoIPLayer
	}

	rec.Transport = transport
	rec.Protocol = transport.Protocol()

	var srcPort, dstPort uint16
	switch t := transport.(type) {
	case types.TCPSegment:
		srcPort, dstPort = t.SrcPort, t.DstPort
		rec.SetPorts(srcPort, dstPort)
	case types.UDPDatagram:
		srcPort, dstPort = t.SrcPort, t.DstPort
		rec.SetPorts(srcPort, dstPort)
	}

	result := d.classify(payload, srcPort, dstPort)
	rec.ApplicationLayerText = result.Text
	rec.JSONDetected = result.JSON

	return rec, nil
}

func isIPv4Fragment(ip *layers.IPv4) bool {
	return ip.Flags&layers.IPv4MoreFragments != 0 || ip.FragOffset != 0
}

// transportFrom dispatches on the decoded transport layer in priority order:
// TCP, UDP, ICMPv4, ICMPv6, ARP, then Other.
func transportFrom(packet gopacket.Packet, proto layers.IPProtocol) (types.Transport, []byte) {
	if tcp, ok := packet.Layer(layers.LayerTypeTCP).(*layers.TCP); ok {
		return types.TCPSegment{
			SrcPort: uint16(tcp.SrcPort),
			DstPort: uint16(tcp.DstPort),
			SYN:     tcp.SYN,
			ACK:     tcp.ACK,
			FIN:     tcp.FIN,
			RST:     tcp.RST,
			PSH:     tcp.PSH,
			URG:     tcp.URG,
		}, tcp.LayerPayload()
	}
	if udp, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP); ok {
		return types.UDPDatagram{SrcPort: uint16(udp.SrcPort), DstPort: uint16(udp.DstPort)}, udp.LayerPayload()
	}
	if icmp, ok := packet.Layer(layers.LayerTypeICMPv4).(*layers.ICMPv4); ok {
		return types.ICMPv4Message{Type: icmp.TypeCode.Type(), Code: icmp.TypeCode.Code()}, icmp.LayerPayload()
	}
	if icmp, ok := packet.Layer(layers.LayerTypeICMPv6).(*layers.ICMPv6); ok {
		return types.ICMPv6Message{Type: icmp.TypeCode.Type(), Code: icmp.TypeCode.Code()}, icmp.LayerPayload()
	}
	if arp, ok := packet.Layer(layers.LayerTypeARP).(*layers.ARP); ok {
		return types.ARPMessage{Operation: arp.Operation}, nil
	}

	var payload []byte
	if app := packet.ApplicationLayer(); app != nil {
		payload = app.Payload()
	}
	return types.OtherTransport{IPProtocol: uint8(proto)}, payload
}

// fragmentTransport decodes the transport header carried by a first fragment
// and lends it to the later fragments of the same datagram, which carry no
// header of their own.
func (d *Decoder) fragmentTransport(key fragmentKey, first bool, proto layers.IPProtocol, data []byte) (types.Transport, []byte) {
	if first {
		inner := gopacket.NewPacket(data, proto.LayerType(), decodeOptions)
		transport, payload := transportFrom(inner, proto)
		d.frags.remember(key, transport)
		return transport, payload
	}
	if transport, ok := d.frags.lookup(key); ok {
		return transport, data
	}
	return types.OtherTransport{IPProtocol: uint8(proto)}, data
}

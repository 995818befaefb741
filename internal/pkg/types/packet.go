package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// IPVersion identifies the network layer of a record.
type IPVersion uint8

const (
	IPv4 IPVersion = 4
	IPv6 IPVersion = 6
)

func (v IPVersion) String() string {
	switch v {
	case IPv4:
		return "IPv4"
	case IPv6:
		return "IPv6"
	default:
		return fmt.Sprintf("IPv%d", uint8(v))
	}
}

// MarshalJSON encodes the version as "IPv4" or "IPv6".
func (v IPVersion) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

// UnmarshalJSON accepts the names produced by MarshalJSON.
func (v *IPVersion) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "IPv4":
		*v = IPv4
	case "IPv6":
		*v = IPv6
	default:
		return fmt.Errorf("unknown ip version %q", s)
	}
	return nil
}

// Protocol is the transport classification assigned by the decoder.
type Protocol string

const (
	ProtocolTCP    Protocol = "TCP"
	ProtocolUDP    Protocol = "UDP"
	ProtocolICMP   Protocol = "ICMP"
	ProtocolICMPv6 Protocol = "ICMPv6"
	ProtocolARP    Protocol = "ARP"
	ProtocolOther  Protocol = "Other"
)

// PacketRecord is one decoded frame with an IP layer.
//
// Records are owned by a single capture session. Detectors may only raise
// IsSuspicious and IsMalicious, never clear them.
type PacketRecord struct {
	IPVersion       IPVersion `json:"ipVersion" bson:"ip_version"`
	SourceIP        string    `json:"sourceIP" bson:"source_ip"`
	DestinationIP   string    `json:"destinationIP" bson:"destination_ip"`
	SourcePort      *uint16   `json:"sourcePort" bson:"source_port,omitempty"`
	DestinationPort *uint16   `json:"destinationPort" bson:"destination_port,omitempty"`
	Protocol        Protocol  `json:"protocol" bson:"protocol"`
	Timestamp       time.Time `json:"timestamp" bson:"timestamp"`
	HeaderLength    int       `json:"headerLength" bson:"header_length"`
	TotalLength     int       `json:"totalLength" bson:"total_length"`

	// PayloadLength is the IPv6 payload-length extent (fixed header excluded).
	// Zero for IPv4.
	PayloadLength int `json:"-" bson:"-"`

	ApplicationLayerText *string `json:"applicationLayerText" bson:"application_layer_text,omitempty"`
	JSONDetected         bool    `json:"-" bson:"json_detected"`

	IsSuspicious bool `json:"isSuspicious" bson:"is_suspicious"`
	IsMalicious  bool `json:"isMalicious" bson:"is_malicious"`

	Transport Transport `json:"-" bson:"-"`
}

// MarkSuspicious raises the suspicious flag.
func (r *PacketRecord) MarkSuspicious() {
	r.IsSuspicious = true
}

// MarkMalicious raises both flags; a malicious record is always suspicious.
func (r *PacketRecord) MarkMalicious() {
	r.IsSuspicious = true
	r.IsMalicious = true
}

// Flagged reports whether any detector marked the record.
func (r *PacketRecord) Flagged() bool {
	return r.IsSuspicious || r.IsMalicious
}

// SetPorts records transport ports for TCP and UDP records.
func (r *PacketRecord) SetPorts(src, dst uint16) {
	r.SourcePort = &src
	r.DestinationPort = &dst
}

// Ports returns the transport ports, zero when absent.
func (r *PacketRecord) Ports() (src, dst uint16) {
	if r.SourcePort != nil {
		src = *r.SourcePort
	}
	if r.DestinationPort != nil {
		dst = *r.DestinationPort
	}
	return src, dst
}

func (r *PacketRecord) String() string {
	src, dst := r.Ports()
	return fmt.Sprintf("%s %s:%d -> %s:%d %s len=%d", r.IPVersion, r.SourceIP, src, r.DestinationIP, dst, r.Protocol, r.TotalLength)
}

// FilterFlagged returns the records with at least one flag raised,
// preserving order.
func FilterFlagged(records []*PacketRecord) []*PacketRecord {
	var flagged []*PacketRecord
	for _, r := range records {
		if r.Flagged() {
			flagged = append(flagged, r)
		}
	}
	return flagged
}

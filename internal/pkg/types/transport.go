package types

// Transport is the transport-layer view of a record, produced once by the
// decoder. Consumers switch on the concrete type instead of probing layers.
type Transport interface {
	Protocol() Protocol
	isTransport()
}

// TCPSegment carries the TCP header fields the detectors need.
type TCPSegment struct {
	SrcPort uint16
	DstPort uint16
	SYN     bool
	ACK     bool
	FIN     bool
	RST     bool
	PSH     bool
	URG     bool
}

// SYNOnly reports a connection-opening segment (SYN set, ACK clear).
func (t TCPSegment) SYNOnly() bool {
	return t.SYN && !t.ACK
}

// UDPDatagram carries UDP ports.
type UDPDatagram struct {
	SrcPort uint16
	DstPort uint16
}

// ICMPv4Message carries the ICMPv4 type and code.
type ICMPv4Message struct {
	Type uint8
	Code uint8
}

// ICMPv4 echo request type
const ICMPv4EchoRequest uint8 = 8

// EchoRequest reports an ICMPv4 echo request.
func (m ICMPv4Message) EchoRequest() bool {
	return m.Type == ICMPv4EchoRequest
}

// ICMPv6Message carries the ICMPv6 type and code.
type ICMPv6Message struct {
	Type uint8
	Code uint8
}

// ICMPv6 echo request type
const ICMPv6EchoRequest uint8 = 128

// EchoRequest reports an ICMPv6 echo request.
func (m ICMPv6Message) EchoRequest() bool {
	return m.Type == ICMPv6EchoRequest
}

// ARPMessage carries the ARP operation (1 request, 2 reply).
type ARPMessage struct {
	Operation uint16
}

// OtherTransport is any IP payload the decoder does not model.
type OtherTransport struct {
	IPProtocol uint8
}

func (TCPSegment) Protocol() Protocol     { return ProtocolTCP }
func (UDPDatagram) Protocol() Protocol    { return ProtocolUDP }
func (ICMPv4Message) Protocol() Protocol  { return ProtocolICMP }
func (ICMPv6Message) Protocol() Protocol  { return ProtocolICMPv6 }
func (ARPMessage) Protocol() Protocol     { return ProtocolARP }
func (OtherTransport) Protocol() Protocol { return ProtocolOther }

func (TCPSegment) isTransport()     {}
func (UDPDatagram) isTransport()    {}
func (ICMPv4Message) isTransport()  {}
func (ICMPv6Message) isTransport()  {}
func (ARPMessage) isTransport()     {}
func (OtherTransport) isTransport() {}

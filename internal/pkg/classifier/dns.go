package classifier

import (
	"fmt"
	"strings"

	"github.com/miekg/dns"
)

// SummarizeDNS renders a DNS or mDNS message as header, question and answer
// sections. When the message is truncated or malformed past its header, the
// header summary is still returned together with the error.
func SummarizeDNS(payload []byte, mdns bool) (string, error) {
	msg := new(dns.Msg)
	err := msg.Unpack(payload)
	if err != nil && len(payload) < dnsHeaderLen {
		return "", err
	}

	var b strings.Builder
	writeHeader(&b, msg, mdns)
	if err != nil {
		fmt.Fprintf(&b, "\n(truncated: %v)", err)
		return b.String(), err
	}

	if len(msg.Question) > 0 {
		fmt.Fprintf(&b, "\nQuestions (%d):", len(msg.Question))
		for _, q := range msg.Question {
			fmt.Fprintf(&b, "\n  %s %s %s", q.Name, classString(q.Qclass), dns.TypeToString[q.Qtype])
		}
	}
	if len(msg.Answer) > 0 {
		fmt.Fprintf(&b, "\nAnswers (%d):", len(msg.Answer))
		for _, rr := range msg.Answer {
			fmt.Fprintf(&b, "\n  %s", rr.String())
		}
	}
	return b.String(), nil
}

const dnsHeaderLen = 12

func writeHeader(b *strings.Builder, msg *dns.Msg, mdns bool) {
	kind := "DNS"
	if mdns {
		kind = "mDNS"
	}
	direction := "query"
	if msg.Response {
		direction = "response"
	}

	var flags []string
	for _, f := range []struct {
		set  bool
		name string
	}{
		{msg.Response, "qr"},
		{msg.Authoritative, "aa"},
		{msg.Truncated, "tc"},
		{msg.RecursionDesired, "rd"},
		{msg.RecursionAvailable, "ra"},
	} {
		if f.set {
			flags = append(flags, f.name)
		}
	}

	fmt.Fprintf(b, "%s %s id=0x%04x opcode=%s rcode=%s flags=%s",
		kind, direction, msg.Id,
		dns.OpcodeToString[msg.Opcode],
		dns.RcodeToString[msg.Rcode],
		strings.Join(flags, ","))
}

// classString strips the mDNS unicast-response bit before naming the class.
func classString(class uint16) string {
	if s, ok := dns.ClassToString[class&0x7fff]; ok {
		return s
	}
	return fmt.Sprintf("CLASS%d", class)
}

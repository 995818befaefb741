// Package classifier turns a transport payload into a short human-readable
// summary. Classify is total: every payload yields a summary, an explicit
// marker, or nil for an empty payload.
package classifier

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode"

	"github.com/endorses/lippyguard/internal/pkg/logger"
	"golang.org/x/text/encoding/charmap"
)

// Markers returned instead of decoded text.
const (
	EncryptedMarker    = "[encrypted payload]"
	BinaryMarker       = "[binary payload]"
	MalformedDNSMarker = "[malformed DNS payload]"
)

// Well-known ports that select a decoder.
const (
	PortHTTPS = 443
	PortDNS   = 53
	PortMDNS  = 5353
	PortSSDP  = 1900
)

// Result is the classification of one payload.
type Result struct {
	Text *string
	JSON bool
}

func text(s string) Result {
	return Result{Text: &s}
}

// Classify applies the rules in order; the first match wins.
func Classify(payload []byte, srcPort, dstPort uint16) Result {
	if eitherPort(srcPort, dstPort, PortHTTPS) {
		return text(EncryptedMarker)
	}
	if len(payload) == 0 {
		return Result{}
	}
	if raw, ok := detectJSON(payload); ok {
		r := text(raw)
		r.JSON = true
		return r
	}
	if eitherPort(srcPort, dstPort, PortDNS) || eitherPort(srcPort, dstPort, PortMDNS) {
		mdns := eitherPort(srcPort, dstPort, PortMDNS)
		return summarizeDNSSafe(payload, mdns)
	}
	if eitherPort(srcPort, dstPort, PortSSDP) {
		return text(strings.TrimSpace(strings.ToValidUTF8(string(payload), "")))
	}
	return printable(payload)
}

func eitherPort(src, dst, port uint16) bool {
	return src == port || dst == port
}

// detectJSON accepts only a complete object or array.
func detectJSON(payload []byte) (string, bool) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) < 2 {
		return "", false
	}
	first, last := trimmed[0], trimmed[len(trimmed)-1]
	if !(first == '{' && last == '}') && !(first == '[' && last == ']') {
		return "", false
	}
	if !json.Valid(trimmed) {
		return "", false
	}
	return string(trimmed), true
}

func summarizeDNSSafe(payload []byte, mdns bool) (res Result) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Debug("DNS payload decode panicked", "panic_value", rec)
			res = text(MalformedDNSMarker)
		}
	}()
	summary, err := SummarizeDNS(payload, mdns)
	if err != nil {
		logger.Debug("DNS payload decode failed", "error", err, "bytes", len(payload))
	}
	if summary == "" {
		return text(MalformedDNSMarker)
	}
	return text(summary)
}

// printable decodes the payload as Latin-1, drops non-printable runes and
// keeps the result only when it carries at least one letter or digit.
func printable(payload []byte) Result {
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(payload)
	if err != nil {
		return text(BinaryMarker)
	}

	var b strings.Builder
	alnum := false
	for _, r := range string(decoded) {
		if !unicode.IsPrint(r) {
			continue
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			alnum = true
		}
		b.WriteRune(r)
	}
	if !alnum {
		return text(BinaryMarker)
	}
	return text(b.String())
}

// Package capture provides the frame source for a capture session: interface
// selection, device activation and the bounded poll loop.
package capture

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/endorses/lippyguard/internal/pkg/logger"
	"github.com/google/gopacket/pcap"
)

// ErrNoInterface is returned when no capture-capable interface exists.
var ErrNoInterface = errors.New("no capture interface found")

// InterfaceInfo describes an interface that can be opened for capture.
type InterfaceInfo struct {
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	HardwareAddr string   `json:"hardware_addr,omitempty"`
	Addresses    []string `json:"addresses,omitempty"`
}

// Enumerator lists interfaces in enumeration order.
type Enumerator interface {
	Interfaces() ([]InterfaceInfo, error)
}

// PcapEnumerator enumerates devices through libpcap and resolves hardware
// addresses from the OS interface table.
type PcapEnumerator struct{}

func (PcapEnumerator) Interfaces() ([]InterfaceInfo, error) {
	devices, err := pcap.FindAllDevs()
	if err != nil {
		return nil, err
	}

	result := make([]InterfaceInfo, 0, len(devices))
	for _, device := range devices {
		info := InterfaceInfo{
			Name:        device.Name,
			Description: sanitizeDescription(device.Description),
		}
		for _, addr := range device.Addresses {
			if addr.IP != nil {
				info.Addresses = append(info.Addresses, addr.IP.String())
			}
		}
		if netIface, err := net.InterfaceByName(device.Name); err == nil {
			info.HardwareAddr = netIface.HardwareAddr.String()
		}
		result = append(result, info)
	}
	return result, nil
}

// FixedEnumerator always reports the same interface. It stands in for
// enumeration when frames come from a file.
type FixedEnumerator struct {
	Iface InterfaceInfo
}

func (e FixedEnumerator) Interfaces() ([]InterfaceInfo, error) {
	return []InterfaceInfo{e.Iface}, nil
}

// SelectInterface picks the capture interface. An interface whose hardware
// address is on the allow-list wins; otherwise the first enumerated interface
// is used.
func SelectInterface(enum Enumerator, allowedMACs []string) (InterfaceInfo, error) {
	ifaces, err := enum.Interfaces()
	if err != nil {
		return InterfaceInfo{}, fmt.Errorf("%w: %v", ErrNoInterface, err)
	}
	if len(ifaces) == 0 {
		return InterfaceInfo{}, ErrNoInterface
	}

	allowed := make(map[string]struct{}, len(allowedMACs))
	for _, mac := range allowedMACs {
		if normalized := NormalizeMAC(mac); normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}

	for _, iface := range ifaces {
		if _, ok := allowed[NormalizeMAC(iface.HardwareAddr)]; ok && iface.HardwareAddr != "" {
			logger.Debug("Selected allow-listed interface",
				"interface", iface.Name,
				"hardware_addr", iface.HardwareAddr)
			return iface, nil
		}
	}

	if len(allowed) > 0 {
		logger.Warn("No interface matches the hardware address allow-list, using first interface",
			"interface", ifaces[0].Name)
	}
	return ifaces[0], nil
}

// FindInterface returns the named interface.
func FindInterface(enum Enumerator, name string) (InterfaceInfo, error) {
	ifaces, err := enum.Interfaces()
	if err != nil {
		return InterfaceInfo{}, fmt.Errorf("%w: %v", ErrNoInterface, err)
	}
	for _, iface := range ifaces {
		if iface.Name == name {
			return iface, nil
		}
	}
	return InterfaceInfo{}, fmt.Errorf("%w: %s", ErrNoInterface, name)
}

// MatchesAllowList reports whether hardwareAddr is on the allow-list.
func MatchesAllowList(hardwareAddr string, allowedMACs []string) bool {
	normalized := NormalizeMAC(hardwareAddr)
	if normalized == "" {
		return false
	}
	for _, mac := range allowedMACs {
		if NormalizeMAC(mac) == normalized {
			return true
		}
	}
	return false
}

// NormalizeMAC lower-cases a hardware address and accepts '-' separators.
func NormalizeMAC(mac string) string {
	mac = strings.ToLower(strings.TrimSpace(mac))
	return strings.ReplaceAll(mac, "-", ":")
}

// sanitizeDescription cleans up interface descriptions for display.
func sanitizeDescription(desc string) string {
	desc = strings.TrimSpace(desc)

	if len(desc) > 50 {
		desc = desc[:50] + "..."
	}

	return desc
}

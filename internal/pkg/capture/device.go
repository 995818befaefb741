package capture

import (
	"errors"
	"fmt"
	"os"

	"github.com/endorses/lippyguard/internal/pkg/capture/pcaptypes"
	"github.com/endorses/lippyguard/internal/pkg/logger"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
)

// ErrDeviceOpen is returned when an interface exists but cannot be activated.
var ErrDeviceOpen = errors.New("failed to open capture device")

// Device is an activated capture handle owned by one session.
type Device interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
	Close() error
}

// Opener activates a device for an interface.
type Opener interface {
	Open(iface InterfaceInfo) (Device, error)
}

// LiveOpener opens libpcap live handles.
type LiveOpener struct {
	Options   pcaptypes.LiveOptions
	BPFFilter string
}

func (o LiveOpener) Open(iface InterfaceInfo) (Device, error) {
	return openPcap(pcaptypes.CreateLiveInterface(iface.Name, o.Options), o.BPFFilter)
}

// FileOpener replays a pcap file regardless of the selected interface.
type FileOpener struct {
	Path      string
	BPFFilter string
}

func (o FileOpener) Open(InterfaceInfo) (Device, error) {
	return OpenFile(o.Path, o.BPFFilter)
}

// OpenFile replays a pcap file as a device. The file is closed with the device.
func OpenFile(path, filter string) (Device, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceOpen, err)
	}
	dev, err := openPcap(pcaptypes.CreateOfflineInterface(file), filter)
	if err != nil {
		file.Close()
		return nil, err
	}
	dev.(*pcapDevice).file = file
	return dev, nil
}

func openPcap(pif pcaptypes.PcapInterface, filter string) (Device, error) {
	if err := pif.SetHandle(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDeviceOpen, pif.Name(), err)
	}
	handle, err := pif.Handle()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDeviceOpen, pif.Name(), err)
	}
	if filter != "" {
		if err := handle.SetBPFFilter(filter); err != nil {
			handle.Close()
			return nil, fmt.Errorf("%w: invalid bpf filter %q: %v", ErrDeviceOpen, filter, err)
		}
	}
	return &pcapDevice{name: pif.Name(), handle: handle}, nil
}

type pcapDevice struct {
	name   string
	handle *pcap.Handle
	file   *os.File
}

func (d *pcapDevice) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	return d.handle.ReadPacketData()
}

func (d *pcapDevice) LinkType() layers.LinkType {
	return d.handle.LinkType()
}

func (d *pcapDevice) Close() error {
	d.handle.Close()
	if d.file != nil {
		return d.file.Close()
	}
	return nil
}

// CloseDevice releases a device on every exit path. A failing close is
// logged and never propagated.
func CloseDevice(dev Device) {
	if dev == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("Capture device close panicked", "panic_value", rec)
		}
	}()
	if err := dev.Close(); err != nil {
		logger.Warn("Failed to close capture device", "error", err)
	}
}

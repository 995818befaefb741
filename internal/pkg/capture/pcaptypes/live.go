package pcaptypes

import (
	"errors"

	"github.com/endorses/lippyguard/internal/pkg/constants"
	"github.com/google/gopacket/pcap"
)

type liveInterface struct {
	Device string
	opts   LiveOptions
	handle *pcap.Handle
}

func (iface *liveInterface) SetHandle() error {
	// Close existing handle if it exists to prevent leaks
	if iface.handle != nil {
		iface.handle.Close()
		iface.handle = nil
	}

	snapLen := iface.opts.SnapLen
	if snapLen <= 0 {
		snapLen = constants.DefaultSnapshotLen
	}

	// A bounded read timeout keeps the poll loop responsive so the capture
	// window can be enforced between reads.
	timeout := iface.opts.ReadTimeout
	if timeout <= 0 {
		timeout = constants.DefaultReadTimeout
	}

	bufferSize := iface.opts.BufferSize
	if bufferSize <= 0 {
		bufferSize = constants.DefaultPcapBufferSize
	}

	// Use inactive handle to set buffer size before activation
	inactive, err := pcap.NewInactiveHandle(iface.Device)
	if err != nil {
		return err
	}
	defer inactive.CleanUp()

	if err := inactive.SetSnapLen(snapLen); err != nil {
		return err
	}
	if err := inactive.SetPromisc(iface.opts.Promiscuous); err != nil {
		return err
	}
	if err := inactive.SetTimeout(timeout); err != nil {
		return err
	}
	if err := inactive.SetBufferSize(bufferSize); err != nil {
		return err
	}

	handle, err := inactive.Activate()
	if err != nil {
		return err
	}

	iface.handle = handle
	return nil
}

func (iface *liveInterface) Handle() (*pcap.Handle, error) {
	if iface.handle == nil {
		return nil, errors.New("interface has no handle")
	}
	return iface.handle, nil
}

func (iface *liveInterface) Name() string {
	return iface.Device
}

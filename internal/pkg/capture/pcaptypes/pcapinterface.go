package pcaptypes

import (
	"os"
	"time"

	"github.com/google/gopacket/pcap"
)

// PcapInterface is a capture source that can be activated into a pcap handle.
type PcapInterface interface {
	SetHandle() error
	Handle() (*pcap.Handle, error)
	Name() string
}

// LiveOptions controls how a live device is activated.
type LiveOptions struct {
	Promiscuous bool
	SnapLen     int
	ReadTimeout time.Duration
	BufferSize  int
}

func CreateLiveInterface(device string, opts LiveOptions) PcapInterface {
	return &liveInterface{Device: device, opts: opts}
}

func CreateOfflineInterface(file *os.File) PcapInterface {
	return &offlineInterface{file: file}
}

package pcaptypes

import (
	"errors"
	"os"

	"github.com/google/gopacket/pcap"
)

type offlineInterface struct {
	file   *os.File
	handle *pcap.Handle
}

func (iface *offlineInterface) SetHandle() error {
	if iface.file == nil {
		return errors.New("offline interface has no file")
	}
	handle, err := pcap.OpenOfflineFile(iface.file)
	if err != nil {
		return err
	}
	iface.handle = handle
	return nil
}

func (iface *offlineInterface) Handle() (*pcap.Handle, error) {
	if iface.handle == nil {
		return nil, errors.New("interface has no handle")
	}
	return iface.handle, nil
}

func (iface *offlineInterface) Name() string {
	if iface.file == nil {
		return "offline"
	}
	return iface.file.Name()
}

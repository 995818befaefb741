package session

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/endorses/lippyguard/internal/pkg/capture"
	"github.com/endorses/lippyguard/internal/pkg/config"
	"github.com/endorses/lippyguard/internal/pkg/types"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/require"
)

// scriptedDevice replays frames, then optionally blocks until release is
// closed, then reports io.EOF.
type scriptedDevice struct {
	mu      sync.Mutex
	frames  [][]byte
	release chan struct{}
	closed  bool
}

func (d *scriptedDevice) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	d.mu.Lock()
	if len(d.frames) > 0 {
		f := d.frames[0]
		d.frames = d.frames[1:]
		d.mu.Unlock()
		return f, gopacket.CaptureInfo{CaptureLength: len(f), Length: len(f)}, nil
	}
	release := d.release
	d.mu.Unlock()
	if release != nil {
		<-release
	}
	return nil, gopacket.CaptureInfo{}, io.EOF
}

func (d *scriptedDevice) LinkType() layers.LinkType { return layers.LinkTypeEthernet }

func (d *scriptedDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *scriptedDevice) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

type fakeOpener struct {
	dev    capture.Device
	err    error
	opened []string
}

func (o *fakeOpener) Open(iface capture.InterfaceInfo) (capture.Device, error) {
	o.opened = append(o.opened, iface.Name)
	if o.err != nil {
		return nil, o.err
	}
	return o.dev, nil
}

type staticEnumerator []capture.InterfaceInfo

func (e staticEnumerator) Interfaces() ([]capture.InterfaceInfo, error) {
	return e, nil
}

type recordingPublisher struct {
	mu      sync.Mutex
	batches []types.SessionBatch
	err     error
}

func (p *recordingPublisher) Publish(_ context.Context, batch types.SessionBatch) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, batch)
	return p.err
}

type recordingStore struct {
	calls [][]*types.PacketRecord
	err   error
}

func (s *recordingStore) InsertFlagged(_ context.Context, records []*types.PacketRecord) error {
	s.calls = append(s.calls, records)
	return s.err
}

func (s *recordingStore) Close() error { return nil }

var errStoreDown = errors.New("store unavailable")

// stepClock advances by step on every call.
type stepClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.t
	c.t = c.t.Add(c.step)
	return now
}

func newClock() *stepClock {
	return &stepClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), step: time.Millisecond}
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Capture.Window = 15 * time.Second
	cfg.Storage.Driver = config.DriverNone
	return cfg
}

func synFrame(t *testing.T, src string, dstPort uint16) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true},
		&layers.Ethernet{
			SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
			DstMAC:       net.HardwareAddr{6, 7, 8, 9, 10, 11},
			EthernetType: layers.EthernetTypeIPv4,
		},
		&layers.IPv4{
			Version:  4,
			TTL:      64,
			Protocol: layers.IPProtocolTCP,
			SrcIP:    net.ParseIP(src),
			DstIP:    net.ParseIP("10.0.0.1"),
		},
		&layers.TCP{SrcPort: 40000, DstPort: layers.TCPPort(dstPort), SYN: true, Window: 1024},
	)
	require.NoError(t, err)
	return buf.Bytes()
}

func arpFrame(t *testing.T) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true},
		&layers.Ethernet{
			SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
			DstMAC:       net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
			EthernetType: layers.EthernetTypeARP,
		},
		&layers.ARP{
			AddrType:          layers.LinkTypeEthernet,
			Protocol:          layers.EthernetTypeIPv4,
			HwAddressSize:     6,
			ProtAddressSize:   4,
			Operation:         layers.ARPRequest,
			SourceHwAddress:   []byte{0, 1, 2, 3, 4, 5},
			SourceProtAddress: []byte{10, 0, 0, 5},
			DstHwAddress:      []byte{0, 0, 0, 0, 0, 0},
			DstProtAddress:    []byte{10, 0, 0, 1},
		},
	)
	require.NoError(t, err)
	return buf.Bytes()
}

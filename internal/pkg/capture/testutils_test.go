package capture

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Common test utilities shared across all test files

type readResult struct {
	data []byte
	err  error
}

// fakeDevice replays scripted reads and then reports io.EOF.
type fakeDevice struct {
	mu       sync.Mutex
	reads    []readResult
	closed   bool
	closeErr error
	panicOn  bool
}

func (d *fakeDevice) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.reads) == 0 {
		return nil, gopacket.CaptureInfo{}, io.EOF
	}
	r := d.reads[0]
	d.reads = d.reads[1:]
	if r.err != nil {
		return nil, gopacket.CaptureInfo{}, r.err
	}
	return r.data, gopacket.CaptureInfo{CaptureLength: len(r.data), Length: len(r.data)}, nil
}

func (d *fakeDevice) LinkType() layers.LinkType { return layers.LinkTypeEthernet }

func (d *fakeDevice) Close() error {
	if d.panicOn {
		panic("close exploded")
	}
	d.closed = true
	return d.closeErr
}

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

type staticEnumerator struct {
	ifaces []InterfaceInfo
	err    error
}

func (e staticEnumerator) Interfaces() ([]InterfaceInfo, error) {
	return e.ifaces, e.err
}

var errDeviceGone = errors.New("device went away")

package decoder

import (
	"sync"

	"github.com/endorses/lippyguard/internal/pkg/types"
)

// defaultFragmentEntries limits tracked datagrams per session.
const defaultFragmentEntries = 4096

type fragmentKey struct {
	src   string
	dst   string
	id    uint32
	proto uint8
}

// fragmentTracker remembers the transport of first fragments, keyed like
// reassembly state (addresses, identification, protocol).
type fragmentTracker struct {
	mu      sync.Mutex
	max     int
	entries map[fragmentKey]types.Transport
}

func newFragmentTracker(max int) *fragmentTracker {
	return &fragmentTracker{
		max:     max,
		entries: make(map[fragmentKey]types.Transport),
	}
}

func (f *fragmentTracker) remember(key fragmentKey, t types.Transport) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.entries) >= f.max {
		// A flood of first fragments must not grow without bound.
		f.entries = make(map[fragmentKey]types.Transport)
	}
	f.entries[key] = t
}

func (f *fragmentTracker) lookup(key fragmentKey) (types.Transport, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.entries[key]
	return t, ok
}

func (f *fragmentTracker) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

// Package registry implements the connection manager: the indexed set of
// known devices, keyed both by current socket address and by hardware
// identity, with session adoption across address changes.
package registry

import (
	"net"
	"sync"

	"github.com/go-slimevr/trackerhub/pkg/protocol"
)

// ConnectionRegistry owns every known Device for the life of the process.
// All operations are serialized under a single registry-wide mutex (§5):
// the event loop is the sole writer, and outside readers (a UI
// enumerating devices) only ever take the read path via Snapshot.
type ConnectionRegistry struct {
	mu sync.Mutex

	order      []*Device
	byAddress  map[string]*Device
	byHardware map[string]*Device
}

// New returns an empty registry.
func New() *ConnectionRegistry {
	return &ConnectionRegistry{
		byAddress:  make(map[string]*Device),
		byHardware: make(map[string]*Device),
	}
}

// LookupByAddress returns the device currently mapped to addr, if any.
func (r *ConnectionRegistry) LookupByAddress(addr *net.UDPAddr) (*Device, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.byAddress[addr.String()]

	return d, ok
}

// FindOrAdopt implements §4.1's findOrAdopt: it resolves the session key
// from the handshake's MAC (falling back to the peer IP when the device
// omitted its MAC), then either moves an existing device's address
// mapping (adoption) or creates a brand new one.
func (r *ConnectionRegistry) FindOrAdopt(h protocol.Handshake, peerAddr *net.UDPAddr) (device *Device, adopted bool) {
	key := sessionKey(h, peerAddr)

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byHardware[key]; ok {
		if oldAddr := existing.Address(); oldAddr != nil {
			delete(r.byAddress, oldAddr.String())
		}

		existing.applyHandshake(h, peerAddr)
		r.byAddress[peerAddr.String()] = existing

		return existing, true
	}

	d := newDevice(key, h, peerAddr)

	r.order = append(r.order, d)
	r.byHardware[key] = d
	r.byAddress[peerAddr.String()] = d

	return d, false
}

// HasAnySensors reports whether at least one device has a provisioned
// tracker; the event loop uses this to decide whether discovery
// broadcasts should keep firing (§4.4).
func (r *ConnectionRegistry) HasAnySensors() bool {
	r.mu.Lock()
	devices := append([]*Device(nil), r.order...)
	r.mu.Unlock()

	for _, d := range devices {
		if d.HasTrackers() {
			return true
		}
	}

	return false
}

// ForEach iterates every device in insertion order. f must not call back
// into the registry.
func (r *ConnectionRegistry) ForEach(f func(*Device)) {
	r.mu.Lock()
	devices := append([]*Device(nil), r.order...)
	r.mu.Unlock()

	for _, d := range devices {
		f(d)
	}
}

// ConnectionIndex returns d's stable insertion-order index, used only for
// diagnostic log messages.
func (r *ConnectionRegistry) ConnectionIndex(d *Device) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.order {
		if existing == d {
			return i
		}
	}

	return -1
}

// Snapshot returns a read-only copy of the current device list, safe for
// a reader thread (e.g. a UI enumerating devices) outside the event loop
// to hold without racing the single-writer event loop (§5, §9).
func (r *ConnectionRegistry) Snapshot() []*Device {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]*Device(nil), r.order...)
}

func sessionKey(h protocol.Handshake, peerAddr *net.UDPAddr) string {
	if h.MAC != nil && *h.MAC != "" {
		return *h.MAC
	}

	return peerAddr.IP.String()
}

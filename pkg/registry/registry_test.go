package registry

import (
	"net"
	"testing"

	"github.com/go-slimevr/trackerhub/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustAddr(t *testing.T, s string) *net.UDPAddr {
	t.Helper()

	addr, err := net.ResolveUDPAddr("udp", s)
	require.NoError(t, err)

	return addr
}

func TestFindOrAdopt_CreatesNewDeviceKeyedByMAC(t *testing.T) {
	r := New()
	mac := "AA:BB:CC:DD:EE:FF"
	h := protocol.Handshake{MAC: &mac, FirmwareBuild: 7, BoardType: 1, MCUType: 2}
	addr := mustAddr(t, "10.0.0.5:4567")

	d, adopted := r.FindOrAdopt(h, addr)

	require.False(t, adopted)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", d.HardwareID())
	assert.Equal(t, "udp://AA:BB:CC:DD:EE:FF", d.Name())

	got, ok := r.LookupByAddress(addr)
	assert.True(t, ok)
	assert.Same(t, d, got)
}

func TestFindOrAdopt_FallsBackToIPWithoutMAC(t *testing.T) {
	r := New()
	h := protocol.Handshake{FirmwareBuild: 7}
	addr := mustAddr(t, "10.0.0.9:4567")

	d, adopted := r.FindOrAdopt(h, addr)

	require.False(t, adopted)
	assert.Equal(t, "10.0.0.9", d.HardwareID())
	assert.Equal(t, "udp:/10.0.0.9", d.Name())
	assert.Equal(t, "udp:/10.0.0.9", d.DescriptiveName())
}

func TestFindOrAdopt_SessionMigrationMovesAddress(t *testing.T) {
	r := New()
	mac := "AA:BB:CC:DD:EE:FF"
	first := mustAddr(t, "10.0.0.5:4567")
	second := mustAddr(t, "10.0.0.6:4567")

	d1, _ := r.FindOrAdopt(protocol.Handshake{MAC: &mac}, first)
	index := r.ConnectionIndex(d1)

	d2, adopted := r.FindOrAdopt(protocol.Handshake{MAC: &mac}, second)

	require.True(t, adopted)
	assert.Same(t, d1, d2)
	assert.Equal(t, index, r.ConnectionIndex(d2))

	_, stillThere := r.LookupByAddress(first)
	assert.False(t, stillThere)

	moved, ok := r.LookupByAddress(second)
	assert.True(t, ok)
	assert.Same(t, d1, moved)
}

func TestFindOrAdopt_ResetsLastPacketNumberOnAdoption(t *testing.T) {
	r := New()
	mac := "AA:BB:CC:DD:EE:FF"
	first := mustAddr(t, "10.0.0.5:4567")
	second := mustAddr(t, "10.0.0.6:4567")

	d, _ := r.FindOrAdopt(protocol.Handshake{MAC: &mac}, first)
	d.SetLastPacketNumber(42)

	r.FindOrAdopt(protocol.Handshake{MAC: &mac}, second)

	assert.Equal(t, uint32(0), d.LastPacketNumber())
}

func TestFindOrAdopt_BoardAndMCUTypeOnlySetAtCreation(t *testing.T) {
	r := New()
	mac := "AA:BB:CC:DD:EE:FF"
	addr := mustAddr(t, "10.0.0.5:4567")

	d, _ := r.FindOrAdopt(protocol.Handshake{MAC: &mac, BoardType: 1, MCUType: 2}, addr)
	r.FindOrAdopt(protocol.Handshake{MAC: &mac, BoardType: 9, MCUType: 9}, addr)

	assert.Equal(t, 1, d.BoardType())
	assert.Equal(t, 2, d.MCUType())
}

func TestHasAnySensors_FalseUntilProvisioned(t *testing.T) {
	r := New()
	mac := "AA:BB:CC:DD:EE:FF"
	addr := mustAddr(t, "10.0.0.5:4567")
	d, _ := r.FindOrAdopt(protocol.Handshake{MAC: &mac}, addr)

	assert.False(t, r.HasAnySensors())

	d.SetTracker(0, nil)

	assert.True(t, r.HasAnySensors())
}

func TestForEach_VisitsInInsertionOrder(t *testing.T) {
	r := New()
	mac1, mac2 := "AA:AA:AA:AA:AA:AA", "BB:BB:BB:BB:BB:BB"
	d1, _ := r.FindOrAdopt(protocol.Handshake{MAC: &mac1}, mustAddr(t, "10.0.0.1:1"))
	d2, _ := r.FindOrAdopt(protocol.Handshake{MAC: &mac2}, mustAddr(t, "10.0.0.2:1"))

	var visited []*Device
	r.ForEach(func(d *Device) { visited = append(visited, d) })

	require.Len(t, visited, 2)
	assert.Same(t, d1, visited[0])
	assert.Same(t, d2, visited[1])
}

func TestSnapshot_IsIndependentOfLiveRegistry(t *testing.T) {
	r := New()
	mac := "AA:AA:AA:AA:AA:AA"
	r.FindOrAdopt(protocol.Handshake{MAC: &mac}, mustAddr(t, "10.0.0.1:1"))

	snap := r.Snapshot()
	require.Len(t, snap, 1)

	mac2 := "BB:BB:BB:BB:BB:BB"
	r.FindOrAdopt(protocol.Handshake{MAC: &mac2}, mustAddr(t, "10.0.0.2:1"))

	assert.Len(t, snap, 1)
	assert.Len(t, r.Snapshot(), 2)
}

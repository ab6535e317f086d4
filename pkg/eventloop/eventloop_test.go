package eventloop

import (
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/go-slimevr/trackerhub/pkg/config"
	"github.com/go-slimevr/trackerhub/pkg/owotrack"
	"github.com/go-slimevr/trackerhub/pkg/protocol"
	"github.com/go-slimevr/trackerhub/pkg/trackerapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLoop(t *testing.T, host *fakeHost) *EventLoop {
	t.Helper()

	cfg := config.Default()
	cfg.ListenPort = 0

	loop, err := New(cfg, owotrack.New(), host, nil, testLogger())
	require.NoError(t, err)

	t.Cleanup(func() { _ = loop.conn.Close() })

	return loop
}

// buildHandshakeDatagram encodes a minimal Handshake(3) datagram in the
// same wire layout pkg/owotrack parses, for tests that need to drive the
// event loop's receive duty from a raw byte payload instead of calling
// the dispatcher directly.
func buildHandshakeDatagram(t *testing.T, packetNumber uint64, mac [6]byte) []byte {
	t.Helper()

	var buf []byte
	var tmp [4]byte

	writeU32 := func(v uint32) {
		binary.BigEndian.PutUint32(tmp[:], v)
		buf = append(buf, tmp[:]...)
	}

	binary.BigEndian.PutUint32(tmp[:], uint32(protocol.KindHandshake))
	buf = append(buf, tmp[:]...)

	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], packetNumber)
	buf = append(buf, seq[:]...)

	writeU32(1) // board type
	writeU32(2) // imu type
	writeU32(3) // mcu type
	writeU32(7) // firmware build

	writeU32(0) // firmware string length (legacy: empty)
	buf = append(buf, mac[:]...)

	return buf
}

func TestDiscoveryDuty_FiresOnceThenWaitsForInterval(t *testing.T) {
	loop := newTestLoop(t, newFakeHost())

	listener := newLoopbackConn(t)
	loop.broadcastAddrs = []*net.UDPAddr{listener.LocalAddr().(*net.UDPAddr)}

	clock := newFakeClock(time.UnixMilli(10_000))
	loop.clock = clock

	loop.runDiscoveryDuty()
	assert.Equal(t, int64(1), loop.Stats().DiscoverySends)

	loop.runDiscoveryDuty()
	assert.Equal(t, int64(1), loop.Stats().DiscoverySends, "should not resend before the 2s interval elapses")

	clock.Advance(2001 * time.Millisecond)
	loop.runDiscoveryDuty()
	assert.Equal(t, int64(2), loop.Stats().DiscoverySends)
}

func TestDiscoveryDuty_PausesOnceASensorIsProvisioned(t *testing.T) {
	loop := newTestLoop(t, newFakeHost())

	listener := newLoopbackConn(t)
	loop.broadcastAddrs = []*net.UDPAddr{listener.LocalAddr().(*net.UDPAddr)}
	loop.clock = newFakeClock(time.UnixMilli(10_000))

	mac := "AA:BB:CC:DD:EE:FF"
	sender, err := net.ResolveUDPAddr("udp", "10.0.0.5:4567")
	require.NoError(t, err)
	device, _ := loop.registry.FindOrAdopt(protocol.Handshake{MAC: &mac}, sender)
	device.SetTracker(0, newFakeTracker())

	loop.runDiscoveryDuty()
	assert.Equal(t, int64(0), loop.Stats().DiscoverySends)
}

func TestReceiveDuty_HandshakeFromUnknownPeerCreatesDeviceAndReplies(t *testing.T) {
	loop := newTestLoop(t, newFakeHost())
	clientConn := newLoopbackConn(t)

	serverAddr := loop.conn.LocalAddr().(*net.UDPAddr)

	datagram := buildHandshakeDatagram(t, 1, [6]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF})
	_, err := clientConn.WriteToUDP(datagram, serverAddr)
	require.NoError(t, err)

	err = loop.runReceiveDuty()
	require.NoError(t, err)

	assert.Equal(t, int64(1), loop.Stats().Handshakes)
	assert.Equal(t, int64(1), loop.Stats().PacketsReceived)
	assert.Equal(t, int64(0), loop.Stats().Adoptions)

	snap := loop.registry.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", snap[0].HardwareID())

	reply := make([]byte, 64)
	require.NoError(t, clientConn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = clientConn.ReadFromUDP(reply)
	require.NoError(t, err)
	assert.Equal(t, int32(protocol.KindHandshake), int32(binary.BigEndian.Uint32(reply[:4])))
}

func TestReceiveDuty_SecondHandshakeFromSameMACCountsAsAdoption(t *testing.T) {
	loop := newTestLoop(t, newFakeHost())
	clientConn := newLoopbackConn(t)
	serverAddr := loop.conn.LocalAddr().(*net.UDPAddr)

	mac := [6]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}

	_, err := clientConn.WriteToUDP(buildHandshakeDatagram(t, 1, mac), serverAddr)
	require.NoError(t, err)
	require.NoError(t, loop.runReceiveDuty())

	secondConn := newLoopbackConn(t)
	_, err = secondConn.WriteToUDP(buildHandshakeDatagram(t, 1, mac), serverAddr)
	require.NoError(t, err)
	require.NoError(t, loop.runReceiveDuty())

	assert.Equal(t, int64(2), loop.Stats().Handshakes)
	assert.Equal(t, int64(1), loop.Stats().Adoptions)
	assert.Len(t, loop.registry.Snapshot(), 1)
}

func TestKeepaliveDuty_MarksDisconnectedAfterTimeoutAndRecovers(t *testing.T) {
	loop := newTestLoop(t, newFakeHost())
	clock := newFakeClock(time.UnixMilli(1_000_000))
	loop.clock = clock

	mac := "AA:BB:CC:DD:EE:FF"
	sender, err := net.ResolveUDPAddr("udp", "10.0.0.5:4567")
	require.NoError(t, err)
	device, _ := loop.registry.FindOrAdopt(protocol.Handshake{MAC: &mac}, sender)
	tracker := newFakeTracker()
	device.SetTracker(0, tracker)
	device.Touch(clock.Now().UnixMilli())

	loop.runKeepaliveDuty()
	assert.Equal(t, trackerapi.StatusOK, tracker.Status())
	assert.False(t, device.TimedOut())

	clock.Advance(1100 * time.Millisecond)
	loop.runKeepaliveDuty()

	assert.True(t, device.TimedOut())
	assert.Equal(t, trackerapi.StatusDisconnected, tracker.Status())

	clock.Advance(600 * time.Millisecond)
	device.Touch(clock.Now().UnixMilli())
	loop.runKeepaliveDuty()

	assert.False(t, device.TimedOut())
	assert.Equal(t, trackerapi.StatusOK, tracker.Status())
}

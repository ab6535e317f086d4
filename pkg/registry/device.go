package registry

import (
	"net"
	"sync"

	"github.com/go-slimevr/trackerhub/pkg/protocol"
	"github.com/go-slimevr/trackerhub/pkg/trackerapi"
)

// Protocol distinguishes the firmware lineage a device reported at
// handshake time; it only affects whether sensor 0 is auto-provisioned.
type Protocol int

const (
	ProtocolSlimeVRRaw Protocol = iota
	ProtocolOwoLegacy
)

// Device is one logical wireless sensor device: its network identity, the
// trackers it has provisioned, and the timing bookkeeping the event loop
// needs for liveness, ping and serial flush. There is one Device per
// hardware identity for the life of the process; nothing in the core ever
// deletes one.
type Device struct {
	mu sync.Mutex

	hardwareID       string
	address          *net.UDPAddr
	ipAddress        net.IP
	mac              *string
	descriptiveName  string
	name             string
	protocol         Protocol
	firmwareBuild    int
	firmwareFeatures map[uint64]struct{}
	boardType        int
	mcuType          int

	lastPacketTimeMs     int64
	lastPacketNumber     uint32
	lastPingPacketID     int32
	lastPingPacketTimeMs int64
	timedOut             bool

	lastSerialUpdateMs int64
	serialBuffer       strBuilder

	trackers map[int]trackerapi.Tracker
}

// strBuilder is a tiny indirection so tests can assert on accumulated
// serial text without reaching into an unexported strings.Builder field
// directly.
type strBuilder struct {
	text string
}

func (b *strBuilder) Append(s string) { b.text += s }
func (b *strBuilder) String() string  { return b.text }
func (b *strBuilder) Reset()          { b.text = "" }
func (b *strBuilder) Len() int        { return len(b.text) }

// HardwareID is the session-restoration key: the handshake's MAC if
// reported, else the peer's IP.
func (d *Device) HardwareID() string { return d.hardwareID }

// Address is the device's current peer socket address.
func (d *Device) Address() *net.UDPAddr {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.address
}

func (d *Device) Name() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.name
}

func (d *Device) Protocol() Protocol {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.protocol
}

func (d *Device) FirmwareBuild() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.firmwareBuild
}

func (d *Device) BoardType() int { return d.boardType }
func (d *Device) MCUType() int   { return d.mcuType }

func (d *Device) DescriptiveName() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.descriptiveName
}

// MAC returns the handshake-reported MAC, or nil if the device never
// reported one (in which case HardwareID fell back to its IP).
func (d *Device) MAC() *string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.mac
}

// LastPacketNumber and SetLastPacketNumber implement protocol.DeviceContext
// so the codec can suppress duplicate/out-of-order packets per peer.
func (d *Device) LastPacketNumber() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.lastPacketNumber
}

func (d *Device) SetLastPacketNumber(n uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.lastPacketNumber = n
}

// Touch records that a packet was just received from this device. It does
// not clear the timed-out latch itself; the next keepalive sweep does that
// once it sees the fresh timestamp.
func (d *Device) Touch(nowMs int64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.lastPacketTimeMs = nowMs
}

func (d *Device) LastPacketTimeMs() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.lastPacketTimeMs
}

func (d *Device) TimedOut() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.timedOut
}

func (d *Device) SetTimedOut(v bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.timedOut = v
}

func (d *Device) LastPingPacketID() int32 {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.lastPingPacketID
}

func (d *Device) LastPingPacketTimeMs() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.lastPingPacketTimeMs
}

// ArmPing records a freshly sent ping's nonce and send time.
func (d *Device) ArmPing(id int32, nowMs int64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.lastPingPacketID = id
	d.lastPingPacketTimeMs = nowMs
}

func (d *Device) LastSerialUpdateMs() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.lastSerialUpdateMs
}

// AppendSerial feeds the batched serial-flush buffer the keepalive sweep
// drains (§4.4); Serial(11) packets are also forwarded immediately by the
// dispatcher, independent of this buffer.
func (d *Device) AppendSerial(text string, nowMs int64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.serialBuffer.Append(text)
	d.lastSerialUpdateMs = nowMs
}

// DrainSerial returns the accumulated serial text and clears the buffer.
func (d *Device) DrainSerial() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := d.serialBuffer.String()
	d.serialBuffer.Reset()

	return s
}

func (d *Device) SetFirmwareFeatures(flags uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.firmwareFeatures = map[uint64]struct{}{flags: {}}
}

// HasFeatureFlags reports whether flags was the last firmware feature set
// stored on this device.
func (d *Device) HasFeatureFlags(flags uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, ok := d.firmwareFeatures[flags]

	return ok
}

// Tracker returns the tracker provisioned for sensorID, if any.
func (d *Device) Tracker(sensorID int) (trackerapi.Tracker, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	t, ok := d.trackers[sensorID]

	return t, ok
}

// SetTracker provisions or replaces the tracker for sensorID.
func (d *Device) SetTracker(sensorID int, t trackerapi.Tracker) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.trackers[sensorID] = t
}

// Trackers returns a snapshot slice of every tracker currently provisioned
// on this device, safe to iterate without holding the device lock.
func (d *Device) Trackers() []trackerapi.Tracker {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]trackerapi.Tracker, 0, len(d.trackers))
	for _, t := range d.trackers {
		out = append(out, t)
	}

	return out
}

func (d *Device) HasTrackers() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.trackers) > 0
}

// newDevice creates a brand-new device record from a handshake, applying
// §4.2's initial-value rules. boardType and mcuType are set here and
// never touched again, even across later session adoption.
func newDevice(hardwareID string, h protocol.Handshake, addr *net.UDPAddr) *Device {
	d := &Device{
		hardwareID: hardwareID,
		boardType:  h.BoardType,
		mcuType:    h.MCUType,
		trackers:   make(map[int]trackerapi.Tracker),
	}
	d.applyHandshake(h, addr)

	return d
}

// descriptiveNameFor renders the historical single-slash form; a second
// slash would break persisted config compatibility downstream, so this is
// never "corrected" to a proper udp:// URL.
func descriptiveNameFor(ip net.IP) string {
	return "udp:/" + ip.String()
}

func nameFor(mac *string, descriptiveName string) string {
	if mac != nil && *mac != "" {
		return "udp://" + *mac
	}

	return descriptiveName
}

func protocolFor(h protocol.Handshake) Protocol {
	if h.FirmwareString == "" {
		return ProtocolOwoLegacy
	}

	return ProtocolSlimeVRRaw
}

// applyHandshake mutates a device's identity/network fields from a
// handshake, per §4.2. It is used both when adopting an existing record
// and when creating a new one.
func (d *Device) applyHandshake(h protocol.Handshake, addr *net.UDPAddr) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.address = addr
	d.ipAddress = addr.IP
	d.mac = h.MAC
	d.descriptiveName = descriptiveNameFor(addr.IP)
	d.protocol = protocolFor(h)
	d.firmwareBuild = h.FirmwareBuild
	d.name = nameFor(h.MAC, d.descriptiveName)
	d.firmwareFeatures = make(map[uint64]struct{})
	d.lastPacketNumber = 0
}

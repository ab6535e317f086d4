// Package protocol defines the owoTrack/SlimeVR wire-protocol packet
// variants and the ProtocolCodec contract that turns bytes into those
// variants and back. The byte-level encoding itself is an external
// collaborator per the specification — this package only carries the
// typed shapes and the interface; github.com/go-slimevr/trackerhub/pkg/owotrack
// ships the one concrete codec this repo uses.
package protocol

import "github.com/go-slimevr/trackerhub/pkg/quaternion"

// Kind identifies the wire format of a datagram's first field.
type Kind int

// Packet kinds handled by the dispatcher, per the wire format's first
// big-endian int32 field.
const (
	KindHeartbeatIn         Kind = 0
	KindHeartbeatOut        Kind = 1
	KindRotationLegacy      Kind = 2
	KindHandshake           Kind = 3
	KindAcceleration        Kind = 4
	KindPingPong            Kind = 10
	KindSerial              Kind = 11
	KindBatteryLevel        Kind = 12
	KindTap                 Kind = 13
	KindError               Kind = 14
	KindSensorInfo          Kind = 15
	KindRotationData        Kind = 17
	KindMagnetometerAccuracy Kind = 18
	KindSignalStrength      Kind = 19
	KindTemperature         Kind = 20
	KindUserAction          Kind = 21
	KindFeatureFlags        Kind = 22
	KindProtocolChange      Kind = 200
)

// RotationDataType distinguishes the two RotationData(17) sub-types.
type RotationDataType int

const (
	RotationDataNormal     RotationDataType = 1
	RotationDataCorrection RotationDataType = 2
)

// UserActionType distinguishes the UserAction(21) sub-types dispatched to
// the host's ResetHandler.
type UserActionType int

const (
	UserActionResetFull     UserActionType = 1
	UserActionResetYaw      UserActionType = 2
	UserActionResetMounting UserActionType = 3
)

// Packet is the tagged-variant marker every parsed packet implements.
// Dispatch happens by exhaustive type switch, not by virtual method calls,
// per the project's "polymorphism over packet kinds" design note.
type Packet interface {
	Kind() Kind
}

// Heartbeat covers both the inbound (0) and outbound/keepalive (1) forms;
// receiving either is a pure liveness signal with no further effect.
type Heartbeat struct {
	K Kind
}

func (p Heartbeat) Kind() Kind { return p.K }

// Handshake is the first packet a device sends. MAC is nil when the
// device omitted it, which the registry treats as a fallback to the
// peer's IP for session-restoration keying.
type Handshake struct {
	MAC            *string
	FirmwareString string
	FirmwareBuild  int
	BoardType      int
	MCUType        int
	IMUType        int
}

func (Handshake) Kind() Kind { return KindHandshake }

// RotationLegacy is the pre-handshake owoTrack rotation encoding; it
// always addresses sensor 0.
type RotationLegacy struct {
	Rotation quaternion.Quaternion
}

func (RotationLegacy) Kind() Kind { return KindRotationLegacy }

// RotationData is the SlimeVR-era rotation packet, tagged with a
// sub-type. Only RotationDataNormal is applied; RotationDataCorrection is
// parsed but deliberately left a no-op.
type RotationData struct {
	SensorID int
	DataType RotationDataType
	Rotation quaternion.Quaternion
}

func (RotationData) Kind() Kind { return KindRotationData }

// MagnetometerAccuracy is parsed but never acted on.
type MagnetometerAccuracy struct {
	SensorID int
}

func (MagnetometerAccuracy) Kind() Kind { return KindMagnetometerAccuracy }

// Acceleration carries a raw 3-vector in the device's own axis order; the
// dispatcher remaps axes before handing it to the tracker.
type Acceleration struct {
	SensorID int
	X, Y, Z  float64
}

func (Acceleration) Kind() Kind { return KindAcceleration }

// PingPong is both the server's outbound RTT probe and the device's
// reply; PingID ties a reply back to the ping that produced it.
type PingPong struct {
	PingID int32
}

func (PingPong) Kind() Kind { return KindPingPong }

// Serial carries one line (or fragment) of device-originated console
// text.
type Serial struct {
	Payload string
}

func (Serial) Kind() Kind { return KindSerial }

// BatteryLevel reports the device's shared power state; it is not
// per-sensor.
type BatteryLevel struct {
	Voltage float64
	Level   float64 // fraction in [0,1]; the dispatcher normalizes to a percentage
}

func (BatteryLevel) Kind() Kind { return KindBatteryLevel }

// Tap is a physical tap/double-tap event on a sensor; logged only.
type Tap struct {
	SensorID int
	TapCount int
}

func (Tap) Kind() Kind { return KindTap }

// Error is a device-reported fault addressed to one sensor.
type Error struct {
	SensorID int
	Code     int
}

func (Error) Kind() Kind { return KindError }

// SensorInfo announces (or re-announces) a sensor on the device.
type SensorInfo struct {
	SensorID   int
	SensorType int
	Status     int
}

func (SensorInfo) Kind() Kind { return KindSensorInfo }

// SignalStrength is shared device-wide, like BatteryLevel.
type SignalStrength struct {
	RSSI int
}

func (SignalStrength) Kind() Kind { return KindSignalStrength }

// Temperature is addressed to one sensor.
type Temperature struct {
	SensorID int
	Celsius  float64
}

func (Temperature) Kind() Kind { return KindTemperature }

// UserAction carries a physical reset-button gesture to dispatch to the
// host's ResetHandler.
type UserAction struct {
	Action UserActionType
}

func (UserAction) Kind() Kind { return KindUserAction }

// FeatureFlags is the bidirectional capability-negotiation packet; Flags
// is an opaque bitset. The device's flags are stored as reported; the
// reply carries the server's own flags, not an echo of the device's.
type FeatureFlags struct {
	Flags uint64
}

func (FeatureFlags) Kind() Kind { return KindFeatureFlags }

// ProtocolChange(200) is reserved; parsed but never acted on.
type ProtocolChange struct{}

func (ProtocolChange) Kind() Kind { return KindProtocolChange }

// Package trackerapi declares the interfaces the event loop uses to hand
// sensor telemetry to the enclosing application: Tracker (a pose/state
// sink), Host (the device manager that owns trackers), and ResetHandler
// (the reset/command dispatch target). These are external collaborators
// per the specification — this repo depends only on the interfaces; a
// minimal concrete implementation lives in pkg/trackerhost so the module
// is runnable end to end.
package trackerapi

import "github.com/go-slimevr/trackerhub/pkg/quaternion"

// Status mirrors the tracker lifecycle states the codec's status decoder
// can produce and the keepalive sweep can force.
type Status int

const (
	StatusOK Status = iota
	StatusDisconnected
	StatusError
)

// Config describes a tracker at the moment it is provisioned; it never
// changes afterward.
type Config struct {
	Name             string
	Description      string
	Rotation         bool
	Acceleration     bool
	Filtering        bool
	NeedsReset       bool
	NeedsMounting    bool
	UserEditable     bool
	IMUType          int
	InitialStatus    Status
}

// Tracker is the logical sensor handle exposed to the host application,
// one per (device, sensorId).
type Tracker interface {
	SetRotation(q quaternion.Quaternion)
	SetAcceleration(x, y, z float64)
	SetBatteryLevel(voltage, percent float64)
	SetSignalStrength(rssi int)
	SetTemperature(celsius float64)
	SetPing(ms float64)
	SetStatus(status Status)
	Status() Status
	// DataTick marks that a fresh pose/measurement sample has landed;
	// callers use it to drive downstream filtering cadence.
	DataTick()
}

// DeviceInfo is the minimal owning-device identity a Host needs to build a
// Tracker, kept separate from the registry's Device type so this package
// never depends on it.
type DeviceInfo interface {
	HardwareID() string
	Name() string
}

// Host is the enclosing device manager: it mints tracker ids, constructs
// and receives newly provisioned trackers, and owns the ResetHandler
// devices' physical reset gestures are dispatched to.
type Host interface {
	// NextLocalTrackerID returns a fresh, globally unique tracker id.
	NextLocalTrackerID() string
	// NewTracker constructs a Tracker for the given owning device,
	// pre-minted local id and capability configuration. It does not
	// register the tracker anywhere; the caller still calls AddDevice.
	NewTracker(device DeviceInfo, localID string, cfg Config) Tracker
	// AddDevice is invoked exactly once per newly provisioned tracker.
	AddDevice(tracker Tracker)
	ResetHandler() ResetHandler
}

// ResetType distinguishes the three physical reset gestures UserAction(21)
// can carry.
type ResetType int

const (
	ResetFull ResetType = iota
	ResetYaw
	ResetMounting
)

// ResetHandler receives reset/command dispatch from UserAction(21)
// packets.
type ResetHandler interface {
	SendStarted(t ResetType)
	ResetTrackersFull(source string)
	ResetTrackersYaw(source string)
	ResetTrackersMounting(source string)
}

package trackerhost

import (
	"sync"

	"github.com/go-slimevr/trackerhub/pkg/quaternion"
	"github.com/go-slimevr/trackerhub/pkg/trackerapi"
)

// Tracker is an in-memory trackerapi.Tracker: every setter just records
// the latest value under a mutex. A downstream consumer reads the latest
// state via the exported getters; there is no history or filtering here
// (cfg.Filtering is a capability flag passed through to the consumer, not
// something this default implementation applies itself).
type Tracker struct {
	mu sync.Mutex

	device      trackerapi.DeviceInfo
	localID     string
	cfg         trackerapi.Config
	rotation    quaternion.Quaternion
	accelX      float64
	accelY      float64
	accelZ      float64
	battVoltage float64
	battPercent float64
	signalRSSI  int
	tempCelsius float64
	pingMs      float64
	status      trackerapi.Status
	ticks       int64
}

func newTracker(device trackerapi.DeviceInfo, localID string, cfg trackerapi.Config) *Tracker {
	return &Tracker{
		device:   device,
		localID:  localID,
		cfg:      cfg,
		rotation: quaternion.Identity,
		status:   cfg.InitialStatus,
	}
}

func (t *Tracker) LocalID() string               { return t.localID }
func (t *Tracker) Device() trackerapi.DeviceInfo { return t.device }
func (t *Tracker) Config() trackerapi.Config     { return t.cfg }

func (t *Tracker) SetRotation(q quaternion.Quaternion) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rotation = q
}

func (t *Tracker) Rotation() quaternion.Quaternion {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.rotation
}

func (t *Tracker) SetAcceleration(x, y, z float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.accelX, t.accelY, t.accelZ = x, y, z
}

func (t *Tracker) Acceleration() (x, y, z float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.accelX, t.accelY, t.accelZ
}

func (t *Tracker) SetBatteryLevel(voltage, percent float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.battVoltage, t.battPercent = voltage, percent
}

func (t *Tracker) BatteryLevel() (voltage, percent float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.battVoltage, t.battPercent
}

func (t *Tracker) SetSignalStrength(rssi int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.signalRSSI = rssi
}

func (t *Tracker) SignalStrength() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.signalRSSI
}

func (t *Tracker) SetTemperature(celsius float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.tempCelsius = celsius
}

func (t *Tracker) Temperature() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.tempCelsius
}

func (t *Tracker) SetPing(ms float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.pingMs = ms
}

func (t *Tracker) Ping() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.pingMs
}

func (t *Tracker) SetStatus(status trackerapi.Status) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status = status
}

func (t *Tracker) Status() trackerapi.Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.status
}

func (t *Tracker) DataTick() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ticks++
}

// Ticks returns how many times DataTick has fired, for tests to assert on.
func (t *Tracker) Ticks() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.ticks
}

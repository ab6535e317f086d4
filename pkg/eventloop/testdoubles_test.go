package eventloop

import (
	"sync"
	"time"

	"github.com/go-slimevr/trackerhub/pkg/logger"
	"github.com/go-slimevr/trackerhub/pkg/quaternion"
	"github.com/go-slimevr/trackerhub/pkg/trackerapi"
)

func testLogger() logger.Logger { return logger.NewNop() }

// fakeClock is a settable Clock for deterministic tests of the three
// timed duties, grounded on the real/fake Clock split used for pollers
// elsewhere in this codebase.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{t: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.t = c.t.Add(d)
}

type fakeTracker struct {
	mu       sync.Mutex
	rotation quaternion.Quaternion
	accelX, accelY, accelZ float64
	voltage, percent       float64
	rssi                   int
	celsius                float64
	pingMs                 float64
	status                 trackerapi.Status
	ticks                  int
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{status: trackerapi.StatusOK}
}

func (t *fakeTracker) SetRotation(q quaternion.Quaternion) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rotation = q
}

func (t *fakeTracker) Rotation() quaternion.Quaternion {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rotation
}

func (t *fakeTracker) SetAcceleration(x, y, z float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.accelX, t.accelY, t.accelZ = x, y, z
}

func (t *fakeTracker) Acceleration() (float64, float64, float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.accelX, t.accelY, t.accelZ
}

func (t *fakeTracker) SetBatteryLevel(voltage, percent float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.voltage, t.percent = voltage, percent
}

func (t *fakeTracker) SetSignalStrength(rssi int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rssi = rssi
}

func (t *fakeTracker) SetTemperature(celsius float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.celsius = celsius
}

func (t *fakeTracker) SetPing(ms float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pingMs = ms
}

func (t *fakeTracker) Ping() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pingMs
}

func (t *fakeTracker) SetStatus(status trackerapi.Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = status
}

func (t *fakeTracker) Status() trackerapi.Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *fakeTracker) DataTick() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ticks++
}

func (t *fakeTracker) Ticks() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ticks
}

type fakeResetHandler struct {
	mu      sync.Mutex
	started []trackerapi.ResetType
	full, yaw, mounting []string
}

func (h *fakeResetHandler) SendStarted(t trackerapi.ResetType) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.started = append(h.started, t)
}

func (h *fakeResetHandler) ResetTrackersFull(source string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.full = append(h.full, source)
}

func (h *fakeResetHandler) ResetTrackersYaw(source string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.yaw = append(h.yaw, source)
}

func (h *fakeResetHandler) ResetTrackersMounting(source string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mounting = append(h.mounting, source)
}

// fakeHost is a trackerapi.Host that hands out fakeTracker instances so
// tests can assert on tracker state without pulling in pkg/trackerhost.
type fakeHost struct {
	mu       sync.Mutex
	nextID   int
	added    []trackerapi.Tracker
	handler  *fakeResetHandler
}

func newFakeHost() *fakeHost {
	return &fakeHost{handler: &fakeResetHandler{}}
}

func (h *fakeHost) NextLocalTrackerID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	return "tracker-" + itoa(h.nextID)
}

func (h *fakeHost) NewTracker(_ trackerapi.DeviceInfo, _ string, cfg trackerapi.Config) trackerapi.Tracker {
	t := newFakeTracker()
	t.status = cfg.InitialStatus

	return t
}

func (h *fakeHost) AddDevice(t trackerapi.Tracker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.added = append(h.added, t)
}

func (h *fakeHost) ResetHandler() trackerapi.ResetHandler {
	return h.handler
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}

	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}

	return string(digits)
}

type fakeConsole struct {
	mu    sync.Mutex
	lines []string
}

func (c *fakeConsole) WriteLine(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, line)
}

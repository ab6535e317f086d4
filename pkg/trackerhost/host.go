// Package trackerhost provides the one concrete, minimal implementation
// of trackerapi.Host/Tracker/ResetHandler this repository ships so
// cmd/trackerserver is runnable standalone. The core event loop continues
// to depend only on the trackerapi interfaces; nothing here is imported
// by pkg/eventloop directly.
package trackerhost

import (
	"sync"

	"github.com/google/uuid"

	"github.com/go-slimevr/trackerhub/pkg/logger"
	"github.com/go-slimevr/trackerhub/pkg/trackerapi"
)

// Host is an in-memory trackerapi.Host: it mints ids with google/uuid,
// constructs Trackers, and keeps every one ever added in a slice for a
// downstream consumer (or a test) to enumerate.
type Host struct {
	mu       sync.Mutex
	trackers []trackerapi.Tracker
	handler  trackerapi.ResetHandler
	log      logger.Logger

	onDevice func(trackerapi.Tracker)
}

// New returns a Host. onDevice, if non-nil, is invoked once per newly
// added tracker — the "consumer callback" §6 describes, e.g. wiring a
// freshly provisioned tracker into a downstream application.
func New(log logger.Logger, onDevice func(trackerapi.Tracker)) *Host {
	h := &Host{log: log.WithComponent("host"), onDevice: onDevice}
	h.handler = newResetHandler(h, log)

	return h
}

func (h *Host) NextLocalTrackerID() string {
	return uuid.NewString()
}

func (h *Host) NewTracker(device trackerapi.DeviceInfo, localID string, cfg trackerapi.Config) trackerapi.Tracker {
	return newTracker(device, localID, cfg)
}

func (h *Host) AddDevice(tracker trackerapi.Tracker) {
	h.mu.Lock()
	h.trackers = append(h.trackers, tracker)
	h.mu.Unlock()

	h.log.Info().Int("count", len(h.trackers)).Msg("tracker added")

	if h.onDevice != nil {
		h.onDevice(tracker)
	}
}

func (h *Host) ResetHandler() trackerapi.ResetHandler {
	return h.handler
}

// Trackers returns a snapshot of every tracker ever added, in add order.
func (h *Host) Trackers() []trackerapi.Tracker {
	h.mu.Lock()
	defer h.mu.Unlock()

	return append([]trackerapi.Tracker(nil), h.trackers...)
}

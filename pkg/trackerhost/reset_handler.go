package trackerhost

import (
	"github.com/go-slimevr/trackerhub/pkg/logger"
	"github.com/go-slimevr/trackerhub/pkg/quaternion"
	"github.com/go-slimevr/trackerhub/pkg/trackerapi"
)

// resetHandler is the default trackerapi.ResetHandler: it resets every
// tracker the host currently knows about and logs each gesture. A richer
// downstream application would likely replace this with one that drives
// actual pose-filter resets; this default just demonstrates and exercises
// the dispatch path end to end.
type resetHandler struct {
	host *Host
	log  logger.Logger
}

func newResetHandler(host *Host, log logger.Logger) *resetHandler {
	return &resetHandler{host: host, log: log.WithComponent("reset-handler")}
}

func (r *resetHandler) SendStarted(t trackerapi.ResetType) {
	r.log.Info().Int("resetType", int(t)).Msg("reset started")
}

func (r *resetHandler) ResetTrackersFull(source string) {
	r.resetAll(source, "full")
}

func (r *resetHandler) ResetTrackersYaw(source string) {
	r.resetAll(source, "yaw")
}

func (r *resetHandler) ResetTrackersMounting(source string) {
	r.resetAll(source, "mounting")
}

func (r *resetHandler) resetAll(source, kind string) {
	for _, t := range r.host.Trackers() {
		if rt, ok := t.(*Tracker); ok {
			rt.SetRotation(quaternion.Identity)
		}
	}

	r.log.Info().Str("source", source).Str("kind", kind).Msg("reset dispatched")
}

package eventloop

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/go-slimevr/trackerhub/pkg/logger"
	"github.com/go-slimevr/trackerhub/pkg/protocol"
	"github.com/go-slimevr/trackerhub/pkg/registry"
	"github.com/go-slimevr/trackerhub/pkg/trackerapi"
)

// sensorProvisioner creates Tracker objects on demand for (device, sensorId)
// pairs and forwards newly created ones to the host sink.
type sensorProvisioner struct {
	host trackerapi.Host
	log  logger.Logger
}

func newSensorProvisioner(host trackerapi.Host, log logger.Logger) *sensorProvisioner {
	return &sensorProvisioner{host: host, log: log.WithComponent("provisioner")}
}

// provision implements §4.3: create the tracker for sensorID on first
// sight, or just refresh its status on every later SensorInfo/handshake
// carrying the same sensorID.
func (p *sensorProvisioner) provision(device *registry.Device, sensorID, sensorType, rawStatus int, codec protocol.Codec) {
	if existing, ok := device.Tracker(sensorID); ok {
		existing.SetStatus(codec.DecodeStatus(rawStatus))
		return
	}

	cfg := trackerapi.Config{
		Name:          fmt.Sprintf("%s/%d", device.Name(), sensorID),
		Description:   describe(device.HardwareID()),
		Rotation:      true,
		Acceleration:  true,
		Filtering:     true,
		NeedsReset:    true,
		NeedsMounting: true,
		UserEditable:  true,
		IMUType:       sensorType,
		InitialStatus: codec.DecodeStatus(rawStatus),
	}

	tracker := p.host.NewTracker(device, p.host.NextLocalTrackerID(), cfg)
	device.SetTracker(sensorID, tracker)
	p.host.AddDevice(tracker)

	p.log.Info().
		Str("device", device.Name()).
		Int("sensorId", sensorID).
		Int("imuType", sensorType).
		Msg("provisioned tracker")
}

// describe renders a stable 5-character description from a device's
// hardware id: bytes 3..7 of SHA-256(hardwareId), hex-encoded and
// truncated to five characters.
func describe(hardwareID string) string {
	sum := sha256.Sum256([]byte(hardwareID))

	return hex.EncodeToString(sum[3:8])[:5]
}

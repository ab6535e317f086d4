package eventloop

import (
	"net"
	"time"

	"github.com/go-slimevr/trackerhub/pkg/logger"
	"github.com/go-slimevr/trackerhub/pkg/protocol"
	"github.com/go-slimevr/trackerhub/pkg/quaternion"
	"github.com/go-slimevr/trackerhub/pkg/registry"
	"github.com/go-slimevr/trackerhub/pkg/trackerapi"
)

// axesOffset aligns the device's sensor frame to the host's world frame;
// see the rotation transform in §4.5 — a rotation of -pi/2 about X.
var axesOffset = quaternion.FromRotationVector(-1.5707963267948966, 0, 0)

// consoleSink receives device-originated serial text for the enclosing
// application to display. Forwarding it is an external concern the core
// only needs a narrow write surface for.
type consoleSink interface {
	WriteLine(line string)
}

// packetDispatcher maps each parsed packet variant to its effect on the
// registry, sensors and outbound writes, per §4.5.
type packetDispatcher struct {
	registry    *registry.ConnectionRegistry
	provisioner *sensorProvisioner
	codec       protocol.Codec
	host        trackerapi.Host
	console     consoleSink
	log         logger.Logger
	sendBuf     []byte
}

func newPacketDispatcher(
	reg *registry.ConnectionRegistry,
	host trackerapi.Host,
	codec protocol.Codec,
	console consoleSink,
	log logger.Logger,
) *packetDispatcher {
	return &packetDispatcher{
		registry:    reg,
		provisioner: newSensorProvisioner(host, log),
		codec:       codec,
		host:        host,
		console:     console,
		log:         log.WithComponent("dispatcher"),
		sendBuf:     make([]byte, maxDatagramSize),
	}
}

// dispatch handles one parsed packet from sender. device is the record
// already mapped to sender's address, or nil if none is known yet — only
// a Handshake may arrive with a nil device.
func (d *packetDispatcher) dispatch(conn *net.UDPConn, pkt protocol.Packet, device *registry.Device, sender *net.UDPAddr, now time.Time) (_ *registry.Device, adopted bool) {
	switch p := pkt.(type) {
	case protocol.Heartbeat:
		// no-op; the receive duty already refreshed liveness via Touch.
	case protocol.Handshake:
		device, adopted = d.dispatchHandshake(conn, p, sender, now)
	case protocol.RotationLegacy:
		d.applyRotation(device, 0, p.Rotation)
	case protocol.RotationData:
		d.dispatchRotationData(device, p)
	case protocol.MagnetometerAccuracy:
		// ignored
	case protocol.Acceleration:
		d.dispatchAcceleration(device, p)
	case protocol.PingPong:
		d.dispatchPingPong(device, p, now)
	case protocol.Serial:
		d.dispatchSerial(device, p, now)
	case protocol.BatteryLevel:
		d.dispatchBatteryLevel(device, p)
	case protocol.Tap:
		if device != nil {
			d.log.Info().Str("device", device.Name()).Int("sensorId", p.SensorID).Int("count", p.TapCount).Msg("tap")
		}
	case protocol.Error:
		d.dispatchError(device, p)
	case protocol.SensorInfo:
		d.dispatchSensorInfo(conn, device, p, sender)
	case protocol.SignalStrength:
		d.dispatchSignalStrength(device, p)
	case protocol.Temperature:
		d.dispatchTemperature(device, p)
	case protocol.UserAction:
		d.dispatchUserAction(device, p)
	case protocol.FeatureFlags:
		d.dispatchFeatureFlags(conn, device, p, sender)
	case protocol.ProtocolChange:
		// reserved, ignored
	}

	return device, adopted
}

func (d *packetDispatcher) dispatchHandshake(conn *net.UDPConn, p protocol.Handshake, sender *net.UDPAddr, now time.Time) (*registry.Device, bool) {
	device, adopted := d.registry.FindOrAdopt(p, sender)
	device.Touch(now.UnixMilli())

	if p.MAC == nil {
		d.log.Warn().Str("kind", string(logger.KindHandshake)).Stringer("addr", sender).Msg("handshake omitted MAC; session restoration will key on IP")
	}

	if device.Protocol() == registry.ProtocolOwoLegacy || device.FirmwareBuild() < 9 {
		d.provisioner.provision(device, 0, p.IMUType, 1, d.codec)
	}

	n, err := d.codec.WriteHandshakeResponse(d.sendBuf, device)
	if err != nil {
		d.log.Warn().Err(err).Str("kind", string(logger.KindTransport)).Msg("failed to encode handshake response")
	} else if _, sendErr := conn.WriteToUDP(d.sendBuf[:n], sender); sendErr != nil {
		d.log.Warn().Err(sendErr).Str("kind", string(logger.KindTransport)).Stringer("addr", sender).Msg("failed to send handshake response")
	}

	action := "created"
	if adopted {
		action = "adopted"
	}

	d.log.Info().
		Str("action", action).
		Int("index", d.registry.ConnectionIndex(device)).
		Int("board", device.BoardType()).
		Int("imu", p.IMUType).
		Int("firmwareBuild", device.FirmwareBuild()).
		Str("name", device.Name()).
		Msg("handshake")

	return device, adopted
}

func (d *packetDispatcher) applyRotation(device *registry.Device, sensorID int, raw quaternion.Quaternion) {
	if device == nil {
		return
	}

	tracker, ok := device.Tracker(sensorID)
	if !ok {
		return
	}

	tracker.SetRotation(axesOffset.Mul(raw))
	tracker.DataTick()
}

func (d *packetDispatcher) dispatchRotationData(device *registry.Device, p protocol.RotationData) {
	if p.DataType != protocol.RotationDataNormal {
		// RotationDataCorrection and any other sub-type are deliberately
		// left a no-op.
		return
	}

	d.applyRotation(device, p.SensorID, p.Rotation)
}

func (d *packetDispatcher) dispatchAcceleration(device *registry.Device, p protocol.Acceleration) {
	if device == nil {
		return
	}

	tracker, ok := device.Tracker(p.SensorID)
	if !ok {
		return
	}

	// axes remap: (y, x, z)
	tracker.SetAcceleration(p.Y, p.X, p.Z)
}

func (d *packetDispatcher) dispatchPingPong(device *registry.Device, p protocol.PingPong, now time.Time) {
	if device == nil {
		return
	}

	if p.PingID != device.LastPingPacketID() {
		d.log.Debug().Str("kind", string(logger.KindPing)).Int32("pingId", p.PingID).Msg("mismatched ping id; dropped")
		return
	}

	rtt := float64(now.UnixMilli()-device.LastPingPacketTimeMs()) / 2

	for _, t := range device.Trackers() {
		t.SetPing(rtt)
		t.DataTick()
	}
}

func (d *packetDispatcher) dispatchSerial(device *registry.Device, p protocol.Serial, now time.Time) {
	if device == nil {
		return
	}

	device.AppendSerial(p.Payload, now.UnixMilli())

	if d.console != nil {
		d.console.WriteLine("[" + device.Name() + "] " + p.Payload)
	}
}

func (d *packetDispatcher) dispatchBatteryLevel(device *registry.Device, p protocol.BatteryLevel) {
	if device == nil {
		return
	}

	for _, t := range device.Trackers() {
		t.SetBatteryLevel(p.Voltage, p.Level*100)
	}
}

func (d *packetDispatcher) dispatchError(device *registry.Device, p protocol.Error) {
	if device == nil {
		return
	}

	d.log.Error().Str("kind", string(logger.KindDevice)).Str("device", device.Name()).Int("sensorId", p.SensorID).Int("code", p.Code).Msg("device reported error")

	if tracker, ok := device.Tracker(p.SensorID); ok {
		tracker.SetStatus(trackerapi.StatusError)
	}
}

func (d *packetDispatcher) dispatchSensorInfo(conn *net.UDPConn, device *registry.Device, p protocol.SensorInfo, sender *net.UDPAddr) {
	if device == nil {
		return
	}

	d.provisioner.provision(device, p.SensorID, p.SensorType, p.Status, d.codec)

	n, err := d.codec.WriteSensorInfoResponse(d.sendBuf, device, p)
	if err != nil {
		d.log.Warn().Err(err).Str("kind", string(logger.KindTransport)).Msg("failed to encode sensor info response")
		return
	}

	if _, sendErr := conn.WriteToUDP(d.sendBuf[:n], sender); sendErr != nil {
		d.log.Warn().Err(sendErr).Str("kind", string(logger.KindTransport)).Stringer("addr", sender).Msg("failed to send sensor info response")
	}
}

func (d *packetDispatcher) dispatchSignalStrength(device *registry.Device, p protocol.SignalStrength) {
	if device == nil {
		return
	}

	for _, t := range device.Trackers() {
		t.SetSignalStrength(p.RSSI)
	}
}

func (d *packetDispatcher) dispatchTemperature(device *registry.Device, p protocol.Temperature) {
	if device == nil {
		return
	}

	if tracker, ok := device.Tracker(p.SensorID); ok {
		tracker.SetTemperature(p.Celsius)
	}
}

func (d *packetDispatcher) dispatchUserAction(device *registry.Device, p protocol.UserAction) {
	if device == nil {
		return
	}

	handler := d.host.ResetHandler()
	if handler == nil {
		return
	}

	const resetSource = "TrackerServer"

	switch p.Action {
	case protocol.UserActionResetFull:
		handler.SendStarted(trackerapi.ResetFull)
		handler.ResetTrackersFull(resetSource)
	case protocol.UserActionResetYaw:
		handler.SendStarted(trackerapi.ResetYaw)
		handler.ResetTrackersYaw(resetSource)
	case protocol.UserActionResetMounting:
		handler.SendStarted(trackerapi.ResetMounting)
		handler.ResetTrackersMounting(resetSource)
	default:
		return
	}

	d.log.Info().Str("device", device.Name()).Int("action", int(p.Action)).Msg("user action dispatched")
}

func (d *packetDispatcher) dispatchFeatureFlags(conn *net.UDPConn, device *registry.Device, p protocol.FeatureFlags, sender *net.UDPAddr) {
	if device == nil {
		return
	}

	n, err := d.codec.Write(d.sendBuf, device, p)
	if err != nil {
		d.log.Warn().Err(err).Str("kind", string(logger.KindTransport)).Msg("failed to encode feature flags reply")
	} else if _, sendErr := conn.WriteToUDP(d.sendBuf[:n], sender); sendErr != nil {
		d.log.Warn().Err(sendErr).Str("kind", string(logger.KindTransport)).Stringer("addr", sender).Msg("failed to send feature flags reply")
	}

	device.SetFirmwareFeatures(p.Flags)
}

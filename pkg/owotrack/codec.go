// Package owotrack implements protocol.Codec for the owoTrack/SlimeVR
// lineage binary wire format: every packet begins with a big-endian int32
// kind and an int64 packet number (used for duplicate/out-of-order
// suppression), save for the pre-handshake legacy rotation packet, which
// has no packet number, and the raw ping probe, whose int64 sequence field
// is skipped rather than checked.
//
// The byte-level encoding is an external collaborator from the core
// event loop's point of view (it depends only on protocol.Codec); this
// package is the one concrete implementation the repository ships so the
// module builds into something runnable end to end.
package owotrack

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/go-slimevr/trackerhub/pkg/protocol"
	"github.com/go-slimevr/trackerhub/pkg/quaternion"
	"github.com/go-slimevr/trackerhub/pkg/trackerapi"
)

var (
	errShortPacket   = errors.New("owotrack: datagram shorter than a packet header")
	errShortPayload  = errors.New("owotrack: payload shorter than the declared field length")
	errFirmwareTooLong = errors.New("owotrack: firmware string length exceeds datagram")
)

const macLength = 6

// serverFeatureFlags is the capability bit set this server advertises
// back to a device on a FeatureFlags(22) reply. No optional feature is
// implemented yet, so it stays zero; Write deliberately ignores whatever
// flags the device's own FeatureFlags packet carried.
const serverFeatureFlags uint64 = 0

// Codec is the stateless owoTrack/SlimeVR binary codec.
type Codec struct{}

// New returns the default codec.
func New() *Codec {
	return &Codec{}
}

// Parse decodes a single datagram into zero or more packets. An unknown
// leading kind yields no packets and no error, matching the protocol's
// tolerance for additions from newer firmware.
func (c *Codec) Parse(buf []byte, device protocol.DeviceContext) ([]protocol.Packet, error) {
	if len(buf) < 4 {
		return nil, errShortPacket
	}

	kind := protocol.Kind(int32(binary.BigEndian.Uint32(buf)))

	// The pre-handshake legacy rotation packet has no packet-number
	// header; the raw ping probe carries an int64 sequence field that is
	// skipped, never used for duplicate suppression.
	switch kind {
	case protocol.KindRotationLegacy:
		return c.parseRotationLegacy(buf[4:])
	case protocol.KindPingPong:
		return c.parsePingPongRaw(buf[4:])
	}

	if len(buf) < 12 {
		return nil, errShortPacket
	}

	packetNumber := binary.BigEndian.Uint64(buf[4:12])
	payload := buf[12:]

	if device != nil && isDuplicate(device, packetNumber) {
		return nil, nil
	}

	pkt, err := c.parsePayload(kind, payload)
	if err != nil {
		return nil, err
	}

	if device != nil {
		recordPacketNumber(device, packetNumber)
	}

	if pkt == nil {
		return nil, nil
	}

	return []protocol.Packet{pkt}, nil
}

// isDuplicate treats any non-zero packet number not greater than the
// device's last-seen number as a duplicate/out-of-order retransmit. A
// packet number of 0 is always accepted: the registry resets
// LastPacketNumber to 0 on session adoption (§4.2), and the device's own
// counter may legitimately be far ahead of that reset value, so the
// codec must tolerate the backward jump rather than reject every packet
// until the device's counter catches back up.
func isDuplicate(device protocol.DeviceContext, packetNumber uint64) bool {
	if packetNumber == 0 {
		return false
	}

	return packetNumber <= uint64(device.LastPacketNumber())
}

func recordPacketNumber(device protocol.DeviceContext, packetNumber uint64) {
	if packetNumber > uint64(device.LastPacketNumber()) {
		// #nosec G115 -- wire format caps this well under 32 bits in practice
		device.SetLastPacketNumber(uint32(packetNumber))
	}
}

func (c *Codec) parsePayload(kind protocol.Kind, payload []byte) (protocol.Packet, error) {
	switch kind {
	case protocol.KindHeartbeatIn, protocol.KindHeartbeatOut:
		return protocol.Heartbeat{K: kind}, nil
	case protocol.KindHandshake:
		return parseHandshake(payload)
	case protocol.KindAcceleration:
		return parseAcceleration(payload)
	case protocol.KindSerial:
		return parseSerial(payload)
	case protocol.KindBatteryLevel:
		return parseBatteryLevel(payload)
	case protocol.KindTap:
		return parseTap(payload)
	case protocol.KindError:
		return parseErrorPacket(payload)
	case protocol.KindSensorInfo:
		return parseSensorInfo(payload)
	case protocol.KindRotationData:
		return parseRotationData(payload)
	case protocol.KindMagnetometerAccuracy:
		return parseMagnetometerAccuracy(payload)
	case protocol.KindSignalStrength:
		return parseSignalStrength(payload)
	case protocol.KindTemperature:
		return parseTemperature(payload)
	case protocol.KindUserAction:
		return parseUserAction(payload)
	case protocol.KindFeatureFlags:
		return parseFeatureFlags(payload)
	case protocol.KindProtocolChange:
		return protocol.ProtocolChange{}, nil
	default:
		return nil, nil
	}
}

func (c *Codec) parseRotationLegacy(payload []byte) ([]protocol.Packet, error) {
	if len(payload) < 16 {
		return nil, errShortPacket
	}

	q := readQuaternion(payload)

	return []protocol.Packet{protocol.RotationLegacy{Rotation: q}}, nil
}

func (c *Codec) parsePingPongRaw(payload []byte) ([]protocol.Packet, error) {
	if len(payload) < 12 {
		return nil, errShortPacket
	}

	pingID := int32(binary.BigEndian.Uint32(payload[8:12]))

	return []protocol.Packet{protocol.PingPong{PingID: pingID}}, nil
}

func parseHandshake(p []byte) (protocol.Packet, error) {
	if len(p) < 16 {
		return nil, errShortPacket
	}

	boardType := int32(binary.BigEndian.Uint32(p[0:4]))
	imuType := int32(binary.BigEndian.Uint32(p[4:8]))
	mcuType := int32(binary.BigEndian.Uint32(p[8:12]))
	firmwareBuild := int32(binary.BigEndian.Uint32(p[12:16]))

	rest := p[16:]
	if len(rest) < 4 {
		return nil, errShortPacket
	}

	strLen := int(binary.BigEndian.Uint32(rest[0:4]))
	rest = rest[4:]

	if strLen < 0 || len(rest) < strLen+macLength {
		return nil, errFirmwareTooLong
	}

	firmwareString := string(rest[:strLen])
	macBytes := rest[strLen : strLen+macLength]

	var mac *string
	if !allZero(macBytes) {
		s := formatMAC(macBytes)
		mac = &s
	}

	return protocol.Handshake{
		MAC:            mac,
		FirmwareString: firmwareString,
		FirmwareBuild:  int(firmwareBuild),
		BoardType:      int(boardType),
		MCUType:        int(mcuType),
		IMUType:        int(imuType),
	}, nil
}

func parseAcceleration(p []byte) (protocol.Packet, error) {
	if len(p) < 16 {
		return nil, errShortPacket
	}

	sensorID := int32(binary.BigEndian.Uint32(p[0:4]))
	x := readFloat32(p[4:8])
	y := readFloat32(p[8:12])
	z := readFloat32(p[12:16])

	return protocol.Acceleration{SensorID: int(sensorID), X: x, Y: y, Z: z}, nil
}

func parseSerial(p []byte) (protocol.Packet, error) {
	if len(p) < 4 {
		return nil, errShortPacket
	}

	n := int(binary.BigEndian.Uint32(p[0:4]))
	if n < 0 || len(p[4:]) < n {
		return nil, errShortPayload
	}

	return protocol.Serial{Payload: string(p[4 : 4+n])}, nil
}

func parseBatteryLevel(p []byte) (protocol.Packet, error) {
	if len(p) < 8 {
		return nil, errShortPacket
	}

	voltage := readFloat32(p[0:4])
	level := readFloat32(p[4:8])

	return protocol.BatteryLevel{Voltage: float64(voltage), Level: float64(level)}, nil
}

func parseTap(p []byte) (protocol.Packet, error) {
	if len(p) < 8 {
		return nil, errShortPacket
	}

	sensorID := int32(binary.BigEndian.Uint32(p[0:4]))
	count := int32(binary.BigEndian.Uint32(p[4:8]))

	return protocol.Tap{SensorID: int(sensorID), TapCount: int(count)}, nil
}

func parseErrorPacket(p []byte) (protocol.Packet, error) {
	if len(p) < 8 {
		return nil, errShortPacket
	}

	sensorID := int32(binary.BigEndian.Uint32(p[0:4]))
	code := int32(binary.BigEndian.Uint32(p[4:8]))

	return protocol.Error{SensorID: int(sensorID), Code: int(code)}, nil
}

func parseSensorInfo(p []byte) (protocol.Packet, error) {
	if len(p) < 12 {
		return nil, errShortPacket
	}

	sensorID := int32(binary.BigEndian.Uint32(p[0:4]))
	sensorType := int32(binary.BigEndian.Uint32(p[4:8]))
	status := int32(binary.BigEndian.Uint32(p[8:12]))

	return protocol.SensorInfo{SensorID: int(sensorID), SensorType: int(sensorType), Status: int(status)}, nil
}

func parseRotationData(p []byte) (protocol.Packet, error) {
	if len(p) < 24 {
		return nil, errShortPacket
	}

	sensorID := int32(binary.BigEndian.Uint32(p[0:4]))
	dataType := int32(binary.BigEndian.Uint32(p[4:8]))
	q := readQuaternion(p[8:24])

	return protocol.RotationData{
		SensorID: int(sensorID),
		DataType: protocol.RotationDataType(dataType),
		Rotation: q,
	}, nil
}

func parseMagnetometerAccuracy(p []byte) (protocol.Packet, error) {
	if len(p) < 4 {
		return nil, errShortPacket
	}

	sensorID := int32(binary.BigEndian.Uint32(p[0:4]))

	return protocol.MagnetometerAccuracy{SensorID: int(sensorID)}, nil
}

func parseSignalStrength(p []byte) (protocol.Packet, error) {
	if len(p) < 4 {
		return nil, errShortPacket
	}

	rssi := int32(binary.BigEndian.Uint32(p[0:4]))

	return protocol.SignalStrength{RSSI: int(rssi)}, nil
}

func parseTemperature(p []byte) (protocol.Packet, error) {
	if len(p) < 8 {
		return nil, errShortPacket
	}

	sensorID := int32(binary.BigEndian.Uint32(p[0:4]))
	celsius := readFloat32(p[4:8])

	return protocol.Temperature{SensorID: int(sensorID), Celsius: float64(celsius)}, nil
}

func parseUserAction(p []byte) (protocol.Packet, error) {
	if len(p) < 4 {
		return nil, errShortPacket
	}

	action := int32(binary.BigEndian.Uint32(p[0:4]))

	return protocol.UserAction{Action: protocol.UserActionType(action)}, nil
}

func parseFeatureFlags(p []byte) (protocol.Packet, error) {
	if len(p) < 8 {
		return nil, errShortPacket
	}

	flags := binary.BigEndian.Uint64(p[0:8])

	return protocol.FeatureFlags{Flags: flags}, nil
}

// Write serializes p into buf and returns the number of bytes written.
// buf is not grown: an encoding longer than len(buf) is truncated.
func (c *Codec) Write(buf []byte, device protocol.DeviceContext, p protocol.Packet) (int, error) {
	var b bytes.Buffer

	seq := uint64(0)
	if device != nil {
		seq = uint64(device.LastPacketNumber())
	}

	switch pkt := p.(type) {
	case protocol.Heartbeat:
		writeHeader(&b, pkt.K, seq)
	case protocol.PingPong:
		// The server's outbound ping always carries sequence 0, per §6's
		// literal wire layout: int32(10) | int64(0) | int32(pingId).
		writeHeader(&b, protocol.KindPingPong, 0)
		writeInt32(&b, pkt.PingID)
	case protocol.FeatureFlags:
		writeHeader(&b, protocol.KindFeatureFlags, seq)
		writeUint64(&b, serverFeatureFlags)
	default:
		return 0, fmt.Errorf("owotrack: write not implemented for %T", p)
	}

	n := copy(buf, b.Bytes())

	return n, nil
}

// WriteHandshakeResponse serializes the handshake acknowledgement every
// device expects before it will send telemetry.
func (c *Codec) WriteHandshakeResponse(buf []byte, _ protocol.DeviceContext) (int, error) {
	var b bytes.Buffer

	writeHeader(&b, protocol.KindHandshake, 0)
	writeInt32(&b, 0) // status: 0 == accepted

	return copy(buf, b.Bytes()), nil
}

// WriteSensorInfoResponse serializes the acknowledgement sent after
// provisioning (or re-confirming) a sensor.
func (c *Codec) WriteSensorInfoResponse(buf []byte, _ protocol.DeviceContext, info protocol.SensorInfo) (int, error) {
	var b bytes.Buffer

	writeHeader(&b, protocol.KindSensorInfo, 0)
	writeInt32(&b, int32(info.SensorID))
	writeInt32(&b, int32(info.Status))

	return copy(buf, b.Bytes()), nil
}

// DecodeStatus maps a raw sensor status code to a tracker lifecycle
// status. 1 means "connected and OK" and 0 means DISCONNECTED; anything
// else maps to ERROR so an unrecognized code never silently reads as
// healthy.
func (c *Codec) DecodeStatus(raw int) trackerapi.Status {
	switch raw {
	case 1:
		return trackerapi.StatusOK
	case 0:
		return trackerapi.StatusDisconnected
	default:
		return trackerapi.StatusError
	}
}

func writeHeader(b *bytes.Buffer, kind protocol.Kind, packetNumber uint64) {
	writeInt32(b, int32(kind))
	writeUint64(b, packetNumber)
}

func writeInt32(b *bytes.Buffer, v int32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], uint32(v))
	b.Write(tmp[:])
}

func writeUint64(b *bytes.Buffer, v uint64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	b.Write(tmp[:])
}

func readFloat32(p []byte) float64 {
	return float64(math.Float32frombits(binary.BigEndian.Uint32(p)))
}

func readQuaternion(p []byte) quaternion.Quaternion {
	return quaternion.Quaternion{
		X: readFloat32(p[0:4]),
		Y: readFloat32(p[4:8]),
		Z: readFloat32(p[8:12]),
		W: readFloat32(p[12:16]),
	}
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}

	return true
}

func formatMAC(b []byte) string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", b[0], b[1], b[2], b[3], b[4], b[5])
}

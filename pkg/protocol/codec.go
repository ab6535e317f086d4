package protocol

import "github.com/go-slimevr/trackerhub/pkg/trackerapi"

// DeviceContext is the minimal state a codec needs from a device's record
// while parsing: duplicate/out-of-order suppression keys off the last
// packet number seen from that peer. The registry's DeviceRecord
// implements this; a nil DeviceContext means "no device known yet" (the
// case for a first handshake or a legacy pre-handshake heartbeat).
type DeviceContext interface {
	LastPacketNumber() uint32
	SetLastPacketNumber(uint32)
}

// Codec parses datagram payloads into typed Packets and serializes typed
// Packets back into a buffer. It is an external collaborator: this repo's
// core event loop and dispatcher depend only on this interface, never on
// a concrete encoding. github.com/go-slimevr/trackerhub/pkg/owotrack
// provides the one implementation this repo ships.
type Codec interface {
	// Parse decodes a single datagram payload into zero or more packets.
	// Unknown leading kind bytes yield zero packets and a nil error — the
	// wire format tolerates additions without breaking older servers.
	Parse(buf []byte, device DeviceContext) ([]Packet, error)

	// Write serializes p into buf and returns the number of bytes
	// written. buf is not grown; an encoding longer than len(buf) is
	// truncated.
	Write(buf []byte, device DeviceContext, p Packet) (int, error)

	// WriteHandshakeResponse serializes the server's reply to a
	// Handshake(3), which every device expects before it will send
	// further telemetry.
	WriteHandshakeResponse(buf []byte, device DeviceContext) (int, error)

	// WriteSensorInfoResponse serializes the acknowledgement sent after
	// provisioning (or re-confirming) a sensor from a SensorInfo(15)
	// packet.
	WriteSensorInfoResponse(buf []byte, device DeviceContext, info SensorInfo) (int, error)

	// DecodeStatus maps a codec-specific raw status code (as carried on a
	// SensorInfo packet, or the fixed code the handshake path provisions
	// sensor 0 with) to the tracker lifecycle status the provisioner
	// should use.
	DecodeStatus(raw int) trackerapi.Status
}

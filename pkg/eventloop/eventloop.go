// Package eventloop implements the single-threaded core that binds a UDP
// socket, multiplexes the server's three timed duties (discovery
// broadcast, keepalive sweep, ping) with receive-driven packet dispatch,
// and owns the connection registry for the life of the process.
package eventloop

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/go-slimevr/trackerhub/pkg/config"
	"github.com/go-slimevr/trackerhub/pkg/logger"
	"github.com/go-slimevr/trackerhub/pkg/protocol"
	"github.com/go-slimevr/trackerhub/pkg/registry"
	"github.com/go-slimevr/trackerhub/pkg/trackerapi"
)

const (
	maxDatagramSize = 512
	receiveTimeout  = 250 * time.Millisecond

	discoveryInterval   = 2000 * time.Millisecond
	keepaliveInterval   = 500 * time.Millisecond
	pingInterval        = 500 * time.Millisecond
	livenessTimeout     = 1000 * time.Millisecond
	serialFlushInterval = 500 * time.Millisecond
)

var errSocketClosed = errors.New("eventloop: socket closed")

// Stats are lightweight in-memory diagnostic counters; nothing here is
// exported through a metrics registry (no metrics library is wired into
// this repository).
type Stats struct {
	mu sync.Mutex

	PacketsReceived int64
	ParseErrors     int64
	DiscoverySends  int64
	Handshakes      int64
	Adoptions       int64
}

func (s *Stats) incr(field *int64) {
	s.mu.Lock()
	*field++
	s.mu.Unlock()
}

// Snapshot returns a copy of the current counters, safe to read from
// outside the event loop.
func (s *Stats) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		PacketsReceived: s.PacketsReceived,
		ParseErrors:     s.ParseErrors,
		DiscoverySends:  s.DiscoverySends,
		Handshakes:      s.Handshakes,
		Adoptions:       s.Adoptions,
	}
}

// EventLoop is the single owned goroutine that runs the wire-protocol
// state machine end to end.
type EventLoop struct {
	conn *net.UDPConn

	registry   *registry.ConnectionRegistry
	codec      protocol.Codec
	dispatcher *packetDispatcher
	clock      Clock
	rng        *rand.Rand
	log        logger.Logger

	broadcastAddrs []*net.UDPAddr

	recvBuf []byte
	sendBuf []byte

	lastDiscoverySendMs   int64
	lastKeepaliveSweepMs  int64

	stats Stats
}

// New binds the UDP socket and builds an EventLoop ready to Run. console
// may be nil, in which case serial text is only buffered, never forwarded
// live.
func New(cfg config.Config, codec protocol.Codec, host trackerapi.Host, console consoleSink, log logger.Logger) (*EventLoop, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: cfg.ListenPort})
	if err != nil {
		return nil, fmt.Errorf("failed to bind UDP socket on port %d: %w", cfg.ListenPort, err)
	}

	elLog := log.WithComponent("eventloop")
	reg := registry.New()

	return &EventLoop{
		conn:           conn,
		registry:       reg,
		codec:          codec,
		dispatcher:     newPacketDispatcher(reg, host, codec, console, log),
		clock:          realClock{},
		rng:            rand.New(rand.NewSource(seedFromAddr(conn.LocalAddr()))), //nolint:gosec // RTT nonce, not security sensitive
		log:            elLog,
		broadcastAddrs: enumerateBroadcastAddresses(cfg.DiscoveryBroadcastPort, elLog),
		recvBuf:        make([]byte, maxDatagramSize),
		sendBuf:        make([]byte, maxDatagramSize),
	}, nil
}

func seedFromAddr(addr net.Addr) int64 {
	if addr == nil {
		return 1
	}

	var seed int64
	for _, b := range []byte(addr.String()) {
		seed = seed*31 + int64(b)
	}

	if seed == 0 {
		seed = 1
	}

	return seed
}

// Registry exposes the connection registry for a UI/enumeration thread
// (§9's reader-friendly snapshot mechanism); callers outside the loop
// should only ever call Snapshot on it.
func (e *EventLoop) Registry() *registry.ConnectionRegistry { return e.registry }

// Stats returns a snapshot of the loop's diagnostic counters.
func (e *EventLoop) Stats() Stats { return e.stats.Snapshot() }

// Run drives the loop until ctx is canceled or a fatal socket error
// occurs. It always closes the socket before returning.
func (e *EventLoop) Run(ctx context.Context) error {
	defer e.conn.Close()

	go func() {
		<-ctx.Done()
		_ = e.conn.Close()
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}

		e.runDiscoveryDuty()

		if err := e.runReceiveDuty(); err != nil {
			if ctx.Err() != nil || errors.Is(err, errSocketClosed) {
				return nil
			}

			return err
		}

		e.runKeepaliveDuty()
	}
}

func (e *EventLoop) runDiscoveryDuty() {
	if e.registry.HasAnySensors() {
		return
	}

	now := nowMs(e.clock)
	if now-e.lastDiscoverySendMs < discoveryInterval.Milliseconds() {
		return
	}

	e.lastDiscoverySendMs = now

	if len(e.broadcastAddrs) == 0 {
		return
	}

	n, err := e.codec.Write(e.sendBuf, nil, protocol.Heartbeat{K: protocol.KindHeartbeatIn})
	if err != nil {
		e.log.Warn().Err(err).Str("kind", string(logger.KindTransport)).Msg("failed to encode discovery heartbeat")
		return
	}

	for _, addr := range e.broadcastAddrs {
		if _, err := e.conn.WriteToUDP(e.sendBuf[:n], addr); err != nil {
			e.log.Warn().Err(err).Str("kind", string(logger.KindTransport)).Stringer("addr", addr).Msg("failed to send discovery broadcast")
			continue
		}

		e.stats.incr(&e.stats.DiscoverySends)
	}
}

func (e *EventLoop) runReceiveDuty() error {
	if err := e.conn.SetReadDeadline(time.Now().Add(receiveTimeout)); err != nil {
		return fmt.Errorf("failed to set read deadline: %w", err)
	}

	n, sender, err := e.conn.ReadFromUDP(e.recvBuf)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil
		}

		if errors.Is(err, net.ErrClosed) {
			return errSocketClosed
		}

		e.log.Warn().Err(err).Str("kind", string(logger.KindTransport)).Msg("receive failed")
		return nil
	}

	e.stats.incr(&e.stats.PacketsReceived)
	now := e.clock.Now()

	device, _ := e.registry.LookupByAddress(sender)

	packets, err := e.codec.Parse(e.recvBuf[:n], deviceContextOrNil(device))
	if err != nil {
		e.stats.incr(&e.stats.ParseErrors)
		e.log.Warn().Err(err).Str("kind", string(logger.KindParse)).Stringer("addr", sender).Str("dump", dumpHex(e.recvBuf[:n])).Msg("failed to parse datagram")
		return nil
	}

	for _, pkt := range packets {
		if device == nil {
			if _, ok := pkt.(protocol.Handshake); !ok {
				// Unknown sender and not a handshake: dropped silently,
				// per §4.5 — logging discovery echoes would be noisy.
				continue
			}
		} else {
			device.Touch(now.UnixMilli())
		}

		var adopted bool
		device, adopted = e.dispatcher.dispatch(e.conn, pkt, device, sender, now)

		if _, ok := pkt.(protocol.Handshake); ok {
			e.stats.incr(&e.stats.Handshakes)

			if adopted {
				e.stats.incr(&e.stats.Adoptions)
			}
		}
	}

	return nil
}

// deviceContextOrNil adapts a possibly-nil *registry.Device into a
// possibly-nil protocol.DeviceContext without returning a non-nil
// interface wrapping a nil pointer.
func deviceContextOrNil(d *registry.Device) protocol.DeviceContext {
	if d == nil {
		return nil
	}

	return d
}

func (e *EventLoop) runKeepaliveDuty() {
	now := nowMs(e.clock)
	if now-e.lastKeepaliveSweepMs < keepaliveInterval.Milliseconds() {
		return
	}

	e.lastKeepaliveSweepMs = now

	e.registry.ForEach(func(d *registry.Device) {
		e.sendKeepaliveHeartbeat(d)
		e.checkLiveness(d, now)
		e.flushSerial(d, now)
		e.sendPing(d, now)
	})
}

func (e *EventLoop) sendKeepaliveHeartbeat(d *registry.Device) {
	n, err := e.codec.Write(e.sendBuf, d, protocol.Heartbeat{K: protocol.KindHeartbeatOut})
	if err != nil {
		e.log.Warn().Err(err).Str("kind", string(logger.KindTransport)).Msg("failed to encode keepalive heartbeat")
		return
	}

	if _, err := e.conn.WriteToUDP(e.sendBuf[:n], d.Address()); err != nil {
		e.log.Warn().Err(err).Str("kind", string(logger.KindTransport)).Str("device", d.Name()).Msg("failed to send keepalive heartbeat")
	}
}

func (e *EventLoop) checkLiveness(d *registry.Device, now int64) {
	if now-d.LastPacketTimeMs() > livenessTimeout.Milliseconds() {
		for _, t := range d.Trackers() {
			t.SetStatus(trackerapi.StatusDisconnected)
		}

		if !d.TimedOut() {
			d.SetTimedOut(true)
			e.log.Warn().Str("device", d.Name()).Msg("device timed out")
		}

		return
	}

	if d.TimedOut() {
		d.SetTimedOut(false)

		for _, t := range d.Trackers() {
			if t.Status() == trackerapi.StatusDisconnected {
				t.SetStatus(trackerapi.StatusOK)
			}
		}
	}
}

func (e *EventLoop) flushSerial(d *registry.Device, now int64) {
	if now-d.LastSerialUpdateMs() <= serialFlushInterval.Milliseconds() {
		return
	}

	text := d.DrainSerial()
	if text == "" {
		return
	}

	if e.dispatcher.console != nil {
		e.dispatcher.console.WriteLine("[" + d.Name() + "] " + text)
	}
}

func (e *EventLoop) sendPing(d *registry.Device, now int64) {
	if now-d.LastPingPacketTimeMs() <= pingInterval.Milliseconds() {
		return
	}

	pingID := e.rng.Int31()
	d.ArmPing(pingID, now)

	n, err := e.codec.Write(e.sendBuf, d, protocol.PingPong{PingID: pingID})
	if err != nil {
		e.log.Warn().Err(err).Str("kind", string(logger.KindTransport)).Msg("failed to encode ping")
		return
	}

	if _, err := e.conn.WriteToUDP(e.sendBuf[:n], d.Address()); err != nil {
		e.log.Warn().Err(err).Str("kind", string(logger.KindTransport)).Str("device", d.Name()).Msg("failed to send ping")
	}
}

func dumpHex(b []byte) string {
	const hexChars = "0123456789abcdef"

	out := make([]byte, 0, len(b)*2)
	for _, c := range b {
		out = append(out, hexChars[c>>4], hexChars[c&0x0f])
	}

	return string(out)
}

// Package relay implements the voice datagram relay.
//
// A single UDP socket bound to a well-known port receives two kinds of
// datagrams: registration announcements, which record the sender's address
// in the session registry, and voice frames, which are forwarded to the
// receiver's registered address. Forwarding is best effort: no retry, no
// acknowledgment, no buffering beyond the single in-flight datagram,
// matching the lossy nature of real-time voice.
package relay

import (
	"bytes"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
)

// maxDatagram is the maximum datagram size handled per receive.
const maxDatagram = 4096

// Wire markers. All text fields are UTF-8 and colon-separated; the voice
// payload is opaque bytes and may itself contain colons.
var (
	registerMarker = []byte("REGISTER:")
	voiceMarker    = []byte("VOICE:")
	fromMarker     = []byte("FROM:")
)

// Endpoints is the registry view the relay needs: the datagram-address
// table, nothing else.
type Endpoints interface {
	RegisterEndpoint(identity string, addr *net.UDPAddr)
	LookupEndpoint(identity string) (*net.UDPAddr, bool)
}

// Stats is a snapshot of the relay's packet counters.
type Stats struct {
	Registrations   uint64
	FramesForwarded uint64
	FramesDropped   uint64
	BytesForwarded  uint64
	Ignored         uint64
}

// Relay runs the receive loop for the voice port. The relay does not
// consult call state: any registered endpoint can exchange frames with
// any other. See the security note in DESIGN.md.
type Relay struct {
	conn      *net.UDPConn
	endpoints Endpoints
	logger    *slog.Logger

	stopped atomic.Bool
	wg      sync.WaitGroup

	registrations   atomic.Uint64
	framesForwarded atomic.Uint64
	framesDropped   atomic.Uint64
	bytesForwarded  atomic.Uint64
	ignored         atomic.Uint64
}

// New binds the relay socket on the given UDP port. A bind failure is
// fatal to startup and is returned as an error.
func New(port int, endpoints Endpoints, logger *slog.Logger) (*Relay, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: port})
	if err != nil {
		return nil, fmt.Errorf("binding voice relay port %d: %w", port, err)
	}
	return &Relay{
		conn:      conn,
		endpoints: endpoints,
		logger:    logger.With("subsystem", "voice-relay"),
	}, nil
}

// Start launches the receive loop in a background goroutine.
// This method is non-blocking.
func (r *Relay) Start() {
	r.wg.Add(1)
	go r.loop()
	r.logger.Info("voice relay started", "port", r.Port())
}

// Stop closes the relay socket, which unblocks the receive loop, and
// waits for the loop to exit.
func (r *Relay) Stop() {
	r.stopped.Store(true)
	r.conn.Close()
	r.wg.Wait()

	stats := r.Stats()
	r.logger.Info("voice relay stopped",
		"registrations", stats.Registrations,
		"frames_forwarded", stats.FramesForwarded,
		"frames_dropped", stats.FramesDropped,
		"bytes_forwarded", stats.BytesForwarded,
	)
}

// Port returns the local UDP port the relay is bound to.
func (r *Relay) Port() int {
	return r.conn.LocalAddr().(*net.UDPAddr).Port
}

// Stats returns a snapshot of the relay counters.
func (r *Relay) Stats() Stats {
	return Stats{
		Registrations:   r.registrations.Load(),
		FramesForwarded: r.framesForwarded.Load(),
		FramesDropped:   r.framesDropped.Load(),
		BytesForwarded:  r.bytesForwarded.Load(),
		Ignored:         r.ignored.Load(),
	}
}

// loop reads datagrams until the relay is stopped. Receive errors are
// logged and the loop continues; only a stop request ends it.
func (r *Relay) loop() {
	defer r.wg.Done()

	buf := make([]byte, maxDatagram)
	for {
		n, src, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			if r.stopped.Load() {
				return
			}
			r.logger.Error("relay receive error", "error", err)
			continue
		}
		r.handle(buf[:n], src)
	}
}

// handle classifies a single datagram and acts on it. Unrecognized
// payload shapes are silently ignored.
func (r *Relay) handle(pkt []byte, src *net.UDPAddr) {
	switch {
	case bytes.HasPrefix(pkt, registerMarker):
		identity := string(pkt[len(registerMarker):])
		if identity == "" {
			r.ignored.Add(1)
			return
		}
		r.endpoints.RegisterEndpoint(identity, src)
		r.registrations.Add(1)
		r.logger.Debug("registered voice endpoint",
			"identity", identity,
			"address", src.String(),
		)

	case bytes.HasPrefix(pkt, voiceMarker):
		r.forward(pkt, src)

	default:
		r.ignored.Add(1)
	}
}

// forward relays one voice frame. The inbound shape is
// VOICE:<sender>:<receiver>:<payload>; only the first two colons after
// the marker delimit fields, the payload is opaque. The outbound frame
// is FROM:<sender>:<payload>, byte content unchanged. Unknown receivers
// and malformed frames are dropped without a reply.
func (r *Relay) forward(pkt []byte, src *net.UDPAddr) {
	parts := bytes.SplitN(pkt, []byte(":"), 4)
	if len(parts) < 4 {
		r.framesDropped.Add(1)
		return
	}
	sender, receiver, payload := parts[1], parts[2], parts[3]

	dst, ok := r.endpoints.LookupEndpoint(string(receiver))
	if !ok {
		r.framesDropped.Add(1)
		return
	}

	out := make([]byte, 0, len(fromMarker)+len(sender)+1+len(payload))
	out = append(out, fromMarker...)
	out = append(out, sender...)
	out = append(out, ':')
	out = append(out, payload...)

	// Fire and forget: the relay never blocks on delivery.
	n, err := r.conn.WriteToUDP(out, dst)
	if err != nil {
		r.framesDropped.Add(1)
		r.logger.Debug("relay send error",
			"receiver", string(receiver),
			"error", err,
		)
		return
	}
	r.framesForwarded.Add(1)
	r.bytesForwarded.Add(uint64(n))
}

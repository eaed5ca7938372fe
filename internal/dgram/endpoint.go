package dgram

import (
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/tinyrange/reldgram/internal/capture"
)

// frameHeaderSize is the width of the outer frame header: an 8-byte
// big-endian sender id prepended to every datagram.
const frameHeaderSize = 8

// Endpoint binds a UDP socket to a single remote peer and layers the
// (sender-id-framed) Channel contract on top of it.
type Endpoint struct {
	conn   net.PacketConn
	remote net.Addr

	selfID uint64
	peerID uint64

	sendMu  sync.Mutex
	capture *capture.Recorder
}

// Option configures an Endpoint at construction time.
type Option func(*Endpoint)

// WithCapture mirrors every datagram sent or received into rec.
func WithCapture(rec *capture.Recorder) Option {
	return func(e *Endpoint) { e.capture = rec }
}

// Listen opens a UDP socket on localAddr bound to a single remote peer,
// identified on the wire by selfID (this endpoint's outgoing frames) and
// filtered on receipt to peerID (frames from anyone else are discarded per
// the spec's "unknown peer" rule).
func Listen(localAddr, remoteAddr string, selfID, peerID uint64, opts ...Option) (*Endpoint, error) {
	conn, err := net.ListenPacket("udp", localAddr)
	if err != nil {
		return nil, fmt.Errorf("dgram: listen %s: %w", localAddr, err)
	}
	remote, err := net.ResolveUDPAddr("udp", remoteAddr)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("dgram: resolve peer %s: %w", remoteAddr, err)
	}

	e := &Endpoint{conn: conn, remote: remote, selfID: selfID, peerID: peerID}
	for _, opt := range opts {
		opt(e)
	}
	if err := tuneSocketBuffers(conn); err != nil {
		// Buffer tuning is best-effort; a failure here never aborts startup.
		_ = err
	}
	return e, nil
}

// Send implements Channel.
func (e *Endpoint) Send(payload []byte) error {
	frame := make([]byte, frameHeaderSize+len(payload))
	binary.BigEndian.PutUint64(frame[:frameHeaderSize], e.selfID)
	copy(frame[frameHeaderSize:], payload)

	e.sendMu.Lock()
	defer e.sendMu.Unlock()

	if e.capture != nil {
		_ = e.capture.Record(frame, true)
	}
	_, err := e.conn.WriteTo(frame, e.remote)
	if err != nil {
		return fmt.Errorf("dgram: send: %w", err)
	}
	return nil
}

// Recv implements Channel.
func (e *Endpoint) Recv(maxSize int, timeout time.Duration) ([]byte, error) {
	buf := make([]byte, maxSize+frameHeaderSize)
	if err := e.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, fmt.Errorf("dgram: set deadline: %w", err)
	}

	n, _, err := e.conn.ReadFrom(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("dgram: recv: %w", err)
	}

	if e.capture != nil {
		_ = e.capture.Record(buf[:n], false)
	}

	if n < frameHeaderSize {
		return nil, ErrTimeout // malformed frame, treated as a transient miss
	}
	id := binary.BigEndian.Uint64(buf[:frameHeaderSize])
	if id != e.peerID {
		return nil, ErrTimeout // unknown peer, discarded silently
	}

	payload := make([]byte, n-frameHeaderSize)
	copy(payload, buf[frameHeaderSize:])
	return payload, nil
}

// Close implements Channel.
func (e *Endpoint) Close() error {
	return e.conn.Close()
}

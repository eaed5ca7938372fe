// Package dgram provides the reliable transfer's only suspension point on
// receive: a blocking, framed datagram channel with a caller-configured
// timeout, identifying the peer by an endpoint id carried in an outer frame
// header that is opaque to the wire codec above it.
package dgram

import (
	"errors"
	"time"
)

// ErrTimeout is returned by Recv when no datagram arrives within the
// caller's deadline, and also (per the spec's "unknown peer" rule) when a
// datagram from a peer other than the one this channel is bound to arrives
// — such a datagram resets the read but yields nothing to the caller, which
// is indistinguishable from a plain timeout to anyone above this layer.
var ErrTimeout = errors.New("dgram: recv timeout")

// Channel is the datagram I/O contract the sender and receiver cores depend
// on. Production code binds it to a real UDP socket (Endpoint); tests bind
// it to an in-memory lossy pair (see internal/lossynet).
type Channel interface {
	// Send transmits payload to the channel's bound peer. Atomic: the
	// datagram is never partially written.
	Send(payload []byte) error

	// Recv blocks for up to timeout waiting for a datagram. It returns
	// ErrTimeout if none arrives, or if the arriving datagram belongs to
	// an unrecognized peer.
	Recv(maxSize int, timeout time.Duration) ([]byte, error)

	// Close releases the channel's underlying resources.
	Close() error
}

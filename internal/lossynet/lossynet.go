// Package lossynet provides an in-memory dgram.Channel pair that drops,
// reorders, and duplicates datagrams with configurable probability. It
// stands in, for test purposes only, for the external lossy-link emulator
// that spec.md names as a collaborator rather than something this module
// implements: production code talks to a real UDP socket (dgram.Endpoint)
// with a real emulator process in between.
package lossynet

import (
	"math/rand"
	"sync"
	"time"

	"github.com/tinyrange/reldgram/internal/dgram"
)

// Options configures the loss/reorder/duplication behavior of a Pair.
type Options struct {
	DropRate     float64 // probability a datagram is dropped in transit
	ReorderDelay time.Duration // max extra delay applied to a delayed datagram
	ReorderRate  float64 // probability a datagram is delayed by up to ReorderDelay
	DuplicateRate float64 // probability a datagram is delivered twice
	Rand         *rand.Rand
}

type endpoint struct {
	inbox  chan []byte
	peer   *endpoint
	opts   Options
	rngMu  *sync.Mutex // shared with peer: both endpoints draw from the same *rand.Rand
	rng    *rand.Rand
	closed chan struct{}
	once   sync.Once
}

// NewPair returns two connected Channels, a and b, such that writes to a
// arrive (subject to Options) at b's Recv and vice versa.
func NewPair(opts Options) (a, b dgram.Channel) {
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(1))
	}
	var rngMu sync.Mutex
	ea := &endpoint{inbox: make(chan []byte, 4096), opts: opts, rngMu: &rngMu, rng: opts.Rand, closed: make(chan struct{})}
	eb := &endpoint{inbox: make(chan []byte, 4096), opts: opts, rngMu: &rngMu, rng: opts.Rand, closed: make(chan struct{})}
	ea.peer = eb
	eb.peer = ea
	return ea, eb
}

func (e *endpoint) Send(payload []byte) error {
	e.rngMu.Lock()
	roll := e.rng.Float64()
	dup := e.rng.Float64() < e.opts.DuplicateRate
	delay := e.rng.Float64() < e.opts.ReorderRate
	var delayDuration time.Duration
	if delay && e.opts.ReorderDelay > 0 {
		delayDuration = time.Duration(e.rng.Int63n(int64(e.opts.ReorderDelay) + 1))
	}
	e.rngMu.Unlock()

	if roll < e.opts.DropRate {
		return nil
	}

	deliver := func() {
		buf := make([]byte, len(payload))
		copy(buf, payload)
		select {
		case e.peer.inbox <- buf:
		case <-e.peer.closed:
		}
	}

	if delay && e.opts.ReorderDelay > 0 {
		go func() {
			time.Sleep(delayDuration)
			deliver()
		}()
	} else {
		deliver()
	}

	if dup {
		go deliver()
	}
	return nil
}

func (e *endpoint) Recv(maxSize int, timeout time.Duration) ([]byte, error) {
	select {
	case buf := <-e.inbox:
		if len(buf) > maxSize {
			buf = buf[:maxSize]
		}
		return buf, nil
	case <-time.After(timeout):
		return nil, dgram.ErrTimeout
	case <-e.closed:
		return nil, dgram.ErrTimeout
	}
}

func (e *endpoint) Close() error {
	e.once.Do(func() { close(e.closed) })
	return nil
}

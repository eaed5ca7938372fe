package sender

import (
	"sync"

	"github.com/tinyrange/reldgram/internal/wire"
)

// ackBuffer is the ordered map of in-flight packets awaiting acknowledgment
// described in spec.md §4.4: push-by-seq, remove-by-seq, peek-oldest, and
// rotate-oldest-to-end, all atomic with respect to each other. It also
// exposes a condition variable so the transmit loop's "wait for a free
// slot" and "wait for drain" spins (spec.md §4.5) become notify-driven
// waits per spec.md §9's re-architecture note, rather than busy loops.
type ackBuffer struct {
	mu    sync.Mutex
	cond  *sync.Cond
	order []int
	byseq map[int]*wire.Packet
}

func newAckBuffer() *ackBuffer {
	b := &ackBuffer{byseq: make(map[int]*wire.Packet)}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// push appends pkt at the tail, keyed by its seq, and resets its birth time.
func (b *ackBuffer) push(p wire.Packet) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p.Touch()
	cp := p
	b.byseq[p.Seq] = &cp
	b.order = append(b.order, p.Seq)
	b.cond.Broadcast()
}

// remove deletes and returns the packet for seq, if present.
func (b *ackBuffer) remove(seq int) (wire.Packet, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.byseq[seq]
	if !ok {
		return wire.Packet{}, false
	}
	delete(b.byseq, seq)
	for i, s := range b.order {
		if s == seq {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	b.cond.Broadcast()
	return *p, true
}

// peekOldest returns the oldest packet by insertion order without removing it.
func (b *ackBuffer) peekOldest() (wire.Packet, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.order) == 0 {
		return wire.Packet{}, false
	}
	return *b.byseq[b.order[0]], true
}

// get looks up a packet by seq without affecting its position.
func (b *ackBuffer) get(seq int) (wire.Packet, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.byseq[seq]
	if !ok {
		return wire.Packet{}, false
	}
	return *p, true
}

// cycle moves the oldest entry to the tail and refreshes its birth time,
// marking it as just-retransmitted.
func (b *ackBuffer) cycle() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.order) == 0 {
		return
	}
	seq := b.order[0]
	b.order = append(b.order[1:], seq)
	if p, ok := b.byseq[seq]; ok {
		p.Touch()
	}
}

func (b *ackBuffer) size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.order)
}

// waitForSlot blocks until fewer than window packets are in flight or
// stopped reports true.
func (b *ackBuffer) waitForSlot(window int, stopped func() bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for len(b.order) >= window && !stopped() {
		b.cond.Wait()
	}
}

// waitEmpty blocks until the buffer drains to empty or stopped reports true.
func (b *ackBuffer) waitEmpty(stopped func() bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for len(b.order) > 0 && !stopped() {
		b.cond.Wait()
	}
}

// wake rouses any goroutine blocked in waitForSlot/waitEmpty, used when an
// external stop signal fires so those waits re-check their predicate.
func (b *ackBuffer) wake() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cond.Broadcast()
}

package sender

import "github.com/tinyrange/reldgram/internal/wire"

// packetQueue is the sender's FIFO of not-yet-transmitted packets. It is
// owned exclusively by the transmit loop and is never shared across
// goroutines, so it needs no locking (spec.md §5: "Packet queue (sender):
// owned by transmit loop; not shared").
type packetQueue struct {
	items []wire.Packet
}

func newPacketQueue(items []wire.Packet) *packetQueue {
	return &packetQueue{items: items}
}

func (q *packetQueue) pop() (wire.Packet, bool) {
	if len(q.items) == 0 {
		return wire.Packet{}, false
	}
	p := q.items[0]
	q.items = q.items[1:]
	return p, true
}

func (q *packetQueue) empty() bool {
	return len(q.items) == 0
}

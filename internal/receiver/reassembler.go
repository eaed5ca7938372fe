// Package receiver implements the receiving half of the protocol: a
// reassembly buffer that writes payloads to the output file strictly in
// sequence order, followed by a bounded drain phase that re-ACKs late or
// duplicate datagrams so the sender can observe its final ACKs.
package receiver

import (
	"fmt"
	"os"

	"github.com/tinyrange/reldgram/internal/wire"
)

// reassembler implements spec.md §4.7: an out-of-order packet buffer that
// drains in seq order to an output file, truncated at construction so the
// result is a byte-exact copy regardless of arrival order. total is not
// known at construction — every packet carries it, so the reassembler
// learns it lazily from the first packet it sees, matching
// designed_protocol/receiver.py's Writer.packets_push.
type reassembler struct {
	f            *os.File
	total        int // 0 until learned from the first packet
	learned      bool
	nextExpected int
	pending      map[int]struct{}
	buffer       map[int]wire.Packet
}

func newReassembler(path string) (*reassembler, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("reassembler: create %s: %w", path, err)
	}
	return &reassembler{
		f:      f,
		buffer: make(map[int]wire.Packet),
	}, nil
}

// learnTotal initializes total and the pending set from the first packet's
// total field. Later packets' total fields are trusted to agree with it.
func (r *reassembler) learnTotal(total int) {
	if r.learned {
		return
	}
	r.learned = true
	r.total = total
	r.pending = make(map[int]struct{}, total)
	for i := 0; i < total; i++ {
		r.pending[i] = struct{}{}
	}
}

// accept implements steps 2–4 of spec.md §4.7 for one decoded packet. A
// duplicate seq is neither re-buffered nor rewritten. It returns an error
// only if writing to the output file fails.
func (r *reassembler) accept(p wire.Packet) error {
	r.learnTotal(p.Total)

	if _, isPending := r.pending[p.Seq]; isPending {
		r.buffer[p.Seq] = p
		delete(r.pending, p.Seq)
	}

	for {
		next, ok := r.buffer[r.nextExpected]
		if !ok {
			break
		}
		if _, err := r.f.Write(next.Payload); err != nil {
			return fmt.Errorf("reassembler: write seq %d: %w", next.Seq, err)
		}
		delete(r.buffer, r.nextExpected)
		r.nextExpected++
	}
	return nil
}

// done reports whether step 5 of spec.md §4.7 is satisfied: total is known,
// every sequence number has been written out in order, and nothing remains
// buffered.
func (r *reassembler) done() bool {
	return r.learned && r.nextExpected == r.total && len(r.buffer) == 0
}

func (r *reassembler) close() error {
	return r.f.Close()
}

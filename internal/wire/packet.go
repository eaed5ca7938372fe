// Package wire implements the on-the-wire framing for transfer packets:
// a decimal "(seq,total)|" header followed by raw payload bytes.
package wire

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrNoHeader is returned when a datagram has no '|' separator.
var ErrNoHeader = errors.New("wire: missing header separator")

// ErrMalformedHeader is returned when the header isn't a well-formed
// "(seq,total)" decimal pair.
var ErrMalformedHeader = errors.New("wire: malformed header")

// ErrInvalidSeq is returned when 0 <= seq < total does not hold.
var ErrInvalidSeq = errors.New("wire: seq out of range for total")

// Packet is a single application-layer unit of the transfer.
type Packet struct {
	Seq     int
	Total   int
	Payload []byte

	// birth is the monotonic instant of the packet's last transmission.
	// Receiver-parsed packets leave this zero; Age is meaningless there.
	birth time.Time
}

// NewPacket constructs a packet and stamps its birth time to now.
func NewPacket(seq, total int, payload []byte) Packet {
	return Packet{Seq: seq, Total: total, Payload: payload, birth: time.Now()}
}

// Age reports the time elapsed since the packet was last (re)transmitted.
func (p *Packet) Age() time.Duration {
	return time.Since(p.birth)
}

// Touch resets the packet's birth time to now, marking it as just sent.
func (p *Packet) Touch() {
	p.birth = time.Now()
}

// Encode renders the packet in canonical wire form: "(seq,total)|payload",
// with no spaces.
func Encode(p Packet) []byte {
	header := fmt.Sprintf("(%d,%d)|", p.Seq, p.Total)
	out := make([]byte, 0, len(header)+len(p.Payload))
	out = append(out, header...)
	out = append(out, p.Payload...)
	return out
}

// Decode parses a datagram payload into a Packet. It tolerates spaces
// around the header fields but requires the canonical "(seq,total)|"
// shape otherwise.
func Decode(data []byte) (Packet, error) {
	idx := strings.IndexByte(string(data), '|')
	if idx < 0 {
		return Packet{}, ErrNoHeader
	}
	head := string(data[:idx])
	payload := data[idx+1:]

	head = strings.TrimSpace(head)
	head = strings.TrimPrefix(head, "(")
	head = strings.TrimSuffix(head, ")")
	head = strings.ReplaceAll(head, " ", "")

	parts := strings.Split(head, ",")
	if len(parts) != 2 {
		return Packet{}, fmt.Errorf("%w: %q", ErrMalformedHeader, head)
	}

	seq, err := strconv.Atoi(parts[0])
	if err != nil {
		return Packet{}, fmt.Errorf("%w: seq %q: %v", ErrMalformedHeader, parts[0], err)
	}
	total, err := strconv.Atoi(parts[1])
	if err != nil {
		return Packet{}, fmt.Errorf("%w: total %q: %v", ErrMalformedHeader, parts[1], err)
	}
	if seq < 0 || total <= 0 || seq >= total {
		return Packet{}, fmt.Errorf("%w: seq=%d total=%d", ErrInvalidSeq, seq, total)
	}

	buf := make([]byte, len(payload))
	copy(buf, payload)

	return Packet{Seq: seq, Total: total, Payload: buf}, nil
}

// MaxPayload computes the largest payload that fits in maxPacketSize once
// the outer frame header and the widest possible "(seq,total)|" prefix are
// accounted for.
func MaxPayload(maxPacketSize, outerHeaderSize, total int) int {
	prefix := len(fmt.Sprintf("(%d,%d)|", total-1, total))
	n := maxPacketSize - outerHeaderSize - prefix
	if n < 0 {
		return 0
	}
	return n
}

// EndOfTransferSignal is the one-byte control datagram each side sends
// after reaching FINISHED (spec.md §6): a single 0xFF byte, outside the
// "(seq,total)|payload" framing entirely (a valid header always starts
// with '(', so this shape can never be confused with a real packet or an
// ACK). Its absence or loss never blocks either side's own FINISHED
// transition — it exists purely so the far end can log/observe closure.
var EndOfTransferSignal = []byte{0xFF}

// IsEndOfTransfer reports whether data is the end-of-transfer control
// datagram rather than a framed packet or an ACK.
func IsEndOfTransfer(data []byte) bool {
	return len(data) == 1 && data[0] == 0xFF
}

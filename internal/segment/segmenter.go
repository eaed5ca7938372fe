// Package segment splits a file into the fixed-max-size numbered packets
// the sender feeds into its transmit queue.
package segment

import (
	"fmt"
	"io"
	"os"

	"github.com/tinyrange/reldgram/internal/wire"
)

// Segmenter reads a file sequentially and emits dense, zero-based,
// deterministically ordered packets.
type Segmenter struct {
	f         *os.File
	total     int
	maxPayload int
	next      int
}

// Open computes total from the file size and maxPayload, and prepares to
// emit packets in order starting at seq 0.
func Open(path string, maxPayload int) (*Segmenter, error) {
	if maxPayload <= 0 {
		return nil, fmt.Errorf("segment: maxPayload must be positive, got %d", maxPayload)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("segment: open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("segment: stat %s: %w", path, err)
	}

	size := info.Size()
	total := int((size + int64(maxPayload) - 1) / int64(maxPayload))
	if total == 0 {
		total = 1 // an empty file still transfers as a single empty packet
	}

	return &Segmenter{f: f, total: total, maxPayload: maxPayload}, nil
}

// Total returns the transfer's total packet count.
func (s *Segmenter) Total() int {
	return s.total
}

// Next returns the next packet in sequence, or io.EOF once total packets
// have been emitted.
func (s *Segmenter) Next() (wire.Packet, error) {
	if s.next >= s.total {
		return wire.Packet{}, io.EOF
	}

	buf := make([]byte, s.maxPayload)
	n, err := io.ReadFull(s.f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return wire.Packet{}, fmt.Errorf("segment: read packet %d: %w", s.next, err)
	}

	p := wire.NewPacket(s.next, s.total, buf[:n])
	s.next++
	return p, nil
}

// Close releases the underlying file handle.
func (s *Segmenter) Close() error {
	return s.f.Close()
}

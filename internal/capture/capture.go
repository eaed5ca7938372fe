// Package capture mirrors every datagram exchanged by an endpoint into a
// libpcap-formatted stream, purely as a debugging aid for inspecting the
// drop/reorder behavior injected by the lossy-link emulator sitting between
// sender and receiver. It has no bearing on transfer correctness.
package capture

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"
)

// linkTypeRaw marks captured records as raw IP-less payloads (DLT_RAW
// equivalent used by tools that don't care about link-layer framing).
const linkTypeRaw uint32 = 101

// ErrHeaderAlreadyWritten indicates the global header has already been
// emitted for this recorder.
var ErrHeaderAlreadyWritten = errors.New("capture: file header already written")

// Recorder appends datagrams observed by a dgram.Endpoint to an underlying
// writer in classic libpcap format. Safe for concurrent use: the send path
// and recv path of an endpoint may record independently.
type Recorder struct {
	mu            sync.Mutex
	w             io.Writer
	headerWritten bool
}

// NewRecorder wraps out and eagerly writes the 24-byte global pcap header.
func NewRecorder(out io.Writer) (*Recorder, error) {
	r := &Recorder{w: out}
	if err := r.writeFileHeader(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Recorder) writeFileHeader() error {
	if r.headerWritten {
		return ErrHeaderAlreadyWritten
	}

	var hdr [24]byte
	binary.LittleEndian.PutUint32(hdr[0:4], 0xa1b2c3d4)
	binary.LittleEndian.PutUint16(hdr[4:6], 2)
	binary.LittleEndian.PutUint16(hdr[6:8], 4)
	binary.LittleEndian.PutUint32(hdr[16:20], 65535) // snaplen
	binary.LittleEndian.PutUint32(hdr[20:24], linkTypeRaw)

	if _, err := r.w.Write(hdr[:]); err != nil {
		return fmt.Errorf("capture: write header: %w", err)
	}
	r.headerWritten = true
	return nil
}

// Record appends a single datagram. outbound is ignored: inbound and
// outbound datagrams produce identical pcap records.
func (r *Recorder) Record(data []byte, outbound bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	sec := now.Unix()
	if sec < 0 || sec > math.MaxUint32 {
		return fmt.Errorf("capture: timestamp out of range")
	}

	var rec [16]byte
	binary.LittleEndian.PutUint32(rec[0:4], uint32(sec))
	binary.LittleEndian.PutUint32(rec[4:8], uint32(now.Nanosecond()/1_000))
	binary.LittleEndian.PutUint32(rec[8:12], uint32(len(data)))
	binary.LittleEndian.PutUint32(rec[12:16], uint32(len(data)))

	if _, err := r.w.Write(rec[:]); err != nil {
		return fmt.Errorf("capture: write record header: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	if _, err := r.w.Write(data); err != nil {
		return fmt.Errorf("capture: write datagram: %w", err)
	}
	return nil
}

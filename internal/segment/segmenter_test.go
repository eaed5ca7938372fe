package segment

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/tinyrange/reldgram/internal/wire"
)

func writeTempFile(t *testing.T, data []byte) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "input.bin")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestSegmenterSplitsIntoNumberedPackets(t *testing.T) {
	data := make([]byte, 4096)
	for i := range data {
		data[i] = byte(i)
	}
	path := writeTempFile(t, data)

	s, err := Open(path, 1024)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if s.Total() != 4 {
		t.Fatalf("Total() = %d, want 4", s.Total())
	}

	var reassembled []byte
	for i := 0; i < s.Total(); i++ {
		p, err := s.Next()
		if err != nil {
			t.Fatalf("Next(%d): %v", i, err)
		}
		if p.Seq != i || p.Total != 4 {
			t.Fatalf("packet %d: got seq=%d total=%d", i, p.Seq, p.Total)
		}
		reassembled = append(reassembled, p.Payload...)
	}
	if string(reassembled) != string(data) {
		t.Fatalf("reassembled data mismatch")
	}

	if _, err := s.Next(); err != io.EOF {
		t.Fatalf("expected io.EOF after total packets, got %v", err)
	}
}

func TestSegmenterShortFinalPacket(t *testing.T) {
	data := make([]byte, 2500)
	path := writeTempFile(t, data)

	s, err := Open(path, 1024)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if s.Total() != 3 {
		t.Fatalf("Total() = %d, want 3", s.Total())
	}

	var last wire.Packet
	for i := 0; i < 3; i++ {
		p, err := s.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		last = p
	}
	if len(last.Payload) != 452 {
		t.Fatalf("final packet length = %d, want 452", len(last.Payload))
	}
}

func TestSegmenterEmptyFileYieldsSinglePacket(t *testing.T) {
	path := writeTempFile(t, nil)

	s, err := Open(path, 1024)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if s.Total() != 1 {
		t.Fatalf("Total() = %d, want 1", s.Total())
	}
	p, err := s.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if len(p.Payload) != 0 {
		t.Fatalf("expected empty payload, got %d bytes", len(p.Payload))
	}
}

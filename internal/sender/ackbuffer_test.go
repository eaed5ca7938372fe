package sender

import (
	"testing"
	"time"

	"github.com/tinyrange/reldgram/internal/wire"
)

func TestAckBufferPushRemoveOrder(t *testing.T) {
	b := newAckBuffer()
	b.push(wire.NewPacket(0, 3, []byte("a")))
	b.push(wire.NewPacket(1, 3, []byte("b")))
	b.push(wire.NewPacket(2, 3, []byte("c")))

	if b.size() != 3 {
		t.Fatalf("size = %d, want 3", b.size())
	}

	oldest, ok := b.peekOldest()
	if !ok || oldest.Seq != 0 {
		t.Fatalf("peekOldest = %v, %v, want seq 0", oldest, ok)
	}

	if _, ok := b.remove(1); !ok {
		t.Fatalf("remove(1) should find the packet")
	}
	if b.size() != 2 {
		t.Fatalf("size after remove = %d, want 2", b.size())
	}
	oldest, ok = b.peekOldest()
	if !ok || oldest.Seq != 0 {
		t.Fatalf("peekOldest after removing non-oldest = %v, %v, want seq 0", oldest, ok)
	}
}

// TestAckBufferRemoveIsIdempotent covers P7: re-ACKing (and thus re-removing)
// a seq already taken out of the buffer must be a harmless no-op, not a
// double-count or a panic.
func TestAckBufferRemoveIsIdempotent(t *testing.T) {
	b := newAckBuffer()
	b.push(wire.NewPacket(0, 1, []byte("x")))

	if _, ok := b.remove(0); !ok {
		t.Fatalf("first remove(0) should succeed")
	}
	if _, ok := b.remove(0); ok {
		t.Fatalf("second remove(0) should report not-found, not re-deliver")
	}
	if _, ok := b.remove(99); ok {
		t.Fatalf("remove of a seq never pushed should report not-found")
	}
	if b.size() != 0 {
		t.Fatalf("size = %d, want 0", b.size())
	}
}

func TestAckBufferCycleMovesOldestToTail(t *testing.T) {
	b := newAckBuffer()
	b.push(wire.NewPacket(0, 3, []byte("a")))
	b.push(wire.NewPacket(1, 3, []byte("b")))
	b.push(wire.NewPacket(2, 3, []byte("c")))

	b.cycle()

	oldest, ok := b.peekOldest()
	if !ok || oldest.Seq != 1 {
		t.Fatalf("peekOldest after cycle = %v, %v, want seq 1", oldest, ok)
	}
	if _, ok := b.get(0); !ok {
		t.Fatalf("cycle must not remove the rotated packet, only reorder it")
	}
}

func TestAckBufferWaitForSlotUnblocksOnRemove(t *testing.T) {
	b := newAckBuffer()
	b.push(wire.NewPacket(0, 3, []byte("a")))
	b.push(wire.NewPacket(1, 3, []byte("b")))

	done := make(chan struct{})
	go func() {
		b.waitForSlot(2, func() bool { return false })
		close(done)
	}()

	select {
	case <-done:
		t.Fatalf("waitForSlot returned before a slot freed up")
	case <-time.After(20 * time.Millisecond):
	}

	b.remove(0)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("waitForSlot did not unblock after remove freed a slot")
	}
}

func TestAckBufferWaitForSlotUnblocksOnStop(t *testing.T) {
	b := newAckBuffer()
	b.push(wire.NewPacket(0, 1, []byte("a")))

	stopped := false
	done := make(chan struct{})
	go func() {
		b.waitForSlot(1, func() bool { return stopped })
		close(done)
	}()

	select {
	case <-done:
		t.Fatalf("waitForSlot returned before stop was requested")
	case <-time.After(20 * time.Millisecond):
	}

	stopped = true
	b.wake()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("waitForSlot did not unblock after wake")
	}
}

func TestAckBufferWaitEmpty(t *testing.T) {
	b := newAckBuffer()
	b.push(wire.NewPacket(0, 1, []byte("a")))

	done := make(chan struct{})
	go func() {
		b.waitEmpty(func() bool { return false })
		close(done)
	}()

	select {
	case <-done:
		t.Fatalf("waitEmpty returned before the buffer drained")
	case <-time.After(20 * time.Millisecond):
	}

	b.remove(0)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("waitEmpty did not unblock once the buffer emptied")
	}
}

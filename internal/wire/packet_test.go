package wire

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	p := NewPacket(17, 4096, []byte("hello world"))
	encoded := Encode(p)

	if !bytes.HasPrefix(encoded, []byte("(17,4096)|")) {
		t.Fatalf("unexpected canonical header: %q", encoded)
	}

	got, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Seq != p.Seq || got.Total != p.Total || !bytes.Equal(got.Payload, p.Payload) {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, p)
	}
}

func TestDecodeToleratesSpaces(t *testing.T) {
	got, err := Decode([]byte("( 3 , 10 )|abc"))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Seq != 3 || got.Total != 10 || string(got.Payload) != "abc" {
		t.Fatalf("unexpected parse: %+v", got)
	}
}

func TestDecodeEmptyPayload(t *testing.T) {
	got, err := Decode([]byte("(9,10)|"))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got.Payload) != 0 {
		t.Fatalf("expected empty payload, got %q", got.Payload)
	}
}

func TestDecodeMissingSeparator(t *testing.T) {
	_, err := Decode([]byte("(1,2)no-separator"))
	if !errors.Is(err, ErrNoHeader) {
		t.Fatalf("expected ErrNoHeader, got %v", err)
	}
}

func TestDecodeMalformedHeader(t *testing.T) {
	cases := [][]byte{
		[]byte("(1)|payload"),
		[]byte("(a,b)|payload"),
		[]byte("nope|payload"),
	}
	for _, c := range cases {
		if _, err := Decode(c); !errors.Is(err, ErrMalformedHeader) {
			t.Fatalf("input %q: expected ErrMalformedHeader, got %v", c, err)
		}
	}
}

func TestDecodeInvalidSeq(t *testing.T) {
	cases := [][]byte{
		[]byte("(-1,10)|x"),
		[]byte("(10,10)|x"),
		[]byte("(0,0)|x"),
	}
	for _, c := range cases {
		if _, err := Decode(c); !errors.Is(err, ErrInvalidSeq) {
			t.Fatalf("input %q: expected ErrInvalidSeq, got %v", c, err)
		}
	}
}

func TestMaxPayloadAccountsForWidestPrefix(t *testing.T) {
	n := MaxPayload(1024, 8, 100000)
	// widest header for total=100000 is "(99999,100000)|" == 15 bytes.
	want := 1024 - 8 - 15
	if n != want {
		t.Fatalf("MaxPayload = %d, want %d", n, want)
	}
}

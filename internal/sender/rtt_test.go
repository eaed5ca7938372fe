package sender

import (
	"testing"
	"time"
)

func TestNewRTTEstimatorSeeding(t *testing.T) {
	// maxPacketSize/linkBandwidth = 1000/1_000_000 sec = 1ms; +2*propDelay(5ms) = 11ms.
	r := newRTTEstimator(1000, 1_000_000, 5*time.Millisecond)
	rttEst, rto := r.get()

	wantRTT := 11 * time.Millisecond
	if rttEst != wantRTT {
		t.Fatalf("rttEst = %v, want %v", rttEst, wantRTT)
	}
	wantRTO := rtoInitialFactor * wantRTT
	if rto != wantRTO {
		t.Fatalf("rto = %d*rttEst = %v, want %v", rtoInitialFactor, rto, wantRTO)
	}
}

func TestRTTEstimatorUpdateBlendsWithInflation(t *testing.T) {
	r := newRTTEstimator(1000, 1_000_000, 0) // seeds rttEst=1ms (1000/1_000_000 sec), rto=4ms
	r.update(10 * time.Millisecond)

	rttEst, rto := r.get()

	// adjusted = 10ms * 1.5 = 15ms; rttEst = 0.875*1ms + 0.125*15ms = 2.75ms
	wantRTT := time.Duration(0.875*float64(time.Millisecond) + 0.125*float64(15*time.Millisecond))
	if rttEst != wantRTT {
		t.Fatalf("rttEst after first update = %v, want %v", rttEst, wantRTT)
	}
	// rto = 0.875*4ms + 0.125*rttEst = 3.84375ms
	wantRTO := time.Duration(0.875*float64(4*time.Millisecond) + 0.125*float64(wantRTT))
	if rto != wantRTO {
		t.Fatalf("rto after first update = %v, want %v", rto, wantRTO)
	}
}

func TestRTTEstimatorUpdateIsMonotonicTowardSample(t *testing.T) {
	r := newRTTEstimator(1000, 1_000_000, 5*time.Millisecond)
	before, _ := r.get()

	// A much larger sample should pull rttEst upward, not leave it unchanged.
	r.update(200 * time.Millisecond)
	after, _ := r.get()

	if after <= before {
		t.Fatalf("rttEst did not move toward a larger sample: before=%v after=%v", before, after)
	}
}

package sender

import "sync"

// defaultCongThreshMaxFactor resolves spec.md §9's open question in favor
// of the designed_protocol source's 1.25, not the 1.75 alternative.
const defaultCongThreshMaxFactor = 1.25

// windowController implements the spec's AIMD-style window update
// (spec.md §4.6): an adaptive cong_thresh capped by a fixed cong_thresh_max,
// additive increase once window reaches cong_thresh, multiplicative growth
// below it, and a halving response on explicit congestion signals.
// Grounded in shape on the teacher's tcpCongestionControl (guarded struct,
// onAck/onTimeout-style mutators); the arithmetic is spec.md's AIMD, not
// TCP Reno's slow-start/congestion-avoidance split.
type windowController struct {
	mu            sync.Mutex
	window        int
	congThresh    int
	congThreshMax int
	ppbw          float64 // seconds, MAX_PACKET_SIZE/LINK_BANDWIDTH
}

// newWindowController seeds window and cong_thresh from configuredWindow
// when the caller supplied one (spec.md §6: "sender.window_size: Initial
// window; also seeds cong_thresh"), else falls back to the source's
// floor(rtt_est/ppbw). cong_thresh_max is fixed at construction time as
// floor(initial_cong_thresh * congThreshMaxFactor) and never recomputed.
func newWindowController(rttEstSeconds, ppbwSeconds, congThreshMaxFactor float64, configuredWindow int) *windowController {
	initial := configuredWindow
	if initial <= 0 {
		initial = int(rttEstSeconds / ppbwSeconds)
	}
	if initial < 1 {
		initial = 1
	}
	return &windowController{
		window:        initial,
		congThresh:    initial,
		congThreshMax: maxInt(1, int(float64(initial)*congThreshMaxFactor)),
		ppbw:          ppbwSeconds,
	}
}

// update applies one window-refresh tick. congested selects the halving
// branch (spec.md §4.6 "On congested=true"); otherwise the additive/
// multiplicative branch runs with rttEstSeconds plugged into the
// cong_thresh refresh formula.
func (w *windowController) update(rttEstSeconds float64, congested bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if congested {
		c := minInt(w.congThresh, minInt(w.congThreshMax, w.window)) / 2
		if c < 1 {
			c = 1
		}
		w.congThresh = c
		w.window = c
		return
	}

	c := int(rttEstSeconds / 1.5 / w.ppbw)
	if c > w.congThreshMax {
		c = w.congThreshMax
	}
	w.congThresh = c

	if w.window >= w.congThresh {
		w.window++
	} else {
		doubled := w.window * 2
		if doubled > w.congThresh {
			w.window = w.congThresh
		} else {
			w.window = doubled
		}
	}
	if w.window < 1 {
		w.window = 1
	}
	// The source lets additive increase grow window past cong_thresh
	// without bound; clamp here to honor "1 <= window <= cong_thresh_max"
	// at all times (see DESIGN.md).
	if w.window > w.congThreshMax {
		w.window = w.congThreshMax
	}
}

func (w *windowController) get() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.window
}

func (w *windowController) thresholds() (congThresh, congThreshMax int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.congThresh, w.congThreshMax
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

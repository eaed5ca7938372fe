package receiver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/tinyrange/reldgram/internal/dgram"
	"github.com/tinyrange/reldgram/internal/monitor"
	"github.com/tinyrange/reldgram/internal/wire"
)

// State is one of the receiver's three lifecycle states (spec.md §4.9).
type State int32

const (
	Receiving State = iota
	Draining
	Finished
)

func (s State) String() string {
	switch s {
	case Receiving:
		return "RECEIVING"
	case Draining:
		return "DRAINING"
	case Finished:
		return "FINISHED"
	}
	return "UNKNOWN"
}

// Params configures a Receiver.
type Params struct {
	Channel       dgram.Channel
	WriteLocation string
	MaxPacketSize int

	// RTTEst seeds the drain-phase duration calculation (spec.md §4.8);
	// absent an estimate of its own, the receiver uses a fixed guess and
	// refines nothing further, since it does not run the sender's
	// EWMA machinery.
	RTTEst time.Duration
	// WindowHint, when positive, scales drain duration to
	// WindowHint * RTTEst; zero means the 3x fallback.
	WindowHint int

	Monitor *monitor.Recorder
	Logger  *slog.Logger
}

// Receiver drives one inbound transfer to completion.
type Receiver struct {
	ch      dgram.Channel
	monitor *monitor.Recorder
	log     *slog.Logger

	maxPacketSize int
	drainDuration time.Duration

	reasm *reassembler
	state State
}

// New constructs a Receiver ready to Run. The output file is created (and
// truncated) immediately, per spec.md §4.7's writing policy. total is not
// required up front: every packet already carries it (spec.md §4.1), so the
// reassembler learns it lazily from the first inbound packet, matching
// designed_protocol/receiver.py's Writer.packets_push.
func New(p Params) (*Receiver, error) {
	reasm, err := newReassembler(p.WriteLocation)
	if err != nil {
		return nil, err
	}
	log := p.Logger
	if log == nil {
		log = slog.Default()
	}

	rttEst := p.RTTEst
	if rttEst <= 0 {
		rttEst = 100 * time.Millisecond
	}
	var drain time.Duration
	if p.WindowHint > 0 {
		drain = time.Duration(p.WindowHint) * rttEst
	} else {
		drain = 3 * rttEst
	}

	return &Receiver{
		ch:            p.Channel,
		monitor:       p.Monitor,
		log:           log,
		maxPacketSize: p.MaxPacketSize,
		drainDuration: drain,
		reasm:         reasm,
		state:         Receiving,
	}, nil
}

// State reports the receiver's current lifecycle state.
func (r *Receiver) State() State {
	return r.state
}

// Run drives the transfer through RECEIVING, DRAINING, and FINISHED
// (spec.md §4.9), or returns early on ctx cancellation or a fatal I/O error.
func (r *Receiver) Run(ctx context.Context) error {
	defer r.reasm.close()

	var goodput int64
	started := false
	for !r.reasm.done() {
		if err := ctx.Err(); err != nil {
			return err
		}
		payload, err := r.ch.Recv(r.maxPacketSize+64, r.drainDuration)
		if err != nil {
			if errors.Is(err, dgram.ErrTimeout) {
				continue
			}
			return fmt.Errorf("receiver: recv: %w", err)
		}

		if wire.IsEndOfTransfer(payload) {
			r.log.Debug("peer signaled end of transfer")
			continue
		}

		pkt, derr := wire.Decode(payload)
		if derr != nil {
			r.log.Debug("malformed packet discarded", "error", derr)
			continue
		}

		// spec.md §4.10: the receiver's TransferStart fires once, after
		// parsing the first packet's total, since it has no other way to
		// learn the transfer's size up front.
		if !started {
			if r.monitor != nil {
				r.monitor.TransferStart(pkt.Total, 0)
			}
			started = true
		}

		goodput += int64(len(pkt.Payload))
		if err := r.reasm.accept(pkt); err != nil {
			return fmt.Errorf("receiver: %w", err)
		}
		if err := r.ack(pkt.Seq); err != nil {
			return fmt.Errorf("receiver: %w", err)
		}
	}

	r.state = Draining
	if err := r.drain(ctx); err != nil {
		return err
	}

	r.state = Finished
	// Best-effort per spec.md §6: its loss or absence must never block this
	// side's own FINISHED transition, so the send error is ignored.
	_ = r.ch.Send(wire.EndOfTransferSignal)
	if r.monitor != nil {
		r.monitor.TransferEnd(goodput, 0, 0, 0, r.drainDuration)
	}
	return nil
}

// drain implements spec.md §4.8: keep re-ACKing arrivals until a single
// recv-timeout spans the full drain window with nothing received.
func (r *Receiver) drain(ctx context.Context) error {
	deadline := time.Now().Add(r.drainDuration)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}
		payload, err := r.ch.Recv(r.maxPacketSize+64, remaining)
		if err != nil {
			if errors.Is(err, dgram.ErrTimeout) {
				return nil
			}
			return fmt.Errorf("drain: recv: %w", err)
		}

		if wire.IsEndOfTransfer(payload) {
			r.log.Debug("peer signaled end of transfer")
			continue
		}

		pkt, derr := wire.Decode(payload)
		if derr != nil {
			continue
		}
		if err := r.ack(pkt.Seq); err != nil {
			return fmt.Errorf("drain: %w", err)
		}
		deadline = time.Now().Add(r.drainDuration)
	}
}

func (r *Receiver) ack(seq int) error {
	if err := r.ch.Send([]byte(strconv.Itoa(seq))); err != nil {
		return fmt.Errorf("ack %d: %w", seq, err)
	}
	return nil
}

// Package sender implements the sender half of the reliable datagram file
// transfer protocol: segmentation feeds a transmit loop gated by an
// ACK-driven sliding window, while a concurrent ACK/timer loop smooths RTT,
// resizes the window, and drives timeout and fast retransmits.
package sender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tinyrange/reldgram/internal/dgram"
	"github.com/tinyrange/reldgram/internal/monitor"
	"github.com/tinyrange/reldgram/internal/wire"
)

// State is one of the sender's three lifecycle states (spec.md §4.9).
type State int32

const (
	Sending State = iota
	Draining
	Finished
)

func (s State) String() string {
	switch s {
	case Sending:
		return "SENDING"
	case Draining:
		return "DRAINING"
	case Finished:
		return "FINISHED"
	}
	return "UNKNOWN"
}

// Params configures a Sender.
type Params struct {
	Channel       dgram.Channel
	Packets       []wire.Packet // produced by internal/segment, in seq order
	Total         int
	MaxPacketSize int
	LinkBandwidth float64 // bytes/sec
	PropDelay     time.Duration

	// ConfiguredWindow, if positive, seeds the initial window/cong_thresh
	// per spec.md §6; zero falls back to the rtt/ppbw-derived default.
	ConfiguredWindow int
	// FastRetransmitGap is the seq gap that triggers a fast retransmit;
	// spec.md §9 leaves the exact value tunable. Zero means 2.
	FastRetransmitGap int
	// CongThreshMaxFactor is C in cong_thresh_max = floor(initial*C).
	// Zero means 1.25 (spec.md §9's resolved default).
	CongThreshMaxFactor float64

	Monitor *monitor.Recorder
	Logger  *slog.Logger
}

// Sender drives one outbound transfer to completion.
type Sender struct {
	ch      dgram.Channel
	monitor *monitor.Recorder
	log     *slog.Logger

	total             int
	fastRetransmitGap int
	windowHint        int

	queue  *packetQueue
	inFlight *ackBuffer
	rtt    *rttEstimator
	window *windowController

	state atomic.Int32
	stop  atomic.Bool

	retransmits atomic.Int64
	overhead    atomic.Int64
	goodput     atomic.Int64
}

// New constructs a Sender ready to Run.
func New(p Params) *Sender {
	gap := p.FastRetransmitGap
	if gap <= 0 {
		gap = 2
	}
	factor := p.CongThreshMaxFactor
	if factor <= 0 {
		factor = defaultCongThreshMaxFactor
	}
	log := p.Logger
	if log == nil {
		log = slog.Default()
	}

	rtt := newRTTEstimator(p.MaxPacketSize, p.LinkBandwidth, p.PropDelay)
	rttEst, _ := rtt.get()
	ppbw := perPacketBandwidthDelay(p.MaxPacketSize, p.LinkBandwidth).Seconds()

	return &Sender{
		ch:                p.Channel,
		monitor:           p.Monitor,
		log:               log,
		total:             p.Total,
		fastRetransmitGap: gap,
		windowHint:        p.ConfiguredWindow,
		queue:             newPacketQueue(p.Packets),
		inFlight:          newAckBuffer(),
		rtt:               rtt,
		window:            newWindowController(rttEst.Seconds(), ppbw, factor, p.ConfiguredWindow),
	}
}

// State reports the sender's current lifecycle state.
func (s *Sender) State() State {
	return State(s.state.Load())
}

// Stop requests a clean shutdown; both loops exit at their next suspension
// boundary. Idempotent.
func (s *Sender) Stop() {
	s.stop.Store(true)
	s.inFlight.wake()
}

func (s *Sender) stopped() bool {
	return s.stop.Load()
}

// Run drives the transfer to FINISHED (or until ctx is cancelled / a fatal
// IOFailure occurs), running the transmit and ACK/timer loops concurrently
// per spec.md §5.
func (s *Sender) Run(ctx context.Context) error {
	if s.monitor != nil {
		var totalBytes int64
		for _, p := range s.queue.items {
			totalBytes += int64(len(p.Payload))
		}
		s.monitor.TransferStart(s.total, totalBytes)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.transmitLoop() })
	g.Go(func() error { return s.ackLoop() })

	// Stop both loops on ctx cancellation or a loop failure; the watcher is
	// released once both loops have returned.
	loopsDone := make(chan struct{})
	go func() {
		select {
		case <-gctx.Done():
			s.Stop()
		case <-loopsDone:
		}
	}()

	err := g.Wait()
	close(loopsDone)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("sender: cancelled before completion: %w", err)
	}

	s.state.Store(int32(Finished))
	// Best-effort per spec.md §6: its loss or absence must never block this
	// side's own FINISHED transition, so the send error is ignored.
	_ = s.ch.Send(wire.EndOfTransferSignal)
	if s.monitor != nil {
		rttEst, _ := s.rtt.get()
		s.monitor.TransferEnd(s.goodput.Load(), s.overhead.Load(), int(s.retransmits.Load()), s.window.get(), rttEst)
	}
	return nil
}

// transmitLoop implements spec.md §4.5.
func (s *Sender) transmitLoop() error {
	for {
		if s.queue.empty() {
			break
		}
		s.inFlight.waitForSlot(s.window.get(), s.stopped)
		if s.stopped() {
			return nil
		}
		pkt, ok := s.queue.pop()
		if !ok {
			break
		}
		if err := s.transmit(pkt); err != nil {
			return fmt.Errorf("sender: transmit loop: %w", err)
		}
		s.inFlight.push(pkt)
	}

	s.state.Store(int32(Draining))
	s.inFlight.waitEmpty(s.stopped)
	return nil
}

func (s *Sender) transmit(pkt wire.Packet) error {
	encoded := wire.Encode(pkt)
	s.overhead.Add(int64(len(encoded) - len(pkt.Payload)))
	if err := s.ch.Send(encoded); err != nil {
		return fmt.Errorf("send packet %d: %w", pkt.Seq, err)
	}
	return nil
}

// ackLoop implements spec.md §4.6.
func (s *Sender) ackLoop() error {
	ackedRemaining := make(map[int]struct{}, s.total)
	for i := 0; i < s.total; i++ {
		ackedRemaining[i] = struct{}{}
	}
	fastResent := make(map[int]struct{})
	lastWindowUpdate := time.Now()

	for len(ackedRemaining) > 0 {
		if s.stopped() {
			return nil
		}

		rttEst, rto := s.rtt.get()
		if time.Since(lastWindowUpdate) > rttEst {
			s.window.update(rttEst.Seconds(), false)
			lastWindowUpdate = time.Now()
			if s.monitor != nil {
				s.monitor.RecordWindow(s.window.get(), rttEst)
			}
		}

		received, err := s.drainAcks(ackedRemaining, fastResent, rto)
		if err != nil {
			return fmt.Errorf("sender: ack loop: %w", err)
		}

		if !received {
			if err := s.maybeTimeoutRetransmit(rto); err != nil {
				return fmt.Errorf("sender: ack loop: %w", err)
			}
		}
	}
	return nil
}

const ackDrainPollTimeout = time.Millisecond

func (s *Sender) drainAcks(ackedRemaining map[int]struct{}, fastResent map[int]struct{}, rto time.Duration) (receivedAny bool, err error) {
	timeout := rto
	for {
		payload, recvErr := s.ch.Recv(64, timeout)
		timeout = ackDrainPollTimeout // subsequent polls in this burst are near-immediate
		if recvErr != nil {
			if errors.Is(recvErr, dgram.ErrTimeout) {
				return receivedAny, nil
			}
			return receivedAny, fmt.Errorf("recv ack: %w", recvErr)
		}
		receivedAny = true

		if wire.IsEndOfTransfer(payload) {
			s.log.Debug("peer signaled end of transfer")
			continue
		}

		ackSeq, perr := strconv.Atoi(string(payload))
		if perr != nil {
			s.log.Debug("malformed ack discarded", "payload", string(payload))
			continue
		}

		if _, pending := ackedRemaining[ackSeq]; pending {
			if pkt, existed := s.inFlight.remove(ackSeq); existed {
				delete(ackedRemaining, ackSeq)
				s.rtt.update(pkt.Age())
				s.goodput.Add(int64(len(pkt.Payload)))
			}
		}

		if err := s.maybeFastRetransmit(ackSeq, fastResent); err != nil {
			return receivedAny, err
		}
	}
}

func (s *Sender) maybeFastRetransmit(ackSeq int, fastResent map[int]struct{}) error {
	oldest, ok := s.inFlight.peekOldest()
	if !ok {
		return nil
	}
	if _, already := fastResent[oldest.Seq]; already {
		return nil
	}
	if ackSeq-oldest.Seq <= s.fastRetransmitGap {
		return nil
	}
	if err := s.transmit(oldest); err != nil {
		return fmt.Errorf("fast retransmit %d: %w", oldest.Seq, err)
	}
	fastResent[oldest.Seq] = struct{}{}
	s.retransmits.Add(1)
	s.inFlight.cycle()
	return nil
}

func (s *Sender) maybeTimeoutRetransmit(rto time.Duration) error {
	oldest, ok := s.inFlight.peekOldest()
	if !ok {
		return nil
	}
	if oldest.Age() <= rto {
		return nil
	}
	if err := s.transmit(oldest); err != nil {
		return fmt.Errorf("timeout retransmit %d: %w", oldest.Seq, err)
	}
	s.retransmits.Add(1)
	s.inFlight.cycle()
	return nil
}

// Command sender drives one outbound reliable-transfer session from a YAML
// config file: segment the source file, open a UDP endpoint to the
// receiver, and run the sender state machine to completion.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/tinyrange/reldgram/internal/capture"
	"github.com/tinyrange/reldgram/internal/config"
	"github.com/tinyrange/reldgram/internal/dgram"
	"github.com/tinyrange/reldgram/internal/monitor"
	"github.com/tinyrange/reldgram/internal/segment"
	"github.com/tinyrange/reldgram/internal/sender"
	"github.com/tinyrange/reldgram/internal/wire"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "sender: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var capturePath string
	flag.StringVar(&capturePath, "capture", "", "write a pcap capture of every datagram to this path")
	flag.Parse()

	if flag.NArg() != 1 {
		return errors.New("usage: sender [-capture path] <config.yaml>")
	}
	cfg, err := config.Load(flag.Arg(0))
	if err != nil {
		return err
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var opts []dgram.Option
	if cfg.Capture.Enabled || capturePath != "" {
		path := cfg.Capture.Path
		if capturePath != "" {
			path = capturePath
		}
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("sender: open capture file: %w", err)
		}
		defer f.Close()
		rec, err := capture.NewRecorder(f)
		if err != nil {
			return fmt.Errorf("sender: start capture: %w", err)
		}
		opts = append(opts, dgram.WithCapture(rec))
	}

	if cfg.Network.SocketBufferBytes > 0 {
		dgram.SetSocketBufferSize(cfg.Network.SocketBufferBytes)
	}

	ep, err := dgram.Listen(cfg.LocalAddr, cfg.RemoteAddr, cfg.Sender.ID, cfg.Receiver.ID, opts...)
	if err != nil {
		return fmt.Errorf("sender: listen: %w", err)
	}
	defer ep.Close()

	info, err := os.Stat(cfg.SourceFile)
	if err != nil {
		return fmt.Errorf("sender: stat source file: %w", err)
	}
	// total's digit width barely affects the header prefix length; size
	// itself is always a safe upper bound on total, so use it to size the
	// payload conservatively before the real total is known.
	maxPayload := wire.MaxPayload(cfg.MaxPacketSize, 8, maxInt(int(info.Size()), 1))

	packets, total, err := loadPackets(cfg.SourceFile, maxPayload)
	if err != nil {
		return err
	}

	var rec *monitor.Recorder
	if cfg.Monitor.ListenAddr != "" {
		rec = monitor.New("sender")
		go func() {
			if err := rec.Serve(cfg.Monitor.ListenAddr); err != nil {
				log.Warn("monitor server stopped", "error", err)
			}
		}()
	}

	var bar *progressbar.ProgressBar
	if term.IsTerminal(int(os.Stdout.Fd())) {
		bar = progressbar.DefaultBytes(info.Size(), "sending")
		defer bar.Finish()
	}

	s := sender.New(sender.Params{
		Channel:             ep,
		Packets:             packets,
		Total:               total,
		MaxPacketSize:       cfg.MaxPacketSize,
		LinkBandwidth:       cfg.LinkBandwidth,
		PropDelay:           cfg.PropDelay(),
		ConfiguredWindow:    cfg.Sender.WindowSize,
		FastRetransmitGap:   cfg.Sender.FastRetransmitGap,
		CongThreshMaxFactor: cfg.Sender.CongThreshMaxFactor,
		Monitor:             rec,
		Logger:              log,
	})

	if err := s.Run(ctx); err != nil {
		return fmt.Errorf("sender: transfer failed: %w", err)
	}
	if bar != nil {
		_ = bar.Set64(info.Size())
	}
	log.Info("transfer complete", "total_packets", total, "bytes", info.Size())
	return nil
}

// loadPackets segments the whole source file up front so the sender's
// packet queue (spec.md §4.5) can be built from a plain slice; a streaming
// segmenter (internal/segment.Segmenter) is available for callers that
// don't need the full set resident before transfer starts.
func loadPackets(path string, maxPayload int) ([]wire.Packet, int, error) {
	seg, err := segment.Open(path, maxPayload)
	if err != nil {
		return nil, 0, fmt.Errorf("sender: %w", err)
	}
	defer seg.Close()

	total := seg.Total()
	packets := make([]wire.Packet, 0, total)
	for {
		p, err := seg.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("sender: %w", err)
		}
		packets = append(packets, p)
	}
	return packets, total, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

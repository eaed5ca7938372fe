// Command receiver drives one inbound reliable-transfer session from a YAML
// config file: open a UDP endpoint to the sender, reassemble the transfer
// to the configured output path, and drain trailing retransmissions.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/tinyrange/reldgram/internal/capture"
	"github.com/tinyrange/reldgram/internal/config"
	"github.com/tinyrange/reldgram/internal/dgram"
	"github.com/tinyrange/reldgram/internal/monitor"
	"github.com/tinyrange/reldgram/internal/receiver"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "receiver: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var capturePath string
	flag.StringVar(&capturePath, "capture", "", "write a pcap capture of every datagram to this path")
	flag.Parse()

	if flag.NArg() != 1 {
		return errors.New("usage: receiver [-capture path] <config.yaml>")
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
			return fmt.Errorf("receiver: open capture file: %w", err)
		}
		defer f.Close()
		rec, err := capture.NewRecorder(f)
		if err != nil {
			return fmt.Errorf("receiver: start capture: %w", err)
		}
		opts = append(opts, dgram.WithCapture(rec))
	}

	if cfg.Network.SocketBufferBytes > 0 {
		dgram.SetSocketBufferSize(cfg.Network.SocketBufferBytes)
	}

	ep, err := dgram.Listen(cfg.LocalAddr, cfg.RemoteAddr, cfg.Receiver.ID, cfg.Sender.ID, opts...)
	if err != nil {
		return fmt.Errorf("receiver: listen: %w", err)
	}
	defer ep.Close()

	var rec *monitor.Recorder
	if cfg.Monitor.ListenAddr != "" {
		rec = monitor.New("receiver")
		go func() {
			if err := rec.Serve(cfg.Monitor.ListenAddr); err != nil {
				log.Warn("monitor server stopped", "error", err)
			}
		}()
	}

	r, err := receiver.New(receiver.Params{
		Channel:       ep,
		WriteLocation: cfg.Receiver.WriteLocation,
		MaxPacketSize: cfg.MaxPacketSize,
		WindowHint:    cfg.Sender.WindowSize,
		Monitor:       rec,
		Logger:        log,
	})
	if err != nil {
		return fmt.Errorf("receiver: %w", err)
	}

	if err := r.Run(ctx); err != nil {
		return fmt.Errorf("receiver: transfer failed: %w", err)
	}
	log.Info("transfer complete", "write_location", cfg.Receiver.WriteLocation)
	return nil
}

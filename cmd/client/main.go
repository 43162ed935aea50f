package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/codewhisper/voice-capture/internal/audio"
	"github.com/codewhisper/voice-capture/internal/backend"
	"github.com/codewhisper/voice-capture/internal/config"
	"github.com/codewhisper/voice-capture/internal/observability"
	"github.com/codewhisper/voice-capture/internal/session"
	"github.com/codewhisper/voice-capture/internal/vad"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Load configuration from environment, then apply flag overrides
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}
	cfg.RegisterFlags(flag.CommandLine)
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		return 1
	}

	// Initialize structured logger on stderr; stdout carries the event stream
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.SessionLogger(observability.NewSessionID())

	logger.Info().
		Str("protocol", cfg.Protocol).
		Str("endpoint", cfg.Endpoint).
		Str("model", cfg.Model).
		Int("sample_rate", cfg.SampleRate).
		Msg("Voice capture client starting")

	if cfg.MetricsAddr != "" {
		observability.ServeMetrics(cfg.MetricsAddr, logger)
	}

	b, err := backend.New(cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create backend")
		return 1
	}

	source := audio.NewProcessSource(audio.ProcessConfig{
		Command:     captureCommand(cfg),
		SampleRate:  cfg.SampleRate,
		HopSize:     cfg.HopSize,
		BufferSize:  cfg.AudioBufferSize,
		ReadTimeout: cfg.FrameReadTimeout(),
		StopGrace:   cfg.StopGrace(),
	}, logger)

	gate := vad.NewGate(&vad.EnergyClassifier{}, vad.GateConfig{
		Threshold:        cfg.VADThreshold,
		MaxSilenceFrames: cfg.MaxSilenceFrames(),
		MinRecording:     cfg.MinRecordingDuration(),
	})

	control := session.NewControlChannel(os.Stdin, logger)
	sink := session.NewSink(os.Stdout)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	controller := session.NewController(cfg, source, gate, b, control, sink, logger)
	if err := controller.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info().Msg("Session cancelled")
		}
		return 1
	}
	return 0
}

// captureCommand splits a configured override command into argv; empty keeps
// the arecord default.
func captureCommand(cfg *config.Config) []string {
	if cfg.CaptureCommand == "" {
		return nil
	}
	return strings.Fields(cfg.CaptureCommand)
}

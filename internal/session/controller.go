package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/codewhisper/voice-capture/internal/audio"
	"github.com/codewhisper/voice-capture/internal/backend"
	"github.com/codewhisper/voice-capture/internal/config"
	"github.com/codewhisper/voice-capture/internal/observability"
	"github.com/codewhisper/voice-capture/internal/vad"
)

// stopReason records why the capture phase ended.
type stopReason int

const (
	stopVAD stopReason = iota
	stopCancelled
	stopSourceEnded
	stopConnectionLost
)

func (r stopReason) String() string {
	switch r {
	case stopVAD:
		return "vad"
	case stopCancelled:
		return "cancelled"
	case stopSourceEnded:
		return "source_ended"
	case stopConnectionLost:
		return "connection_lost"
	default:
		return "unknown"
	}
}

type captureResult struct {
	reason stopReason
	err    error
}

// Controller drives one capture session through its lifecycle: connect and
// handshake, stream frames through the VAD gate, drain late results after
// capture stops, and emit exactly one terminal event (final or error).
type Controller struct {
	cfg     *config.Config
	logger  zerolog.Logger
	source  audio.Source
	gate    *vad.Gate
	backend backend.Backend
	control *ControlChannel
	sink    *Sink
	metrics *observability.SessionMetrics

	mu     sync.Mutex
	latest string
}

// NewController wires a session together. control may be nil when no command
// stream is attached.
func NewController(
	cfg *config.Config,
	source audio.Source,
	gate *vad.Gate,
	b backend.Backend,
	control *ControlChannel,
	sink *Sink,
	logger zerolog.Logger,
) *Controller {
	return &Controller{
		cfg:     cfg,
		logger:  logger,
		source:  source,
		gate:    gate,
		backend: b,
		control: control,
		sink:    sink,
		metrics: observability.NewSessionMetrics(),
	}
}

// Run executes the session and blocks until it reaches a terminal state.
// Returns nil when a final transcript was emitted, including the degraded
// case where the backend died after capture began; returns the error when
// the session failed before producing a usable result.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.backend.Connect(ctx); err != nil {
		return c.fail(c.cancellationAware(ctx, err))
	}
	defer c.backend.Close()
	c.emit(connectedEvent())

	if err := c.backend.Handshake(ctx); err != nil {
		return c.fail(c.cancellationAware(ctx, err))
	}

	if err := c.source.Start(ctx); err != nil {
		return c.fail(fmt.Errorf("audio source: %w", err))
	}
	defer c.source.Stop()

	c.emit(readyEvent())
	c.logger.Info().Msg("session streaming")

	streamCtx, cancelStream := context.WithCancel(ctx)
	defer cancelStream()

	// The receive loop outlives the capture phase: after capture stops it
	// keeps running through the drain window to collect late results, so it
	// gets a context independent of streamCtx.
	recvCtx, cancelRecv := context.WithCancel(context.Background())
	defer cancelRecv()
	recvDone := make(chan error, 1)
	go func() { recvDone <- c.backend.Receive(recvCtx, c.onTranscript) }()

	if c.control != nil {
		c.control.Start(streamCtx)
	}

	captureDone := make(chan captureResult, 1)
	go func() { captureDone <- c.capture(streamCtx) }()

	var res captureResult
	var recvErr error
	recvEnded := false
	ctxDone := ctx.Done()

streaming:
	for {
		select {
		case res = <-captureDone:
			break streaming
		case recvErr = <-recvDone:
			// The backend finished or failed while audio was still
			// flowing; either way there is nothing left to stream to.
			recvEnded = true
			cancelStream()
		case <-c.stops():
			c.logger.Info().Msg("stopping on control command")
			cancelStream()
		case <-ctxDone:
			// One-shot: the channel stays closed, so stop selecting on
			// it while captureDone is still pending.
			ctxDone = nil
			cancelStream()
		}
	}

	if res.err != nil && !errors.Is(res.err, backend.ErrConnectionClosed) {
		return c.fail(res.err)
	}

	// Only a silence endpoint announces itself; a control stop, producer
	// end, or cancellation goes straight to the drain.
	if res.reason == stopVAD {
		c.emit(stoppedEvent())
	}
	c.logger.Info().Str("reason", res.reason.String()).Msg("capture stopped, draining")

	_ = c.source.Stop()
	_ = c.backend.EndOfStream()

	if !recvEnded {
		select {
		case recvErr = <-recvDone:
		case <-time.After(c.cfg.DrainTimeout()):
			c.logger.Warn().
				Dur("timeout", c.cfg.DrainTimeout()).
				Msg("drain timed out, finalizing with latest transcript")
			cancelRecv()
			recvErr = <-recvDone
		}
	}

	if recvErr != nil {
		c.metrics.RecordBackendError(backend.Classify(recvErr))
		if backend.IsTerminal(recvErr) {
			return c.fail(recvErr)
		}
		c.logger.Warn().Err(recvErr).Msg("stream ended abnormally, finalizing with latest transcript")
	}

	c.mu.Lock()
	text := c.latest
	c.mu.Unlock()

	c.emit(finalEvent(text))
	c.metrics.RecordTranscript("final")
	c.metrics.RecordEnd("final")
	c.logger.Info().Int("chars", len(text)).Msg("session complete")
	return nil
}

// capture pulls frames from the source, runs the VAD gate, and streams each
// frame to the backend until an endpoint is reached or the stream dies.
func (c *Controller) capture(ctx context.Context) captureResult {
	frames, voiceFrames := 0, 0
	for {
		frame, err := c.source.ReadFrame(ctx)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				c.logger.Info().Msg("audio source ended")
				return captureResult{reason: stopSourceEnded}
			case ctx.Err() != nil:
				return captureResult{reason: stopCancelled}
			default:
				return captureResult{err: fmt.Errorf("read audio frame: %w", err)}
			}
		}

		isVoice, shouldStop := c.gate.Process(frame)
		c.metrics.RecordFrame(isVoice)
		frames++
		if isVoice {
			voiceFrames++
		}
		if frames%100 == 0 {
			c.logger.Debug().Int("frames", frames).Int("voice_frames", voiceFrames).Msg("capture progress")
		}

		if err := c.backend.Send(frame); err != nil {
			c.logger.Warn().Err(err).Msg("send failed, ending capture")
			return captureResult{reason: stopConnectionLost, err: err}
		}
		c.metrics.RecordAudioBytes(len(frame) * 2)

		if shouldStop {
			c.logger.Info().Msg("silence endpoint reached")
			return captureResult{reason: stopVAD}
		}
	}
}

// onTranscript handles transcript text from the backend receive loop. The
// latest text wins; repeats the backend filter missed are dropped here too.
func (c *Controller) onTranscript(text string) {
	c.mu.Lock()
	if text == c.latest {
		c.mu.Unlock()
		return
	}
	c.latest = text
	c.mu.Unlock()

	c.metrics.RecordTranscript("partial")
	c.emit(partialEvent(text))
}

func (c *Controller) stops() <-chan struct{} {
	if c.control == nil {
		return nil
	}
	return c.control.Stops()
}

// cancellationAware surfaces an external cancellation as such instead of
// letting it masquerade as a backend failure, so callers can tell a killed
// session from an unreachable service.
func (c *Controller) cancellationAware(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("session cancelled: %w", ctx.Err())
	}
	return err
}

// fail tears the session down and emits the error terminal event.
func (c *Controller) fail(err error) error {
	c.logger.Error().Err(err).Str("type", backend.Classify(err)).Msg("session failed")
	c.metrics.RecordBackendError(backend.Classify(err))
	_ = c.source.Stop()
	_ = c.backend.Close()
	c.emit(errorEvent(err.Error()))
	c.metrics.RecordEnd("error")
	return err
}

func (c *Controller) emit(e Event) {
	if err := c.sink.Emit(e); err != nil {
		c.logger.Error().Err(err).Str("event", e.Type).Msg("failed to write event")
	}
}

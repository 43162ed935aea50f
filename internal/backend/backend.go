// Package backend abstracts the wire protocols for streaming captured audio
// to a transcription service. Four implementations share one interface: a
// single-shot multipart upload, a raw PCM WebSocket, the WhisperLive
// handshake-duplex dialect, and the Deepgram live SDK. The session controller
// never branches on protocol type.
package backend

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/codewhisper/voice-capture/internal/config"
)

// Backend is one transcription wire protocol. Lifecycle: Connect, Handshake,
// then Send and Receive run concurrently until EndOfStream and Close.
type Backend interface {
	// Connect establishes the transport. Returns ConnectError when the
	// remote is unreachable or refuses.
	Connect(ctx context.Context) error

	// Handshake performs the protocol's session setup and waits for
	// readiness, bounded by the handshake timeout. A no-op for protocols
	// without a setup exchange.
	Handshake(ctx context.Context) error

	// Send transmits one frame of audio, converting the sample encoding if
	// the protocol requires it. Frames must be sent in generation order.
	Send(frame []int16) error

	// Receive delivers inbound transcript text to emit until the
	// connection closes, the peer signals completion, or ctx is cancelled.
	// Empty and consecutively repeated text is filtered before emit.
	// For the single-shot batch protocol this blocks until EndOfStream,
	// performs the one upload, and emits its single response.
	Receive(ctx context.Context, emit func(text string)) error

	// EndOfStream signals that no more audio will be sent. Safe to call
	// after the connection has already closed.
	EndOfStream() error

	// Close releases all resources. Idempotent.
	Close() error
}

// New selects a backend implementation from the configured protocol.
func New(cfg *config.Config, logger zerolog.Logger) (Backend, error) {
	switch cfg.Protocol {
	case config.ProtocolBatch:
		return newBatch(cfg, logger), nil
	case config.ProtocolWebSocket:
		return newSocket(cfg, logger), nil
	case config.ProtocolWhisperLive:
		return newWhisperLive(cfg, logger), nil
	case config.ProtocolDeepgram:
		return newDeepgram(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown backend protocol %q", cfg.Protocol)
	}
}

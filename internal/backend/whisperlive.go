package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/codewhisper/voice-capture/internal/audio"
	"github.com/codewhisper/voice-capture/internal/config"
)

// WhisperLive server protocol strings.
const (
	wlServerReady = "SERVER_READY"
	wlDisconnect  = "DISCONNECT"
	wlEndOfAudio  = "END_OF_AUDIO"
	wlStatusError = "ERROR"
	wlStatusWait  = "WAIT"
)

// WhisperLive speaks the WhisperLive duplex dialect: a JSON handshake
// identifying the session, normalized float32 audio frames, and segment
// arrays back. The server addresses each client by the uid sent in the
// handshake; messages for other uids are ignored.
type WhisperLive struct {
	cfg    *config.Config
	logger zerolog.Logger
	url    string
	uid    string

	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
}

type wlHandshake struct {
	UID      string  `json:"uid"`
	Language *string `json:"language"` // null requests auto-detection
	Task     string  `json:"task"`
	Model    string  `json:"model"`
	UseVAD   bool    `json:"use_vad"`
}

// wlServerMessage covers every inbound shape. Message is raw because the
// server sends both strings ("SERVER_READY", "DISCONNECT") and numbers
// (estimated wait minutes on WAIT).
type wlServerMessage struct {
	UID      string          `json:"uid"`
	Status   string          `json:"status"`
	Message  json.RawMessage `json:"message"`
	Segments []wlSegment     `json:"segments"`
}

type wlSegment struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Text  string `json:"text"`
}

func newWhisperLive(cfg *config.Config, logger zerolog.Logger) *WhisperLive {
	return &WhisperLive{
		cfg:    cfg,
		logger: logger.With().Str("backend", config.ProtocolWhisperLive).Logger(),
		url:    WSURL(cfg.Endpoint, true),
		uid:    uuid.NewString(),
	}
}

func (w *WhisperLive) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: w.cfg.HandshakeTimeout()}
	conn, _, err := dialer.DialContext(ctx, w.url, nil)
	if err != nil {
		return &ConnectError{Err: fmt.Errorf("dial %s: %w", w.url, err)}
	}
	w.conn = conn
	w.logger.Debug().Str("url", w.url).Str("uid", w.uid).Msg("whisperlive connected")
	return nil
}

// Handshake sends the session options and waits for SERVER_READY, bounded by
// the handshake timeout. ERROR and WAIT responses abort the session.
func (w *WhisperLive) Handshake(ctx context.Context) error {
	hs := wlHandshake{
		UID:    w.uid,
		Task:   "transcribe",
		Model:  w.cfg.Model,
		UseVAD: w.cfg.UseServerVAD,
	}
	if w.cfg.Language != "" {
		lang := w.cfg.Language
		hs.Language = &lang
	}

	w.writeMu.Lock()
	err := w.conn.WriteJSON(hs)
	w.writeMu.Unlock()
	if err != nil {
		return &ProtocolError{Err: fmt.Errorf("send handshake: %w", err)}
	}

	deadline := time.Now().Add(w.cfg.HandshakeTimeout())
	_ = w.conn.SetReadDeadline(deadline)
	defer w.conn.SetReadDeadline(time.Time{})

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		_, data, err := w.conn.ReadMessage()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return &ProtocolError{Err: fmt.Errorf("no server ready within %v", w.cfg.HandshakeTimeout())}
			}
			return &ProtocolError{Err: fmt.Errorf("read handshake response: %w", err)}
		}

		var msg wlServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.UID != "" && msg.UID != w.uid {
			continue
		}

		text := rawMessageText(msg.Message)
		switch {
		case msg.Status == wlStatusError:
			return &BackendError{Message: text}
		case msg.Status == wlStatusWait:
			return &BusyError{Message: fmt.Sprintf("server busy, estimated wait %s minutes", text)}
		case text == wlServerReady:
			w.logger.Debug().Msg("server ready")
			return nil
		}
	}
}

// Send converts the frame to normalized float32 samples and streams it.
func (w *WhisperLive) Send(frame []int16) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	if w.conn == nil {
		return ErrConnectionClosed
	}
	if err := w.conn.WriteMessage(websocket.BinaryMessage, audio.Int16ToFloat32Bytes(frame)); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionClosed, err)
	}
	return nil
}

// Receive reads segment updates for this session's uid until the server
// sends DISCONNECT, the connection closes, or ctx is cancelled. Segment
// texts are trimmed and joined with single spaces before emit.
func (w *WhisperLive) Receive(ctx context.Context, emit func(string)) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = w.conn.SetReadDeadline(time.Now())
		case <-stop:
		}
	}()

	var f textFilter
	for {
		_, data, err := w.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
				errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("%w: %v", ErrConnectionClosed, err)
		}

		var msg wlServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			w.logger.Warn().Err(err).Msg("ignoring malformed server message")
			continue
		}
		if msg.UID != "" && msg.UID != w.uid {
			continue
		}
		if rawMessageText(msg.Message) == wlDisconnect {
			w.logger.Debug().Msg("server requested disconnect")
			return nil
		}
		if len(msg.Segments) == 0 {
			continue
		}

		parts := make([]string, 0, len(msg.Segments))
		for _, seg := range msg.Segments {
			if t := strings.TrimSpace(seg.Text); t != "" {
				parts = append(parts, t)
			}
		}
		f.emit(strings.Join(parts, " "), emit)
	}
}

// EndOfStream sends the literal end-of-audio marker. The server keeps the
// connection open while it finishes transcribing buffered audio.
func (w *WhisperLive) EndOfStream() error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	if w.conn == nil {
		return nil
	}
	// The connection may already be gone; that is an acceptable end state.
	_ = w.conn.WriteMessage(websocket.TextMessage, []byte(wlEndOfAudio))
	return nil
}

func (w *WhisperLive) Close() error {
	w.closeOnce.Do(func() {
		if w.conn != nil {
			_ = w.conn.Close()
		}
	})
	return nil
}

// rawMessageText renders the polymorphic message field as text: quoted
// strings are unwrapped, anything else (numbers, null) comes back verbatim.
func rawMessageText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

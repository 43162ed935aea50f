package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/codewhisper/voice-capture/internal/audio"
	"github.com/codewhisper/voice-capture/internal/config"
)

// Socket streams raw little-endian 16-bit PCM over a WebSocket and reads
// JSON transcript messages back. The server needs no session setup: audio
// may flow as soon as the dial completes.
type Socket struct {
	cfg    *config.Config
	logger zerolog.Logger
	url    string

	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
}

type socketMessage struct {
	Text string `json:"text"`
}

func newSocket(cfg *config.Config, logger zerolog.Logger) *Socket {
	return &Socket{
		cfg:    cfg,
		logger: logger.With().Str("backend", config.ProtocolWebSocket).Logger(),
		url:    WSURL(cfg.Endpoint, false),
	}
}

func (s *Socket) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: s.cfg.HandshakeTimeout()}
	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return &ConnectError{Err: fmt.Errorf("dial %s: %w", s.url, err)}
	}
	s.conn = conn
	s.logger.Debug().Str("url", s.url).Msg("websocket connected")
	return nil
}

func (s *Socket) Handshake(ctx context.Context) error { return nil }

func (s *Socket) Send(frame []int16) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.conn == nil {
		return ErrConnectionClosed
	}
	if err := s.conn.WriteMessage(websocket.BinaryMessage, audio.Int16ToBytes(frame)); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionClosed, err)
	}
	return nil
}

// Receive reads transcript messages until the peer closes or ctx is
// cancelled. Cancellation is delivered by expiring the read deadline, which
// unblocks the pending read immediately.
func (s *Socket) Receive(ctx context.Context, emit func(string)) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = s.conn.SetReadDeadline(time.Now())
		case <-stop:
		}
	}()

	var f textFilter
	for {
		_, data, err := s.conn.ReadMessage()
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

		var msg socketMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Warn().Err(err).Msg("ignoring malformed transcript message")
			continue
		}
		f.emit(msg.Text, emit)
	}
}

// EndOfStream sends a close frame so the server flushes any pending results
// and closes the connection from its side.
func (s *Socket) EndOfStream() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.conn == nil {
		return nil
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	// A write failure here means the connection is already gone, which is
	// exactly the state EndOfStream wants to reach.
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return nil
}

func (s *Socket) Close() error {
	s.closeOnce.Do(func() {
		if s.conn != nil {
			_ = s.conn.Close()
		}
	})
	return nil
}

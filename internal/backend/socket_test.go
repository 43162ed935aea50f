package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/codewhisper/voice-capture/internal/config"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func socketConfig(endpoint string) *config.Config {
	return &config.Config{
		Endpoint:           endpoint,
		Protocol:           config.ProtocolWebSocket,
		Model:              "small",
		Language:           "en",
		SampleRate:         16000,
		HandshakeTimeoutMS: 2000,
	}
}

// wsServer runs handler on one upgraded connection and closes it afterwards.
func wsServer(t *testing.T, handler func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSocket_StreamsPCMAndFiltersTranscripts(t *testing.T) {
	frameLen := make(chan int, 1)
	srv := wsServer(t, func(conn *websocket.Conn) {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			t.Errorf("read frame: %v", err)
			return
		}
		if mt != websocket.BinaryMessage {
			t.Errorf("frame message type = %d, want binary", mt)
		}
		frameLen <- len(data)

		for _, text := range []string{"hi", "hi", "hi there"} {
			if err := conn.WriteJSON(socketMessage{Text: text}); err != nil {
				t.Errorf("write transcript: %v", err)
				return
			}
		}
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteMessage(websocket.CloseMessage, msg)
	})

	s := newSocket(socketConfig(srv.URL), zerolog.Nop())
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Close()
	if err := s.Handshake(context.Background()); err != nil {
		t.Fatalf("handshake: %v", err)
	}

	if err := s.Send(make([]int16, 256)); err != nil {
		t.Fatalf("send: %v", err)
	}
	select {
	case n := <-frameLen:
		if n != 512 {
			t.Errorf("frame payload is %d bytes, want 512 (256 16-bit samples)", n)
		}
	case <-time.After(time.Second):
		t.Fatal("server never received the audio frame")
	}

	var texts []string
	if err := s.Receive(context.Background(), func(text string) { texts = append(texts, text) }); err != nil {
		t.Fatalf("receive: %v", err)
	}
	want := []string{"hi", "hi there"}
	if !reflect.DeepEqual(texts, want) {
		t.Errorf("emitted %v, want %v", texts, want)
	}
}

func TestSocket_ConnectFailure(t *testing.T) {
	s := newSocket(socketConfig("ws://localhost:1"), zerolog.Nop())

	err := s.Connect(context.Background())
	var connectErr *ConnectError
	if !errors.As(err, &connectErr) {
		t.Fatalf("expected ConnectError, got %v", err)
	}
}

func TestSocket_CancelUnblocksReceive(t *testing.T) {
	srv := wsServer(t, func(conn *websocket.Conn) {
		// Hold the connection open without sending anything.
		_, _, _ = conn.ReadMessage()
	})

	s := newSocket(socketConfig(srv.URL), zerolog.Nop())
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Receive(ctx, func(string) {}) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("receive after cancel: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("receive did not return after context cancellation")
	}
}

func TestSocket_AbruptCloseReportsConnectionClosed(t *testing.T) {
	srv := wsServer(t, func(conn *websocket.Conn) {
		// Drop the TCP connection without a close handshake.
		_ = conn.UnderlyingConn().Close()
	})

	s := newSocket(socketConfig(srv.URL), zerolog.Nop())
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Close()

	err := s.Receive(context.Background(), func(string) {})
	if err != nil && !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("expected ErrConnectionClosed or clean end, got %v", err)
	}
}

func TestSocket_CloseIsIdempotent(t *testing.T) {
	srv := wsServer(t, func(conn *websocket.Conn) {
		_, _, _ = conn.ReadMessage()
	})

	s := newSocket(socketConfig(srv.URL), zerolog.Nop())
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("first close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
	if err := s.EndOfStream(); err != nil {
		t.Errorf("end of stream after close: %v", err)
	}
}

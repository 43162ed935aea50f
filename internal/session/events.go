// Package session runs one voice-capture session end to end: it pulls frames
// from the audio source, gates them through voice activity detection, streams
// them to a transcription backend, and reports progress as machine-readable
// JSON lines on a single writer (stdout in production). The host process
// consumes that stream; human-readable logging goes to stderr.
package session

import (
	"encoding/json"
	"io"
	"sync"
)

// Event types, in the order a successful session emits them.
const (
	EventConnected  = "connected"   // transport established
	EventReady      = "ready"       // handshake complete, capture running
	EventPartial    = "partial"     // interim transcript update
	EventVADStopped = "vad_stopped" // capture ended, draining results
	EventFinal      = "final"       // terminal: the session's transcript
	EventError      = "error"       // terminal: the session failed
)

// Event is one line of the session's machine-readable output stream. Fields
// are omitted when absent, never null; a final event always carries text,
// even when empty.
type Event struct {
	Type  string  `json:"type"`
	Text  *string `json:"text,omitempty"`
	Error *string `json:"error,omitempty"`
}

func connectedEvent() Event { return Event{Type: EventConnected} }
func readyEvent() Event     { return Event{Type: EventReady} }
func stoppedEvent() Event   { return Event{Type: EventVADStopped} }

func partialEvent(text string) Event {
	return Event{Type: EventPartial, Text: &text}
}

func finalEvent(text string) Event {
	return Event{Type: EventFinal, Text: &text}
}

func errorEvent(message string) Event {
	return Event{Type: EventError, Error: &message}
}

// Sink serializes events as JSON lines on a single writer. Safe for
// concurrent use: the capture path and the receive path both emit.
type Sink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewSink creates an event sink writing JSON lines to w.
func NewSink(w io.Writer) *Sink {
	return &Sink{enc: json.NewEncoder(w)}
}

// Emit writes one event as a single line.
func (s *Sink) Emit(e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(e)
}

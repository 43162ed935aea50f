package session

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestControlChannel_StopCommand(t *testing.T) {
	c := NewControlChannel(strings.NewReader("STOP\n"), zerolog.Nop())
	c.Start(context.Background())

	select {
	case <-c.Stops():
	case <-time.After(time.Second):
		t.Fatal("stop command was not delivered")
	}
}

func TestControlChannel_TrimsWhitespace(t *testing.T) {
	c := NewControlChannel(strings.NewReader("  STOP  \n"), zerolog.Nop())
	c.Start(context.Background())

	select {
	case <-c.Stops():
	case <-time.After(time.Second):
		t.Fatal("whitespace-padded stop command was not delivered")
	}
}

func TestControlChannel_IgnoresUnknownCommands(t *testing.T) {
	c := NewControlChannel(strings.NewReader("PAUSE\nstop\n\n"), zerolog.Nop())
	c.Start(context.Background())

	select {
	case <-c.Stops():
		t.Error("unknown commands must not trigger a stop")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestControlChannel_StopOnUnterminatedLine(t *testing.T) {
	c := NewControlChannel(strings.NewReader("STOP"), zerolog.Nop())
	c.Start(context.Background())

	select {
	case <-c.Stops():
	case <-time.After(time.Second):
		t.Fatal("stop command without a trailing newline was not delivered")
	}
}

func TestControlChannel_CancelStopsListener(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := NewControlChannel(r, zerolog.Nop())
	c.Start(ctx)

	// No input ever arrives; the bounded poll must still notice the
	// cancellation and release the goroutine.
	cancel()
	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("listener did not exit after cancellation")
	}
}

func TestControlChannel_StopOverPipe(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	c := NewControlChannel(r, zerolog.Nop())
	c.Start(context.Background())

	if _, err := w.WriteString("STOP\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case <-c.Stops():
	case <-time.After(time.Second):
		t.Fatal("stop command over a deadline-capable reader was not delivered")
	}
}

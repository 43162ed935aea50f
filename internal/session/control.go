package session

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// stopCommand is the only control verb. Matching is exact after whitespace
// trimming; anything else is logged and ignored.
const stopCommand = "STOP"

// controlPollInterval bounds each read attempt so the listener notices
// cancellation promptly even when no input ever arrives.
const controlPollInterval = 100 * time.Millisecond

type deadlineReader interface {
	SetReadDeadline(t time.Time) error
}

// ControlChannel watches a line-delimited command stream (stdin in
// production) so the host process can end capture without killing the
// client. Stop requests are delivered on a channel the controller selects on.
type ControlChannel struct {
	r      io.Reader
	logger zerolog.Logger
	stops  chan struct{}
	done   chan struct{}
}

// NewControlChannel creates a control listener over r.
func NewControlChannel(r io.Reader, logger zerolog.Logger) *ControlChannel {
	return &ControlChannel{
		r:      r,
		logger: logger,
		stops:  make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Start begins reading commands in a background goroutine. When r supports
// read deadlines (os.Stdin and pipes do), each read is bounded by a short
// poll interval and the goroutine exits promptly once ctx is cancelled; for
// plain readers it ends when the stream closes.
func (c *ControlChannel) Start(ctx context.Context) {
	go c.watch(ctx)
}

func (c *ControlChannel) watch(ctx context.Context) {
	defer close(c.done)

	dr, canPoll := c.r.(deadlineReader)
	buf := make([]byte, 256)
	var line []byte
	for ctx.Err() == nil {
		if canPoll {
			if err := dr.SetReadDeadline(time.Now().Add(controlPollInterval)); err != nil {
				canPoll = false
			}
		}

		n, err := c.r.Read(buf)
		for _, b := range buf[:n] {
			if b == '\n' {
				c.handleLine(string(line))
				line = line[:0]
			} else {
				line = append(line, b)
			}
		}
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			// Stream closed; a trailing unterminated line still counts.
			if len(line) > 0 {
				c.handleLine(string(line))
			}
			return
		}
	}
}

func (c *ControlChannel) handleLine(raw string) {
	line := strings.TrimSpace(raw)
	switch line {
	case "":
	case stopCommand:
		c.logger.Info().Msg("stop command received")
		select {
		case c.stops <- struct{}{}:
		default:
		}
	default:
		c.logger.Warn().Str("command", line).Msg("ignoring unknown control command")
	}
}

// Stops returns the channel that fires when a stop command arrives.
func (c *ControlChannel) Stops() <-chan struct{} {
	return c.stops
}

// Done returns a channel closed once the listener goroutine has exited.
func (c *ControlChannel) Done() <-chan struct{} {
	return c.done
}

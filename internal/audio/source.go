package audio

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// stallRetries is how many consecutive empty read windows ReadFrame tolerates
// before declaring the producer dead.
const stallRetries = 4

// Source delivers fixed-size PCM frames from a continuous audio producer.
type Source interface {
	// Start begins audio delivery.
	Start(ctx context.Context) error

	// ReadFrame blocks until exactly one hop of samples is available,
	// buffering partial producer writes internally. Returns io.EOF when the
	// producer ends or stalls past the allowed window.
	ReadFrame(ctx context.Context) ([]int16, error)

	// Stop terminates the producer: graceful signal, bounded grace period,
	// then force kill. Safe to call more than once.
	Stop() error
}

// ProcessConfig configures a subprocess-backed frame source.
type ProcessConfig struct {
	Command     []string // producer argv; empty selects the arecord default
	SampleRate  int
	HopSize     int // samples per frame
	BufferSize  int // frame-assembly ring buffer, bytes
	ReadTimeout time.Duration
	StopGrace   time.Duration
}

// ProcessSource captures raw PCM from an external recording process
// (arecord by default) and reassembles its byte stream into hop-sized frames.
type ProcessSource struct {
	cfg    ProcessConfig
	logger zerolog.Logger

	cmd    *exec.Cmd
	chunks chan []byte
	quit   chan struct{}
	ring   *RingBuffer
	frame  []byte

	stopOnce sync.Once
	warnOnce sync.Once
}

// NewProcessSource creates a frame source backed by an external producer.
func NewProcessSource(cfg ProcessConfig, logger zerolog.Logger) *ProcessSource {
	hopBytes := cfg.HopSize * 2
	size := cfg.BufferSize
	if size < hopBytes*2 {
		size = hopBytes * 2
	}
	return &ProcessSource{
		cfg:    cfg,
		logger: logger,
		chunks: make(chan []byte, 32),
		quit:   make(chan struct{}),
		ring:   NewRingBuffer(size + 1),
		frame:  make([]byte, hopBytes),
	}
}

func (s *ProcessSource) command() []string {
	if len(s.cfg.Command) > 0 {
		return s.cfg.Command
	}
	return []string{
		"arecord",
		"-f", "S16_LE",
		"-c", "1",
		"-r", fmt.Sprintf("%d", s.cfg.SampleRate),
		"-t", "raw",
		"-q",
		"-",
	}
}

// Start launches the recording process and begins pumping its output.
func (s *ProcessSource) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	argv := s.command()
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stderr = io.Discard

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("audio producer stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start audio producer %q: %w", argv[0], err)
	}

	s.cmd = cmd
	s.logger.Info().Str("command", argv[0]).Int("pid", cmd.Process.Pid).Msg("audio producer started")

	go s.pump(stdout)
	return nil
}

// pump copies producer output into the chunk channel until EOF or Stop.
func (s *ProcessSource) pump(r io.Reader) {
	defer close(s.chunks)

	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case s.chunks <- chunk:
			case <-s.quit:
				return
			}
		}
		if err != nil {
			if err != io.EOF {
				s.logger.Debug().Err(err).Msg("audio producer read ended")
			}
			return
		}
	}
}

// ReadFrame returns the next hop-sized frame. Every frame is exactly one hop:
// partial producer writes accumulate in the ring buffer, never yielding a
// short or merged frame.
func (s *ProcessSource) ReadFrame(ctx context.Context) ([]int16, error) {
	stalls := 0
	for {
		if s.ring.Available() >= len(s.frame) {
			s.ring.Read(s.frame)
			return BytesToInt16(s.frame), nil
		}

		select {
		case chunk, ok := <-s.chunks:
			if !ok {
				// Producer ended; a trailing partial frame is discarded.
				return nil, io.EOF
			}
			stalls = 0
			if n := s.ring.Write(chunk); n < len(chunk) {
				s.warnOnce.Do(func() {
					s.logger.Warn().Int("dropped", len(chunk)-n).Msg("frame buffer full, dropping audio")
				})
			}
		case <-time.After(s.cfg.ReadTimeout):
			stalls++
			if stalls >= stallRetries {
				s.logger.Warn().Msg("audio producer stalled, treating as end of stream")
				return nil, io.EOF
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Stop terminates the producer. The first call signals SIGTERM, waits up to
// the grace period, then kills. Subsequent calls are no-ops.
func (s *ProcessSource) Stop() error {
	s.stopOnce.Do(func() {
		close(s.quit)

		if s.cmd == nil || s.cmd.Process == nil {
			return
		}

		s.logger.Info().Msg("stopping audio producer")
		_ = s.cmd.Process.Signal(syscall.SIGTERM)

		done := make(chan error, 1)
		go func() { done <- s.cmd.Wait() }()

		select {
		case <-done:
		case <-time.After(s.cfg.StopGrace):
			s.logger.Warn().Msg("force killing audio producer")
			_ = s.cmd.Process.Kill()
			<-done
		}
	})
	return nil
}

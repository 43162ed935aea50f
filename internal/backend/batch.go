package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/codewhisper/voice-capture/internal/audio"
	"github.com/codewhisper/voice-capture/internal/config"
)

// Batch accumulates the whole utterance in memory and uploads it as a WAV
// file in one multipart POST once the stream ends. Connect and Handshake are
// no-ops: the HTTP request is the entire exchange.
type Batch struct {
	cfg    *config.Config
	logger zerolog.Logger
	url    string
	client *http.Client

	mu  sync.Mutex
	pcm bytes.Buffer

	eos     chan struct{}
	eosOnce sync.Once
}

func newBatch(cfg *config.Config, logger zerolog.Logger) *Batch {
	return &Batch{
		cfg:    cfg,
		logger: logger.With().Str("backend", config.ProtocolBatch).Logger(),
		url:    HTTPURL(cfg.Endpoint),
		client: &http.Client{Timeout: 60 * time.Second},
		eos:    make(chan struct{}),
	}
}

func (b *Batch) Connect(ctx context.Context) error {
	b.logger.Debug().Str("url", b.url).Msg("batch backend ready")
	return nil
}

func (b *Batch) Handshake(ctx context.Context) error { return nil }

// Send appends the frame to the in-memory recording.
func (b *Batch) Send(frame []int16) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pcm.Write(audio.Int16ToBytes(frame))
	return nil
}

// Receive blocks until EndOfStream, uploads the accumulated recording, and
// emits the single transcription response.
func (b *Batch) Receive(ctx context.Context, emit func(string)) error {
	select {
	case <-b.eos:
	case <-ctx.Done():
		return nil
	}

	b.mu.Lock()
	pcm := make([]byte, b.pcm.Len())
	copy(pcm, b.pcm.Bytes())
	b.mu.Unlock()

	if len(pcm) == 0 {
		b.logger.Warn().Msg("no audio captured, skipping upload")
		return nil
	}

	text, err := b.transcribe(ctx, pcm)
	if err != nil {
		return err
	}
	var f textFilter
	f.emit(text, emit)
	return nil
}

func (b *Batch) transcribe(ctx context.Context, pcm []byte) (string, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	part, err := form.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}
	if _, err := part.Write(audio.EncodeWAV(pcm, b.cfg.SampleRate, 1)); err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}
	_ = form.WriteField("model", b.cfg.Model)
	_ = form.WriteField("response_format", "json")
	if b.cfg.Language != "" {
		_ = form.WriteField("language", b.cfg.Language)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, &body)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	start := time.Now()
	resp, err := b.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &ConnectError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &BackendError{
			Message: fmt.Sprintf("server error: %d - %s", resp.StatusCode, bytes.TrimSpace(detail)),
		}
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", &BackendError{Message: fmt.Sprintf("malformed transcription response: %v", err)}
	}

	b.logger.Debug().
		Dur("elapsed", time.Since(start)).
		Int("audio_bytes", len(pcm)).
		Msg("batch transcription complete")
	return result.Text, nil
}

// EndOfStream releases the pending Receive so the upload can proceed.
func (b *Batch) EndOfStream() error {
	b.eosOnce.Do(func() { close(b.eos) })
	return nil
}

func (b *Batch) Close() error {
	b.eosOnce.Do(func() { close(b.eos) })
	return nil
}

package backend

import (
	"context"
	"errors"
	"fmt"
	"sync"

	websocketv1api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket"
	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/rs/zerolog"

	"github.com/codewhisper/voice-capture/internal/audio"
	"github.com/codewhisper/voice-capture/internal/config"
)

// Deepgram streams linear16 PCM through the Deepgram live SDK. The SDK owns
// the connection and delivers results through a callback handler; Receive
// bridges those callbacks back into the pull-style backend interface.
type Deepgram struct {
	cfg    *config.Config
	logger zerolog.Logger

	client *listenClient.WSCallback
	cancel context.CancelFunc

	texts    chan string
	done     chan struct{}
	doneOnce sync.Once
	errMu    sync.Mutex
	recvErr  error

	eosOnce   sync.Once
	closeOnce sync.Once
}

// dgCallback embeds the SDK's default handler and overrides only the
// messages the session cares about.
type dgCallback struct {
	*websocketv1api.DefaultCallbackHandler
	d *Deepgram
}

func (c *dgCallback) Message(mr *msginterfaces.MessageResponse) error {
	if mr == nil || len(mr.Channel.Alternatives) == 0 {
		return nil
	}
	text := mr.Channel.Alternatives[0].Transcript
	if text == "" {
		return nil
	}
	select {
	case c.d.texts <- text:
	default:
		c.d.logger.Warn().Msg("transcript channel full, dropping result")
	}
	return nil
}

func (c *dgCallback) Error(er *msginterfaces.ErrorResponse) error {
	c.d.finish(&BackendError{Message: fmt.Sprintf("deepgram error: %s", er.ErrMsg)})
	return nil
}

func (c *dgCallback) Close(cr *msginterfaces.CloseResponse) error {
	c.d.finish(nil)
	return nil
}

func newDeepgram(cfg *config.Config, logger zerolog.Logger) *Deepgram {
	return &Deepgram{
		cfg:    cfg,
		logger: logger.With().Str("backend", config.ProtocolDeepgram).Logger(),
		texts:  make(chan string, 100),
		done:   make(chan struct{}),
	}
}

func (d *Deepgram) Connect(ctx context.Context) error {
	// The SDK keeps the connection alive past the caller's connect scope,
	// so it gets its own lifetime context released by Close.
	sdkCtx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel

	tOptions := &interfaces.LiveTranscriptionOptions{
		Model:          d.cfg.Model,
		Language:       d.cfg.Language,
		Encoding:       "linear16",
		SampleRate:     d.cfg.SampleRate,
		Channels:       1,
		Punctuate:      true,
		InterimResults: true,
	}

	callback := &dgCallback{
		DefaultCallbackHandler: websocketv1api.NewDefaultCallbackHandler(),
		d:                      d,
	}

	client, err := listenClient.NewWSUsingCallback(sdkCtx, d.cfg.DeepgramAPIKey, nil, tOptions, callback)
	if err != nil {
		cancel()
		return &ConnectError{Err: fmt.Errorf("create deepgram client: %w", err)}
	}
	if !client.Connect() {
		cancel()
		return &ConnectError{Err: errors.New("deepgram connection failed")}
	}

	d.client = client
	d.logger.Debug().Str("model", d.cfg.Model).Msg("deepgram connected")
	return nil
}

func (d *Deepgram) Handshake(ctx context.Context) error { return nil }

func (d *Deepgram) Send(frame []int16) error {
	if d.client == nil {
		return ErrConnectionClosed
	}
	if _, err := d.client.Write(audio.Int16ToBytes(frame)); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionClosed, err)
	}
	return nil
}

// Receive forwards transcripts delivered by the SDK callbacks until the
// stream closes, an error arrives, or ctx is cancelled.
func (d *Deepgram) Receive(ctx context.Context, emit func(string)) error {
	var f textFilter
	for {
		select {
		case text := <-d.texts:
			f.emit(text, emit)
		case <-d.done:
			// Flush anything the callback queued before closing.
			for {
				select {
				case text := <-d.texts:
					f.emit(text, emit)
				default:
					d.errMu.Lock()
					err := d.recvErr
					d.errMu.Unlock()
					return err
				}
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// EndOfStream tells Deepgram no more audio is coming so it finalizes any
// interim results.
func (d *Deepgram) EndOfStream() error {
	d.eosOnce.Do(func() {
		if d.client != nil {
			d.client.Finish()
		}
	})
	return nil
}

func (d *Deepgram) Close() error {
	d.closeOnce.Do(func() {
		if d.client != nil {
			d.client.Stop()
		}
		if d.cancel != nil {
			d.cancel()
		}
		d.finish(nil)
	})
	return nil
}

// finish records the stream outcome once and releases Receive.
func (d *Deepgram) finish(err error) {
	d.doneOnce.Do(func() {
		d.errMu.Lock()
		d.recvErr = err
		d.errMu.Unlock()
		close(d.done)
	})
}

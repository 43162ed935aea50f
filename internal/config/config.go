package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Supported backend protocol selectors.
const (
	ProtocolBatch       = "batch"       // single-shot multipart WAV upload
	ProtocolWebSocket   = "websocket"   // raw 16-bit PCM over a WebSocket
	ProtocolWhisperLive = "whisperlive" // WhisperLive JSON handshake + float32 PCM
	ProtocolDeepgram    = "deepgram"    // Deepgram live streaming SDK
)

// Config holds all configuration for one capture session. Values load from the
// environment (with optional .env file) and may be overridden by command-line
// flags, since the host process passes per-invocation settings as flags.
type Config struct {
	// Backend configuration
	Endpoint string `envconfig:"ENDPOINT" default:"http://localhost:4445/v1/audio/transcriptions"`
	Protocol string `envconfig:"PROTOCOL" default:"batch"` // batch, websocket, whisperlive, deepgram
	Model    string `envconfig:"MODEL" default:"small"`
	Language string `envconfig:"LANGUAGE" default:"en"`

	// Deepgram API configuration (deepgram protocol only)
	DeepgramAPIKey string `envconfig:"DEEPGRAM_API_KEY" default:""`

	// Audio capture configuration
	SampleRate      int    `envconfig:"SAMPLE_RATE" default:"16000"`      // Hz
	HopSize         int    `envconfig:"HOP_SIZE" default:"256"`           // samples per VAD frame (16ms at 16kHz)
	CaptureCommand  string `envconfig:"CAPTURE_COMMAND" default:""`       // overrides arecord (testing)
	AudioBufferSize int    `envconfig:"AUDIO_BUFFER_SIZE" default:"8192"` // frame-assembly ring buffer bytes

	// Voice activity detection
	VADThreshold float64 `envconfig:"VAD_THRESHOLD" default:"0.5"`   // classifier score threshold
	VADSilence   float64 `envconfig:"VAD_SILENCE" default:"1.5"`     // trailing silence to stop, seconds
	MinRecording float64 `envconfig:"MIN_RECORDING" default:"1.0"`   // seconds before endpointing is honored
	UseServerVAD bool    `envconfig:"USE_SERVER_VAD" default:"true"` // whisperlive protocol only

	// Timeouts (milliseconds)
	HandshakeTimeoutMS int `envconfig:"HANDSHAKE_TIMEOUT_MS" default:"5000"` // duplex readiness wait
	DrainTimeoutMS     int `envconfig:"DRAIN_TIMEOUT_MS" default:"5000"`     // wait for final results
	FrameReadTimeoutMS int `envconfig:"FRAME_READ_TIMEOUT_MS" default:"500"` // per read attempt
	StopGraceMS        int `envconfig:"STOP_GRACE_MS" default:"2000"`        // SIGTERM grace before kill

	// Observability configuration
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty   bool   `envconfig:"LOG_PRETTY" default:"false"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:""` // e.g. ":9100"; empty disables
}

// Load reads configuration from environment variables, first attempting to
// load a .env file if one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// RegisterFlags binds the per-invocation settings to fs, defaulting each flag
// to the value already loaded from the environment. Call before fs.Parse.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Endpoint, "endpoint", c.Endpoint, "transcription backend address")
	fs.StringVar(&c.Protocol, "protocol", c.Protocol, "backend protocol: batch, websocket, whisperlive, deepgram")
	fs.StringVar(&c.Model, "model", c.Model, "model identifier hint")
	fs.StringVar(&c.Language, "language", c.Language, "language hint (empty = auto-detect)")
	fs.Float64Var(&c.VADSilence, "vad-silence", c.VADSilence, "trailing silence before stop, seconds")
	fs.Float64Var(&c.VADThreshold, "vad-threshold", c.VADThreshold, "VAD decision threshold")
	fs.IntVar(&c.SampleRate, "sample-rate", c.SampleRate, "capture sample rate in Hz")
	fs.Float64Var(&c.MinRecording, "min-recording", c.MinRecording, "minimum recording time, seconds")
	fs.BoolVar(&c.UseServerVAD, "use-server-vad", c.UseServerVAD, "request server-side VAD (whisperlive)")
}

// Validate checks the invariants the session engine relies on.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint must not be empty")
	}
	switch c.Protocol {
	case ProtocolBatch, ProtocolWebSocket, ProtocolWhisperLive:
	case ProtocolDeepgram:
		if c.DeepgramAPIKey == "" {
			return fmt.Errorf("DEEPGRAM_API_KEY is required for the deepgram protocol")
		}
	default:
		return fmt.Errorf("unknown protocol %q", c.Protocol)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", c.SampleRate)
	}
	if c.HopSize <= 0 {
		return fmt.Errorf("hop size must be positive, got %d", c.HopSize)
	}
	if c.VADSilence < 0 {
		return fmt.Errorf("vad silence duration must not be negative, got %v", c.VADSilence)
	}
	if c.MinRecording < 0 {
		return fmt.Errorf("min recording duration must not be negative, got %v", c.MinRecording)
	}
	if c.AudioBufferSize < c.HopSize*2 {
		return fmt.Errorf("audio buffer size %d is smaller than one frame (%d bytes)", c.AudioBufferSize, c.HopSize*2)
	}
	return nil
}

// MaxSilenceFrames converts the silence-to-stop duration into a frame count.
// Floor division is deliberate: a duration that does not divide evenly by the
// frame period stops one frame early. Existing VAD tuning depends on this.
func (c *Config) MaxSilenceFrames() int {
	return int(c.VADSilence * float64(c.SampleRate) / float64(c.HopSize))
}

// MinRecordingDuration returns the minimum recording time as a duration.
func (c *Config) MinRecordingDuration() time.Duration {
	return time.Duration(c.MinRecording * float64(time.Second))
}

// HandshakeTimeout returns the duplex readiness wait as a duration.
func (c *Config) HandshakeTimeout() time.Duration {
	return time.Duration(c.HandshakeTimeoutMS) * time.Millisecond
}

// DrainTimeout returns the post-stream result wait as a duration.
func (c *Config) DrainTimeout() time.Duration {
	return time.Duration(c.DrainTimeoutMS) * time.Millisecond
}

// FrameReadTimeout returns the bounded wait for one frame read attempt.
func (c *Config) FrameReadTimeout() time.Duration {
	return time.Duration(c.FrameReadTimeoutMS) * time.Millisecond
}

// StopGrace returns how long to wait for the producer to exit after SIGTERM.
func (c *Config) StopGrace() time.Duration {
	return time.Duration(c.StopGraceMS) * time.Millisecond
}

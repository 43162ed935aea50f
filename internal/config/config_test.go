package config

import (
	"flag"
	"os"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Endpoint != "http://localhost:4445/v1/audio/transcriptions" {
		t.Errorf("unexpected default endpoint: %s", cfg.Endpoint)
	}
	if cfg.Protocol != ProtocolBatch {
		t.Errorf("expected default protocol 'batch', got '%s'", cfg.Protocol)
	}
	if cfg.Model != "small" {
		t.Errorf("expected default model 'small', got '%s'", cfg.Model)
	}
	if cfg.SampleRate != 16000 {
		t.Errorf("expected default sample rate 16000, got %d", cfg.SampleRate)
	}
	if cfg.HopSize != 256 {
		t.Errorf("expected default hop size 256, got %d", cfg.HopSize)
	}
	if !cfg.UseServerVAD {
		t.Error("expected server-side VAD enabled by default")
	}
	if cfg.DrainTimeoutMS != 5000 {
		t.Errorf("expected default drain timeout 5000ms, got %d", cfg.DrainTimeoutMS)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	os.Setenv("PROTOCOL", "whisperlive")
	os.Setenv("ENDPOINT", "ws://localhost:9090")
	os.Setenv("VAD_SILENCE", "2.0")
	defer os.Unsetenv("PROTOCOL")
	defer os.Unsetenv("ENDPOINT")
	defer os.Unsetenv("VAD_SILENCE")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Protocol != ProtocolWhisperLive {
		t.Errorf("expected protocol 'whisperlive', got '%s'", cfg.Protocol)
	}
	if cfg.Endpoint != "ws://localhost:9090" {
		t.Errorf("expected endpoint 'ws://localhost:9090', got '%s'", cfg.Endpoint)
	}
	if cfg.VADSilence != 2.0 {
		t.Errorf("expected vad silence 2.0, got %v", cfg.VADSilence)
	}
}

func TestRegisterFlags_Override(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg.RegisterFlags(fs)
	err = fs.Parse([]string{
		"-endpoint", "ws://remote:9090",
		"-protocol", "websocket",
		"-language", "es",
		"-vad-silence", "0.8",
	})
	if err != nil {
		t.Fatalf("flag parse failed: %v", err)
	}

	if cfg.Endpoint != "ws://remote:9090" {
		t.Errorf("flag did not override endpoint: %s", cfg.Endpoint)
	}
	if cfg.Protocol != ProtocolWebSocket {
		t.Errorf("flag did not override protocol: %s", cfg.Protocol)
	}
	if cfg.Language != "es" {
		t.Errorf("flag did not override language: %s", cfg.Language)
	}
	if cfg.VADSilence != 0.8 {
		t.Errorf("flag did not override vad silence: %v", cfg.VADSilence)
	}
	// Untouched fields keep their env defaults.
	if cfg.Model != "small" {
		t.Errorf("model changed unexpectedly: %s", cfg.Model)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() failed: %v", err)
		}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(c *Config) {}, false},
		{"empty endpoint", func(c *Config) { c.Endpoint = "" }, true},
		{"unknown protocol", func(c *Config) { c.Protocol = "carrier-pigeon" }, true},
		{"deepgram without key", func(c *Config) { c.Protocol = ProtocolDeepgram }, true},
		{"deepgram with key", func(c *Config) { c.Protocol = ProtocolDeepgram; c.DeepgramAPIKey = "k" }, false},
		{"zero hop size", func(c *Config) { c.HopSize = 0 }, true},
		{"negative sample rate", func(c *Config) { c.SampleRate = -1 }, true},
		{"negative silence", func(c *Config) { c.VADSilence = -0.5 }, true},
		{"negative min recording", func(c *Config) { c.MinRecording = -1 }, true},
		{"zero silence is allowed", func(c *Config) { c.VADSilence = 0 }, false},
		{"buffer smaller than a frame", func(c *Config) { c.AudioBufferSize = 100 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestMaxSilenceFrames_FloorDivision(t *testing.T) {
	cfg := &Config{VADSilence: 1.0, SampleRate: 16000, HopSize: 256}

	// 1.0 * 16000 / 256 = 62.5, floored to 62.
	if got := cfg.MaxSilenceFrames(); got != 62 {
		t.Errorf("expected 62 silence frames, got %d", got)
	}

	cfg.VADSilence = 1.5
	if got := cfg.MaxSilenceFrames(); got != 93 {
		t.Errorf("expected 93 silence frames, got %d", got)
	}

	cfg.VADSilence = 0
	if got := cfg.MaxSilenceFrames(); got != 0 {
		t.Errorf("expected 0 silence frames, got %d", got)
	}
}

package vad

import (
	"time"
)

// GateConfig holds the endpoint detection parameters.
type GateConfig struct {
	// Threshold is the classifier score at or above which a frame counts
	// as voice.
	Threshold float64

	// MaxSilenceFrames is the count of consecutive silent frames after
	// speech that triggers a stop. Derived from the silence duration by
	// floor division (config.MaxSilenceFrames).
	MaxSilenceFrames int

	// MinRecording suppresses the stop signal until this much time has
	// passed since the gate was created or reset, protecting against a
	// burst of background noise endpointing an empty recording.
	MinRecording time.Duration
}

// Gate tracks voice activity across frames and signals when continuous
// speech has ended. Not safe for concurrent use; the capture loop is the
// single caller.
type Gate struct {
	classifier Classifier
	cfg        GateConfig

	silenceFrames int
	hasVoice      bool
	start         time.Time
	now           func() time.Time
}

// NewGate creates an endpoint gate over the given classifier.
func NewGate(classifier Classifier, cfg GateConfig) *Gate {
	return &Gate{
		classifier: classifier,
		cfg:        cfg,
		start:      time.Now(),
		now:        time.Now,
	}
}

// Process classifies one frame and advances the endpoint state machine.
// isVoice reports the frame decision; shouldStop is true once speech has been
// heard, the trailing silence run has reached MaxSilenceFrames, and the
// minimum recording time has elapsed.
func (g *Gate) Process(frame []int16) (isVoice, shouldStop bool) {
	isVoice = g.classifier.Score(frame) >= g.cfg.Threshold

	if isVoice {
		g.hasVoice = true
		g.silenceFrames = 0
	} else {
		g.silenceFrames++
	}

	if g.now().Sub(g.start) < g.cfg.MinRecording {
		return isVoice, false
	}

	shouldStop = g.hasVoice && g.silenceFrames >= g.cfg.MaxSilenceFrames
	return isVoice, shouldStop
}

// Reset clears the gate for a new session with the same configuration.
func (g *Gate) Reset() {
	g.silenceFrames = 0
	g.hasVoice = false
	g.start = g.now()
}

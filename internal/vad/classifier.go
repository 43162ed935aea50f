// Package vad decides when a recording should stop: an opaque per-frame
// speech classifier feeds an endpoint gate that watches for trailing silence
// after speech has been heard.
package vad

import (
	"github.com/codewhisper/voice-capture/internal/audio"
)

// Classifier scores one frame of PCM audio for speech likelihood.
// Implementations must return a value in [0, 1].
type Classifier interface {
	Score(frame []int16) float64
}

// defaultReferenceRMS is the frame energy that maps to a score of 0.5,
// chosen so the default 0.5 decision threshold separates speech from
// room noise on typical microphone input.
const defaultReferenceRMS = 500.0

// EnergyClassifier is an RMS-energy speech classifier. The raw energy is
// squashed into (0, 1) against a reference level so it can be compared
// directly to a probability-style threshold.
type EnergyClassifier struct {
	// ReferenceRMS is the RMS level scoring 0.5. Zero selects the default.
	ReferenceRMS float64
}

// Score returns rms/(rms+reference), monotone in frame energy.
func (c *EnergyClassifier) Score(frame []int16) float64 {
	ref := c.ReferenceRMS
	if ref <= 0 {
		ref = defaultReferenceRMS
	}
	rms := audio.RMS(frame)
	return rms / (rms + ref)
}

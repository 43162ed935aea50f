package audio

import (
	"encoding/binary"
	"math"
)

// BytesToInt16 decodes little-endian 16-bit PCM bytes into samples. A
// trailing odd byte is ignored.
func BytesToInt16(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples
}

// Int16ToBytes encodes samples as little-endian 16-bit PCM bytes.
func Int16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// Int16ToFloat32Bytes converts 16-bit PCM samples to normalized little-endian
// float32 bytes, dividing each sample by 32768. The range is [-1.0, +1.0):
// math.MinInt16 maps to exactly -1.0 while math.MaxInt16 maps to slightly
// below +1.0, a property of the signed integer range.
func Int16ToFloat32Bytes(samples []int16) []byte {
	out := make([]byte, len(samples)*4)
	for i, s := range samples {
		f := float32(s) / 32768.0
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}

// RMS returns the root-mean-square energy of the samples, in PCM units
// (0 to 32767). Returns 0 for an empty frame.
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

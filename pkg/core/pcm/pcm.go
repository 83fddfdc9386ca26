// Package pcm converts between native float32 sample buffers and the 16-bit
// little-endian PCM byte format used on the realtime wire.
package pcm

import (
	"encoding/base64"
	"math"
)

// Wire format constants. Assistant audio streams at 24kHz mono 16-bit,
// matching what the microphone sends up.
const (
	SampleRate     = 24000
	Channels       = 1
	BytesPerSample = 2
)

// DecodeBase64 decodes a base64-encoded PCM payload into raw bytes.
// Malformed input is a caller error surfaced as a decode failure.
func DecodeBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

// EncodeBase64 encodes raw PCM bytes for transport inside a JSON event.
func EncodeBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// EncodeFloat32 converts normalized samples to 16-bit little-endian PCM.
// Each sample is clamped to [-1, 1] before scaling; the negative branch
// scales by 32768 and the positive by 32767 to stay within int16 range.
func EncodeFloat32(samples []float32) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, sample := range samples {
		if sample > 1 {
			sample = 1
		} else if sample < -1 {
			sample = -1
		}
		var v int16
		if sample < 0 {
			v = int16(sample * 32768)
		} else {
			v = int16(sample * 32767)
		}
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}

// Float32FromBytes converts 16-bit little-endian PCM to normalized samples.
// A trailing odd byte is ignored.
func Float32FromBytes(b []byte) []float32 {
	samples := make([]float32, len(b)/BytesPerSample)
	for i := range samples {
		v := int16(b[i*2]) | int16(b[i*2+1])<<8
		samples[i] = float32(v) / 32768.0
	}
	return samples
}

// RMSEnergy computes the root-mean-square energy of PCM audio.
// Input is assumed to be 16-bit signed little-endian PCM.
// Returns a value between 0.0 and 1.0.
func RMSEnergy(pcm []byte) float64 {
	samples := len(pcm) / BytesPerSample
	if samples == 0 {
		return 0
	}

	var sum float64
	for i := 0; i < len(pcm)-1; i += 2 {
		sample := int16(pcm[i]) | int16(pcm[i+1])<<8
		normalized := float64(sample) / 32768.0
		sum += normalized * normalized
	}

	return math.Sqrt(sum / float64(samples))
}

// PeakAmplitude returns the maximum absolute amplitude in the PCM data.
// Returns a value between 0.0 and 1.0.
func PeakAmplitude(pcm []byte) float64 {
	if len(pcm) < BytesPerSample {
		return 0
	}

	var maxAbs float64
	for i := 0; i < len(pcm)-1; i += 2 {
		sample := int16(pcm[i]) | int16(pcm[i+1])<<8
		// Use float64 to avoid overflow when negating -32768
		abs := math.Abs(float64(sample))
		if abs > maxAbs {
			maxAbs = abs
		}
	}

	return maxAbs / 32768.0
}

// DurationMs returns the playback duration of n bytes of PCM at the given
// sample rate, assuming mono 16-bit.
func DurationMs(n, sampleRate int) int {
	bytesPerSecond := sampleRate * Channels * BytesPerSample
	if bytesPerSecond <= 0 || n <= 0 {
		return 0
	}
	return n * 1000 / bytesPerSecond
}

// BytesForDurationMs returns how many PCM bytes cover the given duration at
// the given sample rate, assuming mono 16-bit.
func BytesForDurationMs(ms, sampleRate int) int {
	if ms <= 0 || sampleRate <= 0 {
		return 0
	}
	return sampleRate * Channels * BytesPerSample * ms / 1000
}

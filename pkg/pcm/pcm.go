// Package pcm converts between floating-point audio samples and the 16-bit
// little-endian PCM representation used on the wire.
//
// Encode and Decode are pure functions with no shared state. Samples are
// mono float32 in [-1, 1]; values outside that range are clamped before
// quantization.
package pcm

import (
	"encoding/binary"
	"errors"
	"math"
)

// BytesPerSample is the width of one PCM16 sample on the wire.
const BytesPerSample = 2

// fullScale maps float [-1, 1] onto the signed 16-bit range.
const fullScale = 32768

// ErrMalformedFrame indicates a PCM16 payload whose byte count is not a
// multiple of the sample width.
var ErrMalformedFrame = errors.New("pcm: malformed frame: odd byte count")

// Encode quantizes float samples to PCM16 little-endian bytes.
// Samples are clamped to [-1, 1] and rounded to the nearest integer level.
func Encode(samples []float32) []byte {
	buf := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		q := int(math.Round(float64(s) * fullScale))
		if q > math.MaxInt16 {
			q = math.MaxInt16
		} else if q < math.MinInt16 {
			q = math.MinInt16
		}
		binary.LittleEndian.PutUint16(buf[i*BytesPerSample:], uint16(int16(q)))
	}
	return buf
}

// Decode converts PCM16 little-endian bytes back to float samples by
// dividing each sample by full scale. It is the exact linear inverse of
// Encode up to quantization error.
func Decode(data []byte) ([]float32, error) {
	if len(data)%BytesPerSample != 0 {
		return nil, ErrMalformedFrame
	}
	samples := make([]float32, len(data)/BytesPerSample)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(data[i*BytesPerSample:]))
		samples[i] = float32(v) / fullScale
	}
	return samples, nil
}

// DecodeInt16 converts PCM16 little-endian bytes to raw int16 samples.
// Used where the device layer wants integer samples without rescaling.
func DecodeInt16(data []byte) ([]int16, error) {
	if len(data)%BytesPerSample != 0 {
		return nil, ErrMalformedFrame
	}
	samples := make([]int16, len(data)/BytesPerSample)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*BytesPerSample:]))
	}
	return samples, nil
}

// EncodeInt16 converts raw int16 samples to PCM16 little-endian bytes.
func EncodeInt16(samples []int16) []byte {
	buf := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*BytesPerSample:], uint16(s))
	}
	return buf
}

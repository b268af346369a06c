// Package audio holds the PCM codec and the gapless playback scheduler shared
// by the capture and playback paths.
package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Sample rates fixed by the transport contract.
const (
	CaptureRate  = 16000 // microphone / outbound frames, Hz
	PlaybackRate = 24000 // inbound model audio, Hz

	bytesPerSample = 2
)

// CaptureMIMEType is the MIME type declared on every outbound frame.
const CaptureMIMEType = "audio/pcm;rate=16000"

// FloatToPCM16 converts float samples in [-1, 1] to 16-bit signed PCM.
// Samples are scaled by 32767, rounded to nearest and clamped to the
// representable range, so 1.0 maps to 32767 and -1.0 to -32767.
func FloatToPCM16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		v := math.Round(float64(s) * 32767)
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		out[i] = int16(v)
	}
	return out
}

// PCM16ToFloat is the inverse transform, mapping 32767 back to 1.0.
func PCM16ToFloat(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32767
	}
	return out
}

// SamplesToBytes serializes samples as 16-bit little-endian PCM.
func SamplesToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*bytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*bytesPerSample:], uint16(s))
	}
	return out
}

// BytesToSamples parses 16-bit little-endian PCM. The byte length must be
// even; a trailing half sample means the payload is malformed.
func BytesToSamples(b []byte) ([]int16, error) {
	if len(b)%bytesPerSample != 0 {
		return nil, fmt.Errorf("pcm payload has odd length %d", len(b))
	}
	out := make([]int16, len(b)/bytesPerSample)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*bytesPerSample:]))
	}
	return out, nil
}

// BytesToFloat32 reinterprets little-endian IEEE 754 float32 samples, the
// format the capture device delivers.
func BytesToFloat32(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("float32 payload has odd length %d", len(b))
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out, nil
}

// Duration returns the playback duration in seconds of a 16-bit LE mono PCM
// byte buffer at the given sample rate.
func Duration(pcm []byte, sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(len(pcm)/bytesPerSample) / float64(sampleRate)
}

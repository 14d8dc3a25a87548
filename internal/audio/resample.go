package audio

import (
	"encoding/binary"
	"math"
)

// DownmixStereoInto averages interleaved L/R samples into dst.
// dst must have capacity >= len(in)/2. Returns the used portion.
func DownmixStereoInto(in []int16, dst []int16) []int16 {
	n := len(in) / 2
	for i := 0; i < n; i++ {
		dst[i] = int16((int32(in[i*2]) + int32(in[i*2+1])) / 2)
	}
	return dst[:n]
}

// Downsample48to16Into writes 16kHz samples into dst by averaging each group
// of 3 consecutive 48kHz samples. dst must have capacity >= len(in)/3.
func Downsample48to16Into(in []int16, dst []int16) []int16 {
	n := len(in) / 3
	for i := 0; i < n; i++ {
		sum := int32(in[i*3]) + int32(in[i*3+1]) + int32(in[i*3+2])
		dst[i] = int16(sum / 3)
	}
	return dst[:n]
}

// Int16ToBytesInto writes s16le bytes into dst.
// dst must have capacity >= len(samples)*2. Returns the used portion.
func Int16ToBytesInto(samples []int16, dst []byte) []byte {
	for i, s := range samples {
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(s))
	}
	return dst[:len(samples)*2]
}

// SilenceDBFS is reported for empty or all-zero audio.
const SilenceDBFS = -96.0

// LevelDBFS returns the RMS level of s16le PCM in dBFS.
func LevelDBFS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return SilenceDBFS
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768
		sum += s * s
	}
	rms := math.Sqrt(sum / float64(n))
	if rms == 0 {
		return SilenceDBFS
	}
	return math.Max(20*math.Log10(rms), SilenceDBFS)
}

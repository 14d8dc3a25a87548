package audio

import (
	"fmt"

	"github.com/hraban/opus"
)

const (
	// OpusSampleRate and OpusChannels match the negotiated Opus codec.
	OpusSampleRate = 48000
	OpusChannels   = 2

	// MaxFrameSize is the largest Opus frame in samples per channel (120ms at 48kHz).
	MaxFrameSize = 5760
)

// Decoder converts Opus frames to PCM s16le, 16kHz, mono.
type Decoder struct {
	dec *opus.Decoder
}

// NewDecoder creates a decoder for 48kHz stereo Opus.
func NewDecoder() (*Decoder, error) {
	dec, err := opus.NewDecoder(OpusSampleRate, OpusChannels)
	if err != nil {
		return nil, fmt.Errorf("create opus decoder: %w", err)
	}
	return &Decoder{dec: dec}, nil
}

// Decode converts one Opus frame. The returned slice is only valid until the
// next call; callers copy it out.
func (d *Decoder) Decode(frame []byte, bufs *InboundFrameBuffers) ([]byte, error) {
	n, err := d.dec.Decode(frame, bufs.DecodeBuf)
	if err != nil {
		return nil, fmt.Errorf("decode opus frame: %w", err)
	}
	mono := DownmixStereoInto(bufs.DecodeBuf[:n*OpusChannels], bufs.MonoBuf)
	down := Downsample48to16Into(mono, bufs.DownsampleBuf)
	return Int16ToBytesInto(down, bufs.BytesBuf), nil
}

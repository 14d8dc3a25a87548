// Package codec owns the receiver's codec capability table and the
// codec-preference selector.
package codec

import (
	"fmt"
	"strings"

	"github.com/pion/webrtc/v4"
)

// Redundancy and repair codecs never offered as a user choice.
const (
	MimeTypeRED    = "video/red"
	MimeTypeULPFEC = "video/ulpfec"
	MimeTypeRTX    = "video/rtx"
)

var videoFeedback = []webrtc.RTCPFeedback{
	{Type: "goog-remb"},
	{Type: "ccm", Parameter: "fir"},
	{Type: "nack"},
	{Type: "nack", Parameter: "pli"},
}

func video(mime, fmtp string, pt webrtc.PayloadType) webrtc.RTPCodecParameters {
	return webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:     mime,
			ClockRate:    90000,
			SDPFmtpLine:  fmtp,
			RTCPFeedback: videoFeedback,
		},
		PayloadType: pt,
	}
}

func rtx(apt webrtc.PayloadType, pt webrtc.PayloadType) webrtc.RTPCodecParameters {
	return webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:    MimeTypeRTX,
			ClockRate:   90000,
			SDPFmtpLine: fmt.Sprintf("apt=%d", apt),
		},
		PayloadType: pt,
	}
}

// VideoCodecs is the video capability table registered into the media engine,
// in preference order.
var VideoCodecs = []webrtc.RTPCodecParameters{
	video(webrtc.MimeTypeVP8, "", 96),
	rtx(96, 97),
	video(webrtc.MimeTypeVP9, "profile-id=0", 98),
	rtx(98, 99),
	video(webrtc.MimeTypeVP9, "profile-id=2", 100),
	rtx(100, 101),
	video(webrtc.MimeTypeH264, "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42001f", 102),
	rtx(102, 121),
	video(webrtc.MimeTypeH264, "level-asymmetry-allowed=1;packetization-mode=0;profile-level-id=42001f", 127),
	rtx(127, 120),
	video(webrtc.MimeTypeH264, "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42e01f", 125),
	rtx(125, 107),
	video(webrtc.MimeTypeAV1, "", 45),
	rtx(45, 46),
	{RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: MimeTypeRED, ClockRate: 90000}, PayloadType: 123},
	{RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: MimeTypeULPFEC, ClockRate: 90000}, PayloadType: 116},
}

// AudioCodecs is the audio capability table.
var AudioCodecs = []webrtc.RTPCodecParameters{
	{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:    webrtc.MimeTypeOpus,
			ClockRate:   48000,
			Channels:    2,
			SDPFmtpLine: "minptime=10;useinbandfec=1",
		},
		PayloadType: 111,
	},
}

// Register adds the capability tables to a media engine.
func Register(m *webrtc.MediaEngine) error {
	for _, c := range VideoCodecs {
		if err := m.RegisterCodec(c, webrtc.RTPCodecTypeVideo); err != nil {
			return fmt.Errorf("register %s: %w", c.MimeType, err)
		}
	}
	for _, c := range AudioCodecs {
		if err := m.RegisterCodec(c, webrtc.RTPCodecTypeAudio); err != nil {
			return fmt.Errorf("register %s: %w", c.MimeType, err)
		}
	}
	return nil
}

// Option is one entry of the codec selector.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// OptionValue is the selector key of a capability.
func OptionValue(c webrtc.RTPCodecCapability) string {
	return strings.TrimSpace(c.MimeType + " " + c.SDPFmtpLine)
}

// ParseOption splits a selector value back into mime type and fmtp line.
func ParseOption(value string) (mimeType, sdpFmtpLine string) {
	mimeType, sdpFmtpLine, _ = strings.Cut(value, " ")
	return mimeType, sdpFmtpLine
}

func selectable(mimeType string) bool {
	switch strings.ToLower(mimeType) {
	case MimeTypeRED, MimeTypeULPFEC, MimeTypeRTX:
		return false
	}
	return true
}

// Options returns one option per selectable capability.
func Options(caps []webrtc.RTPCodecParameters) []Option {
	out := make([]Option, 0, len(caps))
	for _, c := range caps {
		if !selectable(c.MimeType) {
			continue
		}
		v := OptionValue(c.RTPCodecCapability)
		out = append(out, Option{Value: v, Label: v})
	}
	return out
}

// Find looks up the capability record for a mime type and fmtp line.
func Find(caps []webrtc.RTPCodecParameters, mimeType, sdpFmtpLine string) (webrtc.RTPCodecParameters, bool) {
	for _, c := range caps {
		if c.MimeType == mimeType && c.SDPFmtpLine == sdpFmtpLine {
			return c, true
		}
	}
	return webrtc.RTPCodecParameters{}, false
}

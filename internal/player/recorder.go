package player

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media/h264writer"
	"github.com/pion/webrtc/v4/pkg/media/ivfwriter"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
)

type recorder interface {
	WriteRTP(pkt *rtp.Packet) error
	Close() error
}

// newRecorder opens a media file for the track in dir. It returns nil, nil when
// recording is off or the codec has no container.
func newRecorder(dir string, streamID int, trackID string, codec webrtc.RTPCodecParameters) (recorder, error) {
	if dir == "" {
		return nil, nil
	}

	var ext string
	switch strings.ToLower(codec.MimeType) {
	case strings.ToLower(webrtc.MimeTypeVP8):
		ext = "ivf"
	case strings.ToLower(webrtc.MimeTypeH264):
		ext = "h264"
	case strings.ToLower(webrtc.MimeTypeOpus):
		ext = "ogg"
	default:
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create record dir: %w", err)
	}
	path := filepath.Join(dir, RecordingName(streamID, trackID, ext))

	switch ext {
	case "ivf":
		return ivfwriter.New(path)
	case "h264":
		return h264writer.New(path)
	default:
		return oggwriter.New(path, 48000, 2)
	}
}

// RecordingName is the file name a track is recorded under.
func RecordingName(streamID int, trackID, ext string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return -1
		}
	}, trackID)
	if safe == "" {
		safe = "track"
	}
	return fmt.Sprintf("stream%d-%s.%s", streamID, safe, ext)
}

package receiver

import (
	"context"
	"time"

	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/RenatoCabral2022/renderstreaming-receiver/internal/codec"
	"github.com/RenatoCabral2022/renderstreaming-receiver/internal/player"
	"github.com/RenatoCabral2022/renderstreaming-receiver/internal/renderstreaming"
	"github.com/RenatoCabral2022/renderstreaming-receiver/internal/serverconfig"
	"github.com/RenatoCabral2022/renderstreaming-receiver/internal/signaling"
	"github.com/RenatoCabral2022/renderstreaming-receiver/internal/stats"
)

// Session is what a slot needs from a render-streaming session.
type Session interface {
	Start(ctx context.Context) error
	CreateConnection(ctx context.Context, connectionID string) error
	Stop(ctx context.Context) error
	ConnectionID() string
	CreateDataChannel(label string) (player.InputChannel, error)
	Transceivers() []codec.Transceiver
	Stats() (stats.Report, bool)
}

// SignalingFactory builds the signaling channel for a stream.
type SignalingFactory func(useWebSocket bool, streamID int) (signaling.Signaling, error)

// SessionFactory builds a session over sig that reports to handler.
type SessionFactory func(sig signaling.Signaling, cfg serverconfig.RTCConfiguration, handler renderstreaming.EventHandler) Session

// NewSignalingFactory returns the factory used against a real server: WebSocket
// signaling when the server advertises it, REST polling otherwise.
func NewSignalingFactory(serverURL string, pollInterval time.Duration, logger *zap.Logger) SignalingFactory {
	return func(useWebSocket bool, streamID int) (signaling.Signaling, error) {
		l := logger.With(zap.Int("stream", streamID))
		if !useWebSocket {
			return signaling.NewHTTP(serverURL, pollInterval, l), nil
		}
		u, err := signaling.WebSocketURL(serverURL, streamID)
		if err != nil {
			return nil, err
		}
		return signaling.NewWebSocket(u, l), nil
	}
}

// NewSessionFactory returns a factory building pion-backed sessions from api.
func NewSessionFactory(api *webrtc.API, logger *zap.Logger) SessionFactory {
	return func(sig signaling.Signaling, cfg serverconfig.RTCConfiguration, handler renderstreaming.EventHandler) Session {
		return pionSession{renderstreaming.New(sig, api, cfg.WebRTC(), handler, logger)}
	}
}

type pionSession struct {
	*renderstreaming.Session
}

func (s pionSession) CreateDataChannel(label string) (player.InputChannel, error) {
	dc, err := s.Session.CreateDataChannel(label)
	if err != nil {
		return nil, err
	}
	return dc, nil
}

func (s pionSession) Transceivers() []codec.Transceiver {
	ts := s.Session.Transceivers()
	out := make([]codec.Transceiver, 0, len(ts))
	for _, t := range ts {
		out = append(out, t)
	}
	return out
}

func (s pionSession) Stats() (stats.Report, bool) {
	r, ok := s.Session.Stats()
	if !ok {
		return nil, false
	}
	return stats.FromWebRTC(r), true
}

package receiver

import (
	"sync"

	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/RenatoCabral2022/renderstreaming-receiver/internal/player"
	"github.com/RenatoCabral2022/renderstreaming-receiver/internal/stats"
)

// Slot is one stream position on the page: its player, its session and its
// stats poller. Slot implements renderstreaming.EventHandler for its session.
type Slot struct {
	streamID int
	ctrl     *Controller
	player   *player.Player
	poller   *stats.Poller
	logger   *zap.Logger

	mu      sync.Mutex
	session Session
}

func (s *Slot) StreamID() int { return s.streamID }

func (s *Slot) currentSession() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

func (s *Slot) setSession(sess Session) {
	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()
}

func (s *Slot) takeSession() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.session
	s.session = nil
	return sess
}

// Stats implements stats.Source.
func (s *Slot) Stats() (stats.Report, bool) {
	sess := s.currentSession()
	if sess == nil {
		return nil, false
	}
	return sess.Stats()
}

func (s *Slot) OnConnect(connectionID string) {
	s.ctrl.handleConnect(s, connectionID)
}

func (s *Slot) OnDisconnect(connectionID string) {
	s.ctrl.handleDisconnect(s, connectionID)
}

func (s *Slot) OnTrack(_ string, track *webrtc.TrackRemote) {
	s.ctrl.routeTrack(s.streamID, track)
}

func (s *Slot) OnGotOffer(connectionID string) {
	s.ctrl.handleGotOffer(s, connectionID)
}

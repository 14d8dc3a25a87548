package renderstreaming

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/RenatoCabral2022/renderstreaming-receiver/internal/signaling"
)

var ErrNoPeer = errors.New("no peer connection")

// EventHandler receives session events. OnDisconnect is delivered on its own
// goroutine, at most once per connection, so it may call Stop.
type EventHandler interface {
	OnConnect(connectionID string)
	OnDisconnect(connectionID string)
	OnTrack(connectionID string, track *webrtc.TrackRemote)
	OnGotOffer(connectionID string)
}

// Session is one render-streaming connection over a signaling channel.
type Session struct {
	sig     signaling.Signaling
	api     *webrtc.API
	config  webrtc.Configuration
	handler EventHandler
	logger  *zap.Logger

	mu           sync.Mutex
	ctx          context.Context
	cancel       context.CancelFunc
	connectionID string
	peer         *peer
	notified     map[string]bool
}

// New creates a session. Nothing happens on the network until Start.
func New(sig signaling.Signaling, api *webrtc.API, config webrtc.Configuration, handler EventHandler, logger *zap.Logger) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		sig:      sig,
		api:      api,
		config:   config,
		handler:  handler,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		notified: make(map[string]bool),
	}
	sig.Handle(signaling.TypeConnect, s.onConnect)
	sig.Handle(signaling.TypeDisconnect, s.onDisconnect)
	sig.Handle(signaling.TypeOffer, s.onOffer)
	sig.Handle(signaling.TypeAnswer, s.onAnswer)
	sig.Handle(signaling.TypeCandidate, s.onCandidate)
	return s
}

// Start opens the signaling channel.
func (s *Session) Start(ctx context.Context) error {
	if err := s.sig.Start(ctx); err != nil {
		return fmt.Errorf("start signaling: %w", err)
	}
	return nil
}

// CreateConnection asks the server for a connection. An empty id gets a fresh uuid.
func (s *Session) CreateConnection(ctx context.Context, connectionID string) error {
	if connectionID == "" {
		connectionID = uuid.New().String()
	}
	s.mu.Lock()
	s.connectionID = connectionID
	delete(s.notified, connectionID)
	s.mu.Unlock()

	s.logger.Info("creating connection", zap.String("connection", connectionID))
	if err := s.sig.CreateConnection(ctx, connectionID); err != nil {
		return fmt.Errorf("create connection %s: %w", connectionID, err)
	}
	return nil
}

// DeleteConnection asks the server to drop the current connection.
func (s *Session) DeleteConnection(ctx context.Context) error {
	id := s.ConnectionID()
	if id == "" {
		return nil
	}
	if err := s.sig.DeleteConnection(ctx, id); err != nil {
		return fmt.Errorf("delete connection %s: %w", id, err)
	}
	return nil
}

// Stop closes the peer and the signaling channel.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	p := s.peer
	s.peer = nil
	s.mu.Unlock()

	var err error
	if p != nil {
		err = multierr.Append(err, p.close())
	}
	s.cancel()
	if e := s.sig.Stop(ctx); e != nil {
		err = multierr.Append(err, fmt.Errorf("stop signaling: %w", e))
	}
	return err
}

func (s *Session) ConnectionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectionID
}

// CreateDataChannel opens a data channel on the current peer.
func (s *Session) CreateDataChannel(label string) (*webrtc.DataChannel, error) {
	p := s.currentPeer()
	if p == nil {
		return nil, ErrNoPeer
	}
	dc, err := p.pc.CreateDataChannel(label, nil)
	if err != nil {
		return nil, fmt.Errorf("create data channel %s: %w", label, err)
	}
	return dc, nil
}

// Transceivers returns the current peer's transceivers.
func (s *Session) Transceivers() []*webrtc.RTPTransceiver {
	p := s.currentPeer()
	if p == nil {
		return nil
	}
	return p.pc.GetTransceivers()
}

// Stats returns the current peer's stats; ok is false without a peer.
func (s *Session) Stats() (webrtc.StatsReport, bool) {
	p := s.currentPeer()
	if p == nil {
		return nil, false
	}
	return p.pc.GetStats(), true
}

func (s *Session) currentPeer() *peer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peer
}

func (s *Session) peerFor(connectionID string) *peer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.peer == nil || s.peer.connectionID != connectionID {
		return nil
	}
	return s.peer
}

// preparePeer replaces any existing peer with a fresh one for connectionID.
func (s *Session) preparePeer(connectionID string, polite bool) (*peer, error) {
	pc, err := s.api.NewPeerConnection(s.config)
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}
	logger := s.logger.With(zap.String("connection", connectionID), zap.Bool("polite", polite))
	p := &peer{
		pc:           pc,
		connectionID: connectionID,
		polite:       polite,
		sig:          s.sig,
		ctx:          s.ctx,
		logger:       logger,
		onGotOffer:   func() { s.handler.OnGotOffer(connectionID) },
	}
	p.bind()

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		logger.Info("remote track",
			zap.String("kind", track.Kind().String()),
			zap.String("codec", track.Codec().MimeType),
		)
		s.handler.OnTrack(connectionID, track)
	})
	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		logger.Info("remote data channel", zap.String("label", dc.Label()))
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		logger.Info("peer state", zap.String("state", state.String()))
		switch state {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateDisconnected:
			go s.disconnect(connectionID)
		}
	})

	s.mu.Lock()
	old := s.peer
	s.peer = p
	s.mu.Unlock()
	if old != nil {
		if err := old.close(); err != nil {
			logger.Warn("close previous peer", zap.Error(err))
		}
	}
	return p, nil
}

// disconnect drops the peer for connectionID and notifies the handler once.
func (s *Session) disconnect(connectionID string) {
	s.mu.Lock()
	p := s.peer
	if p != nil && p.connectionID == connectionID {
		s.peer = nil
	} else {
		p = nil
	}
	already := s.notified[connectionID]
	s.notified[connectionID] = true
	s.mu.Unlock()

	if p != nil {
		if err := p.close(); err != nil {
			s.logger.Warn("close peer", zap.String("connection", connectionID), zap.Error(err))
		}
	}
	if !already {
		go s.handler.OnDisconnect(connectionID)
	}
}

func (s *Session) onConnect(msg signaling.Message) error {
	if msg.ConnectionID != s.ConnectionID() {
		return nil
	}
	if _, err := s.preparePeer(msg.ConnectionID, msg.Polite); err != nil {
		return err
	}
	s.handler.OnConnect(msg.ConnectionID)
	return nil
}

func (s *Session) onDisconnect(msg signaling.Message) error {
	if msg.ConnectionID != s.ConnectionID() {
		return nil
	}
	s.disconnect(msg.ConnectionID)
	return nil
}

func (s *Session) onOffer(msg signaling.Message) error {
	p := s.peerFor(msg.ConnectionID)
	if p == nil {
		var err error
		if p, err = s.preparePeer(msg.ConnectionID, msg.Polite); err != nil {
			return err
		}
	}
	return p.onDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: msg.SDP})
}

func (s *Session) onAnswer(msg signaling.Message) error {
	p := s.peerFor(msg.ConnectionID)
	if p == nil {
		return nil
	}
	return p.onDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: msg.SDP})
}

func (s *Session) onCandidate(msg signaling.Message) error {
	p := s.peerFor(msg.ConnectionID)
	if p == nil {
		return nil
	}
	return p.onCandidate(webrtc.ICECandidateInit{
		Candidate:     msg.Candidate,
		SDPMid:        msg.SDPMid,
		SDPMLineIndex: msg.SDPMLineIndex,
	})
}

package renderstreaming

import (
	"context"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/RenatoCabral2022/renderstreaming-receiver/internal/signaling"
)

// peer negotiates one PeerConnection with perfect negotiation: the polite side
// rolls back its own offer on collision, the impolite side ignores the remote one.
type peer struct {
	pc           *webrtc.PeerConnection
	connectionID string
	polite       bool
	sig          signaling.Signaling
	ctx          context.Context
	logger       *zap.Logger

	// onGotOffer runs after a remote offer is applied and before the answer is created.
	onGotOffer func()

	mu               sync.Mutex
	makingOffer      bool
	ignoreOffer      bool
	srdAnswerPending bool
	pending          []webrtc.ICECandidateInit
	closed           bool
}

func (p *peer) bind() {
	p.pc.OnNegotiationNeeded(func() {
		go p.negotiate()
	})
	p.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		init := c.ToJSON()
		err := p.sig.SendCandidate(p.ctx, p.connectionID, signaling.Candidate{
			Candidate:     init.Candidate,
			SDPMLineIndex: init.SDPMLineIndex,
			SDPMid:        init.SDPMid,
		})
		if err != nil {
			p.logger.Warn("send candidate failed", zap.Error(err))
		}
	})
}

func (p *peer) negotiate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}

	p.makingOffer = true
	defer func() { p.makingOffer = false }()

	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		p.logger.Warn("create offer failed", zap.Error(err))
		return
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		p.logger.Warn("set local offer failed", zap.Error(err))
		return
	}
	if err := p.sig.SendOffer(p.ctx, p.connectionID, offer.SDP); err != nil {
		p.logger.Warn("send offer failed", zap.Error(err))
	}
}

// onDescription applies a remote offer or answer. An accepted offer is answered.
func (p *peer) onDescription(desc webrtc.SessionDescription) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}

	state := p.pc.SignalingState()
	stable := state == webrtc.SignalingStateStable ||
		(state == webrtc.SignalingStateHaveLocalOffer && p.srdAnswerPending)
	collision := desc.Type == webrtc.SDPTypeOffer && (p.makingOffer || !stable)
	p.ignoreOffer = collision && !p.polite
	if p.ignoreOffer {
		p.logger.Info("ignoring colliding offer")
		return nil
	}
	if collision && state == webrtc.SignalingStateHaveLocalOffer {
		if err := p.pc.SetLocalDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeRollback}); err != nil {
			return fmt.Errorf("rollback local offer: %w", err)
		}
	}

	p.srdAnswerPending = desc.Type == webrtc.SDPTypeAnswer
	err := p.pc.SetRemoteDescription(desc)
	p.srdAnswerPending = false
	if err != nil {
		return fmt.Errorf("set remote %s: %w", desc.Type, err)
	}
	p.flushCandidates()

	if desc.Type != webrtc.SDPTypeOffer {
		return nil
	}
	if p.onGotOffer != nil {
		p.onGotOffer()
	}
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("create answer: %w", err)
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("set local answer: %w", err)
	}
	if err := p.sig.SendAnswer(p.ctx, p.connectionID, answer.SDP); err != nil {
		return fmt.Errorf("send answer: %w", err)
	}
	return nil
}

// onCandidate adds a remote candidate, holding it until a remote description exists.
func (p *peer) onCandidate(c webrtc.ICECandidateInit) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	if p.pc.RemoteDescription() == nil {
		p.pending = append(p.pending, c)
		return nil
	}
	if err := p.pc.AddICECandidate(c); err != nil && !p.ignoreOffer {
		return fmt.Errorf("add ice candidate: %w", err)
	}
	return nil
}

func (p *peer) flushCandidates() {
	for _, c := range p.pending {
		if err := p.pc.AddICECandidate(c); err != nil {
			p.logger.Warn("add buffered candidate failed", zap.Error(err))
		}
	}
	p.pending = nil
}

func (p *peer) close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.pending = nil
	p.mu.Unlock()
	return p.pc.Close()
}

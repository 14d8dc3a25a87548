// Package receiver is the page controller: it bootstraps from the server
// configuration and runs one render-streaming session per play button.
package receiver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/RenatoCabral2022/renderstreaming-receiver/internal/codec"
	"github.com/RenatoCabral2022/renderstreaming-receiver/internal/config"
	"github.com/RenatoCabral2022/renderstreaming-receiver/internal/metrics"
	"github.com/RenatoCabral2022/renderstreaming-receiver/internal/player"
	"github.com/RenatoCabral2022/renderstreaming-receiver/internal/serverconfig"
	"github.com/RenatoCabral2022/renderstreaming-receiver/internal/stats"
)

var (
	ErrUnknownSlot = errors.New("unknown slot")
	ErrSlotBusy    = errors.New("slot already playing")
	ErrNotReady    = errors.New("receiver not set up")
)

const teardownTimeout = 5 * time.Second

// ConfigFetcher loads the server configuration.
type ConfigFetcher interface {
	GetServerConfig(ctx context.Context) (*serverconfig.ServerConfig, error)
}

// HealthReporter is told when the receiver and its slots become serving.
type HealthReporter interface {
	SetServing(serving bool)
	SetSlotServing(streamID int, serving bool)
}

type noopHealth struct{}

func (noopHealth) SetServing(bool)          {}
func (noopHealth) SetSlotServing(int, bool) {}

// Deps are the collaborators of a Controller.
type Deps struct {
	Config    ConfigFetcher
	Signaling SignalingFactory
	Sessions  SessionFactory
	Health    HealthReporter
}

// Controller owns the page state and the slots.
type Controller struct {
	cfg      *config.Config
	deps     Deps
	view     *View
	selector *codec.Selector
	caps     []webrtc.RTPCodecParameters
	logger   *zap.Logger
	slots    []*Slot

	mu           sync.RWMutex
	ready        bool
	useWebSocket bool
	startupMode  string
	iceSource    serverconfig.ICEServerSource
}

// NewController creates a controller with cfg.Slots slots, numbered from 1.
func NewController(cfg *config.Config, deps Deps, logger *zap.Logger) *Controller {
	if deps.Health == nil {
		deps.Health = noopHealth{}
	}
	c := &Controller{
		cfg:      cfg,
		deps:     deps,
		view:     NewView(),
		selector: codec.NewSelector(cfg.CodecPrefs),
		caps:     codec.VideoCodecs,
		logger:   logger,
	}
	opts := player.Options{
		RecordDir:      cfg.RecordDir,
		AudioBufferSec: cfg.AudioBufferSec,
		VideoAspect:    cfg.VideoAspect,
	}
	for id := 1; id <= cfg.Slots; id++ {
		l := logger.With(zap.Int("stream", id))
		c.slots = append(c.slots, &Slot{
			streamID: id,
			ctrl:     c,
			player:   player.New(id, opts, logger),
			poller:   stats.NewPoller(cfg.StatsInterval, c.view, l),
			logger:   l,
		})
	}
	return c
}

func (c *Controller) View() *View                { return c.view }
func (c *Controller) Selector() *codec.Selector { return c.selector }

func (c *Controller) slot(streamID int) (*Slot, error) {
	if streamID < 1 || streamID > len(c.slots) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSlot, streamID)
	}
	return c.slots[streamID-1], nil
}

// Setup fetches the server configuration and renders the page. It runs once;
// later calls are no-ops.
func (c *Controller) Setup(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ready {
		return nil
	}

	sc, err := c.deps.Config.GetServerConfig(ctx)
	if err != nil {
		return fmt.Errorf("get server config: %w", err)
	}
	c.useWebSocket = sc.UseWebSocket
	c.startupMode = sc.StartupMode
	c.iceSource = serverconfig.DefaultSource(sc, c.cfg.STUNServers)

	if sc.StartupMode == serverconfig.StartupModePrivate {
		c.view.ShowWarning(WarningText)
	}
	c.showCodecSelect()
	for _, s := range c.slots {
		c.view.ShowPlayButton(s.streamID)
	}

	c.ready = true
	c.deps.Health.SetServing(true)
	c.logger.Info("receiver ready",
		zap.Bool("useWebSocket", sc.UseWebSocket),
		zap.String("startupMode", sc.StartupMode),
		zap.Int("slots", len(c.slots)),
	)
	return nil
}

func (c *Controller) showCodecSelect() {
	if !c.selector.Supported() {
		c.view.ShowMessage(codec.UnsupportedMessage)
		return
	}
	if err := c.selector.Populate(c.caps); err != nil {
		c.logger.Warn("populate codec selector", zap.Error(err))
	}
}

// AutoPlay clicks the play buttons of the given streams in order.
func (c *Controller) AutoPlay(ctx context.Context, streamIDs []int) error {
	var err error
	for _, id := range streamIDs {
		if e := c.Play(ctx, id); e != nil {
			err = multierr.Append(err, fmt.Errorf("auto play stream %d: %w", id, e))
		}
	}
	return err
}

// Play is a click on the play button of streamID.
func (c *Controller) Play(ctx context.Context, streamID int) error {
	s, err := c.slot(streamID)
	if err != nil {
		return err
	}
	c.mu.RLock()
	ready, useWebSocket, iceSource := c.ready, c.useWebSocket, c.iceSource
	c.mu.RUnlock()
	if !ready {
		return ErrNotReady
	}
	if !c.view.HidePlayButton(streamID) {
		return fmt.Errorf("%w: %d", ErrSlotBusy, streamID)
	}

	if err := s.player.CreatePlayer(player.ContainerID(streamID), c.cfg.LockMouse); err != nil {
		c.view.ShowPlayButton(streamID)
		return fmt.Errorf("create player: %w", err)
	}
	c.selector.SetDisabled(true)

	sig, err := c.deps.Signaling(useWebSocket, streamID)
	if err != nil {
		c.abort(s)
		return fmt.Errorf("create signaling: %w", err)
	}
	sess := c.deps.Sessions(sig, serverconfig.NewRTCConfiguration(streamID, iceSource), s)
	s.setSession(sess)

	metrics.SessionsStartedTotal.Inc()
	metrics.ActiveSlots.Inc()
	c.deps.Health.SetSlotServing(streamID, true)
	s.logger.Info("session starting", zap.Bool("websocket", useWebSocket))

	if err := sess.Start(ctx); err != nil {
		metrics.SessionStartFailuresTotal.Inc()
		c.abort(s)
		return fmt.Errorf("start session: %w", err)
	}
	if err := sess.CreateConnection(ctx, ""); err != nil {
		metrics.SessionStartFailuresTotal.Inc()
		c.abort(s)
		return fmt.Errorf("create connection: %w", err)
	}
	return nil
}

// abort resets a slot whose session never got going so it can be played again.
func (c *Controller) abort(s *Slot) {
	if s.poller.Running() {
		s.poller.Clear()
	}
	if err := c.teardown(s); err != nil {
		s.logger.Warn("teardown after failed start", zap.Error(err))
	}
	if c.selector.Supported() {
		c.selector.SetDisabled(false)
	}
	c.view.ShowPlayButton(s.streamID)
}

// teardown stops the slot's session and deletes its player.
func (c *Controller) teardown(s *Slot) error {
	var err error
	if sess := s.takeSession(); sess != nil {
		ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
		err = sess.Stop(ctx)
		cancel()
		metrics.ActiveSlots.Dec()
		c.deps.Health.SetSlotServing(s.streamID, false)
	}
	s.player.DeletePlayer()
	return err
}

func (c *Controller) handleConnect(s *Slot, connectionID string) {
	sess := s.currentSession()
	if sess == nil {
		return
	}
	s.logger.Info("connected", zap.String("connection", connectionID))

	ch, err := sess.CreateDataChannel(fmt.Sprintf("input%d", s.streamID))
	if err != nil {
		s.logger.Warn("create input channel", zap.Error(err))
	} else {
		s.player.SetupInput(ch)
	}
	s.poller.Start(s)
}

func (c *Controller) handleDisconnect(s *Slot, connectionID string) {
	sess := s.currentSession()
	if sess == nil || sess.ConnectionID() != connectionID {
		s.logger.Debug("ignoring disconnect for stale connection", zap.String("connection", connectionID))
		return
	}
	metrics.DisconnectsTotal.Inc()
	s.poller.Clear()
	c.view.ShowMessage(fmt.Sprintf("Disconnect peer on %s.", connectionID))

	if err := c.teardown(s); err != nil {
		s.logger.Warn("stop session", zap.Error(err))
	}
	if c.selector.Supported() {
		c.selector.SetDisabled(false)
	}
	c.view.ShowPlayButton(s.streamID)
	s.logger.Info("disconnected", zap.String("connection", connectionID))
}

func (c *Controller) handleGotOffer(s *Slot, connectionID string) {
	sess := s.currentSession()
	if sess == nil {
		return
	}
	n, err := codec.SetPreferences(c.selector, c.caps, sess.Transceivers())
	if err != nil {
		metrics.CodecPreferenceErrorsTotal.Inc()
		s.logger.Warn("set codec preferences", zap.String("connection", connectionID), zap.Error(err))
	}
	if n > 0 {
		s.logger.Info("codec preference applied",
			zap.String("codec", c.selector.Selected()),
			zap.Int("transceivers", n),
		)
	}
}

// routeTrack hands a remote track to the player of streamID.
func (c *Controller) routeTrack(streamID int, track player.Track) {
	s, err := c.slot(streamID)
	if err != nil {
		c.logger.Warn("track for unknown stream", zap.Int("stream", streamID))
		return
	}
	if err := s.player.AddTrack(track); err != nil {
		s.logger.Warn("add track", zap.Error(err))
	}
}

// SelectCodec sets the codec selector; it fails while a session holds it disabled.
func (c *Controller) SelectCodec(value string) error {
	return c.selector.Select(value)
}

// SendInput forwards input bytes to the remote application of streamID.
func (c *Controller) SendInput(streamID int, data []byte) error {
	s, err := c.slot(streamID)
	if err != nil {
		return err
	}
	return s.player.SendInput(data)
}

// Resize fits every player into a window of width x height.
func (c *Controller) Resize(width, height int) map[int]player.Viewport {
	out := make(map[int]player.Viewport, len(c.slots))
	for _, s := range c.slots {
		out[s.streamID] = s.player.ResizeVideo(width, height)
	}
	return out
}

// Shutdown stops every active session.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.deps.Health.SetServing(false)

	var err error
	for _, s := range c.slots {
		s.poller.Clear()
		sess := s.takeSession()
		if sess == nil {
			continue
		}
		if e := sess.Stop(ctx); e != nil {
			err = multierr.Append(err, fmt.Errorf("stop stream %d: %w", s.streamID, e))
		}
		metrics.ActiveSlots.Dec()
		c.deps.Health.SetSlotServing(s.streamID, false)
		s.player.DeletePlayer()
	}
	c.logger.Info("receiver shutdown complete")
	return err
}

// Package player is the receiving end of one stream: it consumes remote
// tracks, records them, meters audio and forwards input to the remote app.
package player

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/RenatoCabral2022/renderstreaming-receiver/internal/audio"
	"github.com/RenatoCabral2022/renderstreaming-receiver/internal/metrics"
	"github.com/RenatoCabral2022/renderstreaming-receiver/internal/ringbuffer"
)

var (
	ErrNotCreated     = errors.New("player not created")
	ErrAlreadyCreated = errors.New("player already created")
	ErrNoInputChannel = errors.New("no input channel")
	ErrInputNotOpen   = errors.New("input channel not open")
)

const (
	levelWindow        = 100 * time.Millisecond
	levelUpdatePackets = 50
	deleteWaitTimeout  = 2 * time.Second
)

// Track is the part of *webrtc.TrackRemote the player reads from.
type Track interface {
	ID() string
	Kind() webrtc.RTPCodecType
	Codec() webrtc.RTPCodecParameters
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

// InputChannel is the data channel input events are forwarded on.
// *webrtc.DataChannel satisfies it.
type InputChannel interface {
	Label() string
	Send(data []byte) error
	ReadyState() webrtc.DataChannelState
}

// ContainerID returns the element id a stream renders into.
func ContainerID(streamID int) string {
	switch streamID {
	case 1:
		return "player"
	case 2:
		return "secondPlayer"
	default:
		return "player" + strconv.Itoa(streamID)
	}
}

// Options configure a player.
type Options struct {
	RecordDir      string
	AudioBufferSec int
	VideoAspect    float64
}

// Viewport is the letterboxed video rectangle inside the window.
type Viewport struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// TrackInfo is a snapshot of one consumed track.
type TrackInfo struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	Codec   string `json:"codec"`
	Packets uint64 `json:"packets"`
	Bytes   uint64 `json:"bytes"`
}

// Info is a snapshot of the player.
type Info struct {
	Container  string      `json:"container"`
	LockMouse  bool        `json:"lockMouse"`
	InputReady bool        `json:"inputReady"`
	Viewport   Viewport    `json:"viewport"`
	Tracks     []TrackInfo `json:"tracks"`
	AudioLevel *float64    `json:"audioLevelDbfs,omitempty"`
}

type trackSink struct {
	id      string
	kind    webrtc.RTPCodecType
	codec   string
	packets atomic.Uint64
	bytes   atomic.Uint64
}

// Player consumes the media of one stream.
type Player struct {
	streamID int
	opts     Options
	logger   *zap.Logger
	audio    *ringbuffer.RingBuffer

	mu        sync.Mutex
	created   bool
	container string
	lockMouse bool
	input     InputChannel
	viewport  Viewport
	hasAudio  bool
	sinks     []*trackSink
	wg        sync.WaitGroup
}

// New creates a player for streamID. It renders nothing until CreatePlayer.
func New(streamID int, opts Options, logger *zap.Logger) *Player {
	if opts.VideoAspect <= 0 {
		opts.VideoAspect = 16.0 / 9.0
	}
	return &Player{
		streamID: streamID,
		opts:     opts,
		logger:   logger.With(zap.Int("stream", streamID)),
		audio:    ringbuffer.New(opts.AudioBufferSec),
	}
}

// CreatePlayer binds the player to its container.
func (p *Player) CreatePlayer(container string, lockMouse bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.created {
		return ErrAlreadyCreated
	}
	p.created = true
	p.container = container
	p.lockMouse = lockMouse
	p.sinks = nil
	p.hasAudio = false
	p.audio.Reset()
	p.logger.Info("player created", zap.String("container", container), zap.Bool("lockMouse", lockMouse))
	return nil
}

// AddTrack starts consuming track until it ends.
func (p *Player) AddTrack(track Track) error {
	codec := track.Codec()
	sink := &trackSink{id: track.ID(), kind: track.Kind(), codec: codec.MimeType}

	p.mu.Lock()
	if !p.created {
		p.mu.Unlock()
		return ErrNotCreated
	}
	p.sinks = append(p.sinks, sink)
	if sink.kind == webrtc.RTPCodecTypeAudio {
		p.hasAudio = true
	}
	p.wg.Add(1)
	p.mu.Unlock()

	rec, err := newRecorder(p.opts.RecordDir, p.streamID, sink.id, codec)
	if err != nil {
		p.logger.Warn("recording disabled for track", zap.String("track", sink.id), zap.Error(err))
		rec = nil
	}

	var dec *audio.Decoder
	if codec.MimeType == webrtc.MimeTypeOpus {
		if dec, err = audio.NewDecoder(); err != nil {
			p.logger.Warn("audio metering disabled", zap.Error(err))
			dec = nil
		}
	}

	p.logger.Info("track added",
		zap.String("track", sink.id),
		zap.String("kind", sink.kind.String()),
		zap.String("codec", codec.MimeType),
	)
	go p.readLoop(track, sink, rec, dec)
	return nil
}

func (p *Player) readLoop(track Track, sink *trackSink, rec recorder, dec *audio.Decoder) {
	defer p.wg.Done()
	kind := sink.kind.String()
	logger := p.logger.With(zap.String("track", sink.id))

	var bufs *audio.InboundFrameBuffers
	if dec != nil {
		bufs = audio.AcquireInboundBuffers()
		defer audio.ReleaseInboundBuffers(bufs)
	}
	defer func() {
		if rec != nil {
			if err := rec.Close(); err != nil {
				logger.Warn("close recorder", zap.Error(err))
			}
		}
	}()

	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			logger.Info("track ended", zap.Error(err), zap.Uint64("packets", sink.packets.Load()))
			return
		}
		n := sink.packets.Add(1)
		sink.bytes.Add(uint64(len(pkt.Payload)))
		metrics.RTPPacketsTotal.WithLabelValues(kind).Inc()
		metrics.RTPBytesTotal.WithLabelValues(kind).Add(float64(len(pkt.Payload)))

		if rec != nil {
			if err := rec.WriteRTP(pkt); err != nil {
				logger.Warn("recording stopped", zap.Error(err))
				rec.Close()
				rec = nil
			}
		}

		if dec != nil {
			pcm, err := dec.Decode(pkt.Payload, bufs)
			if err != nil {
				metrics.DecodeErrorsTotal.Inc()
				continue
			}
			p.audio.Write(pcm)
			if n%levelUpdatePackets == 0 {
				metrics.AudioLevel.WithLabelValues(strconv.Itoa(p.streamID)).Set(audio.LevelDBFS(p.audio.Snapshot(levelWindow)))
			}
		}
	}
}

// SetupInput binds the data channel input events are sent on.
func (p *Player) SetupInput(ch InputChannel) {
	p.mu.Lock()
	p.input = ch
	p.mu.Unlock()
	p.logger.Info("input channel bound", zap.String("label", ch.Label()))
}

// SendInput forwards raw input bytes to the remote application.
func (p *Player) SendInput(data []byte) error {
	p.mu.Lock()
	ch := p.input
	p.mu.Unlock()
	if ch == nil {
		return ErrNoInputChannel
	}
	if ch.ReadyState() != webrtc.DataChannelStateOpen {
		return ErrInputNotOpen
	}
	if err := ch.Send(data); err != nil {
		return fmt.Errorf("send input on %s: %w", ch.Label(), err)
	}
	return nil
}

// DeletePlayer unbinds the player. Readers stop once their tracks end; it
// waits briefly for them so recordings are closed.
func (p *Player) DeletePlayer() {
	p.mu.Lock()
	if !p.created {
		p.mu.Unlock()
		return
	}
	p.created = false
	p.input = nil
	p.viewport = Viewport{}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(deleteWaitTimeout):
		p.logger.Warn("track readers still running after delete")
	}
	metrics.AudioLevel.DeleteLabelValues(strconv.Itoa(p.streamID))
	p.logger.Info("player deleted")
}

// ResizeVideo fits the stream into a width x height window, keeping the
// aspect ratio and centring the result.
func (p *Player) ResizeVideo(width, height int) Viewport {
	v := letterbox(width, height, p.opts.VideoAspect)
	p.mu.Lock()
	if p.created {
		p.viewport = v
	}
	p.mu.Unlock()
	return v
}

func letterbox(width, height int, aspect float64) Viewport {
	if width <= 0 || height <= 0 {
		return Viewport{}
	}
	if float64(width)/float64(height) > aspect {
		w := int(float64(height)*aspect + 0.5)
		return Viewport{X: (width - w) / 2, Width: w, Height: height}
	}
	h := int(float64(width)/aspect + 0.5)
	return Viewport{Y: (height - h) / 2, Width: width, Height: h}
}

// AudioLevel returns the level of the last 100ms of audio, if the stream has any.
func (p *Player) AudioLevel() (float64, bool) {
	p.mu.Lock()
	has := p.hasAudio
	p.mu.Unlock()
	if !has {
		return 0, false
	}
	return audio.LevelDBFS(p.audio.Snapshot(levelWindow)), true
}

// Created reports whether the player is bound to a container.
func (p *Player) Created() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.created
}

// Info returns a snapshot of the player.
func (p *Player) Info() Info {
	p.mu.Lock()
	info := Info{
		Container:  p.container,
		LockMouse:  p.lockMouse,
		InputReady: p.input != nil && p.input.ReadyState() == webrtc.DataChannelStateOpen,
		Viewport:   p.viewport,
		Tracks:     make([]TrackInfo, 0, len(p.sinks)),
	}
	for _, s := range p.sinks {
		info.Tracks = append(info.Tracks, TrackInfo{
			ID:      s.id,
			Kind:    s.kind.String(),
			Codec:   s.codec,
			Packets: s.packets.Load(),
			Bytes:   s.bytes.Load(),
		})
	}
	p.mu.Unlock()

	if level, ok := p.AudioLevel(); ok {
		info.AudioLevel = &level
	}
	return info
}

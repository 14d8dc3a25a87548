package player

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/RenatoCabral2022/renderstreaming-receiver/internal/audio"
)

type fakeTrack struct {
	id    string
	kind  webrtc.RTPCodecType
	codec string
	pkts  chan *rtp.Packet
}

func newFakeTrack(id string, kind webrtc.RTPCodecType, codec string) *fakeTrack {
	return &fakeTrack{id: id, kind: kind, codec: codec, pkts: make(chan *rtp.Packet, 16)}
}

func (t *fakeTrack) ID() string                { return t.id }
func (t *fakeTrack) Kind() webrtc.RTPCodecType { return t.kind }
func (t *fakeTrack) Codec() webrtc.RTPCodecParameters {
	return webrtc.RTPCodecParameters{RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: t.codec, ClockRate: 90000}}
}

func (t *fakeTrack) ReadRTP() (*rtp.Packet, interceptor.Attributes, error) {
	pkt, ok := <-t.pkts
	if !ok {
		return nil, nil, io.EOF
	}
	return pkt, nil, nil
}

type fakeChannel struct {
	mu    sync.Mutex
	state webrtc.DataChannelState
	sent  [][]byte
	err   error
}

func (c *fakeChannel) Label() string { return "input1" }

func (c *fakeChannel) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, data)
	return nil
}

func (c *fakeChannel) ReadyState() webrtc.DataChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func TestContainerID(t *testing.T) {
	assert.Equal(t, "player", ContainerID(1))
	assert.Equal(t, "secondPlayer", ContainerID(2))
	assert.Equal(t, "player3", ContainerID(3))
}

func TestPlayerLifecycle(t *testing.T) {
	p := New(1, Options{}, zap.NewNop())

	assert.ErrorIs(t, p.AddTrack(newFakeTrack("v", webrtc.RTPCodecTypeVideo, webrtc.MimeTypeVP8)), ErrNotCreated)

	require.NoError(t, p.CreatePlayer("player", true))
	assert.ErrorIs(t, p.CreatePlayer("player", true), ErrAlreadyCreated)
	assert.True(t, p.Created())

	track := newFakeTrack("video-track", webrtc.RTPCodecTypeVideo, webrtc.MimeTypeVP8)
	require.NoError(t, p.AddTrack(track))
	track.pkts <- &rtp.Packet{Payload: make([]byte, 100)}
	track.pkts <- &rtp.Packet{Payload: make([]byte, 50)}

	require.Eventually(t, func() bool {
		info := p.Info()
		return len(info.Tracks) == 1 && info.Tracks[0].Packets == 2
	}, 2*time.Second, 5*time.Millisecond)

	info := p.Info()
	assert.Equal(t, "player", info.Container)
	assert.True(t, info.LockMouse)
	assert.Equal(t, uint64(150), info.Tracks[0].Bytes)
	assert.Equal(t, "video", info.Tracks[0].Kind)
	assert.Nil(t, info.AudioLevel)

	close(track.pkts)
	p.DeletePlayer()
	assert.False(t, p.Created())

	// a deleted player can be created again for the next session
	require.NoError(t, p.CreatePlayer("player", false))
	assert.Empty(t, p.Info().Tracks)
	p.DeletePlayer()
}

func TestSendInput(t *testing.T) {
	p := New(1, Options{}, zap.NewNop())
	require.NoError(t, p.CreatePlayer("player", false))

	assert.ErrorIs(t, p.SendInput([]byte{1}), ErrNoInputChannel)

	ch := &fakeChannel{state: webrtc.DataChannelStateConnecting}
	p.SetupInput(ch)
	assert.ErrorIs(t, p.SendInput([]byte{1}), ErrInputNotOpen)

	ch.mu.Lock()
	ch.state = webrtc.DataChannelStateOpen
	ch.mu.Unlock()
	require.NoError(t, p.SendInput([]byte{1, 2}))
	assert.Equal(t, [][]byte{{1, 2}}, ch.sent)
	assert.True(t, p.Info().InputReady)

	ch.mu.Lock()
	ch.err = errors.New("closed")
	ch.mu.Unlock()
	assert.ErrorContains(t, p.SendInput([]byte{3}), "send input on input1")

	p.DeletePlayer()
	assert.ErrorIs(t, p.SendInput([]byte{1}), ErrNoInputChannel)
}

func TestLetterbox(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		want          Viewport
	}{
		{"exact", 1920, 1080, Viewport{Width: 1920, Height: 1080}},
		{"wide window", 2000, 1080, Viewport{X: 40, Width: 1920, Height: 1080}},
		{"tall window", 1920, 1200, Viewport{Y: 60, Width: 1920, Height: 1080}},
		{"empty", 0, 100, Viewport{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, letterbox(tt.width, tt.height, 16.0/9.0))
		})
	}
}

func TestResizeVideo(t *testing.T) {
	p := New(2, Options{VideoAspect: 4.0 / 3.0}, zap.NewNop())
	v := p.ResizeVideo(800, 800)
	assert.Equal(t, Viewport{Y: 100, Width: 800, Height: 600}, v)
	assert.Equal(t, Viewport{}, p.Info().Viewport, "viewport only sticks to a created player")

	require.NoError(t, p.CreatePlayer(ContainerID(2), false))
	p.ResizeVideo(800, 800)
	assert.Equal(t, v, p.Info().Viewport)
	p.DeletePlayer()
}

func TestAudioLevel(t *testing.T) {
	p := New(1, Options{AudioBufferSec: 1}, zap.NewNop())
	_, ok := p.AudioLevel()
	assert.False(t, ok)

	p.mu.Lock()
	p.hasAudio = true
	p.mu.Unlock()
	level, ok := p.AudioLevel()
	require.True(t, ok)
	assert.Equal(t, audio.SilenceDBFS, level)

	samples := make([]int16, 1600)
	for i := range samples {
		samples[i] = 16384
	}
	p.audio.Write(audio.Int16ToBytesInto(samples, make([]byte, len(samples)*2)))
	level, _ = p.AudioLevel()
	assert.InDelta(t, -6.02, level, 0.1)
}

func TestRecordingName(t *testing.T) {
	assert.Equal(t, "stream1-abc.ivf", RecordingName(1, "{abc}", "ivf"))
	assert.Equal(t, "stream2-track.ogg", RecordingName(2, "{}", "ogg"))
}

func TestRecorderCreatesFile(t *testing.T) {
	dir := t.TempDir()
	p := New(1, Options{RecordDir: dir}, zap.NewNop())
	require.NoError(t, p.CreatePlayer("player", false))

	track := newFakeTrack("cam", webrtc.RTPCodecTypeVideo, webrtc.MimeTypeVP8)
	require.NoError(t, p.AddTrack(track))
	close(track.pkts)
	p.DeletePlayer()

	_, err := os.Stat(filepath.Join(dir, "stream1-cam.ivf"))
	assert.NoError(t, err)

	rec, err := newRecorder(dir, 1, "x", webrtc.RTPCodecParameters{RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeAV1}})
	assert.NoError(t, err)
	assert.Nil(t, rec)
}

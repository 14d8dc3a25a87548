package stats

import (
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/RenatoCabral2022/renderstreaming-receiver/internal/testutil"
)

func inbound(ts float64, bytes, packets float64) Report {
	return Report{
		"IT01V": {
			ID:        "IT01V",
			Type:      TypeInboundRTP,
			Kind:      "video",
			Timestamp: ts,
			CodecID:   "CIT01_96",
			Metrics: map[string]float64{
				MetricBytesReceived:   bytes,
				MetricPacketsReceived: packets,
				MetricPacketsLost:     0,
			},
		},
		"CIT01_96": {ID: "CIT01_96", Type: TypeCodec, MimeType: "video/VP8"},
	}
}

func TestCreateDisplayStringArrayBaseline(t *testing.T) {
	lines := CreateDisplayStringArray(inbound(1000, 100, 1), nil)
	assert.Equal(t, []string{
		"video codec: video/VP8",
		"video bytesReceived: 100",
		"video packetsReceived: 1",
		"video packetsLost: 0",
	}, lines)
}

func TestCreateDisplayStringArrayIdentical(t *testing.T) {
	a := inbound(1000, 100, 1)
	b := inbound(1000, 100, 1)
	assert.Empty(t, CreateDisplayStringArray(b, a))
}

func TestCreateDisplayStringArraySingleChange(t *testing.T) {
	prev := inbound(1000, 100, 5)
	next := inbound(2000, 100, 6)
	lines := CreateDisplayStringArray(next, prev)
	require.Len(t, lines, 1)
	assert.Equal(t, "video packetsReceived: 5 -> 6", lines[0])
}

func TestCreateDisplayStringArrayBitrate(t *testing.T) {
	prev := inbound(1000, 1000, 5)
	next := inbound(2000, 126000, 5)
	lines := CreateDisplayStringArray(next, prev)
	require.Len(t, lines, 1)
	assert.Equal(t, "video bytesReceived: 1000 -> 126000 (1000.00 kbit/s)", lines[0])
}

func TestCreateDisplayStringArrayCodecChange(t *testing.T) {
	prev := inbound(1000, 100, 1)
	next := inbound(1000, 100, 1)
	next["CIT01_96"] = Entry{ID: "CIT01_96", Type: TypeCodec, MimeType: "video/H264", SDPFmtpLine: "packetization-mode=1"}
	lines := CreateDisplayStringArray(next, prev)
	assert.Equal(t, []string{"video codec: video/VP8 -> video/H264 packetization-mode=1"}, lines)
}

func TestFromWebRTC(t *testing.T) {
	report := webrtc.StatsReport{
		"in": webrtc.InboundRTPStreamStats{
			ID:              "in",
			Type:            webrtc.StatsTypeInboundRTP,
			Timestamp:       webrtc.StatsTimestamp(1500),
			Kind:            "video",
			CodecID:         "codec",
			BytesReceived:   2048,
			PacketsReceived: 10,
			PacketsLost:     2,
			NACKCount:       1,
		},
		"codec": webrtc.CodecStats{
			ID:          "codec",
			Type:        webrtc.StatsTypeCodec,
			MimeType:    "video/VP8",
			SDPFmtpLine: "",
		},
		"pc": webrtc.PeerConnectionStats{ID: "pc", Type: webrtc.StatsTypePeerConnection},
	}

	r := FromWebRTC(report)
	require.Len(t, r, 2)
	in := r["in"]
	assert.Equal(t, TypeInboundRTP, in.Type)
	assert.Equal(t, 1500.0, in.Timestamp)
	assert.Equal(t, 2048.0, in.Metrics[MetricBytesReceived])
	assert.Equal(t, 2.0, in.Metrics[MetricPacketsLost])
	assert.Equal(t, "video/VP8", r["codec"].MimeType)
}

type fakeDisplay struct {
	mu      sync.Mutex
	shown   [][]string
	cleared int
}

func (d *fakeDisplay) ShowStats(lines []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shown = append(d.shown, lines)
}

func (d *fakeDisplay) ClearStats() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cleared++
}

func (d *fakeDisplay) shownCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.shown)
}

type seqSource struct {
	mu      sync.Mutex
	reports []Report
}

func (s *seqSource) Stats() (Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.reports) == 0 {
		return nil, false
	}
	r := s.reports[0]
	s.reports = s.reports[1:]
	return r, true
}

func TestPollerTick(t *testing.T) {
	d := &fakeDisplay{}
	p := NewPoller(time.Second, d, zap.NewNop())
	src := &seqSource{reports: []Report{
		inbound(1000, 100, 1),
		inbound(2000, 100, 1),
		inbound(3000, 100, 2),
	}}

	p.tick(src)
	assert.Equal(t, 1, d.shownCount())

	// identical metrics: nothing shown, but the snapshot is still retained
	p.tick(src)
	assert.Equal(t, 1, d.shownCount())
	assert.Equal(t, 2000.0, p.Last()["IT01V"].Timestamp)

	p.tick(src)
	require.Equal(t, 2, d.shownCount())
	assert.Equal(t, []string{"video packetsReceived: 1 -> 2"}, d.shown[1])

	// exhausted source: skipped, snapshot kept
	p.tick(src)
	assert.Equal(t, 2, d.shownCount())
	assert.NotNil(t, p.Last())

	p.tick(nil)
	assert.Equal(t, 2, d.shownCount())
}

func TestPollerStartAndClear(t *testing.T) {
	runtime.GC()
	baseline := runtime.NumGoroutine()

	d := &fakeDisplay{}
	p := NewPoller(5*time.Millisecond, d, zap.NewNop())
	src := &seqSource{reports: []Report{inbound(1000, 100, 1)}}

	p.Start(src)
	assert.True(t, p.Running())
	require.Eventually(t, func() bool { return d.shownCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	p.Clear()
	assert.False(t, p.Running())
	assert.Nil(t, p.Last())
	assert.Equal(t, 1, d.cleared)

	// restarting replaces the loop rather than stacking another one
	p.Start(src)
	p.Start(src)
	p.Clear()

	testutil.AssertNoGoroutineLeaks(t, baseline, 2)
}

func TestPollerConcurrentStart(t *testing.T) {
	runtime.GC()
	baseline := runtime.NumGoroutine()

	d := &fakeDisplay{}
	p := NewPoller(time.Millisecond, d, zap.NewNop())
	src := &seqSource{}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Start(src)
		}()
	}
	wg.Wait()
	assert.True(t, p.Running())

	p.Clear()
	assert.False(t, p.Running())

	// every loop started above must be gone after a single Clear
	testutil.AssertNoGoroutineLeaks(t, baseline, 2)
}

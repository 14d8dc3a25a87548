package codec

import (
	"errors"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransceiver struct {
	kind  webrtc.RTPCodecType
	err   error
	prefs [][]webrtc.RTPCodecParameters
}

func (f *fakeTransceiver) Kind() webrtc.RTPCodecType { return f.kind }

func (f *fakeTransceiver) SetCodecPreferences(c []webrtc.RTPCodecParameters) error {
	f.prefs = append(f.prefs, c)
	return f.err
}

func TestOptionsExcludeRepairCodecs(t *testing.T) {
	opts := Options(VideoCodecs)

	excluded := 0
	for _, c := range VideoCodecs {
		if c.MimeType == MimeTypeRED || c.MimeType == MimeTypeULPFEC || c.MimeType == MimeTypeRTX {
			excluded++
		}
	}
	require.Len(t, opts, len(VideoCodecs)-excluded)

	for _, o := range opts {
		assert.NotContains(t, o.Value, "rtx")
		assert.NotContains(t, o.Value, "red")
		assert.NotContains(t, o.Value, "ulpfec")
		assert.Equal(t, o.Value, o.Label)
	}
	assert.Equal(t, "video/VP8", opts[0].Value)
	assert.Equal(t, "video/VP9 profile-id=0", opts[1].Value)
}

func TestOptionValueRoundTrip(t *testing.T) {
	for _, c := range VideoCodecs {
		if !selectable(c.MimeType) {
			continue
		}
		mime, fmtp := ParseOption(OptionValue(c.RTPCodecCapability))
		found, ok := Find(VideoCodecs, mime, fmtp)
		require.True(t, ok, OptionValue(c.RTPCodecCapability))
		assert.Equal(t, c.PayloadType, found.PayloadType)
	}
}

func TestRegister(t *testing.T) {
	m := &webrtc.MediaEngine{}
	require.NoError(t, Register(m))
}

func TestSelectorLifecycle(t *testing.T) {
	s := NewSelector(true)
	assert.True(t, s.Disabled())
	assert.ErrorIs(t, s.Select("video/VP8"), ErrSelectorDisabled)

	require.NoError(t, s.Populate(VideoCodecs))
	assert.False(t, s.Disabled())
	require.NoError(t, s.Select("video/VP8"))
	assert.Equal(t, "video/VP8", s.Selected())
	assert.ErrorIs(t, s.Select("video/nope"), ErrUnknownOption)
	require.NoError(t, s.Select(""))
	assert.Empty(t, s.Selected())

	s.SetDisabled(true)
	assert.True(t, s.Disabled())
	s.SetDisabled(false)
	assert.False(t, s.Disabled())
}

func TestUnsupportedSelector(t *testing.T) {
	s := NewSelector(false)
	assert.ErrorIs(t, s.Populate(VideoCodecs), ErrUnsupported)
	assert.Empty(t, s.Options())
	s.SetDisabled(false)
	assert.True(t, s.Disabled())
}

func TestSetPreferencesAppliesToVideoOnly(t *testing.T) {
	s := NewSelector(true)
	require.NoError(t, s.Populate(VideoCodecs))
	value := "video/H264 level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42e01f"
	require.NoError(t, s.Select(value))

	v1 := &fakeTransceiver{kind: webrtc.RTPCodecTypeVideo}
	v2 := &fakeTransceiver{kind: webrtc.RTPCodecTypeVideo}
	a := &fakeTransceiver{kind: webrtc.RTPCodecTypeAudio}

	n, err := SetPreferences(s, VideoCodecs, []Transceiver{v1, a, v2})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, v1.prefs, 1)
	require.Len(t, v1.prefs[0], 1)
	assert.Equal(t, webrtc.PayloadType(125), v1.prefs[0][0].PayloadType)
	assert.Empty(t, a.prefs)
}

func TestSetPreferencesNoSelectionIsNoop(t *testing.T) {
	s := NewSelector(true)
	require.NoError(t, s.Populate(VideoCodecs))
	v := &fakeTransceiver{kind: webrtc.RTPCodecTypeVideo}

	n, err := SetPreferences(s, VideoCodecs, []Transceiver{v})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, v.prefs)

	n, err = SetPreferences(NewSelector(false), VideoCodecs, []Transceiver{v})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, v.prefs)
}

func TestSetPreferencesWithoutVideoTransceivers(t *testing.T) {
	s := NewSelector(true)
	require.NoError(t, s.Populate(VideoCodecs))
	require.NoError(t, s.Select("video/VP8"))

	n, err := SetPreferences(s, VideoCodecs, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSetPreferencesCollectsErrors(t *testing.T) {
	s := NewSelector(true)
	require.NoError(t, s.Populate(VideoCodecs))
	require.NoError(t, s.Select("video/VP8"))

	bad := &fakeTransceiver{kind: webrtc.RTPCodecTypeVideo, err: errors.New("rejected")}
	good := &fakeTransceiver{kind: webrtc.RTPCodecTypeVideo}
	n, err := SetPreferences(s, VideoCodecs, []Transceiver{bad, good})
	assert.Equal(t, 1, n)
	assert.ErrorContains(t, err, "rejected")
}

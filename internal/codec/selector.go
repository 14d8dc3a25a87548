package codec

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"go.uber.org/multierr"
)

var (
	ErrUnsupported      = errors.New("codec preferences not supported")
	ErrSelectorDisabled = errors.New("codec selector is disabled")
	ErrUnknownOption    = errors.New("unknown codec option")
)

// UnsupportedMessage is shown in place of the selector when codec preferences
// cannot be applied.
const UnsupportedMessage = `Current Browser does not support <a href="https://developer.mozilla.org/en-US/docs/Web/API/RTCRtpTransceiver/setCodecPreferences">RTCRtpTransceiver.setCodecPreferences</a>.`

// Selector is the codec <select> element. The empty value is the "Default"
// entry and means no preference.
type Selector struct {
	supported bool

	mu       sync.RWMutex
	options  []Option
	selected string
	disabled bool
}

// NewSelector creates an empty, disabled selector.
func NewSelector(supported bool) *Selector {
	return &Selector{supported: supported, disabled: true}
}

// Supported reports whether codec preferences can be applied at all.
func (s *Selector) Supported() bool {
	return s.supported
}

// Populate replaces the options with the selectable capabilities and enables
// the selector.
func (s *Selector) Populate(caps []webrtc.RTPCodecParameters) error {
	if !s.supported {
		return ErrUnsupported
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.options = Options(caps)
	s.selected = ""
	s.disabled = false
	return nil
}

// Select picks an option by value. The empty value resets to "Default".
func (s *Selector) Select(value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disabled {
		return ErrSelectorDisabled
	}
	if value == "" {
		s.selected = ""
		return nil
	}
	for _, o := range s.options {
		if o.Value == value {
			s.selected = value
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownOption, value)
}

// SetDisabled toggles the selector. Enabling an unsupported selector is a no-op.
func (s *Selector) SetDisabled(disabled bool) {
	if !disabled && !s.supported {
		return
	}
	s.mu.Lock()
	s.disabled = disabled
	s.mu.Unlock()
}

func (s *Selector) Disabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.disabled
}

func (s *Selector) Selected() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

func (s *Selector) Options() []Option {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Option, len(s.options))
	copy(out, s.options)
	return out
}

// Transceiver is the part of *webrtc.RTPTransceiver the preference setter needs.
type Transceiver interface {
	Kind() webrtc.RTPCodecType
	SetCodecPreferences(codecs []webrtc.RTPCodecParameters) error
}

// SetPreferences applies the selected codec to every video transceiver and
// returns how many were updated. Nothing is touched when there is no selection.
func SetPreferences(sel *Selector, caps []webrtc.RTPCodecParameters, transceivers []Transceiver) (int, error) {
	if sel == nil || !sel.Supported() {
		return 0, nil
	}
	value := sel.Selected()
	if value == "" {
		return 0, nil
	}
	mimeType, fmtp := ParseOption(value)
	selected, ok := Find(caps, mimeType, fmtp)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownOption, value)
	}

	var (
		applied int
		err     error
	)
	for _, t := range transceivers {
		if t == nil || t.Kind() != webrtc.RTPCodecTypeVideo {
			continue
		}
		if e := t.SetCodecPreferences([]webrtc.RTPCodecParameters{selected}); e != nil {
			err = multierr.Append(err, e)
			continue
		}
		applied++
	}
	return applied, err
}

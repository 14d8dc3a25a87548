package receiver

import (
	"github.com/RenatoCabral2022/renderstreaming-receiver/internal/codec"
	"github.com/RenatoCabral2022/renderstreaming-receiver/internal/player"
)

// CodecState is the codec selector as displayed.
type CodecState struct {
	Supported bool           `json:"supported"`
	Disabled  bool           `json:"disabled"`
	Selected  string         `json:"selected"`
	Options   []codec.Option `json:"options"`
}

// PlayButton is a slot's play button.
type PlayButton struct {
	ID      string `json:"id"`
	Visible bool   `json:"visible"`
}

// SlotState describes one slot.
type SlotState struct {
	StreamID     int          `json:"streamId"`
	Container    string       `json:"container"`
	PlayButton   PlayButton   `json:"playButton"`
	Active       bool         `json:"active"`
	ConnectionID string       `json:"connectionId,omitempty"`
	Player       *player.Info `json:"player,omitempty"`
}

// State is a snapshot of the whole page.
type State struct {
	Ready        bool        `json:"ready"`
	UseWebSocket bool        `json:"useWebSocket"`
	StartupMode  string      `json:"startupMode"`
	Warning      Element     `json:"warning"`
	Message      Element     `json:"message"`
	Codec        CodecState  `json:"codec"`
	Slots        []SlotState `json:"slots"`
}

// State returns a snapshot of the page.
func (c *Controller) State() State {
	c.mu.RLock()
	st := State{
		Ready:        c.ready,
		UseWebSocket: c.useWebSocket,
		StartupMode:  c.startupMode,
	}
	c.mu.RUnlock()

	st.Warning = c.view.Warning()
	st.Message = c.view.Message()
	st.Codec = CodecState{
		Supported: c.selector.Supported(),
		Disabled:  c.selector.Disabled(),
		Selected:  c.selector.Selected(),
		Options:   c.selector.Options(),
	}

	for _, s := range c.slots {
		ss := SlotState{
			StreamID:  s.streamID,
			Container: player.ContainerID(s.streamID),
			PlayButton: PlayButton{
				ID:      ButtonID(s.streamID),
				Visible: c.view.PlayButtonVisible(s.streamID),
			},
		}
		if sess := s.currentSession(); sess != nil {
			ss.Active = true
			ss.ConnectionID = sess.ConnectionID()
		}
		if s.player.Created() {
			info := s.player.Info()
			ss.Player = &info
		}
		st.Slots = append(st.Slots, ss)
	}
	return st
}

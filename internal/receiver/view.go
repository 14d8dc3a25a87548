package receiver

import (
	"strconv"
	"strings"
	"sync"
)

// WarningText is shown when the server runs in private startup mode.
const WarningText = "<h4>Warning</h4> This sample is not working on Private Mode."

// ButtonID returns the element id of a stream's play button.
func ButtonID(streamID int) string {
	switch streamID {
	case 1:
		return "playButton"
	case 2:
		return "secondPlayButton"
	default:
		return "playButton" + strconv.Itoa(streamID)
	}
}

// Element is a displayed block of the page.
type Element struct {
	Visible bool   `json:"visible"`
	HTML    string `json:"html"`
}

// View holds the page elements shared by every slot: the warning banner, the
// message area and the play buttons. The message area has a single writer at a
// time in practice; concurrent slots overwrite each other.
type View struct {
	mu      sync.RWMutex
	warning Element
	message Element
	buttons map[int]bool
}

func NewView() *View {
	return &View{buttons: make(map[int]bool)}
}

func (v *View) ShowWarning(html string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.warning = Element{Visible: true, HTML: html}
}

func (v *View) Warning() Element {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.warning
}

// ShowMessage replaces the message area and makes it visible.
func (v *View) ShowMessage(html string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.message = Element{Visible: true, HTML: html}
}

func (v *View) Message() Element {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.message
}

// ShowStats renders stats lines into the message area.
func (v *View) ShowStats(lines []string) {
	v.ShowMessage(strings.Join(lines, "<br>"))
}

// ClearStats empties and hides the message area.
func (v *View) ClearStats() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.message = Element{}
}

func (v *View) ShowPlayButton(streamID int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.buttons[streamID] = true
}

// HidePlayButton hides the button and reports whether it was visible.
func (v *View) HidePlayButton(streamID int) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	was := v.buttons[streamID]
	v.buttons[streamID] = false
	return was
}

func (v *View) PlayButtonVisible(streamID int) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.buttons[streamID]
}

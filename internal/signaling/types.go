package signaling

import (
	"context"
	"encoding/json"
	"fmt"
)

// Message types exchanged with the render-streaming server.
const (
	TypeConnect    = "connect"
	TypeDisconnect = "disconnect"
	TypeOffer      = "offer"
	TypeAnswer     = "answer"
	TypeCandidate  = "candidate"
)

// Signaling is the channel a render-streaming session negotiates over.
type Signaling interface {
	// Handle registers the handler for one message type.
	Handle(msgType string, h Handler)
	// Start opens the channel. ctx bounds the opening handshake only.
	Start(ctx context.Context) error
	// Stop closes the channel. Idempotent.
	Stop(ctx context.Context) error
	CreateConnection(ctx context.Context, connectionID string) error
	DeleteConnection(ctx context.Context, connectionID string) error
	SendOffer(ctx context.Context, connectionID, sdp string) error
	SendAnswer(ctx context.Context, connectionID, sdp string) error
	SendCandidate(ctx context.Context, connectionID string, c Candidate) error
}

// Message is a received signaling message, normalised across transports.
type Message struct {
	Type          string  `json:"type"`
	ConnectionID  string  `json:"connectionId,omitempty"`
	Polite        bool    `json:"polite,omitempty"`
	SDP           string  `json:"sdp,omitempty"`
	Candidate     string  `json:"candidate,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	Datetime      int64   `json:"datetime,omitempty"`
}

// Candidate is an ICE candidate in browser JSON form.
type Candidate struct {
	Candidate     string  `json:"candidate"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
	SDPMid        *string `json:"sdpMid,omitempty"`
}

// Envelope is the WebSocket wire wrapper. Offers, answers and candidates carry
// their body in Data; connect and disconnect are flat.
type Envelope struct {
	Type         string          `json:"type"`
	From         string          `json:"from,omitempty"`
	ConnectionID string          `json:"connectionId,omitempty"`
	Polite       bool            `json:"polite,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
}

type descriptionBody struct {
	ConnectionID string `json:"connectionId"`
	SDP          string `json:"sdp"`
}

type candidateBody struct {
	ConnectionID  string  `json:"connectionId"`
	Candidate     string  `json:"candidate"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
	SDPMid        *string `json:"sdpMid,omitempty"`
}

type connectionBody struct {
	ConnectionID string `json:"connectionId"`
}

// pollResponse is the body of GET /signaling.
type pollResponse struct {
	Messages []Message `json:"messages"`
	Datetime int64     `json:"datetime"`
}

type sessionResponse struct {
	SessionID string `json:"sessionId"`
}

// DecodeEnvelope unwraps a WebSocket frame into a Message.
func DecodeEnvelope(raw []byte) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Message{}, fmt.Errorf("unmarshal envelope: %w", err)
	}

	msg := Message{
		Type:         env.Type,
		ConnectionID: env.ConnectionID,
		Polite:       env.Polite,
	}
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			return Message{}, fmt.Errorf("unmarshal %s payload: %w", env.Type, err)
		}
		msg.Type = env.Type
		if env.Polite {
			msg.Polite = true
		}
	}
	if msg.ConnectionID == "" {
		msg.ConnectionID = env.From
	}
	return msg, nil
}

package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/RenatoCabral2022/renderstreaming-receiver/internal/metrics"
)

const writeTimeout = 5 * time.Second

// WebSocketURL derives the signaling endpoint of the server at serverURL for a
// stream. A zero streamID leaves the stream unspecified.
func WebSocketURL(serverURL string, streamID int) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/"
	q := url.Values{}
	if streamID > 0 {
		q.Set("streamId", strconv.Itoa(streamID))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// WebSocket implements render-streaming signaling over a single WebSocket.
type WebSocket struct {
	*Router

	url    string
	dialer *websocket.Dialer
	logger *zap.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	done    chan struct{}
	closing bool
}

// NewWebSocket creates a WebSocket signaling channel. Nothing is dialed until Start.
func NewWebSocket(wsURL string, logger *zap.Logger) *WebSocket {
	logger = logger.With(zap.String("signaling", "websocket"))
	return &WebSocket{
		Router: NewRouter(logger),
		url:    wsURL,
		dialer: websocket.DefaultDialer,
		logger: logger,
	}
}

// Start dials the server and starts reading messages.
func (s *WebSocket) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return nil
	}

	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial signaling %s: %w", s.url, err)
	}
	s.conn = conn
	s.closing = false
	s.done = make(chan struct{})
	go s.readLoop(conn, s.done)

	s.logger.Info("signaling connected", zap.String("url", s.url))
	return nil
}

// Stop closes the socket and waits for the read loop to exit.
func (s *WebSocket) Stop(ctx context.Context) error {
	s.mu.Lock()
	conn, done := s.conn, s.done
	s.conn, s.done = nil, nil
	s.closing = true
	if conn != nil {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}
	s.mu.Unlock()
	if conn == nil {
		return nil
	}

	err := conn.Close()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}

func (s *WebSocket) CreateConnection(_ context.Context, connectionID string) error {
	return s.send(Envelope{Type: TypeConnect, ConnectionID: connectionID})
}

// DeleteConnection tells the server and dispatches the disconnect locally.
func (s *WebSocket) DeleteConnection(_ context.Context, connectionID string) error {
	if err := s.send(Envelope{Type: TypeDisconnect, ConnectionID: connectionID}); err != nil {
		return err
	}
	return s.Dispatch(Message{Type: TypeDisconnect, ConnectionID: connectionID})
}

func (s *WebSocket) SendOffer(_ context.Context, connectionID, sdp string) error {
	return s.sendData(TypeOffer, connectionID, descriptionBody{ConnectionID: connectionID, SDP: sdp})
}

func (s *WebSocket) SendAnswer(_ context.Context, connectionID, sdp string) error {
	return s.sendData(TypeAnswer, connectionID, descriptionBody{ConnectionID: connectionID, SDP: sdp})
}

func (s *WebSocket) SendCandidate(_ context.Context, connectionID string, c Candidate) error {
	return s.sendData(TypeCandidate, connectionID, candidateBody{
		ConnectionID:  connectionID,
		Candidate:     c.Candidate,
		SDPMLineIndex: c.SDPMLineIndex,
		SDPMid:        c.SDPMid,
	})
}

func (s *WebSocket) sendData(msgType, connectionID string, body interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msgType, err)
	}
	return s.send(Envelope{Type: msgType, From: connectionID, Data: data})
}

func (s *WebSocket) send(env Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return ErrNotStarted
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := s.conn.WriteJSON(env); err != nil {
		metrics.SignalingErrorsTotal.WithLabelValues("websocket").Inc()
		return fmt.Errorf("send %s: %w", env.Type, err)
	}
	return nil
}

func (s *WebSocket) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			closing := s.closing
			s.mu.Unlock()
			if !closing && !errors.Is(err, websocket.ErrCloseSent) &&
				!websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				metrics.SignalingErrorsTotal.WithLabelValues("websocket").Inc()
				s.logger.Warn("signaling read failed", zap.Error(err))
			}
			return
		}
		if err := s.DispatchRaw(data); err != nil {
			s.logger.Warn("dispatch error", zap.Error(err))
		}
	}
}

package signaling

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"github.com/RenatoCabral2022/renderstreaming-receiver/internal/metrics"
)

const (
	sessionHeader   = "Session-Id"
	maxPollInterval = 30 * time.Second
)

var ErrNotStarted = errors.New("signaling not started")

// HTTP implements the render-streaming REST polling protocol.
type HTTP struct {
	*Router

	baseURL    string
	interval   time.Duration
	httpClient *http.Client
	logger     *zap.Logger

	mu        sync.Mutex
	sessionID string
	lastTime  int64
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewHTTP creates a polling signaling channel against baseURL.
func NewHTTP(baseURL string, interval time.Duration, logger *zap.Logger) *HTTP {
	if interval <= 0 {
		interval = time.Second
	}
	logger = logger.With(zap.String("signaling", "http"))
	return &HTTP{
		Router:     NewRouter(logger),
		baseURL:    baseURL,
		interval:   interval,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

// Start creates a signaling session and begins polling for messages.
func (s *HTTP) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.sessionID != "" {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	var resp sessionResponse
	if err := s.do(ctx, http.MethodPut, "/signaling", nil, &resp); err != nil {
		return fmt.Errorf("create signaling session: %w", err)
	}
	if resp.SessionID == "" {
		return fmt.Errorf("create signaling session: empty session id")
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.sessionID = resp.SessionID
	s.lastTime = 0
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	s.logger.Info("signaling session created", zap.String("sessionId", resp.SessionID))
	go s.pollLoop(loopCtx, done)
	return nil
}

// Stop ends polling and deletes the signaling session.
func (s *HTTP) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel, done, sessionID := s.cancel, s.done, s.sessionID
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}

	cancel()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	err := s.doSession(ctx, sessionID, http.MethodDelete, "/signaling", nil, nil)

	s.mu.Lock()
	s.sessionID = ""
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("delete signaling session: %w", err)
	}
	return nil
}

// CreateConnection registers connectionID with the server and dispatches the
// resulting connect message.
func (s *HTTP) CreateConnection(ctx context.Context, connectionID string) error {
	var resp Message
	if err := s.do(ctx, http.MethodPut, "/signaling/connection", connectionBody{ConnectionID: connectionID}, &resp); err != nil {
		return fmt.Errorf("create connection: %w", err)
	}
	resp.Type = TypeConnect
	if resp.ConnectionID == "" {
		resp.ConnectionID = connectionID
	}
	return s.Dispatch(resp)
}

// DeleteConnection removes connectionID and dispatches a disconnect message.
func (s *HTTP) DeleteConnection(ctx context.Context, connectionID string) error {
	if err := s.do(ctx, http.MethodDelete, "/signaling/connection", connectionBody{ConnectionID: connectionID}, nil); err != nil {
		return fmt.Errorf("delete connection: %w", err)
	}
	return s.Dispatch(Message{Type: TypeDisconnect, ConnectionID: connectionID})
}

func (s *HTTP) SendOffer(ctx context.Context, connectionID, sdp string) error {
	return s.do(ctx, http.MethodPost, "/signaling/offer", descriptionBody{ConnectionID: connectionID, SDP: sdp}, nil)
}

func (s *HTTP) SendAnswer(ctx context.Context, connectionID, sdp string) error {
	return s.do(ctx, http.MethodPost, "/signaling/answer", descriptionBody{ConnectionID: connectionID, SDP: sdp}, nil)
}

func (s *HTTP) SendCandidate(ctx context.Context, connectionID string, c Candidate) error {
	return s.do(ctx, http.MethodPost, "/signaling/candidate", candidateBody{
		ConnectionID:  connectionID,
		Candidate:     c.Candidate,
		SDPMLineIndex: c.SDPMLineIndex,
		SDPMid:        c.SDPMid,
	}, nil)
}

func (s *HTTP) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.interval
	b.MaxInterval = maxPollInterval
	b.MaxElapsedTime = 0

	wait := s.interval
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		if err := s.poll(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			metrics.SignalingErrorsTotal.WithLabelValues("http").Inc()
			wait = b.NextBackOff()
			s.logger.Warn("signaling poll failed", zap.Error(err), zap.Duration("retryIn", wait))
			continue
		}
		b.Reset()
		wait = s.interval
	}
}

func (s *HTTP) poll(ctx context.Context) error {
	s.mu.Lock()
	from := s.lastTime
	s.mu.Unlock()

	var resp pollResponse
	if err := s.do(ctx, http.MethodGet, "/signaling?fromtime="+strconv.FormatInt(from, 10), nil, &resp); err != nil {
		return err
	}

	s.mu.Lock()
	if resp.Datetime > s.lastTime {
		s.lastTime = resp.Datetime
	}
	s.mu.Unlock()

	for _, msg := range resp.Messages {
		if err := s.Dispatch(msg); err != nil {
			s.logger.Warn("dispatch error",
				zap.String("type", msg.Type),
				zap.String("connectionId", msg.ConnectionID),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (s *HTTP) do(ctx context.Context, method, path string, body, out interface{}) error {
	s.mu.Lock()
	sessionID := s.sessionID
	s.mu.Unlock()
	if sessionID == "" && !(method == http.MethodPut && path == "/signaling") {
		return ErrNotStarted
	}
	return s.doSession(ctx, sessionID, method, path, body, out)
}

func (s *HTTP) doSession(ctx context.Context, sessionID, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s body: %w", path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set(sessionHeader, sessionID)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(msg))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

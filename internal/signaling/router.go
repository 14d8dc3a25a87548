package signaling

import (
	"sync"

	"go.uber.org/zap"

	"github.com/RenatoCabral2022/renderstreaming-receiver/internal/metrics"
)

// Handler processes a specific message type.
type Handler func(msg Message) error

// Router dispatches incoming signaling messages to registered handlers.
type Router struct {
	logger *zap.Logger

	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRouter creates a new message router.
func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		logger:   logger,
		handlers: make(map[string]Handler),
	}
}

// Handle adds a handler for a specific message type, replacing any previous one.
func (r *Router) Handle(msgType string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[msgType] = h
}

// Dispatch routes a message to the handler for its type. Unknown types are dropped.
func (r *Router) Dispatch(msg Message) error {
	metrics.SignalingMessagesTotal.WithLabelValues(msg.Type).Inc()

	r.mu.RLock()
	h, ok := r.handlers[msg.Type]
	r.mu.RUnlock()
	if !ok {
		r.logger.Debug("unhandled signaling message", zap.String("type", msg.Type))
		return nil
	}
	return h(msg)
}

// DispatchRaw decodes a WebSocket frame and dispatches it.
func (r *Router) DispatchRaw(raw []byte) error {
	msg, err := DecodeEnvelope(raw)
	if err != nil {
		return err
	}
	return r.Dispatch(msg)
}

package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/RenatoCabral2022/renderstreaming-receiver/internal/codec"
	"github.com/RenatoCabral2022/renderstreaming-receiver/internal/player"
	"github.com/RenatoCabral2022/renderstreaming-receiver/internal/receiver"
)

const maxInputBytes = 64 << 10

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	rcv    Receiver
	logger *zap.Logger
}

// CodecRequest is the body of PUT /v1/codec. An empty value selects "Default".
type CodecRequest struct {
	Value string `json:"value"`
}

// ResizeRequest is the body of POST /v1/resize.
type ResizeRequest struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ResizeResponse maps stream ids to their new viewport.
type ResizeResponse struct {
	Viewports map[string]player.Viewport `json:"viewports"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// Health handles GET /healthz.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetState handles GET /v1/state.
func (h *Handlers) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.rcv.State())
}

func streamID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "streamId"))
	return id, err == nil
}

// PostPlay handles POST /v1/slots/{streamId}/play.
func (h *Handlers) PostPlay(w http.ResponseWriter, r *http.Request) {
	id, ok := streamID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid stream id")
		return
	}

	err := h.rcv.Play(r.Context(), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, h.rcv.State())
	case errors.Is(err, receiver.ErrUnknownSlot):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, receiver.ErrSlotBusy):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, receiver.ErrNotReady):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.logger.Warn("play failed", zap.Int("stream", id), zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

// PostInput handles POST /v1/slots/{streamId}/input. The body is sent as-is.
func (h *Handlers) PostInput(w http.ResponseWriter, r *http.Request) {
	id, ok := streamID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid stream id")
		return
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxInputBytes))
	if err != nil || len(data) == 0 {
		writeError(w, http.StatusBadRequest, "empty input")
		return
	}

	err = h.rcv.SendInput(id, data)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, receiver.ErrUnknownSlot):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, player.ErrNoInputChannel), errors.Is(err, player.ErrInputNotOpen):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

// PutCodec handles PUT /v1/codec.
func (h *Handlers) PutCodec(w http.ResponseWriter, r *http.Request) {
	var req CodecRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.rcv.SelectCodec(req.Value)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, h.rcv.State().Codec)
	case errors.Is(err, codec.ErrSelectorDisabled):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, codec.ErrUnknownOption):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// PostResize handles POST /v1/resize.
func (h *Handlers) PostResize(w http.ResponseWriter, r *http.Request) {
	var req ResizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Width <= 0 || req.Height <= 0 {
		writeError(w, http.StatusBadRequest, "width and height must be positive")
		return
	}

	views := h.rcv.Resize(req.Width, req.Height)
	resp := ResizeResponse{Viewports: make(map[string]player.Viewport, len(views))}
	for id, v := range views {
		resp.Viewports[strconv.Itoa(id)] = v
	}
	writeJSON(w, http.StatusOK, resp)
}

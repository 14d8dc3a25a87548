// Package api is the HTTP control surface of the receiver: page state, play
// buttons, codec selection, input forwarding and window resizes.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/RenatoCabral2022/renderstreaming-receiver/internal/middleware"
	"github.com/RenatoCabral2022/renderstreaming-receiver/internal/player"
	"github.com/RenatoCabral2022/renderstreaming-receiver/internal/receiver"
)

// Receiver is the controller the API drives.
type Receiver interface {
	State() receiver.State
	Play(ctx context.Context, streamID int) error
	SendInput(streamID int, data []byte) error
	SelectCodec(value string) error
	Resize(width, height int) map[int]player.Viewport
}

// NewRouter builds the control API.
func NewRouter(rcv Receiver, logger *zap.Logger) http.Handler {
	h := &Handlers{rcv: rcv, logger: logger}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/state", h.GetState)
		r.Put("/codec", h.PutCodec)
		r.Post("/resize", h.PostResize)
		r.Route("/slots/{streamId}", func(r chi.Router) {
			r.Post("/play", h.PostPlay)
			r.Post("/input", h.PostInput)
		})
	})
	return r
}

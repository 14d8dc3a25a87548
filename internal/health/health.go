// Package health exposes receiver readiness over the gRPC health protocol.
package health

import (
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Service is the overall receiver service name.
const Service = "receiver"

// SlotService is the health service name of one slot.
func SlotService(streamID int) string {
	return fmt.Sprintf("%s.slot.%d", Service, streamID)
}

// Server tracks the receiver's serving status. The receiver is NOT_SERVING
// until bootstrap completes; a slot is SERVING while it has a session.
type Server struct {
	hs *health.Server
}

// New creates a health server with every slot NOT_SERVING.
func New(slots int) *Server {
	hs := health.NewServer()
	hs.SetServingStatus(Service, healthpb.HealthCheckResponse_NOT_SERVING)
	for id := 1; id <= slots; id++ {
		hs.SetServingStatus(SlotService(id), healthpb.HealthCheckResponse_NOT_SERVING)
	}
	return &Server{hs: hs}
}

// Register adds the health service to a gRPC server.
func (s *Server) Register(g *grpc.Server) {
	healthpb.RegisterHealthServer(g, s.hs)
}

func (s *Server) SetServing(serving bool) {
	s.hs.SetServingStatus(Service, status(serving))
}

func (s *Server) SetSlotServing(streamID int, serving bool) {
	s.hs.SetServingStatus(SlotService(streamID), status(serving))
}

// Shutdown marks everything NOT_SERVING and ignores later updates.
func (s *Server) Shutdown() {
	s.hs.Shutdown()
}

func status(serving bool) healthpb.HealthCheckResponse_ServingStatus {
	if serving {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}

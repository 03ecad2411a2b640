package handler

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the name the store reports under in the gRPC health service.
const ServiceName = "stockledger.Inventory"

// GRPCHandler publishes store readiness over the standard gRPC health protocol.
type GRPCHandler struct {
	health *health.Server
}

func NewGRPCHandler() *GRPCHandler {
	h := &GRPCHandler{health: health.NewServer()}
	h.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

func (h *GRPCHandler) Register(server *grpc.Server) {
	healthpb.RegisterHealthServer(server, h.health)
}

// SetReady flips the store status once the table has been loaded.
func (h *GRPCHandler) SetReady(ready bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if ready {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus(ServiceName, status)
	h.health.SetServingStatus("", status)
}

// Shutdown reports NOT_SERVING for every service ahead of GracefulStop.
func (h *GRPCHandler) Shutdown() {
	h.health.Shutdown()
}

func (h *GRPCHandler) Server() healthpb.HealthServer {
	return h.health
}

package observability

import (
	"context"
	"log"
	"net"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServer exposes grpc.health.v1 for the service, SERVING while ping succeeds.
type HealthServer struct {
	server  *grpc.Server
	health  *health.Server
	service string
	ping    func(ctx context.Context) error
}

func NewHealthServer(service string, ping func(ctx context.Context) error) *HealthServer {
	server := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.UnaryInterceptor(GRPCServerMetricsUnaryInterceptor()),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(server, hs)

	h := &HealthServer{server: server, health: hs, service: service, ping: ping}
	h.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

// Serve blocks until the listener fails or Shutdown is called.
func (h *HealthServer) Serve(lis net.Listener) error {
	log.Printf("grpc health server listening addr=%s", lis.Addr())
	return h.server.Serve(lis)
}

// Refresh pings the dependency once and publishes the result.
func (h *HealthServer) Refresh(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := h.ping(ctx); err != nil {
		log.Printf("health check failed service=%s err=%v", h.service, err)
		h.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
		return
	}
	h.setStatus(healthpb.HealthCheckResponse_SERVING)
}

// Run refreshes the status every interval until ctx is done.
func (h *HealthServer) Run(ctx context.Context, interval time.Duration) {
	h.Refresh(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Refresh(ctx)
		}
	}
}

// Shutdown marks everything NOT_SERVING and stops the server.
func (h *HealthServer) Shutdown(ctx context.Context) error {
	h.health.Shutdown()
	done := make(chan struct{})
	go func() {
		h.server.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		h.server.Stop()
		return ctx.Err()
	}
}

func (h *HealthServer) setStatus(status healthpb.HealthCheckResponse_ServingStatus) {
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(h.service, status)
}

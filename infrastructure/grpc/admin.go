// Package grpc exposes the admin surface of the relay over gRPC.
package grpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	grpc3 "github.com/mama165/sdk-go/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

const ServiceName = "chat-relay"

// AdminServer serves the standard health protocol, driven by the relay readiness.
type AdminServer struct {
	server *grpc.Server
	health *health.Server
	log    *slog.Logger
}

func NewAdminServer(log *slog.Logger) *AdminServer {
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(grpc3.UnaryLoggingInterceptor(log)))
	h := health.NewServer()
	grpc_health_v1.RegisterHealthServer(s, h)
	h.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	h.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	return &AdminServer{server: s, health: h, log: log}
}

func (a *AdminServer) SetServing(serving bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	a.health.SetServingStatus("", status)
	a.health.SetServingStatus(ServiceName, status)
}

// Serve blocks until the listener fails or Stop is called.
func (a *AdminServer) Serve(listener net.Listener) error {
	a.log.Info("Starting admin gRPC server", "address", listener.Addr().String(), "at", time.Now().UTC())
	for serviceName := range a.server.GetServiceInfo() {
		a.log.Debug("📡 gRPC exposed services", "name", serviceName)
	}
	if err := a.server.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("admin gRPC server error: %w", err)
	}
	return nil
}

// Stop drains in-flight calls, giving up after ctx is done.
func (a *AdminServer) Stop(ctx context.Context) {
	a.health.Shutdown()
	done := make(chan struct{})
	go func() {
		a.server.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.server.Stop()
	}
}

package grpc

import (
	"context"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
)

func TestAdminServer_Health(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Given a running admin server
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	req.NoError(err)
	admin := NewAdminServer(logs.GetLoggerFromLevel(slog.LevelDebug))
	go func() { _ = admin.Serve(listener) }()
	defer admin.Stop(ctx)

	conn, err := grpc.NewClient(listener.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	req.NoError(err)
	defer conn.Close()
	client := grpc_health_v1.NewHealthClient(conn)

	// When the relay is not ready yet
	resp, err := client.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: ServiceName})

	// Then it reports not serving
	req.NoError(err)
	req.Equal(grpc_health_v1.HealthCheckResponse_NOT_SERVING, resp.Status)

	// When the relay becomes ready
	admin.SetServing(true)
	resp, err = client.Check(ctx, &grpc_health_v1.HealthCheckRequest{})

	// Then it reports serving
	req.NoError(err)
	req.Equal(grpc_health_v1.HealthCheckResponse_SERVING, resp.Status)
}

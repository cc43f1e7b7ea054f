package websocket

import (
	"chat-relay/auth"
	"chat-relay/services"
	"chat-relay/sink"
	"context"
	"log/slog"
	"net/http"
	"slices"
	"time"

	gorilla "github.com/gorilla/websocket"
)

type Config struct {
	AllowedOrigins []string
	SinkBufferSize int
	MaxMessageSize int64
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
}

func DefaultConfig() Config {
	return Config{
		SinkBufferSize: 256,
		MaxMessageSize: 64 * 1024,
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     54 * time.Second,
	}
}

// Gateway authenticates the handshake, upgrades it and runs one connection per socket.
type Gateway struct {
	ctx      context.Context
	service  services.IChatService
	upgrader gorilla.Upgrader
	config   Config
	log      *slog.Logger
}

// NewGateway binds connections to ctx: cancelling it closes every socket.
func NewGateway(ctx context.Context, service services.IChatService, config Config, log *slog.Logger) *Gateway {
	g := &Gateway{ctx: ctx, service: service, config: config, log: log}
	g.upgrader = gorilla.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     g.checkOrigin,
	}
	return g
}

func (g *Gateway) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(g.config.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(g.config.AllowedOrigins, "*") || slices.Contains(g.config.AllowedOrigins, origin)
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, err := g.service.Authenticate(auth.TokenFromRequest(r))
	if err != nil {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Debug("Websocket upgrade failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(g.ctx)
	out := sink.NewConnectionSink(g.config.SinkBufferSize)
	connID, err := g.service.Open(ctx, identity, out)
	if err != nil {
		cancel()
		g.log.Error("Unable to open connection", "user_id", identity.ID, "error", err)
		_ = conn.Close()
		return
	}
	g.log.Info("Connection opened", "conn_id", connID, "user_id", identity.ID)

	c := &connection{id: connID, conn: conn, sink: out, service: g.service, config: g.config, log: g.log}
	stop := context.AfterFunc(ctx, out.Close)
	go func() {
		defer func() {
			stop()
			cancel()
			g.service.Close(context.WithoutCancel(ctx), connID)
			g.log.Info("Connection closed", "conn_id", connID, "user_id", identity.ID)
		}()
		c.readPump(ctx)
	}()
	go c.writePump()
}

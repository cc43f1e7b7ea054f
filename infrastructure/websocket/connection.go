package websocket

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/services"
	"chat-relay/sink"
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	gorilla "github.com/gorilla/websocket"
)

type connection struct {
	id      domain.ConnID
	conn    *gorilla.Conn
	sink    *sink.ConnectionSink
	service services.IChatService
	config  Config
	log     *slog.Logger
}

// readPump decodes inbound frames and dispatches them until the socket fails.
// Frames that cannot be decoded are dropped, the connection stays open.
func (c *connection) readPump(ctx context.Context) {
	defer c.sink.Close()

	c.conn.SetReadLimit(c.config.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	})

	for {
		messageType, raw, err := c.conn.ReadMessage()
		if err != nil {
			if gorilla.IsUnexpectedCloseError(err, gorilla.CloseGoingAway, gorilla.CloseNormalClosure) {
				c.log.Warn("Unexpected websocket close", "conn_id", c.id, "error", err)
			}
			return
		}
		if messageType != gorilla.TextMessage {
			continue
		}
		cmd, err := Decode(raw)
		if err != nil {
			c.log.Debug("Frame dropped", "conn_id", c.id, "error", err)
			continue
		}
		if err = c.service.Dispatch(ctx, c.id, cmd); err != nil {
			if stderrors.Is(err, errors.ErrUnknownTarget) {
				return
			}
			c.log.Error("Command failed", "conn_id", c.id, "event", cmd.Name(), "error", err)
		}
	}
}

// writePump is the only writer of the socket.
func (c *connection) writePump() {
	ticker := time.NewTicker(c.config.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case e := <-c.sink.Events():
			data, err := Encode(e)
			if err != nil {
				c.log.Error("Unable to encode event", "conn_id", c.id, "event", e.Name, "error", err)
				continue
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err = c.conn.WriteMessage(gorilla.TextMessage, data); err != nil {
				c.log.Debug("Write failed", "conn_id", c.id, "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.conn.WriteMessage(gorilla.PingMessage, nil); err != nil {
				return
			}
		case <-c.sink.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			_ = c.conn.WriteMessage(gorilla.CloseMessage, gorilla.FormatCloseMessage(gorilla.CloseNormalClosure, ""))
			return
		}
	}
}

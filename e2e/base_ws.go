package e2e

import (
	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/infrastructure/websocket"
	"chat-relay/projection"
	"encoding/json"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/gookit/color"
	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
)

type BaseWsSuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseWsSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.RelayAddr == "" || s.Config.JwtSecret == "" {
		s.T().Skip("RELAY_ADDR and JWT_SECRET are required for end to end tests")
	}
}

// Client is one websocket session against the running relay.
// Every frame it reads is also folded into its Timeline.
type Client struct {
	s        *BaseWsSuite
	t        *testing.T
	name     string
	conn     *gorilla.Conn
	Timeline *projection.Timeline
}

// WsConn authenticates identity with a freshly minted token and opens a session.
func (s *BaseWsSuite) WsConn(t *testing.T, identity domain.Identity) *Client {
	header := fmt.Sprintf("  ====== %s connects ======", identity.DisplayName())
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)

	token, err := auth.NewVerifier(s.Config.JwtSecret).GenerateToken(identity, time.Hour)
	s.Require().NoError(err)
	u := url.URL{Scheme: "ws", Host: s.Config.RelayAddr, Path: "/ws", RawQuery: "token=" + url.QueryEscape(token)}
	conn, _, err := gorilla.DefaultDialer.Dial(u.String(), nil)
	s.Require().NoError(err, "Failed to connect to relay at "+s.Config.RelayAddr)
	t.Cleanup(func() { _ = conn.Close() })
	return &Client{s: s, t: t, name: identity.DisplayName(), conn: conn, Timeline: projection.NewTimeline(identity.ID)}
}

func (c *Client) Send(name string, data any) {
	raw, err := json.Marshal(data)
	c.s.Require().NoError(err)
	frame, err := json.Marshal(websocket.Frame{Event: name, Data: raw})
	c.s.Require().NoError(err)
	c.debug("->", frame)
	c.s.Require().NoError(c.conn.WriteMessage(gorilla.TextMessage, frame))
}

// Await skips frames until one named name arrives and decodes its data into into.
func (c *Client) Await(name string, into any) {
	deadline := time.Now().Add(10 * time.Second)
	for {
		c.s.Require().NoError(c.conn.SetReadDeadline(deadline))
		_, raw, err := c.conn.ReadMessage()
		c.s.Require().NoError(err, "%s waiting for %s", c.name, name)
		c.debug("<-", raw)
		var frame websocket.Frame
		c.s.Require().NoError(json.Unmarshal(raw, &frame))
		c.s.Require().NoError(c.Timeline.Apply(event.Name(frame.Event), frame.Data))
		if frame.Event != name {
			continue
		}
		if into != nil {
			c.s.Require().NoError(json.Unmarshal(frame.Data, into))
		}
		return
	}
}

func (c *Client) debug(direction string, frame []byte) {
	if c.s.Config.DebugJSON {
		c.t.Logf("%s %s %s", c.name, direction, frame)
	}
}

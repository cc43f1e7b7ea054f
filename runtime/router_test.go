package runtime

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/observability"
	"chat-relay/sink"
	"context"
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

type routerFixture struct {
	presence *Presence
	router   *Router
	metrics  *observability.Metrics
}

func newRouterFixture() routerFixture {
	presence := NewPresence()
	metrics := observability.NewNopMetrics()
	return routerFixture{
		presence: presence,
		router:   NewRouter(presence, logs.GetLoggerFromLevel(slog.LevelDebug), metrics),
		metrics:  metrics,
	}
}

func (f routerFixture) connect(t *testing.T, connID domain.ConnID, userID string) *sink.Recorder {
	t.Helper()
	require.NoError(t, f.presence.Register(connID, domain.Identity{ID: userID}))
	recorder := sink.NewRecorder(userID)
	f.router.Attach(connID, recorder)
	return recorder
}

func TestRouter_DeliversOncePerConnection(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newRouterFixture()
	a1 := f.connect(t, "a1", "alice")
	a2 := f.connect(t, "a2", "alice")
	b1 := f.connect(t, "b1", "bob")
	f.router.Join("a1", "room")
	f.router.Join("b1", "room")

	// When an audience selects a1 through the room, the identity and the connection
	audience := domain.Audience{Rooms: []domain.ConversationID{"room"}, Identities: []string{"alice"}, Connections: []domain.ConnID{"a1"}}
	delivered := f.router.Deliver(ctx, audience, event.New(event.TypingShow, nil))

	// Then every connection gets it exactly once
	req.Equal(3, delivered)
	req.Len(a1.Events(), 1)
	req.Len(a2.Events(), 1)
	req.Len(b1.Events(), 1)
	req.Equal(float64(3), testutil.ToFloat64(f.metrics.OutboundEvents.WithLabelValues(string(event.TypingShow))))
}

func TestRouter_ExcludeIdentity(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture()
	a1 := f.connect(t, "a1", "alice")
	a2 := f.connect(t, "a2", "alice")
	b1 := f.connect(t, "b1", "bob")

	delivered := f.router.Deliver(context.Background(), domain.Audience{Everyone: true}.Except("alice"), event.New(event.TypingHide, nil))

	req.Equal(1, delivered)
	req.Empty(a1.Events())
	req.Empty(a2.Events())
	req.Len(b1.Events(), 1)
}

func TestRouter_JoinLeaveDetach(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture()
	f.connect(t, "a1", "alice")

	// Join is idempotent and requires an attached connection
	f.router.Join("a1", "room")
	f.router.Join("a1", "room")
	f.router.Join("ghost", "room")
	req.Equal([]domain.ConnID{"a1"}, f.router.Members("room"))

	f.router.Leave("a1", "room")
	req.Empty(f.router.Members("room"))

	// Detach removes every membership
	f.router.Join("a1", "room")
	f.router.Join("a1", "other")
	f.router.Detach("a1")
	req.Empty(f.router.Members("room"))
	req.Empty(f.router.Members("other"))
	req.Zero(f.router.Deliver(context.Background(), domain.ToConnection("a1"), event.New(event.History, nil)))
}

func TestRouter_SlowConsumerIsDropped(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newRouterFixture()
	require.NoError(t, f.presence.Register("slow", domain.Identity{ID: "alice"}))
	slow := sink.NewConnectionSink(1)
	f.router.Attach("slow", slow)
	fast := f.connect(t, "fast", "bob")

	// When two events are broadcast to a sink of capacity one
	req.Equal(2, f.router.Deliver(ctx, domain.Audience{Everyone: true}, event.New(event.UsersUpdate, nil)))
	req.Equal(1, f.router.Deliver(ctx, domain.Audience{Everyone: true}, event.New(event.UsersUpdate, nil)))

	// Then the slow sink is closed while the others keep receiving
	<-slow.Done()
	req.Len(fast.Events(), 2)
	req.Equal(float64(1), testutil.ToFloat64(f.metrics.DroppedDeliveries))
}

package services

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/mocks"
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type delivery struct {
	audience domain.Audience
	event    event.Event
}

// routerSpy records every delivery and pretends each one reached `reached` connections.
type routerSpy struct {
	mu         sync.Mutex
	deliveries []delivery
	reached    int
}

func newRouterSpy(ctrl *gomock.Controller, reached int) (*mocks.MockIRouter, *routerSpy) {
	spy := &routerSpy{reached: reached}
	router := mocks.NewMockIRouter(ctrl)
	router.EXPECT().
		Deliver(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, audience domain.Audience, e event.Event) int {
			spy.mu.Lock()
			defer spy.mu.Unlock()
			spy.deliveries = append(spy.deliveries, delivery{audience: audience, event: e})
			return spy.reached
		}).
		AnyTimes()
	return router, spy
}

func (s *routerSpy) named(name event.Name) []delivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.Filter(s.deliveries, func(d delivery, _ int) bool { return d.event.Name == name })
}

func (s *routerSpy) all() []delivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]delivery(nil), s.deliveries...)
}

func openDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testLogger() *slog.Logger {
	return logs.GetLoggerFromLevel(slog.LevelDebug)
}

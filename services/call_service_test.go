package services

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/observability"
	"context"
	"encoding/json"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var offer = json.RawMessage(`{"type":"offer","sdp":"v=0"}`)

func newCallService(t *testing.T, reached int) (*CallService, *routerSpy, *observability.Metrics) {
	router, spy := newRouterSpy(gomock.NewController(t), reached)
	metrics := observability.NewNopMetrics()
	return NewCallService(router, testLogger(), metrics), spy, metrics
}

func TestCallService_FullCall(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	service, spy, metrics := newCallService(t, 1)

	// Given alice inviting bob
	req.NoError(service.Invite(ctx, alice, bob.ID, offer, true))
	incoming := spy.named(event.CallIncoming)
	req.Len(incoming, 1)
	req.Equal(domain.ToIdentity(bob.ID), incoming[0].audience)
	req.Equal(event.Incoming{CallerID: alice.ID, CallerName: "Alice", Offer: offer, IsVideo: true}, incoming[0].event.Payload)
	req.Equal(float64(1), testutil.ToFloat64(metrics.ActiveCalls))

	// When alice answers her own call, it is refused
	req.ErrorIs(service.Answer(ctx, alice, bob.ID, nil), errors.ErrNoCallSession)

	// When bob answers and both exchange candidates
	req.NoError(service.Answer(ctx, bob, alice.ID, json.RawMessage(`{"type":"answer"}`)))
	req.NoError(service.IceCandidate(ctx, alice, bob.ID, json.RawMessage(`{"c":1}`)))
	req.NoError(service.IceCandidate(ctx, bob, alice.ID, json.RawMessage(`{"c":2}`)))
	req.ErrorIs(service.IceCandidate(ctx, eve, alice.ID, nil), errors.ErrNoCallSession)

	// Then the session is active and a late reject is refused
	session, ok := service.Session(alice.ID)
	req.True(ok)
	req.Equal(CallActive, session.State)
	req.ErrorIs(service.Reject(ctx, bob, alice.ID), errors.ErrNoCallSession)
	req.Len(spy.named(event.CallAccepted), 1)
	req.Len(spy.named(event.CallIceCandidate), 2)

	// When bob hangs up
	req.NoError(service.End(ctx, bob, alice.ID))

	// Then alice is told and nobody is in a call anymore
	ended := spy.named(event.CallEnded)
	req.Len(ended, 1)
	req.Equal(domain.ToIdentity(alice.ID), ended[0].audience)
	_, ok = service.Session(bob.ID)
	req.False(ok)
	req.Zero(testutil.ToFloat64(metrics.ActiveCalls))
	req.ErrorIs(service.End(ctx, bob, alice.ID), errors.ErrNoCallSession)
}

func TestCallService_BusyCallee(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	service, spy, _ := newCallService(t, 1)

	// Given alice already calling bob
	req.NoError(service.Invite(ctx, alice, bob.ID, offer, false))

	// When eve calls bob
	req.NoError(service.Invite(ctx, eve, bob.ID, offer, false))

	// Then eve is rejected as busy and the first session is untouched
	rejected := spy.named(event.CallRejected)
	req.Len(rejected, 1)
	req.Equal(domain.ToIdentity(eve.ID), rejected[0].audience)
	req.Equal(event.Rejected{ResponderID: bob.ID, Reason: ReasonBusy}, rejected[0].event.Payload)
	session, ok := service.Session(bob.ID)
	req.True(ok)
	req.Equal(alice.ID, session.Caller.ID)
	_, ok = service.Session(eve.ID)
	req.False(ok)
}

func TestCallService_UnreachableCallee(t *testing.T) {
	req := require.New(t)
	service, spy, _ := newCallService(t, 0)

	req.NoError(service.Invite(context.Background(), alice, bob.ID, offer, false))

	rejected := spy.named(event.CallRejected)
	req.Len(rejected, 1)
	req.Equal(ReasonUnavailable, rejected[0].event.Payload.(event.Rejected).Reason)
	_, ok := service.Session(alice.ID)
	req.False(ok)
}

func TestCallService_RejectAndSelfCall(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	service, spy, _ := newCallService(t, 1)

	req.ErrorIs(service.Invite(ctx, alice, alice.ID, offer, false), errors.ErrInvalidPayload)

	req.NoError(service.Invite(ctx, alice, bob.ID, offer, false))
	req.NoError(service.Reject(ctx, bob, alice.ID))

	rejected := spy.named(event.CallRejected)
	req.Len(rejected, 1)
	req.Equal(event.Rejected{ResponderID: bob.ID}, rejected[0].event.Payload)
	_, ok := service.Session(alice.ID)
	req.False(ok)
}

func TestCallService_DropIdentity(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	service, spy, _ := newCallService(t, 1)
	req.NoError(service.Invite(ctx, alice, bob.ID, offer, false))

	// When bob's last connection goes away
	service.DropIdentity(ctx, bob.ID)
	service.DropIdentity(ctx, bob.ID)

	// Then alice gets a single call_ended
	ended := spy.named(event.CallEnded)
	req.Len(ended, 1)
	req.Equal(domain.ToIdentity(alice.ID), ended[0].audience)
	req.Equal(event.Ended{SenderID: bob.ID, Reason: ReasonDisconnected}, ended[0].event.Payload)
	_, ok := service.Session(alice.ID)
	req.False(ok)
}

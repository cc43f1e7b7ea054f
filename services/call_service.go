package services

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/observability"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

type CallState string

const (
	CallInvited CallState = "invited"
	CallActive  CallState = "active"
)

const (
	ReasonBusy         = "busy"
	ReasonUnavailable  = "unavailable"
	ReasonDisconnected = "disconnected"
)

// CallSession is the signaling state between a caller and a callee. Media never
// goes through the relay.
type CallSession struct {
	Caller  domain.Identity
	Callee  string
	IsVideo bool
	State   CallState
}

func (c *CallSession) peer(userID string) string {
	if userID == c.Caller.ID {
		return c.Callee
	}
	return c.Caller.ID
}

// CallService relays call signaling between personal channels. An identity takes
// part in at most one session at a time.
type CallService struct {
	mu      sync.Mutex
	byUser  map[string]*CallSession
	router  contract.IRouter
	log     *slog.Logger
	metrics *observability.Metrics
}

func NewCallService(router contract.IRouter, log *slog.Logger, metrics *observability.Metrics) *CallService {
	return &CallService{
		byUser:  make(map[string]*CallSession),
		router:  router,
		log:     log,
		metrics: metrics,
	}
}

// Invite opens a session and forwards the offer to the callee.
// A busy or unreachable callee is answered right away with call_rejected.
func (s *CallService) Invite(ctx context.Context, caller domain.Identity, target string, offer json.RawMessage, isVideo bool) error {
	if target == "" || target == caller.ID {
		return fmt.Errorf("call target %q: %w", target, errors.ErrInvalidPayload)
	}

	s.mu.Lock()
	if s.byUser[caller.ID] != nil || s.byUser[target] != nil {
		s.mu.Unlock()
		s.log.Debug("Call invite while busy", "caller", caller.ID, "callee", target)
		s.router.Deliver(ctx, domain.ToIdentity(caller.ID), event.New(event.CallRejected, event.Rejected{
			ResponderID: target,
			Reason:      ReasonBusy,
		}))
		return nil
	}
	session := &CallSession{Caller: caller, Callee: target, IsVideo: isVideo, State: CallInvited}
	s.byUser[caller.ID] = session
	s.byUser[target] = session
	s.refresh()
	s.mu.Unlock()

	delivered := s.router.Deliver(ctx, domain.ToIdentity(target), event.New(event.CallIncoming, event.Incoming{
		CallerID:     caller.ID,
		CallerName:   caller.DisplayName(),
		CallerAvatar: caller.Avatar,
		Offer:        offer,
		IsVideo:      isVideo,
	}))
	if delivered == 0 && s.remove(session) {
		s.router.Deliver(ctx, domain.ToIdentity(caller.ID), event.New(event.CallRejected, event.Rejected{
			ResponderID: target,
			Reason:      ReasonUnavailable,
		}))
	}
	return nil
}

// Answer is only accepted from the callee of an invited session.
func (s *CallService) Answer(ctx context.Context, callee domain.Identity, target string, answer json.RawMessage) error {
	s.mu.Lock()
	session := s.byUser[callee.ID]
	if session == nil || session.State != CallInvited || session.Callee != callee.ID || session.Caller.ID != target {
		s.mu.Unlock()
		return errors.ErrNoCallSession
	}
	session.State = CallActive
	s.mu.Unlock()

	s.router.Deliver(ctx, domain.ToIdentity(target), event.New(event.CallAccepted, event.Accepted{
		ResponderID: callee.ID,
		Answer:      answer,
	}))
	return nil
}

// IceCandidate is relayed in either direction while the session exists.
func (s *CallService) IceCandidate(ctx context.Context, sender domain.Identity, target string, candidate json.RawMessage) error {
	if _, err := s.session(sender.ID, target); err != nil {
		return err
	}
	s.router.Deliver(ctx, domain.ToIdentity(target), event.New(event.CallIceCandidate, event.Candidate{
		SenderID:  sender.ID,
		Candidate: candidate,
	}))
	return nil
}

// Reject tears down a session that was not answered yet.
func (s *CallService) Reject(ctx context.Context, responder domain.Identity, target string) error {
	s.mu.Lock()
	session := s.byUser[responder.ID]
	if session == nil || session.State != CallInvited || session.peer(responder.ID) != target {
		s.mu.Unlock()
		return errors.ErrNoCallSession
	}
	s.teardown(session)
	s.mu.Unlock()

	s.router.Deliver(ctx, domain.ToIdentity(target), event.New(event.CallRejected, event.Rejected{
		ResponderID: responder.ID,
	}))
	return nil
}

// End tears down an invited or active session.
func (s *CallService) End(ctx context.Context, sender domain.Identity, target string) error {
	s.mu.Lock()
	session := s.byUser[sender.ID]
	if session == nil || session.peer(sender.ID) != target {
		s.mu.Unlock()
		return errors.ErrNoCallSession
	}
	s.teardown(session)
	s.mu.Unlock()

	s.router.Deliver(ctx, domain.ToIdentity(target), event.New(event.CallEnded, event.Ended{
		SenderID: sender.ID,
	}))
	return nil
}

// DropIdentity ends the session of an identity whose last connection went away.
func (s *CallService) DropIdentity(ctx context.Context, userID string) {
	s.mu.Lock()
	session := s.byUser[userID]
	if session == nil {
		s.mu.Unlock()
		return
	}
	s.teardown(session)
	s.mu.Unlock()

	peer := session.peer(userID)
	s.log.Debug("Call ended by disconnect", "user", userID, "peer", peer)
	s.router.Deliver(ctx, domain.ToIdentity(peer), event.New(event.CallEnded, event.Ended{
		SenderID: userID,
		Reason:   ReasonDisconnected,
	}))
}

// Session returns a copy of the session userID takes part in.
func (s *CallService) Session(userID string) (CallSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session := s.byUser[userID]
	if session == nil {
		return CallSession{}, false
	}
	return *session, true
}

func (s *CallService) session(userID, peer string) (*CallSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session := s.byUser[userID]
	if session == nil || session.peer(userID) != peer {
		return nil, errors.ErrNoCallSession
	}
	return session, nil
}

// remove tears the session down unless something else already did.
func (s *CallService) remove(session *CallSession) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byUser[session.Caller.ID] != session {
		return false
	}
	s.teardown(session)
	return true
}

// teardown must be called with the lock held.
func (s *CallService) teardown(session *CallSession) {
	if s.byUser[session.Caller.ID] == session {
		delete(s.byUser, session.Caller.ID)
	}
	if s.byUser[session.Callee] == session {
		delete(s.byUser, session.Callee)
	}
	s.refresh()
}

// refresh must be called with the lock held.
func (s *CallService) refresh() {
	s.metrics.ActiveCalls.Set(float64(len(s.byUser) / 2))
}

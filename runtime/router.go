package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/observability"
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
)

// Router holds room membership and turns an Audience into deliveries.
// Membership is for delivery only, callers authorize before Join.
type Router struct {
	mu       sync.RWMutex
	sinks    map[domain.ConnID]contract.EventSink
	rooms    map[domain.ConversationID]Set[domain.ConnID]
	joined   map[domain.ConnID]Set[domain.ConversationID]
	presence *Presence
	log      *slog.Logger
	metrics  *observability.Metrics
}

func NewRouter(presence *Presence, log *slog.Logger, metrics *observability.Metrics) *Router {
	return &Router{
		sinks:    make(map[domain.ConnID]contract.EventSink),
		rooms:    make(map[domain.ConversationID]Set[domain.ConnID]),
		joined:   make(map[domain.ConnID]Set[domain.ConversationID]),
		presence: presence,
		log:      log,
		metrics:  metrics,
	}
}

func (r *Router) Attach(connID domain.ConnID, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[connID] = sink
}

// Detach removes the connection from every room it joined.
// Empty rooms are dropped so that the map does not grow forever.
func (r *Router) Detach(connID domain.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sinks, connID)
	for conversationID := range r.joined[connID] {
		r.leave(connID, conversationID)
	}
	delete(r.joined, connID)
}

// Join is idempotent.
func (r *Router) Join(connID domain.ConnID, conversationID domain.ConversationID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sinks[connID]; !ok {
		return
	}
	members, ok := r.rooms[conversationID]
	if !ok {
		members = make(Set[domain.ConnID])
		r.rooms[conversationID] = members
	}
	members.Add(connID)
	rooms, ok := r.joined[connID]
	if !ok {
		rooms = make(Set[domain.ConversationID])
		r.joined[connID] = rooms
	}
	rooms.Add(conversationID)
}

func (r *Router) Leave(connID domain.ConnID, conversationID domain.ConversationID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.leave(connID, conversationID)
	if rooms, ok := r.joined[connID]; ok {
		delete(rooms, conversationID)
		if len(rooms) == 0 {
			delete(r.joined, connID)
		}
	}
}

func (r *Router) leave(connID domain.ConnID, conversationID domain.ConversationID) {
	if members, ok := r.rooms[conversationID]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(r.rooms, conversationID)
		}
	}
}

// Members lists the connections joined to a conversation.
func (r *Router) Members(conversationID domain.ConversationID) []domain.ConnID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := make([]domain.ConnID, 0, len(r.rooms[conversationID]))
	for connID := range r.rooms[conversationID] {
		members = append(members, connID)
	}
	return members
}

type target struct {
	connID domain.ConnID
	sink   contract.EventSink
}

// Deliver sends e once to every connection the audience selects and returns how
// many connections accepted it. Sinks are consumed outside the lock.
func (r *Router) Deliver(ctx context.Context, audience domain.Audience, e event.Event) int {
	targets := r.resolve(audience)

	delivered := 0
	for _, t := range targets {
		err := t.sink.Consume(ctx, e)
		switch {
		case err == nil:
			delivered++
		case stderrors.Is(err, errors.ErrSlowConsumer):
			r.log.Warn("Connection too slow, dropped", "conn", t.connID, "event", e.Name)
			r.metrics.DroppedDeliveries.Inc()
		default:
			r.log.Debug("Delivery skipped", "conn", t.connID, "event", e.Name, "error", err)
		}
	}
	r.metrics.OutboundEvents.WithLabelValues(string(e.Name)).Add(float64(delivered))
	return delivered
}

func (r *Router) resolve(audience domain.Audience) []target {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(Set[domain.ConnID])
	var targets []target
	add := func(connID domain.ConnID) {
		if seen.Has(connID) {
			return
		}
		seen.Add(connID)
		sink, ok := r.sinks[connID]
		if !ok {
			return
		}
		if audience.ExcludeIdentity != "" {
			if identity, ok := r.presence.Identity(connID); ok && identity.ID == audience.ExcludeIdentity {
				return
			}
		}
		targets = append(targets, target{connID: connID, sink: sink})
	}

	if audience.Everyone {
		for connID := range r.sinks {
			add(connID)
		}
	}
	for _, conversationID := range audience.Rooms {
		for connID := range r.rooms[conversationID] {
			add(connID)
		}
	}
	for _, userID := range audience.Identities {
		for _, connID := range r.presence.Connections(userID) {
			add(connID)
		}
	}
	for _, connID := range audience.Connections {
		add(connID)
	}
	return targets
}

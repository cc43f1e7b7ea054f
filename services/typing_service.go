package services

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"log/slog"
	"sync"
	"time"
)

const DefaultTypingTimeout = 2 * time.Second

type typingKey struct {
	conversationID domain.ConversationID
	userID         string
}

type typingEntry struct {
	timer        *time.Timer
	generation   uint64
	owner        domain.ConnID
	conversation domain.Conversation
	identity     domain.Identity
}

// TypingService tracks who is typing where. Each (conversation, identity) pair owns one
// cancellable hide timer, re-armed by every start.
type TypingService struct {
	mu         sync.Mutex
	entries    map[typingKey]*typingEntry
	generation uint64
	timeout    time.Duration
	router     contract.IRouter
	resolver   contract.ConversationResolver
	log        *slog.Logger
}

func NewTypingService(router contract.IRouter, resolver contract.ConversationResolver,
	timeout time.Duration, log *slog.Logger) *TypingService {
	if timeout <= 0 {
		timeout = DefaultTypingTimeout
	}
	return &TypingService{
		entries:  make(map[typingKey]*typingEntry),
		timeout:  timeout,
		router:   router,
		resolver: resolver,
		log:      log,
	}
}

// Start broadcasts typing_show and (re-)arms the hide timer.
func (s *TypingService) Start(ctx context.Context, connID domain.ConnID, identity domain.Identity,
	conversationID domain.ConversationID) error {
	conversation, err := resolveAuthorized(s.resolver, conversationID, identity.ID)
	if err != nil {
		return err
	}
	key := typingKey{conversationID: conversation.ID, userID: identity.ID}

	s.mu.Lock()
	if previous, ok := s.entries[key]; ok {
		previous.timer.Stop()
	}
	s.generation++
	generation := s.generation
	s.entries[key] = &typingEntry{
		timer:        time.AfterFunc(s.timeout, func() { s.expire(key, generation) }),
		generation:   generation,
		owner:        connID,
		conversation: conversation,
		identity:     identity,
	}
	s.mu.Unlock()

	s.broadcast(ctx, event.TypingShow, conversation, identity)
	return nil
}

// Stop cancels the timer and broadcasts typing_hide right away.
func (s *TypingService) Stop(ctx context.Context, identity domain.Identity, conversationID domain.ConversationID) error {
	conversation, err := resolveAuthorized(s.resolver, conversationID, identity.ID)
	if err != nil {
		return err
	}
	key := typingKey{conversationID: conversation.ID, userID: identity.ID}

	s.mu.Lock()
	if entry, ok := s.entries[key]; ok {
		entry.timer.Stop()
		delete(s.entries, key)
	}
	s.mu.Unlock()

	s.broadcast(ctx, event.TypingHide, conversation, identity)
	return nil
}

// DropConnection cancels every timer armed by a connection and hides its indicators.
func (s *TypingService) DropConnection(ctx context.Context, connID domain.ConnID) {
	var dropped []*typingEntry
	s.mu.Lock()
	for key, entry := range s.entries {
		if entry.owner == connID {
			entry.timer.Stop()
			delete(s.entries, key)
			dropped = append(dropped, entry)
		}
	}
	s.mu.Unlock()

	for _, entry := range dropped {
		s.broadcast(ctx, event.TypingHide, entry.conversation, entry.identity)
	}
}

// Active counts armed timers.
func (s *TypingService) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// expire only acts for the generation that armed it, a re-armed timer wins.
func (s *TypingService) expire(key typingKey, generation uint64) {
	s.mu.Lock()
	entry, ok := s.entries[key]
	if !ok || entry.generation != generation {
		s.mu.Unlock()
		return
	}
	delete(s.entries, key)
	s.mu.Unlock()

	s.broadcast(context.Background(), event.TypingHide, entry.conversation, entry.identity)
}

func (s *TypingService) broadcast(ctx context.Context, name event.Name, conversation domain.Conversation, identity domain.Identity) {
	s.router.Deliver(ctx, domain.AudienceOf(conversation).Except(identity.ID), event.New(name, event.Typing{
		ConversationID: conversation.ID,
		UserID:         identity.ID,
		Username:       identity.DisplayName(),
	}))
}

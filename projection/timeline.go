// Package projection builds local timelines from delivered events.
// Handles ordering, deduplication and the status, reaction and tombstone updates.
// Does not emit events.
package projection

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Timeline is the view one participant builds from what the relay sends it.
// It implements contract.EventSink so it can be attached as a connection sink.
type Timeline struct {
	mu            sync.Mutex
	Owner         string
	conversations map[domain.ConversationID][]domain.Message
	index         map[string]position
}

type position struct {
	conversationID domain.ConversationID
	offset         int
}

func NewTimeline(owner string) *Timeline {
	return &Timeline{
		Owner:         owner,
		conversations: make(map[domain.ConversationID][]domain.Message),
		index:         make(map[string]position),
	}
}

func (t *Timeline) Consume(_ context.Context, e event.Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch payload := e.Payload.(type) {
	case domain.Message:
		switch e.Name {
		case event.ReceiveMessage:
			t.append(payload)
		case event.MessageUpdate:
			t.replace(payload)
		}
	case []domain.Message:
		t.prepend(payload)
	case event.HistoryPage:
		t.prepend(payload.Messages)
	case event.Deleted:
		t.mutate(payload.ID, func(m *domain.Message) {
			m.Content = domain.Tombstone
			m.Type = domain.TypeDeleted
		})
	case event.StatusUpdate:
		t.mutate(payload.MessageID, func(m *domain.Message) { m.AdvanceStatus(payload.Status) })
	case event.ReadUpdate:
		messages := t.conversations[payload.ConversationID]
		for i := range messages {
			if messages[i].SenderID != payload.ReadBy {
				messages[i].AdvanceStatus(domain.StatusRead)
			}
		}
	}
	return nil
}

// Apply decodes a wire frame and consumes it. Frames the timeline does not track are ignored.
func (t *Timeline) Apply(name event.Name, data json.RawMessage) error {
	var payload any
	var err error
	switch name {
	case event.ReceiveMessage, event.MessageUpdate:
		payload, err = decode[domain.Message](data)
	case event.History:
		payload, err = decode[[]domain.Message](data)
	case event.PagedHistory:
		payload, err = decode[event.HistoryPage](data)
	case event.MessageDeleted:
		payload, err = decode[event.Deleted](data)
	case event.MessageStatusUpdate:
		payload, err = decode[event.StatusUpdate](data)
	case event.MessagesReadUpdate:
		payload, err = decode[event.ReadUpdate](data)
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("unable to decode %s: %w", name, err)
	}
	return t.Consume(context.Background(), event.New(name, payload))
}

// Messages returns a copy of a conversation in display order.
func (t *Timeline) Messages(conversationID domain.ConversationID) []domain.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]domain.Message(nil), t.conversations[conversationID]...)
}

func (t *Timeline) Message(id string) (domain.Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	at, ok := t.index[id]
	if !ok {
		return domain.Message{}, false
	}
	return t.conversations[at.conversationID][at.offset], true
}

func (t *Timeline) append(message domain.Message) {
	if _, seen := t.index[message.ID]; seen {
		return
	}
	messages := t.conversations[message.ConversationID]
	t.index[message.ID] = position{conversationID: message.ConversationID, offset: len(messages)}
	t.conversations[message.ConversationID] = append(messages, message)
}

// prepend places older history before what is already known, per conversation.
func (t *Timeline) prepend(history []domain.Message) {
	older := map[domain.ConversationID][]domain.Message{}
	for _, message := range history {
		if _, seen := t.index[message.ID]; !seen {
			older[message.ConversationID] = append(older[message.ConversationID], message)
		}
	}
	for conversationID, messages := range older {
		merged := append(messages, t.conversations[conversationID]...)
		t.conversations[conversationID] = merged
		for offset, message := range merged {
			t.index[message.ID] = position{conversationID: conversationID, offset: offset}
		}
	}
}

func (t *Timeline) replace(message domain.Message) {
	t.mutate(message.ID, func(m *domain.Message) { *m = message })
}

func (t *Timeline) mutate(id string, fn func(*domain.Message)) {
	at, ok := t.index[id]
	if !ok {
		return
	}
	fn(&t.conversations[at.conversationID][at.offset])
}

func decode[T any](data json.RawMessage) (T, error) {
	var payload T
	err := json.Unmarshal(data, &payload)
	return payload, err
}

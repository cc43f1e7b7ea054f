// Package domain contains core concepts of the chat system.
// This file defines Conversation, the routable chat scope.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type ConversationID string

type Kind string

const (
	KindGlobal    Kind = "global"
	KindPrivate   Kind = "private"
	KindGroup     Kind = "group"
	KindCommunity Kind = "community"
	KindChannel   Kind = "channel"
)

const (
	GlobalConversationID ConversationID = "global"
	PairSeparator                       = "_"
	AnnouncementsName                   = "Announcements"
)

func (k Kind) Valid() bool {
	switch k {
	case KindGlobal, KindPrivate, KindGroup, KindCommunity, KindChannel:
		return true
	}
	return false
}

// Pair holds the two participants of a private conversation in canonical order.
type Pair struct {
	Low  string `json:"low"`
	High string `json:"high"`
}

func NewPair(a, b string) Pair {
	if b < a {
		a, b = b, a
	}
	return Pair{Low: a, High: b}
}

func (p Pair) ID() ConversationID {
	return ConversationID(p.Low + PairSeparator + p.High)
}

func (p Pair) Has(userID string) bool {
	return userID != "" && (p.Low == userID || p.High == userID)
}

func (p Pair) Members() []string {
	if p.Low == p.High {
		return []string{p.Low}
	}
	return []string{p.Low, p.High}
}

// Conversation is a typed chat scope. Pair is only set for private conversations
// and is computed once, when the conversation is first created.
type Conversation struct {
	ID        ConversationID `json:"id"`
	Kind      Kind           `json:"type"`
	Name      string         `json:"name,omitempty"`
	ParentID  ConversationID `json:"parent_id,omitempty"`
	CreatedBy string         `json:"created_by,omitempty"`
	CreatedAt int64          `json:"created_at,omitempty"`
	Pair      *Pair          `json:"pair,omitempty"`
}

// PrivateConversationID is the deterministic id of the private chat between a and b.
// Either party computes the same value without a lookup.
func PrivateConversationID(a, b string) ConversationID {
	return NewPair(a, b).ID()
}

func Global() Conversation {
	return Conversation{ID: GlobalConversationID, Kind: KindGlobal, Name: "Global"}
}

func Private(a, b string, at time.Time) Conversation {
	pair := NewPair(a, b)
	return Conversation{
		ID:        pair.ID(),
		Kind:      KindPrivate,
		Name:      "Private Chat",
		CreatedBy: a,
		CreatedAt: at.UnixMilli(),
		Pair:      &pair,
	}
}

// NewConversation builds a group, community or channel with an opaque generated id.
func NewConversation(kind Kind, name, createdBy string, parentID ConversationID, at time.Time) Conversation {
	return Conversation{
		ID:        ConversationID(uuid.NewString()),
		Kind:      kind,
		Name:      name,
		ParentID:  parentID,
		CreatedBy: createdBy,
		CreatedAt: at.UnixMilli(),
	}
}

// ResolvePrivate interprets id as the private conversation between participant and
// someone else. The id is never split blindly: it must start or end with the
// participant and recompute to exactly the same canonical id.
func ResolvePrivate(id ConversationID, participant string, at time.Time) (Conversation, bool) {
	raw := string(id)
	if participant == "" || id == GlobalConversationID {
		return Conversation{}, false
	}
	var candidates []string
	if other, ok := strings.CutPrefix(raw, participant+PairSeparator); ok {
		candidates = append(candidates, other)
	}
	if other, ok := strings.CutSuffix(raw, PairSeparator+participant); ok {
		candidates = append(candidates, other)
	}
	for _, other := range candidates {
		if other == "" {
			continue
		}
		if PrivateConversationID(participant, other) == id {
			return Private(participant, other, at), true
		}
	}
	return Conversation{}, false
}

func (c Conversation) IsGlobal() bool {
	return c.Kind == KindGlobal
}

func (c Conversation) IsPrivate() bool {
	return c.Kind == KindPrivate && c.Pair != nil
}

// Package domain contains core concepts of the chat system.
// This file defines Message and the rules of its lifecycle.
// A message is created once by its sender and only mutated through status
// transitions, reaction toggles and soft-deletion.
package domain

import (
	"time"

	"github.com/google/uuid"
)

type MessageType string

const (
	TypeText    MessageType = "text"
	TypeImage   MessageType = "image"
	TypeAudio   MessageType = "audio"
	TypeFile    MessageType = "file"
	TypeDeleted MessageType = "deleted"
)

// Tombstone replaces the content of a soft-deleted message.
const Tombstone = "🚫 This message was deleted"

// Creatable reports whether a client may create a message of this type.
func (t MessageType) Creatable() bool {
	switch t {
	case TypeText, TypeImage, TypeAudio, TypeFile:
		return true
	}
	return false
}

type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
)

func (s Status) rank() int {
	switch s {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	}
	return 0
}

func (s Status) Valid() bool {
	return s.rank() > 0
}

// Reaction is the presence of "UserID reacted with Emoji".
type Reaction struct {
	UserID string `json:"userId"`
	Emoji  string `json:"emoji"`
}

// ReplySnapshot is captured when the reply is created and never refreshed.
type ReplySnapshot struct {
	ID         string      `json:"id"`
	Content    string      `json:"content"`
	Type       MessageType `json:"type"`
	SenderName string      `json:"senderName,omitempty"`
}

type Message struct {
	ID             string         `json:"id"`
	ConversationID ConversationID `json:"conversationId"`
	SenderID       string         `json:"senderId"`
	Content        string         `json:"content"`
	Timestamp      int64          `json:"timestamp"`
	Type           MessageType    `json:"type"`
	Status         Status         `json:"status"`
	Reactions      []Reaction     `json:"reactions"`
	FileName       string         `json:"fileName,omitempty"`
	FileSize       int64          `json:"fileSize,omitempty"`
	Duration       float64        `json:"duration,omitempty"`
	ReplyToID      string         `json:"replyToId,omitempty"`
	ReplyTo        *ReplySnapshot `json:"replyToMessage,omitempty"`
}

// Prepare fills what the server owns on creation: id and timestamp when absent,
// the initial status and an empty reaction set.
func (m *Message) Prepare(now time.Time) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Timestamp == 0 {
		m.Timestamp = now.UnixMilli()
	}
	m.Status = StatusSent
	m.Reactions = []Reaction{}
	m.ReplyTo = nil
}

func (m Message) IsDeleted() bool {
	return m.Type == TypeDeleted
}

func (m Message) CreatedAt() time.Time {
	return time.UnixMilli(m.Timestamp).UTC()
}

// AdvanceStatus moves the status forward only. Requests for an earlier or equal
// status, or on a deleted message, are no-ops.
func (m *Message) AdvanceStatus(to Status) bool {
	if m.IsDeleted() || to.rank() <= m.Status.rank() {
		return false
	}
	m.Status = to
	return true
}

// ToggleReaction removes the (userID, emoji) pair when present, adds it otherwise.
// It reports whether the pair is present afterwards.
func (m *Message) ToggleReaction(userID, emoji string) bool {
	for i, r := range m.Reactions {
		if r.UserID == userID && r.Emoji == emoji {
			m.Reactions = append(m.Reactions[:i:i], m.Reactions[i+1:]...)
			return false
		}
	}
	m.Reactions = append(m.Reactions, Reaction{UserID: userID, Emoji: emoji})
	return true
}

// SoftDelete tombstones the message. Only the original sender may do it and the
// operation cannot be undone. It reports whether anything changed.
func (m *Message) SoftDelete(requesterID string) bool {
	if m.IsDeleted() || requesterID == "" || requesterID != m.SenderID {
		return false
	}
	m.Content = Tombstone
	m.Type = TypeDeleted
	return true
}

func (m Message) Snapshot(senderName string) ReplySnapshot {
	return ReplySnapshot{
		ID:         m.ID,
		Content:    m.Content,
		Type:       m.Type,
		SenderName: senderName,
	}
}

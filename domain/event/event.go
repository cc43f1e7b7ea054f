package event

import (
	"chat-relay/domain"
	"encoding/json"
)

// Name is the outbound wire event.
type Name string

const (
	UsersUpdate          Name = "users_update"
	History              Name = "history"
	PagedHistory         Name = "history_page"
	ReceiveMessage       Name = "receive_message"
	MessageUpdate        Name = "message_update"
	MessageDeleted       Name = "message_deleted"
	TypingShow           Name = "typing_show"
	TypingHide           Name = "typing_hide"
	MessageStatusUpdate  Name = "message_status_update"
	MessagesReadUpdate   Name = "messages_read_update"
	CallIncoming         Name = "call_incoming"
	CallAccepted         Name = "call_accepted"
	CallIceCandidate     Name = "call_ice_candidate"
	CallRejected         Name = "call_rejected"
	CallEnded            Name = "call_ended"
	SearchResults        Name = "search_results"
	ConversationCreated  Name = "conversation_created"
	ConversationsListing Name = "conversations"
	StoryPosted          Name = "status_update"
	Stories              Name = "statuses"
	Contacts             Name = "contacts"
)

// Event is what a sink receives and what the wire carries as {"event", "data"}.
type Event struct {
	Name    Name `json:"event"`
	Payload any  `json:"data"`
}

func New(name Name, payload any) Event {
	return Event{Name: name, Payload: payload}
}

type HistoryPage struct {
	ConversationID domain.ConversationID `json:"conversationId"`
	Messages       []domain.Message      `json:"messages"`
	Cursor         *string               `json:"cursor,omitempty"`
}

type Deleted struct {
	ID             string                `json:"id"`
	ConversationID domain.ConversationID `json:"conversationId"`
	Type           domain.MessageType    `json:"type"`
}

type Typing struct {
	ConversationID domain.ConversationID `json:"conversationId"`
	UserID         string                `json:"userId"`
	Username       string                `json:"username"`
}

type StatusUpdate struct {
	MessageID      string                `json:"messageId"`
	Status         domain.Status         `json:"status"`
	ConversationID domain.ConversationID `json:"conversationId"`
}

type ReadUpdate struct {
	ConversationID domain.ConversationID `json:"conversationId"`
	ReadBy         string                `json:"readBy"`
}

type Incoming struct {
	CallerID     string          `json:"callerId"`
	CallerName   string          `json:"callerName"`
	CallerAvatar string          `json:"callerAvatar,omitempty"`
	Offer        json.RawMessage `json:"offer"`
	IsVideo      bool            `json:"isVideo"`
}

type Accepted struct {
	ResponderID string          `json:"responderId"`
	Answer      json.RawMessage `json:"answer"`
}

type Candidate struct {
	SenderID  string          `json:"senderId"`
	Candidate json.RawMessage `json:"candidate"`
}

type Rejected struct {
	ResponderID string `json:"responderId"`
	Reason      string `json:"reason,omitempty"`
}

type Ended struct {
	SenderID string `json:"senderId"`
	Reason   string `json:"reason,omitempty"`
}

type SearchPage struct {
	ConversationID domain.ConversationID `json:"conversationId"`
	Query          string                `json:"query"`
	Messages       []domain.Message      `json:"messages"`
}

type Created struct {
	domain.Conversation
	Members []string `json:"members"`
}

// Poster announces that a user posted a status.
type Poster struct {
	UserID string `json:"userId"`
}

type ContactPage struct {
	Query    string            `json:"query"`
	Contacts []domain.Identity `json:"contacts"`
}

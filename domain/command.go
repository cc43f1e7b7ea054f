package domain

import "encoding/json"

// Command is an intent emitted by a connection. Name is the inbound wire event.
type Command interface {
	Name() string
}

// ConversationCommand is serialized with every other command of the same conversation.
type ConversationCommand interface {
	Command
	Conversation() ConversationID
}

const (
	CmdJoinConversation   = "join_conversation"
	CmdLeaveConversation  = "leave_conversation"
	CmdSendMessage        = "send_message"
	CmdTypingStart        = "typing_start"
	CmdTypingEnd          = "typing_end"
	CmdAddReaction        = "add_reaction"
	CmdMessageReaction    = "message_reaction"
	CmdDeleteMessage      = "delete_message"
	CmdMessageDelete      = "message_delete"
	CmdMarkRead           = "mark_read"
	CmdMarkDelivered      = "mark_delivered"
	CmdCallInvite         = "call_invite"
	CmdCallAnswer         = "call_answer"
	CmdCallIceCandidate   = "call_ice_candidate"
	CmdCallReject         = "call_reject"
	CmdCallEnd            = "call_end"
	CmdHistoryRequest     = "join_history_request"
	CmdSearchMessages     = "search_messages"
	CmdCreateConversation = "create_conversation"
	CmdListConversations  = "list_conversations"
	CmdCreateStatus       = "create_status"
	CmdListStatuses       = "list_statuses"
	CmdSearchContacts     = "search_contacts"
)

type JoinConversation struct {
	ConversationID ConversationID
}

func (JoinConversation) Name() string { return CmdJoinConversation }

type LeaveConversation struct {
	ConversationID ConversationID
}

func (LeaveConversation) Name() string { return CmdLeaveConversation }

type SendMessage struct {
	Message Message
}

func (SendMessage) Name() string                   { return CmdSendMessage }
func (c SendMessage) Conversation() ConversationID { return c.Message.ConversationID }

type StartTyping struct {
	ConversationID ConversationID
}

func (StartTyping) Name() string { return CmdTypingStart }

type StopTyping struct {
	ConversationID ConversationID
}

func (StopTyping) Name() string { return CmdTypingEnd }

type ToggleReaction struct {
	MessageID      string
	ConversationID ConversationID
	Emoji          string
	UserID         string
}

func (ToggleReaction) Name() string                   { return CmdAddReaction }
func (c ToggleReaction) Conversation() ConversationID { return c.ConversationID }

type DeleteMessage struct {
	MessageID      string
	ConversationID ConversationID
}

func (DeleteMessage) Name() string                   { return CmdDeleteMessage }
func (c DeleteMessage) Conversation() ConversationID { return c.ConversationID }

type MarkRead struct {
	ConversationID ConversationID
	UserID         string
}

func (MarkRead) Name() string                   { return CmdMarkRead }
func (c MarkRead) Conversation() ConversationID { return c.ConversationID }

type MarkDelivered struct {
	MessageID string
}

func (MarkDelivered) Name() string { return CmdMarkDelivered }

type CallInvite struct {
	TargetUserID string
	Offer        json.RawMessage
	IsVideo      bool
}

func (CallInvite) Name() string { return CmdCallInvite }

type CallAnswer struct {
	TargetUserID string
	Answer       json.RawMessage
}

func (CallAnswer) Name() string { return CmdCallAnswer }

type CallIceCandidate struct {
	TargetUserID string
	Candidate    json.RawMessage
}

func (CallIceCandidate) Name() string { return CmdCallIceCandidate }

type CallReject struct {
	TargetUserID string
}

func (CallReject) Name() string { return CmdCallReject }

type CallEnd struct {
	TargetUserID string
}

func (CallEnd) Name() string { return CmdCallEnd }

// RequestHistory without a conversation asks for the recent history of every
// conversation the requester belongs to. Paged asks for a page with its cursor.
type RequestHistory struct {
	ConversationID ConversationID
	Cursor         *string
	Paged          bool
}

func (RequestHistory) Name() string { return CmdHistoryRequest }

type SearchMessages struct {
	ConversationID ConversationID
	Query          string
	Limit          int
}

func (SearchMessages) Name() string { return CmdSearchMessages }

type CreateConversation struct {
	Kind     Kind
	Title    string
	Members  []string
	ParentID ConversationID
}

func (CreateConversation) Name() string { return CmdCreateConversation }

type ListConversations struct{}

func (ListConversations) Name() string { return CmdListConversations }

type CreateStory struct {
	Story Story
}

func (CreateStory) Name() string { return CmdCreateStatus }

type ListStories struct{}

func (ListStories) Name() string { return CmdListStatuses }

type SearchContacts struct {
	Query string
}

func (SearchContacts) Name() string { return CmdSearchContacts }

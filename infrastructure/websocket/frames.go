package websocket

import (
	"bytes"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Frame is the envelope of every text frame, in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type conversationRef struct {
	ConversationID string `json:"conversationId" validate:"required"`
}

type messageRef struct {
	MessageID string `json:"messageId" validate:"required"`
}

type sendMessagePayload struct {
	ID             string  `json:"id"`
	ConversationID string  `json:"conversationId" validate:"required"`
	Content        string  `json:"content"`
	Timestamp      int64   `json:"timestamp" validate:"gte=0"`
	Type           string  `json:"type" validate:"required,oneof=text image audio file"`
	FileName       string  `json:"fileName"`
	FileSize       int64   `json:"fileSize" validate:"gte=0"`
	Duration       float64 `json:"duration" validate:"gte=0"`
	ReplyToID      string  `json:"replyToId"`
}

type reactionPayload struct {
	MessageID      string `json:"messageId" validate:"required"`
	ConversationID string `json:"conversationId"`
	Emoji          string `json:"emoji" validate:"required"`
	UserID         string `json:"userId"`
}

type deletePayload struct {
	MessageID      string `json:"messageId" validate:"required"`
	ConversationID string `json:"conversationId"`
}

type markReadPayload struct {
	ConversationID string `json:"conversationId" validate:"required"`
	UserID         string `json:"userId"`
}

type callPayload struct {
	TargetUserID string          `json:"targetUserId" validate:"required"`
	Offer        json.RawMessage `json:"offer"`
	Answer       json.RawMessage `json:"answer"`
	Candidate    json.RawMessage `json:"candidate"`
	IsVideo      bool            `json:"isVideo"`
}

type historyPayload struct {
	ConversationID string  `json:"conversationId"`
	Cursor         *string `json:"cursor"`
	Paged          bool    `json:"paged"`
}

type searchPayload struct {
	ConversationID string `json:"conversationId" validate:"required"`
	Query          string `json:"query" validate:"required,max=256"`
	Limit          int    `json:"limit" validate:"gte=0,lte=100"`
}

type createConversationPayload struct {
	Name     string   `json:"name" validate:"max=128"`
	Type     string   `json:"type" validate:"required,oneof=private group community channel"`
	Members  []string `json:"members" validate:"dive,required"`
	ParentID string   `json:"parentId"`
}

type storyPayload struct {
	Type       string `json:"type" validate:"required,oneof=text image"`
	Content    string `json:"content" validate:"required"`
	Caption    string `json:"caption" validate:"max=512"`
	Background string `json:"background" validate:"max=64"`
}

type contactQuery struct {
	Query string `json:"query" validate:"required,max=64"`
}

// Decode turns a raw text frame into a command. The sender is never taken from the
// payload: ids like senderId or userId are ignored in favor of the connection identity.
func Decode(raw []byte) (domain.Command, error) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrInvalidPayload, err)
	}

	switch frame.Event {
	case domain.CmdJoinConversation:
		id, err := decodeRef[conversationRef](frame.Data, func(r conversationRef) string { return r.ConversationID })
		return domain.JoinConversation{ConversationID: domain.ConversationID(id)}, err
	case domain.CmdLeaveConversation:
		id, err := decodeRef[conversationRef](frame.Data, func(r conversationRef) string { return r.ConversationID })
		return domain.LeaveConversation{ConversationID: domain.ConversationID(id)}, err
	case domain.CmdSendMessage:
		p, err := decode[sendMessagePayload](frame.Data)
		return domain.SendMessage{Message: domain.Message{
			ID:             p.ID,
			ConversationID: domain.ConversationID(p.ConversationID),
			Content:        p.Content,
			Timestamp:      p.Timestamp,
			Type:           domain.MessageType(p.Type),
			FileName:       p.FileName,
			FileSize:       p.FileSize,
			Duration:       p.Duration,
			ReplyToID:      p.ReplyToID,
		}}, err
	case domain.CmdTypingStart:
		p, err := decode[conversationRef](frame.Data)
		return domain.StartTyping{ConversationID: domain.ConversationID(p.ConversationID)}, err
	case domain.CmdTypingEnd:
		p, err := decode[conversationRef](frame.Data)
		return domain.StopTyping{ConversationID: domain.ConversationID(p.ConversationID)}, err
	case domain.CmdAddReaction, domain.CmdMessageReaction:
		p, err := decode[reactionPayload](frame.Data)
		return domain.ToggleReaction{
			MessageID:      p.MessageID,
			ConversationID: domain.ConversationID(p.ConversationID),
			Emoji:          p.Emoji,
			UserID:         p.UserID,
		}, err
	case domain.CmdDeleteMessage, domain.CmdMessageDelete:
		p, err := decode[deletePayload](frame.Data)
		return domain.DeleteMessage{MessageID: p.MessageID, ConversationID: domain.ConversationID(p.ConversationID)}, err
	case domain.CmdMarkRead:
		p, err := decode[markReadPayload](frame.Data)
		return domain.MarkRead{ConversationID: domain.ConversationID(p.ConversationID), UserID: p.UserID}, err
	case domain.CmdMarkDelivered:
		id, err := decodeRef[messageRef](frame.Data, func(r messageRef) string { return r.MessageID })
		return domain.MarkDelivered{MessageID: id}, err
	case domain.CmdCallInvite:
		p, err := decode[callPayload](frame.Data)
		return domain.CallInvite{TargetUserID: p.TargetUserID, Offer: p.Offer, IsVideo: p.IsVideo}, err
	case domain.CmdCallAnswer:
		p, err := decode[callPayload](frame.Data)
		return domain.CallAnswer{TargetUserID: p.TargetUserID, Answer: p.Answer}, err
	case domain.CmdCallIceCandidate:
		p, err := decode[callPayload](frame.Data)
		return domain.CallIceCandidate{TargetUserID: p.TargetUserID, Candidate: p.Candidate}, err
	case domain.CmdCallReject:
		p, err := decode[callPayload](frame.Data)
		return domain.CallReject{TargetUserID: p.TargetUserID}, err
	case domain.CmdCallEnd:
		p, err := decode[callPayload](frame.Data)
		return domain.CallEnd{TargetUserID: p.TargetUserID}, err
	case domain.CmdHistoryRequest:
		var p historyPayload
		if len(frame.Data) > 0 && !bytes.Equal(frame.Data, []byte("null")) {
			if err := json.Unmarshal(frame.Data, &p); err != nil {
				return nil, fmt.Errorf("%w: %w", errors.ErrInvalidPayload, err)
			}
		}
		return domain.RequestHistory{ConversationID: domain.ConversationID(p.ConversationID), Cursor: p.Cursor, Paged: p.Paged}, nil
	case domain.CmdSearchMessages:
		p, err := decode[searchPayload](frame.Data)
		return domain.SearchMessages{ConversationID: domain.ConversationID(p.ConversationID), Query: p.Query, Limit: p.Limit}, err
	case domain.CmdCreateConversation:
		p, err := decode[createConversationPayload](frame.Data)
		return domain.CreateConversation{
			Kind:     domain.Kind(p.Type),
			Title:    p.Name,
			Members:  p.Members,
			ParentID: domain.ConversationID(p.ParentID),
		}, err
	case domain.CmdListConversations:
		return domain.ListConversations{}, nil
	case domain.CmdCreateStatus:
		p, err := decode[storyPayload](frame.Data)
		return domain.CreateStory{Story: domain.Story{
			Type:       domain.MessageType(p.Type),
			Content:    p.Content,
			Caption:    p.Caption,
			Background: p.Background,
		}}, err
	case domain.CmdListStatuses:
		return domain.ListStories{}, nil
	case domain.CmdSearchContacts:
		query, err := decodeRef[contactQuery](frame.Data, func(q contactQuery) string { return q.Query })
		return domain.SearchContacts{Query: query}, err
	}
	return nil, fmt.Errorf("%q: %w", frame.Event, errors.ErrUnknownEvent)
}

func decode[T any](data json.RawMessage) (T, error) {
	var payload T
	if err := json.Unmarshal(data, &payload); err != nil {
		return payload, fmt.Errorf("%w: %w", errors.ErrInvalidPayload, err)
	}
	if err := validate.Struct(payload); err != nil {
		return payload, fmt.Errorf("%w: %w", errors.ErrInvalidPayload, err)
	}
	return payload, nil
}

// decodeRef accepts a bare JSON string as well as the object form.
func decodeRef[T any](data json.RawMessage, id func(T) string) (string, error) {
	var bare string
	if err := json.Unmarshal(data, &bare); err == nil {
		if bare == "" {
			return "", errors.ErrInvalidPayload
		}
		return bare, nil
	}
	payload, err := decode[T](data)
	if err != nil {
		return "", err
	}
	return id(payload), nil
}

// Encode renders an outbound event as a text frame.
func Encode(e event.Event) ([]byte, error) {
	return json.Marshal(e)
}

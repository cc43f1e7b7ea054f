package services

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/observability"
	"chat-relay/repositories"
	"cmp"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"slices"
	"time"
	"unicode/utf8"
)

// UnknownSender names the author of a replied message whose profile is not known.
const UnknownSender = "Unknown"

// MessageService is the message lifecycle engine. Every mutation is persisted first
// and broadcast only once the write succeeded.
type MessageService struct {
	messages         repositories.IMessageRepository
	users            repositories.IUserRepository
	router           contract.IRouter
	resolver         contract.ConversationResolver
	index            contract.MessageIndex
	censor           contract.Censor
	maxContentLength int
	log              *slog.Logger
	metrics          *observability.Metrics
	now              func() time.Time
}

func NewMessageService(
	messages repositories.IMessageRepository,
	users repositories.IUserRepository,
	router contract.IRouter,
	resolver contract.ConversationResolver,
	index contract.MessageIndex,
	censor contract.Censor,
	maxContentLength int,
	log *slog.Logger,
	metrics *observability.Metrics,
) *MessageService {
	return &MessageService{
		messages:         messages,
		users:            users,
		router:           router,
		resolver:         resolver,
		index:            index,
		censor:           censor,
		maxContentLength: maxContentLength,
		log:              log,
		metrics:          metrics,
		now:              time.Now,
	}
}

// Create accepts a new message from sender. The server owns id, timestamp, status,
// reactions and the reply snapshot, whatever the client sent.
func (s *MessageService) Create(ctx context.Context, sender domain.Identity, message domain.Message) (domain.Message, error) {
	if !message.Type.Creatable() {
		return domain.Message{}, fmt.Errorf("type %q: %w", message.Type, errors.ErrInvalidMessage)
	}
	if message.Type == domain.TypeText && message.Content == "" {
		return domain.Message{}, fmt.Errorf("empty text: %w", errors.ErrInvalidMessage)
	}
	if s.maxContentLength > 0 && utf8.RuneCountInString(message.Content) > s.maxContentLength {
		return domain.Message{}, fmt.Errorf("content over %d characters: %w", s.maxContentLength, errors.ErrInvalidMessage)
	}
	conversation, err := s.authorized(message.ConversationID, sender.ID)
	if err != nil {
		return domain.Message{}, err
	}

	message.ConversationID = conversation.ID
	message.SenderID = sender.ID
	message.Prepare(s.now())
	if message.Type == domain.TypeText && s.censor != nil {
		if content, words := s.censor.Censor(message.Content); len(words) > 0 {
			s.log.Debug("Message censored", "message", message.ID, "words", len(words))
			message.Content = content
		}
	}
	if message.ReplyToID != "" {
		message.ReplyTo = s.replySnapshot(message.ReplyToID, conversation.ID)
	}

	if err = s.messages.StoreMessage(message); err != nil {
		return domain.Message{}, s.persistenceFailure("store message", message.ID, err)
	}
	if err = s.index.Index(message); err != nil {
		s.log.Warn("Unable to index message", "message", message.ID, "error", err)
	}
	s.router.Deliver(ctx, domain.AudienceOf(conversation), event.New(event.ReceiveMessage, message))
	return message, nil
}

// replySnapshot is taken once, from the same conversation only.
func (s *MessageService) replySnapshot(replyToID string, conversationID domain.ConversationID) *domain.ReplySnapshot {
	target, err := s.messages.GetMessage(replyToID)
	if err != nil {
		if !stderrors.Is(err, errors.ErrNotFound) {
			s.log.Warn("Unable to load replied message", "message", replyToID, "error", err)
		}
		return nil
	}
	if target.ConversationID != conversationID {
		return nil
	}
	snapshot := target.Snapshot(s.senderName(target.SenderID))
	return &snapshot
}

func (s *MessageService) senderName(userID string) string {
	identity, err := s.users.GetIdentity(userID)
	if err != nil {
		return UnknownSender
	}
	return identity.DisplayName()
}

// MarkDelivered moves a message from sent to delivered on behalf of a recipient.
func (s *MessageService) MarkDelivered(ctx context.Context, requester domain.Identity, messageID string) error {
	message, err := s.messages.GetMessage(messageID)
	if err != nil {
		return err
	}
	if message.SenderID == requester.ID {
		return errors.ErrNotAuthorized
	}
	conversation, err := s.authorized(message.ConversationID, requester.ID)
	if err != nil {
		return err
	}
	message, changed, err := s.messages.UpdateMessage(messageID, func(m *domain.Message) bool {
		return m.AdvanceStatus(domain.StatusDelivered)
	})
	if err != nil {
		return s.persistenceFailure("mark delivered", messageID, err)
	}
	if !changed {
		return nil
	}
	s.router.Deliver(ctx,
		domain.Audience{Rooms: []domain.ConversationID{conversation.ID}, Identities: []string{message.SenderID}},
		event.New(event.MessageStatusUpdate, event.StatusUpdate{
			MessageID:      message.ID,
			Status:         message.Status,
			ConversationID: conversation.ID,
		}))
	return nil
}

// MarkRead reads the whole conversation at once and emits a single receipt.
func (s *MessageService) MarkRead(ctx context.Context, reader domain.Identity, conversationID domain.ConversationID) error {
	conversation, err := s.authorized(conversationID, reader.ID)
	if err != nil {
		return err
	}
	changed, err := s.messages.MarkConversationRead(conversation.ID, reader.ID)
	if err != nil {
		return s.persistenceFailure("mark read", string(conversation.ID), err)
	}
	s.log.Debug("Conversation read", "conversation", conversation.ID, "reader", reader.ID, "messages", len(changed))
	s.router.Deliver(ctx, domain.AudienceOf(conversation), event.New(event.MessagesReadUpdate, event.ReadUpdate{
		ConversationID: conversation.ID,
		ReadBy:         reader.ID,
	}))
	return nil
}

// ToggleReaction adds or removes the (user, emoji) pair atomically.
func (s *MessageService) ToggleReaction(ctx context.Context, user domain.Identity, messageID string,
	conversationID domain.ConversationID, emoji string) error {
	if err := domain.ValidateReaction(emoji); err != nil {
		return err
	}
	conversation, err := s.messageConversation(messageID, conversationID, user.ID)
	if err != nil {
		return err
	}
	message, changed, err := s.messages.UpdateMessage(messageID, func(m *domain.Message) bool {
		if m.IsDeleted() {
			return false
		}
		m.ToggleReaction(user.ID, emoji)
		return true
	})
	if err != nil {
		return s.persistenceFailure("toggle reaction", messageID, err)
	}
	if !changed {
		return nil
	}
	s.router.Deliver(ctx, domain.AudienceOf(conversation), event.New(event.MessageUpdate, message))
	return nil
}

// SoftDelete tombstones a message. Only its sender may do it, a second delete is a no-op.
func (s *MessageService) SoftDelete(ctx context.Context, requester domain.Identity, messageID string,
	conversationID domain.ConversationID) error {
	conversation, err := s.messageConversation(messageID, conversationID, requester.ID)
	if err != nil {
		return err
	}
	message, changed, err := s.messages.UpdateMessage(messageID, func(m *domain.Message) bool {
		return m.SoftDelete(requester.ID)
	})
	if err != nil {
		return s.persistenceFailure("delete message", messageID, err)
	}
	if !changed {
		if message.SenderID != requester.ID {
			return errors.ErrNotAuthorized
		}
		return nil
	}
	if err = s.index.Remove(message.ID); err != nil {
		s.log.Warn("Unable to remove message from index", "message", message.ID, "error", err)
	}
	s.router.Deliver(ctx, domain.AudienceOf(conversation), event.New(event.MessageDeleted, event.Deleted{
		ID:             message.ID,
		ConversationID: conversation.ID,
		Type:           domain.TypeDeleted,
	}))
	return nil
}

// History returns one page of a conversation, oldest first within the page.
func (s *MessageService) History(requester domain.Identity, conversationID domain.ConversationID, cursor *string) (event.HistoryPage, error) {
	conversation, err := s.authorized(conversationID, requester.ID)
	if err != nil {
		return event.HistoryPage{}, err
	}
	messages, next, err := s.messages.GetMessages(conversation.ID, cursor)
	if err != nil {
		return event.HistoryPage{}, fmt.Errorf("unable to load history of %s: %w", conversation.ID, err)
	}
	return event.HistoryPage{ConversationID: conversation.ID, Messages: messages, Cursor: next}, nil
}

// Recent merges the latest page of every given conversation the requester may read,
// ordered by timestamp. Each conversation keeps its acceptance order on ties.
func (s *MessageService) Recent(requester domain.Identity, conversations []domain.Conversation) ([]domain.Message, error) {
	messages := []domain.Message{}
	for _, conversation := range conversations {
		page, err := s.History(requester, conversation.ID, nil)
		if errors.IsSilent(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		messages = append(messages, page.Messages...)
	}
	slices.SortStableFunc(messages, func(a, b domain.Message) int {
		return cmp.Compare(a.Timestamp, b.Timestamp)
	})
	return messages, nil
}

// ConversationOf returns the conversation a stored message belongs to.
func (s *MessageService) ConversationOf(messageID string) (domain.ConversationID, error) {
	message, err := s.messages.GetMessage(messageID)
	if err != nil {
		return "", err
	}
	return message.ConversationID, nil
}

// Search finds text messages of a conversation, newest first.
func (s *MessageService) Search(ctx context.Context, requester domain.Identity, conversationID domain.ConversationID,
	query string, limit int) (event.SearchPage, error) {
	conversation, err := s.authorized(conversationID, requester.ID)
	if err != nil {
		return event.SearchPage{}, err
	}
	ids, err := s.index.Search(ctx, conversation.ID, query, limit)
	if err != nil {
		return event.SearchPage{}, fmt.Errorf("unable to search %s: %w", conversation.ID, err)
	}
	messages := make([]domain.Message, 0, len(ids))
	for _, id := range ids {
		message, err := s.messages.GetMessage(id)
		if err != nil || message.IsDeleted() {
			continue
		}
		messages = append(messages, message)
	}
	return event.SearchPage{ConversationID: conversation.ID, Query: query, Messages: messages}, nil
}

func (s *MessageService) authorized(conversationID domain.ConversationID, userID string) (domain.Conversation, error) {
	return resolveAuthorized(s.resolver, conversationID, userID)
}

// messageConversation loads the conversation of a stored message. A conversation id sent
// by the client must match, so that a message cannot be reached through another room.
func (s *MessageService) messageConversation(messageID string, conversationID domain.ConversationID, userID string) (domain.Conversation, error) {
	message, err := s.messages.GetMessage(messageID)
	if err != nil {
		return domain.Conversation{}, err
	}
	if conversationID != "" && conversationID != message.ConversationID {
		return domain.Conversation{}, errors.ErrNotFound
	}
	return s.authorized(message.ConversationID, userID)
}

func (s *MessageService) persistenceFailure(operation, id string, err error) error {
	if stderrors.Is(err, errors.ErrNotFound) || stderrors.Is(err, errors.ErrInvalidMessage) {
		return err
	}
	s.log.Error("Persistence failure, broadcast suppressed", "operation", operation, "id", id, "error", err)
	s.metrics.PersistenceErrors.Inc()
	return fmt.Errorf("%s %s: %w", operation, id, err)
}

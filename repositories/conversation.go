//go:generate go run go.uber.org/mock/mockgen -source=conversation.go -destination=../mocks/mock_conversation_repository.go -package=mocks
package repositories

import (
	"chat-relay/domain"
	"cmp"
	apperrors "chat-relay/errors"
	"errors"
	"fmt"
	"slices"

	"github.com/dgraph-io/badger/v4"
)

const (
	conversationPrefix = "conv:"
	memberPrefix       = "member:"
	userConvPrefix     = "user_conv:"
)

type IConversationRepository interface {
	CreateConversation(conversation domain.Conversation, members []string) (domain.Conversation, bool, error)
	GetConversation(id domain.ConversationID) (domain.Conversation, error)
	AddMembers(id domain.ConversationID, members ...string) error
	IsMember(id domain.ConversationID, userID string) (bool, error)
	GetMembers(id domain.ConversationID) ([]string, error)
	ListForUser(userID string) ([]domain.Conversation, error)
}

type ConversationRepository struct {
	db *badger.DB
}

func NewConversationRepository(db *badger.DB) IConversationRepository {
	return &ConversationRepository{db: db}
}

// CreateConversation stores the conversation and its initial members.
// When the id already exists the stored conversation is returned untouched
// and the boolean is false.
func (c ConversationRepository) CreateConversation(conversation domain.Conversation, members []string) (domain.Conversation, bool, error) {
	if conversation.ID == "" || !conversation.Kind.Valid() {
		return domain.Conversation{}, false, fmt.Errorf("conversation %q: %w", conversation.ID, apperrors.ErrInvalidPayload)
	}
	stored := conversation
	created := false
	err := update(c.db, func(txn *badger.Txn) error {
		existing, err := getRecord[domain.Conversation](txn, conversationPrefix+string(conversation.ID))
		if err == nil {
			stored, created = existing, false
			return nil
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}
		if err = setRecord(txn, conversationPrefix+string(conversation.ID), conversation); err != nil {
			return err
		}
		stored, created = conversation, true
		return addMembers(txn, conversation.ID, members)
	})
	return stored, created, err
}

func (c ConversationRepository) GetConversation(id domain.ConversationID) (domain.Conversation, error) {
	var conversation domain.Conversation
	err := c.db.View(func(txn *badger.Txn) error {
		var err error
		conversation, err = getRecord[domain.Conversation](txn, conversationPrefix+string(id))
		return err
	})
	return conversation, err
}

func (c ConversationRepository) AddMembers(id domain.ConversationID, members ...string) error {
	return update(c.db, func(txn *badger.Txn) error {
		found, err := exists(txn, conversationPrefix+string(id))
		if err != nil {
			return err
		}
		if !found {
			return apperrors.ErrNotFound
		}
		return addMembers(txn, id, members)
	})
}

func (c ConversationRepository) IsMember(id domain.ConversationID, userID string) (bool, error) {
	var member bool
	err := c.db.View(func(txn *badger.Txn) error {
		var err error
		member, err = exists(txn, memberKey(id, userID))
		return err
	})
	return member, err
}

func (c ConversationRepository) GetMembers(id domain.ConversationID) ([]string, error) {
	var members []string
	err := c.db.View(func(txn *badger.Txn) error {
		members = scanSuffixes(txn, fmt.Sprintf("%s%s:", memberPrefix, id))
		return nil
	})
	return members, err
}

// ListForUser returns the conversations userID belongs to, oldest first.
func (c ConversationRepository) ListForUser(userID string) ([]domain.Conversation, error) {
	conversations := []domain.Conversation{}
	err := c.db.View(func(txn *badger.Txn) error {
		for _, id := range scanSuffixes(txn, fmt.Sprintf("%s%s:", userConvPrefix, userID)) {
			conversation, err := getRecord[domain.Conversation](txn, conversationPrefix+id)
			if errors.Is(err, apperrors.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			conversations = append(conversations, conversation)
		}
		return nil
	})
	slices.SortStableFunc(conversations, func(a, b domain.Conversation) int {
		return cmp.Compare(a.CreatedAt, b.CreatedAt)
	})
	return conversations, err
}

func addMembers(txn *badger.Txn, id domain.ConversationID, members []string) error {
	for _, userID := range members {
		if userID == "" {
			continue
		}
		if err := txn.Set([]byte(memberKey(id, userID)), nil); err != nil {
			return err
		}
		if err := txn.Set([]byte(fmt.Sprintf("%s%s:%s", userConvPrefix, userID, id)), nil); err != nil {
			return err
		}
	}
	return nil
}

func memberKey(id domain.ConversationID, userID string) string {
	return fmt.Sprintf("%s%s:%s", memberPrefix, id, userID)
}

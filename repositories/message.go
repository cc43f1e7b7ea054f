//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"chat-relay/domain"
	apperrors "chat-relay/errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
)

const (
	messagePrefix = "msg:"
	historyPrefix = "idx:msg:"
	readBatchSize = 500
)

type IMessageRepository interface {
	StoreMessage(message domain.Message) error
	GetMessage(id string) (domain.Message, error)
	UpdateMessage(id string, mutate func(*domain.Message) bool) (domain.Message, bool, error)
	MarkConversationRead(conversationID domain.ConversationID, readerID string) ([]string, error)
	GetMessages(conversationID domain.ConversationID, cursor *string) ([]domain.Message, *string, error)
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
	sequence      *atomic.Uint64
	now           func() time.Time
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) MessageRepository {
	return MessageRepository{
		db:            db,
		log:           log,
		limitMessages: limitMessages,
		sequence:      &atomic.Uint64{},
		now:           time.Now,
	}
}

// StoreMessage persists a message and appends it to its conversation history.
// The history key is "idx:msg:{conversation}:{accepted_padded}:{sequence_padded}:{id}" so that
// a prefix scan returns messages in the order they were accepted, even when two
// messages arrive within the same nanosecond.
func (m MessageRepository) StoreMessage(message domain.Message) error {
	if message.ID == "" || message.ConversationID == "" {
		return apperrors.ErrInvalidMessage
	}
	indexKey := fmt.Sprintf("%s%019d:%010d:%s",
		historyKeyPrefix(message.ConversationID),
		m.now().UnixNano(),
		m.sequence.Add(1),
		message.ID,
	)
	message.Reactions = normalizeReactions(message.Reactions)
	return update(m.db, func(txn *badger.Txn) error {
		found, err := exists(txn, messagePrefix+message.ID)
		if err != nil {
			return err
		}
		if found {
			return fmt.Errorf("message %s already stored: %w", message.ID, apperrors.ErrInvalidMessage)
		}
		if err = setRecord(txn, messagePrefix+message.ID, message); err != nil {
			return err
		}
		return txn.Set([]byte(indexKey), []byte(message.ID))
	})
}

func (m MessageRepository) GetMessage(id string) (domain.Message, error) {
	var message domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		var err error
		message, err = getRecord[domain.Message](txn, messagePrefix+id)
		return err
	})
	message.Reactions = normalizeReactions(message.Reactions)
	return message, err
}

// UpdateMessage reads, mutates and writes a message inside a single transaction.
// mutate reports whether it changed anything; nothing is written otherwise.
// Concurrent updates on the same message are serialized by badger conflict detection.
func (m MessageRepository) UpdateMessage(id string, mutate func(*domain.Message) bool) (domain.Message, bool, error) {
	var message domain.Message
	var changed bool
	err := update(m.db, func(txn *badger.Txn) error {
		var err error
		message, err = getRecord[domain.Message](txn, messagePrefix+id)
		if err != nil {
			return err
		}
		message.Reactions = normalizeReactions(message.Reactions)
		if changed = mutate(&message); !changed {
			return nil
		}
		return setRecord(txn, messagePrefix+id, message)
	})
	return message, changed, err
}

// MarkConversationRead advances every message of the conversation written by someone
// else than readerID to read. Deleted messages are left untouched.
// It returns the ids that changed.
func (m MessageRepository) MarkConversationRead(conversationID domain.ConversationID, readerID string) ([]string, error) {
	var ids []string
	err := m.db.View(func(txn *badger.Txn) error {
		ids = lo.FilterMap(scanSuffixes(txn, historyKeyPrefix(conversationID)), func(suffix string, _ int) (string, bool) {
			return idFromHistorySuffix(suffix)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	var changed []string
	for _, chunk := range lo.Chunk(ids, readBatchSize) {
		var batch []string
		err = update(m.db, func(txn *badger.Txn) error {
			batch = batch[:0]
			for _, id := range chunk {
				message, err := getRecord[domain.Message](txn, messagePrefix+id)
				if err != nil {
					return err
				}
				if message.SenderID == readerID || !message.AdvanceStatus(domain.StatusRead) {
					continue
				}
				if err = setRecord(txn, messagePrefix+id, message); err != nil {
					return err
				}
				batch = append(batch, id)
			}
			return nil
		})
		if err != nil {
			return changed, err
		}
		changed = append(changed, batch...)
	}
	return changed, nil
}

// GetMessages pages backwards through a conversation history.
// Without a cursor it starts from the newest message. The returned page is in
// acceptance order (oldest first) and the returned cursor, when not nil, points to
// the oldest message of the page and fetches the next older page.
func (m MessageRepository) GetMessages(conversationID domain.ConversationID, cursor *string) ([]domain.Message, *string, error) {
	messages := []domain.Message{}
	var lastKey string
	err := m.db.View(func(txn *badger.Txn) error {
		prefixStr := historyKeyPrefix(conversationID)
		prefix := []byte(prefixStr)
		prefixLen := len(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Reverse iteration starts from the last key lower or equal to the seek key
			seekKey = append(slices.Clone(prefix), 0xFF)
		default:
			seekKey = append(slices.Clone(prefix), []byte(*cursor)...)
		}

		it.Seek(seekKey)
		if cursor != nil && it.ValidForPrefix(prefix) && string(it.Item().Key()[prefixLen:]) == *cursor {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(messages) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d message reached", *m.limitMessages))
				break
			}
			suffix := string(it.Item().Key()[prefixLen:])
			id, ok := idFromHistorySuffix(suffix)
			if !ok {
				// Key of another conversation whose id extends this one
				continue
			}
			message, err := getRecord[domain.Message](txn, messagePrefix+id)
			if err != nil {
				return err
			}
			message.Reactions = normalizeReactions(message.Reactions)
			messages = append(messages, message)
			lastKey = suffix
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	slices.Reverse(messages)
	if m.limitMessages == nil || len(messages) < *m.limitMessages {
		return messages, nil, nil
	}
	return messages, &lastKey, nil
}

func historyKeyPrefix(conversationID domain.ConversationID) string {
	return fmt.Sprintf("%s%s:", historyPrefix, conversationID)
}

// idFromHistorySuffix extracts the message id from "{accepted}:{sequence}:{id}".
func idFromHistorySuffix(suffix string) (string, bool) {
	const fixed = 19 + 1 + 10 + 1
	if len(suffix) <= fixed || suffix[19] != ':' || suffix[30] != ':' {
		return "", false
	}
	for i, r := range suffix[:fixed-1] {
		if i != 19 && (r < '0' || r > '9') {
			return "", false
		}
	}
	return suffix[fixed:], true
}

func normalizeReactions(reactions []domain.Reaction) []domain.Reaction {
	if reactions == nil {
		return []domain.Reaction{}
	}
	return reactions
}

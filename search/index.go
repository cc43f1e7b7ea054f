// Package search keeps a full-text index of text messages, one document per message.
package search

import (
	"chat-relay/domain"
	"context"
	"fmt"
	"log/slog"

	"github.com/abadojack/whatlanggo"
	"github.com/blugelabs/bluge"
)

const (
	fieldConversation = "conversation"
	fieldSender       = "sender"
	fieldContent      = "content"
	fieldLang         = "lang"
	fieldTimestamp    = "timestamp"

	DefaultLimit = 20
	MaxLimit     = 100
)

type MessageIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewMessageIndex(writer *bluge.Writer, log *slog.Logger) *MessageIndex {
	return &MessageIndex{writer: writer, log: log}
}

// Index adds or replaces the document of a message. Only live text messages are searchable.
func (i *MessageIndex) Index(message domain.Message) error {
	if message.Type != domain.TypeText || message.Content == "" {
		return nil
	}
	info := whatlanggo.Detect(message.Content)
	doc := bluge.NewDocument(message.ID).
		AddField(bluge.NewKeywordField(fieldConversation, string(message.ConversationID))).
		AddField(bluge.NewKeywordField(fieldSender, message.SenderID)).
		AddField(bluge.NewTextField(fieldContent, message.Content)).
		AddField(bluge.NewKeywordField(fieldLang, info.Lang.Iso6391()).StoreValue()).
		AddField(bluge.NewNumericField(fieldTimestamp, float64(message.Timestamp)).Sortable())

	if err := i.writer.Update(doc.ID(), doc); err != nil {
		return fmt.Errorf("failed to index message %s: %w", message.ID, err)
	}
	return nil
}

// Remove drops a message from the index, deleted messages must not be found anymore.
func (i *MessageIndex) Remove(messageID string) error {
	return i.writer.Delete(bluge.Identifier(messageID))
}

// Search returns the ids of the messages of one conversation matching terms, newest first.
func (i *MessageIndex) Search(ctx context.Context, conversationID domain.ConversationID, terms string, limit int) ([]string, error) {
	if terms == "" {
		return []string{}, nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)

	reader, err := i.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			i.log.Warn("Unable to close index reader", "error", err)
		}
	}()

	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(terms).SetField(fieldContent)).
		AddMust(bluge.NewTermQuery(string(conversationID)).SetField(fieldConversation))
	request := bluge.NewTopNSearch(limit, query).SortBy([]string{"-" + fieldTimestamp})

	matches, err := reader.Search(ctx, request)
	if err != nil {
		return nil, err
	}

	ids := []string{}
	match, err := matches.Next()
	for err == nil && match != nil {
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			if field == "_id" {
				ids = append(ids, string(value))
				return false
			}
			return true
		})
		if err != nil {
			break
		}
		match, err = matches.Next()
	}
	return ids, err
}

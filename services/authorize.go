package services

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
)

// resolveAuthorized resolves a conversation and checks that userID belongs to it.
func resolveAuthorized(resolver contract.ConversationResolver, conversationID domain.ConversationID, userID string) (domain.Conversation, error) {
	conversation, err := resolver.Resolve(conversationID, userID)
	if err != nil {
		return domain.Conversation{}, err
	}
	ok, err := resolver.Authorize(conversation, userID)
	if err != nil {
		return domain.Conversation{}, err
	}
	if !ok {
		return domain.Conversation{}, errors.ErrNotAuthorized
	}
	return conversation, nil
}

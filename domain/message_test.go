package domain

import (
	"chat-relay/errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMessage_Prepare(t *testing.T) {
	req := require.New(t)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	// Given a message with client owned fields
	message := Message{
		Status:    StatusRead,
		Reactions: []Reaction{{UserID: "x", Emoji: "👍"}},
		ReplyTo:   &ReplySnapshot{ID: "forged"},
	}

	// When the server prepares it
	message.Prepare(now)

	// Then server owned fields are reset
	req.NotEmpty(message.ID)
	req.Equal(now.UnixMilli(), message.Timestamp)
	req.Equal(StatusSent, message.Status)
	req.Empty(message.Reactions)
	req.NotNil(message.Reactions)
	req.Nil(message.ReplyTo)
	req.Equal(now, message.CreatedAt())
}

func TestMessage_AdvanceStatus_OnlyForward(t *testing.T) {
	req := require.New(t)
	message := Message{Status: StatusSent, Type: TypeText}

	req.True(message.AdvanceStatus(StatusRead))
	req.False(message.AdvanceStatus(StatusDelivered))
	req.False(message.AdvanceStatus(StatusRead))
	req.Equal(StatusRead, message.Status)

	deleted := Message{Status: StatusSent, Type: TypeDeleted}
	req.False(deleted.AdvanceStatus(StatusDelivered))
}

func TestMessage_ToggleReaction(t *testing.T) {
	req := require.New(t)
	message := Message{Reactions: []Reaction{}}

	// When the same pair is toggled twice around another reaction
	req.True(message.ToggleReaction("alice", "👍"))
	req.True(message.ToggleReaction("bob", "👍"))
	req.False(message.ToggleReaction("alice", "👍"))

	// Then only the other reaction remains
	req.Equal([]Reaction{{UserID: "bob", Emoji: "👍"}}, message.Reactions)
}

func TestMessage_SoftDelete(t *testing.T) {
	req := require.New(t)
	message := Message{SenderID: "alice", Content: "secret", Type: TypeText}

	req.False(message.SoftDelete("bob"))
	req.Equal("secret", message.Content)

	req.True(message.SoftDelete("alice"))
	req.Equal(Tombstone, message.Content)
	req.True(message.IsDeleted())

	req.False(message.SoftDelete("alice"))
}

func TestMessageType_Creatable(t *testing.T) {
	req := require.New(t)

	req.True(TypeAudio.Creatable())
	req.False(TypeDeleted.Creatable())
	req.False(MessageType("video").Creatable())
}

func TestValidateReaction(t *testing.T) {
	req := require.New(t)

	req.NoError(ValidateReaction("👍"))
	for _, reaction := range []string{"❤️", "😂", "😮", "😢", "🔥", "❤", "👍🏽", "🇫🇷"} {
		req.NoError(ValidateReaction(reaction), reaction)
	}
	req.ErrorIs(ValidateReaction(""), errors.ErrInvalidReaction)
	req.ErrorIs(ValidateReaction("ok"), errors.ErrInvalidReaction)
	req.ErrorIs(ValidateReaction("👍👍"), errors.ErrInvalidReaction)
	req.ErrorIs(ValidateReaction("👍 "), errors.ErrInvalidReaction)
	req.ErrorIs(ValidateReaction("\uFE0F"), errors.ErrInvalidReaction)
	req.ErrorIs(ValidateReaction("❤️❤️"), errors.ErrInvalidReaction)
}

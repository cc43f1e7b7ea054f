package repositories

import (
	"chat-relay/domain"
	apperrors "chat-relay/errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_Create_Conversation_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	repository := NewConversationRepository(openDB(t))
	first := domain.Private("alice", "bob", time.Now())
	second := domain.Private("bob", "alice", time.Now().Add(time.Hour))

	// When both sides create the same private chat
	stored, created, err := repository.CreateConversation(first, first.Pair.Members())
	req.NoError(err)
	req.True(created)
	again, created, err := repository.CreateConversation(second, second.Pair.Members())

	// Then the first record wins
	req.NoError(err)
	req.False(created)
	req.Equal(stored, again)
	req.Equal("alice", again.CreatedBy)
}

func Test_Members_And_Listing(t *testing.T) {
	req := require.New(t)
	repository := NewConversationRepository(openDB(t))
	now := time.Now()
	group := domain.NewConversation(domain.KindGroup, "friends", "alice", "", now)
	later := domain.NewConversation(domain.KindGroup, "work", "bob", "", now.Add(time.Minute))
	_, _, err := repository.CreateConversation(group, []string{"alice", "bob"})
	req.NoError(err)
	_, _, err = repository.CreateConversation(later, []string{"bob"})
	req.NoError(err)

	// When clara is added to the first group
	req.NoError(repository.AddMembers(group.ID, "clara"))

	// Then membership and listings reflect it
	member, err := repository.IsMember(group.ID, "clara")
	req.NoError(err)
	req.True(member)
	member, err = repository.IsMember(later.ID, "clara")
	req.NoError(err)
	req.False(member)
	members, err := repository.GetMembers(group.ID)
	req.NoError(err)
	req.ElementsMatch([]string{"alice", "bob", "clara"}, members)
	listed, err := repository.ListForUser("bob")
	req.NoError(err)
	req.Equal([]domain.ConversationID{group.ID, later.ID}, []domain.ConversationID{listed[0].ID, listed[1].ID})
}

func Test_Add_Members_To_Unknown_Conversation(t *testing.T) {
	req := require.New(t)
	repository := NewConversationRepository(openDB(t))

	err := repository.AddMembers("missing", "alice")

	req.ErrorIs(err, apperrors.ErrNotFound)
}

func Test_Save_And_Get_Identity(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openDB(t))
	identity := domain.Identity{ID: "u1", Username: "Alice", Avatar: "a.png"}

	req.NoError(repository.SaveIdentity(identity))
	stored, err := repository.GetIdentity("u1")

	req.NoError(err)
	req.Equal(identity, stored)
	_, err = repository.GetIdentity("u2")
	req.ErrorIs(err, apperrors.ErrNotFound)
}

func Test_Search_Identities(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openDB(t))
	for _, identity := range []domain.Identity{
		{ID: "u1", Username: "Alice"},
		{ID: "u2", Username: "Malicia"},
		{ID: "u3", Username: "Bob"},
	} {
		req.NoError(repository.SaveIdentity(identity))
	}

	// When searching part of a name in another case
	found, err := repository.SearchIdentities("LIC", 0)

	// Then every matching username comes back sorted
	req.NoError(err)
	req.Equal([]domain.Identity{{ID: "u1", Username: "Alice"}, {ID: "u2", Username: "Malicia"}}, found)

	// And an id matches as a whole while the limit is honored
	found, err = repository.SearchIdentities("u3", 1)
	req.NoError(err)
	req.Equal([]domain.Identity{{ID: "u3", Username: "Bob"}}, found)
	found, err = repository.SearchIdentities("i", 1)
	req.NoError(err)
	req.Len(found, 1)
	found, err = repository.SearchIdentities("  ", 0)
	req.NoError(err)
	req.Empty(found)
}

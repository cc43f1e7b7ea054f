package services

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/mocks"
	"chat-relay/observability"
	"chat-relay/repositories"
	"chat-relay/search"
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/blugelabs/bluge"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type messageFixture struct {
	service       *MessageService
	spy           *routerSpy
	users         repositories.IUserRepository
	conversations *ConversationService
	metrics       *observability.Metrics
}

func newMessageFixture(t *testing.T, limit *int) messageFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	db := openDB(t)
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })

	router, spy := newRouterSpy(ctrl, 1)
	users := repositories.NewUserRepository(db)
	conversations := NewConversationService(repositories.NewConversationRepository(db), testLogger())
	metrics := observability.NewNopMetrics()
	service := NewMessageService(
		repositories.NewMessageRepository(db, testLogger(), limit), users, router, conversations,
		search.NewMessageIndex(writer, testLogger()), nil, 20, testLogger(), metrics,
	)
	return messageFixture{service: service, spy: spy, users: users, conversations: conversations, metrics: metrics}
}

var (
	alice = domain.Identity{ID: "alice", Username: "Alice"}
	bob   = domain.Identity{ID: "bob", Username: "Bob"}
	eve   = domain.Identity{ID: "eve", Username: "Eve"}
)

func text(conversationID domain.ConversationID, content string) domain.Message {
	return domain.Message{ConversationID: conversationID, Content: content, Type: domain.TypeText}
}

func TestMessageService_Create(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newMessageFixture(t, nil)

	// Given a message forging its sender, status and reactions
	message := text(domain.GlobalConversationID, "hello")
	message.SenderID = "mallory"
	message.Status = domain.StatusRead
	message.Reactions = []domain.Reaction{{UserID: "mallory", Emoji: "👍"}}

	// When alice sends it
	created, err := f.service.Create(ctx, alice, message)

	// Then the server owned fields win and everyone receives it
	req.NoError(err)
	req.Equal(alice.ID, created.SenderID)
	req.Equal(domain.StatusSent, created.Status)
	req.Empty(created.Reactions)
	req.NotEmpty(created.ID)

	deliveries := f.spy.named(event.ReceiveMessage)
	req.Len(deliveries, 1)
	req.True(deliveries[0].audience.Everyone)
	req.Equal(created, deliveries[0].event.Payload)
}

func TestMessageService_Create_Rejections(t *testing.T) {
	ctx := context.Background()
	f := newMessageFixture(t, nil)
	group, err := f.conversations.Create(alice, domain.CreateConversation{Kind: domain.KindGroup, Members: []string{"bob"}})
	require.NoError(t, err)

	cases := map[string]struct {
		sender  domain.Identity
		message domain.Message
		target  error
	}{
		"empty text":      {sender: alice, message: text(domain.GlobalConversationID, ""), target: errors.ErrInvalidMessage},
		"too long":        {sender: alice, message: text(domain.GlobalConversationID, strings.Repeat("a", 21)), target: errors.ErrInvalidMessage},
		"deleted type":    {sender: alice, message: domain.Message{ConversationID: domain.GlobalConversationID, Type: domain.TypeDeleted}, target: errors.ErrInvalidMessage},
		"not a member":    {sender: eve, message: text(group[0].Conversation.ID, "hi"), target: errors.ErrNotAuthorized},
		"someone's pair":  {sender: eve, message: text("alice_bob", "hi"), target: errors.ErrNotFound},
		"unknown room":    {sender: alice, message: text("nowhere", "hi"), target: errors.ErrNotFound},
		"no conversation": {sender: alice, message: text("", "hi"), target: errors.ErrNotFound},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.service.Create(ctx, tc.sender, tc.message)
			require.ErrorIs(t, err, tc.target)
			require.True(t, errors.IsSilent(err))
		})
	}
	require.Empty(t, f.spy.all())
}

func TestMessageService_Create_ReplySnapshot(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newMessageFixture(t, nil)
	req.NoError(f.users.SaveIdentity(alice))

	// Given a message of alice in global and one in a private conversation
	original, err := f.service.Create(ctx, alice, text(domain.GlobalConversationID, "question"))
	req.NoError(err)
	elsewhere, err := f.service.Create(ctx, alice, text("alice_bob", "secret"))
	req.NoError(err)

	// When bob replies to both from global
	reply := text(domain.GlobalConversationID, "answer")
	reply.ReplyToID = original.ID
	reply.ReplyTo = &domain.ReplySnapshot{Content: "forged"}
	answered, err := f.service.Create(ctx, bob, reply)
	req.NoError(err)
	leak := text(domain.GlobalConversationID, "peek")
	leak.ReplyToID = elsewhere.ID
	peeked, err := f.service.Create(ctx, bob, leak)
	req.NoError(err)

	// Then only the same-conversation reply carries a snapshot
	req.Equal(&domain.ReplySnapshot{ID: original.ID, Content: "question", Type: domain.TypeText, SenderName: "Alice"}, answered.ReplyTo)
	req.Nil(peeked.ReplyTo)

	// And the snapshot is not refreshed when the original is deleted
	req.NoError(f.service.SoftDelete(ctx, alice, original.ID, domain.GlobalConversationID))
	page, err := f.service.History(bob, domain.GlobalConversationID, nil)
	req.NoError(err)
	stored, ok := lo.Find(page.Messages, func(m domain.Message) bool { return m.ID == answered.ID })
	req.True(ok)
	req.Equal("question", stored.ReplyTo.Content)
}

func TestMessageService_Create_Censored(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	f := newMessageFixture(t, nil)
	censor := mocks.NewMockCensor(ctrl)
	f.service.censor = censor

	censor.EXPECT().Censor("you fool").Return("you ****", []string{"fool"}).Times(1)

	created, err := f.service.Create(context.Background(), alice, text(domain.GlobalConversationID, "you fool"))

	req.NoError(err)
	req.Equal("you ****", created.Content)
}

func TestMessageService_PersistenceFailure_SuppressesBroadcast(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	db := openDB(t)

	// Given a store that fails and a router that must never be used
	messages := mocks.NewMockIMessageRepository(ctrl)
	index := mocks.NewMockMessageIndex(ctrl)
	router := mocks.NewMockIRouter(ctrl)
	messages.EXPECT().StoreMessage(gomock.Any()).Return(stderrors.New("disk full")).Times(1)
	router.EXPECT().Deliver(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	index.EXPECT().Index(gomock.Any()).Times(0)
	metrics := observability.NewNopMetrics()
	service := NewMessageService(messages, repositories.NewUserRepository(db), router,
		NewConversationService(repositories.NewConversationRepository(db), testLogger()),
		index, nil, 0, testLogger(), metrics)

	// When a message is sent
	_, err := service.Create(context.Background(), alice, text(domain.GlobalConversationID, "lost"))

	// Then the failure surfaces and is counted
	req.Error(err)
	req.False(errors.IsSilent(err))
	req.Equal(float64(1), testutil.ToFloat64(metrics.PersistenceErrors))
}

func TestMessageService_MarkDelivered(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newMessageFixture(t, nil)
	created, err := f.service.Create(ctx, alice, text("alice_bob", "ping"))
	req.NoError(err)

	// When the sender tries, then bob twice
	req.ErrorIs(f.service.MarkDelivered(ctx, alice, created.ID), errors.ErrNotAuthorized)
	req.ErrorIs(f.service.MarkDelivered(ctx, eve, created.ID), errors.ErrNotAuthorized)
	req.NoError(f.service.MarkDelivered(ctx, bob, created.ID))
	req.NoError(f.service.MarkDelivered(ctx, bob, created.ID))

	// Then exactly one update reaches the room and the sender
	updates := f.spy.named(event.MessageStatusUpdate)
	req.Len(updates, 1)
	req.Equal([]domain.ConversationID{"alice_bob"}, updates[0].audience.Rooms)
	req.Equal([]string{alice.ID}, updates[0].audience.Identities)
	req.Equal(domain.StatusDelivered, updates[0].event.Payload.(event.StatusUpdate).Status)

	req.ErrorIs(f.service.MarkDelivered(ctx, bob, "unknown"), errors.ErrNotFound)
}

func TestMessageService_MarkRead(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newMessageFixture(t, nil)
	first, err := f.service.Create(ctx, alice, text("alice_bob", "one"))
	req.NoError(err)
	_, err = f.service.Create(ctx, bob, text("alice_bob", "two"))
	req.NoError(err)

	// When bob reads the conversation twice
	req.NoError(f.service.MarkRead(ctx, bob, "alice_bob"))
	req.NoError(f.service.MarkRead(ctx, bob, "alice_bob"))

	// Then alice's message is read, bob's own message is untouched
	page, err := f.service.History(alice, "alice_bob", nil)
	req.NoError(err)
	req.Equal(first.ID, page.Messages[0].ID)
	req.Equal(domain.StatusRead, page.Messages[0].Status)
	req.Equal(domain.StatusSent, page.Messages[1].Status)

	// And a receipt is emitted for each request
	receipts := f.spy.named(event.MessagesReadUpdate)
	req.Len(receipts, 2)
	req.Equal(event.ReadUpdate{ConversationID: "alice_bob", ReadBy: bob.ID}, receipts[0].event.Payload)

	req.ErrorIs(f.service.MarkRead(ctx, eve, "alice_bob"), errors.ErrNotAuthorized)
}

func TestMessageService_ToggleReaction(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newMessageFixture(t, nil)
	created, err := f.service.Create(ctx, alice, text(domain.GlobalConversationID, "react"))
	req.NoError(err)

	// When bob toggles the same emoji twice
	req.NoError(f.service.ToggleReaction(ctx, bob, created.ID, domain.GlobalConversationID, "🔥"))
	req.NoError(f.service.ToggleReaction(ctx, bob, created.ID, domain.GlobalConversationID, "🔥"))

	// Then the reaction is gone and both changes were broadcast
	updates := f.spy.named(event.MessageUpdate)
	req.Len(updates, 2)
	req.Len(updates[0].event.Payload.(domain.Message).Reactions, 1)
	req.Empty(updates[1].event.Payload.(domain.Message).Reactions)

	// And invalid requests change nothing
	req.ErrorIs(f.service.ToggleReaction(ctx, bob, created.ID, domain.GlobalConversationID, "fire"), errors.ErrInvalidReaction)
	req.ErrorIs(f.service.ToggleReaction(ctx, bob, created.ID, "alice_bob", "🔥"), errors.ErrNotFound)
	req.ErrorIs(f.service.ToggleReaction(ctx, bob, "unknown", domain.GlobalConversationID, "🔥"), errors.ErrNotFound)
	req.Len(f.spy.named(event.MessageUpdate), 2)
}

func TestMessageService_SoftDelete(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newMessageFixture(t, nil)
	created, err := f.service.Create(ctx, alice, text(domain.GlobalConversationID, "oops typo"))
	req.NoError(err)

	// When bob tries first, then alice twice
	req.ErrorIs(f.service.SoftDelete(ctx, bob, created.ID, domain.GlobalConversationID), errors.ErrNotAuthorized)
	req.NoError(f.service.SoftDelete(ctx, alice, created.ID, domain.GlobalConversationID))
	req.NoError(f.service.SoftDelete(ctx, alice, created.ID, domain.GlobalConversationID))

	// Then one tombstone is broadcast
	deletions := f.spy.named(event.MessageDeleted)
	req.Len(deletions, 1)
	req.Equal(event.Deleted{ID: created.ID, ConversationID: domain.GlobalConversationID, Type: domain.TypeDeleted},
		deletions[0].event.Payload)

	// And the message is tombstoned, unsearchable and frozen
	page, err := f.service.History(bob, domain.GlobalConversationID, nil)
	req.NoError(err)
	req.Equal(domain.Tombstone, page.Messages[0].Content)
	results, err := f.service.Search(ctx, bob, domain.GlobalConversationID, "typo", 0)
	req.NoError(err)
	req.Empty(results.Messages)
	req.NoError(f.service.ToggleReaction(ctx, bob, created.ID, domain.GlobalConversationID, "👍"))
	req.Empty(f.spy.named(event.MessageUpdate))
	req.NoError(f.service.MarkDelivered(ctx, bob, created.ID))
	req.Empty(f.spy.named(event.MessageStatusUpdate))
}

func TestMessageService_HistoryPaging(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newMessageFixture(t, lo.ToPtr(2))
	for _, content := range []string{"m1", "m2", "m3"} {
		_, err := f.service.Create(ctx, alice, text(domain.GlobalConversationID, content))
		req.NoError(err)
	}

	// When bob pages through global
	first, err := f.service.History(bob, domain.GlobalConversationID, nil)
	req.NoError(err)
	req.NotNil(first.Cursor)
	second, err := f.service.History(bob, domain.GlobalConversationID, first.Cursor)
	req.NoError(err)

	// Then pages are oldest first and end without cursor
	contents := func(page event.HistoryPage) []string {
		return lo.Map(page.Messages, func(m domain.Message, _ int) string { return m.Content })
	}
	req.Equal([]string{"m2", "m3"}, contents(first))
	req.Equal([]string{"m1"}, contents(second))
	req.Nil(second.Cursor)

	_, err = f.service.History(eve, "alice_bob", nil)
	req.ErrorIs(err, errors.ErrNotFound)
}

func TestMessageService_Recent(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newMessageFixture(t, nil)

	// Given a global message then a private one for bob
	_, err := f.service.Create(ctx, alice, text(domain.GlobalConversationID, "g1"))
	req.NoError(err)
	created, err := f.service.Create(ctx, alice, text("alice_bob", "p1"))
	req.NoError(err)
	conversations, err := f.conversations.List(bob.ID)
	req.NoError(err)

	// When bob asks for every conversation, plus one he is not part of
	messages, err := f.service.Recent(bob, append(conversations, domain.Conversation{ID: "alice_eve"}))

	// Then both messages come back in time order and the foreign one is skipped
	req.NoError(err)
	req.Equal([]string{"g1", "p1"}, lo.Map(messages, func(m domain.Message, _ int) string { return m.Content }))

	conversationID, err := f.service.ConversationOf(created.ID)
	req.NoError(err)
	req.Equal(domain.ConversationID("alice_bob"), conversationID)
	_, err = f.service.ConversationOf("missing")
	req.ErrorIs(err, errors.ErrNotFound)
}

func TestMessageService_Search(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newMessageFixture(t, nil)
	_, err := f.service.Create(ctx, alice, text(domain.GlobalConversationID, "release notes"))
	req.NoError(err)
	_, err = f.service.Create(ctx, alice, text("alice_bob", "release party"))
	req.NoError(err)

	results, err := f.service.Search(ctx, bob, "alice_bob", "release", 0)

	req.NoError(err)
	req.Len(results.Messages, 1)
	req.Equal("release party", results.Messages[0].Content)
	_, err = f.service.Search(ctx, eve, "alice_bob", "release", 0)
	req.ErrorIs(err, errors.ErrNotAuthorized)
}

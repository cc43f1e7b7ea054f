package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPrivateConversationID_IsSymmetric(t *testing.T) {
	req := require.New(t)

	req.Equal(PrivateConversationID("alice", "bob"), PrivateConversationID("bob", "alice"))
	req.Equal(ConversationID("alice_bob"), PrivateConversationID("bob", "alice"))
}

func TestResolvePrivate(t *testing.T) {
	now := time.Now()
	cases := map[string]struct {
		id          ConversationID
		participant string
		ok          bool
		pair        Pair
	}{
		"participant first":       {id: "alice_bob", participant: "alice", ok: true, pair: Pair{Low: "alice", High: "bob"}},
		"participant second":      {id: "alice_bob", participant: "bob", ok: true, pair: Pair{Low: "alice", High: "bob"}},
		"ids with separator":      {id: "a_b_c", participant: "a_b", ok: true, pair: Pair{Low: "a_b", High: "c"}},
		"stranger":                {id: "alice_bob", participant: "eve", ok: false},
		"not canonical":           {id: "bob_alice", participant: "alice", ok: false},
		"global":                  {id: GlobalConversationID, participant: "alice", ok: false},
		"no peer":                 {id: "alice_", participant: "alice", ok: false},
		"empty participant":       {id: "alice_bob", participant: "", ok: false},
		"participant is a prefix": {id: "al_bob", participant: "alice", ok: false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)

			conversation, ok := ResolvePrivate(tc.id, tc.participant, now)

			req.Equal(tc.ok, ok)
			if tc.ok {
				req.True(conversation.IsPrivate())
				req.Equal(tc.id, conversation.ID)
				req.Equal(tc.pair, *conversation.Pair)
				req.True(conversation.Pair.Has(tc.participant))
			}
		})
	}
}

func TestPair_Members(t *testing.T) {
	req := require.New(t)

	req.Equal([]string{"a", "b"}, NewPair("b", "a").Members())
	req.Equal([]string{"a"}, NewPair("a", "a").Members())
	req.False(NewPair("a", "b").Has(""))
}

func TestAudienceOf(t *testing.T) {
	req := require.New(t)

	// Given each kind of conversation
	global := AudienceOf(Global())
	private := AudienceOf(Private("bob", "alice", time.Now()))
	group := NewConversation(KindGroup, "Friends", "alice", "", time.Now())

	// Then global reaches everyone, private reaches the room and both identities
	req.True(global.Everyone)
	req.Equal([]ConversationID{"alice_bob"}, private.Rooms)
	req.Equal([]string{"alice", "bob"}, private.Identities)
	req.Equal(Audience{Rooms: []ConversationID{group.ID}}, AudienceOf(group))
	req.Equal("alice", AudienceOf(group).Except("alice").ExcludeIdentity)
}

func TestKind_Valid(t *testing.T) {
	req := require.New(t)

	req.True(KindChannel.Valid())
	req.False(Kind("forum").Valid())
}

package domain

// Audience describes who must receive an event. A connection matched by several
// selectors still receives the event once.
type Audience struct {
	Everyone        bool
	Rooms           []ConversationID
	Identities      []string
	Connections     []ConnID
	ExcludeIdentity string
}

// AudienceOf is the fan-out rule of a conversation: everyone for global, the room
// plus both personal channels for private pairs, the room otherwise.
func AudienceOf(c Conversation) Audience {
	if c.IsGlobal() {
		return Audience{Everyone: true}
	}
	audience := Audience{Rooms: []ConversationID{c.ID}}
	if c.IsPrivate() {
		audience.Identities = c.Pair.Members()
	}
	return audience
}

func ToIdentity(userID string) Audience {
	return Audience{Identities: []string{userID}}
}

func ToConnection(connID ConnID) Audience {
	return Audience{Connections: []ConnID{connID}}
}

func (a Audience) Except(userID string) Audience {
	a.ExcludeIdentity = userID
	return a
}

package runtime

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"slices"
	"strings"
	"sync"
)

// Departure describes the connection that just left.
type Departure struct {
	Identity       domain.Identity
	LastConnection bool
}

// Presence maps live connections to identities. An identity is online while it has
// at least one connection, and all its connections form its personal channel.
type Presence struct {
	mu          sync.RWMutex
	connections map[domain.ConnID]domain.Identity
	identities  map[string]Set[domain.ConnID]
}

func NewPresence() *Presence {
	return &Presence{
		connections: make(map[domain.ConnID]domain.Identity),
		identities:  make(map[string]Set[domain.ConnID]),
	}
}

// Register binds a connection to a verified identity.
func (p *Presence) Register(connID domain.ConnID, identity domain.Identity) error {
	if connID == "" || !identity.Valid() {
		return errors.ErrUnauthenticated
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.connections[connID] = identity
	conns, ok := p.identities[identity.ID]
	if !ok {
		conns = make(Set[domain.ConnID])
		p.identities[identity.ID] = conns
	}
	conns.Add(connID)
	return nil
}

// Unregister is idempotent: the second call for the same connection reports false.
func (p *Presence) Unregister(connID domain.ConnID) (Departure, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	identity, ok := p.connections[connID]
	if !ok {
		return Departure{}, false
	}
	delete(p.connections, connID)
	conns := p.identities[identity.ID]
	delete(conns, connID)
	last := len(conns) == 0
	if last {
		delete(p.identities, identity.ID)
	}
	return Departure{Identity: identity, LastConnection: last}, true
}

// Snapshot lists online identities, once each, ordered by id.
// The latest registered profile of an identity wins.
func (p *Presence) Snapshot() []domain.Identity {
	p.mu.RLock()
	defer p.mu.RUnlock()

	seen := make(map[string]domain.Identity, len(p.identities))
	for _, identity := range p.connections {
		seen[identity.ID] = identity
	}
	users := make([]domain.Identity, 0, len(seen))
	for _, identity := range seen {
		users = append(users, identity)
	}
	slices.SortFunc(users, func(a, b domain.Identity) int {
		return strings.Compare(a.ID, b.ID)
	})
	return users
}

// Connections is the personal channel of an identity.
func (p *Presence) Connections(userID string) []domain.ConnID {
	p.mu.RLock()
	defer p.mu.RUnlock()

	conns := p.identities[userID]
	result := make([]domain.ConnID, 0, len(conns))
	for connID := range conns {
		result = append(result, connID)
	}
	return result
}

func (p *Presence) Identity(connID domain.ConnID) (domain.Identity, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	identity, ok := p.connections[connID]
	return identity, ok
}

func (p *Presence) IsOnline(userID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.identities[userID]) > 0
}

// Counts returns the number of live connections and online identities.
func (p *Presence) Counts() (int, int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.connections), len(p.identities)
}

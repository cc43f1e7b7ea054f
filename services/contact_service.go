package services

import (
	"chat-relay/domain"
	"chat-relay/repositories"
	"strings"

	"github.com/samber/lo"
)

// DefaultContactResults caps a contact lookup.
const DefaultContactResults = 20

// ContactService looks up known identities to start a conversation with.
type ContactService struct {
	users repositories.IUserRepository
	limit int
}

func NewContactService(users repositories.IUserRepository, limit int) *ContactService {
	if limit <= 0 {
		limit = DefaultContactResults
	}
	return &ContactService{users: users, limit: limit}
}

// Search never returns the requester. An empty query finds nobody.
func (s *ContactService) Search(requester domain.Identity, query string) ([]domain.Identity, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.Identity{}, nil
	}
	found, err := s.users.SearchIdentities(query, s.limit+1)
	if err != nil {
		return nil, err
	}
	found = lo.Reject(found, func(identity domain.Identity, _ int) bool { return identity.ID == requester.ID })
	if len(found) > s.limit {
		found = found[:s.limit]
	}
	return found, nil
}

//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"chat-relay/domain"
	"cmp"
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

const userPrefix = "user:"

// IUserRepository keeps the last known profile of every identity that connected,
// so that names can be resolved for offline senders.
type IUserRepository interface {
	SaveIdentity(identity domain.Identity) error
	GetIdentity(id string) (domain.Identity, error)
	SearchIdentities(query string, limit int) ([]domain.Identity, error)
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) IUserRepository {
	return &UserRepository{db: db}
}

// SaveIdentity upserts the profile carried by a verified token.
func (u UserRepository) SaveIdentity(identity domain.Identity) error {
	return update(u.db, func(txn *badger.Txn) error {
		return setRecord(txn, userPrefix+identity.ID, identity)
	})
}

func (u UserRepository) GetIdentity(id string) (domain.Identity, error) {
	var identity domain.Identity
	err := u.db.View(func(txn *badger.Txn) error {
		var err error
		identity, err = getRecord[domain.Identity](txn, userPrefix+id)
		return err
	})
	return identity, err
}

// SearchIdentities matches query against usernames, case-insensitively and anywhere
// in the name, or against a whole id. Results are sorted by display name.
func (u UserRepository) SearchIdentities(query string, limit int) ([]domain.Identity, error) {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return []domain.Identity{}, nil
	}
	var identities []domain.Identity
	err := u.db.View(func(txn *badger.Txn) error {
		var err error
		identities, err = scanRecords[domain.Identity](txn, userPrefix)
		return err
	})
	if err != nil {
		return nil, err
	}
	identities = slices.DeleteFunc(identities, func(identity domain.Identity) bool {
		return identity.ID != query && !strings.Contains(strings.ToLower(identity.Username), needle)
	})
	slices.SortStableFunc(identities, func(a, b domain.Identity) int {
		return cmp.Compare(strings.ToLower(a.DisplayName()), strings.ToLower(b.DisplayName()))
	})
	if limit > 0 && len(identities) > limit {
		identities = identities[:limit]
	}
	return identities, nil
}

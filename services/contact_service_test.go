package services

import (
	"chat-relay/domain"
	"chat-relay/mocks"
	"chat-relay/repositories"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestContactService_Search(t *testing.T) {
	req := require.New(t)
	users := repositories.NewUserRepository(openDB(t))
	for _, identity := range []domain.Identity{alice, bob, eve, {ID: "u4", Username: "Evelyn"}} {
		req.NoError(users.SaveIdentity(identity))
	}
	service := NewContactService(users, 0)

	// When eve looks for names containing "ev"
	found, err := service.Search(eve, "ev")

	// Then she finds the others but not herself
	req.NoError(err)
	req.Equal([]domain.Identity{{ID: "u4", Username: "Evelyn"}}, found)

	// And a blank query finds nobody
	found, err = service.Search(eve, " ")
	req.NoError(err)
	req.Empty(found)
}

func TestContactService_Search_Limit(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	users := mocks.NewMockIUserRepository(ctrl)
	users.EXPECT().SearchIdentities("b", 3).Return([]domain.Identity{alice, bob, eve}, nil)
	service := NewContactService(users, 2)

	// When alice is among the matches
	found, err := service.Search(alice, "b")

	// Then she is left out before the limit applies
	req.NoError(err)
	req.Equal([]domain.Identity{bob, eve}, found)
}

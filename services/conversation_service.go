package services

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/repositories"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"
)

// Creation is a conversation that was just created together with its members.
type Creation struct {
	Conversation domain.Conversation
	Members      []string
}

// ConversationService is the conversation directory: typed resolution, membership
// authorization, creation and listing.
type ConversationService struct {
	repository repositories.IConversationRepository
	log        *slog.Logger
	now        func() time.Time
}

func NewConversationService(repository repositories.IConversationRepository, log *slog.Logger) *ConversationService {
	return &ConversationService{repository: repository, log: log, now: time.Now}
}

// Resolve turns a wire id into a typed conversation. An unknown id is only understood
// as the private conversation between participant and someone else, and is then
// persisted so that its pair never has to be derived again.
func (s *ConversationService) Resolve(id domain.ConversationID, participant string) (domain.Conversation, error) {
	if id == "" {
		return domain.Conversation{}, errors.ErrNotFound
	}
	if id == domain.GlobalConversationID {
		return domain.Global(), nil
	}
	conversation, err := s.repository.GetConversation(id)
	if err == nil {
		return conversation, nil
	}
	if !stderrors.Is(err, errors.ErrNotFound) {
		return domain.Conversation{}, err
	}
	private, ok := domain.ResolvePrivate(id, participant, s.now())
	if !ok {
		return domain.Conversation{}, errors.ErrNotFound
	}
	stored, created, err := s.repository.CreateConversation(private, private.Pair.Members())
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("unable to persist private conversation %s: %w", id, err)
	}
	if created {
		s.log.Debug("Private conversation created", "conversation", id)
	}
	return stored, nil
}

// Authorize reports whether userID may read and write in the conversation.
// Channels inherit the membership of their community.
func (s *ConversationService) Authorize(conversation domain.Conversation, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	switch conversation.Kind {
	case domain.KindGlobal:
		return true, nil
	case domain.KindPrivate:
		return conversation.Pair != nil && conversation.Pair.Has(userID), nil
	}
	member, err := s.repository.IsMember(conversation.ID, userID)
	if err != nil || member || conversation.ParentID == "" {
		return member, err
	}
	return s.repository.IsMember(conversation.ParentID, userID)
}

// Create builds a new conversation on behalf of creator. A community also gets its
// Announcements channel, returned as a second creation.
func (s *ConversationService) Create(creator domain.Identity, cmd domain.CreateConversation) ([]Creation, error) {
	now := s.now()
	members := lo.Uniq(lo.Compact(append([]string{creator.ID}, cmd.Members...)))

	switch cmd.Kind {
	case domain.KindPrivate:
		others := lo.Without(members, creator.ID)
		if len(others) != 1 {
			return nil, fmt.Errorf("a private conversation needs exactly one peer: %w", errors.ErrInvalidPayload)
		}
		private := domain.Private(creator.ID, others[0], now)
		stored, _, err := s.repository.CreateConversation(private, private.Pair.Members())
		if err != nil {
			return nil, err
		}
		return []Creation{{Conversation: stored, Members: stored.Pair.Members()}}, nil

	case domain.KindGroup:
		group := domain.NewConversation(domain.KindGroup, lo.Ternary(cmd.Title == "", "Group", cmd.Title), creator.ID, "", now)
		if _, _, err := s.repository.CreateConversation(group, members); err != nil {
			return nil, err
		}
		return []Creation{{Conversation: group, Members: members}}, nil

	case domain.KindCommunity:
		if cmd.Title == "" {
			return nil, fmt.Errorf("a community needs a name: %w", errors.ErrInvalidPayload)
		}
		community := domain.NewConversation(domain.KindCommunity, cmd.Title, creator.ID, "", now)
		if _, _, err := s.repository.CreateConversation(community, members); err != nil {
			return nil, err
		}
		announcements := domain.NewConversation(domain.KindChannel, domain.AnnouncementsName, creator.ID, community.ID, now)
		if _, _, err := s.repository.CreateConversation(announcements, members); err != nil {
			return nil, err
		}
		return []Creation{
			{Conversation: community, Members: members},
			{Conversation: announcements, Members: members},
		}, nil

	case domain.KindChannel:
		if cmd.Title == "" || cmd.ParentID == "" {
			return nil, fmt.Errorf("a channel needs a name and a community: %w", errors.ErrInvalidPayload)
		}
		parent, err := s.repository.GetConversation(cmd.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.Kind != domain.KindCommunity {
			return nil, fmt.Errorf("channel parent must be a community: %w", errors.ErrInvalidPayload)
		}
		member, err := s.repository.IsMember(parent.ID, creator.ID)
		if err != nil {
			return nil, err
		}
		if !member {
			return nil, errors.ErrNotAuthorized
		}
		parentMembers, err := s.repository.GetMembers(parent.ID)
		if err != nil {
			return nil, err
		}
		channel := domain.NewConversation(domain.KindChannel, cmd.Title, creator.ID, parent.ID, now)
		if _, _, err = s.repository.CreateConversation(channel, parentMembers); err != nil {
			return nil, err
		}
		return []Creation{{Conversation: channel, Members: parentMembers}}, nil
	}
	return nil, fmt.Errorf("conversation type %q: %w", cmd.Kind, errors.ErrInvalidPayload)
}

// List returns the global conversation followed by the ones userID belongs to.
func (s *ConversationService) List(userID string) ([]domain.Conversation, error) {
	conversations, err := s.repository.ListForUser(userID)
	if err != nil {
		return nil, err
	}
	return append([]domain.Conversation{domain.Global()}, conversations...), nil
}

package services

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/repositories"
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"
)

// StoryService publishes 24 hour statuses. Everybody online is told who posted,
// the content itself is fetched with List.
type StoryService struct {
	stories          repositories.IStoryRepository
	router           contract.IRouter
	maxContentLength int
	log              *slog.Logger
	now              func() time.Time
}

func NewStoryService(stories repositories.IStoryRepository, router contract.IRouter,
	maxContentLength int, log *slog.Logger) *StoryService {
	return &StoryService{
		stories:          stories,
		router:           router,
		maxContentLength: maxContentLength,
		log:              log,
		now:              time.Now,
	}
}

// Post stores a story for author and announces it with status_update.
func (s *StoryService) Post(ctx context.Context, author domain.Identity, story domain.Story) (domain.Story, error) {
	if !story.Valid() {
		return domain.Story{}, errors.ErrInvalidPayload
	}
	if story.Type == domain.TypeText && s.maxContentLength > 0 && utf8.RuneCountInString(story.Content) > s.maxContentLength {
		return domain.Story{}, fmt.Errorf("story of %d runes: %w", utf8.RuneCountInString(story.Content), errors.ErrInvalidPayload)
	}
	story.Prepare(author.ID, s.now())
	if err := s.stories.SaveStory(story); err != nil {
		return domain.Story{}, fmt.Errorf("unable to store story %s: %w", story.ID, err)
	}
	s.log.Debug("Story posted", "user", author.ID, "story", story.ID)
	s.router.Deliver(ctx, domain.Audience{Everyone: true}, event.New(event.StoryPosted, event.Poster{UserID: author.ID}))
	return story, nil
}

// List returns the stories that have not expired, newest first.
func (s *StoryService) List() ([]domain.Story, error) {
	return s.stories.ListStories(s.now())
}

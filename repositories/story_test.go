package repositories

import (
	"chat-relay/domain"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newStory(userID, content string, postedAt time.Time) domain.Story {
	story := domain.Story{Type: domain.TypeText, Content: content, Background: "bg-green-500"}
	story.Prepare(userID, postedAt)
	return story
}

func Test_List_Stories_Newest_First(t *testing.T) {
	req := require.New(t)
	repository := NewStoryRepository(openDB(t))
	now := time.Now()
	older := newStory("u1", "morning", now.Add(-2*time.Hour))
	newer := newStory("u2", "evening", now.Add(-time.Minute))

	// Given two stories saved out of order
	req.NoError(repository.SaveStory(newer))
	req.NoError(repository.SaveStory(older))

	// When listing them
	stories, err := repository.ListStories(now)

	// Then the newest comes first
	req.NoError(err)
	req.Equal([]domain.Story{newer, older}, stories)
}

func Test_Expired_Stories_Are_Hidden(t *testing.T) {
	req := require.New(t)
	repository := NewStoryRepository(openDB(t))
	now := time.Now()
	stale := newStory("u1", "yesterday", now.Add(-domain.StoryLifetime-time.Minute))
	fading := newStory("u1", "almost gone", now.Add(-domain.StoryLifetime+time.Hour))

	// Given a story already expired and one that expires within the hour
	req.NoError(repository.SaveStory(stale))
	req.NoError(repository.SaveStory(fading))

	// Then only the live one is listed, and neither once its time is over
	stories, err := repository.ListStories(now)
	req.NoError(err)
	req.Equal([]domain.Story{fading}, stories)
	stories, err = repository.ListStories(now.Add(2 * time.Hour))
	req.NoError(err)
	req.Empty(stories)
}

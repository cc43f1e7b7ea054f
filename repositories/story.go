//go:generate go run go.uber.org/mock/mockgen -source=story.go -destination=../mocks/mock_story_repository.go -package=mocks
package repositories

import (
	"chat-relay/domain"
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
)

const storyPrefix = "status:"

// IStoryRepository keeps statuses until they expire. Badger drops them on its own
// once their TTL is over.
type IStoryRepository interface {
	SaveStory(story domain.Story) error
	ListStories(now time.Time) ([]domain.Story, error)
}

type StoryRepository struct {
	db *badger.DB
}

func NewStoryRepository(db *badger.DB) IStoryRepository {
	return &StoryRepository{db: db}
}

func storyKey(story domain.Story) string {
	return fmt.Sprintf("%s%s:%s", storyPrefix, story.UserID, story.ID)
}

// SaveStory stores the story with a TTL matching its expiry.
func (s StoryRepository) SaveStory(story domain.Story) error {
	ttl := time.Until(time.UnixMilli(story.ExpiresAt))
	if ttl <= 0 {
		return nil
	}
	data, err := cbor.Marshal(story)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return update(s.db, func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(storyKey(story)), data).WithTTL(ttl))
	})
}

// ListStories returns the stories still visible at now, newest first.
func (s StoryRepository) ListStories(now time.Time) ([]domain.Story, error) {
	var stories []domain.Story
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		stories, err = scanRecords[domain.Story](txn, storyPrefix)
		return err
	})
	if err != nil {
		return nil, err
	}
	stories = slices.DeleteFunc(stories, func(story domain.Story) bool { return story.ExpiredAt(now) })
	slices.SortStableFunc(stories, func(a, b domain.Story) int {
		return cmp.Compare(b.Timestamp, a.Timestamp)
	})
	return stories, nil
}

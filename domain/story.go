package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// StoryLifetime is how long a posted status stays visible.
const StoryLifetime = 24 * time.Hour

// Story is a status a user shares with everyone until it expires.
// Text stories carry a background, image stories a caption.
type Story struct {
	ID         string      `json:"id"`
	UserID     string      `json:"userId"`
	Type       MessageType `json:"type"`
	Content    string      `json:"content"`
	Caption    string      `json:"caption,omitempty"`
	Background string      `json:"background,omitempty"`
	Timestamp  int64       `json:"timestamp"`
	ExpiresAt  int64       `json:"expiresAt"`
}

// Prepare stamps a new story posted by userID at now.
func (s *Story) Prepare(userID string, now time.Time) {
	s.ID = uuid.NewString()
	s.UserID = userID
	s.Timestamp = now.UnixMilli()
	s.ExpiresAt = now.Add(StoryLifetime).UnixMilli()
	if s.Type == TypeText {
		s.Caption = ""
	} else {
		s.Background = ""
	}
}

func (s Story) Valid() bool {
	if s.Type != TypeText && s.Type != TypeImage {
		return false
	}
	return strings.TrimSpace(s.Content) != ""
}

func (s Story) ExpiredAt(now time.Time) bool {
	return s.ExpiresAt <= now.UnixMilli()
}

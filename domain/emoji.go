package domain

import (
	"chat-relay/errors"
	"strings"

	"github.com/forPelevin/gomoji"
)

// variationSelector asks for the emoji presentation of the previous character.
const variationSelector = "\uFE0F"

// ValidateReaction checks that the reaction is exactly one emoji and nothing else.
// The emoji presentation selector is optional, "❤️" and "❤" are both accepted.
func ValidateReaction(reaction string) error {
	if singleEmoji(reaction) || singleEmoji(strings.ReplaceAll(reaction, variationSelector, "")) {
		return nil
	}
	return errors.ErrInvalidReaction
}

func singleEmoji(s string) bool {
	if s == "" {
		return false
	}
	emojisList := gomoji.CollectAll(s)
	return len(emojisList) == 1 && emojisList[0].Character == s
}

package moderation

import (
	"log/slog"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// Moderator masks forbidden words in message content before it is persisted or broadcast.
type Moderator struct {
	matcher *goahocorasick.Machine
	empty   bool
	mask    rune
	log     *slog.Logger
}

// folded is a content reduced to the runes the matcher compares, with the position
// each one had in the content.
type folded struct {
	runes  []rune
	origin []int
}

// NewModerator builds the matcher over the folded forbidden words.
// Words made only of noise are ignored.
func NewModerator(censoredWords []string, mask rune, log *slog.Logger) (*Moderator, error) {
	patterns := make([][]rune, 0, len(censoredWords))
	for _, word := range censoredWords {
		if f := fold([]rune(word)); len(f.runes) > 0 {
			patterns = append(patterns, f.runes)
		}
	}

	matcher := new(goahocorasick.Machine)
	if len(patterns) > 0 {
		if err := matcher.Build(patterns); err != nil {
			return nil, err
		}
	}
	log.Debug("Moderator ready", "patterns", len(patterns))
	return &Moderator{matcher: matcher, empty: len(patterns) == 0, mask: mask, log: log}, nil
}

// Censor masks every forbidden word of content, noise between its letters included,
// and returns the folded words it found in order of appearance.
func (m *Moderator) Censor(content string) (string, []string) {
	if m.empty {
		return content, nil
	}
	runes := []rune(content)
	f := fold(runes)
	if len(f.runes) == 0 {
		return content, nil
	}

	var words []string
	for _, hit := range m.matcher.MultiPatternSearch(f.runes, false) {
		from, to, ok := f.span(hit.Pos, len(hit.Word))
		if !ok {
			continue
		}
		for i := from; i < to; i++ {
			runes[i] = m.mask
		}
		words = append(words, string(hit.Word))
	}
	if len(words) == 0 {
		return content, nil
	}
	m.log.Debug("Content censored", "words", len(words))
	return string(runes), words
}

// span maps a match on folded runes back to the half-open range it covers in the content.
func (f folded) span(pos, length int) (int, int, bool) {
	if pos < 0 || length == 0 || pos+length > len(f.origin) {
		return 0, 0, false
	}
	return f.origin[pos], f.origin[pos+length-1] + 1, true
}

// fold drops noise, undoes leet substitutions and lowercases what is left.
func fold(input []rune) folded {
	f := folded{runes: make([]rune, 0, len(input)), origin: make([]int, 0, len(input))}
	for i, r := range input {
		r = unleet(r)
		if unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r) {
			continue
		}
		f.runes = append(f.runes, unicode.ToLower(r))
		f.origin = append(f.origin, i)
	}
	return f
}

func unleet(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	}
	return r
}

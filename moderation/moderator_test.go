package moderation

import (
	"chat-relay/errors"
	"log/slog"
	"testing"
	"testing/fstest"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

const replacementChar = '*'

// TestModerator_Censor
// Dictionary words are picked so that they do not hide inside ordinary words once spaces are dropped
func TestModerator_Censor(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	dictionary := []string{"idiot", "scam", "moron"}
	mod, err := NewModerator(dictionary, replacementChar, log)
	req.NoError(err)

	tests := []struct {
		name     string
		input    string
		expected string
		words    []string
	}{
		{
			name:     "Word inside a sentence keeps the punctuation around it",
			input:    "you idiot, stop",
			expected: "you *****, stop",
			words:    []string{"idiot"},
		},
		{
			name:     "Repeated word",
			input:    "scam scam",
			expected: "**** ****",
			words:    []string{"scam", "scam"},
		},
		{
			name: "Leet speak and internal punctuation",
			// 5 (index 7) . c . 4 . m (index 13) -> 7 characters
			input:    "what a 5.c.4.m",
			expected: "what a *******",
			words:    []string{"scam"},
		},
		{
			name:     "Uppercase, separators and digits",
			input:    "M-O-R-O-N and 1d10t",
			expected: "********* and *****",
			words:    []string{"moron", "idiot"},
		},
		{
			name:     "Accents around the word (UTF-8)",
			input:    "Un été avec un idiot",
			expected: "Un été avec un *****",
			words:    []string{"idiot"},
		},
		{
			name:     "Word adjacent to trailing punctuation",
			input:    "Total scam!",
			expected: "Total ****!",
			words:    []string{"scam"},
		},
		{
			name:     "Nothing to censor",
			input:    "Chat-Relay is amazing",
			expected: "Chat-Relay is amazing",
			words:    nil,
		},
		{
			name:     "Empty string",
			input:    "",
			expected: "",
			words:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content, words := mod.Censor(tt.input)
			req.Equal(tt.expected, content, "test=%s,", tt.name)
			req.Equal(tt.words, words, "expected=%s,words=%s", tt.expected, words)
		})
	}
}

func TestModerator_CornerCases(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	// Given real noise and not Leet Speak associated
	dictionary := []string{"...", ",,,", "", "idiot"}

	mod, err := NewModerator(dictionary, replacementChar, log)
	req.NoError(err)

	// Then the sentence is censored
	input := "The idiot is back"
	expected := "The ***** is back"
	content, words := mod.Censor(input)
	req.Equal(expected, content)
	req.Equal([]string{"idiot"}, words)

	// Then real noise is uncensored
	input = "Hello ..."
	expected = "Hello ..."
	content, words = mod.Censor(input)
	req.Equal(expected, content)
	req.Nil(words)
}

func TestModerator_EmptyDictionary(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	mod, err := NewModerator([]string{"...", " "}, replacementChar, log)
	req.NoError(err)

	content, words := mod.Censor("nothing to hide")
	req.Equal("nothing to hide", content)
	req.Nil(words)
}

func TestCensoredLoader_LoadAll(t *testing.T) {
	req := require.New(t)

	// Given two dictionaries sharing a word and a stray file
	loader := NewCensoredLoader(fstest.MapFS{
		"words/en.txt":    {Data: []byte("badger\r\nsnake\n\n")},
		"words/fr.txt":    {Data: []byte("blaireau\nbadger\n")},
		"words/README.md": {Data: []byte("ignored")},
	})

	// When they are loaded
	data, err := loader.LoadAll("words")

	// Then words are unique and languages come from file names
	req.NoError(err)
	req.Equal([]string{"badger", "snake", "blaireau"}, data.Words)
	req.Equal([]string{"en", "fr"}, data.Languages)
}

func TestCensoredLoader_Empty(t *testing.T) {
	req := require.New(t)
	loader := NewCensoredLoader(fstest.MapFS{"words/en.txt": {Data: []byte("\n")}})

	_, err := loader.LoadAll("words")

	req.ErrorIs(err, errors.ErrEmptyWords)
}

func TestDefaultLoader(t *testing.T) {
	req := require.New(t)

	data, err := DefaultLoader().LoadAll("censored")

	req.NoError(err)
	req.NotEmpty(data.Words)
	req.ElementsMatch([]string{"en", "fr"}, data.Languages)
}

func TestFold_SpanMapsBackToContent(t *testing.T) {
	req := require.New(t)

	// Given content where noise splits a word
	f := fold([]rune("a s.c-a m!"))

	// Then folded runes keep their origin in the content
	req.Equal("ascami", string(f.runes))
	from, to, ok := f.span(1, 4)
	req.True(ok)
	req.Equal(2, from)
	req.Equal(9, to)

	// And a match past the folded content maps to nothing
	_, _, ok = f.span(4, 4)
	req.False(ok)
}

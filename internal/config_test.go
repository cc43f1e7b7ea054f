package internal

import (
	"testing"
	"time"

	"github.com/Netflix/go-env"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults(t *testing.T) {
	req := require.New(t)

	// Given only the required variables
	environ := env.EnvSet{
		"JWT_SECRET":      "secret",
		"BADGER_FILEPATH": "/tmp/badger",
		"BLUGE_FILEPATH":  "/tmp/bluge",
	}

	// When the config is unmarshalled
	var config Config
	err := env.Unmarshal(environ, &config)

	// Then every optional value has its default
	req.NoError(err)
	req.Equal(8080, config.Port)
	req.Equal(2*time.Second, config.TypingTimeout)
	req.Equal(time.Minute, config.RoomIdleTimeout)
	req.Equal(50, *config.HistoryLimit())
	req.Equal(20, config.ContactResults)
	req.Equal([]string{"*"}, config.Origins())
}

func TestConfig_MissingSecret(t *testing.T) {
	var config Config
	err := env.Unmarshal(env.EnvSet{"BADGER_FILEPATH": "a", "BLUGE_FILEPATH": "b"}, &config)
	require.Error(t, err)
}

func TestConfig_HistoryLimitCanBeDisabled(t *testing.T) {
	req := require.New(t)
	var config Config

	err := env.Unmarshal(env.EnvSet{
		"JWT_SECRET":      "secret",
		"BADGER_FILEPATH": "a",
		"BLUGE_FILEPATH":  "b",
		"LIMIT_MESSAGES":  "0",
	}, &config)

	req.NoError(err)
	req.Nil(config.HistoryLimit())
}

func TestConfig_Origins(t *testing.T) {
	config := Config{AllowedOrigins: " https://a.example, ,https://b.example"}
	require.Equal(t, []string{"https://a.example", "https://b.example"}, config.Origins())
}

func TestCharacterRune(t *testing.T) {
	req := require.New(t)

	r, err := CharacterRune("#")
	req.NoError(err)
	req.Equal('#', r)

	_, err = CharacterRune("##")
	req.Error(err)
}

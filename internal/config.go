package internal

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	JwtSecret            string        `env:"JWT_SECRET,required=true"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath        string        `env:"BLUGE_FILEPATH,required=true"`
	LogLevel             string        `env:"LOG_LEVEL,default=INFO"`
	Host                 string        `env:"HOST,default=0.0.0.0"`
	Port                 int           `env:"PORT,default=8080"`
	AdminPort            int           `env:"ADMIN_PORT,default=9090"`
	AllowedOrigins       string        `env:"ALLOWED_ORIGINS,default=*"`
	CharReplacement      string        `env:"CHARACTER_REPLACEMENT,default=*"`
	LimitMessages        int           `env:"LIMIT_MESSAGES,default=50"`
	MaxContentLength     int           `env:"MAX_CONTENT_LENGTH,default=4000"`
	ContactResults       int           `env:"CONTACT_RESULTS,default=20"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=256"`
	RoomBufferSize       int           `env:"ROOM_BUFFER_SIZE,default=64"`
	RoomIdleTimeout      time.Duration `env:"ROOM_IDLE_TIMEOUT,default=1m"`
	TypingTimeout        time.Duration `env:"TYPING_TIMEOUT,default=2s"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,default=5s"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}

// HistoryLimit is the history page size, nil when LIMIT_MESSAGES disables paging.
func (c Config) HistoryLimit() *int {
	if c.LimitMessages <= 0 {
		return nil
	}
	limit := c.LimitMessages
	return &limit
}

// Origins splits the comma separated ALLOWED_ORIGINS value.
func (c Config) Origins() []string {
	var origins []string
	for _, origin := range strings.Split(c.AllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// RELAY_ADDR is the host:port of a running relay, the suite is skipped without it
	RelayAddr string `envconfig:"RELAY_ADDR"`
	JwtSecret string `envconfig:"JWT_SECRET"`
	// E2E_DEBUG_JSON allows dumping every frame read or written
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}

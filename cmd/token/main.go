// Command token mints a development access token for the relay.
// Identities are normally issued by an external service sharing JWT_SECRET.
package main

import (
	"chat-relay/auth"
	"chat-relay/domain"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	JwtSecret string        `envconfig:"JWT_SECRET" required:"true"`
	Duration  time.Duration `envconfig:"TOKEN_DURATION" default:"24h"`
	// TOKEN_COLOURS enables colorized output
	Colours bool `envconfig:"TOKEN_COLOURS" default:"true"`
}

func main() {
	_ = godotenv.Load()
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(2)
	}

	id := flag.String("id", "", "User id (required)")
	username := flag.String("username", "", "Display name")
	avatar := flag.String("avatar", "", "Avatar URL")
	flag.Parse()
	if *id == "" {
		flag.Usage()
		os.Exit(2)
	}

	identity := domain.Identity{ID: *id, Username: *username, Avatar: *avatar}
	token, err := auth.NewVerifier(config.JwtSecret).GenerateToken(identity, config.Duration)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Token generation failed: %v\n", err)
		os.Exit(1)
	}

	header := fmt.Sprintf("Token for %s, valid %s", identity.DisplayName(), config.Duration)
	if config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	fmt.Fprintln(os.Stderr, header)
	fmt.Println(token)
}

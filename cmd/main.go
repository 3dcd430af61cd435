package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/desertthunder/overtone/internal/auth"
	"github.com/desertthunder/overtone/internal/shared"
	"github.com/desertthunder/overtone/internal/spotify"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	if _, err := os.Stat("config.toml"); err == nil {
		if loadedConfig, err := shared.LoadConfig("config.toml"); err == nil {
			config = loadedConfig
		} else {
			logger.Warn("failed to load config.toml, using defaults", "error", err)
		}
	}

	creds := auth.Credentials{
		ClientID:     config.Credentials.Spotify.ClientID,
		ClientSecret: config.Credentials.Spotify.ClientSecret,
		RedirectURI:  config.Credentials.Spotify.RedirectURI,
	}

	var store auth.Store
	if tokenPath, err := config.Storage.ResolveTokenPath(); err == nil {
		store = auth.NewFileStore(tokenPath)
	} else {
		logger.Warn("token persistence disabled", "error", err)
	}

	httpClient := &http.Client{Timeout: 10 * time.Second}
	flow := auth.NewFlow(auth.FlowOpts{
		Credentials: creds,
		HTTPClient:  httpClient,
		Logger:      logger,
	})
	session := auth.NewSession(auth.SessionOpts{
		Credentials: creds,
		Store:       store,
		Flow:        flow,
		HTTPClient:  httpClient,
		Logger:      logger,
	})
	player := spotify.NewClient(spotify.ClientOpts{
		Session: session,
		Logger:  logger,
	})

	runner := NewRunner(RunnerOpts{
		Config:     config,
		Player:     player,
		Session:    session,
		HTTPClient: httpClient,
		Logger:     logger,
	})

	app := &cli.Command{
		Name:     "overtone",
		Usage:    "Control Spotify playback from the terminal",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatalf("application error: %v", err)
	}
}

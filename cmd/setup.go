package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/overtone/internal/auth"
	"github.com/desertthunder/overtone/internal/repositories"
	"github.com/desertthunder/overtone/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupInit creates a config file and initializes the history database.
func (r *Runner) SetupInit(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	var config *shared.Config
	if _, err := os.Stat(configPath); err == nil {
		if config, err = shared.LoadConfig(configPath); err != nil {
			r.logger.Warn("failed to load config, using defaults", "error", err)
			config = shared.DefaultConfig()
		}
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
			config = shared.DefaultConfig()
		} else {
			r.logger.Info("config file created", "path", configPath)
			if config, err = shared.LoadConfig(configPath); err != nil {
				r.logger.Warn("failed to load created config, using defaults", "error", err)
				config = shared.DefaultConfig()
			}
		}
	}

	dbPath := config.Storage.DatabasePath
	if dbPath == "" {
		dbPath = "overtone.db"
	}

	r.logger.Info("initializing history database", "path", dbPath)

	db, err := shared.NewDatabase(dbPath)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, config.Storage.MaxOpenConns, config.Storage.MaxIdleConns)

	if err := repositories.NewHistoryRepository(db).EnsureSchema(); err != nil {
		return err
	}

	r.logger.Infof("setup complete for database: %v", dbPath)
	r.writePlain("✓ Configuration ready at %s\n", configPath)
	r.writePlain("Fill in credentials.spotify and run 'overtone setup validate'\n")
	return nil
}

// SetupValidate checks the configured credentials against the provider
// without starting an interactive authorization.
func (r *Runner) SetupValidate(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	config := r.config
	if _, err := os.Stat(configPath); err == nil {
		if loaded, err := shared.LoadConfig(configPath); err == nil {
			config = loaded
		} else {
			return err
		}
	}

	creds := auth.Credentials{
		ClientID:     config.Credentials.Spotify.ClientID,
		ClientSecret: config.Credentials.Spotify.ClientSecret,
		RedirectURI:  config.Credentials.Spotify.RedirectURI,
	}

	r.logger.Info("validating credentials")

	if err := auth.ValidateCredentials(ctx, r.httpClient, "", creds); err != nil {
		return err
	}

	r.writePlain("✓ Credentials accepted by Spotify\n")
	r.writePlain("Run 'overtone auth login' to authorize your account\n")
	return nil
}

package main

import (
	"context"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/koretax/taxchat/internal/ai"
	"github.com/koretax/taxchat/internal/config"
	"github.com/koretax/taxchat/internal/seeder"
	"github.com/koretax/taxchat/internal/store"
)

func main() {
	fs := pflag.NewFlagSet("taxchat-seeder", pflag.ExitOnError)

	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	fs.Usage = cfg.Usage

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatal().Str("log_level", cfg.LogLevel).Err(err).Msg("invalid log level")
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	ctx := context.Background()

	client, err := ai.NewClient(ctx, &ai.ClientConfig{
		APIKey:     cfg.APIKey,
		EmbedModel: cfg.EmbedModel,
		ChatModel:  cfg.ChatModel,
		Dim:        cfg.Dim,
		ProjectID:  cfg.ProjectID,
		Location:   cfg.Location,
		Provider:   ai.Provider(strings.ToLower(cfg.Provider)),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create AI client")
	}
	if client.Dim() == 0 {
		log.Fatal().Msg("embedding dimension must be set")
	}

	var st store.ChunkStore
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pg, err := store.NewPGStore(ctx, cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pg.Close()
		if err := pg.Migrate(ctx, client.Dim()); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate database")
		}
		st = pg
	default:
		st = store.NewFileStore(cfg.StorePath)
	}

	log.Info().
		Str("provider", cfg.Provider).
		Str("docs_dir", cfg.DocsDir).
		Str("backend", cfg.StoreBackend).
		Int("workers", cfg.SeedWorkers).
		Float64("rate", cfg.SeedRate).
		Msg("seeding knowledge store")

	sd := seeder.New(st, client, cfg.DocsDir, cfg.SeedWorkers, cfg.SeedRate)
	n, err := sd.Run(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("seeding failed, no store written")
	}
	log.Info().Int("chunks", n).Msg("knowledge store written")
}

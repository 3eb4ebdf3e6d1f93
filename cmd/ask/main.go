package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/koretax/taxchat/internal/ai"
	"github.com/koretax/taxchat/internal/config"
	"github.com/koretax/taxchat/internal/retrieval"
	"github.com/koretax/taxchat/internal/store"
)

var exitKeywords = map[string]bool{
	"exit": true,
	"quit": true,
	"종료":   true,
}

func main() {
	fs := pflag.NewFlagSet("taxchat-ask", pflag.ExitOnError)

	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	fs.Usage = cfg.Usage

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatal().Str("log_level", cfg.LogLevel).Err(err).Msg("invalid log level")
	}
	// Answers go to stdout; logs stay on stderr.
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

	var st store.ChunkStore
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pg, err := store.NewPGStore(ctx, cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pg.Close()
		st = pg
	default:
		st = store.NewFileStore(cfg.StorePath)
	}

	count, err := st.Count(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("knowledge store is unreadable")
	}
	if count == 0 {
		log.Fatal().Str("store", cfg.StorePath).Msg("knowledge store is empty, run the seeder first")
	}

	svc := retrieval.NewService(client, st, cfg.TopK, cfg.Floor)
	opts := retrieval.AnswerOptions{Language: retrieval.NormalizeLanguage(cfg.Language)}

	if args := fs.Args(); len(args) > 0 {
		printAnswer(svc.Ask(ctx, strings.Join(args, " "), opts))
		return
	}

	fmt.Println("세금 관련 질문을 입력하세요. / Ask a tax question. (exit/quit/종료)")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		q := strings.TrimSpace(scanner.Text())
		if q == "" {
			continue
		}
		if exitKeywords[strings.ToLower(q)] {
			break
		}
		printAnswer(svc.Ask(ctx, q, opts))
	}
}

func printAnswer(resp retrieval.Response) {
	fmt.Println()
	fmt.Println(resp.Answer)
	if len(resp.Sources) > 0 {
		names := make([]string, 0, len(resp.Sources))
		for _, s := range resp.Sources {
			names = append(names, fmt.Sprintf("%s (%.2f)", s.Name, s.Similarity))
		}
		fmt.Println("\n출처/Sources: " + strings.Join(names, ", "))
	}
	fmt.Println()
}

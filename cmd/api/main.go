package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/koretax/taxchat/internal/ai"
	"github.com/koretax/taxchat/internal/config"
	"github.com/koretax/taxchat/internal/overrides"
	"github.com/koretax/taxchat/internal/retrieval"
	"github.com/koretax/taxchat/internal/store"
	"github.com/koretax/taxchat/internal/watcher"
)

type chatRequest struct {
	Message  string `json:"message"`
	Context  string `json:"context,omitempty"`
	Language string `json:"language,omitempty"`
}

type chatResponse struct {
	Answer     string             `json:"answer"`
	Sources    []retrieval.Source `json:"sources"`
	Overridden bool               `json:"overridden"`
}

func main() {
	fs := pflag.NewFlagSet("taxchat-api", pflag.ExitOnError)

	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	fs.Usage = cfg.Usage

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatal().Str("log_level", cfg.LogLevel).Err(err).Msg("invalid log level")
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	log.Logger = logger
	logger.Info().Str("provider", cfg.Provider).Str("backend", cfg.StoreBackend).Str("log_level", cfg.LogLevel).Msg("starting taxchat api")

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
	logger.Info().Int("embedding_dim", client.Dim()).Str("embed_model", cfg.EmbedModel).Msg("AI client initialized")

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
		fileStore := store.NewFileStore(cfg.StorePath)
		st = fileStore
		if cfg.Watch {
			w := watcher.New(cfg.StorePath, fileStore.Invalidate, logger)
			if err := w.Start(ctx); err != nil {
				logger.Warn().Err(err).Msg("store watcher unavailable, reseeds need a restart")
			}
		}
	}

	svc := retrieval.NewService(client, st, cfg.TopK, cfg.Floor)
	rules := overrides.NewEngine(overrides.DefaultRules())
	defaultLang := retrieval.NormalizeLanguage(cfg.Language)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(requestID)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Get("/stats", func(w http.ResponseWriter, req *http.Request) {
		n, err := st.Count(req.Context())
		if err != nil {
			hlog.FromRequest(req).Error().Err(err).Msg("store count failed")
			http.Error(w, "store unavailable", http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]int{"chunks": n})
	})

	r.Post("/chat", func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()

		var in chatRequest
		if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		msg := strings.TrimSpace(in.Message)
		if msg == "" {
			http.Error(w, "message is required", http.StatusBadRequest)
			return
		}
		lang := defaultLang
		if in.Language != "" {
			lang = retrieval.NormalizeLanguage(in.Language)
		}

		// Product questions get canned answers; nothing reaches the
		// retrieval core.
		if answer, ok := rules.Apply(msg, lang); ok {
			hlog.FromRequest(req).Info().Str("lang", string(lang)).Dur("dur", time.Since(start)).Msg("chat served by override")
			writeJSON(w, chatResponse{Answer: answer, Sources: []retrieval.Source{}, Overridden: true})
			return
		}

		resp := svc.Ask(req.Context(), msg, retrieval.AnswerOptions{
			Language: lang,
			Context:  in.Context,
		})
		hlog.FromRequest(req).Info().
			Str("lang", string(lang)).
			Int("sources", len(resp.Sources)).
			Dur("dur", time.Since(start)).
			Msg("chat served")
		writeJSON(w, chatResponse{Answer: resp.Answer, Sources: resp.Sources, Overridden: false})
	})

	handler := hlog.NewHandler(logger)(
		hlog.AccessHandler(func(req *http.Request, status, size int, dur time.Duration) {
			logger.Info().Str("method", req.Method).Str("path", req.URL.Path).Int("status", status).Int("size", size).Dur("dur", dur).Msg("http")
		})(r),
	)

	address := fmt.Sprintf(":%d", cfg.Port)
	s := &http.Server{Addr: address, Handler: handler}
	logger.Info().Str("addr", s.Addr).Msg("api server listening")
	if err := s.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

// requestID tags each request with a UUID, echoed in the response header
// and attached to the request logger.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-ID", id)
		if l := zerolog.Ctx(req.Context()); l != nil {
			l.UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("request_id", id)
			})
		}
		next.ServeHTTP(w, req)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

type Specification struct {
	Provider   string `yaml:"provider"`
	APIKey     string `yaml:"providerApiKey" envconfig:"PROVIDER_API_KEY"`
	EmbedModel string `yaml:"providerEmbedModel" envconfig:"PROVIDER_EMBEDDING_MODEL"`
	ChatModel  string `yaml:"providerChatModel" envconfig:"PROVIDER_CHAT_MODEL"`
	ProjectID  string `yaml:"providerProjectID" envconfig:"PROVIDER_PROJECT_ID"`
	Location   string `yaml:"providerLocation" envconfig:"PROVIDER_LOCATION"`
	Dim        int    `yaml:"providerDim" envconfig:"EMBED_DIM"`

	StoreBackend string `yaml:"storeBackend" split_words:"true"`
	StorePath    string `yaml:"storePath" split_words:"true"`
	Database     string `yaml:"database" envconfig:"DB_URL"`

	DocsDir     string  `yaml:"docsDir" split_words:"true"`
	SeedWorkers int     `yaml:"seedWorkers" split_words:"true"`
	SeedRate    float64 `yaml:"seedRate" split_words:"true"`

	TopK     int     `yaml:"topK" envconfig:"TOP_K"`
	Floor    float64 `yaml:"similarityFloor" envconfig:"SIMILARITY_FLOOR"`
	Language string  `yaml:"language"`

	Watch    bool   `yaml:"watch"`
	LogLevel string `yaml:"logLevel" split_words:"true"`
	Port     int    `yaml:"port" split_words:"true"`

	flags *pflag.FlagSet `ignored:"true"`
}

const envPrefix = "TAXCHAT"

// Store backends.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

func (s *Specification) Usage() {
	fmt.Fprint(os.Stderr, s.flags.FlagUsages())
}

// Load => defaults < YAML < env < flags.
// configPath may be ""; if so we auto-discover.
func Load(configPath string, fs *pflag.FlagSet) (Specification, error) {
	var cfg Specification

	// set defaults (lowest precedence)
	setDefaults(&cfg)
	bindFlags(fs, &cfg)

	// config file
	path := configPath
	if path == "" {
		if v := os.Getenv(envPrefix + "_CONFIG"); v != "" {
			path = v
		} else {
			for _, cand := range []string{
				"config/taxchat.yaml",
				"config/config.yaml",
				"./taxchat.yaml",
				"./config.yaml",
			} {
				if fileExists(cand) {
					path = cand
					break
				}
			}
		}
	}

	if path != "" {
		if !fileExists(path) {
			return Specification{}, fmt.Errorf("config file not found: %s", path)
		}
		if err := loadYAML(path, &cfg); err != nil {
			return Specification{}, fmt.Errorf("load yaml %s: %w", path, err)
		}
	}

	// env overrides config file
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Specification{}, fmt.Errorf("env override: %w", err)
	}

	// flags override everything
	if err := fs.Parse(os.Args[1:]); err != nil {
		return Specification{}, err
	}
	applyChangedFlags(fs, &cfg)

	// Minimal sanity
	switch cfg.StoreBackend {
	case BackendFile:
		if strings.TrimSpace(cfg.StorePath) == "" {
			return Specification{}, fmt.Errorf("store path is required for the file backend")
		}
	case BackendPostgres:
		if strings.TrimSpace(cfg.Database) == "" {
			return Specification{}, fmt.Errorf("%s_DB_URL is required for the postgres backend", envPrefix)
		}
	default:
		return Specification{}, fmt.Errorf("unsupported store backend: %s", cfg.StoreBackend)
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = "info"
	}
	return cfg, nil
}

// ---------- helpers ----------

func loadYAML(path string, into any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, into)
}

func fileExists(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && !fi.IsDir()
}

func bindFlags(fs *pflag.FlagSet, c *Specification) {
	fs.String("config", "", "Path to config file")

	// If --config is provided on the command line, capture it now so
	// config discovery (which runs before flags.Parse) can use it.
	for i, a := range os.Args {
		if a == "--config" {
			if i+1 < len(os.Args) && !strings.HasPrefix(os.Args[i+1], "-") {
				_ = os.Setenv(envPrefix+"_CONFIG", os.Args[i+1])
			}
		} else if strings.HasPrefix(a, "--config=") {
			parts := strings.SplitN(a, "=", 2)
			if len(parts) == 2 {
				_ = os.Setenv(envPrefix+"_CONFIG", parts[1])
			}
		}
	}

	fs.String("provider", c.Provider, "Provider (stub, openai, gemini)")
	fs.String("provider-api-key", c.APIKey, "Provider API key")
	fs.String("provider-embedding-model", c.EmbedModel, "Provider embedding model")
	fs.String("provider-chat-model", c.ChatModel, "Provider chat/generation model")
	fs.String("provider-project-id", c.ProjectID, "Provider project ID")
	fs.String("provider-location", c.Location, "Provider location/region")

	fs.Int("embed-dim", c.Dim, "Embedding dimensionality")

	fs.String("store-backend", c.StoreBackend, "Chunk store backend (file|postgres)")
	fs.String("store-path", c.StorePath, "Path to the JSON store artifact (file backend)")
	fs.String("db-url", c.Database, "Database URL (postgres backend)")

	fs.String("docs-dir", c.DocsDir, "Knowledge-base documents directory")
	fs.Int("seed-workers", c.SeedWorkers, "Concurrent embedding workers during seeding")
	fs.Float64("seed-rate", c.SeedRate, "Embedding requests per second during seeding")

	fs.Int("top-k", c.TopK, "Number of chunks to retrieve per question")
	fs.Float64("similarity-floor", c.Floor, "Minimum cosine similarity for retrieved chunks (0 disables)")
	fs.String("language", c.Language, "Default answer language (ko|en)")

	fs.Bool("watch", c.Watch, "Reload the file store when the artifact changes")
	fs.String("log-level", c.LogLevel, "Log level (debug|info|warn|error)")
	fs.Int("port", c.Port, "API server port")

	// Used later for usage/help
	// create a shallow copy of fs (so Usage can be called safely without mutating caller)
	copied := pflag.NewFlagSet("temp", pflag.ContinueOnError)
	*copied = *fs
	c.flags = copied
}

func applyChangedFlags(fs *pflag.FlagSet, c *Specification) {
	setStr := func(name string, dst *string) {
		if fs.Changed(name) {
			v, _ := fs.GetString(name)
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		if fs.Changed(name) {
			v, _ := fs.GetInt(name)
			*dst = v
		}
	}
	setFloat := func(name string, dst *float64) {
		if fs.Changed(name) {
			v, _ := fs.GetFloat64(name)
			*dst = v
		}
	}
	setBool := func(name string, dst *bool) {
		if fs.Changed(name) {
			v, _ := fs.GetBool(name)
			*dst = v
		}
	}

	// (We ignore --config here; it's for discovery.)
	setStr("provider", &c.Provider)
	setStr("provider-api-key", &c.APIKey)
	setStr("provider-embedding-model", &c.EmbedModel)
	setStr("provider-chat-model", &c.ChatModel)
	setStr("provider-project-id", &c.ProjectID)
	setStr("provider-location", &c.Location)

	setInt("embed-dim", &c.Dim)

	setStr("store-backend", &c.StoreBackend)
	setStr("store-path", &c.StorePath)
	setStr("db-url", &c.Database)

	setStr("docs-dir", &c.DocsDir)
	setInt("seed-workers", &c.SeedWorkers)
	setFloat("seed-rate", &c.SeedRate)

	setInt("top-k", &c.TopK)
	setFloat("similarity-floor", &c.Floor)
	setStr("language", &c.Language)

	setBool("watch", &c.Watch)
	setStr("log-level", &c.LogLevel)
	setInt("port", &c.Port)
}

func setDefaults(c *Specification) {
	c.Provider = "stub"
	c.Location = "us-central1"
	c.StoreBackend = BackendFile
	c.StorePath = "data/store.json"
	c.DocsDir = "docs"
	c.SeedWorkers = 4
	c.SeedRate = 5
	c.TopK = 3
	c.Floor = 0.1
	c.Language = "ko"
	c.LogLevel = "info"
	c.Port = 8080
	c.Dim = 0
}

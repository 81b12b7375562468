package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all settings for the indexer and search engine. It is
// constructed once at startup and passed explicitly to the components
// that need it.
type Config struct {
	// DBPath is the SQLite database file location.
	DBPath string

	// Ollama endpoint and model selection.
	OllamaURL        string
	EmbedModel       string
	VisionModel      string // detailed image descriptions
	VisionModelSmall string // compact classifier fallback
	TextModel        string // lightweight text classification

	// OpenAI fallback and rerank settings.
	OpenAIKey       string
	OpenAIModel     string
	UseOpenAIOnly   bool // skip local models entirely
	UseOpenAIRerank bool // rerank keyword results instead of semantic search

	// MaxScanFiles bounds a single directory scan.
	MaxScanFiles int
}

// Defaults mirroring the models the indexer was tuned against.
const (
	defaultEmbedModel       = "nomic-embed-text"
	defaultVisionModel      = "llama3.2-vision"
	defaultVisionModelSmall = "moondream"
	defaultTextModel        = "llama3.2:1b"
	defaultOpenAIModel      = "gpt-4o-mini"
	defaultMaxScanFiles     = 1000
)

// Load builds a Config from environment variables, reading a .env file
// first if one is present. Environment variables already set take
// precedence over .env values.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBPath:           getEnv("FILEDEX_DB", defaultDBPath()),
		OllamaURL:        getEnv("OLLAMA_URL", "http://localhost:11434"),
		EmbedModel:       getEnv("FILEDEX_EMBED_MODEL", defaultEmbedModel),
		VisionModel:      getEnv("FILEDEX_VISION_MODEL", defaultVisionModel),
		VisionModelSmall: getEnv("FILEDEX_VISION_MODEL_SMALL", defaultVisionModelSmall),
		TextModel:        getEnv("FILEDEX_TEXT_MODEL", defaultTextModel),
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:      getEnv("OPENAI_SEARCH_MODEL", defaultOpenAIModel),
		UseOpenAIOnly:    getEnvBool("FILEDEX_OPENAI_ONLY"),
		UseOpenAIRerank:  getEnvBool("FILEDEX_OPENAI_RERANK"),
		MaxScanFiles:     defaultMaxScanFiles,
	}

	if v := os.Getenv("FILEDEX_MAX_SCAN_FILES"); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil && n > 0 {
			cfg.MaxScanFiles = n
		}
	}

	return cfg, nil
}

// defaultDBPath is <config dir>/filedex/index.db, falling back to the
// working directory when the user config dir cannot be resolved.
func defaultDBPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".filedex", "index.db")
	}
	return filepath.Join(base, "filedex", "index.db")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string) bool {
	switch os.Getenv(key) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

package config

import (
	"fmt"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	OpenAI    OpenAIConfig
	Storage   StorageConfig
	Retrieval RetrievalConfig
	Answer    AnswerConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host string
	Port int
	// APIToken, when set, protects the reprocess endpoint with bearer auth.
	APIToken string
}

type OpenAIConfig struct {
	BaseURL    string
	APIKey     string
	EmbedModel string
	ChatModel  string
	// TimeoutSeconds bounds every embeddings/completions HTTP call.
	TimeoutSeconds int
}

type StorageConfig struct {
	DataDir string
	DocsDir string
}

type RetrievalConfig struct {
	TopK         int
	ChunkSize    int
	ChunkOverlap int
}

type AnswerConfig struct {
	Temperature float64
	MaxTokens   int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8000,
		},
		OpenAI: OpenAIConfig{
			BaseURL:        "https://api.openai.com/v1",
			EmbedModel:     "text-embedding-3-large",
			ChatModel:      "gpt-3.5-turbo",
			TimeoutSeconds: 60,
		},
		Storage: StorageConfig{
			DataDir: "./data",
			DocsDir: "./docs",
		},
		Retrieval: RetrievalConfig{
			TopK:         5,
			ChunkSize:    1000,
			ChunkOverlap: 200,
		},
		Answer: AnswerConfig{
			Temperature: 0.3,
			MaxTokens:   500,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from defaults, an optional .env file in the
// working directory, and DOCQA_* environment variables (highest precedence).
// The OpenAI API key is required.
func Load() (Config, error) {
	// A missing .env file is not an error; env vars alone are fine.
	_ = godotenv.Load()

	cfg := defaults()
	applyEnvOverrides(&cfg)

	if cfg.OpenAI.APIKey == "" {
		return Config{}, fmt.Errorf("missing required config: OpenAI API key. Set it via environment variable DOCQA_OPENAI_API_KEY or a .env file")
	}
	if cfg.Retrieval.ChunkOverlap >= cfg.Retrieval.ChunkSize {
		return Config{}, fmt.Errorf("chunk overlap (%d) must be smaller than chunk size (%d)", cfg.Retrieval.ChunkOverlap, cfg.Retrieval.ChunkSize)
	}

	return cfg, nil
}

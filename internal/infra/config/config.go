package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config is the full runtime configuration, assembled from environment
// variables. A local .env file is honored when present.
type Config struct {
	Env      string
	LogLevel string

	Server  ServerConfig
	Gemini  GeminiConfig
	Ollama  OllamaConfig
	Catalog CatalogConfig
	Match   MatchConfig
	Cache   CacheConfig
	OTel    OTelConfig
}

type ServerConfig struct {
	Port string `validate:"required"`
}

// GeminiConfig drives the trait-extraction and report-generation
// client. Retry and DelaySeconds apply to every generation call.
type GeminiConfig struct {
	APIKey         string `validate:"required"`
	BaseURL        string `validate:"required,url"`
	Model          string `validate:"required"`
	TimeoutSeconds int    `validate:"gte=1"`
	Retry          int    `validate:"gte=1"`
	DelaySeconds   int    `validate:"gte=0"`
}

func (g GeminiConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSeconds) * time.Second
}

func (g GeminiConfig) Delay() time.Duration {
	return time.Duration(g.DelaySeconds) * time.Second
}

type OllamaConfig struct {
	BaseURL        string `validate:"required,url"`
	EmbedModel     string `validate:"required"`
	TimeoutSeconds int    `validate:"gte=1"`
}

func (o OllamaConfig) Timeout() time.Duration {
	return time.Duration(o.TimeoutSeconds) * time.Second
}

// CatalogConfig selects where character records and embeddings come
// from: the bundled files or a pgvector-enabled Postgres.
type CatalogConfig struct {
	Source         string `validate:"oneof=file postgres"`
	DataPath       string `validate:"required_if=Source file"`
	EmbeddingsPath string `validate:"required_if=Source file"`
	DatabaseURL    string `validate:"required_if=Source postgres"`
}

type MatchConfig struct {
	TopK int `validate:"gte=1"`
}

type CacheConfig struct {
	Size       int `validate:"gte=0"`
	TTLSeconds int `validate:"gte=0"`
}

func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

type OTelConfig struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	Endpoint       string `validate:"omitempty,url"`
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	// Local development convenience; a missing .env is not an error.
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8085"),
		},
		Gemini: GeminiConfig{
			APIKey:         getSecret("GEMINI_API_KEY", "GEMINI_API_KEY_FILE"),
			BaseURL:        getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
			Model:          getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			TimeoutSeconds: getEnvInt("GEMINI_TIMEOUT_SECONDS", 60),
			Retry:          getEnvInt("GENAI_RETRY", 3),
			DelaySeconds:   getEnvInt("GENAI_DELAY_SECONDS", 1),
		},
		Ollama: OllamaConfig{
			BaseURL:        getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			EmbedModel:     getEnv("OLLAMA_EMBED_MODEL", "bge-m3"),
			TimeoutSeconds: getEnvInt("OLLAMA_TIMEOUT_SECONDS", 30),
		},
		Catalog: CatalogConfig{
			Source:         getEnv("CATALOG_SOURCE", "file"),
			DataPath:       getEnv("CHAR_DATA_PATH", "character_data_with_id.json"),
			EmbeddingsPath: getEnv("EMBEDDINGS_PATH", "character_embeddings_ollama.npy"),
			DatabaseURL:    getEnv("DATABASE_URL", ""),
		},
		Match: MatchConfig{
			TopK: getEnvInt("TOP_K", 5),
		},
		Cache: CacheConfig{
			Size:       getEnvInt("EMBED_CACHE_SIZE", 512),
			TTLSeconds: getEnvInt("EMBED_CACHE_TTL_SECONDS", 3600),
		},
		OTel: OTelConfig{
			Enabled:        getEnvBool("OTEL_ENABLED", false),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "chara-match"),
			ServiceVersion: getEnv("SERVICE_VERSION", "0.0.0"),
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4318"),
		},
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// getSecret resolves a credential either directly from envKey or from
// the file named by fileEnvKey (the Docker/Kubernetes secret-mount
// convention). The direct variable wins when both are set.
func getSecret(envKey, fileEnvKey string) string {
	if value, ok := os.LookupEnv(envKey); ok {
		return value
	}

	if filePath, ok := os.LookupEnv(fileEnvKey); ok {
		content, err := os.ReadFile(filePath)
		if err == nil {
			return strings.TrimSpace(string(content))
		}
	}

	return ""
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Environment string
	Port        string
	LogLevel    slog.Level

	DatabaseURL string
	RedisURL    string

	Kafka     KafkaConfig
	Casdoor   CasdoorConfig
	Generator GeneratorConfig
	Grader    GraderConfig
	Storage   StorageConfig
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type CasdoorConfig struct {
	Endpoint     string
	ClientID     string
	ClientSecret string
	Cert         string
	Organization string
	Application  string
}

const (
	ProviderOllama = "ollama"
	ProviderGemini = "gemini"
)

// GeneratorConfig selects the LLM backend used for question synthesis and plan analysis.
type GeneratorConfig struct {
	Provider     string // "ollama" or "gemini"
	OllamaURL    string
	OllamaModel  string
	GeminiAPIKey string
	GeminiModel  string
	Timeout      time.Duration
}

// GraderConfig points at the remote grading service. An empty URL grades locally.
type GraderConfig struct {
	URL       string
	UseGemini bool
	Timeout   time.Duration
}

type StorageConfig struct {
	SupabaseURL string
	SupabaseKey string
	Bucket      string
}

// LoadConfig reads .env (if present) and the process environment.
func LoadConfig() (*Config, error) {
	// .env is optional outside local development
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	cfg := &Config{
		Environment: v.GetString("ENVIRONMENT"),
		Port:        v.GetString("PORT"),
		DatabaseURL: v.GetString("DATABASE_URL"),
		RedisURL:    v.GetString("REDIS_URL"),
		Kafka: KafkaConfig{
			Brokers: splitList(v.GetString("KAFKA_BROKERS")),
			Topic:   v.GetString("KAFKA_TOPIC"),
		},
		Casdoor: CasdoorConfig{
			Endpoint:     v.GetString("CASDOOR_ENDPOINT"),
			ClientID:     v.GetString("CASDOOR_CLIENT_ID"),
			ClientSecret: v.GetString("CASDOOR_CLIENT_SECRET"),
			Cert:         v.GetString("CASDOOR_CERT"),
			Organization: v.GetString("CASDOOR_ORGANIZATION"),
			Application:  v.GetString("CASDOOR_APPLICATION"),
		},
		Generator: GeneratorConfig{
			Provider:     strings.ToLower(v.GetString("GENERATOR_PROVIDER")),
			OllamaURL:    v.GetString("OLLAMA_URL"),
			OllamaModel:  v.GetString("OLLAMA_MODEL"),
			GeminiAPIKey: v.GetString("GEMINI_API_KEY"),
			GeminiModel:  v.GetString("GEMINI_MODEL"),
			Timeout:      v.GetDuration("GENERATOR_TIMEOUT"),
		},
		Grader: GraderConfig{
			URL:       strings.TrimRight(v.GetString("GRADER_URL"), "/"),
			UseGemini: v.GetBool("GRADER_USE_GEMINI"),
			Timeout:   v.GetDuration("GRADER_TIMEOUT"),
		},
		Storage: StorageConfig{
			SupabaseURL: strings.TrimRight(v.GetString("SUPABASE_URL"), "/"),
			SupabaseKey: v.GetString("SUPABASE_KEY"),
			Bucket:      v.GetString("SUPABASE_BUCKET"),
		},
	}

	level, err := parseLogLevel(v.GetString("LOG_LEVEL"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("KAFKA_TOPIC", "assessment.events")
	v.SetDefault("GENERATOR_PROVIDER", ProviderOllama)
	v.SetDefault("OLLAMA_URL", "http://localhost:11434")
	v.SetDefault("OLLAMA_MODEL", "qwen3:0.6b")
	v.SetDefault("GEMINI_MODEL", "gemini-2.0-flash")
	v.SetDefault("GENERATOR_TIMEOUT", "120s")
	v.SetDefault("GRADER_TIMEOUT", "60s")
	v.SetDefault("SUPABASE_BUCKET", "exports")
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	switch c.Generator.Provider {
	case ProviderOllama:
	case ProviderGemini:
		if c.Generator.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when GENERATOR_PROVIDER=gemini")
		}
	default:
		return fmt.Errorf("unsupported GENERATOR_PROVIDER %q", c.Generator.Provider)
	}
	return nil
}

// StorageEnabled reports whether export publishing is configured.
func (c *Config) StorageEnabled() bool {
	return c.Storage.SupabaseURL != "" && c.Storage.SupabaseKey != ""
}

func parseLogLevel(raw string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q: %w", raw, err)
	}
	return level, nil
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

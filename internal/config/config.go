package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server     ServerConfig
	Redis      RedisConfig
	RateLimit  RateLimitConfig
	OpenAI     OpenAIConfig
	Anthropic  AnthropicConfig
	Generation GenerationConfig
}

type ServerConfig struct {
	Port      string
	Env       string
	LogLevel  string
	ApiDomain string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	ToursPerHour    int
	EstimatesPerMin int
}

type OpenAIConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	TTSModel string
}

type AnthropicConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Version string
}

// GenerationConfig controls the content pipeline: provider priority order,
// audio synthesis budget and cache lifetimes.
type GenerationConfig struct {
	TextProviders []string
	Voice         string
	Speed         float64
	AudioTimeout  time.Duration
	MaxTTSChars   int
	ContentTTL    time.Duration
	AudioTTL      time.Duration
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("OPENAI_API_KEY")
	readSecret("ANTHROPIC_API_KEY")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("server.api_domain", "API_DOMAIN")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("openai.api_key", "OPENAI_API_KEY")
	_ = viper.BindEnv("openai.base_url", "OPENAI_BASE_URL")
	_ = viper.BindEnv("openai.model", "OPENAI_MODEL")
	_ = viper.BindEnv("openai.tts_model", "OPENAI_TTS_MODEL")
	_ = viper.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	_ = viper.BindEnv("anthropic.base_url", "ANTHROPIC_BASE_URL")
	_ = viper.BindEnv("anthropic.model", "ANTHROPIC_MODEL")
	_ = viper.BindEnv("generation.text_providers", "TEXT_PROVIDERS")
	_ = viper.BindEnv("generation.voice", "TTS_VOICE")
	_ = viper.BindEnv("generation.speed", "TTS_SPEED")
	_ = viper.BindEnv("generation.audio_timeout", "AUDIO_TIMEOUT")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("ratelimit.tours_per_hour", 10)
	viper.SetDefault("ratelimit.estimates_per_min", 30)

	// OpenAI defaults
	viper.SetDefault("openai.base_url", "https://api.openai.com/v1")
	viper.SetDefault("openai.model", "gpt-4o-mini")
	viper.SetDefault("openai.tts_model", "tts-1")

	// Anthropic defaults
	viper.SetDefault("anthropic.base_url", "https://api.anthropic.com")
	viper.SetDefault("anthropic.model", "claude-3-haiku-20240307")
	viper.SetDefault("anthropic.version", "2023-06-01")

	// Generation defaults
	viper.SetDefault("generation.text_providers", []string{"openai", "anthropic"})
	viper.SetDefault("generation.voice", "alloy")
	viper.SetDefault("generation.speed", 1.0)
	viper.SetDefault("generation.audio_timeout", 180)    // seconds
	viper.SetDefault("generation.max_tts_chars", 4000)   // OpenAI TTS hard limit is 4096
	viper.SetDefault("generation.content_ttl", 86400*7)  // 7 days
	viper.SetDefault("generation.audio_ttl", 86400*30)   // 30 days

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:      viper.GetString("server.port"),
			Env:       viper.GetString("server.env"),
			LogLevel:  viper.GetString("server.log_level"),
			ApiDomain: viper.GetString("server.api_domain"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		RateLimit: RateLimitConfig{
			ToursPerHour:    viper.GetInt("ratelimit.tours_per_hour"),
			EstimatesPerMin: viper.GetInt("ratelimit.estimates_per_min"),
		},
		OpenAI: OpenAIConfig{
			APIKey:   viper.GetString("openai.api_key"),
			BaseURL:  viper.GetString("openai.base_url"),
			Model:    viper.GetString("openai.model"),
			TTSModel: viper.GetString("openai.tts_model"),
		},
		Anthropic: AnthropicConfig{
			APIKey:  viper.GetString("anthropic.api_key"),
			BaseURL: viper.GetString("anthropic.base_url"),
			Model:   viper.GetString("anthropic.model"),
			Version: viper.GetString("anthropic.version"),
		},
		Generation: GenerationConfig{
			TextProviders: viper.GetStringSlice("generation.text_providers"),
			Voice:         viper.GetString("generation.voice"),
			Speed:         viper.GetFloat64("generation.speed"),
			AudioTimeout:  time.Duration(viper.GetInt("generation.audio_timeout")) * time.Second,
			MaxTTSChars:   viper.GetInt("generation.max_tts_chars"),
			ContentTTL:    time.Duration(viper.GetInt("generation.content_ttl")) * time.Second,
			AudioTTL:      time.Duration(viper.GetInt("generation.audio_ttl")) * time.Second,
		},
	}

	return cfg, nil
}

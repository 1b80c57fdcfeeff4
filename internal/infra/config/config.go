// Package config provides application-wide configuration loaded from an
// optional config.yaml, an optional .env file and environment variables.
// Every field has a safe default except the Gemini API key, which is required
// when the gemini provider is selected.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration for CropDoctor.
type Config struct {
	LLM       LLMConfig       `mapstructure:"llm"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Diagnosis DiagnosisConfig `mapstructure:"diagnosis"`
	Log       LogConfig       `mapstructure:"log"`
	Storage   StorageConfig   `mapstructure:"storage"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

// LLMConfig selects and configures the model provider.
type LLMConfig struct {
	Provider        string        `mapstructure:"provider"`
	GeminiAPIKey    string        `mapstructure:"gemini_api_key"`
	GeminiModel     string        `mapstructure:"gemini_model"`
	GeminiBaseURL   string        `mapstructure:"gemini_base_url"`
	OllamaBaseURL   string        `mapstructure:"ollama_base_url"`
	OllamaChatModel string        `mapstructure:"ollama_chat_model"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// HTTPConfig configures the web server.
type HTTPConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	// TrustProxy takes client addresses from X-Forwarded-For / X-Real-IP.
	TrustProxy bool `mapstructure:"trust_proxy"`
}

// DiagnosisConfig holds input limits.
type DiagnosisConfig struct {
	MaxImageBytes int64 `mapstructure:"max_image_bytes"`
}

// LogConfig selects log level and encoder.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// StorageConfig enables the optional history store and response cache.
// Empty DBPath disables history; empty RedisAddr disables caching.
type StorageConfig struct {
	DBPath        string        `mapstructure:"db_path"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
}

// RateLimitConfig configures per-client request limiting. RPS 0 disables it.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// AuthConfig enables bearer-token protection of the JSON API when JWTSecret is set.
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	JWTExpiry time.Duration `mapstructure:"jwt_expiry"`
}

// TracingConfig enables span export when JaegerEndpoint is set.
type TracingConfig struct {
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
	ServiceName    string `mapstructure:"service_name"`
}

// ProviderGemini and ProviderOllama are the accepted llm.provider values.
const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"

	// DefaultMaxImageBytes is the upload threshold (4 MiB).
	DefaultMaxImageBytes = 4 * 1024 * 1024
)

// envBindings maps config keys to the environment variables that set them,
// first match wins.
var envBindings = map[string][]string{
	"llm.provider":              {"LLM_PROVIDER"},
	"llm.gemini_api_key":        {"GEMINI_API_KEY", "API_KEY"},
	"llm.gemini_model":          {"GEMINI_MODEL"},
	"llm.gemini_base_url":       {"GEMINI_BASE_URL"},
	"llm.ollama_base_url":       {"OLLAMA_BASE_URL"},
	"llm.ollama_chat_model":     {"OLLAMA_CHAT_MODEL"},
	"llm.timeout":               {"PROVIDER_TIMEOUT"},
	"http.host":                 {"HTTP_HOST"},
	"http.port":                 {"HTTP_PORT", "PORT"},
	"http.read_timeout":         {"HTTP_READ_TIMEOUT"},
	"http.write_timeout":        {"HTTP_WRITE_TIMEOUT"},
	"http.idle_timeout":         {"HTTP_IDLE_TIMEOUT"},
	"http.trust_proxy":          {"HTTP_TRUST_PROXY"},
	"diagnosis.max_image_bytes": {"MAX_IMAGE_BYTES"},
	"log.level":                 {"LOG_LEVEL"},
	"log.format":                {"LOG_FORMAT"},
	"storage.db_path":           {"DB_PATH"},
	"storage.redis_addr":        {"REDIS_ADDR"},
	"storage.redis_password":    {"REDIS_PASSWORD"},
	"storage.redis_db":          {"REDIS_DB"},
	"storage.cache_ttl":         {"CACHE_TTL"},
	"ratelimit.rps":             {"RATE_LIMIT_RPS"},
	"ratelimit.burst":           {"RATE_LIMIT_BURST"},
	"auth.jwt_secret":           {"JWT_SECRET"},
	"auth.jwt_expiry":           {"JWT_EXPIRY"},
	"tracing.jaeger_endpoint":   {"JAEGER_ENDPOINT"},
	"tracing.service_name":      {"OTEL_SERVICE_NAME"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", ProviderGemini)
	v.SetDefault("llm.gemini_model", "gemini-2.5-flash")
	v.SetDefault("llm.ollama_base_url", "http://localhost:11434")
	v.SetDefault("llm.ollama_chat_model", "llava:7b")
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 90*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.trust_proxy", false)
	v.SetDefault("diagnosis.max_image_bytes", DefaultMaxImageBytes)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("storage.cache_ttl", 24*time.Hour)
	v.SetDefault("ratelimit.rps", 0)
	v.SetDefault("ratelimit.burst", 5)
	v.SetDefault("auth.jwt_expiry", 24*time.Hour)
	v.SetDefault("tracing.service_name", "cropdoctor")
}

// Load reads configuration. configFile may name an explicit YAML file; when
// empty, config.yaml is looked up in ./configs and the working directory and
// its absence is not an error. A .env file in the working directory is loaded
// first without overriding variables already set.
func Load(configFile string) (*Config, error) {
	cfg, err := Read(configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Read resolves configuration from the same sources as Load without
// validating it. Commands that never call the provider use it.
func Read(configFile string) (*Config, error) {
	_ = godotenv.Load() // optional

	v := viper.New()
	setDefaults(v)
	for key, envs := range envBindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("config: bind %s: %w", key, err)
		}
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderGemini:
		if strings.TrimSpace(c.LLM.GeminiAPIKey) == "" {
			return errors.New("GEMINI_API_KEY (or API_KEY) must be set for the gemini provider")
		}
	case ProviderOllama:
		if c.LLM.OllamaBaseURL == "" {
			return errors.New("OLLAMA_BASE_URL must be set for the ollama provider")
		}
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLM.Provider)
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid HTTP port %d", c.HTTP.Port)
	}
	if c.Diagnosis.MaxImageBytes <= 0 {
		return fmt.Errorf("invalid max image bytes %d", c.Diagnosis.MaxImageBytes)
	}
	if c.RateLimit.RPS < 0 || (c.RateLimit.RPS > 0 && c.RateLimit.Burst <= 0) {
		return errors.New("rate limit requires RATE_LIMIT_BURST > 0 when RATE_LIMIT_RPS is set")
	}
	return nil
}

// Addr returns host:port for the HTTP listener.
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// envOr returns the value of the environment variable key, or fallback if not set.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// ConfigFileFromEnv returns CONFIG_FILE, or "" for the default lookup.
func ConfigFileFromEnv() string {
	return envOr("CONFIG_FILE", "")
}

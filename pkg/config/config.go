// Package config loads process configuration from the environment and .env files.
package config

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/sethvargo/go-envconfig"
)

// DefaultModel is used when OPENAI_MODEL is unset
const DefaultModel = "openai/gpt-4o-mini"

// Config is the process-wide configuration
type Config struct {
	LLM      LLMConfig
	Langfuse LangfuseConfig
	OTel     OTelConfig
	Redis    RedisConfig
	GitHub   GitHubConfig
	Server   ServerConfig

	LogLevel string `env:"LOG_LEVEL,default=info"`
}

// LLMConfig selects and authenticates the language model provider
type LLMConfig struct {
	OpenAIAPIKey string `env:"OPENAI_API_KEY"`
	Model        string `env:"OPENAI_MODEL,default=openai/gpt-4o-mini"`
	BaseURL      string `env:"OPENAI_BASE_URL"`
	// RawTemperature is kept as text so that an invalid value can be ignored
	// instead of failing the whole load.
	RawTemperature string `env:"OPENAI_TEMPERATURE"`
	EmbedModel     string `env:"OPENAI_EMBED_MODEL,default=text-embedding-3-small"`

	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`

	VertexProjectID       string `env:"VERTEX_PROJECT_ID"`
	VertexLocation        string `env:"VERTEX_LOCATION,default=us-central1"`
	VertexCredentialsFile string `env:"GOOGLE_APPLICATION_CREDENTIALS"`

	MaxRetries int `env:"LLM_MAX_RETRIES,default=3"`
}

// Temperature parses OPENAI_TEMPERATURE. ok is false when it is unset;
// err is set when it is present but not a number.
func (c LLMConfig) Temperature() (value float64, ok bool, err error) {
	raw := strings.TrimSpace(c.RawTemperature)
	if raw == "" {
		return 0, false, nil
	}
	value, err = strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid OPENAI_TEMPERATURE value %q: %w", raw, err)
	}
	return value, true, nil
}

// LangfuseConfig holds Langfuse credentials
type LangfuseConfig struct {
	PublicKey   string `env:"LANGFUSE_PUBLIC_KEY"`
	SecretKey   string `env:"LANGFUSE_SECRET_KEY"`
	Host        string `env:"LANGFUSE_HOST,default=https://cloud.langfuse.com"`
	Environment string `env:"LANGFUSE_ENVIRONMENT,default=development"`
}

// Enabled reports whether both keys are present
func (c LangfuseConfig) Enabled() bool {
	return c.PublicKey != "" && c.SecretKey != ""
}

// OTelConfig configures the OTLP exporter
type OTelConfig struct {
	Endpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName string `env:"OTEL_SERVICE_NAME,default=observable-agent"`
	// Insecure skips TLS, which suits a collector sidecar on localhost
	Insecure bool `env:"OTEL_EXPORTER_OTLP_INSECURE,default=true"`
	// SampleRatio is the share of root spans kept, from 0 to 1
	SampleRatio float64 `env:"OTEL_TRACES_SAMPLER_ARG,default=1"`
}

// Enabled reports whether a collector endpoint is configured
func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

// RedisConfig configures the optional embedding cache backend
type RedisConfig struct {
	URL string `env:"REDIS_URL"`
}

// GitHubConfig authenticates pull request creation
type GitHubConfig struct {
	Token string `env:"GITHUB_TOKEN"`
}

// ServerConfig configures the HTTP wrapper
type ServerConfig struct {
	Port int `env:"PORT,default=8000"`
}

var (
	global     *Config
	globalOnce sync.Once
)

// Load reads .env files (without overriding the environment) and decodes the
// environment into a new Config.
func Load(ctx context.Context) (*Config, error) {
	LoadDotEnv()
	return LoadFrom(ctx, envconfig.OsLookuper())
}

// LoadFrom decodes a Config using the given lookuper. It does not touch .env files.
func LoadFrom(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	return &cfg, nil
}

// Get returns the process-wide configuration, loading it on first use.
// A load failure yields the defaults.
func Get() *Config {
	globalOnce.Do(func() {
		cfg, err := Load(context.Background())
		if err != nil {
			cfg, _ = LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{}))
		}
		global = cfg
	})
	return global
}

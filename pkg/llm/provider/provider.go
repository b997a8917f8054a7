// Package provider builds a language model client from configuration.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/run-bigpig/observable-agent/pkg/config"
	"github.com/run-bigpig/observable-agent/pkg/interfaces"
	"github.com/run-bigpig/observable-agent/pkg/llm"
	"github.com/run-bigpig/observable-agent/pkg/llm/anthropic"
	"github.com/run-bigpig/observable-agent/pkg/llm/openai"
	"github.com/run-bigpig/observable-agent/pkg/llm/vertex"
	"github.com/run-bigpig/observable-agent/pkg/logging"
	"github.com/run-bigpig/observable-agent/pkg/retry"
	"github.com/run-bigpig/observable-agent/pkg/tracing"
)

// ErrNotConfigured is returned when the credentials for the selected model are absent
var ErrNotConfigured = errors.New("no language model configured")

// Kind identifies a model provider
type Kind string

const (
	KindOpenAI    Kind = "openai"
	KindAnthropic Kind = "anthropic"
	KindVertex    Kind = "vertex"
)

// Resolve picks the provider for a model name. Unprefixed names other than
// gemini-* are treated as OpenAI models.
func Resolve(model string) Kind {
	prefix, name := llm.SplitModel(model)
	switch prefix {
	case "anthropic":
		return KindAnthropic
	case "vertex_ai", "vertex":
		return KindVertex
	case "openai":
		return KindOpenAI
	}
	if strings.HasPrefix(name, "gemini-") {
		return KindVertex
	}
	if strings.HasPrefix(name, "claude-") {
		return KindAnthropic
	}
	return KindOpenAI
}

// Explicit reports whether model names its provider, either by prefix or by a
// well-known model family. Other names, e.g. ollama/llama3, are passed to the
// OpenAI client as-is.
func Explicit(model string) bool {
	prefix, name := llm.SplitModel(model)
	switch prefix {
	case "anthropic", "openai", "vertex", "vertex_ai":
		return true
	}
	for _, family := range []string{"gpt-", "gemini-", "claude-"} {
		if strings.HasPrefix(name, family) {
			return true
		}
	}
	return false
}

// HasAnyKey reports whether any provider credential is present
func HasAnyKey(cfg config.LLMConfig) bool {
	return cfg.OpenAIAPIKey != "" || cfg.AnthropicAPIKey != "" || cfg.VertexProjectID != ""
}

// CheckCredentials verifies the environment carries the key the model needs
func CheckCredentials(model string, cfg config.LLMConfig) error {
	switch Resolve(model) {
	case KindAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return fmt.Errorf("%w: ANTHROPIC_API_KEY not set but required for Anthropic models", ErrNotConfigured)
		}
	case KindVertex:
		if cfg.VertexProjectID == "" {
			return fmt.Errorf("%w: VERTEX_PROJECT_ID not set but required for Vertex AI models", ErrNotConfigured)
		}
	default:
		if cfg.OpenAIAPIKey == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY not set but required for OpenAI models", ErrNotConfigured)
		}
	}
	return nil
}

type options struct {
	logger logging.Logger
	otel   *tracing.OTelTracer
}

// Option configures FromConfig
type Option func(*options)

// WithLogger sets the logger handed to the client
func WithLogger(logger logging.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithOTel wraps the client so each call gets a span
func WithOTel(tracer *tracing.OTelTracer) Option {
	return func(o *options) {
		o.otel = tracer
	}
}

// FromConfig builds the client selected by cfg.Model. It returns
// ErrNotConfigured when the matching credentials are missing.
func FromConfig(ctx context.Context, cfg config.LLMConfig, opts ...Option) (interfaces.LLM, error) {
	o := &options{logger: logging.New()}
	for _, opt := range opts {
		opt(o)
	}

	model := cfg.Model
	if model == "" {
		model = config.DefaultModel
	}
	if err := CheckCredentials(model, cfg); err != nil {
		o.logger.Debug(ctx, "Leaving language model unconfigured", map[string]interface{}{"reason": err.Error()})
		return nil, err
	}

	temperature, hasTemperature, err := cfg.Temperature()
	if err != nil {
		o.logger.Warn(ctx, fmt.Sprintf("Invalid OPENAI_TEMPERATURE value %s; ignoring", cfg.RawTemperature), nil)
	}

	attempts := int32(cfg.MaxRetries)
	if attempts < 1 {
		attempts = 1
	}

	var client interfaces.LLM
	switch Resolve(model) {
	case KindAnthropic:
		clientOpts := []anthropic.Option{
			anthropic.WithModel(model),
			anthropic.WithLogger(o.logger),
			anthropic.WithRetry(retry.WithMaxAttempts(attempts)),
		}
		if hasTemperature {
			clientOpts = append(clientOpts, anthropic.WithTemperature(temperature))
		}
		client = anthropic.NewClient(cfg.AnthropicAPIKey, clientOpts...)
	case KindVertex:
		clientOpts := []vertex.ClientOption{
			vertex.WithModel(model),
			vertex.WithLocation(cfg.VertexLocation),
			vertex.WithMaxRetries(int(attempts - 1)),
			vertex.WithLogger(o.logger),
		}
		if cfg.VertexCredentialsFile != "" {
			clientOpts = append(clientOpts, vertex.WithCredentialsFile(cfg.VertexCredentialsFile))
		}
		if hasTemperature {
			clientOpts = append(clientOpts, vertex.WithTemperature(temperature))
		}
		vc, err := vertex.NewClient(ctx, cfg.VertexProjectID, clientOpts...)
		if err != nil {
			return nil, err
		}
		client = vc
	default:
		clientOpts := []openai.Option{
			openai.WithModel(model),
			openai.WithLogger(o.logger),
			openai.WithRetry(retry.WithMaxAttempts(attempts)),
		}
		if cfg.BaseURL != "" {
			clientOpts = append(clientOpts, openai.WithBaseURL(cfg.BaseURL))
		}
		if hasTemperature {
			clientOpts = append(clientOpts, openai.WithTemperature(temperature))
		}
		client = openai.NewClient(cfg.OpenAIAPIKey, clientOpts...)
	}

	o.logger.Info(ctx, "Configured language model", map[string]interface{}{"model": model})

	if o.otel != nil {
		client = tracing.NewLLMOTelMiddleware(client, o.otel)
	}
	return client, nil
}

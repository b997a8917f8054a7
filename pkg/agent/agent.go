package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/run-bigpig/observable-agent/pkg/config"
	"github.com/run-bigpig/observable-agent/pkg/interfaces"
	"github.com/run-bigpig/observable-agent/pkg/llm/provider"
	"github.com/run-bigpig/observable-agent/pkg/logging"
	"github.com/run-bigpig/observable-agent/pkg/tracing"
)

// BaseAgent carries what every agent needs: an optional language model, an
// optional observability provider and a logger named after the agent. It
// imposes no prompting pattern; agents own their signatures and fallbacks.
type BaseAgent struct {
	name         string
	llm          interfaces.LLM
	observer     interfaces.ObservabilityProvider
	logger       logging.Logger
	cfg          *config.Config
	otel         *tracing.OTelTracer
	systemPrompt string
}

// Option represents an option for configuring an agent
type Option func(*BaseAgent)

// WithLLM sets the LLM for the agent
func WithLLM(llm interfaces.LLM) Option {
	return func(a *BaseAgent) {
		a.llm = llm
	}
}

// WithObserver sets where generations are recorded
func WithObserver(observer interfaces.ObservabilityProvider) Option {
	return func(a *BaseAgent) {
		a.observer = observer
	}
}

// WithLogger sets the parent logger; the agent logs through a child named after it
func WithLogger(logger logging.Logger) Option {
	return func(a *BaseAgent) {
		a.logger = logger
	}
}

// WithConfig resolves the LLM and the Langfuse observer from configuration
// unless they were given explicitly.
func WithConfig(cfg *config.Config) Option {
	return func(a *BaseAgent) {
		a.cfg = cfg
	}
}

// WithOTel wraps the configured LLM with OpenTelemetry spans
func WithOTel(tracer *tracing.OTelTracer) Option {
	return func(a *BaseAgent) {
		a.otel = tracer
	}
}

// WithSystemPrompt sets the system message sent with every prediction
func WithSystemPrompt(prompt string) Option {
	return func(a *BaseAgent) {
		a.systemPrompt = prompt
	}
}

// WithAgentConfig sets the system prompt from a YAML persona
func WithAgentConfig(persona AgentConfig, variables map[string]string) Option {
	return func(a *BaseAgent) {
		a.systemPrompt = FormatSystemPromptFromConfig(persona, variables)
	}
}

// New creates an agent whose traces are recorded under observationName
func New(observationName string, options ...Option) *BaseAgent {
	a := &BaseAgent{name: observationName}
	for _, option := range options {
		option(a)
	}

	if a.logger == nil {
		a.logger = logging.New()
	}
	a.logger = a.logger.With(map[string]interface{}{"agent": observationName})

	ctx := context.Background()
	if a.cfg != nil {
		a.resolveFromConfig(ctx)
	}

	if a.llm != nil {
		a.logger.Info(ctx, "LM configured", map[string]interface{}{"model": a.llm.Name()})
	} else {
		a.logger.Warn(ctx, "No LM configured; agent may need fallback", nil)
	}

	return a
}

func (a *BaseAgent) resolveFromConfig(ctx context.Context) {
	if a.llm == nil {
		opts := []provider.Option{provider.WithLogger(a.logger)}
		if a.otel != nil {
			opts = append(opts, provider.WithOTel(a.otel))
		}
		client, err := provider.FromConfig(ctx, a.cfg.LLM, opts...)
		switch {
		case err == nil:
			a.llm = client
		case errors.Is(err, provider.ErrNotConfigured):
			a.logger.Debug(ctx, "Language model credentials not set", map[string]interface{}{"reason": err.Error()})
		default:
			a.logger.Warn(ctx, "Failed to configure language model", map[string]interface{}{"error": err.Error()})
		}
	}

	if a.observer == nil {
		tracer, err := tracing.NewLangfuseTracer(tracing.LangfuseConfigFrom(a.cfg.Langfuse))
		if err != nil {
			a.logger.Warn(ctx, "Failed to configure Langfuse", map[string]interface{}{"error": err.Error()})
			return
		}
		if tracer.Enabled() {
			a.logger.Info(ctx, "Configured Langfuse client", map[string]interface{}{"host": tracer.Host()})
			a.observer = tracer
		}
	}
}

// Name returns the observation name
func (a *BaseAgent) Name() string {
	return a.name
}

// HasLLM reports whether a language model is available
func (a *BaseAgent) HasLLM() bool {
	return a.llm != nil
}

// LLM returns the language model, or nil
func (a *BaseAgent) LLM() interfaces.LLM {
	return a.llm
}

// Logger returns the agent's child logger
func (a *BaseAgent) Logger() logging.Logger {
	return a.logger
}

// SystemPrompt returns the persona system message, if any
func (a *BaseAgent) SystemPrompt() string {
	return a.systemPrompt
}

// LogGeneration forwards one input/output pair to the observability provider.
// Non-string input is rendered as JSON. Failures are logged and never reach
// the caller.
func (a *BaseAgent) LogGeneration(ctx context.Context, input interface{}, output map[string]interface{}, metadata map[string]interface{}) {
	if a.observer == nil {
		return
	}

	generation := interfaces.Generation{
		Name:      a.name,
		Input:     map[string]interface{}{"input": stringifyInput(input)},
		Output:    output,
		StartTime: time.Now(),
	}
	if len(metadata) > 0 {
		generation.Metadata = metadata
	}
	if a.llm != nil {
		generation.Model = a.llm.Name()
	}

	if err := a.observer.LogGeneration(ctx, generation); err != nil {
		a.logger.Debug(ctx, "Langfuse logging failed", map[string]interface{}{"error": err.Error()})
	}
}

// Flush flushes the observability provider
func (a *BaseAgent) Flush() {
	if a.observer == nil {
		return
	}
	if err := a.observer.Flush(); err != nil {
		a.logger.Debug(context.Background(), "Langfuse flush failed", map[string]interface{}{"error": err.Error()})
	}
}

func stringifyInput(input interface{}) string {
	switch v := input.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case nil:
		return ""
	}
	b, err := json.Marshal(input)
	if err != nil {
		return fmt.Sprint(input)
	}
	return string(b)
}

// Package app wires configuration, logging and tracing for the command line tools.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/run-bigpig/observable-agent/pkg/agent"
	"github.com/run-bigpig/observable-agent/pkg/config"
	"github.com/run-bigpig/observable-agent/pkg/logging"
	"github.com/run-bigpig/observable-agent/pkg/routing"
	"github.com/run-bigpig/observable-agent/pkg/tracing"
)

// Env is the process environment shared by every agent a command creates
type Env struct {
	Config   *config.Config
	Logger   logging.Logger
	OTel     *tracing.OTelTracer
	Personas agent.AgentConfigs
	// Variables fill {name} placeholders in personas
	Variables map[string]string
}

// Option configures Load
type Option func(*loadOptions)

type loadOptions struct {
	json        bool
	logWriter   io.Writer
	personaFile string
}

// WithJSONLogs switches to structured log lines
func WithJSONLogs() Option {
	return func(o *loadOptions) {
		o.json = true
	}
}

// WithLogWriter redirects logs, which go to stderr by default so that
// command output stays clean
func WithLogWriter(w io.Writer) Option {
	return func(o *loadOptions) {
		o.logWriter = w
	}
}

// WithPersonaFile replaces the bundled personas with a YAML file
func WithPersonaFile(path string) Option {
	return func(o *loadOptions) {
		o.personaFile = path
	}
}

// Load reads configuration and builds the shared logger and tracer
func Load(ctx context.Context, options ...Option) (*Env, error) {
	o := &loadOptions{logWriter: os.Stderr}
	for _, opt := range options {
		opt(o)
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}

	logOpts := []logging.Option{logging.WithLevel(cfg.LogLevel), logging.WithWriter(o.logWriter)}
	if o.json {
		logOpts = append(logOpts, logging.WithJSON())
	}
	logger := logging.New(logOpts...)

	otelCfg := tracing.OTelConfigFrom(cfg.OTel)
	otelCfg.Environment = cfg.Langfuse.Environment
	otel, err := tracing.NewOTelTracer(otelCfg)
	if err != nil {
		logger.Warn(ctx, "OpenTelemetry disabled", map[string]interface{}{"error": err.Error()})
		otel, _ = tracing.NewOTelTracer(tracing.OTelConfig{})
	}

	var personas agent.AgentConfigs
	if o.personaFile != "" {
		personas, err = agent.LoadAgentConfigsFromFile(o.personaFile)
	} else {
		personas, err = agent.DefaultAgentConfigs()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load personas: %w", err)
	}

	return &Env{
		Config:    cfg,
		Logger:    logger,
		OTel:      otel,
		Personas:  personas,
		Variables: map[string]string{"routes": strings.Join(routing.AllowedRoutes, ", ")},
	}, nil
}

// NewAgent creates an agent named observationName. The model and Langfuse
// come from configuration and the persona of the same name, if any, becomes
// its system prompt.
func (e *Env) NewAgent(observationName string, options ...agent.Option) *agent.BaseAgent {
	opts := []agent.Option{
		agent.WithLogger(e.Logger),
		agent.WithOTel(e.OTel),
		agent.WithConfig(e.Config),
	}
	if persona, ok := e.Personas[observationName]; ok {
		opts = append(opts, agent.WithAgentConfig(persona, e.Variables))
	}
	return agent.New(observationName, append(opts, options...)...)
}

// Shutdown flushes spans. Errors are logged.
func (e *Env) Shutdown(ctx context.Context) {
	if err := e.OTel.Shutdown(ctx); err != nil {
		e.Logger.Debug(ctx, "Failed to shut down tracer", map[string]interface{}{"error": err.Error()})
	}
}

package tracing

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/henomis/langfuse-go"
	"github.com/henomis/langfuse-go/model"

	"github.com/run-bigpig/observable-agent/pkg/config"
	"github.com/run-bigpig/observable-agent/pkg/interfaces"
	"github.com/run-bigpig/observable-agent/pkg/session"
)

// LangfuseTracer forwards agent generations to Langfuse. Without credentials
// every method is a no-op.
type LangfuseTracer struct {
	client      *langfuse.Langfuse
	enabled     bool
	environment string
	host        string
}

// LangfuseConfig contains configuration for Langfuse
type LangfuseConfig struct {
	// Enabled determines whether Langfuse tracing is enabled
	Enabled bool

	// SecretKey is the Langfuse secret key
	SecretKey string

	// PublicKey is the Langfuse public key
	PublicKey string

	// Host is the Langfuse host (optional)
	Host string

	// Environment is the environment name (e.g., "production", "staging")
	Environment string
}

// LangfuseConfigFrom derives a tracer config from process configuration;
// tracing is enabled only when both keys are present.
func LangfuseConfigFrom(cfg config.LangfuseConfig) LangfuseConfig {
	return LangfuseConfig{
		Enabled:     cfg.Enabled(),
		SecretKey:   cfg.SecretKey,
		PublicKey:   cfg.PublicKey,
		Host:        cfg.Host,
		Environment: cfg.Environment,
	}
}

// NewLangfuseTracer creates a new Langfuse tracer
func NewLangfuseTracer(customConfig ...LangfuseConfig) (*LangfuseTracer, error) {
	var tracerConfig LangfuseConfig
	if len(customConfig) > 0 {
		tracerConfig = customConfig[0]
	} else {
		tracerConfig = LangfuseConfigFrom(config.Get().Langfuse)
	}

	if !tracerConfig.Enabled || tracerConfig.PublicKey == "" || tracerConfig.SecretKey == "" {
		return &LangfuseTracer{
			enabled: false,
		}, nil
	}

	// the client reads its credentials from the environment
	for key, value := range map[string]string{
		"LANGFUSE_PUBLIC_KEY": tracerConfig.PublicKey,
		"LANGFUSE_SECRET_KEY": tracerConfig.SecretKey,
		"LANGFUSE_HOST":       tracerConfig.Host,
	} {
		if value == "" {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return nil, fmt.Errorf("failed to export %s: %w", key, err)
		}
	}

	client := langfuse.New(context.Background())

	return &LangfuseTracer{
		client:      client,
		enabled:     true,
		environment: tracerConfig.Environment,
		host:        tracerConfig.Host,
	}, nil
}

// Enabled reports whether generations are being forwarded
func (t *LangfuseTracer) Enabled() bool {
	return t != nil && t.enabled
}

// Host returns the Langfuse host the tracer targets
func (t *LangfuseTracer) Host() string {
	return t.host
}

// LogGeneration implements interfaces.ObservabilityProvider. It records a
// trace named after the generation and a single generation observation under it.
func (t *LangfuseTracer) LogGeneration(ctx context.Context, generation interfaces.Generation) error {
	if !t.Enabled() {
		return nil
	}

	start, end := generation.StartTime, generation.EndTime
	if start.IsZero() {
		start = time.Now()
	}
	if end.IsZero() {
		end = start
	}

	metadata := t.metadata(ctx, generation.Metadata)

	trace := &model.Trace{
		Name:     generation.Name,
		Input:    generation.Input,
		Output:   generation.Output,
		Metadata: metadata,
		UserID:   session.UserID(ctx),
	}
	if sessionID, err := session.GetSessionID(ctx); err == nil {
		trace.SessionID = sessionID
	}
	createdTrace, err := t.client.Trace(trace)
	if err != nil {
		return fmt.Errorf("failed to create Langfuse trace: %w", err)
	}

	obs := &model.Generation{
		TraceID:   createdTrace.ID,
		Name:      generation.Name,
		StartTime: &start,
		EndTime:   &end,
		Model:     generation.Model,
		Input:     generation.Input,
		Output:    generation.Output,
		Metadata:  metadata,
	}
	if _, err := t.client.Generation(obs, nil); err != nil {
		return fmt.Errorf("failed to create Langfuse generation: %w", err)
	}

	t.client.Flush(ctx)
	return nil
}

// TraceGeneration traces a raw LLM call
func (t *LangfuseTracer) TraceGeneration(ctx context.Context, modelName string, prompt string, response string, startTime time.Time, endTime time.Time, metadata map[string]interface{}) (string, error) {
	if !t.Enabled() {
		return "", nil
	}

	generation := &model.Generation{
		Name:      fmt.Sprintf("generation-%d", time.Now().UnixNano()),
		StartTime: &startTime,
		EndTime:   &endTime,
		Model:     modelName,
		Input: []model.M{
			{
				"prompt": prompt,
			},
		},
		Output: model.M{
			"completion": response,
		},
		Metadata: t.metadata(ctx, metadata),
	}

	created, err := t.client.Generation(generation, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create Langfuse generation: %w", err)
	}

	return created.ID, nil
}

// TraceEvent traces an event
func (t *LangfuseTracer) TraceEvent(ctx context.Context, name string, input interface{}, output interface{}, level string, metadata map[string]interface{}, parentID string) (string, error) {
	if !t.Enabled() {
		return "", nil
	}

	event := &model.Event{
		Name:     name,
		Input:    input,
		Output:   output,
		Level:    model.ObservationLevel(level),
		Metadata: t.metadata(ctx, metadata),
	}
	if parentID != "" {
		event.ParentObservationID = parentID
	}

	created, err := t.client.Event(event, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create Langfuse event: %w", err)
	}

	return created.ID, nil
}

// Flush flushes the Langfuse client
func (t *LangfuseTracer) Flush() error {
	if !t.Enabled() {
		return nil
	}

	t.client.Flush(context.Background())
	return nil
}

func (t *LangfuseTracer) metadata(ctx context.Context, metadata map[string]interface{}) model.M {
	out := make(model.M, len(metadata)+2)
	for k, v := range metadata {
		out[k] = v
	}
	if t.environment != "" {
		out["environment"] = t.environment
	}
	if traceID := session.TraceID(ctx); traceID != "" {
		out["trace_id"] = traceID
	}
	return out
}

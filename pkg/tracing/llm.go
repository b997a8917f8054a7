package tracing

import (
	"context"
	"time"

	"github.com/run-bigpig/observable-agent/pkg/interfaces"
	"github.com/run-bigpig/observable-agent/pkg/logging"
)

// LLMMiddleware implements middleware for LLM calls with Langfuse tracing
type LLMMiddleware struct {
	llm    interfaces.LLM
	tracer *LangfuseTracer
	logger logging.Logger
}

// NewLLMMiddleware creates a new LLM middleware with Langfuse tracing
func NewLLMMiddleware(llm interfaces.LLM, tracer *LangfuseTracer, logger logging.Logger) *LLMMiddleware {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &LLMMiddleware{
		llm:    llm,
		tracer: tracer,
		logger: logger,
	}
}

// Generate generates text from a prompt with Langfuse tracing
func (m *LLMMiddleware) Generate(ctx context.Context, prompt string, options ...interfaces.GenerateOption) (string, error) {
	startTime := time.Now()
	response, err := m.llm.Generate(ctx, prompt, options...)
	endTime := time.Now()

	params := interfaces.NewGenerateOptions(options...)
	metadata := map[string]interface{}{
		"structured": params.ResponseFormat != nil,
	}
	if params.SystemMessage != "" {
		metadata["system_message"] = params.SystemMessage
	}

	if err == nil {
		if _, traceErr := m.tracer.TraceGeneration(ctx, m.llm.Name(), prompt, response, startTime, endTime, metadata); traceErr != nil {
			m.logger.Debug(ctx, "Failed to trace generation", map[string]interface{}{"error": traceErr.Error()})
		}
	} else {
		metadata["error"] = err.Error()
		if _, traceErr := m.tracer.TraceEvent(ctx, "llm_error", prompt, nil, "ERROR", metadata, ""); traceErr != nil {
			m.logger.Debug(ctx, "Failed to trace error", map[string]interface{}{"error": traceErr.Error()})
		}
	}

	return response, err
}

// Name implements interfaces.LLM.Name
func (m *LLMMiddleware) Name() string {
	return m.llm.Name()
}

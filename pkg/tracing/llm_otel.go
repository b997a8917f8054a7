package tracing

import (
	"context"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/run-bigpig/observable-agent/pkg/interfaces"
	"github.com/run-bigpig/observable-agent/pkg/session"
)

// LLMOTelMiddleware puts every model call in an "llm.generate" span. The span
// records sizes and the requested output format, never prompt text.
type LLMOTelMiddleware struct {
	llm    interfaces.LLM
	tracer *OTelTracer
}

func NewLLMOTelMiddleware(llm interfaces.LLM, tracer *OTelTracer) *LLMOTelMiddleware {
	return &LLMOTelMiddleware{llm: llm, tracer: tracer}
}

// Generate implements interfaces.LLM
func (m *LLMOTelMiddleware) Generate(ctx context.Context, prompt string, options ...interfaces.GenerateOption) (string, error) {
	ctx, span := m.tracer.StartSpan(ctx, "llm.generate", callAttributes(ctx, m.llm.Name(), prompt, options))

	response, err := m.llm.Generate(ctx, prompt, options...)
	if err == nil {
		span.SetAttributes(
			attribute.Int("llm.response_chars", len(response)),
			attribute.Bool("llm.empty_response", strings.TrimSpace(response) == ""),
		)
	}
	m.tracer.EndSpan(span, err)
	return response, err
}

func (m *LLMOTelMiddleware) Name() string {
	return m.llm.Name()
}

func callAttributes(ctx context.Context, model, prompt string, options []interfaces.GenerateOption) map[string]string {
	params := interfaces.NewGenerateOptions(options...)
	attrs := map[string]string{
		"llm.model":         model,
		"llm.prompt_chars":  strconv.Itoa(len(prompt)),
		"llm.system_chars":  strconv.Itoa(len(params.SystemMessage)),
		"llm.output_format": string(interfaces.ResponseFormatText),
	}
	if rf := params.ResponseFormat; rf != nil {
		attrs["llm.output_format"] = string(rf.Type)
		if rf.Name != "" {
			attrs["llm.output_schema"] = rf.Name
		}
	}
	if t := params.LLMConfig.Temperature; t != nil {
		attrs["llm.temperature"] = strconv.FormatFloat(*t, 'f', -1, 64)
	}
	if id := session.TraceID(ctx); id != "" {
		attrs["request_id"] = id
	}
	return attrs
}

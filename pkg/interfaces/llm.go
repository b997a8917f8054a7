package interfaces

import "context"

// LLM represents a large language model provider
type LLM interface {
	// Generate generates text based on the provided prompt
	Generate(ctx context.Context, prompt string, options ...GenerateOption) (string, error)

	// Name returns the provider and model, e.g. "openai:gpt-4o-mini"
	Name() string
}

// GenerateOption represents options for text generation
type GenerateOption func(options *GenerateOptions)

// GenerateOptions contains configuration for text generation
type GenerateOptions struct {
	LLMConfig      *LLMConfig      // Sampling parameters
	SystemMessage  string          // System message for chat models
	ResponseFormat *ResponseFormat // Optional expected response format
}

// LLMConfig holds sampling parameters. Zero values leave the provider default.
type LLMConfig struct {
	Temperature   *float64
	TopP          float64
	MaxTokens     int
	StopSequences []string
}

// NewGenerateOptions applies options over an empty GenerateOptions
func NewGenerateOptions(options ...GenerateOption) *GenerateOptions {
	params := &GenerateOptions{LLMConfig: &LLMConfig{}}
	for _, option := range options {
		option(params)
	}
	if params.LLMConfig == nil {
		params.LLMConfig = &LLMConfig{}
	}
	return params
}

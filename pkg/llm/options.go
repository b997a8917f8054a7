// Package llm holds provider-neutral generation options shared by the model clients.
package llm

import (
	"strings"

	"github.com/run-bigpig/observable-agent/pkg/interfaces"
)

// WithTemperature creates a GenerateOption to set the temperature
func WithTemperature(temperature float64) interfaces.GenerateOption {
	return func(options *interfaces.GenerateOptions) {
		ensureConfig(options)
		options.LLMConfig.Temperature = &temperature
	}
}

// WithTopP creates a GenerateOption to set the top_p
func WithTopP(topP float64) interfaces.GenerateOption {
	return func(options *interfaces.GenerateOptions) {
		ensureConfig(options)
		options.LLMConfig.TopP = topP
	}
}

// WithMaxTokens caps the length of the completion
func WithMaxTokens(maxTokens int) interfaces.GenerateOption {
	return func(options *interfaces.GenerateOptions) {
		ensureConfig(options)
		options.LLMConfig.MaxTokens = maxTokens
	}
}

// WithStopSequences creates a GenerateOption to set the stop sequences
func WithStopSequences(stopSequences []string) interfaces.GenerateOption {
	return func(options *interfaces.GenerateOptions) {
		ensureConfig(options)
		options.LLMConfig.StopSequences = stopSequences
	}
}

// WithSystemMessage creates a GenerateOption to set the system message
func WithSystemMessage(systemMessage string) interfaces.GenerateOption {
	return func(options *interfaces.GenerateOptions) {
		options.SystemMessage = systemMessage
	}
}

// WithResponseFormat creates a GenerateOption to set the response format
func WithResponseFormat(format interfaces.ResponseFormat) interfaces.GenerateOption {
	return func(options *interfaces.GenerateOptions) {
		options.ResponseFormat = &format
	}
}

func ensureConfig(options *interfaces.GenerateOptions) {
	if options.LLMConfig == nil {
		options.LLMConfig = &interfaces.LLMConfig{}
	}
}

// SplitModel splits "provider/model" into its parts. A model without a
// provider prefix returns an empty provider.
func SplitModel(model string) (provider, name string) {
	if i := strings.Index(model, "/"); i > 0 {
		return strings.ToLower(model[:i]), model[i+1:]
	}
	return "", model
}

package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/run-bigpig/observable-agent/pkg/interfaces"
	"github.com/run-bigpig/observable-agent/pkg/llm"
	"github.com/run-bigpig/observable-agent/pkg/logging"
	"github.com/run-bigpig/observable-agent/pkg/retry"
)

const (
	// DefaultModel is used when no model is configured
	DefaultModel = "claude-3-5-haiku-latest"

	defaultMaxTokens = 2048
)

// AnthropicClient implements the LLM interface for Anthropic Claude
type AnthropicClient struct {
	client        anthropic.Client
	Model         string
	baseURL       string
	maxTokens     int64
	temperature   *float64
	logger        logging.Logger
	retryExecutor *retry.Executor
}

// Option represents an option for configuring the Anthropic client
type Option func(*AnthropicClient)

// WithModel sets the model. An "anthropic/" prefix is accepted and dropped.
func WithModel(model string) Option {
	return func(c *AnthropicClient) {
		if provider, name := llm.SplitModel(model); provider == "anthropic" {
			model = name
		}
		c.Model = model
	}
}

// WithBaseURL overrides the API endpoint
func WithBaseURL(baseURL string) Option {
	return func(c *AnthropicClient) {
		c.baseURL = baseURL
	}
}

// WithMaxTokens sets the default completion budget
func WithMaxTokens(maxTokens int64) Option {
	return func(c *AnthropicClient) {
		c.maxTokens = maxTokens
	}
}

// WithTemperature sets the default temperature for every request
func WithTemperature(temperature float64) Option {
	return func(c *AnthropicClient) {
		c.temperature = &temperature
	}
}

// WithLogger sets the logger
func WithLogger(logger logging.Logger) Option {
	return func(c *AnthropicClient) {
		c.logger = logger
	}
}

// WithRetry configures retry policy for the client. The SDK's own retries are
// disabled when this is set.
func WithRetry(opts ...retry.Option) Option {
	return func(c *AnthropicClient) {
		c.retryExecutor = retry.NewExecutor(retry.NewPolicy(opts...))
	}
}

// NewClient creates a new Anthropic client
func NewClient(apiKey string, options ...Option) *AnthropicClient {
	c := &AnthropicClient{
		Model:     DefaultModel,
		maxTokens: defaultMaxTokens,
		logger:    logging.New(),
	}
	for _, opt := range options {
		opt(c)
	}

	requestOptions := []option.RequestOption{option.WithAPIKey(apiKey)}
	if c.baseURL != "" {
		requestOptions = append(requestOptions, option.WithBaseURL(c.baseURL))
	}
	if c.retryExecutor != nil {
		requestOptions = append(requestOptions, option.WithMaxRetries(0))
	}
	c.client = anthropic.NewClient(requestOptions...)

	return c
}

// Generate generates text from a prompt
func (c *AnthropicClient) Generate(ctx context.Context, prompt string, options ...interfaces.GenerateOption) (string, error) {
	params := interfaces.NewGenerateOptions(options...)

	req := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.Model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if params.LLMConfig.MaxTokens > 0 {
		req.MaxTokens = int64(params.LLMConfig.MaxTokens)
	}
	switch {
	case params.LLMConfig.Temperature != nil:
		req.Temperature = anthropic.Float(*params.LLMConfig.Temperature)
	case c.temperature != nil:
		req.Temperature = anthropic.Float(*c.temperature)
	}
	if params.LLMConfig.TopP > 0 {
		req.TopP = anthropic.Float(params.LLMConfig.TopP)
	}
	if len(params.LLMConfig.StopSequences) > 0 {
		req.StopSequences = params.LLMConfig.StopSequences
	}

	system := systemPrompt(params)
	if system != "" {
		req.System = []anthropic.TextBlockParam{{Text: system}}
	}

	var content string
	operation := func() error {
		c.logger.Debug(ctx, "Executing Anthropic API request", map[string]interface{}{
			"model":      c.Model,
			"max_tokens": req.MaxTokens,
		})

		message, err := c.client.Messages.New(ctx, req)
		if err != nil {
			c.logger.Error(ctx, "Error from Anthropic API", map[string]interface{}{
				"error": err.Error(),
				"model": c.Model,
			})
			return err
		}

		var sb strings.Builder
		for _, block := range message.Content {
			switch variant := block.AsAny().(type) {
			case anthropic.TextBlock:
				sb.WriteString(variant.Text)
			}
		}
		content = sb.String()
		return nil
	}

	var err error
	if c.retryExecutor != nil {
		err = c.retryExecutor.Execute(ctx, operation)
	} else {
		err = operation()
	}
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	return strings.TrimSpace(content), nil
}

// Name implements interfaces.LLM.Name
func (c *AnthropicClient) Name() string {
	return "anthropic:" + c.Model
}

// systemPrompt folds a requested response schema into the system message;
// the Messages API has no native structured output switch.
func systemPrompt(params *interfaces.GenerateOptions) string {
	system := params.SystemMessage
	if params.ResponseFormat == nil || params.ResponseFormat.Type == interfaces.ResponseFormatText {
		return system
	}

	instruction := "Respond with a single JSON object and nothing else."
	if len(params.ResponseFormat.Schema) > 0 {
		if schema, err := json.Marshal(params.ResponseFormat.Schema); err == nil {
			instruction = fmt.Sprintf("Respond with a single JSON object that satisfies this JSON schema and nothing else:\n%s", schema)
		}
	}
	if system == "" {
		return instruction
	}
	return system + "\n\n" + instruction
}

package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/run-bigpig/observable-agent/pkg/interfaces"
	"github.com/run-bigpig/observable-agent/pkg/llm"
	"github.com/run-bigpig/observable-agent/pkg/logging"
	"github.com/run-bigpig/observable-agent/pkg/retry"
	"github.com/run-bigpig/observable-agent/pkg/session"
)

// DefaultModel is used when no model is configured
const DefaultModel = "gpt-4o-mini"

// OpenAIClient implements the LLM interface for OpenAI and OpenAI-compatible endpoints
type OpenAIClient struct {
	Client        *openai.Client
	Model         string
	apiKey        string
	baseURL       string
	temperature   *float64
	logger        logging.Logger
	retryExecutor *retry.Executor
}

// Option represents an option for configuring the OpenAI client
type Option func(*OpenAIClient)

// WithModel sets the model. An "openai/" prefix is accepted and dropped.
func WithModel(model string) Option {
	return func(c *OpenAIClient) {
		if provider, name := llm.SplitModel(model); provider == "openai" {
			model = name
		}
		c.Model = model
	}
}

// WithBaseURL points the client at an OpenAI-compatible endpoint
func WithBaseURL(baseURL string) Option {
	return func(c *OpenAIClient) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithTemperature sets the default temperature for every request
func WithTemperature(temperature float64) Option {
	return func(c *OpenAIClient) {
		c.temperature = &temperature
	}
}

// WithLogger sets the logger for the OpenAI client
func WithLogger(logger logging.Logger) Option {
	return func(c *OpenAIClient) {
		c.logger = logger
	}
}

// WithRetry configures retry policy for the client
func WithRetry(opts ...retry.Option) Option {
	return func(c *OpenAIClient) {
		c.retryExecutor = retry.NewExecutor(retry.NewPolicy(opts...))
	}
}

// NewClient creates a new OpenAI client
func NewClient(apiKey string, options ...Option) *OpenAIClient {
	client := &OpenAIClient{
		Model:  DefaultModel,
		apiKey: apiKey,
		logger: logging.New(),
	}

	for _, option := range options {
		option(client)
	}

	cfg := openai.DefaultConfig(apiKey)
	if client.baseURL != "" {
		cfg.BaseURL = client.baseURL
	}
	client.Client = openai.NewClientWithConfig(cfg)

	return client
}

// Generate generates text from a prompt
func (c *OpenAIClient) Generate(ctx context.Context, prompt string, options ...interfaces.GenerateOption) (string, error) {
	params := interfaces.NewGenerateOptions(options...)

	messages := []openai.ChatCompletionMessage{}
	if params.SystemMessage != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: params.SystemMessage,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	req := openai.ChatCompletionRequest{
		Model:    c.Model,
		Messages: messages,
		TopP:     float32(params.LLMConfig.TopP),
		Stop:     params.LLMConfig.StopSequences,
	}
	if params.LLMConfig.MaxTokens > 0 {
		req.MaxTokens = params.LLMConfig.MaxTokens
	}
	switch {
	case params.LLMConfig.Temperature != nil:
		req.Temperature = float32(*params.LLMConfig.Temperature)
	case c.temperature != nil:
		req.Temperature = float32(*c.temperature)
	}

	if params.ResponseFormat != nil {
		switch params.ResponseFormat.Type {
		case interfaces.ResponseFormatJSON:
			req.ResponseFormat = &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			}
		case interfaces.ResponseFormatText:
		default:
			req.ResponseFormat = &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
				JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
					Name:   params.ResponseFormat.Name,
					Schema: params.ResponseFormat.Schema,
				},
			}
		}
	}

	if userID := session.UserID(ctx); userID != "" {
		req.User = userID
	}

	var resp openai.ChatCompletionResponse
	operation := func() error {
		c.logger.Debug(ctx, "Executing OpenAI API request", map[string]interface{}{
			"model":       c.Model,
			"temperature": req.Temperature,
			"messages":    len(req.Messages),
			"structured":  req.ResponseFormat != nil,
		})

		var err error
		resp, err = c.Client.CreateChatCompletion(ctx, req)
		if err != nil {
			c.logger.Error(ctx, "Error from OpenAI API", map[string]interface{}{
				"error": err.Error(),
				"model": c.Model,
			})
			return err
		}
		return nil
	}

	var err error
	if c.retryExecutor != nil {
		err = c.retryExecutor.Execute(ctx, func() error {
			if err := operation(); err != nil {
				if !retryable(err) {
					return retry.Permanent(err)
				}
				return err
			}
			return nil
		})
	} else {
		err = operation()
	}
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no completions returned")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Name implements interfaces.LLM.Name
func (c *OpenAIClient) Name() string {
	return "openai:" + c.Model
}

// retryable reports whether an API error is worth another attempt
func retryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return true
}

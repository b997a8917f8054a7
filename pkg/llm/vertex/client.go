package vertex

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"
	"github.com/cenkalti/backoff/v4"
	"google.golang.org/api/option"

	"github.com/run-bigpig/observable-agent/pkg/interfaces"
	"github.com/run-bigpig/observable-agent/pkg/llm"
	"github.com/run-bigpig/observable-agent/pkg/logging"
)

// VertexAI model constants
const (
	ModelGemini15Pro   = "gemini-1.5-pro"
	ModelGemini15Flash = "gemini-1.5-flash"
	ModelGemini20Flash = "gemini-2.0-flash"
)

// DefaultModel is the default Vertex AI model
const DefaultModel = ModelGemini20Flash

// Client represents a Vertex AI client
type Client struct {
	client          *genai.Client
	model           string
	projectID       string
	location        string
	maxRetries      int
	retryDelay      time.Duration
	temperature     *float64
	logger          logging.Logger
	credentialsFile string
}

// ClientOption is a function that configures the Client
type ClientOption func(*Client)

// WithModel sets the model. "vertex_ai/" and "vertex/" prefixes are dropped.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if provider, name := llm.SplitModel(model); provider == "vertex_ai" || provider == "vertex" {
			model = name
		}
		c.model = model
	}
}

// WithLocation sets the location for the client
func WithLocation(location string) ClientOption {
	return func(c *Client) {
		c.location = location
	}
}

// WithMaxRetries sets the maximum number of retries
func WithMaxRetries(maxRetries int) ClientOption {
	return func(c *Client) {
		c.maxRetries = maxRetries
	}
}

// WithRetryDelay sets the initial retry delay
func WithRetryDelay(delay time.Duration) ClientOption {
	return func(c *Client) {
		c.retryDelay = delay
	}
}

// WithTemperature sets the default temperature for every request
func WithTemperature(temperature float64) ClientOption {
	return func(c *Client) {
		c.temperature = &temperature
	}
}

// WithLogger sets the logger for the client
func WithLogger(logger logging.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithCredentialsFile sets the path to the service account credentials file
func WithCredentialsFile(credentialsFile string) ClientOption {
	return func(c *Client) {
		c.credentialsFile = credentialsFile
	}
}

func newClient(projectID string, options ...ClientOption) *Client {
	client := &Client{
		model:      DefaultModel,
		projectID:  projectID,
		location:   "us-central1",
		maxRetries: 3,
		retryDelay: time.Second,
		logger:     logging.New(),
	}
	for _, opt := range options {
		opt(client)
	}
	return client
}

// NewClient creates a new Vertex AI client
func NewClient(ctx context.Context, projectID string, options ...ClientOption) (*Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required")
	}

	client := newClient(projectID, options...)

	var clientOptions []option.ClientOption
	if client.credentialsFile != "" {
		clientOptions = append(clientOptions, option.WithCredentialsFile(client.credentialsFile))
	}

	vertexClient, err := genai.NewClient(ctx, projectID, client.location, clientOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vertex AI client: %w", err)
	}

	client.client = vertexClient
	return client, nil
}

// Name returns the client name
func (c *Client) Name() string {
	return fmt.Sprintf("vertex:%s", c.model)
}

// Generate implements interfaces.LLM.Generate
func (c *Client) Generate(ctx context.Context, prompt string, options ...interfaces.GenerateOption) (string, error) {
	params := interfaces.NewGenerateOptions(options...)

	model := c.client.GenerativeModel(c.model)
	c.configureModel(model, params)

	var response *genai.GenerateContentResponse
	err := c.withRetry(ctx, func() error {
		var genErr error
		response, genErr = model.GenerateContent(ctx, genai.Text(prompt))
		if genErr != nil {
			c.logger.Warn(ctx, "Vertex AI request failed", map[string]interface{}{
				"model": c.model,
				"error": genErr.Error(),
			})
		}
		return genErr
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	return responseText(response)
}

// configureModel applies per-request options to a model handle
func (c *Client) configureModel(model *genai.GenerativeModel, params *interfaces.GenerateOptions) {
	if params.SystemMessage != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(params.SystemMessage)},
		}
	}

	switch {
	case params.LLMConfig.Temperature != nil:
		model.SetTemperature(float32(*params.LLMConfig.Temperature))
	case c.temperature != nil:
		model.SetTemperature(float32(*c.temperature))
	}
	if params.LLMConfig.TopP > 0 {
		model.SetTopP(float32(params.LLMConfig.TopP))
	}
	if params.LLMConfig.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(params.LLMConfig.MaxTokens))
	}
	if len(params.LLMConfig.StopSequences) > 0 {
		model.StopSequences = params.LLMConfig.StopSequences
	}

	if params.ResponseFormat != nil && params.ResponseFormat.Type != interfaces.ResponseFormatText {
		model.ResponseMIMEType = "application/json"
		if len(params.ResponseFormat.Schema) > 0 {
			model.ResponseSchema = convertSchema(params.ResponseFormat.Schema)
		}
	}
}

func responseText(response *genai.GenerateContentResponse) (string, error) {
	if response == nil || len(response.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}

	candidate := response.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var result strings.Builder
	for _, part := range candidate.Content.Parts {
		if textPart, ok := part.(genai.Text); ok {
			result.WriteString(string(textPart))
		}
	}

	return strings.TrimSpace(result.String()), nil
}

// convertSchema maps the subset of JSON schema produced by signatures onto genai.Schema
func convertSchema(schema map[string]interface{}) *genai.Schema {
	out := &genai.Schema{}
	if desc, ok := schema["description"].(string); ok {
		out.Description = desc
	}

	switch schema["type"] {
	case "object":
		out.Type = genai.TypeObject
	case "array":
		out.Type = genai.TypeArray
	case "number":
		out.Type = genai.TypeNumber
	case "integer":
		out.Type = genai.TypeInteger
	case "boolean":
		out.Type = genai.TypeBoolean
	default:
		out.Type = genai.TypeString
	}

	if props, ok := schema["properties"].(map[string]interface{}); ok {
		out.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if prop, ok := raw.(map[string]interface{}); ok {
				out.Properties[name] = convertSchema(prop)
			}
		}
	}
	if items, ok := schema["items"].(map[string]interface{}); ok {
		out.Items = convertSchema(items)
	}
	switch required := schema["required"].(type) {
	case []string:
		out.Required = append(out.Required, required...)
	case []interface{}:
		for _, r := range required {
			if s, ok := r.(string); ok {
				out.Required = append(out.Required, s)
			}
		}
	}

	return out
}

// withRetry executes the function with exponential backoff retry logic
func (c *Client) withRetry(ctx context.Context, fn func() error) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = c.retryDelay

	var b backoff.BackOff = exponentialBackoff
	if c.maxRetries >= 0 {
		b = backoff.WithMaxRetries(exponentialBackoff, uint64(c.maxRetries))
	}

	return backoff.Retry(fn, backoff.WithContext(b, ctx))
}

// Close closes the Vertex AI client
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

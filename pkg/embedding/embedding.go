package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/run-bigpig/observable-agent/pkg/interfaces"
	"github.com/run-bigpig/observable-agent/pkg/logging"
	"github.com/run-bigpig/observable-agent/pkg/retry"
)

// DefaultModel is used when no embedding model is configured
const DefaultModel = "text-embedding-3-small"

// OpenAIEmbedder implements embedding generation using OpenAI API
type OpenAIEmbedder struct {
	client        *openai.Client
	model         string
	baseURL       string
	dimensions    int
	logger        logging.Logger
	retryExecutor *retry.Executor
}

var _ interfaces.Embedder = (*OpenAIEmbedder)(nil)

// Option configures an OpenAIEmbedder
type Option func(*OpenAIEmbedder)

// WithModel sets the embedding model. An "openai/" prefix is dropped.
func WithModel(model string) Option {
	return func(e *OpenAIEmbedder) {
		if model != "" {
			e.model = strings.TrimPrefix(model, "openai/")
		}
	}
}

// WithBaseURL points the embedder at an OpenAI-compatible endpoint
func WithBaseURL(baseURL string) Option {
	return func(e *OpenAIEmbedder) {
		e.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithDimensions requests shortened vectors (text-embedding-3-* only)
func WithDimensions(dimensions int) Option {
	return func(e *OpenAIEmbedder) {
		e.dimensions = dimensions
	}
}

// WithLogger sets the logger
func WithLogger(logger logging.Logger) Option {
	return func(e *OpenAIEmbedder) {
		e.logger = logger
	}
}

// WithRetry retries failed embedding calls under the given policy
func WithRetry(opts ...retry.Option) Option {
	return func(e *OpenAIEmbedder) {
		e.retryExecutor = retry.NewExecutor(retry.NewPolicy(opts...))
	}
}

// NewOpenAIEmbedder creates a new OpenAIEmbedder instance
func NewOpenAIEmbedder(apiKey string, options ...Option) *OpenAIEmbedder {
	e := &OpenAIEmbedder{
		model:  DefaultModel,
		logger: logging.NewNop(),
	}
	for _, opt := range options {
		opt(e)
	}

	cfg := openai.DefaultConfig(apiKey)
	if e.baseURL != "" {
		cfg.BaseURL = e.baseURL
	}
	e.client = openai.NewClientWithConfig(cfg)
	return e
}

// Model returns the embedding model name
func (e *OpenAIEmbedder) Model() string {
	return e.model
}

// Embed generates an embedding for a single text
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one request. The
// result is ordered like the input regardless of the order the API answers in.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          openai.EmbeddingModel(e.model),
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	var resp openai.EmbeddingResponse
	operation := func() error {
		var err error
		resp, err = e.client.CreateEmbeddings(ctx, req)
		return err
	}

	var err error
	if e.retryExecutor != nil {
		err = e.retryExecutor.Execute(ctx, operation)
	} else {
		err = operation()
	}
	if err != nil {
		e.logger.Warn(ctx, "Embedding request failed", map[string]interface{}{
			"model": e.model,
			"count": len(texts),
			"error": err.Error(),
		})
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}

	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding data returned from API")
	}

	embeddings := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(embeddings) {
			return nil, fmt.Errorf("invalid embedding index: %d", data.Index)
		}
		embeddings[data.Index] = data.Embedding
	}
	for i, v := range embeddings {
		if v == nil {
			return nil, fmt.Errorf("missing embedding for input %d", i)
		}
	}

	return embeddings, nil
}

// Cosine returns the cosine similarity of two vectors, or 0 when either is
// empty, their lengths differ, or either has zero norm.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// CalculateSimilarity compares two embeddings with the named metric:
// "cosine" (default), "euclidean" (as 1/(1+d²)) or "dot_product".
func CalculateSimilarity(vec1, vec2 []float32, metric string) (float64, error) {
	if len(vec1) != len(vec2) {
		return 0, errors.New("embedding vectors must have the same dimensions")
	}

	switch metric {
	case "", "cosine":
		return Cosine(vec1, vec2), nil
	case "euclidean":
		var sum float64
		for i := range vec1 {
			d := float64(vec1[i] - vec2[i])
			sum += d * d
		}
		return 1.0 / (1.0 + sum), nil
	case "dot_product":
		var sum float64
		for i := range vec1 {
			sum += float64(vec1[i]) * float64(vec2[i])
		}
		return sum, nil
	default:
		return 0, fmt.Errorf("unsupported similarity metric: %s", metric)
	}
}

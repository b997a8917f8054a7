package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 2, 3}, []float32{2, 4, 6}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, Cosine([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, Cosine(nil, []float32{1}))
	assert.Equal(t, 0.0, Cosine([]float32{1, 2}, []float32{1}))
	assert.Equal(t, 0.0, Cosine([]float32{0, 0}, []float32{1, 1}))
}

func TestCalculateSimilarity(t *testing.T) {
	got, err := CalculateSimilarity([]float32{1, 2}, []float32{3, 4}, "dot_product")
	require.NoError(t, err)
	assert.InDelta(t, 11.0, got, 1e-9)

	got, err = CalculateSimilarity([]float32{0, 0}, []float32{1, 0}, "euclidean")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, got, 1e-9)

	_, err = CalculateSimilarity([]float32{1}, []float32{1, 2}, "cosine")
	assert.Error(t, err)

	_, err = CalculateSimilarity([]float32{1}, []float32{1}, "manhattan")
	assert.EqualError(t, err, "unsupported similarity metric: manhattan")
}

func TestOpenAIEmbedderOrdersByIndex(t *testing.T) {
	var request map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&request))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"object": "list",
			"model": "text-embedding-3-small",
			"data": [
				{"object": "embedding", "index": 1, "embedding": [0, 1]},
				{"object": "embedding", "index": 0, "embedding": [1, 0]}
			]
		}`))
	}))
	defer server.Close()

	embedder := NewOpenAIEmbedder("test-key", WithBaseURL(server.URL), WithModel("openai/text-embedding-3-small"))
	vectors, err := embedder.EmbedBatch(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vectors)
	assert.Equal(t, "text-embedding-3-small", request["model"])
	assert.Equal(t, []interface{}{"first", "second"}, request["input"])

	empty, err := embedder.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestOpenAIEmbedderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "bad key", "type": "invalid_request_error"}}`))
	}))
	defer server.Close()

	_, err := NewOpenAIEmbedder("bad", WithBaseURL(server.URL)).Embed(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create embeddings")
}

type countingEmbedder struct {
	batches [][]string
	err     error
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

func (c *countingEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.batches = append(c.batches, append([]string(nil), texts...))
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func TestCachedEmbedderOnlyEmbedsUnseenTexts(t *testing.T) {
	inner := &countingEmbedder{}
	cache := NewMemoryCache()
	cached := NewCachedEmbedder(inner, cache, nil)
	ctx := context.Background()

	vectors, err := cached.EmbedBatch(ctx, []string{"a", "bb", "a"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1}, {2}, {1}}, vectors)

	vectors, err = cached.EmbedBatch(ctx, []string{"bb", "ccc"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{2}, {3}}, vectors)

	v, err := cached.Embed(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, v)

	assert.Equal(t, [][]string{{"a", "bb"}, {"ccc"}}, inner.batches)
	assert.Equal(t, 3, cache.Len())
}

func TestCachedEmbedderPropagatesErrors(t *testing.T) {
	cached := NewCachedEmbedder(&countingEmbedder{err: errors.New("quota")}, nil, nil)
	_, err := cached.EmbedBatch(context.Background(), []string{"x"})
	assert.EqualError(t, err, "quota")
}

func TestRedisCacheKey(t *testing.T) {
	c := NewRedisCache(redis.NewClient(&redis.Options{Addr: "localhost:0"}), WithKeyPrefix("test:"))
	defer c.Close()

	key := c.Key("hello")
	assert.Equal(t, "test:2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", key)
	assert.NotEqual(t, key, c.Key("hello "))
}

func TestRedisCacheKeyIncludesModel(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer client.Close()

	small := NewRedisCache(client, WithCacheModel("text-embedding-3-small"))
	large := NewRedisCache(client, WithCacheModel("text-embedding-3-large"))

	assert.Equal(t, "embedding:text-embedding-3-small:2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", small.Key("hello"))
	assert.NotEqual(t, small.Key("hello"), large.Key("hello"))
	assert.Equal(t, small.Key("hello"), NewRedisCache(client, WithCacheModel("text-embedding-3-small")).Key("hello"))
}

func TestNewRedisCacheFromURLRejectsBadURL(t *testing.T) {
	_, err := NewRedisCacheFromURL(context.Background(), "not-a-url")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid REDIS_URL")
}

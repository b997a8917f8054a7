package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/run-bigpig/observable-agent/pkg/interfaces"
	"github.com/run-bigpig/observable-agent/pkg/logging"
)

// Cache stores vectors keyed by the exact text they were computed from
type Cache interface {
	Get(ctx context.Context, text string) ([]float32, bool, error)
	Set(ctx context.Context, text string, vector []float32) error
}

// MemoryCache is a process-local Cache
type MemoryCache struct {
	mu      sync.RWMutex
	vectors map[string][]float32
}

// NewMemoryCache creates an empty in-memory cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{vectors: make(map[string][]float32)}
}

func (c *MemoryCache) Get(_ context.Context, text string) ([]float32, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.vectors[text]
	return v, ok, nil
}

func (c *MemoryCache) Set(_ context.Context, text string, vector []float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vectors[text] = vector
	return nil
}

// Len returns the number of cached vectors
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.vectors)
}

// RedisCache shares vectors across processes, so repeated tuning runs
// do not pay for the same embeddings twice
type RedisCache struct {
	client    *redis.Client
	keyPrefix string
	model     string
	ttl       time.Duration
}

// RedisOption configures a RedisCache
type RedisOption func(*RedisCache)

// WithKeyPrefix sets the prefix for Redis keys
func WithKeyPrefix(prefix string) RedisOption {
	return func(c *RedisCache) {
		c.keyPrefix = prefix
	}
}

// WithCacheModel scopes keys to an embedding model. Vectors from different
// models are not comparable and may differ in length.
func WithCacheModel(model string) RedisOption {
	return func(c *RedisCache) {
		c.model = model
	}
}

// WithTTL sets the expiry of cached vectors; 0 keeps them forever
func WithTTL(ttl time.Duration) RedisOption {
	return func(c *RedisCache) {
		c.ttl = ttl
	}
}

// NewRedisCache wraps an existing client
func NewRedisCache(client *redis.Client, options ...RedisOption) *RedisCache {
	c := &RedisCache{
		client:    client,
		keyPrefix: "embedding:",
		ttl:       7 * 24 * time.Hour,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// NewRedisCacheFromURL connects to redis://... and verifies the connection
func NewRedisCacheFromURL(ctx context.Context, url string, options ...RedisOption) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisCache(client, options...), nil
}

// Key returns the Redis key holding the vector for text, e.g.
// embedding:text-embedding-3-small:<sha256>
func (c *RedisCache) Key(text string) string {
	sum := sha256.Sum256([]byte(text))
	if c.model == "" {
		return c.keyPrefix + hex.EncodeToString(sum[:])
	}
	return c.keyPrefix + c.model + ":" + hex.EncodeToString(sum[:])
}

func (c *RedisCache) Get(ctx context.Context, text string) ([]float32, bool, error) {
	raw, err := c.client.Get(ctx, c.Key(text)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read embedding from Redis: %w", err)
	}

	var vector []float32
	if err := json.Unmarshal(raw, &vector); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached embedding: %w", err)
	}
	return vector, true, nil
}

func (c *RedisCache) Set(ctx context.Context, text string, vector []float32) error {
	raw, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("failed to encode embedding: %w", err)
	}
	if err := c.client.Set(ctx, c.Key(text), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store embedding in Redis: %w", err)
	}
	return nil
}

// Close closes the underlying Redis connection
func (c *RedisCache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// CachedEmbedder consults a Cache before calling the wrapped embedder and
// only sends the unique texts it has not seen.
type CachedEmbedder struct {
	embedder interfaces.Embedder
	cache    Cache
	logger   logging.Logger
}

var _ interfaces.Embedder = (*CachedEmbedder)(nil)

// NewCachedEmbedder wraps embedder; a nil cache means a fresh MemoryCache
func NewCachedEmbedder(embedder interfaces.Embedder, cache Cache, logger logging.Logger) *CachedEmbedder {
	if cache == nil {
		cache = NewMemoryCache()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &CachedEmbedder{embedder: embedder, cache: cache, logger: logger}
}

// Embed implements interfaces.Embedder
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch implements interfaces.Embedder
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	known := make(map[string][]float32, len(texts))
	var missing []string
	for _, text := range texts {
		if _, ok := known[text]; ok {
			continue
		}
		vector, ok, err := c.cache.Get(ctx, text)
		if err != nil {
			c.logger.Debug(ctx, "Embedding cache read failed", map[string]interface{}{"error": err.Error()})
		}
		if ok {
			known[text] = vector
			continue
		}
		known[text] = nil
		missing = append(missing, text)
	}

	if len(missing) > 0 {
		vectors, err := c.embedder.EmbedBatch(ctx, missing)
		if err != nil {
			return nil, err
		}
		if len(vectors) != len(missing) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(missing))
		}
		for i, text := range missing {
			known[text] = vectors[i]
			if err := c.cache.Set(ctx, text, vectors[i]); err != nil {
				c.logger.Debug(ctx, "Embedding cache write failed", map[string]interface{}{"error": err.Error()})
			}
		}
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = known[text]
	}
	return out, nil
}

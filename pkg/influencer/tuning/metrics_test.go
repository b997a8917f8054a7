package tuning

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/run-bigpig/observable-agent/pkg/embedding"
)

var labeled = map[string]string{
	"idea1_title":   "Caption Automation Shootout",
	"idea1_summary": "Compare AI caption tools with results",
	"idea1_pillar":  "Automation walk-throughs",
	"idea2_title":   "Batch Script Workflow",
	"idea2_summary": "Reveal the team's template system for scripts",
	"idea2_pillar":  "Template showcases",
	"idea3_title":   "Community Challenge Recap",
	"idea3_summary": "Share standout creations from the Discord",
	"idea3_pillar":  "Creator case studies",
}

func TestLinesFromFields(t *testing.T) {
	t.Run("structured", func(t *testing.T) {
		assert.Equal(t, []string{
			"Caption Automation Shootout - Compare AI caption tools with results | Automation walk-throughs",
			"Batch Script Workflow - Reveal the team's template system for scripts | Template showcases",
			"Community Challenge Recap - Share standout creations from the Discord | Creator case studies",
		}, LinesFromFields(labeled))
	})

	t.Run("partial", func(t *testing.T) {
		assert.Equal(t, []string{"Title only", "Pillar only", "Summary only"}, LinesFromFields(map[string]string{
			"idea1_title":   " Title only ",
			"idea2_pillar":  "Pillar only",
			"idea3_summary": "Summary only",
		}))
	})

	t.Run("free text fallback", func(t *testing.T) {
		assert.Equal(t, []string{"1. A", "2. B", "3. C"}, LinesFromFields(map[string]string{
			"response": "1. A\n\n 2. B \n3. C\n4. D",
		}))
	})

	t.Run("nothing", func(t *testing.T) {
		assert.Empty(t, LinesFromFields(map[string]string{}))
	})
}

func TestNormalizeLine(t *testing.T) {
	assert.Equal(t, "foo - bar - baz", NormalizeLine("  2)  Foo – Bar — Baz "))
	assert.Equal(t, "plain line", NormalizeLine("Plain   line"))
	assert.Equal(t, "title - summary", NormalizeLine("10. Title - Summary"))
}

func TestSequenceRatio(t *testing.T) {
	assert.InDelta(t, 0.75, SequenceRatio("abcd", "abce"), 1e-9)
	assert.InDelta(t, 1.0, SequenceRatio("same", "same"), 1e-9)
	assert.InDelta(t, 0.0, SequenceRatio("abc", "xyz"), 1e-9)
}

func TestSimilarityMetric(t *testing.T) {
	ctx := context.Background()

	t.Run("identical", func(t *testing.T) {
		assert.InDelta(t, 1.0, SimilarityMetric(ctx, labeled, labeled), 1e-9)
	})

	t.Run("numbered free text matches structured label", func(t *testing.T) {
		predicted := map[string]string{"response": strings.Join([]string{
			"1. Community Challenge Recap - Share standout creations from the Discord | Creator case studies",
			"2. Caption Automation Shootout – Compare AI caption tools with results | Automation walk-throughs",
		}, "\n")}
		assert.InDelta(t, 2.0/3.0, SimilarityMetric(ctx, labeled, predicted), 1e-9)
	})

	t.Run("each prediction matches once", func(t *testing.T) {
		predicted := map[string]string{
			"idea1_title":   "Caption Automation Shootout",
			"idea1_summary": "Compare AI caption tools with results",
			"idea1_pillar":  "Automation walk-throughs",
		}
		assert.InDelta(t, 1.0/3.0, SimilarityMetric(ctx, labeled, predicted), 1e-9)
	})

	t.Run("unrelated", func(t *testing.T) {
		predicted := map[string]string{"response": "zq\nxv\nkw"}
		assert.Equal(t, 0.0, SimilarityMetric(ctx, labeled, predicted))
	})

	t.Run("empty sides", func(t *testing.T) {
		assert.Equal(t, 0.0, SimilarityMetric(ctx, labeled, map[string]string{}))
		assert.Equal(t, 0.0, SimilarityMetric(ctx, map[string]string{}, labeled))
	})
}

// keywordEmbedder maps each text onto a one-hot vector keyed by its first word
type keywordEmbedder struct {
	calls int
	texts []string
	err   error
}

func (k *keywordEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := k.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

func (k *keywordEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	k.calls++
	k.texts = append(k.texts, texts...)
	if k.err != nil {
		return nil, k.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, 4)
		switch strings.Fields(text)[0] {
		case "caption":
			v[0] = 1
		case "batch":
			v[1] = 1
		case "community":
			v[2] = 1
		default:
			v[3] = 1
		}
		out[i] = v
	}
	return out, nil
}

func TestSemanticMetric(t *testing.T) {
	ctx := context.Background()
	embedder := &keywordEmbedder{}
	metric := SemanticMetric(embedder, DefaultSemanticThreshold, nil)

	predicted := map[string]string{"response": "1. Caption tools compared\n2. Batch everything\n3. Something else"}
	assert.InDelta(t, 2.0/3.0, metric(ctx, labeled, predicted), 1e-9)
	require.Equal(t, 1, embedder.calls)
	assert.Len(t, embedder.texts, 6)
	assert.Contains(t, embedder.texts, "caption tools compared")

	// every line is cached now
	assert.InDelta(t, 2.0/3.0, metric(ctx, labeled, predicted), 1e-9)
	assert.Equal(t, 1, embedder.calls)
}

func TestSemanticMetricSharesCachedEmbedder(t *testing.T) {
	inner := &keywordEmbedder{}
	cache := embedding.NewMemoryCache()
	metric := SemanticMetric(embedding.NewCachedEmbedder(inner, cache, nil), 0.9, nil)

	metric(context.Background(), labeled, labeled)
	assert.Equal(t, 3, cache.Len())
}

func TestSemanticMetricFallsBackToFuzzy(t *testing.T) {
	metric := SemanticMetric(&keywordEmbedder{err: errors.New("no network")}, DefaultSemanticThreshold, nil)
	assert.InDelta(t, 1.0, metric(context.Background(), labeled, labeled), 1e-9)
}

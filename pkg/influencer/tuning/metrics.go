// Package tuning searches for the few-shot demonstrations that make the
// video idea predictor agree most closely with the labeled training set.
package tuning

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/run-bigpig/observable-agent/pkg/embedding"
	"github.com/run-bigpig/observable-agent/pkg/interfaces"
	"github.com/run-bigpig/observable-agent/pkg/logging"
)

// MatchThreshold is the per-line similarity a fuzzy match needs
const MatchThreshold = 0.6

// DefaultSemanticThreshold is the cosine similarity a semantic match needs
const DefaultSemanticThreshold = 0.8

// maxLines is the number of ideas compared per example
const maxLines = 3

// Metric scores predicted output fields against expected ones, from 0 to 1
type Metric func(ctx context.Context, expected, predicted map[string]string) float64

var (
	leadingNumber = regexp.MustCompile(`^\s*\d+[.)\-\s]*`)
	whitespace    = regexp.MustCompile(`\s+`)
	nonWord       = regexp.MustCompile(`[^a-z0-9]+`)
)

// LinesFromFields builds up to three "Title - Summary | Pillar" lines from
// structured idea fields. Partially filled ideas still produce a line. When
// no idea field is set, the non-empty lines of "response" are used instead.
func LinesFromFields(fields map[string]string) []string {
	var out []string
	for i := 1; i <= maxLines; i++ {
		title := strings.TrimSpace(fields[fmt.Sprintf("idea%d_title", i)])
		summary := strings.TrimSpace(fields[fmt.Sprintf("idea%d_summary", i)])
		pillar := strings.TrimSpace(fields[fmt.Sprintf("idea%d_pillar", i)])
		if title == "" && summary == "" && pillar == "" {
			continue
		}

		var parts []string
		for _, part := range []string{title, summary} {
			if part != "" {
				parts = append(parts, part)
			}
		}
		core := strings.Join(parts, " - ")
		switch {
		case pillar == "":
			out = append(out, core)
		case core == "":
			out = append(out, pillar)
		default:
			out = append(out, core+" | "+pillar)
		}
	}
	if len(out) > 0 {
		return out
	}

	for _, line := range strings.Split(fields["response"], "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
			if len(out) == maxLines {
				break
			}
		}
	}
	return out
}

// NormalizeLine lowercases a line, drops list numbering, unifies dashes and
// collapses whitespace
func NormalizeLine(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = leadingNumber.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, " — ", " - ")
	s = strings.ReplaceAll(s, "–", "-")
	return whitespace.ReplaceAllString(s, " ")
}

func normalizedLines(fields map[string]string) []string {
	lines := LinesFromFields(fields)
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			out = append(out, NormalizeLine(line))
		}
	}
	return out
}

// SimilarityMetric is the fraction of expected lines that find a distinct
// predicted line scoring at least MatchThreshold, where a pair scores the
// larger of token Jaccard similarity and sequence-matcher ratio
func SimilarityMetric(_ context.Context, expected, predicted map[string]string) float64 {
	return fuzzyScore(normalizedLines(expected), normalizedLines(predicted))
}

func fuzzyScore(expected, predicted []string) float64 {
	if len(expected) == 0 || len(predicted) == 0 {
		return 0
	}
	return greedyMatch(len(expected), len(predicted), func(e, p int) float64 {
		return lineSimilarity(expected[e], predicted[p])
	}, MatchThreshold)
}

// greedyMatch pairs each expected item with its best unused prediction and
// returns the fraction of pairs reaching threshold
func greedyMatch(nExpected, nPredicted int, score func(e, p int) float64, threshold float64) float64 {
	used := make(map[int]bool, nPredicted)
	matched := 0
	for e := 0; e < nExpected; e++ {
		best, bestIdx := 0.0, -1
		for p := 0; p < nPredicted; p++ {
			if used[p] {
				continue
			}
			if s := score(e, p); s > best {
				best, bestIdx = s, p
			}
		}
		if bestIdx >= 0 && best >= threshold {
			matched++
			used[bestIdx] = true
		}
	}
	return float64(matched) / float64(max(1, nExpected))
}

func lineSimilarity(a, b string) float64 {
	ta, tb := tokenSet(a), tokenSet(b)
	jaccard := 0.0
	if len(ta) > 0 || len(tb) > 0 {
		inter := 0
		for t := range ta {
			if tb[t] {
				inter++
			}
		}
		union := len(ta) + len(tb) - inter
		jaccard = float64(inter) / float64(max(1, union))
	}
	return max(jaccard, SequenceRatio(a, b))
}

func tokenSet(s string) map[string]bool {
	set := map[string]bool{}
	for _, t := range nonWord.Split(s, -1) {
		if t != "" {
			set[t] = true
		}
	}
	return set
}

// SequenceRatio is the character-level similarity 2*M/T of two strings,
// where M counts matched characters and T the total length
func SequenceRatio(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	m := difflib.NewMatcher(splitChars(a), splitChars(b))
	return m.Ratio()
}

func splitChars(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// SemanticMetric matches lines by embedding cosine similarity instead of
// surface form. Vectors are cached by normalized text, so repeated lines
// across candidates are embedded once. If embedding fails the fuzzy metric
// is used for that call.
func SemanticMetric(embedder interfaces.Embedder, threshold float64, logger logging.Logger) Metric {
	if logger == nil {
		logger = logging.NewNop()
	}
	cached, ok := embedder.(*embedding.CachedEmbedder)
	if !ok {
		cached = embedding.NewCachedEmbedder(embedder, nil, logger)
	}

	return func(ctx context.Context, expected, predicted map[string]string) float64 {
		exp, pred := normalizedLines(expected), normalizedLines(predicted)
		if len(exp) == 0 || len(pred) == 0 {
			return 0
		}

		vectors, err := cached.EmbedBatch(ctx, append(append([]string(nil), exp...), pred...))
		if err != nil {
			logger.Warn(ctx, "Embedding failed; using fuzzy similarity", map[string]interface{}{"error": err.Error()})
			return fuzzyScore(exp, pred)
		}
		expVecs, predVecs := vectors[:len(exp)], vectors[len(exp):]

		return greedyMatch(len(exp), len(pred), func(e, p int) float64 {
			return embedding.Cosine(expVecs[e], predVecs[p])
		}, threshold)
	}
}

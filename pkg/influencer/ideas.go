package influencer

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/run-bigpig/observable-agent/pkg/agent"
	"github.com/run-bigpig/observable-agent/pkg/signature"
)

// Observation is the trace name for idea generation
const Observation = "video-ideas"

// DefaultRequest is used when the caller gives no request
const DefaultRequest = "Generate topical video ideas"

// DefaultTargetCount is how many ideas are requested unless configured otherwise
const DefaultTargetCount = 4

// Reasons a deterministic list was returned instead of model output
const (
	FallbackNoLM          = "no_lm"
	FallbackEmptyResponse = "empty_response"
	FallbackLMError       = "lm_error"
)

var fallbackTitles = []string{
	"Playbook Spotlight",
	"Behind-the-Scenes Ops",
	"Automation Boost",
	"Community Wins",
}

// IdeaSignature asks for free-text ideas, one per numbered line
var IdeaSignature = signature.Signature{
	Name:         "VideoIdeaSignature",
	Instructions: "Formulate new video ideas for a creator-led brand.",
	Inputs: []signature.Field{
		{Name: "profile_context", Description: "Key details about the creator business"},
		{Name: "request", Description: "Manager request or constraints"},
	},
	Outputs: []signature.Field{
		{Name: "response", Description: "Return exactly 3 numbered lines, each formatted as: 'Title - Summary | Pillar'."},
	},
}

// VideoIdea is one suggested video
type VideoIdea struct {
	Title   string `json:"title" yaml:"title"`
	Summary string `json:"summary" yaml:"summary"`
	Pillar  string `json:"pillar,omitempty" yaml:"pillar,omitempty"`
}

// String renders the idea as "Title - Summary | Pillar"
func (v VideoIdea) String() string {
	if v.Pillar == "" {
		return v.Title + " - " + v.Summary
	}
	return v.Title + " - " + v.Summary + " | " + v.Pillar
}

// IdeaResult carries the ideas and, when they were not produced by the
// model, why not
type IdeaResult struct {
	Ideas          []VideoIdea `json:"ideas"`
	FallbackReason string      `json:"fallback_reason,omitempty"`
}

// IdeaGenerator produces video ideas grounded in a creator profile
type IdeaGenerator struct {
	*agent.BaseAgent
	targetCount int
	demos       []signature.Example
}

// IdeaOption configures an IdeaGenerator
type IdeaOption func(*IdeaGenerator)

// WithTargetCount sets how many ideas are requested and returned
func WithTargetCount(n int) IdeaOption {
	return func(g *IdeaGenerator) {
		if n > 0 {
			g.targetCount = n
		}
	}
}

// WithDemos primes the model with few-shot demonstrations, typically loaded
// from tuned guidance
func WithDemos(demos ...signature.Example) IdeaOption {
	return func(g *IdeaGenerator) {
		g.demos = append([]signature.Example(nil), demos...)
	}
}

// NewIdeaGenerator wraps base, which should be created with Observation as its name
func NewIdeaGenerator(base *agent.BaseAgent, options ...IdeaOption) *IdeaGenerator {
	g := &IdeaGenerator{BaseAgent: base, targetCount: DefaultTargetCount}
	for _, opt := range options {
		opt(g)
	}
	return g
}

// TargetCount returns the number of ideas requested per call
func (g *IdeaGenerator) TargetCount() int {
	return g.targetCount
}

// Generate asks the model for ideas. It never fails: without a model, or
// when the reply holds no usable lines, deterministic ideas built from the
// profile's pillars are returned and FallbackReason says why.
func (g *IdeaGenerator) Generate(ctx context.Context, profile *Profile, request, variationToken string) IdeaResult {
	if strings.TrimSpace(request) == "" {
		request = DefaultRequest
	}
	if profile == nil {
		profile = &Profile{}
	}

	var result IdeaResult
	if !g.HasLLM() {
		result = IdeaResult{Ideas: FallbackIdeas(profile, request, g.targetCount), FallbackReason: FallbackNoLM}
	} else {
		ideas, err := g.predict(ctx, profile, request, variationToken)
		switch {
		case err != nil:
			g.Logger().Warn(ctx, "Video idea prediction failed", map[string]interface{}{"error": err.Error()})
			result = IdeaResult{Ideas: FallbackIdeas(profile, request, g.targetCount), FallbackReason: FallbackLMError}
		case len(ideas) == 0:
			result = IdeaResult{Ideas: FallbackIdeas(profile, request, g.targetCount), FallbackReason: FallbackEmptyResponse}
		default:
			result = IdeaResult{Ideas: ideas}
		}
	}

	g.logIdeas(ctx, profile, request, variationToken, result)
	return result
}

func (g *IdeaGenerator) predict(ctx context.Context, profile *Profile, request, variationToken string) ([]VideoIdea, error) {
	predictor := signature.NewPredictor(IdeaSignature, g.LLM(), signature.WithDemos(g.demos...))
	prediction, err := predictor.Predict(ctx, map[string]string{
		"profile_context": RenderProfileContext(profile),
		"request":         IdeaRequest(request, g.targetCount, variationToken),
	})
	if err != nil {
		return nil, err
	}
	return ParseIdeas(prediction.Get("response"), profile.ContentPillars, g.targetCount), nil
}

func (g *IdeaGenerator) logIdeas(ctx context.Context, profile *Profile, request, variationToken string, result IdeaResult) {
	ideas := make([]map[string]interface{}, 0, len(result.Ideas))
	for _, idea := range result.Ideas {
		ideas = append(ideas, map[string]interface{}{
			"title":   idea.Title,
			"summary": idea.Summary,
			"pillar":  idea.Pillar,
		})
	}

	metadata := map[string]interface{}{
		"creator_id":   profile.CreatorID,
		"target_count": g.targetCount,
	}
	if variationToken != "" {
		metadata["variation_token"] = variationToken
	}
	if result.FallbackReason != "" {
		metadata["fallback_reason"] = result.FallbackReason
	}

	g.LogGeneration(ctx,
		map[string]interface{}{"handle": profile.Handle, "request": request},
		map[string]interface{}{"ideas": ideas},
		metadata,
	)
}

// IdeaRequest builds the request text sent to the model. A variation token
// nudges the model away from repeating earlier answers.
func IdeaRequest(request string, count int, variationToken string) string {
	text := fmt.Sprintf("Provide %d concise video ideas that align with the request: %s. "+
		"Return them as a numbered list where each item includes a title, target pillar, and a short summary separated by ' - '.",
		count, request)
	if variationToken != "" {
		text += fmt.Sprintf(" Variation token: %s. Use it to provide fresh, non-repeated ideas and do not mention the token in the response.", variationToken)
	}
	return text
}

// ParseIdeas reads "Title - Summary | Pillar" lines, tolerating numbering
// and missing parts. Ideas without a pillar take the next default pillar in
// turn. At most max(1, maxIdeas) ideas are returned.
func ParseIdeas(text string, defaultPillars []string, maxIdeas int) []VideoIdea {
	ideas := []VideoIdea{}
	next := 0

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if unicode.IsDigit(rune(line[0])) {
			line = strings.TrimLeft(line, "0123456789). ")
		}

		left, pillar := line, ""
		if i := strings.LastIndex(line, "|"); i >= 0 {
			left, pillar = strings.TrimSpace(line[:i]), strings.TrimSpace(line[i+1:])
		}

		title, summary := strings.TrimSpace(left), ""
		if t, s, ok := strings.Cut(left, " - "); ok {
			title, summary = strings.TrimSpace(t), strings.TrimSpace(s)
		}

		if pillar == "" && len(defaultPillars) > 0 {
			pillar = defaultPillars[next%len(defaultPillars)]
			next++
		}

		ideas = append(ideas, VideoIdea{
			Title:   orDefault(title, "Idea"),
			Summary: orDefault(summary, "Fill in details"),
			Pillar:  pillar,
		})
	}

	if maxIdeas < 1 {
		maxIdeas = 1
	}
	if len(ideas) > maxIdeas {
		ideas = ideas[:maxIdeas]
	}
	return ideas
}

// FallbackIdeas builds n deterministic ideas from the profile's pillars.
// A negative n yields no ideas.
func FallbackIdeas(profile *Profile, request string, n int) []VideoIdea {
	n = max(n, 0)
	pillars := []string{"Strategy"}
	if profile != nil && len(profile.ContentPillars) > 0 {
		pillars = profile.ContentPillars
	}

	ideas := make([]VideoIdea, 0, n)
	for i := 0; i < n; i++ {
		pillar := pillars[i%len(pillars)]
		ideas = append(ideas, VideoIdea{
			Title:   pillar + " " + fallbackTitles[i%len(fallbackTitles)],
			Summary: fmt.Sprintf("Actionable idea inspired by the '%s' pillar to address: %s.", pillar, request),
			Pillar:  pillar,
		})
	}
	return ideas
}

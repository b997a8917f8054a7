package influencer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/run-bigpig/observable-agent/pkg/agent"
	"github.com/run-bigpig/observable-agent/pkg/interfaces"
	"github.com/run-bigpig/observable-agent/pkg/llm/dummy"
	"github.com/run-bigpig/observable-agent/pkg/logging"
	"github.com/run-bigpig/observable-agent/pkg/signature"
)

type recordingObserver struct {
	generations []interfaces.Generation
}

func (r *recordingObserver) LogGeneration(_ context.Context, g interfaces.Generation) error {
	r.generations = append(r.generations, g)
	return nil
}

func (r *recordingObserver) Flush() error { return nil }

func responseJSON(t *testing.T, response string) string {
	t.Helper()
	b, err := json.Marshal(map[string]string{"response": response})
	require.NoError(t, err)
	return string(b)
}

func newGenerator(model interfaces.LLM, observer *recordingObserver, options ...IdeaOption) *IdeaGenerator {
	opts := []agent.Option{agent.WithLogger(logging.NewNop()), agent.WithObserver(observer)}
	if model != nil {
		opts = append(opts, agent.WithLLM(model))
	}
	return NewIdeaGenerator(agent.New(Observation, opts...), options...)
}

func TestParseIdeas(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		defaults []string
		max      int
		want     []VideoIdea
	}{
		{
			name: "full lines",
			text: "1. Ops Tour - Walk the board | Behind-the-scenes ops\n2) Case Study - Show ROI | Agency growth playbooks",
			max:  4,
			want: []VideoIdea{
				{Title: "Ops Tour", Summary: "Walk the board", Pillar: "Behind-the-scenes ops"},
				{Title: "Case Study", Summary: "Show ROI", Pillar: "Agency growth playbooks"},
			},
		},
		{
			name:     "default pillars round robin",
			text:     "A - a\n\n  B - b  \nC - c",
			defaults: []string{"P1", "P2"},
			max:      5,
			want: []VideoIdea{
				{Title: "A", Summary: "a", Pillar: "P1"},
				{Title: "B", Summary: "b", Pillar: "P2"},
				{Title: "C", Summary: "c", Pillar: "P1"},
			},
		},
		{
			name: "missing parts get placeholders",
			text: "3. Lonely title\n| Orphan pillar",
			max:  4,
			want: []VideoIdea{
				{Title: "Lonely title", Summary: "Fill in details"},
				{Title: "Idea", Summary: "Fill in details", Pillar: "Orphan pillar"},
			},
		},
		{
			name: "summary keeps later separators",
			text: "Title - part one - part two | A | B",
			max:  1,
			want: []VideoIdea{{Title: "Title", Summary: "part one - part two | A", Pillar: "B"}},
		},
		{
			name: "capped at one when max is zero",
			text: "A - a\nB - b",
			max:  0,
			want: []VideoIdea{{Title: "A", Summary: "a"}},
		},
		{
			name: "empty text",
			text: "\n  \n",
			max:  3,
			want: []VideoIdea{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseIdeas(tt.text, tt.defaults, tt.max))
		})
	}
}

func TestFallbackIdeas(t *testing.T) {
	ideas := FallbackIdeas(&Profile{ContentPillars: []string{"Recipes", "Tours"}}, "More views", 5)
	require.Len(t, ideas, 5)
	assert.Equal(t, VideoIdea{
		Title:   "Recipes Playbook Spotlight",
		Summary: "Actionable idea inspired by the 'Recipes' pillar to address: More views.",
		Pillar:  "Recipes",
	}, ideas[0])
	assert.Equal(t, "Tours Behind-the-Scenes Ops", ideas[1].Title)
	assert.Equal(t, "Recipes Automation Boost", ideas[2].Title)
	assert.Equal(t, "Tours Community Wins", ideas[3].Title)
	assert.Equal(t, "Recipes Playbook Spotlight", ideas[4].Title)

	strategy := FallbackIdeas(&Profile{}, "x", 1)
	assert.Equal(t, "Strategy Playbook Spotlight", strategy[0].Title)

	assert.NotPanics(t, func() {
		assert.Empty(t, FallbackIdeas(&Profile{}, "x", -1))
	})
	assert.Empty(t, FallbackIdeas(nil, "x", 0))
}

func TestIdeaRequest(t *testing.T) {
	assert.Equal(t,
		"Provide 3 concise video ideas that align with the request: Grow. Return them as a numbered list where each item includes a title, target pillar, and a short summary separated by ' - '.",
		IdeaRequest("Grow", 3, ""))
	assert.Contains(t, IdeaRequest("Grow", 3, "abc123"), " Variation token: abc123. Use it to provide fresh, non-repeated ideas")
}

func TestGenerateWithoutLM(t *testing.T) {
	observer := &recordingObserver{}
	g := newGenerator(nil, observer)
	profile := &Profile{CreatorID: "cr-1", ContentPillars: []string{"Recipes"}}

	result := g.Generate(context.Background(), profile, "", "")
	assert.Equal(t, FallbackNoLM, result.FallbackReason)
	require.Len(t, result.Ideas, DefaultTargetCount)
	assert.Contains(t, result.Ideas[0].Summary, DefaultRequest)

	require.Len(t, observer.generations, 1)
	assert.Equal(t, Observation, observer.generations[0].Name)
	assert.Equal(t, FallbackNoLM, observer.generations[0].Metadata["fallback_reason"])
}

func TestGenerateParsesModelReply(t *testing.T) {
	observer := &recordingObserver{}
	model := dummy.New(responseJSON(t, OfflineIdeas))
	g := newGenerator(model, observer, WithTargetCount(2))

	profile, err := LoadProfile("creator_snapshot.json")
	require.NoError(t, err)

	result := g.Generate(context.Background(), profile, DashboardRequest, "tok-1")
	assert.Empty(t, result.FallbackReason)
	assert.Equal(t, []VideoIdea{
		{Title: "Systems Sprint Recap", Summary: "Share wins from recent workflow experiments", Pillar: "Behind-the-scenes ops"},
		{Title: "Creator Ops Playbook", Summary: "Highlight packaged services and outcomes", Pillar: "Agency growth playbooks"},
	}, result.Ideas)

	prompts := model.Prompts()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "Provide 2 concise video ideas that align with the request: "+DashboardRequest)
	assert.Contains(t, prompts[0], "Variation token: tok-1")
	assert.Contains(t, prompts[0], "- Handle: @opsforcreators")

	require.Len(t, observer.generations, 1)
	g0 := observer.generations[0]
	assert.Equal(t, "tok-1", g0.Metadata["variation_token"])
	assert.NotContains(t, g0.Metadata, "fallback_reason")
	assert.Len(t, g0.Output.(map[string]interface{})["ideas"], 2)
}

func TestGenerateFallsBackOnEmptyReply(t *testing.T) {
	g := newGenerator(dummy.New(responseJSON(t, "   ")), &recordingObserver{})

	result := g.Generate(context.Background(), &Profile{ContentPillars: []string{"Recipes"}}, "Grow", "")
	assert.Equal(t, FallbackEmptyResponse, result.FallbackReason)
	assert.Len(t, result.Ideas, DefaultTargetCount)
}

func TestGenerateFallsBackOnModelError(t *testing.T) {
	g := newGenerator(dummy.New().WithErrors(errors.New("quota exceeded")), &recordingObserver{})

	result := g.Generate(context.Background(), nil, "Grow", "")
	assert.Equal(t, FallbackLMError, result.FallbackReason)
	assert.Equal(t, "Strategy Playbook Spotlight", result.Ideas[0].Title)
}

func TestGenerateUsesDemos(t *testing.T) {
	model := dummy.New(responseJSON(t, "A - a | P"))
	demo := signature.Example{
		Inputs:  map[string]string{"profile_context": "ctx", "request": "demo request"},
		Outputs: map[string]string{"response": "1. Demo - shown | P"},
	}
	g := newGenerator(model, &recordingObserver{}, WithDemos(demo))

	g.Generate(context.Background(), &Profile{}, "Grow", "")
	assert.Contains(t, model.Prompts()[0], "demo request")
}

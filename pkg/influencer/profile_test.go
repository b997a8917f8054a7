package influencer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFixtureProfiles(t *testing.T) {
	fixtures, err := ListFixtures()
	require.NoError(t, err)
	require.Len(t, fixtures, 3)

	for _, fixture := range fixtures {
		t.Run(fixture.Name, func(t *testing.T) {
			profile, err := LoadProfile(fixture.Name)
			require.NoError(t, err)

			assert.True(t, strings.HasPrefix(profile.Handle, "@"))
			assert.NotEmpty(t, profile.CreatorID)
			assert.NotEmpty(t, profile.ContentPillars)
			assert.NotEmpty(t, profile.Backlog)
			for _, pillar := range profile.ContentPillars {
				assert.True(t, IsKnownPillar(pillar), pillar)
			}

			require.NotNil(t, profile.Operations)
			assert.NotNil(t, profile.Operations.EditorPod)
			assert.NotEmpty(t, profile.Operations.Integrations)

			require.NotNil(t, profile.Community)
			assert.GreaterOrEqual(t, profile.Community.PendingReplies, 0)

			for _, exp := range profile.Experiments {
				assert.NotEmpty(t, exp.Name)
				assert.NotEmpty(t, exp.Status)
			}
			for _, asset := range profile.Assets {
				assert.True(t, strings.HasPrefix(asset.URL, "http"), asset.URL)
			}
			assert.Equal(t, profile.CreatorID, profile.Raw["creator_identity"].(map[string]interface{})["creator_id"])
		})
	}
}

func TestBuildDetectsCadenceRisk(t *testing.T) {
	profile, err := LoadProfile("creator_snapshot.json")
	require.NoError(t, err)
	assert.Equal(t, []string{RiskCadenceBelowPlan}, profile.Risks)

	onPlan, err := LoadProfile("creator_snapshot_growth_guild")
	require.NoError(t, err)
	assert.Empty(t, onPlan.Risks)
}

func TestBuildBacklog(t *testing.T) {
	profile, err := NewBuilder().Build(map[string]interface{}{
		"call_notes": []interface{}{
			map[string]interface{}{"date": "2025-01-01", "summary": "kickoff", "action_items": []interface{}{"ship it"}},
			map[string]interface{}{"date": "2025-01-02", "summary": "nothing to do", "action_items": []interface{}{}},
		},
		"content_library": map[string]interface{}{
			"upcoming_ideas": []interface{}{map[string]interface{}{"title": "Idea A", "status": "idea"}},
		},
		"workflows": []interface{}{
			map[string]interface{}{"title": "Edit", "status": "todo", "owner": "Sam", "due_date": "2025-02-01"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []BacklogItem{
		{Type: BacklogCallFollowup, SourceDate: "2025-01-01", Summary: "kickoff", Actions: []string{"ship it"}},
		{Type: BacklogContentIdea, Title: "Idea A", Status: "idea"},
		{Type: BacklogWorkflowTask, Title: "Edit", Status: "todo", Owner: "Sam", DueDate: "2025-02-01"},
	}, profile.Backlog)
}

func TestBuildEmptyInputs(t *testing.T) {
	profile, err := NewBuilder().Build(nil)
	require.NoError(t, err)

	assert.Empty(t, profile.CreatorID)
	assert.Nil(t, profile.Audience)
	assert.Nil(t, profile.Operations)
	assert.Nil(t, profile.Community)
	assert.Nil(t, profile.PublishingCadence)
	assert.Nil(t, profile.Goals.Metrics)
	assert.Empty(t, profile.Backlog)
	assert.Empty(t, profile.Risks)
	assert.NotNil(t, profile.ContentPillars)
}

func TestBuildGoalsAndCommunityDefaults(t *testing.T) {
	profile, err := NewBuilder().BuildFromJSON([]byte(`{
		"creator_identity": {"primary_goal": "Grow", "secondary_goals": ["Launch"]},
		"analytics": {"subscribers": 100, "views_last_28_days": null, "upload_frequency": {"planned_per_week": 1}},
		"community": {"sentiment": "calm"}
	}`))
	require.NoError(t, err)

	assert.Equal(t, "Grow", profile.Goals.Primary)
	assert.Equal(t, []string{"Launch"}, profile.Goals.Secondary)
	assert.Equal(t, map[string]interface{}{"subscribers": float64(100)}, profile.Goals.Metrics)

	require.NotNil(t, profile.PublishingCadence)
	assert.Nil(t, profile.PublishingCadence.ActualLast28Days)
	assert.Empty(t, profile.Risks)

	require.NotNil(t, profile.Community)
	assert.Equal(t, 0, profile.Community.PendingReplies)
	assert.Equal(t, []string{}, profile.Community.Macros)
}

func TestBuildTreatsEmptySectionsAsAbsent(t *testing.T) {
	profile, err := NewBuilder().BuildFromJSON([]byte(`{
		"creator_identity": {"name": "Solo"},
		"analytics": {"upload_frequency": {}},
		"market_research": {"audience": {}},
		"operations": {},
		"community": {}
	}`))
	require.NoError(t, err)

	assert.Nil(t, profile.Audience)
	assert.Nil(t, profile.Operations)
	assert.Nil(t, profile.Community)
	assert.Nil(t, profile.PublishingCadence)

	out := RenderProfileContext(profile)
	assert.NotContains(t, out, "Team:")
	assert.NotContains(t, out, "Community:")

	withOwner, err := NewBuilder().BuildFromJSON([]byte(`{"operations": {"owner": ""}}`))
	require.NoError(t, err)
	assert.NotNil(t, withOwner.Operations, "a section with keys is kept even when its values are blank")
}

func TestBuildRejectsMistypedSections(t *testing.T) {
	_, err := NewBuilder().BuildFromJSON([]byte(`{"creator_identity": "not an object"}`))
	assert.Error(t, err)

	_, err = NewBuilder().BuildFromJSON([]byte(`not json`))
	assert.Error(t, err)
}

func TestListFixtureLabels(t *testing.T) {
	fixtures, err := ListFixtures()
	require.NoError(t, err)

	labels := map[string]string{}
	for _, f := range fixtures {
		labels[f.Name] = f.Label
	}
	assert.Equal(t, "Maya Ortiz (@opsforcreators)", labels["creator_snapshot.json"])
	assert.Equal(t, "Growth Guild (@growthguild)", labels["creator_snapshot_growth_guild.json"])
}

func TestFixtureLabelFallsBackToFileName(t *testing.T) {
	assert.Equal(t, "growth guild (unknown)", fixtureLabel("creator_snapshot_growth_guild.json", map[string]interface{}{}))
	assert.Equal(t, "creator_snapshot (@x)", fixtureLabel("creator_snapshot.json", map[string]interface{}{
		"creator_identity": map[string]interface{}{"handle": "@x"},
	}))
}

func TestLoadUnknownFixture(t *testing.T) {
	_, err := LoadFixture("missing.json")
	assert.ErrorIs(t, err, ErrUnknownFixture)

	_, err = LoadFixture("../profile.go")
	assert.ErrorIs(t, err, ErrUnknownFixture)
}

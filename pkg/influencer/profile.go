// Package influencer turns creator business snapshots into a normalized
// profile and asks a language model for video ideas that fit it.
package influencer

import (
	"encoding/json"
	"fmt"
)

// RiskCadenceBelowPlan is reported when the weekly upload rate over the last
// 28 days is below the planned rate
const RiskCadenceBelowPlan = "Publishing cadence is below plan"

// Backlog item types
const (
	BacklogCallFollowup = "call_followup"
	BacklogContentIdea  = "content_idea"
	BacklogWorkflowTask = "workflow_task"
)

// Goals holds the creator's targets and, when reported, the headline metrics
type Goals struct {
	Primary   string                 `json:"primary"`
	Secondary []string               `json:"secondary"`
	Metrics   map[string]interface{} `json:"metrics,omitempty"`
}

// Audience describes who the channel is for
type Audience struct {
	Persona         string   `json:"persona"`
	PainPoints      []string `json:"pain_points"`
	DesiredOutcomes []string `json:"desired_outcomes"`
}

// Cadence compares planned weekly uploads with actual uploads in the last 28 days
type Cadence struct {
	PlannedPerWeek   *float64 `json:"planned_per_week"`
	ActualLast28Days *float64 `json:"actual_last_28_days"`
}

// BacklogItem is one open piece of work. Which fields are set depends on Type.
type BacklogItem struct {
	Type       string   `json:"type"`
	SourceDate string   `json:"source_date,omitempty"`
	Summary    string   `json:"summary,omitempty"`
	Actions    []string `json:"actions,omitempty"`
	Title      string   `json:"title,omitempty"`
	Status     string   `json:"status,omitempty"`
	DueDate    string   `json:"due_date,omitempty"`
	Owner      string   `json:"owner,omitempty"`
	Notes      string   `json:"notes,omitempty"`
}

// Operations lists the team running the channel
type Operations struct {
	Owner           string   `json:"owner"`
	TalentManager   string   `json:"talent_manager"`
	Strategist      string   `json:"strategist"`
	EditorPod       []string `json:"editor_pod"`
	AdditionalTeam  []string `json:"additional_team"`
	Timezone        string   `json:"timezone"`
	AutomationNotes string   `json:"automation_notes"`
	Integrations    []string `json:"integrations"`
}

// Community summarizes audience engagement
type Community struct {
	Sentiment          string   `json:"sentiment"`
	ResponseSLAHours   *float64 `json:"response_sla_hours"`
	PendingReplies     int      `json:"pending_replies"`
	HighlightedThreads []string `json:"highlighted_threads"`
	Macros             []string `json:"macros"`
	Notes              string   `json:"notes"`
}

// Experiment is a running or planned content test
type Experiment struct {
	Name         string `json:"name"`
	Hypothesis   string `json:"hypothesis"`
	Metric       string `json:"metric"`
	Status       string `json:"status"`
	LatestResult string `json:"latest_result"`
	NextCheckIn  string `json:"next_check_in"`
}

// Asset is a reusable template, deck or other resource
type Asset struct {
	AssetType string `json:"asset_type"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	Notes     string `json:"notes"`
}

// Profile is the normalized view of a managed creator business
type Profile struct {
	CreatorID         string                 `json:"creator_id"`
	Handle            string                 `json:"handle"`
	Name              string                 `json:"name"`
	Description       string                 `json:"description"`
	Niche             string                 `json:"niche"`
	Monetization      string                 `json:"monetization,omitempty"`
	Goals             Goals                  `json:"goals"`
	Audience          *Audience              `json:"audience"`
	ContentPillars    []string               `json:"content_pillars"`
	PublishingCadence *Cadence               `json:"publishing_cadence"`
	Backlog           []BacklogItem          `json:"backlog"`
	Risks             []string               `json:"risks"`
	Operations        *Operations            `json:"operations"`
	Community         *Community             `json:"community"`
	Experiments       []Experiment           `json:"experiments"`
	Assets            []Asset                `json:"assets"`
	Raw               map[string]interface{} `json:"raw"`
}

// snapshot mirrors the raw input document. Optional sections are pointers so
// an absent section and an empty one are told apart.
type snapshot struct {
	CreatorIdentity struct {
		CreatorID      string   `json:"creator_id"`
		Handle         string   `json:"handle"`
		Name           string   `json:"name"`
		Description    string   `json:"description"`
		Niche          string   `json:"niche"`
		Monetization   string   `json:"monetization"`
		PrimaryGoal    string   `json:"primary_goal"`
		SecondaryGoals []string `json:"secondary_goals"`
	} `json:"creator_identity"`
	Analytics struct {
		Subscribers            *float64 `json:"subscribers"`
		ViewsLast28Days        *float64 `json:"views_last_28_days"`
		AvgViewDurationSeconds *float64 `json:"avg_view_duration_seconds"`
		UploadFrequency        *Cadence `json:"upload_frequency"`
	} `json:"analytics"`
	ContentLibrary struct {
		Pillars       []string `json:"pillars"`
		UpcomingIdeas []struct {
			Title  string `json:"title"`
			Status string `json:"status"`
			Notes  string `json:"notes"`
		} `json:"upcoming_ideas"`
	} `json:"content_library"`
	CallNotes []struct {
		Date        string   `json:"date"`
		Summary     string   `json:"summary"`
		ActionItems []string `json:"action_items"`
	} `json:"call_notes"`
	MarketResearch struct {
		Audience *Audience `json:"audience"`
	} `json:"market_research"`
	Operations *Operations `json:"operations"`
	Community  *struct {
		Community
		PendingReplies *int `json:"pending_replies"`
	} `json:"community"`
	Experiments  []Experiment `json:"experiments"`
	AssetLibrary []Asset      `json:"asset_library"`
	Workflows    []struct {
		Title   string `json:"title"`
		Status  string `json:"status"`
		DueDate string `json:"due_date"`
		Owner   string `json:"owner"`
		Notes   string `json:"notes"`
	} `json:"workflows"`
}

// Builder aggregates the raw inputs describing a creator into a Profile
type Builder struct{}

// NewBuilder creates a profile builder
func NewBuilder() *Builder {
	return &Builder{}
}

// BuildFromJSON decodes a snapshot document and builds its profile
func (b *Builder) BuildFromJSON(data []byte) (*Profile, error) {
	var inputs map[string]interface{}
	if err := json.Unmarshal(data, &inputs); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return b.Build(inputs)
}

// Build normalizes inputs into a Profile. Missing sections yield empty values
// rather than errors; only values of the wrong JSON type are rejected.
func (b *Builder) Build(inputs map[string]interface{}) (*Profile, error) {
	if inputs == nil {
		inputs = map[string]interface{}{}
	}
	data, err := json.Marshal(inputs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	// an empty object counts as an absent section
	if emptyObject(inputs, "operations") {
		s.Operations = nil
	}
	if emptyObject(inputs, "community") {
		s.Community = nil
	}
	if emptyObject(inputs, "market_research", "audience") {
		s.MarketResearch.Audience = nil
	}
	if emptyObject(inputs, "analytics", "upload_frequency") {
		s.Analytics.UploadFrequency = nil
	}

	id := s.CreatorIdentity
	profile := &Profile{
		CreatorID:      id.CreatorID,
		Handle:         id.Handle,
		Name:           id.Name,
		Description:    id.Description,
		Niche:          id.Niche,
		Monetization:   id.Monetization,
		Goals:          buildGoals(&s),
		Audience:       buildAudience(s.MarketResearch.Audience),
		ContentPillars: orEmpty(s.ContentLibrary.Pillars),
		Backlog:        buildBacklog(&s),
		Risks:          detectRisks(s.Analytics.UploadFrequency),
		Operations:     buildOperations(s.Operations),
		Experiments:    orEmpty(s.Experiments),
		Assets:         orEmpty(s.AssetLibrary),
		Raw:            inputs,
	}
	if f := s.Analytics.UploadFrequency; f != nil {
		profile.PublishingCadence = &Cadence{PlannedPerWeek: f.PlannedPerWeek, ActualLast28Days: f.ActualLast28Days}
	}
	if c := s.Community; c != nil {
		community := c.Community
		if c.PendingReplies != nil {
			community.PendingReplies = *c.PendingReplies
		}
		community.HighlightedThreads = orEmpty(community.HighlightedThreads)
		community.Macros = orEmpty(community.Macros)
		profile.Community = &community
	}

	return profile, nil
}

func buildGoals(s *snapshot) Goals {
	goals := Goals{
		Primary:   s.CreatorIdentity.PrimaryGoal,
		Secondary: orEmpty(s.CreatorIdentity.SecondaryGoals),
	}

	metrics := map[string]interface{}{}
	for key, value := range map[string]*float64{
		"subscribers":               s.Analytics.Subscribers,
		"views_last_28_days":        s.Analytics.ViewsLast28Days,
		"avg_view_duration_seconds": s.Analytics.AvgViewDurationSeconds,
	} {
		if value != nil {
			metrics[key] = *value
		}
	}
	if len(metrics) > 0 {
		goals.Metrics = metrics
	}
	return goals
}

func buildAudience(raw *Audience) *Audience {
	if raw == nil {
		return nil
	}
	return &Audience{
		Persona:         raw.Persona,
		PainPoints:      orEmpty(raw.PainPoints),
		DesiredOutcomes: orEmpty(raw.DesiredOutcomes),
	}
}

func buildBacklog(s *snapshot) []BacklogItem {
	backlog := []BacklogItem{}

	for _, note := range s.CallNotes {
		if len(note.ActionItems) == 0 {
			continue
		}
		backlog = append(backlog, BacklogItem{
			Type:       BacklogCallFollowup,
			SourceDate: note.Date,
			Summary:    note.Summary,
			Actions:    append([]string(nil), note.ActionItems...),
		})
	}

	for _, idea := range s.ContentLibrary.UpcomingIdeas {
		backlog = append(backlog, BacklogItem{
			Type:   BacklogContentIdea,
			Title:  idea.Title,
			Status: idea.Status,
			Notes:  idea.Notes,
		})
	}

	for _, task := range s.Workflows {
		backlog = append(backlog, BacklogItem{
			Type:    BacklogWorkflowTask,
			Title:   task.Title,
			Status:  task.Status,
			DueDate: task.DueDate,
			Owner:   task.Owner,
			Notes:   task.Notes,
		})
	}

	return backlog
}

func detectRisks(frequency *Cadence) []string {
	risks := []string{}
	if frequency == nil || frequency.PlannedPerWeek == nil || frequency.ActualLast28Days == nil {
		return risks
	}
	actualPerWeek := *frequency.ActualLast28Days / 4
	if actualPerWeek < *frequency.PlannedPerWeek {
		risks = append(risks, RiskCadenceBelowPlan)
	}
	return risks
}

func buildOperations(raw *Operations) *Operations {
	if raw == nil {
		return nil
	}
	ops := *raw
	ops.EditorPod = orEmpty(ops.EditorPod)
	ops.AdditionalTeam = orEmpty(ops.AdditionalTeam)
	ops.Integrations = orEmpty(ops.Integrations)
	return &ops
}

// emptyObject reports whether the value at path is a JSON object with no keys
func emptyObject(inputs map[string]interface{}, path ...string) bool {
	var value interface{} = inputs
	for _, key := range path {
		m, ok := value.(map[string]interface{})
		if !ok {
			return false
		}
		if value, ok = m[key]; !ok {
			return false
		}
	}
	m, ok := value.(map[string]interface{})
	return ok && len(m) == 0
}

func orEmpty[T any](values []T) []T {
	if values == nil {
		return []T{}
	}
	return values
}

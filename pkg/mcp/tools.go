// Package mcp exposes the agents as Model Context Protocol tools.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/run-bigpig/observable-agent/pkg/agent"
	"github.com/run-bigpig/observable-agent/pkg/guardrails"
	"github.com/run-bigpig/observable-agent/pkg/influencer"
	"github.com/run-bigpig/observable-agent/pkg/logging"
	"github.com/run-bigpig/observable-agent/pkg/routing"
)

// ErrNotConfigured is returned by a tool whose agent was not provided
var ErrNotConfigured = errors.New("agent not configured")

// RouteArgs are the arguments of route_request
type RouteArgs struct {
	Request string `json:"request" jsonschema:"required,description=Support request text to route"`
}

// TriageArgs are the arguments of triage_ticket
type TriageArgs struct {
	Ticket string `json:"ticket" jsonschema:"required,description=Support ticket text to triage"`
}

// IdeasArgs are the arguments of video_ideas
type IdeasArgs struct {
	Fixture string `json:"fixture,omitempty" jsonschema:"description=Bundled creator snapshot (defaults to creator_snapshot.json)"`
	Request string `json:"request,omitempty" jsonschema:"description=What the ideas should achieve"`
	Count   int    `json:"count,omitempty" jsonschema:"description=Number of ideas to return (2-5)"`
}

// ValidateFilenameArgs are the arguments of validate_filename
type ValidateFilenameArgs struct {
	Filename string   `json:"filename" jsonschema:"required,description=Relative path to check"`
	Patterns []string `json:"patterns" jsonschema:"required,description=Allowed glob patterns"`
}

// FilenameVerdict is the result of validate_filename
type FilenameVerdict struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// Tools holds the agents behind each tool. A nil agent makes its tool fail
// with ErrNotConfigured.
type Tools struct {
	Router    *routing.Router
	Triage    *routing.Router
	IdeaAgent *agent.BaseAgent
	Logger    logging.Logger
}

func (t *Tools) logger() logging.Logger {
	if t.Logger == nil {
		return logging.NewNop()
	}
	return t.Logger
}

// RouteRequest routes a support request
func (t *Tools) RouteRequest(ctx context.Context, args RouteArgs) (routing.Result, error) {
	return route(ctx, t.Router, "request", args.Request)
}

// TriageTicket routes a support ticket neutrally
func (t *Tools) TriageTicket(ctx context.Context, args TriageArgs) (routing.Result, error) {
	return route(ctx, t.Triage, "ticket", args.Ticket)
}

func route(ctx context.Context, r *routing.Router, field, text string) (routing.Result, error) {
	if r == nil {
		return routing.Result{}, ErrNotConfigured
	}
	if strings.TrimSpace(text) == "" {
		return routing.Result{}, fmt.Errorf("%s is required", field)
	}
	return r.Route(ctx, text)
}

// VideoIdeas generates ideas for a bundled creator snapshot
func (t *Tools) VideoIdeas(ctx context.Context, args IdeasArgs) (influencer.IdeaResult, error) {
	if t.IdeaAgent == nil {
		return influencer.IdeaResult{}, ErrNotConfigured
	}
	fixture := args.Fixture
	if fixture == "" {
		fixture = "creator_snapshot.json"
	}
	count := args.Count
	if count == 0 {
		count = influencer.DefaultTargetCount
	}
	if count < 2 || count > 5 {
		return influencer.IdeaResult{}, fmt.Errorf("count must be between 2 and 5, got %d", count)
	}

	profile, err := influencer.LoadProfile(fixture)
	if err != nil {
		return influencer.IdeaResult{}, err
	}
	generator := influencer.NewIdeaGenerator(t.IdeaAgent, influencer.WithTargetCount(count))
	result := generator.Generate(ctx, profile, args.Request, "")
	t.logger().Debug(ctx, "Generated video ideas", map[string]interface{}{
		"fixture":         fixture,
		"count":           len(result.Ideas),
		"fallback_reason": result.FallbackReason,
	})
	return result, nil
}

// ValidateFilename checks a filename against an allow-list of glob patterns
func (t *Tools) ValidateFilename(ctx context.Context, args ValidateFilenameArgs) (FilenameVerdict, error) {
	checks := []guardrails.Guardrail{
		guardrails.NewNonEmpty("Filename"),
		guardrails.NewFileRestriction(args.Patterns),
	}
	for _, g := range checks {
		if err := guardrails.Validate(ctx, g, args.Filename); err != nil {
			var violation *guardrails.ViolationError
			if errors.As(err, &violation) {
				return FilenameVerdict{Valid: false, Reason: violation.Message}, nil
			}
			return FilenameVerdict{}, err
		}
	}
	return FilenameVerdict{Valid: true}, nil
}

// Package routing sends support requests to the billing, tech or sales queue.
package routing

import (
	"context"
	"fmt"

	"github.com/run-bigpig/observable-agent/pkg/agent"
	"github.com/run-bigpig/observable-agent/pkg/guardrails"
	"github.com/run-bigpig/observable-agent/pkg/interfaces"
	"github.com/run-bigpig/observable-agent/pkg/llm"
	"github.com/run-bigpig/observable-agent/pkg/signature"
)

const (
	// RoutingObservation is the trace name of the routing agent
	RoutingObservation = "routing-agent"
	// TriageObservation is the trace name of the triage agent
	TriageObservation = "triage-agent"

	// Fallback reasons recorded in trace metadata
	FallbackNoLM         = "no_lm"
	FallbackInvalidRoute = "invalid_route"
	FallbackLMError      = "lm_error"

	noLMExplanation         = "Policy fallback used because no LM is configured."
	invalidRouteExplanation = "Policy fallback applied because LM returned an unsupported route."
	lmErrorExplanation      = "Policy fallback applied because the LM call failed."
)

var routeSignature = signature.Signature{
	Name:         "RouteRequest",
	Instructions: "Route an incoming request to one of: {billing, tech, sales}.",
	Inputs:       []signature.Field{{Name: "request", Description: "User-submitted request text"}},
	Outputs: []signature.Field{
		{Name: "route", Description: "One of {billing, tech, sales}"},
		{Name: "rationale", Description: "Very short reasoning for the decision"},
	},
}.WithReasoning()

var triageSignature = signature.Signature{
	Name:         "Triage",
	Instructions: "Route an incoming ticket neutrally to one of: {billing, tech, sales}.",
	Inputs:       []signature.Field{{Name: "ticket", Description: "User-submitted support ticket text"}},
	Outputs: []signature.Field{
		{Name: "route", Description: "One of {billing, tech, sales}"},
		{Name: "rationale", Description: "Very short reasoning for the decision"},
	},
}.WithReasoning()

// Result is a routing decision
type Result struct {
	Route       string `json:"route"`
	Explanation string `json:"explanation"`
	// FallbackReason is empty when the model's answer was used
	FallbackReason string `json:"-"`
}

// Router answers with the model's route when it is valid and with
// NeutralPolicy otherwise, so a request is always routed.
type Router struct {
	*agent.BaseAgent

	sig        signature.Signature
	inputField string
	routes     *guardrails.Enum
	guardrails interfaces.Guardrails
	demos      []signature.Example
}

// Option configures a Router
type Option func(*Router)

// WithGuardrails applies input guardrails before the model sees the text
func WithGuardrails(g interfaces.Guardrails) Option {
	return func(r *Router) {
		r.guardrails = g
	}
}

// WithDemos adds few-shot demonstrations to the routing prompt
func WithDemos(demos ...signature.Example) Option {
	return func(r *Router) {
		r.demos = demos
	}
}

// NewRoutingAgent creates the request router traced as "routing-agent"
func NewRoutingAgent(base *agent.BaseAgent, options ...Option) *Router {
	return newRouter(base, routeSignature, "request", options...)
}

// NewTriageAgent creates the ticket router traced as "triage-agent"
func NewTriageAgent(base *agent.BaseAgent, options ...Option) *Router {
	return newRouter(base, triageSignature, "ticket", options...)
}

func newRouter(base *agent.BaseAgent, sig signature.Signature, inputField string, options ...Option) *Router {
	r := &Router{
		BaseAgent:  base,
		sig:        sig,
		inputField: inputField,
		routes:     guardrails.NewEnum("Route", AllowedRoutes...),
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// DefaultGuardrails redacts PII and caps request length
func DefaultGuardrails(base *agent.BaseAgent) interfaces.Guardrails {
	return guardrails.NewPipeline([]guardrails.Guardrail{
		guardrails.NewPiiFilter(guardrails.RedactAction),
		guardrails.NewTokenLimit(2000, nil, guardrails.RedactAction, guardrails.KeepHead),
	}, base.Logger())
}

// Route decides where text should go. An error is returned only when an
// input guardrail blocks the text.
func (r *Router) Route(ctx context.Context, text string) (Result, error) {
	if r.guardrails != nil {
		processed, err := r.guardrails.ProcessInput(ctx, text)
		if err != nil {
			return Result{}, fmt.Errorf("request rejected: %w", err)
		}
		text = processed
	}

	if !r.HasLLM() {
		return Result{
			Route:          NeutralPolicy(text),
			Explanation:    noLMExplanation,
			FallbackReason: FallbackNoLM,
		}, nil
	}

	var options []interfaces.GenerateOption
	if prompt := r.SystemPrompt(); prompt != "" {
		options = append(options, llm.WithSystemMessage(prompt))
	}
	predictor := signature.NewPredictor(r.sig, r.LLM(),
		signature.WithDemos(r.demos...),
		signature.WithGenerateOptions(options...),
	)

	var result Result
	prediction, err := predictor.Predict(ctx, map[string]string{r.inputField: text})
	if err != nil {
		r.Logger().Warn(ctx, "LM call failed; applying neutral policy", map[string]interface{}{"error": err.Error()})
		result = Result{
			Route:          NeutralPolicy(text),
			Explanation:    lmErrorExplanation,
			FallbackReason: FallbackLMError,
		}
	} else {
		raw := prediction.Get("route")
		result = Result{
			Route:       r.routes.Normalize(raw),
			Explanation: prediction.Get("rationale"),
		}
		if result.Route == "" {
			r.Logger().Warn(ctx, fmt.Sprintf("Invalid route '%s' returned by LM; applying neutral policy", raw), nil)
			result = Result{
				Route:          NeutralPolicy(text),
				Explanation:    invalidRouteExplanation,
				FallbackReason: FallbackInvalidRoute,
			}
		}
	}

	var metadata map[string]interface{}
	if result.FallbackReason != "" {
		metadata = map[string]interface{}{"fallback_reason": result.FallbackReason}
	}
	r.LogGeneration(ctx, text, map[string]interface{}{
		"route":       result.Route,
		"explanation": result.Explanation,
	}, metadata)

	return result, nil
}

// Package coding generates new source files with a language model, checks
// them against an allow-list and runs the repository's checks on the result.
package coding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/run-bigpig/observable-agent/pkg/agent"
	"github.com/run-bigpig/observable-agent/pkg/guardrails"
	"github.com/run-bigpig/observable-agent/pkg/interfaces"
	"github.com/run-bigpig/observable-agent/pkg/llm"
	"github.com/run-bigpig/observable-agent/pkg/signature"
)

// Observation is the trace name of the coding agent
const Observation = "code-agent-generate"

// ErrNoLM is returned when the agent is asked to generate without a model
var ErrNoLM = errors.New("no LM configured")

// RiskLevels are the accepted values of Patch.RiskLevel
var RiskLevels = []string{"low", "medium", "high"}

var codePatchSignature = signature.Signature{
	Name:         "CodePatch",
	Instructions: "Generate a new code file for a given engineering task.",
	Inputs: []signature.Field{
		{Name: "task", Description: "Engineering task description"},
		{Name: "repo_state", Description: "Current repository state (files + diff)"},
		{Name: "allowed_patterns", Description: "Glob patterns for allowed files"},
	},
	Outputs: []signature.Field{
		{Name: "filename", Description: "Name of the file to create (e.g., 'utils.py' or 'src/helpers.py'). Must be a relative path from repository root."},
		{Name: "content", Description: "Complete contents of the new file. Include all necessary imports, docstrings, and implementation. IMPORTANT: Output ONLY the raw file content, NO markdown formatting, NO code fences (```), NO extra backticks - just the actual Python code."},
		{Name: "explanation", Description: "What the file does and why it's needed"},
		{Name: "risk_level", Description: "Risk assessment: low, medium, or high"},
	},
}.WithReasoning()

// Patch is a generated file that passed every output check
type Patch struct {
	Filename    string
	Content     string
	Explanation string
	RiskLevel   string
	Reasoning   string
}

// Generator produces a Patch for a task. CodeAgent is the production
// implementation; the harness only depends on this interface.
type Generator interface {
	Generate(ctx context.Context, task, repoState string, allowedPatterns []string) (*Patch, error)
}

// CodeAgent asks the model for one new file and rejects answers that name a
// file outside the allow-list, carry an unknown risk level or are empty.
type CodeAgent struct {
	*agent.BaseAgent
}

var _ Generator = (*CodeAgent)(nil)

// NewCodeAgent wraps a base agent, normally created as agent.New(Observation, ...)
func NewCodeAgent(base *agent.BaseAgent) *CodeAgent {
	return &CodeAgent{BaseAgent: base}
}

// Generate implements Generator
func (a *CodeAgent) Generate(ctx context.Context, task, repoState string, allowedPatterns []string) (*Patch, error) {
	if !a.HasLLM() {
		return nil, ErrNoLM
	}

	patterns := strings.Join(allowedPatterns, "\n")

	var options []interfaces.GenerateOption
	if prompt := a.SystemPrompt(); prompt != "" {
		options = append(options, llm.WithSystemMessage(prompt))
	}
	predictor := signature.NewPredictor(codePatchSignature, a.LLM(), signature.WithGenerateOptions(options...))

	prediction, err := predictor.Predict(ctx, map[string]string{
		"task":             task,
		"repo_state":       repoState,
		"allowed_patterns": patterns,
	})
	if err != nil {
		return nil, err
	}

	patch := &Patch{
		Filename:    prediction.Get("filename"),
		Content:     prediction["content"],
		Explanation: prediction.Get("explanation"),
		RiskLevel:   prediction.Get("risk_level"),
		Reasoning:   prediction.Get(signature.ReasoningField),
	}

	checks := []struct {
		guardrail guardrails.Guardrail
		value     string
	}{
		{guardrails.NewNonEmpty("Filename"), patch.Filename},
		{guardrails.NewFileRestriction(allowedPatterns), patch.Filename},
		{guardrails.NewEnum("Risk level", RiskLevels...), patch.RiskLevel},
		{guardrails.NewNonEmpty("File content"), patch.Content},
	}
	for _, check := range checks {
		if err := guardrails.Validate(ctx, check.guardrail, check.value); err != nil {
			a.Logger().Warn(ctx, "Generated file rejected", map[string]interface{}{
				"guardrail": string(check.guardrail.Type()),
				"error":     err.Error(),
			})
			return nil, err
		}
	}

	a.LogGeneration(ctx, map[string]interface{}{
		"task":             task,
		"allowed_patterns": patterns,
	}, map[string]interface{}{
		"filename":       patch.Filename,
		"content_length": len(patch.Content),
		"explanation":    patch.Explanation,
		"risk_level":     patch.RiskLevel,
	}, nil)

	return patch, nil
}

// describe is used in dry-run and log output
func (p *Patch) describe() string {
	return fmt.Sprintf("Filename: %s\nExplanation: %s\nRisk: %s", p.Filename, p.Explanation, p.RiskLevel)
}

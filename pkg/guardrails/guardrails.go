package guardrails

import (
	"context"
	"errors"
	"fmt"

	"github.com/run-bigpig/observable-agent/pkg/interfaces"
	"github.com/run-bigpig/observable-agent/pkg/logging"
)

// ErrBlocked is wrapped by every ViolationError
var ErrBlocked = errors.New("blocked by guardrail")

// GuardrailType identifies a guardrail implementation
type GuardrailType string

const (
	ContentFilterGuardrail   GuardrailType = "content_filter"
	TokenLimitGuardrail      GuardrailType = "token_limit"
	PiiFilterGuardrail       GuardrailType = "pii_filter"
	FileRestrictionGuardrail GuardrailType = "file_restriction"
	NonEmptyGuardrail        GuardrailType = "non_empty"
	EnumGuardrail            GuardrailType = "enum"
)

// Action is what a pipeline does when a guardrail triggers
type Action string

const (
	// BlockAction stops processing with a ViolationError
	BlockAction Action = "block"
	// RedactAction replaces the value with the guardrail's modified text
	RedactAction Action = "redact"
	// LogAction records the violation and lets the original value through
	LogAction Action = "log"
)

// Guardrail checks a value on the way into or out of a model
type Guardrail interface {
	// Type returns the type of guardrail
	Type() GuardrailType

	// CheckRequest checks a value before it reaches the model
	CheckRequest(ctx context.Context, request string) (bool, string, error)

	// CheckResponse checks a value the model produced
	CheckResponse(ctx context.Context, response string) (bool, string, error)

	// Action returns the action to take when the guardrail is triggered
	Action() Action
}

// describer is implemented by guardrails that explain their own violations
type describer interface {
	Describe(value string) string
}

// ViolationError reports a value rejected by a blocking guardrail
type ViolationError struct {
	Guardrail GuardrailType
	Message   string
}

func (e *ViolationError) Error() string {
	return e.Message
}

// Unwrap makes errors.Is(err, ErrBlocked) hold for violations
func (e *ViolationError) Unwrap() error {
	return ErrBlocked
}

func violation(g Guardrail, value string) *ViolationError {
	message := fmt.Sprintf("%s guardrail rejected the value", g.Type())
	if d, ok := g.(describer); ok {
		message = d.Describe(value)
	}
	return &ViolationError{Guardrail: g.Type(), Message: message}
}

// Validate runs a single guardrail over a model output and returns a
// ViolationError when it triggers, regardless of its configured action.
func Validate(ctx context.Context, g Guardrail, value string) error {
	triggered, _, err := g.CheckResponse(ctx, value)
	if err != nil {
		return fmt.Errorf("guardrail %s failed: %w", g.Type(), err)
	}
	if triggered {
		return violation(g, value)
	}
	return nil
}

// Pipeline applies guardrails in order
type Pipeline struct {
	guardrails []Guardrail
	logger     logging.Logger
}

var _ interfaces.Guardrails = (*Pipeline)(nil)

// NewPipeline creates a new guardrails pipeline
func NewPipeline(guardrails []Guardrail, logger logging.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{
		guardrails: guardrails,
		logger:     logger,
	}
}

// ProcessInput processes user input before sending to the LLM
func (p *Pipeline) ProcessInput(ctx context.Context, input string) (string, error) {
	return p.process(ctx, "input", input, Guardrail.CheckRequest)
}

// ProcessOutput processes LLM output before returning to the user
func (p *Pipeline) ProcessOutput(ctx context.Context, output string) (string, error) {
	return p.process(ctx, "output", output, Guardrail.CheckResponse)
}

func (p *Pipeline) process(ctx context.Context, stage, value string, check func(Guardrail, context.Context, string) (bool, string, error)) (string, error) {
	current := value
	for _, g := range p.guardrails {
		triggered, modified, err := check(g, ctx, current)
		if err != nil {
			return "", fmt.Errorf("guardrail %s failed: %w", g.Type(), err)
		}
		if !triggered {
			continue
		}

		p.logger.Warn(ctx, "Guardrail triggered", map[string]interface{}{
			"guardrail": string(g.Type()),
			"action":    string(g.Action()),
			"stage":     stage,
		})

		switch g.Action() {
		case BlockAction:
			return "", violation(g, current)
		case RedactAction:
			current = modified
		}
	}
	return current, nil
}

package guardrails

import (
	"context"
	"strings"
)

// NonEmpty rejects blank values
type NonEmpty struct {
	label string
}

// NewNonEmpty creates a guardrail whose violation reads "<label> cannot be empty"
func NewNonEmpty(label string) *NonEmpty {
	return &NonEmpty{label: label}
}

func (n *NonEmpty) Type() GuardrailType { return NonEmptyGuardrail }

func (n *NonEmpty) CheckRequest(ctx context.Context, request string) (bool, string, error) {
	return strings.TrimSpace(request) == "", request, nil
}

func (n *NonEmpty) CheckResponse(ctx context.Context, response string) (bool, string, error) {
	return strings.TrimSpace(response) == "", response, nil
}

func (n *NonEmpty) Action() Action { return BlockAction }

func (n *NonEmpty) Describe(string) string {
	return n.label + " cannot be empty"
}

// Enum rejects values outside a fixed set. Comparison ignores case and
// surrounding whitespace.
type Enum struct {
	label   string
	allowed []string
}

// NewEnum creates an enum membership guardrail
func NewEnum(label string, allowed ...string) *Enum {
	return &Enum{label: label, allowed: allowed}
}

func (e *Enum) Type() GuardrailType { return EnumGuardrail }

func (e *Enum) CheckRequest(ctx context.Context, request string) (bool, string, error) {
	return false, request, nil
}

func (e *Enum) CheckResponse(ctx context.Context, response string) (bool, string, error) {
	return !e.Contains(response), response, nil
}

func (e *Enum) Action() Action { return BlockAction }

func (e *Enum) Describe(value string) string {
	return e.label + " must be " + strings.Join(e.allowed, "/") + ", got: " + value
}

// Contains reports whether value is one of the allowed values
func (e *Enum) Contains(value string) bool {
	return e.Normalize(value) != ""
}

// Normalize returns the canonical allowed value for value, or "" when none matches
func (e *Enum) Normalize(value string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	for _, a := range e.allowed {
		if strings.ToLower(a) == v {
			return a
		}
	}
	return ""
}

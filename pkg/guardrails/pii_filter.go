package guardrails

import (
	"context"
	"regexp"
)

type piiPattern struct {
	name  string
	regex *regexp.Regexp
}

// PiiFilter redacts personally identifiable information from text
type PiiFilter struct {
	patterns []piiPattern
	action   Action
}

// NewPiiFilter creates a new PII filter guardrail. Patterns run in a fixed
// order so that overlapping matches redact the same way every time.
func NewPiiFilter(action Action) *PiiFilter {
	return &PiiFilter{
		patterns: []piiPattern{
			{"email", regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
			{"credit_card", regexp.MustCompile(`\b\d{4}[- ]?\d{4}[- ]?\d{4}[- ]?\d{4}\b`)},
			{"ssn", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
			{"phone", regexp.MustCompile(`\b(\+\d{1,2}\s)?\(?\d{3}\)?[\s.-]?\d{3}[\s.-]?\d{4}\b`)},
			{"ip_address", regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)},
		},
		action: action,
	}
}

// Type returns the type of guardrail
func (p *PiiFilter) Type() GuardrailType {
	return PiiFilterGuardrail
}

// CheckRequest redacts PII in a request
func (p *PiiFilter) CheckRequest(ctx context.Context, request string) (bool, string, error) {
	triggered, modified := p.redact(request)
	return triggered, modified, nil
}

// CheckResponse redacts PII in a response
func (p *PiiFilter) CheckResponse(ctx context.Context, response string) (bool, string, error) {
	triggered, modified := p.redact(response)
	return triggered, modified, nil
}

// Action returns the action to take when the guardrail is triggered
func (p *PiiFilter) Action() Action {
	return p.action
}

// Describe explains a blocked value
func (p *PiiFilter) Describe(string) string {
	return "Text contains personally identifiable information"
}

func (p *PiiFilter) redact(text string) (bool, string) {
	triggered := false
	for _, pattern := range p.patterns {
		if pattern.regex.MatchString(text) {
			triggered = true
			text = pattern.regex.ReplaceAllString(text, "[REDACTED "+pattern.name+"]")
		}
	}
	return triggered, text
}

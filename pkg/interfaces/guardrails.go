package interfaces

import "context"

// Guardrails screen the text on both sides of a model call. The router runs
// ProcessInput to redact customer details and cap request length before the
// prompt leaves the process.
type Guardrails interface {
	ProcessInput(ctx context.Context, input string) (string, error)
	ProcessOutput(ctx context.Context, output string) (string, error)
}

package guardrails

import (
	"context"
	"fmt"
	"strings"
)

// TokenCounter measures text in model tokens
type TokenCounter interface {
	CountTokens(text string) (int, error)
}

// WordCounter treats every whitespace separated word as one token. Support
// requests are short prose, where this undercounts by roughly a third.
type WordCounter struct{}

func (WordCounter) CountTokens(text string) (int, error) {
	return len(strings.Fields(text)), nil
}

// TruncateMode picks which words survive when a text is cut down
type TruncateMode string

const (
	KeepHead  TruncateMode = "end"    // drop the tail
	KeepTail  TruncateMode = "start"  // drop the head
	KeepEdges TruncateMode = "middle" // drop the middle
)

// TokenLimit cuts requests and replies that are longer than maxTokens
type TokenLimit struct {
	maxTokens int
	counter   TokenCounter
	action    Action
	mode      TruncateMode
}

// NewTokenLimit returns a TokenLimit; a nil counter means WordCounter and an
// empty mode means KeepHead
func NewTokenLimit(maxTokens int, counter TokenCounter, action Action, mode TruncateMode) *TokenLimit {
	if counter == nil {
		counter = WordCounter{}
	}
	if mode == "" {
		mode = KeepHead
	}
	return &TokenLimit{maxTokens: maxTokens, counter: counter, action: action, mode: mode}
}

func (t *TokenLimit) Type() GuardrailType { return TokenLimitGuardrail }

func (t *TokenLimit) Action() Action { return t.action }

func (t *TokenLimit) CheckRequest(_ context.Context, request string) (bool, string, error) {
	return t.check(request)
}

func (t *TokenLimit) CheckResponse(_ context.Context, response string) (bool, string, error) {
	return t.check(response)
}

// Describe explains a blocked value
func (t *TokenLimit) Describe(value string) string {
	n, _ := t.counter.CountTokens(value)
	return fmt.Sprintf("Text exceeds token limit: %d > %d", n, t.maxTokens)
}

func (t *TokenLimit) check(text string) (bool, string, error) {
	n, err := t.counter.CountTokens(text)
	if err != nil {
		return false, text, fmt.Errorf("failed to count tokens: %w", err)
	}
	if n <= t.maxTokens {
		return false, text, nil
	}
	return true, t.cut(text), nil
}

func (t *TokenLimit) cut(text string) string {
	words := strings.Fields(text)
	if len(words) <= t.maxTokens {
		return text
	}
	switch t.mode {
	case KeepTail:
		return strings.Join(words[len(words)-t.maxTokens:], " ")
	case KeepEdges:
		half := t.maxTokens / 2
		return strings.Join(words[:half], " ") + " ... " + strings.Join(words[len(words)-half:], " ")
	default:
		return strings.Join(words[:t.maxTokens], " ") + " ..."
	}
}

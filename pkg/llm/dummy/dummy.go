// Package dummy provides a scripted LLM for tests and offline demos.
package dummy

import (
	"context"
	"sync"

	"github.com/run-bigpig/observable-agent/pkg/interfaces"
)

// LLM replays queued responses in order. Once the queue is down to its last
// entry that entry is repeated.
type LLM struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	prompts   []string
	options   []*interfaces.GenerateOptions
}

// New creates an LLM that answers with the given responses
func New(responses ...string) *LLM {
	return &LLM{responses: responses}
}

// WithErrors queues errors returned before any response is served
func (l *LLM) WithErrors(errs ...error) *LLM {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = append(l.errs, errs...)
	return l
}

// Generate implements interfaces.LLM
func (l *LLM) Generate(ctx context.Context, prompt string, options ...interfaces.GenerateOption) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.prompts = append(l.prompts, prompt)
	l.options = append(l.options, interfaces.NewGenerateOptions(options...))

	if len(l.errs) > 0 {
		err := l.errs[0]
		l.errs = l.errs[1:]
		return "", err
	}
	if len(l.responses) == 0 {
		return "", nil
	}
	resp := l.responses[0]
	if len(l.responses) > 1 {
		l.responses = l.responses[1:]
	}
	return resp, nil
}

// Name implements interfaces.LLM
func (l *LLM) Name() string {
	return "dummy"
}

// Prompts returns every prompt received so far
func (l *LLM) Prompts() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.prompts...)
}

// LastOptions returns the options of the most recent call, or nil
func (l *LLM) LastOptions() *interfaces.GenerateOptions {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.options) == 0 {
		return nil
	}
	return l.options[len(l.options)-1]
}

// Calls returns the number of Generate calls
func (l *LLM) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.prompts)
}

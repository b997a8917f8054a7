package signature

import (
	"context"
	"fmt"

	"github.com/run-bigpig/observable-agent/pkg/interfaces"
	"github.com/run-bigpig/observable-agent/pkg/llm"
)

// Predictor calls a model with a signature's prompt and parses the reply
type Predictor struct {
	sig     Signature
	llm     interfaces.LLM
	demos   []Example
	options []interfaces.GenerateOption
}

// PredictorOption configures a Predictor
type PredictorOption func(*Predictor)

// WithDemos sets the few-shot demonstrations
func WithDemos(demos ...Example) PredictorOption {
	return func(p *Predictor) {
		p.demos = append([]Example(nil), demos...)
	}
}

// WithGenerateOptions adds options passed on every call
func WithGenerateOptions(options ...interfaces.GenerateOption) PredictorOption {
	return func(p *Predictor) {
		p.options = append(p.options, options...)
	}
}

// NewPredictor creates a predictor for sig backed by model
func NewPredictor(sig Signature, model interfaces.LLM, options ...PredictorOption) *Predictor {
	p := &Predictor{sig: sig, llm: model}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// Signature returns the predictor's signature
func (p *Predictor) Signature() Signature {
	return p.sig
}

// Demos returns the few-shot demonstrations in use
func (p *Predictor) Demos() []Example {
	return append([]Example(nil), p.demos...)
}

// Predict renders the prompt, calls the model and parses its reply
func (p *Predictor) Predict(ctx context.Context, inputs map[string]string) (Prediction, error) {
	prompt, err := p.sig.Prompt(inputs, p.demos)
	if err != nil {
		return nil, err
	}

	options := append([]interfaces.GenerateOption{llm.WithResponseFormat(*p.sig.ResponseFormat())}, p.options...)
	raw, err := p.llm.Generate(ctx, prompt, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to generate %s: %w", p.sig.Name, err)
	}

	prediction, err := p.sig.Parse(raw)
	if err != nil {
		return nil, err
	}
	for _, f := range p.sig.Outputs {
		if _, ok := prediction[f.Name]; !ok {
			prediction[f.Name] = ""
		}
	}
	return prediction, nil
}

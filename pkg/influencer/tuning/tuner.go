package tuning

import (
	"context"
	"errors"
	"math/rand"

	"github.com/run-bigpig/observable-agent/pkg/influencer"
	"github.com/run-bigpig/observable-agent/pkg/interfaces"
	"github.com/run-bigpig/observable-agent/pkg/logging"
	"github.com/run-bigpig/observable-agent/pkg/signature"
)

// ErrNoLM is returned when tuning is started without a language model
var ErrNoLM = errors.New("no LM configured")

// ErrNoExamples is returned for an empty training set
var ErrNoExamples = errors.New("training set is empty")

const (
	// DefaultNumCandidates is the number of random demo subsets tried
	DefaultNumCandidates = 4
	// DefaultMaxDemos caps the demos in any candidate
	DefaultMaxDemos = 4
)

// Evaluation is one example scored against one prediction
type Evaluation struct {
	Example    signature.Example
	Prediction signature.Prediction
	Score      float64
}

// Lines renders the prediction as idea lines
func (e Evaluation) Lines() []string {
	return LinesFromFields(e.Prediction)
}

// Candidate is a demo set and its mean held-out score
type Candidate struct {
	Demos       []signature.Example
	Score       float64
	Evaluations []Evaluation
}

// Result is the outcome of a tuning run
type Result struct {
	Model      string
	Baseline   []Evaluation
	Candidates []Candidate
	Best       int
}

// Tuned returns the winning candidate
func (r *Result) Tuned() Candidate {
	return r.Candidates[r.Best]
}

// BaselineScore is the mean zero-shot score
func (r *Result) BaselineScore() float64 {
	return mean(r.Baseline)
}

// Tuner runs a random search over few-shot demo subsets drawn from the
// training set
type Tuner struct {
	llm           interfaces.LLM
	metric        Metric
	numCandidates int
	maxDemos      int
	rng           *rand.Rand
	logger        logging.Logger
}

// Option configures a Tuner
type Option func(*Tuner)

// WithMetric sets the scoring metric; the default is SimilarityMetric
func WithMetric(metric Metric) Option {
	return func(t *Tuner) {
		if metric != nil {
			t.metric = metric
		}
	}
}

// WithNumCandidates sets how many random demo subsets are tried in addition
// to the zero-shot and first-k candidates
func WithNumCandidates(n int) Option {
	return func(t *Tuner) {
		if n >= 0 {
			t.numCandidates = n
		}
	}
}

// WithMaxDemos caps the demos per candidate
func WithMaxDemos(n int) Option {
	return func(t *Tuner) {
		if n > 0 {
			t.maxDemos = n
		}
	}
}

// WithSeed makes candidate sampling reproducible
func WithSeed(seed int64) Option {
	return func(t *Tuner) {
		t.rng = rand.New(rand.NewSource(seed)) // #nosec G404 - sampling, not security
	}
}

// WithLogger sets the logger
func WithLogger(logger logging.Logger) Option {
	return func(t *Tuner) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewTuner creates a tuner for the structured idea signature
func NewTuner(llm interfaces.LLM, options ...Option) *Tuner {
	t := &Tuner{
		llm:           llm,
		metric:        SimilarityMetric,
		numCandidates: DefaultNumCandidates,
		maxDemos:      DefaultMaxDemos,
		rng:           rand.New(rand.NewSource(0)), // #nosec G404 - sampling, not security
		logger:        logging.NewNop(),
	}
	for _, opt := range options {
		opt(t)
	}
	return t
}

// Run scores the zero-shot predictor, then every candidate demo set, and
// picks the candidate with the highest mean score. Ties keep the earlier
// candidate, so the zero-shot predictor wins unless demos actually help.
// An example is never shown as a demo while it is being scored.
func (t *Tuner) Run(ctx context.Context, trainset []signature.Example) (*Result, error) {
	if t.llm == nil {
		return nil, ErrNoLM
	}
	if len(trainset) == 0 {
		return nil, ErrNoExamples
	}

	result := &Result{Model: t.llm.Name()}
	result.Baseline = t.evaluate(ctx, trainset, nil)
	t.logger.Info(ctx, "Baseline scored", map[string]interface{}{"score": result.BaselineScore()})

	for i, demos := range t.candidateSets(trainset) {
		evaluations := t.evaluate(ctx, trainset, demos)
		candidate := Candidate{Demos: demos, Score: mean(evaluations), Evaluations: evaluations}
		result.Candidates = append(result.Candidates, candidate)

		t.logger.Info(ctx, "Candidate scored", map[string]interface{}{
			"candidate": i,
			"demos":     len(demos),
			"score":     candidate.Score,
		})
		if candidate.Score > result.Candidates[result.Best].Score {
			result.Best = i
		}
	}

	return result, nil
}

// candidateSets returns the zero-shot set, the first k labeled examples and
// numCandidates random subsets of size 1..k
func (t *Tuner) candidateSets(trainset []signature.Example) [][]signature.Example {
	k := min(t.maxDemos, len(trainset))
	sets := [][]signature.Example{nil, append([]signature.Example(nil), trainset[:k]...)}

	for i := 0; i < t.numCandidates; i++ {
		size := 1 + t.rng.Intn(k)
		perm := t.rng.Perm(len(trainset))
		subset := make([]signature.Example, 0, size)
		for _, idx := range perm[:size] {
			subset = append(subset, trainset[idx])
		}
		sets = append(sets, subset)
	}
	return sets
}

func (t *Tuner) evaluate(ctx context.Context, trainset []signature.Example, demos []signature.Example) []Evaluation {
	evaluations := make([]Evaluation, 0, len(trainset))
	for _, example := range trainset {
		prediction := t.predict(ctx, example, heldOut(demos, example))
		evaluations = append(evaluations, Evaluation{
			Example:    example,
			Prediction: prediction,
			Score:      t.metric(ctx, example.Outputs, prediction),
		})
	}
	return evaluations
}

// predict never fails; a failed call scores as an empty prediction
func (t *Tuner) predict(ctx context.Context, example signature.Example, demos []signature.Example) signature.Prediction {
	predictor := signature.NewPredictor(influencer.StructuredIdeaSignature, t.llm, signature.WithDemos(demos...))
	prediction, err := predictor.Predict(ctx, example.Inputs)
	if err != nil {
		t.logger.Warn(ctx, "Prediction failed", map[string]interface{}{
			"request": example.Inputs["request"],
			"error":   err.Error(),
		})
		return signature.Prediction{}
	}
	return prediction
}

// heldOut drops the example being scored from the demos
func heldOut(demos []signature.Example, example signature.Example) []signature.Example {
	out := make([]signature.Example, 0, len(demos))
	for _, d := range demos {
		if sameExample(d, example) {
			continue
		}
		out = append(out, d)
	}
	return out
}

func sameExample(a, b signature.Example) bool {
	return a.Inputs["request"] == b.Inputs["request"] && a.Inputs["profile_context"] == b.Inputs["profile_context"]
}

func mean(evaluations []Evaluation) float64 {
	if len(evaluations) == 0 {
		return 0
	}
	total := 0.0
	for _, e := range evaluations {
		total += e.Score
	}
	return total / float64(len(evaluations))
}

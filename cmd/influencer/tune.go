package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/run-bigpig/observable-agent/pkg/app"
	"github.com/run-bigpig/observable-agent/pkg/embedding"
	"github.com/run-bigpig/observable-agent/pkg/influencer"
	"github.com/run-bigpig/observable-agent/pkg/influencer/tuning"
	"github.com/run-bigpig/observable-agent/pkg/interfaces"
	"github.com/run-bigpig/observable-agent/pkg/retry"
	"github.com/run-bigpig/observable-agent/pkg/tracing"
)

const (
	defaultGuidancePath = "prompts/video_ideas_optimized.txt"

	metricFuzzy    = "fuzzy"
	metricSemantic = "semantic"
)

var errNoLM = errors.New("No LM configured. Set OPENAI_* environment variables before running tuning.")

type tuneOptions struct {
	numCandidates     int
	metric            string
	semanticThreshold float64
	output            string
	reportOutput      string
	seed              int64
}

func tuneCmd(load loader) *cobra.Command {
	opts := &tuneOptions{}

	cmd := &cobra.Command{
		Use:   "tune",
		Short: "Search for the few-shot demos that best reproduce the curated ideas",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.metric != metricFuzzy && opts.metric != metricSemantic {
				return fmt.Errorf("--metric must be %s or %s, got %q", metricFuzzy, metricSemantic, opts.metric)
			}
			env, err := load(cmd)
			if err != nil {
				return err
			}
			defer env.Shutdown(cmd.Context())
			return runTune(cmd, env, opts)
		},
	}
	cmd.Flags().IntVar(&opts.numCandidates, "num-candidates", tuning.DefaultNumCandidates, "Random demo subsets to score")
	cmd.Flags().StringVar(&opts.metric, "metric", metricFuzzy, "Scoring metric: fuzzy or semantic")
	cmd.Flags().Float64Var(&opts.semanticThreshold, "semantic-threshold", tuning.DefaultSemanticThreshold, "Cosine similarity a semantic match needs")
	cmd.Flags().StringVar(&opts.output, "output", defaultGuidancePath, "Where to write the tuned guidance")
	cmd.Flags().StringVar(&opts.reportOutput, "report-output", "", "Optional Markdown report comparing baseline and tuned predictions")
	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "Seed for candidate sampling")
	return cmd
}

func runTune(cmd *cobra.Command, env *app.Env, opts *tuneOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	base := env.NewAgent(influencer.Observation)
	llm := base.LLM()
	if llm == nil {
		return errNoLM
	}

	if env.Config.Langfuse.Enabled() {
		tracer, err := tracing.NewLangfuseTracer(tracing.LangfuseConfigFrom(env.Config.Langfuse))
		if err != nil {
			env.Logger.Warn(ctx, "Langfuse tracing disabled", map[string]interface{}{"error": err.Error()})
		} else {
			llm = tracing.NewLLMMiddleware(llm, tracer, env.Logger)
			defer func() { _ = tracer.Flush() }()
		}
	}

	trainset, err := influencer.BuildTrainingDataset()
	if err != nil {
		return err
	}

	tunerOpts := []tuning.Option{
		tuning.WithNumCandidates(opts.numCandidates),
		tuning.WithSeed(opts.seed),
		tuning.WithLogger(env.Logger),
	}
	if opts.metric == metricSemantic {
		embedder, closeCache := newEmbedder(ctx, env)
		defer closeCache()
		tunerOpts = append(tunerOpts, tuning.WithMetric(tuning.SemanticMetric(embedder, opts.semanticThreshold, env.Logger)))
	}

	fmt.Fprintf(out, "Tuning %s on %d examples with the %s metric...\n", llm.Name(), len(trainset), opts.metric)
	result, err := tuning.NewTuner(llm, tunerOpts...).Run(ctx, trainset)
	if err != nil {
		return err
	}
	tuned := result.Tuned()
	fmt.Fprintf(out, "Baseline score: %.1f%%\n", result.BaselineScore()*100)
	fmt.Fprintf(out, "Tuned score:    %.1f%% (%d demos)\n", tuned.Score*100, len(tuned.Demos))

	if err := writeFile(opts.output, func(f *os.File) error {
		return tuning.WriteGuidance(f, tuned.Demos, trainset)
	}); err != nil {
		return err
	}
	sidecar := tuning.SidecarPath(opts.output)
	if err := tuning.NewGuidance(result, opts.metric).Save(sidecar); err != nil {
		return err
	}
	fmt.Fprintf(out, "Saved guidance to %s and %s\n", opts.output, sidecar)

	if opts.reportOutput != "" {
		if err := writeFile(opts.reportOutput, func(f *os.File) error {
			return tuning.WriteReport(f, result, tuning.ReportOptions{
				Metric:            opts.metric,
				SemanticThreshold: opts.semanticThreshold,
				NumCandidates:     opts.numCandidates,
			})
		}); err != nil {
			return err
		}
		fmt.Fprintf(out, "Saved report to %s\n", opts.reportOutput)
	}
	return nil
}

// newEmbedder returns an OpenAI embedder behind the Redis cache when
// REDIS_URL is set, or an in-memory cache otherwise
func newEmbedder(ctx context.Context, env *app.Env) (interfaces.Embedder, func()) {
	cfg := env.Config.LLM
	openai := embedding.NewOpenAIEmbedder(cfg.OpenAIAPIKey,
		embedding.WithModel(cfg.EmbedModel),
		embedding.WithBaseURL(cfg.BaseURL),
		embedding.WithLogger(env.Logger),
		embedding.WithRetry(retry.WithMaxAttempts(int32(max(cfg.MaxRetries, 1)))), // #nosec G115 - small configured value
	)

	if env.Config.Redis.URL == "" {
		return embedding.NewCachedEmbedder(openai, embedding.NewMemoryCache(), env.Logger), func() {}
	}
	cache, err := embedding.NewRedisCacheFromURL(ctx, env.Config.Redis.URL, embedding.WithCacheModel(cfg.EmbedModel))
	if err != nil {
		env.Logger.Warn(ctx, "Redis embedding cache unavailable, using memory", map[string]interface{}{"error": err.Error()})
		return embedding.NewCachedEmbedder(openai, embedding.NewMemoryCache(), env.Logger), func() {}
	}
	return embedding.NewCachedEmbedder(openai, cache, env.Logger), func() { _ = cache.Close() }
}

func writeFile(path string, write func(*os.File) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	f, err := os.Create(path) // #nosec G304 - path comes from the operator
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/run-bigpig/observable-agent/pkg/app"
	"github.com/run-bigpig/observable-agent/pkg/coding"
	"github.com/run-bigpig/observable-agent/pkg/llm/provider"
)

type options struct {
	repo         string
	allow        []string
	branchPrefix string
	dryRun       bool
	openPR       bool
	checks       []string
}

func newRootCmd(d deps) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "adl-agent task",
		Short:         "Autonomous coding agent with Langfuse tracing",
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 || args[0] == "" {
				return fail(2, "task is required")
			}
			if opts.repo == "" {
				return fail(2, "--repo is required")
			}
			return run(cmd, d, opts, args[0])
		},
	}
	cmd.SetVersionTemplate("{{.Name}} {{.Version}}\n")

	cmd.Flags().StringVar(&opts.repo, "repo", "", "Path to target repository")
	cmd.Flags().StringSliceVar(&opts.allow, "allow", []string{"src/**/*.py", "tests/**/*.py"}, "Glob patterns for allowed files")
	cmd.Flags().StringVar(&opts.branchPrefix, "branch-prefix", "agent", "Branch name prefix")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Generate the file but don't write it")
	cmd.Flags().BoolVar(&opts.openPR, "open-pr", false, "Push the branch and open a pull request")
	cmd.Flags().StringArrayVar(&opts.checks, "check", nil, `Check to run after writing, as "Name=command args" (repeatable; defaults to ruff and pytest)`)

	return cmd
}

func run(cmd *cobra.Command, d deps, opts *options, task string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	repoPath, err := filepath.Abs(opts.repo)
	if err != nil {
		return fail(1, "❌ Error: %v", err)
	}
	repo, err := coding.OpenRepository(repoPath)
	if err != nil {
		return fail(1, "❌ Error: %s is not a git repository", repoPath)
	}

	harnessOpts := []coding.HarnessOption{coding.WithRunner(d.runner)}
	if len(opts.checks) > 0 {
		checks := make([]coding.Check, 0, len(opts.checks))
		for _, raw := range opts.checks {
			check, err := coding.ParseCheck(raw)
			if err != nil {
				return fail(2, "%v", err)
			}
			checks = append(checks, check)
		}
		harnessOpts = append(harnessOpts, coding.WithChecks(checks...))
	}

	env, err := app.Load(ctx)
	if err != nil {
		return fail(1, "❌ Error: %v", err)
	}
	defer env.Shutdown(ctx)
	harnessOpts = append(harnessOpts, coding.WithTracer(env.OTel), coding.WithHarnessLogger(env.Logger))

	if err := preflight(out, env); err != nil {
		return err
	}

	currentBranch := repo.CurrentBranch()
	branch := coding.BranchName(opts.branchPrefix, task)
	fmt.Fprintf(out, "🌿 Creating branch: %s\n", branch)
	switch _, existed, err := repo.CreateOrCheckoutBranch(branch); {
	case err != nil:
		fmt.Fprintf(out, "❌ Error: Could not create or checkout branch: %v\n", err)
		fmt.Fprintf(out, "   You may have uncommitted changes. Staying on %s\n", currentBranch)
		branch = currentBranch
	case existed:
		fmt.Fprintln(out, "⚠️  Branch already exists, checked it out")
	}

	fmt.Fprintf(out, "🤖 Agent working on task: %s\n", task)
	fmt.Fprintf(out, "📁 Repository: %s\n", repoPath)
	fmt.Fprintf(out, "📋 Allowed patterns: %v\n\n", opts.allow)

	harness := coding.NewHarness(harnessOpts...)
	patch, passed, output := harness.MakePatchAndTest(ctx, task, repoPath, opts.allow, d.newGenerator(env), opts.dryRun)
	fmt.Fprintf(out, "%s\n\n", output)

	if patch == "" {
		return fail(2, "❌ No patch generated. Check logs.")
	}

	if opts.dryRun {
		fmt.Fprintln(out, "✅ Dry run complete. Patch:")
		if len(patch) > 500 {
			patch = patch[:500] + "..."
		}
		fmt.Fprintln(out, patch)
		return nil
	}

	if !passed {
		return fail(1, "❌ Tests failed. Branch left for manual review.\n   Run: cd %s && git diff", repoPath)
	}

	fmt.Fprintln(out, "✅ Tests passed! Creating commit...")
	if _, err := repo.CommitAll(coding.CommitMessage(task)); err != nil {
		return fail(1, "❌ Git operation failed: %v", err)
	}
	fmt.Fprintf(out, "✅ Commit created on branch: %s\n", branch)

	if opts.openPR {
		fmt.Fprintln(out, "🚀 Opening PR...")
		if err := repo.Push(ctx, d.runner, "origin", branch); err != nil {
			return fail(1, "❌ Git operation failed: %v", err)
		}
		url, err := d.publisher(env).OpenPullRequest(ctx, repo, coding.PullRequest{
			Branch: branch,
			Title:  "agent: " + task,
			Body:   coding.CommitMessage(task),
		})
		if err != nil {
			return fail(1, "❌ Git operation failed: %v", err)
		}
		fmt.Fprintf(out, "✅ PR opened successfully! %s\n", url)
	}
	return nil
}

// preflight checks the model credentials and reports the tracing setup
func preflight(out io.Writer, env *app.Env) error {
	model := env.Config.LLM.Model
	switch {
	case provider.Explicit(model):
		if err := provider.CheckCredentials(model, env.Config.LLM); err != nil {
			msg := strings.TrimPrefix(err.Error(), provider.ErrNotConfigured.Error()+": ")
			return fail(1, "❌ Error: %s\n   Set it in your .env file or export the key", msg)
		}
	case !provider.HasAnyKey(env.Config.LLM):
		fmt.Fprintln(out, "⚠️  Warning: No API keys found. Agent may fail.")
		fmt.Fprintln(out, "   Set OPENAI_API_KEY or ANTHROPIC_API_KEY in your .env file")
	}

	if !env.Config.Langfuse.Enabled() {
		fmt.Fprintln(out, "ℹ️  Note: Langfuse tracing not configured (optional)")
		fmt.Fprintln(out, "   Set LANGFUSE_PUBLIC_KEY, LANGFUSE_SECRET_KEY, LANGFUSE_HOST for observability")
		fmt.Fprintln(out)
	}

	fmt.Fprintf(out, "🧠 Model: %s\n", model)
	if env.Config.Langfuse.Enabled() {
		fmt.Fprintln(out, "📊 Tracing: Enabled (Langfuse)")
	}
	fmt.Fprintln(out)
	return nil
}

package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/run-bigpig/observable-agent/pkg/app"
	"github.com/run-bigpig/observable-agent/pkg/coding"
)

type stubGenerator struct {
	patch *coding.Patch
}

func (s stubGenerator) Generate(context.Context, string, string, []string) (*coding.Patch, error) {
	if s.patch == nil {
		return nil, errors.New("model unavailable")
	}
	return s.patch, nil
}

func testDeps(patch *coding.Patch, exitCode int) deps {
	return deps{
		newGenerator: func(*app.Env) coding.Generator { return stubGenerator{patch: patch} },
		runner: func(_ context.Context, _ string, name string, _ ...string) (coding.CommandResult, error) {
			if name == "git" {
				return coding.CommandResult{}, nil
			}
			return coding.CommandResult{Stdout: "ok", ExitCode: exitCode}, nil
		},
	}
}

func initRepo(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0o644))
	_, err = wt.Add("README.md")
	require.NoError(t, err)
	_, err = wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return dir
}

func execute(t *testing.T, d deps, args ...string) (string, error) {
	t.Helper()
	for _, key := range []string{"ANTHROPIC_API_KEY", "VERTEX_PROJECT_ID", "LANGFUSE_PUBLIC_KEY", "LANGFUSE_SECRET_KEY", "OTEL_EXPORTER_OTLP_ENDPOINT"} {
		t.Setenv(key, "")
	}
	t.Setenv("OPENAI_MODEL", "openai/gpt-4o-mini")
	t.Setenv("LOG_LEVEL", "error")

	var out bytes.Buffer
	cmd := newRootCmd(d)
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	var exit *exitError
	require.ErrorAs(t, err, &exit)
	return exit.code
}

var helperPatch = &coding.Patch{
	Filename:    "src/helpers.py",
	Content:     "def add(a, b):\n    return a + b\n",
	Explanation: "Adds a helper",
	RiskLevel:   "low",
}

func TestVersion(t *testing.T) {
	out, err := execute(t, testDeps(nil, 0), "--version")
	require.NoError(t, err)
	assert.Equal(t, "adl-agent 0.1.0\n", out)
}

func TestRejectsPlainDirectory(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	dir := t.TempDir()

	_, err := execute(t, testDeps(helperPatch, 0), "Add helper", "--repo", dir)
	assert.Equal(t, 1, exitCode(t, err))
	assert.Contains(t, err.Error(), "is not a git repository")
}

func TestRequiresCredentials(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := execute(t, testDeps(helperPatch, 0), "Add helper", "--repo", initRepo(t))
	assert.Equal(t, 1, exitCode(t, err))
	assert.Contains(t, err.Error(), "OPENAI_API_KEY not set but required for OpenAI models")
}

func TestUnknownProviderOnlyWarns(t *testing.T) {
	t.Setenv("OPENAI_MODEL", "ollama/llama3")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("VERTEX_PROJECT_ID", "")

	out, err := execute(t, testDeps(helperPatch, 0), "Add helper", "--repo", initRepo(t), "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "⚠️  Warning: No API keys found. Agent may fail.")
	assert.Contains(t, out, "🧠 Model: ollama/llama3")
}

func TestNoPatch(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")

	out, err := execute(t, testDeps(nil, 0), "Add helper", "--repo", initRepo(t))
	assert.Equal(t, 2, exitCode(t, err))
	assert.Contains(t, out, "Agent failed to generate file: model unavailable")
}

func TestDryRunLeavesRepoUntouched(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	dir := initRepo(t)

	out, err := execute(t, testDeps(helperPatch, 0), "Add helper", "--repo", dir, "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "Langfuse tracing not configured")
	assert.Contains(t, out, "🌿 Creating branch: agent/add-helper")
	assert.Contains(t, out, "✅ Dry run complete. Patch:\n"+helperPatch.Content)
	assert.NoFileExists(t, filepath.Join(dir, "src", "helpers.py"))
}

func TestCommitsWhenChecksPass(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	dir := initRepo(t)

	out, err := execute(t, testDeps(helperPatch, 0), "Add helper", "--repo", dir, "--check", "Vet=true")
	require.NoError(t, err)
	assert.Contains(t, out, "[✓] Vet")
	assert.Contains(t, out, "✅ Commit created on branch: agent/add-helper")

	repo, err := coding.OpenRepository(dir)
	require.NoError(t, err)
	assert.Equal(t, "agent/add-helper", repo.CurrentBranch())

	gitRepo, err := git.PlainOpen(dir)
	require.NoError(t, err)
	head, err := gitRepo.Head()
	require.NoError(t, err)
	commit, err := gitRepo.CommitObject(head.Hash())
	require.NoError(t, err)
	assert.Contains(t, commit.Message, "agent: Add helper")
}

func TestFailedChecksKeepBranch(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	dir := initRepo(t)

	out, err := execute(t, testDeps(helperPatch, 1), "Add helper", "--repo", dir)
	assert.Equal(t, 1, exitCode(t, err))
	assert.Contains(t, err.Error(), "Tests failed")
	assert.Contains(t, out, "[✗] Ruff linting")
	assert.FileExists(t, filepath.Join(dir, "src", "helpers.py"))
}

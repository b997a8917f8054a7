package coding

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/run-bigpig/observable-agent/pkg/guardrails"
	"github.com/run-bigpig/observable-agent/pkg/logging"
	"github.com/run-bigpig/observable-agent/pkg/tracing"
)

const (
	// maxSnapshotFileSize excludes large files from the repository snapshot
	maxSnapshotFileSize = 50000
	// maxCheckOutput caps each check's stdout and stderr in the report
	maxCheckOutput = 500
)

// ErrFileExists is returned when a generated file would overwrite an existing one
var ErrFileExists = errors.New("file already exists")

// ErrOutsideRepo is returned for generated filenames that resolve outside the repository
var ErrOutsideRepo = errors.New("path escapes the repository")

// CommandResult is the outcome of a finished command
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes a command in dir. A non-zero exit is reported through
// ExitCode; the error is reserved for commands that could not run at all.
type Runner func(ctx context.Context, dir, name string, args ...string) (CommandResult, error)

// RunCommand is the default Runner
func RunCommand(ctx context.Context, dir, name string, args ...string) (CommandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := CommandResult{Stdout: stdout.String(), Stderr: stderr.String()}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	if err != nil {
		return result, fmt.Errorf("failed to run %s: %w", name, err)
	}
	return result, nil
}

// Check is one lint or test command run after a file is written
type Check struct {
	Name    string
	Command []string
}

// DefaultChecks lint with ruff and run pytest
var DefaultChecks = []Check{
	{Name: "Ruff linting", Command: []string{"ruff", "check", "."}},
	{Name: "Tests", Command: []string{"python", "-m", "pytest", "-q"}},
}

// ParseCheck reads a check given as "Name=command args...". Without a name
// the command line doubles as one.
func ParseCheck(raw string) (Check, error) {
	name, command, found := strings.Cut(raw, "=")
	if !found {
		name, command = "", raw
	}
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return Check{}, fmt.Errorf("check %q has no command", raw)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = strings.Join(fields, " ")
	}
	return Check{Name: name, Command: fields}, nil
}

// Harness drives one generate-write-check cycle against a repository
type Harness struct {
	checks []Check
	run    Runner
	tracer *tracing.OTelTracer
	logger logging.Logger
}

// HarnessOption configures a Harness
type HarnessOption func(*Harness)

// WithChecks replaces the default checks
func WithChecks(checks ...Check) HarnessOption {
	return func(h *Harness) {
		h.checks = checks
	}
}

// WithRunner replaces RunCommand
func WithRunner(run Runner) HarnessOption {
	return func(h *Harness) {
		h.run = run
	}
}

// WithTracer records every step as an OpenTelemetry span
func WithTracer(tracer *tracing.OTelTracer) HarnessOption {
	return func(h *Harness) {
		h.tracer = tracer
	}
}

// WithHarnessLogger sets the logger
func WithHarnessLogger(logger logging.Logger) HarnessOption {
	return func(h *Harness) {
		h.logger = logger
	}
}

// NewHarness creates a harness running DefaultChecks
func NewHarness(options ...HarnessOption) *Harness {
	h := &Harness{
		checks: DefaultChecks,
		run:    RunCommand,
		logger: logging.NewNop(),
	}
	for _, opt := range options {
		opt(h)
	}
	if h.tracer == nil {
		h.tracer, _ = tracing.NewOTelTracer(tracing.OTelConfig{})
	}
	return h
}

// RepoSnapshot describes the tracked files, the working-tree diff, the short
// status and the contents of every tracked file under 50000 bytes.
func (h *Harness) RepoSnapshot(ctx context.Context, repoPath string) string {
	ctx, span := h.tracer.StartSpan(ctx, "repo-snapshot", map[string]string{"repo": repoPath})

	snapshot, err := h.snapshot(ctx, repoPath)
	h.tracer.EndSpan(span, err)
	if err != nil {
		return fmt.Sprintf("Error capturing repo state: %v", err)
	}
	return snapshot
}

func (h *Harness) snapshot(ctx context.Context, repoPath string) (string, error) {
	repo, err := OpenRepository(repoPath)
	if err != nil {
		return "", err
	}

	files, err := repo.Files()
	if err != nil {
		return "", err
	}
	status, err := repo.ShortStatus()
	if err != nil {
		return "", err
	}

	// go-git has no working-tree diff; the git binary is optional
	var diff string
	if result, err := h.run(ctx, repoPath, "git", "diff"); err == nil {
		diff = result.Stdout
	} else {
		h.logger.Debug(ctx, "git diff unavailable", map[string]interface{}{"error": err.Error()})
	}

	var listing strings.Builder
	var contents []string
	for _, file := range files {
		listing.WriteString(file)
		listing.WriteString("\n")

		full := filepath.Join(repoPath, filepath.FromSlash(file))
		info, err := os.Stat(full)
		if err != nil || info.Size() >= maxSnapshotFileSize {
			continue
		}
		data, err := os.ReadFile(full)
		if err != nil {
			continue
		}
		contents = append(contents, fmt.Sprintf("=== %s ===\n%s", file, data))
	}

	contentsSection := "(no readable files)"
	if len(contents) > 0 {
		contentsSection = strings.Join(contents, "\n\n")
	}

	return fmt.Sprintf("=== GIT FILES ===\n%s\n\n=== GIT DIFF ===\n%s\n\n=== GIT STATUS ===\n%s\n\n=== FILE CONTENTS ===\n%s\n",
		listing.String(), diff, status, contentsSection), nil
}

// FormatLintAndTest runs every check and reports whether all of them passed.
// A check whose command cannot be started counts as failed.
func (h *Harness) FormatLintAndTest(ctx context.Context, repoPath string) (bool, string) {
	ctx, span := h.tracer.StartSpan(ctx, "format-lint-test", map[string]string{"repo": repoPath})
	defer h.tracer.EndSpan(span, nil)

	allPassed := true
	entries := make([]string, 0, len(h.checks))
	for _, check := range h.checks {
		if len(check.Command) == 0 {
			continue
		}

		result, err := h.run(ctx, repoPath, check.Command[0], check.Command[1:]...)
		passed := err == nil && result.ExitCode == 0
		if err != nil {
			result.Stderr = err.Error()
		}
		allPassed = allPassed && passed

		mark := "✓"
		if !passed {
			mark = "✗"
		}
		entries = append(entries, fmt.Sprintf("[%s] %s\n%s\n%s",
			mark, check.Name, truncate(result.Stdout, maxCheckOutput), truncate(result.Stderr, maxCheckOutput)))

		h.logger.Debug(ctx, "Check finished", map[string]interface{}{"check": check.Name, "passed": passed})
	}

	return allPassed, strings.Join(entries, "\n\n")
}

// StripMarkdownFences removes an opening ``` line and, after it, a closing
// ``` line. Content that does not start with a fence is returned unchanged.
func StripMarkdownFences(content string) string {
	lines := strings.Split(content, "\n")
	if len(lines) == 0 || !strings.HasPrefix(strings.TrimSpace(lines[0]), "```") {
		return content
	}

	lines = lines[1:]
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

// WriteNewFile creates filename under repoPath with fences stripped. It never
// overwrites an existing file.
func (h *Harness) WriteNewFile(ctx context.Context, repoPath, filename, content string) (bool, string) {
	_, span := h.tracer.StartSpan(ctx, "write-new-file", map[string]string{"filename": filename})

	message, err := writeNewFile(repoPath, filename, content)
	h.tracer.EndSpan(span, err)
	if err != nil {
		if errors.Is(err, ErrFileExists) {
			return false, fmt.Sprintf("File %s already exists", filename)
		}
		return false, fmt.Sprintf("Failed to write file: %v", err)
	}
	return true, message
}

func writeNewFile(repoPath, filename, content string) (string, error) {
	path := filepath.Join(repoPath, filepath.FromSlash(filename))
	rel, err := filepath.Rel(repoPath, path)
	if err != nil || !guardrails.IsRelativeInside(filepath.ToSlash(rel)) || filepath.IsAbs(filename) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRepo, filename)
	}
	if _, err := os.Stat(path); err == nil {
		return "", ErrFileExists
	}

	cleaned := StripMarkdownFences(content)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(cleaned), 0o644); err != nil {
		return "", err
	}
	return fmt.Sprintf("Created %s (%d bytes)", filename, len(cleaned)), nil
}

// MakePatchAndTest snapshots the repository, asks the generator for a file,
// writes it and runs the checks. It returns the generated content (empty when
// generation failed), whether every check passed and a report for the user.
// A dry run stops before writing and never reports success.
func (h *Harness) MakePatchAndTest(ctx context.Context, task, repoPath string, allowGlobs []string, generator Generator, dryRun bool) (string, bool, string) {
	ctx, span := h.tracer.StartSpan(ctx, "make-file-and-test", map[string]string{"task": task})
	var spanErr error
	defer func() { h.tracer.EndSpan(span, spanErr) }()

	repoState := h.RepoSnapshot(ctx, repoPath)

	patch, err := generator.Generate(ctx, task, repoState, allowGlobs)
	if err != nil {
		spanErr = err
		return "", false, fmt.Sprintf("Agent failed to generate file: %v", err)
	}

	if dryRun {
		return patch.Content, false, "DRY RUN - File generated but not written.\n\n" + patch.describe()
	}

	written, writeOutput := h.WriteNewFile(ctx, repoPath, patch.Filename, patch.Content)
	if !written {
		spanErr = errors.New(writeOutput)
		return patch.Content, false, "Failed to write file:\n" + writeOutput
	}

	passed, testOutput := h.FormatLintAndTest(ctx, repoPath)

	output := fmt.Sprintf("\n=== FILE CREATED ===\nFilename: %s\nExplanation: %s\nRisk Level: %s\n\n=== TEST RESULTS ===\n%s\n",
		patch.Filename, patch.Explanation, patch.RiskLevel, testOutput)
	return patch.Content, passed, output
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

package guardrails

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateFilename(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		filename string
		want     bool
	}{
		{"nested under src", []string{"src/**/*.py", "tests/**/*.py"}, "src/foo/example.py", true},
		{"nested under tests", []string{"src/**/*.py", "tests/**/*.py"}, "tests/unit/test_example.py", true},
		{"deeply nested", []string{"src/**/*.py"}, "src/bar/baz/deep.py", true},
		{"double star needs a directory", []string{"src/**/*.py"}, "src/main.py", false},
		{"wrong directory", []string{"src/**/*.py"}, "config/settings.yaml", false},
		{"root file", []string{"src/**/*.py"}, "README.md", false},
		{"simple glob", []string{"*.py"}, "utils.py", true},
		{"simple glob wrong ext", []string{"*.py"}, "config.yaml", false},
		{"star crosses directories", []string{"*.py"}, "pkg/utils.py", true},
		{"multiple patterns md", []string{"*.py", "*.md", "src/**/*.js"}, "README.md", true},
		{"multiple patterns js", []string{"*.py", "*.md", "src/**/*.js"}, "src/app/main.js", true},
		{"multiple patterns miss", []string{"*.py", "*.md", "src/**/*.js"}, "config.yaml", false},
		{"prefixed pattern", []string{"examples/coding_agent/**/*.py"}, "examples/coding_agent/src/x.py", true},
		{"character class", []string{"test_[ab].py"}, "test_a.py", true},
		{"negated class", []string{"test_[!ab].py"}, "test_a.py", false},
		{"no patterns", nil, "main.py", false},
		{"climbs out of the repo", []string{"src/**/*.py", "tests/**/*.py"}, "tests/../../outside.py", false},
		{"leading parent", []string{"*.py"}, "../escape.py", false},
		{"bare parent", []string{"*"}, "..", false},
		{"absolute path", []string{"*.py"}, "/etc/evil.py", false},
		{"backslash separators", []string{"*.py"}, `..\escape.py`, false},
		{"parent that stays inside", []string{"src/**/*.py"}, "src/pkg/../lib/x.py", true},
		{"empty name", []string{"*"}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateFilename(tt.patterns, tt.filename))
		})
	}
}

func TestValidateMessages(t *testing.T) {
	ctx := context.Background()

	err := Validate(ctx, NewNonEmpty("Filename"), "   ")
	require.Error(t, err)
	assert.Equal(t, "Filename cannot be empty", err.Error())
	assert.True(t, errors.Is(err, ErrBlocked))

	err = Validate(ctx, NewFileRestriction([]string{"src/**/*.py", "tests/**/*.py"}), "docs/readme.md")
	require.Error(t, err)
	assert.Equal(t, "Filename does not match allowed patterns. Allowed: ['src/**/*.py', 'tests/**/*.py'], Got: docs/readme.md", err.Error())

	err = Validate(ctx, NewEnum("Risk level", "low", "medium", "high"), "extreme")
	require.Error(t, err)
	assert.Equal(t, "Risk level must be low/medium/high, got: extreme", err.Error())

	var violation *ViolationError
	require.True(t, errors.As(err, &violation))
	assert.Equal(t, EnumGuardrail, violation.Guardrail)

	assert.NoError(t, Validate(ctx, NewEnum("Risk level", "low", "medium", "high"), " HIGH "))
	assert.NoError(t, Validate(ctx, NewNonEmpty("File content"), "print('hi')"))
}

func TestEnumNormalize(t *testing.T) {
	routes := NewEnum("Route", "billing", "tech", "sales")
	assert.Equal(t, "billing", routes.Normalize("  Billing\n"))
	assert.Equal(t, "", routes.Normalize("legal"))
	assert.False(t, routes.Contains(""))
}

func TestPipelineRedactsAndTruncates(t *testing.T) {
	pipeline := NewPipeline([]Guardrail{
		NewPiiFilter(RedactAction),
		NewTokenLimit(6, nil, RedactAction, KeepHead),
	}, nil)

	out, err := pipeline.ProcessInput(context.Background(), "contact me at jane@example.com about the invoice please thanks a lot")
	require.NoError(t, err)
	assert.Equal(t, "contact me at [REDACTED email] about ...", out)
}

func TestPipelineBlocks(t *testing.T) {
	pipeline := NewPipeline([]Guardrail{
		NewContentFilter([]string{"forbidden"}, BlockAction),
	}, nil)

	_, err := pipeline.ProcessOutput(context.Background(), "this is Forbidden text")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBlocked))
	assert.Equal(t, "Text contains blocked term: forbidden", err.Error())

	out, err := pipeline.ProcessOutput(context.Background(), "all clear")
	require.NoError(t, err)
	assert.Equal(t, "all clear", out)
}

func TestPipelineLogActionKeepsValue(t *testing.T) {
	pipeline := NewPipeline([]Guardrail{NewContentFilter([]string{"darn"}, LogAction)}, nil)

	out, err := pipeline.ProcessInput(context.Background(), "darn it")
	require.NoError(t, err)
	assert.Equal(t, "darn it", out)
}

func TestTokenLimitModes(t *testing.T) {
	text := "one two three four five six"

	_, out, err := NewTokenLimit(2, nil, RedactAction, KeepTail).CheckRequest(context.Background(), text)
	require.NoError(t, err)
	assert.Equal(t, "five six", out)

	_, out, err = NewTokenLimit(4, nil, RedactAction, KeepEdges).CheckRequest(context.Background(), text)
	require.NoError(t, err)
	assert.Equal(t, "one two ... five six", out)

	triggered, out, err := NewTokenLimit(10, nil, RedactAction, "").CheckRequest(context.Background(), text)
	require.NoError(t, err)
	assert.False(t, triggered)
	assert.Equal(t, text, out)
}

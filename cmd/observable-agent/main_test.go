package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	for _, key := range []string{"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "VERTEX_PROJECT_ID", "LANGFUSE_PUBLIC_KEY", "LANGFUSE_SECRET_KEY", "OTEL_EXPORTER_OTLP_ENDPOINT"} {
		t.Setenv(key, "")
	}
	t.Setenv("LOG_LEVEL", "error")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, "observable-agent v0.2.0\n", out)
}

func TestNoArgs(t *testing.T) {
	out, err := run(t)
	require.NoError(t, err)
	assert.Equal(t, "observable-agent v0.2.0\nReady. Add your commands to cmd/observable-agent\n", out)
}

func TestRouteDefaultsToExample(t *testing.T) {
	out, err := run(t, "route")
	require.NoError(t, err)

	var result map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "billing", result["route"])
	assert.Equal(t, "Policy fallback used because no LM is configured.", result["explanation"])
}

func TestTriageJoinsArguments(t *testing.T) {
	out, err := run(t, "triage", "Can", "I", "get", "a", "demo?")
	require.NoError(t, err)

	var result map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "sales", result["route"])
}

package agent

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatSystemPromptFromConfig(t *testing.T) {
	persona := AgentConfig{
		Role:      "{topic} Senior Data Researcher",
		Goal:      "Uncover cutting-edge developments in {topic}",
		Backstory: "You're a seasoned researcher with a knack for uncovering the latest developments in {topic}.\n",
	}

	systemPrompt := FormatSystemPromptFromConfig(persona, map[string]string{"topic": "Artificial Intelligence"})

	assert.Contains(t, systemPrompt, "# Role\nArtificial Intelligence Senior Data Researcher")
	assert.Contains(t, systemPrompt, "# Goal\nUncover cutting-edge developments in Artificial Intelligence")
	assert.Contains(t, systemPrompt, "# Backstory\nYou're a seasoned researcher with a knack for uncovering the latest developments in Artificial Intelligence.")
	assert.NotContains(t, systemPrompt, "{topic}")
}

func TestDefaultAgentConfigs(t *testing.T) {
	t.Setenv("CREATOR_NAME", "")

	configs, err := DefaultAgentConfigs()
	require.NoError(t, err)

	for _, name := range []string{"routing-agent", "triage-agent", "code-agent-generate", "video-ideas"} {
		assert.Contains(t, configs, name)
		assert.NotEmpty(t, configs[name].Role, name)
	}
	assert.Equal(t, "YouTube strategy partner for creators", configs["video-ideas"].Role)
}

func TestParseAgentConfigsExpandsEnv(t *testing.T) {
	t.Setenv("AGENT_TEAM", "Platform")

	configs, err := ParseAgentConfigs([]byte(`
ops:
  role: ${AGENT_TEAM} operator
  goal: Keep ${MISSING_VAR:-things} running
  backstory: ${MISSING_VAR}none
`))
	require.NoError(t, err)
	assert.Equal(t, AgentConfig{Role: "Platform operator", Goal: "Keep things running", Backstory: "none"}, configs["ops"])

	_, err = ParseAgentConfigs([]byte("ops: [unclosed"))
	assert.Error(t, err)
}

func TestLoadAgentConfigsFromDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("x:\n  role: first\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yml"), []byte("x:\n  role: second\ny:\n  role: other\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600))

	configs, err := LoadAgentConfigsFromDir(dir)
	require.NoError(t, err)
	assert.Len(t, configs, 2)
	assert.Equal(t, "second", configs["x"].Role)

	single, err := LoadAgentConfigsFromFile(filepath.Join(dir, "a.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "first", single["x"].Role)

	_, err = LoadAgentConfigsFromFile(filepath.Join(dir, "missing.yaml"))
	assert.EqualError(t, err, "invalid file path")

	_, err = LoadAgentConfigsFromDir(filepath.Join(dir, "a.yaml"))
	assert.Error(t, err)
}

func TestSaveAgentConfigs(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SaveAgentConfigs(AgentConfigs{"x": {Role: "r", Goal: "g"}}, &buf))

	parsed, err := ParseAgentConfigs(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "g", parsed["x"].Goal)
}

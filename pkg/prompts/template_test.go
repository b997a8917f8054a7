package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	tmpl := New("greeting", `Hello {{.Name}}{{if .Tags}} [{{join .Tags ", "}}]{{end}}`)

	out, err := tmpl.Render(map[string]interface{}{"Name": "Ada", "Tags": []string{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, "Hello Ada [a, b]", out)

	out, err = tmpl.Render(map[string]interface{}{"Name": "Bob"})
	require.NoError(t, err)
	assert.Equal(t, "Hello Bob", out)
}

func TestRenderParseError(t *testing.T) {
	_, err := New("broken", "{{.Name").Render(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse template")

	assert.Panics(t, func() { Must(New("broken", "{{end}}")) })
}

func TestWithFuncs(t *testing.T) {
	tmpl := New("shout", `{{shout .}}`, WithFuncs(map[string]interface{}{
		"shout": func(s string) string { return s + "!" },
	}))

	out, err := tmpl.Render("hey")
	require.NoError(t, err)
	assert.Equal(t, "hey!", out)
}

package prompts

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"text/template"
)

// Template represents a prompt template
type Template struct {
	Name    string
	Content string

	funcs template.FuncMap

	once   sync.Once
	parsed *template.Template
	err    error
}

// TemplateOption is a function that configures a template
type TemplateOption func(*Template)

// WithFuncs adds functions available to the template body
func WithFuncs(funcs template.FuncMap) TemplateOption {
	return func(t *Template) {
		for k, v := range funcs {
			t.funcs[k] = v
		}
	}
}

// New creates a new template. The body is parsed on first render.
func New(name string, content string, options ...TemplateOption) *Template {
	tmpl := &Template{
		Name:    name,
		Content: content,
		funcs: template.FuncMap{
			"join":  strings.Join,
			"trim":  strings.TrimSpace,
			"upper": strings.ToUpper,
			"add":   func(a, b int) int { return a + b },
		},
	}

	for _, option := range options {
		option(tmpl)
	}

	return tmpl
}

// Must parses the template immediately and panics on a syntax error
func Must(t *Template) *Template {
	if err := t.parse(); err != nil {
		panic(err)
	}
	return t
}

func (t *Template) parse() error {
	t.once.Do(func() {
		t.parsed, t.err = template.New(t.Name).Funcs(t.funcs).Option("missingkey=zero").Parse(t.Content)
		if t.err != nil {
			t.err = fmt.Errorf("failed to parse template: %w", t.err)
		}
	})
	return t.err
}

// Render renders the template with the given data
func (t *Template) Render(data interface{}) (string, error) {
	if err := t.parse(); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.parsed.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template: %w", err)
	}

	return buf.String(), nil
}

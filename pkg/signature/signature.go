// Package signature declares typed prompt contracts: named input and output
// fields that render into a prompt, a JSON schema for structured output, and a
// parser for the model's reply.
package signature

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"

	"github.com/run-bigpig/observable-agent/pkg/interfaces"
	"github.com/run-bigpig/observable-agent/pkg/prompts"
)

// ReasoningField is the output prepended by WithReasoning
const ReasoningField = "reasoning"

// Field is one named slot of a signature
type Field struct {
	Name        string
	Description string
}

// Signature describes what a model is given and what it must return
type Signature struct {
	Name         string
	Instructions string
	Inputs       []Field
	Outputs      []Field
}

// Example is a labeled demonstration used for few-shot prompting
type Example struct {
	Inputs  map[string]string
	Outputs map[string]string
}

// WithReasoning returns a copy whose first output is a step-by-step rationale
func (s Signature) WithReasoning() Signature {
	for _, f := range s.Outputs {
		if f.Name == ReasoningField {
			return s
		}
	}
	out := s
	out.Outputs = append([]Field{{
		Name:        ReasoningField,
		Description: "Think step by step in order to produce the remaining outputs.",
	}}, s.Outputs...)
	return out
}

// OutputNames lists output field names in declaration order
func (s Signature) OutputNames() []string {
	names := make([]string, len(s.Outputs))
	for i, f := range s.Outputs {
		names[i] = f.Name
	}
	return names
}

type promptValue struct {
	Name  string
	Value string
}

type promptDemo struct {
	Inputs  []promptValue
	Outputs string
}

var promptTemplate = prompts.Must(prompts.New("signature", `{{.Instructions}}

Input fields:
{{range .Inputs}}- {{.Name}}: {{.Description}}
{{end}}
Output fields:
{{range .Outputs}}- {{.Name}}: {{.Description}}
{{end}}{{range $i, $d := .Demos}}
Example {{add $i 1}}:
{{range $d.Inputs}}{{.Name}}: {{.Value}}
{{end}}Response: {{$d.Outputs}}
{{end}}
Now complete the task for these inputs:
{{range .Values}}{{.Name}}: {{.Value}}
{{end}}
Respond with a single JSON object whose keys are {{.Keys}}. Every value must be a string.`))

// Prompt renders the instructions, few-shot demos and the current inputs
func (s Signature) Prompt(inputs map[string]string, demos []Example) (string, error) {
	data := map[string]interface{}{
		"Instructions": strings.TrimSpace(s.Instructions),
		"Inputs":       s.Inputs,
		"Outputs":      s.Outputs,
		"Values":       s.inputValues(inputs),
		"Keys":         s.quotedKeys(),
	}

	rendered := make([]promptDemo, 0, len(demos))
	for _, demo := range demos {
		outputs := make(map[string]string, len(s.Outputs))
		for _, f := range s.Outputs {
			if v, ok := demo.Outputs[f.Name]; ok {
				outputs[f.Name] = v
			}
		}
		encoded, err := json.Marshal(outputs)
		if err != nil {
			return "", fmt.Errorf("failed to encode demo outputs: %w", err)
		}
		rendered = append(rendered, promptDemo{Inputs: s.inputValues(demo.Inputs), Outputs: string(encoded)})
	}
	data["Demos"] = rendered

	out, err := promptTemplate.Render(data)
	if err != nil {
		return "", fmt.Errorf("failed to render %s prompt: %w", s.Name, err)
	}
	return out, nil
}

func (s Signature) inputValues(inputs map[string]string) []promptValue {
	values := make([]promptValue, 0, len(s.Inputs))
	for _, f := range s.Inputs {
		values = append(values, promptValue{Name: f.Name, Value: inputs[f.Name]})
	}
	return values
}

func (s Signature) quotedKeys() string {
	keys := make([]string, len(s.Outputs))
	for i, f := range s.Outputs {
		keys[i] = fmt.Sprintf("%q", f.Name)
	}
	return strings.Join(keys, ", ")
}

// Schema returns a strict object schema with every output a required string
func (s Signature) Schema() *jsonschema.Schema {
	props := jsonschema.NewProperties()
	required := make([]string, 0, len(s.Outputs))
	for _, f := range s.Outputs {
		props.Set(f.Name, &jsonschema.Schema{
			Type:        "string",
			Description: f.Description,
		})
		required = append(required, f.Name)
	}
	return &jsonschema.Schema{
		Type:                 "object",
		Title:                s.Name,
		Properties:           props,
		Required:             required,
		AdditionalProperties: jsonschema.FalseSchema,
	}
}

// ResponseFormat turns the output schema into a structured-output request
func (s Signature) ResponseFormat() *interfaces.ResponseFormat {
	format := &interfaces.ResponseFormat{
		Type: interfaces.ResponseFormatJSONSchema,
		Name: schemaName(s.Name),
	}

	raw, err := json.Marshal(s.Schema())
	if err != nil {
		format.Type = interfaces.ResponseFormatJSON
		return format
	}
	var schema interfaces.JSONSchema
	if err := json.Unmarshal(raw, &schema); err != nil {
		format.Type = interfaces.ResponseFormatJSON
		return format
	}
	format.Schema = schema
	return format
}

// schemaName maps a signature name onto [a-z0-9_]+
func schemaName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "_") {
				b.WriteByte('_')
			}
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		return "response"
	}
	return out
}

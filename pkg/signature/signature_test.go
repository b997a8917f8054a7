package signature

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/run-bigpig/observable-agent/pkg/interfaces"
	"github.com/run-bigpig/observable-agent/pkg/llm"
	"github.com/run-bigpig/observable-agent/pkg/llm/dummy"
)

var routeSig = Signature{
	Name:         "RouteTicket",
	Instructions: "Classify a support request into a route.",
	Inputs:       []Field{{Name: "request", Description: "Customer request"}},
	Outputs: []Field{
		{Name: "route", Description: "One of {billing, tech, sales}"},
		{Name: "rationale", Description: "Why this route"},
	},
}

func TestWithReasoning(t *testing.T) {
	sig := routeSig.WithReasoning()
	assert.Equal(t, []string{"reasoning", "route", "rationale"}, sig.OutputNames())
	assert.Equal(t, []string{"route", "rationale"}, routeSig.OutputNames())
	assert.Equal(t, sig.OutputNames(), sig.WithReasoning().OutputNames())
}

func TestPrompt(t *testing.T) {
	prompt, err := routeSig.Prompt(map[string]string{"request": "refund please"}, []Example{{
		Inputs:  map[string]string{"request": "app crashes"},
		Outputs: map[string]string{"route": "tech", "rationale": "crash"},
	}})
	require.NoError(t, err)

	assert.Contains(t, prompt, "Classify a support request into a route.")
	assert.Contains(t, prompt, "- route: One of {billing, tech, sales}")
	assert.Contains(t, prompt, "Example 1:\nrequest: app crashes\nResponse: {\"rationale\":\"crash\",\"route\":\"tech\"}")
	assert.Contains(t, prompt, "request: refund please")
	assert.Contains(t, prompt, `keys are "route", "rationale"`)
}

func TestResponseFormat(t *testing.T) {
	format := routeSig.ResponseFormat()
	assert.Equal(t, interfaces.ResponseFormatJSONSchema, format.Type)
	assert.Equal(t, "routeticket", format.Name)
	assert.Equal(t, "object", format.Schema["type"])
	assert.Equal(t, false, format.Schema["additionalProperties"])
	assert.Equal(t, []interface{}{"route", "rationale"}, format.Schema["required"])

	props := format.Schema["properties"].(map[string]interface{})
	route := props["route"].(map[string]interface{})
	assert.Equal(t, "string", route["type"])
	assert.Equal(t, "One of {billing, tech, sales}", route["description"])
}

func TestSchemaName(t *testing.T) {
	assert.Equal(t, "code_patch", schemaName("Code Patch"))
	assert.Equal(t, "video_ideas", schemaName("--Video--Ideas--"))
	assert.Equal(t, "response", schemaName("!!!"))
}

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Prediction
	}{
		{
			name: "plain json",
			raw:  `{"route": "billing", "rationale": "invoice"}`,
			want: Prediction{"route": "billing", "rationale": "invoice"},
		},
		{
			name: "fenced json with prose",
			raw:  "Sure!\n```json\n{\"Route\": \"tech\", \"rationale\": \"bug\"}\n```\nDone.",
			want: Prediction{"route": "tech", "rationale": "bug"},
		},
		{
			name: "non string values",
			raw:  `{"route": 3, "rationale": ["a", "b"]}`,
			want: Prediction{"route": "3", "rationale": `["a","b"]`},
		},
		{
			name: "markers",
			raw:  "[[ ## route ## ]]\nsales\n\n[[ ## rationale ## ]]\nasked for a demo\n\n[[ ## completed ## ]]",
			want: Prediction{"route": "sales", "rationale": "asked for a demo"},
		},
		{
			name: "field lines",
			raw:  "Route: billing\nRationale: customer mentions\na duplicate charge",
			want: Prediction{"route": "billing", "rationale": "customer mentions\na duplicate charge"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := routeSig.Parse(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseUnparseable(t *testing.T) {
	_, err := routeSig.Parse("I cannot help with that.")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnparseable))

	_, err = routeSig.Parse(`{"other": "x"}`)
	assert.True(t, errors.Is(err, ErrUnparseable))
}

func TestPredictor(t *testing.T) {
	model := dummy.New(`{"route": " Tech ", "rationale": "crash"}`)
	p := NewPredictor(routeSig, model,
		WithDemos(Example{Inputs: map[string]string{"request": "x"}, Outputs: map[string]string{"route": "sales"}}),
		WithGenerateOptions(llm.WithSystemMessage("persona")),
	)

	pred, err := p.Predict(context.Background(), map[string]string{"request": "it crashed"})
	require.NoError(t, err)
	assert.Equal(t, "Tech", pred.Get("route"))
	assert.Len(t, p.Demos(), 1)

	opts := model.LastOptions()
	require.NotNil(t, opts.ResponseFormat)
	assert.Equal(t, "routeticket", opts.ResponseFormat.Name)
	assert.Equal(t, "persona", opts.SystemMessage)
	assert.Contains(t, model.Prompts()[0], "request: it crashed")
}

func TestPredictorFillsMissingOutputs(t *testing.T) {
	p := NewPredictor(routeSig, dummy.New(`{"route": "sales"}`))

	pred, err := p.Predict(context.Background(), map[string]string{"request": "demo?"})
	require.NoError(t, err)
	assert.Equal(t, Prediction{"route": "sales", "rationale": ""}, pred)
}

func TestPredictorPropagatesErrors(t *testing.T) {
	p := NewPredictor(routeSig, dummy.New().WithErrors(errors.New("rate limited")))

	_, err := p.Predict(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to generate RouteTicket: rate limited")
}

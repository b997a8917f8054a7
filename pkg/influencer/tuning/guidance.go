package tuning

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/run-bigpig/observable-agent/pkg/influencer"
	"github.com/run-bigpig/observable-agent/pkg/signature"
)

const guidanceHeader = "Video Idea Generator — Tuned Few-Shot Demos\n" +
	"\n" +
	"Use these examples to guide the predictor. Provide 3–5 concise ideas as\n" +
	"a numbered list: 'Title - Summary | Pillar'.\n"

// WriteGuidance writes the tuned demos as human-readable guidance. Without
// demos the training examples are written instead.
func WriteGuidance(w io.Writer, demos, trainset []signature.Example) error {
	var b strings.Builder
	b.WriteString(guidanceHeader)
	b.WriteString("\n")

	if len(demos) > 0 {
		for i, demo := range demos {
			fmt.Fprintf(&b, "Demo %d Request:\n%s\n\nDemo Response:\n", i+1, strings.TrimSpace(demo.Inputs["request"]))
			for _, line := range LinesFromFields(demo.Outputs) {
				b.WriteString(line + "\n")
			}
			b.WriteString("\n---\n\n")
		}
	} else {
		b.WriteString("No tuned demos available; saving training examples instead.\n\n")
		for i, ex := range trainset {
			fmt.Fprintf(&b, "Train Example %d Request:\n%s\n\nExpected Response:\n", i+1, ex.Inputs["request"])
			for _, line := range LinesFromFields(ex.Outputs) {
				b.WriteString(line + "\n")
			}
			b.WriteString("\n---\n\n")
		}
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("failed to write guidance: %w", err)
	}
	return nil
}

// Guidance is the machine-readable form of a tuning run, loaded by the idea
// generator to reuse the winning demos
type Guidance struct {
	Model     string         `yaml:"model"`
	Metric    string         `yaml:"metric"`
	Score     float64        `yaml:"score"`
	Baseline  float64        `yaml:"baseline"`
	CreatedAt time.Time      `yaml:"created_at"`
	Demos     []GuidanceDemo `yaml:"demos"`
}

// GuidanceDemo is one tuned demonstration
type GuidanceDemo struct {
	Request        string                 `yaml:"request"`
	ProfileContext string                 `yaml:"profile_context"`
	Ideas          []influencer.VideoIdea `yaml:"ideas"`
}

// NewGuidance captures the winning candidate of result
func NewGuidance(result *Result, metricName string) *Guidance {
	tuned := result.Tuned()
	g := &Guidance{
		Model:     result.Model,
		Metric:    metricName,
		Score:     tuned.Score,
		Baseline:  result.BaselineScore(),
		CreatedAt: time.Now().UTC(),
		Demos:     make([]GuidanceDemo, 0, len(tuned.Demos)),
	}
	for _, demo := range tuned.Demos {
		g.Demos = append(g.Demos, GuidanceDemo{
			Request:        demo.Inputs["request"],
			ProfileContext: demo.Inputs["profile_context"],
			Ideas:          ideasFromFields(demo.Outputs),
		})
	}
	return g
}

// Examples converts the demos into few-shot examples for the free-text idea
// signature
func (g *Guidance) Examples() []signature.Example {
	examples := make([]signature.Example, 0, len(g.Demos))
	for _, demo := range g.Demos {
		lines := make([]string, 0, len(demo.Ideas))
		for i, idea := range demo.Ideas {
			lines = append(lines, fmt.Sprintf("%d. %s", i+1, idea.String()))
		}
		examples = append(examples, signature.Example{
			Inputs: map[string]string{
				"profile_context": demo.ProfileContext,
				"request":         influencer.IdeaRequest(demo.Request, len(demo.Ideas), ""),
			},
			Outputs: map[string]string{"response": strings.Join(lines, "\n")},
		})
	}
	return examples
}

// Save writes the guidance as YAML, creating parent directories
func (g *Guidance) Save(path string) error {
	data, err := yaml.Marshal(g)
	if err != nil {
		return fmt.Errorf("failed to marshal guidance: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create guidance directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { // #nosec G306 - guidance is not secret
		return fmt.Errorf("failed to write guidance: %w", err)
	}
	return nil
}

// LoadGuidance reads guidance written by Save
func LoadGuidance(path string) (*Guidance, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path comes from the operator
	if err != nil {
		return nil, fmt.Errorf("failed to read guidance: %w", err)
	}
	var g Guidance
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("failed to unmarshal guidance: %w", err)
	}
	return &g, nil
}

// SidecarPath returns where the YAML guidance for a text guidance file lives
func SidecarPath(textPath string) string {
	return strings.TrimSuffix(textPath, filepath.Ext(textPath)) + ".yaml"
}

func ideasFromFields(fields map[string]string) []influencer.VideoIdea {
	var ideas []influencer.VideoIdea
	for i := 1; i <= maxLines; i++ {
		idea := influencer.VideoIdea{
			Title:   strings.TrimSpace(fields[fmt.Sprintf("idea%d_title", i)]),
			Summary: strings.TrimSpace(fields[fmt.Sprintf("idea%d_summary", i)]),
			Pillar:  strings.TrimSpace(fields[fmt.Sprintf("idea%d_pillar", i)]),
		}
		if idea.Title == "" && idea.Summary == "" {
			continue
		}
		ideas = append(ideas, idea)
	}
	return ideas
}

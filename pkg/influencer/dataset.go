package influencer

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/run-bigpig/observable-agent/pkg/signature"
)

// IdeasPerLabel is the number of ideas every labeled example carries
const IdeasPerLabel = 3

// Pillars lists every content pillar used by the bundled creators
var Pillars = []string{
	"AI tooling deep dives",
	"Agency growth playbooks",
	"Behind-the-scenes ops",
	"Enterprise growth playbooks",
	"Live show replays",
	"Tooling breakdowns",
	"Automation walk-throughs",
	"Template showcases",
	"Creator case studies",
}

var pillarVariants = map[string]string{
	"Automation walkthroughs":  "Automation walk-throughs",
	"Automation walk throughs": "Automation walk-throughs",
	"Behind the scenes ops":    "Behind-the-scenes ops",
}

// StructuredIdeaSignature asks for exactly three ideas as separate fields,
// which makes replies comparable with labeled examples
var StructuredIdeaSignature = signature.Signature{
	Name:         "VideoIdeasStructuredSignature",
	Instructions: "Structured output: exactly 3 ideas (title, summary, pillar).",
	Inputs:       IdeaSignature.Inputs,
	Outputs:      structuredIdeaOutputs(),
}

func structuredIdeaOutputs() []signature.Field {
	fields := make([]signature.Field, 0, IdeasPerLabel*3)
	for i := 1; i <= IdeasPerLabel; i++ {
		fields = append(fields,
			signature.Field{Name: fmt.Sprintf("idea%d_title", i), Description: fmt.Sprintf("Idea %d title", i)},
			signature.Field{Name: fmt.Sprintf("idea%d_summary", i), Description: fmt.Sprintf("Idea %d short summary (one clause)", i)},
			signature.Field{Name: fmt.Sprintf("idea%d_pillar", i), Description: fmt.Sprintf("Idea %d content pillar label", i)},
		)
	}
	return fields
}

// TrainingRecord is a request against a bundled fixture and the ideas a good
// answer contains
type TrainingRecord struct {
	Fixture string      `yaml:"fixture"`
	Request string      `yaml:"request"`
	Ideas   []VideoIdea `yaml:"ideas"`
}

//go:embed training.yaml
var trainingYAML []byte

// TrainingRecords returns the curated records, validated and standardized
func TrainingRecords() ([]TrainingRecord, error) {
	var records []TrainingRecord
	if err := yaml.Unmarshal(trainingYAML, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal training records: %w", err)
	}
	for i := range records {
		ideas, err := StandardizeIdeas(records[i].Ideas)
		if err != nil {
			return nil, fmt.Errorf("training record %d (%s): %w", i+1, records[i].Request, err)
		}
		records[i].Ideas = ideas
	}
	return records, nil
}

// BuildTrainingDataset renders each record's fixture as profile context and
// maps its ideas onto the structured signature's output fields
func BuildTrainingDataset() ([]signature.Example, error) {
	records, err := TrainingRecords()
	if err != nil {
		return nil, err
	}

	contexts := map[string]string{}
	examples := make([]signature.Example, 0, len(records))
	for _, record := range records {
		rendered, ok := contexts[record.Fixture]
		if !ok {
			profile, err := LoadProfile(record.Fixture)
			if err != nil {
				return nil, err
			}
			rendered = RenderProfileContext(profile)
			contexts[record.Fixture] = rendered
		}

		examples = append(examples, signature.Example{
			Inputs: map[string]string{
				"profile_context": rendered,
				"request":         record.Request,
			},
			Outputs: IdeaFields(record.Ideas),
		})
	}
	return examples, nil
}

// IdeaFields maps ideas onto idea{N}_title, idea{N}_summary and idea{N}_pillar
func IdeaFields(ideas []VideoIdea) map[string]string {
	fields := make(map[string]string, len(ideas)*3)
	for i, idea := range ideas {
		n := i + 1
		fields[fmt.Sprintf("idea%d_title", n)] = idea.Title
		fields[fmt.Sprintf("idea%d_summary", n)] = idea.Summary
		fields[fmt.Sprintf("idea%d_pillar", n)] = idea.Pillar
	}
	return fields
}

// StandardizeIdeas checks a label holds exactly three complete ideas on known
// pillars and normalizes their casing and punctuation
func StandardizeIdeas(ideas []VideoIdea) ([]VideoIdea, error) {
	if len(ideas) != IdeasPerLabel {
		return nil, fmt.Errorf("each label must include exactly %d ideas", IdeasPerLabel)
	}

	out := make([]VideoIdea, 0, len(ideas))
	for i, idea := range ideas {
		std := VideoIdea{
			Title:   standardTitle(idea.Title),
			Summary: strings.TrimSuffix(strings.TrimSpace(idea.Summary), "."),
			Pillar:  StandardPillar(idea.Pillar),
		}
		if std.Title == "" || std.Summary == "" || std.Pillar == "" {
			return nil, fmt.Errorf("idea %d missing title/summary/pillar", i+1)
		}
		if !IsKnownPillar(std.Pillar) {
			return nil, fmt.Errorf("idea %d uses unknown pillar: %s", i+1, std.Pillar)
		}
		out = append(out, std)
	}
	return out, nil
}

// StandardPillar maps known spelling variants onto the canonical pillar name
func StandardPillar(pillar string) string {
	pillar = strings.TrimSpace(pillar)
	if canonical, ok := pillarVariants[pillar]; ok {
		return canonical
	}
	return pillar
}

// IsKnownPillar reports whether pillar is one of Pillars
func IsKnownPillar(pillar string) bool {
	for _, p := range Pillars {
		if p == pillar {
			return true
		}
	}
	return false
}

func standardTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return ""
	}
	r := []rune(title)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}

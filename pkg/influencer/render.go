package influencer

import (
	"fmt"
	"strings"
)

// RenderProfileContext summarizes a profile as prompt context. Sections
// without content are left out.
func RenderProfileContext(p *Profile) string {
	if p == nil {
		return ""
	}

	parts := []string{
		formatSection("Creator Identity", []string{
			"Name: " + p.Name,
			"Handle: " + p.Handle,
			"Niche: " + p.Niche,
			"Primary goal: " + p.Goals.Primary,
			"Secondary goals: " + strings.Join(p.Goals.Secondary, ", "),
			"Monetization: " + orDefault(p.Monetization, "N/A"),
		}),
	}

	audience := p.Audience
	if audience == nil {
		audience = &Audience{Persona: "N/A"}
	}
	parts = append(parts,
		formatSection("Audience", []string{
			"Persona: " + audience.Persona,
			"Pain points: " + strings.Join(audience.PainPoints, ", "),
			"Desired outcomes: " + strings.Join(audience.DesiredOutcomes, ", "),
		}),
		formatSection("Content Pillars", p.ContentPillars),
	)

	if ops := p.Operations; ops != nil {
		parts = append(parts, formatSection("Team", []string{
			"Owner: " + orDefault(ops.Owner, "N/A"),
			"Talent manager: " + orDefault(ops.TalentManager, "N/A"),
			"Strategist: " + orDefault(ops.Strategist, "N/A"),
			"Editor pod: " + orDefault(strings.Join(ops.EditorPod, ", "), "N/A"),
			"Key integrations: " + orDefault(strings.Join(ops.Integrations, ", "), "None"),
		}))
	}

	if c := p.Community; c != nil {
		parts = append(parts, formatSection("Community", []string{
			"Sentiment: " + orDefault(c.Sentiment, "N/A"),
			fmt.Sprintf("Pending replies: %d", c.PendingReplies),
			"Macros: " + orDefault(strings.Join(c.Macros, ", "), "None"),
		}))
	}

	if len(p.Experiments) > 0 {
		lines := make([]string, 0, len(p.Experiments))
		for _, exp := range p.Experiments {
			lines = append(lines, fmt.Sprintf("%s (%s): metric=%s", exp.Name, exp.Status, orDefault(exp.Metric, "N/A")))
		}
		parts = append(parts, formatSection("Experiments", lines))
	}

	if len(p.Risks) > 0 {
		parts = append(parts, formatSection("Risks", p.Risks))
	}

	kept := parts[:0]
	for _, part := range parts {
		if part != "" {
			kept = append(kept, part)
		}
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// formatSection renders "Title:\n- line\n" for the non-empty lines, or ""
func formatSection(title string, lines []string) string {
	var body []string
	for _, line := range lines {
		if line != "" {
			body = append(body, "- "+line)
		}
	}
	if len(body) == 0 {
		return ""
	}
	return title + ":\n" + strings.Join(body, "\n") + "\n"
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

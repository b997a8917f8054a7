package tuning

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ReportOptions describes the run for the report header
type ReportOptions struct {
	Metric            string
	SemanticThreshold float64
	NumCandidates     int
}

// WriteReport writes a Markdown before/after comparison of every example
func WriteReport(w io.Writer, result *Result, opts ReportOptions) error {
	var b strings.Builder
	b.WriteString("# Video Ideas Tuning Report\n\n")
	fmt.Fprintf(&b, "- Model: %s\n", result.Model)
	fmt.Fprintf(&b, "- Metric: %s\n", opts.Metric)
	if opts.Metric == "semantic" {
		fmt.Fprintf(&b, "- Semantic threshold: %s\n", strconv.FormatFloat(opts.SemanticThreshold, 'f', -1, 64))
	}
	fmt.Fprintf(&b, "- Candidates: %d\n", opts.NumCandidates)

	tuned := result.Tuned()
	for i, base := range result.Baseline {
		var after Evaluation
		if i < len(tuned.Evaluations) {
			after = tuned.Evaluations[i]
		}

		fmt.Fprintf(&b, "\n## Example %d\n\n", i+1)
		fmt.Fprintf(&b, "**Request**\n\n%s\n\n", strings.TrimSpace(base.Example.Inputs["request"]))
		fmt.Fprintf(&b, "**Expected (label)**\n\n%s\n\n", strings.Join(LinesFromFields(base.Example.Outputs), "\n"))
		fmt.Fprintf(&b, "**Baseline score:** %s\n\n", percent(base.Score))
		b.WriteString(fenced(base.Lines()) + "\n\n")
		fmt.Fprintf(&b, "**Tuned score:** %s\n\n", percent(after.Score))
		b.WriteString(fenced(after.Lines()) + "\n")
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func percent(score float64) string {
	return fmt.Sprintf("%.2f%%", score*100)
}

func fenced(lines []string) string {
	return "```\n" + strings.TrimSpace(strings.Join(lines, "\n")) + "\n```"
}

package guardrails

import (
	"context"
	"regexp"
	"strings"
)

// ContentFilter masks or blocks a list of words, matched case-insensitively on word boundaries
type ContentFilter struct {
	blockedWords []string
	action       Action
	regex        *regexp.Regexp
}

// NewContentFilter creates a new content filter guardrail
func NewContentFilter(blockedWords []string, action Action) *ContentFilter {
	quoted := make([]string, len(blockedWords))
	for i, w := range blockedWords {
		quoted[i] = regexp.QuoteMeta(w)
	}
	regex := regexp.MustCompile(`(?i)\b(` + strings.Join(quoted, "|") + `)\b`)

	return &ContentFilter{
		blockedWords: blockedWords,
		action:       action,
		regex:        regex,
	}
}

// Type returns the type of guardrail
func (c *ContentFilter) Type() GuardrailType {
	return ContentFilterGuardrail
}

// CheckRequest masks blocked words in a request
func (c *ContentFilter) CheckRequest(ctx context.Context, request string) (bool, string, error) {
	return c.mask(request)
}

// CheckResponse masks blocked words in a response
func (c *ContentFilter) CheckResponse(ctx context.Context, response string) (bool, string, error) {
	return c.mask(response)
}

// Describe explains a blocked value
func (c *ContentFilter) Describe(value string) string {
	return "Text contains blocked term: " + strings.ToLower(c.regex.FindString(value))
}

func (c *ContentFilter) mask(text string) (bool, string, error) {
	if len(c.blockedWords) == 0 || !c.regex.MatchString(text) {
		return false, text, nil
	}
	return true, c.regex.ReplaceAllString(text, "****"), nil
}

// Action returns the action to take when the guardrail is triggered
func (c *ContentFilter) Action() Action {
	return c.action
}

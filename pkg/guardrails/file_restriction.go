package guardrails

import (
	"context"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// FileRestriction rejects filenames that match none of the allowed glob patterns
type FileRestriction struct {
	patterns []string
	action   Action
}

// NewFileRestriction creates a new file restriction guardrail
func NewFileRestriction(patterns []string) *FileRestriction {
	return &FileRestriction{
		patterns: patterns,
		action:   BlockAction,
	}
}

// Type returns the type of guardrail
func (f *FileRestriction) Type() GuardrailType {
	return FileRestrictionGuardrail
}

// CheckRequest checks if a request violates the guardrail
func (f *FileRestriction) CheckRequest(ctx context.Context, request string) (bool, string, error) {
	// File restrictions apply to generated filenames, not requests
	return false, request, nil
}

// CheckResponse triggers when the filename is outside the allow-list
func (f *FileRestriction) CheckResponse(ctx context.Context, response string) (bool, string, error) {
	return !ValidateFilename(f.patterns, response), response, nil
}

// Action returns the action to take when the guardrail is triggered
func (f *FileRestriction) Action() Action {
	return f.action
}

// Describe explains a rejected filename
func (f *FileRestriction) Describe(value string) string {
	quoted := make([]string, len(f.patterns))
	for i, p := range f.patterns {
		quoted[i] = "'" + p + "'"
	}
	return "Filename does not match allowed patterns. Allowed: [" + strings.Join(quoted, ", ") + "], Got: " + value
}

// ValidateFilename reports whether filename matches any pattern, either as a
// whole-string glob where * crosses directories or as a path glob anchored at
// the right where each pattern segment, ** included, matches one directory.
// Absolute names and names that climb out with .. never match.
func ValidateFilename(patterns []string, filename string) bool {
	if !IsRelativeInside(filename) {
		return false
	}
	for _, pattern := range patterns {
		if wholeMatch(pattern, filename) || pathMatch(pattern, filename) {
			return true
		}
	}
	return false
}

// IsRelativeInside reports whether name is a relative path that stays inside
// the directory it is resolved against
func IsRelativeInside(name string) bool {
	if name == "" || strings.ContainsRune(name, '\\') {
		return false
	}
	if path.IsAbs(name) || filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return false
	}
	cleaned := path.Clean(name)
	return cleaned != ".." && !strings.HasPrefix(cleaned, "../")
}

func wholeMatch(pattern, name string) bool {
	re, err := regexp.Compile(translateGlob(pattern))
	if err != nil {
		return false
	}
	return re.MatchString(name)
}

// translateGlob converts a shell pattern into an anchored regular expression
func translateGlob(pattern string) string {
	var b strings.Builder
	b.WriteString(`(?s)^`)
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch c {
		case '*':
			b.WriteString(`.*`)
		case '?':
			b.WriteString(`.`)
		case '[':
			j := i + 1
			if j < len(pattern) && pattern[j] == '!' {
				j++
			}
			if j < len(pattern) && pattern[j] == ']' {
				j++
			}
			for j < len(pattern) && pattern[j] != ']' {
				j++
			}
			if j >= len(pattern) {
				b.WriteString(`\[`)
				continue
			}
			class := pattern[i+1 : j]
			if strings.HasPrefix(class, "!") {
				class = "^" + class[1:]
			} else if strings.HasPrefix(class, "^") {
				class = `\` + class
			}
			b.WriteString("[" + strings.ReplaceAll(class, `\`, `\\`) + "]")
			i = j
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	b.WriteString(`$`)
	return b.String()
}

func pathMatch(pattern, name string) bool {
	patternParts := splitPath(pattern)
	nameParts := splitPath(name)
	if len(patternParts) == 0 || len(nameParts) == 0 {
		return false
	}
	if strings.HasPrefix(pattern, "/") {
		if !strings.HasPrefix(name, "/") {
			return false
		}
		return matchSegments(patternParts, nameParts)
	}
	for start := len(nameParts) - 1; start >= 0; start-- {
		if matchSegments(patternParts, nameParts[start:]) {
			return true
		}
	}
	return false
}

func matchSegments(patternParts, nameParts []string) bool {
	if len(patternParts) == 0 {
		return len(nameParts) == 0
	}
	if len(nameParts) == 0 {
		return false
	}
	ok, err := path.Match(patternParts[0], nameParts[0])
	if err != nil || !ok {
		return false
	}
	return matchSegments(patternParts[1:], nameParts[1:])
}

func splitPath(p string) []string {
	var parts []string
	for _, part := range strings.Split(p, "/") {
		if part != "" && part != "." {
			parts = append(parts, part)
		}
	}
	return parts
}

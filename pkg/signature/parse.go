package signature

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnparseable is returned when a reply yields none of the output fields
var ErrUnparseable = errors.New("could not parse model output")

// Prediction maps output field names to their values
type Prediction map[string]string

// Get returns the trimmed value of a field, or ""
func (p Prediction) Get(name string) string {
	return strings.TrimSpace(p[name])
}

var (
	markerPattern = regexp.MustCompile(`\[\[ ## ([A-Za-z0-9_ ]+?) ## \]\]`)
	linePattern   = regexp.MustCompile(`^\s*\**([A-Za-z][A-Za-z0-9_ ]*?)\**\s*:\s*(.*)$`)
)

// Parse extracts output fields from a model reply. It accepts a JSON object,
// possibly fenced or surrounded by prose, and falls back to "[[ ## field ## ]]"
// sections or "field: value" lines.
func (s Signature) Parse(raw string) (Prediction, error) {
	if p, ok := s.parseJSON(raw); ok {
		return p, nil
	}
	if p, ok := s.parseMarkers(raw); ok {
		return p, nil
	}
	if p, ok := s.parseLines(raw); ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: expected fields %s", ErrUnparseable, strings.Join(s.OutputNames(), ", "))
}

func (s Signature) parseJSON(raw string) (Prediction, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, false
	}

	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &obj); err != nil {
		return nil, false
	}

	keys := make(map[string]interface{}, len(obj))
	for k, v := range obj {
		keys[fieldKey(k)] = v
	}

	p := Prediction{}
	found := false
	for _, f := range s.Outputs {
		v, ok := keys[fieldKey(f.Name)]
		if !ok {
			continue
		}
		found = true
		p[f.Name] = stringify(v)
	}
	return p, found
}

func (s Signature) parseMarkers(raw string) (Prediction, bool) {
	locs := markerPattern.FindAllStringSubmatchIndex(raw, -1)
	if len(locs) == 0 {
		return nil, false
	}

	p := Prediction{}
	found := false
	for i, loc := range locs {
		name, ok := s.outputName(raw[loc[2]:loc[3]])
		end := len(raw)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		if !ok {
			continue
		}
		found = true
		p[name] = strings.TrimSpace(raw[loc[1]:end])
	}
	return p, found
}

func (s Signature) parseLines(raw string) (Prediction, bool) {
	p := Prediction{}
	current := ""
	var buf []string
	flush := func() {
		if current != "" {
			p[current] = strings.TrimSpace(strings.Join(buf, "\n"))
		}
	}

	for _, line := range strings.Split(raw, "\n") {
		if m := linePattern.FindStringSubmatch(line); m != nil {
			if name, ok := s.outputName(m[1]); ok {
				flush()
				current = name
				buf = []string{m[2]}
				continue
			}
		}
		if current != "" {
			buf = append(buf, line)
		}
	}
	flush()
	return p, len(p) > 0
}

func (s Signature) outputName(label string) (string, bool) {
	key := fieldKey(label)
	for _, f := range s.Outputs {
		if fieldKey(f.Name) == key {
			return f.Name, true
		}
	}
	return "", false
}

func fieldKey(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

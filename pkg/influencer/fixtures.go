package influencer

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// DashboardRequest is the request the ideas UI starts with
const DashboardRequest = "Ideas that grow high-quality inbound leads"

// OfflineIdeas is the canned model reply used when no model is configured
// but a realistic round trip through the parser is still wanted
const OfflineIdeas = "1. Systems Sprint Recap - Share wins from recent workflow experiments | Behind-the-scenes ops\n" +
	"2. Creator Ops Playbook - Highlight packaged services and outcomes | Agency growth playbooks\n" +
	"3. Automation Toolkit Tour - Walk through the current AI stack | AI tooling deep dives"

// ErrUnknownFixture is returned for a fixture name that is not bundled
var ErrUnknownFixture = errors.New("unknown fixture")

//go:embed fixtures/*.json
var fixtureFS embed.FS

// Fixture is a bundled creator snapshot
type Fixture struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

// ListFixtures returns the bundled snapshots in name order, labelled
// "Name (handle)"
func ListFixtures() ([]Fixture, error) {
	entries, err := fs.Glob(fixtureFS, "fixtures/creator_snapshot*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list fixtures: %w", err)
	}
	sort.Strings(entries)

	fixtures := make([]Fixture, 0, len(entries))
	for _, entry := range entries {
		name := path.Base(entry)
		payload, err := LoadFixture(name)
		if err != nil {
			return nil, err
		}
		fixtures = append(fixtures, Fixture{Name: name, Label: fixtureLabel(name, payload)})
	}
	return fixtures, nil
}

// LoadFixture returns the raw snapshot document. The ".json" suffix is optional.
func LoadFixture(name string) (map[string]interface{}, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFixture, name)
	}
	if !strings.HasSuffix(name, ".json") {
		name += ".json"
	}

	data, err := fixtureFS.ReadFile("fixtures/" + name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownFixture, name)
		}
		return nil, fmt.Errorf("failed to read fixture %s: %w", name, err)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode fixture %s: %w", name, err)
	}
	return payload, nil
}

// LoadProfile builds the profile of a bundled snapshot
func LoadProfile(name string) (*Profile, error) {
	payload, err := LoadFixture(name)
	if err != nil {
		return nil, err
	}
	return NewBuilder().Build(payload)
}

func fixtureLabel(fileName string, payload map[string]interface{}) string {
	identity, _ := payload["creator_identity"].(map[string]interface{})

	name, _ := identity["name"].(string)
	if name == "" {
		stem := strings.TrimSuffix(fileName, ".json")
		name = strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(stem, "creator_snapshot", ""), "_", " "))
		if name == "" {
			name = stem
		}
	}

	handle, ok := identity["handle"].(string)
	if !ok {
		handle = "unknown"
	}
	return fmt.Sprintf("%s (%s)", name, handle)
}

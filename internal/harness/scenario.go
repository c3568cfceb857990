package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines one end-to-end patch run and what it must produce.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Options is the space-separated list of enabled options.
	Options string `yaml:"options,omitempty"`

	// Config is the configuration document, inline.
	Config yaml.Node `yaml:"config"`

	// Assignment is the optional assignment document, inline.
	Assignment yaml.Node `yaml:"assignment,omitempty"`

	// Scripts are the input maps.
	Scripts []ScriptSpec `yaml:"scripts"`

	// ExpectError is the error code the run must fail with. Empty means
	// the run must succeed.
	ExpectError string `yaml:"expect_error,omitempty"`

	// Assertions validate the patched maps and the journal.
	Assertions []Assertion `yaml:"assertions"`
}

// ScriptSpec is an input map written as command text.
type ScriptSpec struct {
	Map    string      `yaml:"map"`
	Events []EventSpec `yaml:"events"`
}

// EventSpec is an input event written as command text.
type EventSpec struct {
	ID       int64    `yaml:"id"`
	Commands []string `yaml:"commands"`
}

// Assertion is a single check against a scenario result.
type Assertion struct {
	// Type determines how the assertion is evaluated.
	// Supported: event_equals, event_contains, event_missing, edit_count
	Type string `yaml:"type"`

	// Map and Event locate the event (event_* assertions).
	Map   string `yaml:"map,omitempty"`
	Event int64  `yaml:"event,omitempty"`

	// Commands are the expected commands (event_equals, event_contains).
	Commands []string `yaml:"commands,omitempty"`

	// Source is the journal source prefix (edit_count).
	Source string `yaml:"source,omitempty"`
	// Kind restricts edit_count to one edit kind.
	Kind string `yaml:"kind,omitempty"`
	// Count is the expected number of edits (edit_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertEventEquals   = "event_equals"
	AssertEventContains = "event_contains"
	AssertEventMissing  = "event_missing"
	AssertEditCount     = "edit_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ParseScenario parses a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	// Reject unknown fields (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// configDocument re-encodes the inline configuration for config.Parse.
func (s *Scenario) configDocument() ([]byte, error) {
	return encodeNode(&s.Config)
}

// assignmentDocument re-encodes the inline assignment. It is empty when
// the scenario has none.
func (s *Scenario) assignmentDocument() ([]byte, error) {
	if s.Assignment.Kind == 0 {
		return nil, nil
	}
	return encodeNode(&s.Assignment)
}

func encodeNode(n *yaml.Node) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(n); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Config.Kind != yaml.MappingNode {
		return fmt.Errorf("config is required and must be a mapping")
	}
	if s.Assignment.Kind != 0 && s.Assignment.Kind != yaml.MappingNode {
		return fmt.Errorf("assignment must be a mapping")
	}
	if len(s.Scripts) == 0 {
		return fmt.Errorf("scripts list is required and must be non-empty")
	}
	if s.ExpectError == "" && len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required unless expect_error is set")
	}

	seen := make(map[string]bool)
	for i, sc := range s.Scripts {
		if sc.Map == "" {
			return fmt.Errorf("scripts[%d]: map is required", i)
		}
		if seen[sc.Map] {
			return fmt.Errorf("scripts[%d]: map %s given twice", i, sc.Map)
		}
		seen[sc.Map] = true
		ids := make(map[int64]bool)
		for j, ev := range sc.Events {
			if ids[ev.ID] {
				return fmt.Errorf("scripts[%d].events[%d]: event %d given twice", i, j, ev.ID)
			}
			ids[ev.ID] = true
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertEventEquals, AssertEventContains:
		if a.Map == "" {
			return fmt.Errorf("assertions[%d]: map is required for %s", index, a.Type)
		}
		if a.Type == AssertEventContains && len(a.Commands) == 0 {
			return fmt.Errorf("assertions[%d]: commands are required for event_contains", index)
		}
	case AssertEventMissing:
		if a.Map == "" {
			return fmt.Errorf("assertions[%d]: map is required for event_missing", index)
		}
	case AssertEditCount:
		if a.Source == "" {
			return fmt.Errorf("assertions[%d]: source is required for edit_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for edit_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

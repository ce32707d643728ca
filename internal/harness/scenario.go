package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario: a schema, the objects alive
// in it, the queries to analyze, and what is expected of them.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is the CUE source of the type definitions.
	Schema string `yaml:"schema"`

	// Revision is the revision queries are evaluated at. Defaults to 1.
	Revision int64 `yaml:"revision,omitempty"`

	// Objects are the object versions the queries run over.
	Objects []ObjectSpec `yaml:"objects,omitempty"`

	// Queries are analyzed in order.
	Queries []QuerySpec `yaml:"queries"`

	// Expect validates the analyses and evaluations of the queries.
	Expect []Expectation `yaml:"expect,omitempty"`
}

// ObjectSpec describes one object version on the trunk branch.
type ObjectSpec struct {
	// ID identifies the object; expectations and {$ref: id} values use it.
	ID    string         `yaml:"id"`
	Type  string         `yaml:"type"`
	Attrs map[string]any `yaml:"attrs,omitempty"`
	Flex  map[string]any `yaml:"flex,omitempty"`

	// RevMin and RevMax bound the alive revisions, both inclusive. They
	// default to 1 and the current revision.
	RevMin int64 `yaml:"revMin,omitempty"`
	RevMax int64 `yaml:"revMax,omitempty"`

	// Uncommitted marks objects created in an open transaction.
	Uncommitted bool `yaml:"uncommitted,omitempty"`
}

// QuerySpec is one named query document.
type QuerySpec struct {
	Name string `yaml:"name"`

	// Lenient tolerates accesses whose context has no single concrete type.
	Lenient bool `yaml:"lenient,omitempty"`

	// Params binds declared parameters. {$ref: id} values denote objects.
	Params map[string]any `yaml:"params,omitempty"`

	// Query is the query document, in the format of compiler.DecodeQuery.
	Query yaml.Node `yaml:"query"`
}

// Expectation checks one query. The fields used depend on Type.
type Expectation struct {
	// Type is one of the Expect* constants.
	Type string `yaml:"type"`

	// Query names the QuerySpec under test.
	Query string `yaml:"query"`

	// Diagnostics lists substrings of the expected diagnostics, one per
	// diagnostic, in order. Empty expects a clean analysis.
	Diagnostics []string `yaml:"diagnostics,omitempty"`

	// Object is the ID of the object tested by matches and contains.
	Object string `yaml:"object,omitempty"`

	// Want is the expected outcome of matches and contains.
	Want *bool `yaml:"want,omitempty"`

	// Results lists the IDs of the materialized objects. Ordered queries
	// compare in order.
	Results []string `yaml:"results,omitempty"`
}

// Expectation type constants.
const (
	ExpectDiagnostics = "diagnostics"
	ExpectMatches     = "matches"
	ExpectContains    = "contains"
	ExpectResults     = "results"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	if scenario.Revision == 0 {
		scenario.Revision = 1
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Schema == "" {
		return fmt.Errorf("schema is required")
	}
	if len(s.Queries) == 0 {
		return fmt.Errorf("queries list is required and must be non-empty")
	}
	if s.Revision < 0 {
		return fmt.Errorf("revision must be non-negative")
	}

	objects := make(map[string]bool, len(s.Objects))
	for i, obj := range s.Objects {
		if obj.ID == "" {
			return fmt.Errorf("objects[%d]: id is required", i)
		}
		if obj.Type == "" {
			return fmt.Errorf("objects[%d]: type is required", i)
		}
		if objects[obj.ID] {
			return fmt.Errorf("objects[%d]: duplicate id %q", i, obj.ID)
		}
		objects[obj.ID] = true
	}

	queries := make(map[string]bool, len(s.Queries))
	for i, q := range s.Queries {
		if q.Name == "" {
			return fmt.Errorf("queries[%d]: name is required", i)
		}
		if queries[q.Name] {
			return fmt.Errorf("queries[%d]: duplicate name %q", i, q.Name)
		}
		if q.Query.Kind == 0 {
			return fmt.Errorf("queries[%d]: query is required", i)
		}
		queries[q.Name] = true
	}

	for i := range s.Expect {
		if err := validateExpectation(i, &s.Expect[i], queries, objects); err != nil {
			return err
		}
	}
	return nil
}

// validateExpectation validates a single expectation based on its type.
func validateExpectation(index int, e *Expectation, queries, objects map[string]bool) error {
	if e.Type == "" {
		return fmt.Errorf("expect[%d]: type is required", index)
	}
	if !queries[e.Query] {
		return fmt.Errorf("expect[%d]: unknown query %q", index, e.Query)
	}

	switch e.Type {
	case ExpectDiagnostics, ExpectResults:
	case ExpectMatches, ExpectContains:
		if !objects[e.Object] {
			return fmt.Errorf("expect[%d]: unknown object %q for %s", index, e.Object, e.Type)
		}
		if e.Want == nil {
			return fmt.Errorf("expect[%d]: want is required for %s", index, e.Type)
		}
	default:
		return fmt.Errorf("expect[%d]: unknown expectation type %q", index, e.Type)
	}

	for _, id := range e.Results {
		if !objects[id] {
			return fmt.Errorf("expect[%d]: unknown object %q in results", index, id)
		}
	}
	return nil
}

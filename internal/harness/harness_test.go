package harness

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func loadZooScenario(t *testing.T) *Scenario {
	t.Helper()
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "zoo.yaml"))
	require.NoError(t, err)
	return scenario
}

func TestRun_ZooScenario(t *testing.T) {
	result, err := RunWithGolden(t, loadZooScenario(t))
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Queries, 6)
	assert.Equal(t, "Person", result.Queries[0].Type)
}

func TestRun_FailedExpectations(t *testing.T) {
	scenario := loadZooScenario(t)
	no := false
	scenario.Expect = []Expectation{
		{Type: ExpectResults, Query: "adults", Results: []string{"eve", "bob"}},
		{Type: ExpectMatches, Query: "adults", Object: "bob", Want: &no},
		{Type: ExpectDiagnostics, Query: "adults", Diagnostics: []string{"binder"}},
		{Type: ExpectResults, Query: "unknown"},
		{Type: ExpectMatches, Query: "unknown", Object: "bob", Want: &no},
		{Type: ExpectContains, Query: "bobsDogs", Object: "rex", Want: &no},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, len(scenario.Expect))

	assert.Equal(t, "expect[0] results adults: expected [eve, bob], got [bob, eve]", result.Errors[0])
	assert.Equal(t, "expect[1] matches adults: expected bob false, got true", result.Errors[1])
	assert.Equal(t, "expect[2] diagnostics adults: expected [binder], got none", result.Errors[2])
	assert.Contains(t, result.Errors[3], "query has 1 diagnostic(s)")
	assert.Contains(t, result.Errors[4], "query has 1 diagnostic(s)")
	assert.Equal(t, "expect[5] contains bobsDogs: expected rex false, got true", result.Errors[5])
}

func TestRun_UnorderedResultsIgnoreOrder(t *testing.T) {
	scenario := loadZooScenario(t)
	var spec QuerySpec
	require.NoError(t, yaml.Unmarshal([]byte(`
name: rOrT
lenient: true
query:
  search:
    where:
      source: {any: Animal}
      predicate: {match: {pattern: "^[RT]", value: {attr: Animal.name}}}
`), &spec))
	scenario.Queries = []QuerySpec{spec}
	scenario.Expect = []Expectation{
		{Type: ExpectResults, Query: "rOrT", Results: []string{"tom", "rex"}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
}

func TestRun_BrokenScenario(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Scenario)
		msg    string
	}{
		{
			name:   "schema",
			mutate: func(s *Scenario) { s.Schema = "type: A: extends: \"B\"" },
			msg:    "failed to compile schema",
		},
		{
			name:   "object type",
			mutate: func(s *Scenario) { s.Objects[0].Type = "Unicorn" },
			msg:    `object ann: unknown type "Unicorn"`,
		},
		{
			name:   "dangling reference",
			mutate: func(s *Scenario) { s.Objects[0].Attrs["pet"] = map[string]any{"$ref": "nobody"} },
			msg:    `object ann attrs: pet: $ref: unknown object "nobody"`,
		},
		{
			name:   "query document",
			mutate: func(s *Scenario) { s.Queries[0].Query.Content[0].Value = "find" },
			msg:    `query adults: `,
		},
		{
			name:   "parameter",
			mutate: func(s *Scenario) { s.Queries[0].Params["min"] = 1.5 },
			msg:    "query adults: params: min",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scenario := loadZooScenario(t)
			tt.mutate(scenario)
			_, err := Run(scenario)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestRun_WithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	_, err := Run(loadZooScenario(t), WithLogger(logger))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "query=adults")
	assert.Contains(t, buf.String(), "diagnostics=1")
}

func TestSnapshot(t *testing.T) {
	result := &Result{Queries: []QueryOutcome{
		{Name: "a", Type: "Person"},
		{Name: "b", Type: "<invalid>", Diagnostics: []string{"x", "y"}},
	}}
	assert.Equal(t, "query a: Person\n  ok\nquery b: <invalid>\n  x\n  y\n", string(Snapshot(result)))
}

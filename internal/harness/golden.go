package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot renders the analysis outcome of every query, one block per query
// in scenario order:
//
//	query adults: Person
//	  ok
//	query unknown: <invalid>
//	  [E130] binder: unknown type "Unicorn" at allOf(Unicorn)
func Snapshot(result *Result) []byte {
	var buf strings.Builder
	for _, q := range result.Queries {
		fmt.Fprintf(&buf, "query %s: %s\n", q.Name, q.Type)
		if len(q.Diagnostics) == 0 {
			buf.WriteString("  ok\n")
			continue
		}
		for _, d := range q.Diagnostics {
			fmt.Fprintf(&buf, "  %s\n", d)
		}
	}
	return []byte(buf.String())
}

// RunWithGolden executes a scenario and compares its diagnostics against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so that callers can check the expectations too.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, Snapshot(result))
	return result, nil
}

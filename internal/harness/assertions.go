package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/kquery/internal/eval"
	"github.com/roach88/kquery/internal/query"
	"github.com/roach88/kquery/internal/value"
)

// AssertionError is returned when an expectation fails.
type AssertionError struct {
	Type     string // Expectation type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("expected %s, got %s", e.Expected, e.Actual)
}

func (h *Harness) check(e Expectation) error {
	p := h.queries[e.Query]
	if p == nil {
		return fmt.Errorf("unknown query %q", e.Query)
	}

	switch e.Type {
	case ExpectDiagnostics:
		return assertDiagnostics(p, e.Diagnostics)
	case ExpectMatches:
		return h.assertMatches(p, e)
	case ExpectContains:
		return h.assertContains(p, e)
	case ExpectResults:
		return h.assertResults(p, e.Results)
	}
	return fmt.Errorf("unknown expectation type %q", e.Type)
}

// assertDiagnostics pairs each diagnostic with the substring at the same
// position.
func assertDiagnostics(p *prepared, want []string) error {
	var got []string
	for _, e := range p.analysis.Errors() {
		got = append(got, e.Error())
	}

	mismatch := len(got) != len(want)
	for i := 0; !mismatch && i < len(want); i++ {
		mismatch = !strings.Contains(got[i], want[i])
	}
	if !mismatch {
		return nil
	}
	return &AssertionError{
		Type:     ExpectDiagnostics,
		Expected: describe(want),
		Actual:   describe(got),
	}
}

// assertMatches evaluates the predicate of the outermost filter of the
// search against the object.
func (h *Harness) assertMatches(p *prepared, e Expectation) error {
	search, err := p.search()
	if err != nil {
		return err
	}
	filter, ok := search.(*query.Filter)
	if !ok {
		return fmt.Errorf("search is not a filter")
	}

	ok, err = eval.NewSimple(h.schema, h.objects).Matches(filter.Predicate, h.keys[e.Object], h.revision, p.params)
	if err != nil {
		return err
	}
	return assertBool(ExpectMatches, e, ok)
}

func (h *Harness) assertContains(p *prepared, e Expectation) error {
	search, err := p.search()
	if err != nil {
		return err
	}

	ok, err := eval.NewSimple(h.schema, h.objects).Contains(search, h.keys[e.Object], h.revision, p.params)
	if err != nil {
		return err
	}
	return assertBool(ExpectContains, e, ok)
}

func assertBool(kind string, e Expectation, got bool) error {
	if got == *e.Want {
		return nil
	}
	return &AssertionError{
		Type:     kind,
		Expected: fmt.Sprintf("%s %v", e.Object, *e.Want),
		Actual:   fmt.Sprintf("%v", got),
	}
}

// assertResults materializes the search. Unordered results are compared as
// sets of identifiers.
func (h *Harness) assertResults(p *prepared, want []string) error {
	if _, err := p.search(); err != nil {
		return err
	}

	elems, err := eval.NewMaterializer(h.schema, h.objects).Run(p.analysis.Query, h.revision, p.params, h.objects)
	if err != nil {
		return err
	}

	got := make([]string, 0, len(elems))
	for _, v := range elems {
		k, ok := v.(value.Key)
		if !ok {
			got = append(got, value.Format(v))
			continue
		}
		got = append(got, k.ID)
	}

	expected := slices.Clone(want)
	if !p.ordered() {
		slices.Sort(got)
		slices.Sort(expected)
	}
	if slices.Equal(got, expected) {
		return nil
	}
	return &AssertionError{
		Type:     ExpectResults,
		Expected: describe(expected),
		Actual:   describe(got),
	}
}

func describe(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return "[" + strings.Join(items, ", ") + "]"
}

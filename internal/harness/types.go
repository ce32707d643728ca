package harness

// QueryOutcome is what the harness observed for one query.
type QueryOutcome struct {
	Name string `json:"name"`

	// Type is the polymorphic element type of the search.
	Type string `json:"type"`

	// Diagnostics are the analysis problems, formatted with their codes.
	Diagnostics []string `json:"diagnostics,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expectation holds.
	Pass bool `json:"pass"`

	// Queries holds one outcome per query, in scenario order.
	Queries []QueryOutcome `json:"queries"`

	// Errors contains the failed expectations. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Queries: []QueryOutcome{},
		Errors:  []string{},
	}
}

// AddError adds a failed expectation and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

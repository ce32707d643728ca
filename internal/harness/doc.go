// Package harness runs query scenarios: it analyzes each query of a scenario
// against an inline schema and checks the expectations over in-memory
// objects.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: adults
//	description: "Adults and their dogs"
//	schema: |
//	  type: Person: {attributes: {name: string, age: int}, mandatory: ["name"]}
//	  type: Dog: attributes: owner: {ref: "Person", monomorphic: true}
//	revision: 2
//	objects:
//	  - {id: bob, type: Person, attrs: {name: Bob, age: 40}}
//	  - {id: rex, type: Dog, attrs: {owner: {$ref: bob}}, revMax: 1}
//	queries:
//	  - name: adults
//	    params: {min: 18}
//	    query:
//	      params: [{name: min, type: int}]
//	      search: {where: {source: {all: Person}, predicate: {ge: [{attr: Person.age}, {param: min}]}}}
//	expect:
//	  - {type: diagnostics, query: adults}
//	  - {type: matches, query: adults, object: bob, want: true}
//	  - {type: results, query: adults, results: [bob]}
//
// # Expectation Types
//
//   - diagnostics: substrings of the analysis diagnostics, in order; none
//     expects a clean analysis
//   - matches: the predicate of the outermost filter evaluated on an object
//   - contains: set membership of an object in the search
//   - results: the identifiers of the materialized search
//
// Evaluation runs over an eval.Memory holding the scenario objects, at the
// scenario revision. Golden files snapshot the diagnostics of every query.
package harness

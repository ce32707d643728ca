// Package diag collects the problems the analysis passes find in a query.
package diag

import (
	"fmt"
	"strings"

	"github.com/roach88/kquery/internal/printer"
	"github.com/roach88/kquery/internal/query"
)

// Sink receives analysis errors. Reporting never stops a pass.
type Sink interface {
	Errorf(n query.Node, format string, args ...any)
}

// Diagnostic is a single analysis error.
type Diagnostic struct {
	Pass    string     // pass that reported it, e.g. "binder"
	Node    query.Node // offending node; nil for query-level problems
	Message string
}

// String renders "pass: message at node".
func (d Diagnostic) String() string {
	var b strings.Builder
	if d.Pass != "" {
		b.WriteString(d.Pass)
		b.WriteString(": ")
	}
	b.WriteString(d.Message)
	if d.Node != nil {
		b.WriteString(" at ")
		b.WriteString(printer.String(d.Node))
	}
	return b.String()
}

// Diagnostics is an ordered collection of diagnostics for one compilation.
// It is not safe for concurrent use.
type Diagnostics struct {
	items []Diagnostic
}

// New creates an empty collection.
func New() *Diagnostics {
	return &Diagnostics{items: make([]Diagnostic, 0)}
}

// Errorf records an error without a pass name.
func (d *Diagnostics) Errorf(n query.Node, format string, args ...any) {
	d.add("", n, format, args...)
}

func (d *Diagnostics) add(pass string, n query.Node, format string, args ...any) {
	d.items = append(d.items, Diagnostic{
		Pass:    pass,
		Node:    n,
		Message: fmt.Sprintf(format, args...),
	})
}

// For returns a Sink that tags every diagnostic with pass.
func (d *Diagnostics) For(pass string) Sink {
	return passSink{d: d, pass: pass}
}

type passSink struct {
	d    *Diagnostics
	pass string
}

func (s passSink) Errorf(n query.Node, format string, args ...any) {
	s.d.add(s.pass, n, format, args...)
}

// HasErrors reports whether any diagnostic was recorded.
func (d *Diagnostics) HasErrors() bool {
	return len(d.items) > 0
}

// All returns the diagnostics in reporting order.
func (d *Diagnostics) All() []Diagnostic {
	return d.items
}

// Count returns the number of diagnostics.
func (d *Diagnostics) Count() int {
	return len(d.items)
}

// ByPass returns the diagnostics reported by pass.
func (d *Diagnostics) ByPass(pass string) []Diagnostic {
	var out []Diagnostic
	for _, item := range d.items {
		if item.Pass == pass {
			out = append(out, item)
		}
	}
	return out
}

// Messages returns the rendered diagnostics.
func (d *Diagnostics) Messages() []string {
	out := make([]string, len(d.items))
	for i, item := range d.items {
		out[i] = item.String()
	}
	return out
}

// Format returns one "error[file]: ..." line per diagnostic.
func (d *Diagnostics) Format(filename string) string {
	var b strings.Builder
	for i, item := range d.items {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "error[%s]: %s", filename, item.String())
	}
	return b.String()
}

// Discard is a Sink that drops everything.
var Discard Sink = discard{}

type discard struct{}

func (discard) Errorf(query.Node, string, ...any) {}

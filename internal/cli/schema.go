package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/kquery/internal/meta"
)

// TypeInfo describes one item type of the schema.
type TypeInfo struct {
	Name       string          `json:"name"`
	Super      string          `json:"super,omitempty"`
	Abstract   bool            `json:"abstract,omitempty"`
	Concrete   []string        `json:"concrete"`
	Attributes []AttributeInfo `json:"attributes,omitempty"`
}

// AttributeInfo describes an attribute declared by a type.
type AttributeInfo struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Reference   bool   `json:"reference,omitempty"`
	Monomorphic bool   `json:"monomorphic,omitempty"`
	Mandatory   bool   `json:"mandatory,omitempty"`
}

// SchemaInfo lists the types in declaration order.
type SchemaInfo struct {
	Types []TypeInfo `json:"types"`
}

// String renders the text output:
//
//	Dog extends Animal {Dog, Puppy}
//	  owner: ref Person monomorphic
func (s SchemaInfo) String() string {
	var b strings.Builder
	for i, t := range s.Types {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(t.Name)
		if t.Abstract {
			b.WriteString(" (abstract)")
		}
		if t.Super != "" {
			fmt.Fprintf(&b, " extends %s", t.Super)
		}
		fmt.Fprintf(&b, " {%s}", strings.Join(t.Concrete, ", "))
		for _, a := range t.Attributes {
			fmt.Fprintf(&b, "\n  %s: ", a.Name)
			if a.Reference {
				b.WriteString("ref ")
			}
			b.WriteString(a.Type)
			if a.Monomorphic {
				b.WriteString(" monomorphic")
			}
			if a.Mandatory {
				b.WriteString(" mandatory")
			}
		}
	}
	return b.String()
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the types of the schema",
		Long: `Compile the CUE schema and print every item type with its super type,
its concrete subtypes and the attributes it declares.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			dir, err := rootOpts.schema()
			if err != nil {
				return commandError(formatter, err)
			}
			schema, err := LoadSchema(dir)
			if err != nil {
				return commandError(formatter, err)
			}
			return formatter.Success(DescribeSchema(schema))
		},
	}
}

// DescribeSchema lists the item types of schema below the root type. Only
// declared attributes are listed; system attributes are omitted.
func DescribeSchema(schema *meta.Schema) SchemaInfo {
	info := SchemaInfo{Types: []TypeInfo{}}
	for _, c := range schema.Classes() {
		if c.Super() == nil {
			continue
		}
		t := TypeInfo{Name: c.Name(), Abstract: c.Abstract(), Concrete: []string{}}
		if super := c.Super(); super.Super() != nil {
			t.Super = super.Name()
		}
		for _, sub := range schema.ConcreteSubtypes(c).Slice() {
			t.Concrete = append(t.Concrete, sub.Name())
		}
		for _, a := range c.DeclaredAttributes() {
			if a.Name == meta.AttrRevMin || a.Name == meta.AttrRevMax {
				continue
			}
			t.Attributes = append(t.Attributes, AttributeInfo{
				Name:        a.Name,
				Type:        a.Type.Name(),
				Reference:   a.Reference,
				Monomorphic: a.Monomorphic,
				Mandatory:   a.Mandatory,
			})
		}
		info.Types = append(info.Types, t)
	}
	return info
}

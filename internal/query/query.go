package query

// OrderSpec sorts by the value of Expr.
type OrderSpec struct {
	Expr       Expression
	Descending bool
}

// OrderTuple sorts by several specs, most significant first.
type OrderTuple struct {
	Specs []*OrderSpec
}

func (*OrderSpec) node()  {}
func (*OrderTuple) node() {}

func (*OrderSpec) order()  {}
func (*OrderTuple) order() {}

// Count yields the number of elements of a group.
type Count struct {
	_ byte // non-zero size keeps node identities distinct
}

// Sum yields the sum of Expr over a group.
type Sum struct {
	Expr Expression
}

// Min yields the smallest value of Expr over a group.
type Min struct {
	Expr Expression
}

// Max yields the largest value of Expr over a group.
type Max struct {
	Expr Expression
}

func (*Count) node() {}
func (*Sum) node()   {}
func (*Min) node()   {}
func (*Max) node()   {}

func (*Count) function() {}
func (*Sum) function()   {}
func (*Min) function()   {}
func (*Max) function()   {}

// ParameterDeclaration declares a query parameter and its type.
type ParameterDeclaration struct {
	Name     string
	TypeName string
}

func (*ParameterDeclaration) node() {}

// RevisionQuery searches a single revision.
type RevisionQuery struct {
	Params []*ParameterDeclaration
	Search SetExpression
	Order  Order // nil for unordered results
}

// HistoryQuery searches across revisions. BranchParam and RevisionParam name
// implicitly declared int parameters carrying the requested branch and
// revision; either may be empty.
type HistoryQuery struct {
	BranchParam   string
	RevisionParam string
	Params        []*ParameterDeclaration
	Search        SetExpression
}

func (*RevisionQuery) node() {}
func (*HistoryQuery) node()  {}

func (*RevisionQuery) query() {}
func (*HistoryQuery) query()  {}

func (q *RevisionQuery) Parameters() []*ParameterDeclaration { return q.Params }
func (q *HistoryQuery) Parameters() []*ParameterDeclaration  { return q.Params }

func (q *RevisionQuery) SearchExpr() SetExpression { return q.Search }
func (q *HistoryQuery) SearchExpr() SetExpression  { return q.Search }

package domain

// Expression is the AST produced by the query-string parser. It is a closed
// tagged union: Term, Compound and Hierarchical are the only implementations.
type Expression interface {
	exprNode()
}

// Term is a leaf: literal text, a page/block reference or a regex pattern.
type Term struct {
	Text       string   `json:"text"`
	Kind       TermKind `json:"searchType"`
	RegexFlags string   `json:"regexFlags,omitempty"`
}

// Compound combines operands with a single AND or OR operator.
type Compound struct {
	Op       Combinator   `json:"operator"`
	Operands []Expression `json:"operands"`
}

// HierarchicalOp expresses an ancestor/descendant or bidirectional relation
// constraint between two sub-expressions.
type HierarchicalOp string

const (
	OpChild          HierarchicalOp = ">"
	OpParent         HierarchicalOp = "<"
	OpDescendants    HierarchicalOp = ">>"
	OpAncestors      HierarchicalOp = "<<"
	OpFlexChild      HierarchicalOp = "=>"
	OpFlexParent     HierarchicalOp = "<="
	OpDeepFlexChild  HierarchicalOp = "=>>"
	OpDeepFlexParent HierarchicalOp = "<<="
	OpBidirectional  HierarchicalOp = "<=>"
	OpDeepBidi       HierarchicalOp = "<<=>>"
)

// Descending reports whether the operator constrains descendants of the left
// operand (as opposed to ancestors).
func (op HierarchicalOp) Descending() bool {
	switch op {
	case OpChild, OpDescendants, OpFlexChild, OpDeepFlexChild:
		return true
	}
	return false
}

// Bidirectional reports whether the relation may hold in either direction.
func (op HierarchicalOp) Bidirectional() bool {
	return op == OpBidirectional || op == OpDeepBidi
}

// DefaultDepth is the traversal bound consumers apply when evaluating the
// relation. Deep variants reach further than directional ones.
func (op HierarchicalOp) DefaultDepth() int {
	switch op {
	case OpDescendants, OpAncestors, OpDeepFlexChild, OpDeepFlexParent, OpDeepBidi:
		return 5
	default:
		return 3
	}
}

// Hierarchical relates two sub-expressions through the block tree. The parser
// records MaxDepth; enforcing it is the consumer's job, not the parser's.
type Hierarchical struct {
	Op       HierarchicalOp `json:"operator"`
	Left     Expression     `json:"left"`
	Right    Expression     `json:"right"`
	MaxDepth int            `json:"maxDepth"`
}

func (Term) exprNode()         {}
func (Compound) exprNode()     {}
func (Hierarchical) exprNode() {}

package parser

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
)

type kindSet map[string]bool

func kinds(items ...string) kindSet {
	s := make(kindSet, len(items))
	for _, item := range items {
		s[item] = true
	}
	return s
}

func (s kindSet) union(other kindSet) kindSet {
	out := make(kindSet, len(s)+len(other))
	for k := range s {
		out[k] = true
	}
	for k := range other {
		out[k] = true
	}
	return out
}

// memberFields names the object and property fields of a member access node.
type memberFields struct {
	object   string
	property string
}

// dialect describes how one grammar spells the constructs the syntax model
// cares about. Kind sets are checked first; hooks refine what a node means.
type dialect struct {
	language string

	functions   kindSet
	classes     kindSet
	calls       kindSet
	loops       kindSet
	nesting     kindSet
	numbers     kindSet
	strings     kindSet
	literals    kindSet
	identifiers kindSet
	comments    kindSet
	opaque      kindSet
	unary       kindSet
	blocks      kindSet
	assignments kindSet

	// Node kind -> field holding its condition. Case kinds mark their value
	// as a comparison as well.
	conditionFields map[string]string
	cases           kindSet
	members         map[string]memberFields
	selfNames       []string

	functionName  func(x *extractor, n *sitter.Node) string
	classInfo     func(x *extractor, n *sitter.Node) (string, bool)
	params        func(x *extractor, fn *sitter.Node, method bool) []Param
	body          func(n *sitter.Node) *sitter.Node
	isComparison  func(x *extractor, n *sitter.Node) bool
	isConstant    func(x *extractor, n *sitter.Node) bool
	isInert       func(x *extractor, n *sitter.Node) bool
	isTemplate    func(n *sitter.Node) bool
	unbounded     func(x *extractor, n *sitter.Node) bool
	assignTargets func(x *extractor, n *sitter.Node) []*sitter.Node
	globalDecl    func(x *extractor, n *sitter.Node) []string
	localDecl     func(x *extractor, n *sitter.Node) []string
	moduleVars    func(x *extractor, root *sitter.Node) []string
	fieldDecl     func(x *extractor, n *sitter.Node) []string
	receiver      func(x *extractor, fn *sitter.Node) (typeName, name string)
}

var stringContentKinds = kinds(
	"string_content",
	"string_fragment",
	"escape_sequence",
	"interpreted_string_literal_content",
	"raw_string_literal_content",
)

func comparisonOperator(op string) bool {
	switch op {
	case "==", "===", "!=", "!==", "<", ">", "<=", ">=":
		return true
	}
	return false
}

// binaryComparison matches binary_expression nodes whose operator compares.
func binaryComparison(x *extractor, n *sitter.Node) bool {
	if n.Kind() != "binary_expression" {
		return false
	}
	op := n.ChildByFieldName("operator")
	return op != nil && comparisonOperator(x.text(op))
}

func fieldBody(n *sitter.Node) *sitter.Node {
	return n.ChildByFieldName("body")
}

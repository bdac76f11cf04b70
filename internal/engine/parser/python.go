package parser

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
)

func pythonDialect() *dialect {
	return &dialect{
		language:    "python",
		functions:   kinds("function_definition"),
		classes:     kinds("class_definition"),
		calls:       kinds("call"),
		loops:       kinds("for_statement", "while_statement"),
		nesting:     kinds("if_statement", "for_statement", "while_statement", "try_statement", "with_statement", "match_statement"),
		numbers:     kinds("integer", "float"),
		strings:     kinds("string"),
		literals:    kinds("concatenated_string", "true", "false", "none", "ellipsis"),
		identifiers: kinds("identifier"),
		comments:    kinds("comment"),
		opaque:      kinds("import_statement", "import_from_statement", "future_import_statement", "type"),
		unary:       kinds("unary_operator"),
		blocks:      kinds("block"),
		assignments: kinds("assignment", "augmented_assignment"),
		conditionFields: map[string]string{
			"if_statement":    "condition",
			"elif_clause":     "condition",
			"while_statement": "condition",
		},
		members:   map[string]memberFields{"attribute": {object: "object", property: "attribute"}},
		selfNames: []string{"self", "cls"},

		functionName: func(x *extractor, n *sitter.Node) string {
			return x.text(n.ChildByFieldName("name"))
		},
		classInfo: func(x *extractor, n *sitter.Node) (string, bool) {
			return x.text(n.ChildByFieldName("name")), true
		},
		params: pythonParams,
		body:   fieldBody,
		isComparison: func(_ *extractor, n *sitter.Node) bool {
			return n.Kind() == "comparison_operator"
		},
		isConstant: func(x *extractor, n *sitter.Node) bool {
			if n.Kind() != "assignment" {
				return false
			}
			left := n.ChildByFieldName("left")
			return left != nil && left.Kind() == "identifier" && isUpperSnake(x.text(left))
		},
		// Bare string statements are docstrings.
		isInert: func(_ *extractor, n *sitter.Node) bool {
			if n.Kind() != "expression_statement" || n.NamedChildCount() != 1 {
				return false
			}
			k := n.NamedChild(0).Kind()
			return k == "string" || k == "concatenated_string"
		},
		isTemplate: func(n *sitter.Node) bool {
			for i := uint(0); i < n.NamedChildCount(); i++ {
				if n.NamedChild(i).Kind() == "interpolation" {
					return true
				}
			}
			return false
		},
		unbounded: func(x *extractor, n *sitter.Node) bool {
			if n.Kind() != "while_statement" {
				return false
			}
			cond := compact(x.text(n.ChildByFieldName("condition")))
			return cond == "True" || cond == "1"
		},
		assignTargets: func(_ *extractor, n *sitter.Node) []*sitter.Node {
			return expandPattern(n.ChildByFieldName("left"), "pattern_list", "tuple_pattern", "list_pattern")
		},
		globalDecl: func(x *extractor, n *sitter.Node) []string {
			if n.Kind() != "global_statement" {
				return nil
			}
			var names []string
			for _, c := range namedChildren(n) {
				if c.Kind() == "identifier" {
					names = append(names, x.text(c))
				}
			}
			return names
		},
		fieldDecl: func(x *extractor, n *sitter.Node) []string {
			if n.Kind() != "assignment" {
				return nil
			}
			var names []string
			for _, target := range expandPattern(n.ChildByFieldName("left"), "pattern_list", "tuple_pattern") {
				if target.Kind() == "identifier" {
					names = append(names, x.text(target))
				}
			}
			return names
		},
	}
}

func pythonParams(x *extractor, fn *sitter.Node, method bool) []Param {
	var out []Param
	star := false
	for _, c := range namedChildren(fn.ChildByFieldName("parameters")) {
		var p Param
		switch c.Kind() {
		case "comment", "positional_separator":
			continue
		case "keyword_separator":
			star = true
			continue
		case "list_splat_pattern":
			p = Param{Name: splatName(x, c), Kind: ParamVariadic}
			star = true
		case "dictionary_splat_pattern":
			p = Param{Name: splatName(x, c), Kind: ParamKeywordVariadic}
		case "typed_parameter":
			inner := c.NamedChild(0)
			switch {
			case inner == nil:
				continue
			case inner.Kind() == "list_splat_pattern":
				p = Param{Name: splatName(x, inner), Kind: ParamVariadic}
				star = true
			case inner.Kind() == "dictionary_splat_pattern":
				p = Param{Name: splatName(x, inner), Kind: ParamKeywordVariadic}
			default:
				p = Param{Name: x.text(inner), Kind: ParamPositional}
			}
		case "default_parameter", "typed_default_parameter":
			value := c.ChildByFieldName("value")
			p = Param{Name: x.text(c.ChildByFieldName("name")), Kind: ParamPositional, HasDefault: value != nil}
			if value != nil {
				p.DefaultKind = value.Kind()
				p.DefaultText = x.text(value)
			}
		default:
			p = Param{Name: x.text(c), Kind: ParamPositional}
		}
		if p.Kind == ParamPositional && star {
			p.Kind = ParamKeywordOnly
		}
		out = append(out, p)
	}
	if method && len(out) > 0 && out[0].Kind == ParamPositional && (out[0].Name == "self" || out[0].Name == "cls") {
		out[0].Kind = ParamReceiver
	}
	return out
}

func splatName(x *extractor, n *sitter.Node) string {
	if inner := n.NamedChild(0); inner != nil {
		return x.text(inner)
	}
	return x.text(n)
}

// expandPattern flattens destructuring targets into their elements.
func expandPattern(n *sitter.Node, patternKinds ...string) []*sitter.Node {
	if n == nil {
		return nil
	}
	for _, k := range patternKinds {
		if n.Kind() == k {
			return namedChildren(n)
		}
	}
	return []*sitter.Node{n}
}

package parser

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

func goDialect() *dialect {
	return &dialect{
		language:    "go",
		functions:   kinds("function_declaration", "method_declaration", "func_literal"),
		classes:     kinds("type_spec"),
		calls:       kinds("call_expression"),
		loops:       kinds("for_statement"),
		nesting:     kinds("if_statement", "for_statement", "expression_switch_statement", "type_switch_statement", "select_statement"),
		numbers:     kinds("int_literal", "float_literal", "imaginary_literal"),
		strings:     kinds("interpreted_string_literal", "raw_string_literal"),
		literals:    kinds("rune_literal", "true", "false", "nil", "iota"),
		identifiers: kinds("identifier", "field_identifier", "type_identifier", "package_identifier", "label_name"),
		comments:    kinds("comment"),
		opaque:      kinds("import_declaration", "package_clause"),
		unary:       kinds("unary_expression"),
		blocks:      kinds("block", "statement_list"),
		assignments: kinds("assignment_statement", "inc_statement", "dec_statement"),
		conditionFields: map[string]string{
			"if_statement":    "condition",
			"for_clause":      "condition",
			"expression_case": "value",
		},
		cases:   kinds("expression_case"),
		members: map[string]memberFields{"selector_expression": {object: "operand", property: "field"}},

		functionName: func(x *extractor, n *sitter.Node) string {
			if name := n.ChildByFieldName("name"); name != nil {
				return x.text(name)
			}
			return "<anonymous>"
		},
		classInfo: func(x *extractor, n *sitter.Node) (string, bool) {
			typ := n.ChildByFieldName("type")
			if typ == nil || typ.Kind() != "struct_type" {
				return "", false
			}
			return x.text(n.ChildByFieldName("name")), true
		},
		params:       goParams,
		body:         fieldBody,
		isComparison: binaryComparison,
		isConstant: func(_ *extractor, n *sitter.Node) bool {
			return n.Kind() == "const_declaration"
		},
		unbounded: goUnbounded,
		assignTargets: func(_ *extractor, n *sitter.Node) []*sitter.Node {
			if n.Kind() == "assignment_statement" {
				return expandPattern(n.ChildByFieldName("left"), "expression_list")
			}
			if n.NamedChildCount() > 0 {
				return []*sitter.Node{n.NamedChild(0)}
			}
			return nil
		},
		localDecl:  goLocalDecl,
		moduleVars: goModuleVars,
		fieldDecl:  goFieldDecl,
		receiver:   goReceiver,
	}
}

func goParams(x *extractor, fn *sitter.Node, _ bool) []Param {
	var out []Param
	for _, c := range namedChildren(fn.ChildByFieldName("parameters")) {
		switch c.Kind() {
		case "parameter_declaration":
			names := identifierChildren(x, c)
			if len(names) == 0 {
				out = append(out, Param{Name: x.text(c.ChildByFieldName("type")), Kind: ParamPositional})
			}
			for _, name := range names {
				out = append(out, Param{Name: name, Kind: ParamPositional})
			}
		case "variadic_parameter_declaration":
			out = append(out, Param{Name: x.text(c.ChildByFieldName("name")), Kind: ParamVariadic})
		}
	}
	return out
}

func goReceiver(x *extractor, fn *sitter.Node) (string, string) {
	if fn.Kind() != "method_declaration" {
		return "", ""
	}
	var decl *sitter.Node
	for _, c := range namedChildren(fn.ChildByFieldName("receiver")) {
		if c.Kind() == "parameter_declaration" {
			decl = c
			break
		}
	}
	if decl == nil {
		return "", ""
	}
	var recv string
	if names := identifierChildren(x, decl); len(names) > 0 {
		recv = names[0]
	}
	typ := decl.ChildByFieldName("type")
	for typ != nil {
		switch typ.Kind() {
		case "pointer_type":
			typ = typ.NamedChild(0)
		case "generic_type":
			typ = typ.ChildByFieldName("type")
		default:
			return x.text(typ), recv
		}
	}
	return "", recv
}

func goUnbounded(x *extractor, n *sitter.Node) bool {
	var header []*sitter.Node
	for _, c := range namedChildren(n) {
		if c.Kind() == "block" || c.Kind() == "comment" {
			continue
		}
		header = append(header, c)
	}
	if len(header) == 0 {
		return true
	}
	if len(header) == 1 {
		h := header[0]
		if h.Kind() == "for_clause" {
			return h.ChildByFieldName("condition") == nil
		}
		return h.Kind() == "true"
	}
	return false
}

func goLocalDecl(x *extractor, n *sitter.Node) []string {
	switch n.Kind() {
	case "short_var_declaration":
		var names []string
		for _, t := range expandPattern(n.ChildByFieldName("left"), "expression_list") {
			if t.Kind() == "identifier" {
				names = append(names, x.text(t))
			}
		}
		return names
	case "var_spec", "const_spec":
		return identifierChildren(x, n)
	case "range_clause":
		var names []string
		for _, t := range expandPattern(n.ChildByFieldName("left"), "expression_list") {
			if t.Kind() == "identifier" {
				names = append(names, x.text(t))
			}
		}
		return names
	}
	return nil
}

func goModuleVars(x *extractor, root *sitter.Node) []string {
	var names []string
	for _, c := range namedChildren(root) {
		if c.Kind() != "var_declaration" {
			continue
		}
		for _, spec := range namedChildren(c) {
			switch spec.Kind() {
			case "var_spec":
				names = append(names, identifierChildren(x, spec)...)
			case "var_spec_list":
				for _, inner := range namedChildren(spec) {
					if inner.Kind() == "var_spec" {
						names = append(names, identifierChildren(x, inner)...)
					}
				}
			}
		}
	}
	return names
}

func goFieldDecl(x *extractor, n *sitter.Node) []string {
	if n.Kind() != "field_declaration" {
		return nil
	}
	var names []string
	for _, c := range namedChildren(n) {
		if c.Kind() == "field_identifier" {
			names = append(names, x.text(c))
		}
	}
	if len(names) > 0 {
		return names
	}
	// Embedded field: the type name is the field name.
	embedded := strings.TrimPrefix(x.text(n.ChildByFieldName("type")), "*")
	if idx := strings.LastIndex(embedded, "."); idx >= 0 {
		embedded = embedded[idx+1:]
	}
	return []string{embedded}
}

func identifierChildren(x *extractor, n *sitter.Node) []string {
	var names []string
	for _, c := range namedChildren(n) {
		if c.Kind() == "identifier" {
			names = append(names, x.text(c))
		}
	}
	return names
}

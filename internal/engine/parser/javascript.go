package parser

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
)

// javascriptDialect covers JavaScript and both TypeScript grammars, which
// share node names for everything outside type annotations.
func javascriptDialect(language string) *dialect {
	return &dialect{
		language: language,
		functions: kinds(
			"function_declaration", "generator_function_declaration",
			"function_expression", "function", "generator_function",
			"arrow_function", "method_definition",
		),
		classes:  kinds("class_declaration", "class", "abstract_class_declaration"),
		calls:    kinds("call_expression"),
		loops:    kinds("for_statement", "for_in_statement", "while_statement", "do_statement"),
		nesting:  kinds("if_statement", "for_statement", "for_in_statement", "while_statement", "do_statement", "try_statement", "switch_statement"),
		numbers:  kinds("number"),
		strings:  kinds("string"),
		literals: kinds("template_string", "regex", "true", "false", "null", "undefined"),
		identifiers: kinds(
			"identifier", "property_identifier", "shorthand_property_identifier",
			"shorthand_property_identifier_pattern", "private_property_identifier",
			"statement_identifier", "type_identifier",
		),
		comments: kinds("comment", "html_comment"),
		opaque: kinds(
			"import_statement", "type_annotation", "type_alias_declaration",
			"interface_declaration", "type_arguments", "type_parameters",
			"ambient_declaration", "enum_declaration",
		),
		unary:       kinds("unary_expression"),
		blocks:      kinds("statement_block"),
		assignments: kinds("assignment_expression", "augmented_assignment_expression", "update_expression"),
		conditionFields: map[string]string{
			"if_statement":       "condition",
			"while_statement":    "condition",
			"do_statement":       "condition",
			"for_statement":      "condition",
			"ternary_expression": "condition",
			"switch_case":        "value",
		},
		cases:     kinds("switch_case"),
		members:   map[string]memberFields{"member_expression": {object: "object", property: "property"}},
		selfNames: []string{"this"},

		functionName: javascriptFunctionName,
		classInfo: func(x *extractor, n *sitter.Node) (string, bool) {
			if name := n.ChildByFieldName("name"); name != nil {
				return x.text(name), true
			}
			return "<anonymous>", true
		},
		params:       javascriptParams,
		body:         fieldBody,
		isComparison: binaryComparison,
		isConstant: func(x *extractor, n *sitter.Node) bool {
			if n.Kind() != "variable_declarator" {
				return false
			}
			name := n.ChildByFieldName("name")
			return name != nil && name.Kind() == "identifier" && isUpperSnake(x.text(name))
		},
		// Directive prologues such as "use strict".
		isInert: func(_ *extractor, n *sitter.Node) bool {
			return n.Kind() == "expression_statement" && n.NamedChildCount() == 1 && n.NamedChild(0).Kind() == "string"
		},
		unbounded: javascriptUnbounded,
		assignTargets: func(_ *extractor, n *sitter.Node) []*sitter.Node {
			if n.Kind() == "update_expression" {
				return []*sitter.Node{n.ChildByFieldName("argument")}
			}
			return []*sitter.Node{n.ChildByFieldName("left")}
		},
		localDecl: func(x *extractor, n *sitter.Node) []string {
			if n.Kind() != "variable_declarator" {
				return nil
			}
			if name := n.ChildByFieldName("name"); name != nil && name.Kind() == "identifier" {
				return []string{x.text(name)}
			}
			return nil
		},
		moduleVars: javascriptModuleVars,
		fieldDecl: func(x *extractor, n *sitter.Node) []string {
			switch n.Kind() {
			case "field_definition":
				return []string{x.text(n.ChildByFieldName("property"))}
			case "public_field_definition":
				return []string{x.text(n.ChildByFieldName("name"))}
			}
			return nil
		},
	}
}

func javascriptFunctionName(x *extractor, n *sitter.Node) string {
	if name := n.ChildByFieldName("name"); name != nil {
		return x.text(name)
	}
	parent := n.Parent()
	if parent == nil {
		return "<anonymous>"
	}
	var field string
	switch parent.Kind() {
	case "variable_declarator", "public_field_definition":
		field = "name"
	case "assignment_expression":
		field = "left"
	case "pair":
		field = "key"
	case "field_definition":
		field = "property"
	}
	if field != "" {
		if target := parent.ChildByFieldName(field); target != nil {
			return compact(x.text(target))
		}
	}
	return "<anonymous>"
}

func javascriptParams(x *extractor, fn *sitter.Node, _ bool) []Param {
	list := fn.ChildByFieldName("parameters")
	if list == nil {
		if single := fn.ChildByFieldName("parameter"); single != nil {
			return []Param{{Name: x.text(single), Kind: ParamPositional}}
		}
		return nil
	}
	var out []Param
	for _, c := range namedChildren(list) {
		var p Param
		switch c.Kind() {
		case "comment", "decorator":
			continue
		case "assignment_pattern":
			p = Param{Name: x.text(c.ChildByFieldName("left")), Kind: ParamPositional}
			withDefault(x, &p, c.ChildByFieldName("right"))
		case "rest_pattern":
			p = Param{Name: splatName(x, c), Kind: ParamVariadic}
		case "required_parameter", "optional_parameter":
			pattern := c.ChildByFieldName("pattern")
			p = Param{Name: x.text(pattern), Kind: ParamPositional}
			if pattern != nil && pattern.Kind() == "rest_pattern" {
				p = Param{Name: splatName(x, pattern), Kind: ParamVariadic}
			}
			if p.Name == "this" {
				p.Kind = ParamReceiver
			}
			withDefault(x, &p, c.ChildByFieldName("value"))
		default:
			p = Param{Name: x.text(c), Kind: ParamPositional}
		}
		out = append(out, p)
	}
	return out
}

func withDefault(x *extractor, p *Param, value *sitter.Node) {
	if value == nil {
		return
	}
	p.HasDefault = true
	p.DefaultKind = value.Kind()
	p.DefaultText = x.text(value)
}

func javascriptUnbounded(x *extractor, n *sitter.Node) bool {
	cond := n.ChildByFieldName("condition")
	switch n.Kind() {
	case "while_statement", "do_statement":
		text := compact(x.text(cond))
		return text == "(true)" || text == "(1)"
	case "for_statement":
		if cond == nil {
			return true
		}
		text := compact(x.text(cond))
		return text == "" || text == ";" || text == "true;" || text == "true"
	}
	return false
}

// javascriptModuleVars collects top-level let/var bindings, which functions
// can rebind.
func javascriptModuleVars(x *extractor, root *sitter.Node) []string {
	var names []string
	for _, c := range namedChildren(root) {
		decl := c
		if c.Kind() == "export_statement" {
			decl = c.ChildByFieldName("declaration")
			if decl == nil {
				continue
			}
		}
		mutable := decl.Kind() == "variable_declaration" ||
			(decl.Kind() == "lexical_declaration" && decl.ChildCount() > 0 && decl.Child(0).Kind() == "let")
		if !mutable {
			continue
		}
		for _, d := range namedChildren(decl) {
			if d.Kind() != "variable_declarator" {
				continue
			}
			if name := d.ChildByFieldName("name"); name != nil && name.Kind() == "identifier" {
				names = append(names, x.text(name))
			}
		}
	}
	return names
}

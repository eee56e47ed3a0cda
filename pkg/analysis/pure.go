package analysis

import (
	ts "github.com/tree-sitter/go-tree-sitter"
)

// EstimatePure conservatively decides whether evaluating node is free of
// side effects. Unknown shapes are impure.
func EstimatePure(node *ts.Node) bool {
	if node == nil {
		return true
	}
	switch node.Kind() {
	case "number", "string", "true", "false", "null", "undefined", "regex",
		"identifier", "this", "private_property_identifier", "property_identifier",
		"arrow_function", "function_expression", "function", "generator_function",
		"comment":
		return true

	case "template_string":
		for i := uint(0); i < node.NamedChildCount(); i++ {
			child := node.NamedChild(i)
			if child.Kind() == "template_substitution" && !allPure(child) {
				return false
			}
		}
		return true

	case "member_expression":
		return EstimatePure(node.ChildByFieldName("object"))

	case "subscript_expression":
		return EstimatePure(node.ChildByFieldName("object")) && EstimatePure(node.ChildByFieldName("index"))

	case "unary_expression":
		if op := node.ChildByFieldName("operator"); op != nil && op.Kind() == "delete" {
			return false
		}
		return EstimatePure(node.ChildByFieldName("argument"))

	case "binary_expression":
		return EstimatePure(node.ChildByFieldName("left")) && EstimatePure(node.ChildByFieldName("right"))

	case "parenthesized_expression", "sequence_expression", "array",
		"as_expression", "satisfies_expression", "non_null_expression":
		return allPure(node)

	case "object":
		for i := uint(0); i < node.NamedChildCount(); i++ {
			child := node.NamedChild(i)
			switch child.Kind() {
			case "pair":
				key := child.ChildByFieldName("key")
				if key != nil && key.Kind() == "computed_property_name" && !allPure(key) {
					return false
				}
				if !EstimatePure(child.ChildByFieldName("value")) {
					return false
				}
			case "shorthand_property_identifier", "method_definition", "comment":
			default:
				return false
			}
		}
		return true
	}
	return false
}

func allPure(node *ts.Node) bool {
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child.Kind() == "type_annotation" || isTypeNode(child) {
			continue
		}
		if !EstimatePure(child) {
			return false
		}
	}
	return true
}

// isTypeNode reports whether node is a TypeScript type operand of an
// expression wrapper such as `x as T`.
func isTypeNode(node *ts.Node) bool {
	switch node.Kind() {
	case "type_identifier", "predefined_type", "generic_type", "object_type",
		"union_type", "intersection_type", "array_type", "tuple_type",
		"function_type", "literal_type", "nested_type_identifier", "type_arguments":
		return true
	}
	return false
}

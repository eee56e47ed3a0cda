// Package syntax provides tree-sitter node helpers and a lexical binding table
// for TypeScript and JavaScript sources.
package syntax

import (
	"strings"

	ts "github.com/tree-sitter/go-tree-sitter"
)

// Text returns the source text covered by node.
func Text(node *ts.Node, source []byte) string {
	if node == nil {
		return ""
	}
	return node.Utf8Text(source)
}

// Same reports whether a and b denote the same node of one tree.
func Same(a, b *ts.Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Id() == b.Id()
}

// Contains reports whether inner lies within outer's byte range.
func Contains(outer, inner *ts.Node) bool {
	return outer.StartByte() <= inner.StartByte() && inner.EndByte() <= outer.EndByte()
}

// IsField reports whether child is the node stored under field on parent.
func IsField(parent *ts.Node, field string, child *ts.Node) bool {
	if parent == nil {
		return false
	}
	return Same(parent.ChildByFieldName(field), child)
}

// HasToken reports whether node has a direct (anonymous or named) child of
// the given kind, e.g. "static", "async" or "?".
func HasToken(node *ts.Node, kind string) bool {
	for i := uint(0); i < node.ChildCount(); i++ {
		if node.Child(i).Kind() == kind {
			return true
		}
	}
	return false
}

// FindChild returns the first direct child of the given kind.
func FindChild(node *ts.Node, kind string) *ts.Node {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child.Kind() == kind {
			return child
		}
	}
	return nil
}

// NamedChildren returns the named children of node, skipping comments.
func NamedChildren(node *ts.Node) []*ts.Node {
	if node == nil {
		return nil
	}
	var out []*ts.Node
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child.Kind() == "comment" {
			continue
		}
		out = append(out, child)
	}
	return out
}

// Unparen strips parenthesized_expression wrappers.
func Unparen(node *ts.Node) *ts.Node {
	for node != nil && node.Kind() == "parenthesized_expression" {
		inner := firstNamed(node)
		if inner == nil {
			return node
		}
		node = inner
	}
	return node
}

// UnwrapExpr strips parentheses and TypeScript-only expression wrappers
// (as, satisfies, non-null assertion and angle-bracket assertions).
func UnwrapExpr(node *ts.Node) *ts.Node {
	for node != nil {
		switch node.Kind() {
		case "parenthesized_expression", "as_expression", "satisfies_expression", "non_null_expression":
			inner := firstNamed(node)
			if inner == nil {
				return node
			}
			node = inner
		case "type_assertion":
			kids := NamedChildren(node)
			if len(kids) == 0 {
				return node
			}
			node = kids[len(kids)-1]
		default:
			return node
		}
	}
	return node
}

func firstNamed(node *ts.Node) *ts.Node {
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child.Kind() != "comment" {
			return child
		}
	}
	return nil
}

// ParentSkippingParens returns the nearest ancestor that is not a
// parenthesized_expression, together with the child of that ancestor on the
// path to node.
func ParentSkippingParens(node *ts.Node) (parent, child *ts.Node) {
	child = node
	parent = node.Parent()
	for parent != nil && parent.Kind() == "parenthesized_expression" {
		child = parent
		parent = parent.Parent()
	}
	return parent, child
}

// StringValue returns the value of a plain string literal. Literals with
// escape sequences are rejected.
func StringValue(node *ts.Node, source []byte) (string, bool) {
	if node == nil || node.Kind() != "string" {
		return "", false
	}
	var sb strings.Builder
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		switch child.Kind() {
		case "string_fragment":
			sb.WriteString(child.Utf8Text(source))
		default:
			return "", false
		}
	}
	return sb.String(), true
}

// PropertyName returns the static name of a property key: identifiers,
// string and number literals, and computed keys holding a string literal.
// Private names and other computed keys have no static name.
func PropertyName(node *ts.Node, source []byte) (string, bool) {
	if node == nil {
		return "", false
	}
	switch node.Kind() {
	case "property_identifier", "identifier", "shorthand_property_identifier", "shorthand_property_identifier_pattern", "type_identifier":
		return node.Utf8Text(source), true
	case "string":
		return StringValue(node, source)
	case "number":
		return node.Utf8Text(source), true
	case "computed_property_name":
		inner := UnwrapExpr(firstNamed(node))
		if inner != nil && inner.Kind() == "string" {
			return StringValue(inner, source)
		}
	}
	return "", false
}

// MemberName returns the static property name accessed by a member or
// subscript expression.
func MemberName(node *ts.Node, source []byte) (string, bool) {
	switch node.Kind() {
	case "member_expression":
		prop := node.ChildByFieldName("property")
		if prop == nil || prop.Kind() != "property_identifier" {
			return "", false
		}
		return prop.Utf8Text(source), true
	case "subscript_expression":
		return StringValue(UnwrapExpr(node.ChildByFieldName("index")), source)
	}
	return "", false
}

// MemberObject returns the object operand of a member or subscript expression.
func MemberObject(node *ts.Node) *ts.Node {
	switch node.Kind() {
	case "member_expression", "subscript_expression":
		return node.ChildByFieldName("object")
	}
	return nil
}

// IsFunctionLike reports whether node introduces its own function scope.
func IsFunctionLike(node *ts.Node) bool {
	switch node.Kind() {
	case "function_declaration", "function_expression", "function",
		"generator_function", "generator_function_declaration",
		"arrow_function", "method_definition":
		return true
	}
	return false
}

// IsThisBoundary reports whether node rebinds `this` for its body.
func IsThisBoundary(node *ts.Node) bool {
	switch node.Kind() {
	case "function_declaration", "function_expression", "function",
		"generator_function", "generator_function_declaration",
		"method_definition", "class", "class_declaration", "abstract_class_declaration":
		return true
	}
	return false
}

// LineIndent returns the whitespace that precedes offset on its line, and
// whether only whitespace precedes it.
func LineIndent(source []byte, offset uint) (string, bool) {
	start := LineStart(source, offset)
	prefix := source[start:offset]
	for _, c := range prefix {
		if c != ' ' && c != '\t' {
			n := 0
			for n < len(prefix) && (prefix[n] == ' ' || prefix[n] == '\t') {
				n++
			}
			return string(prefix[:n]), false
		}
	}
	return string(prefix), true
}

// LineStart returns the offset of the first byte of the line holding offset.
func LineStart(source []byte, offset uint) uint {
	for offset > 0 && source[offset-1] != '\n' {
		offset--
	}
	return offset
}

// Line returns the 1-based line number of node.
func Line(node *ts.Node) int {
	return int(node.StartPosition().Row) + 1
}

package analysis

import (
	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/gnana997/declassify/pkg/syntax"
)

// DecompKind is the aliasing idiom found around a container expression.
type DecompKind int

const (
	// DecompNone: the container is used as a whole.
	DecompNone DecompKind = iota
	// DecompMember: `container.member`.
	DecompMember
	// DecompAlias: `const x = container.member`.
	DecompAlias
	// DecompDestructure: `const { a, b: c } = container`.
	DecompDestructure
)

// Alias is one local binding that stands for a member of a container.
type Alias struct {
	Member  string
	Ident   *ts.Node
	Binding *syntax.Binding
	// Default is the `= value` of a destructuring entry.
	Default *ts.Node
}

// Decomposition describes how a container expression is consumed by its
// immediate context.
type Decomposition struct {
	Kind DecompKind
	// Member and Access describe DecompMember and DecompAlias.
	Member string
	Access *ts.Node
	// Declarator is the variable_declarator of DecompAlias and
	// DecompDestructure.
	Declarator *ts.Node
	Aliases    []Alias
	// Full is set when every destructured entry is a plain name binding
	// that is never reassigned.
	Full bool
}

// Decompose inspects the immediate syntactic context of a container
// expression (`this.props`, `this.state` or a constructor parameter). It
// never mutates anything.
func Decompose(ctx *Context, expr *ts.Node) Decomposition {
	parent, child := syntax.ParentSkippingParens(expr)
	if parent == nil {
		return Decomposition{}
	}

	switch parent.Kind() {
	case "member_expression", "subscript_expression":
		if !syntax.IsField(parent, "object", child) {
			return Decomposition{}
		}
		name, ok := syntax.MemberName(parent, ctx.Source)
		if !ok {
			return Decomposition{}
		}
		d := Decomposition{Kind: DecompMember, Member: name, Access: parent}
		decl, val := syntax.ParentSkippingParens(parent)
		if decl == nil || decl.Kind() != "variable_declarator" || !syntax.IsField(decl, "value", val) || !isConstDeclarator(decl) {
			return d
		}
		ident := decl.ChildByFieldName("name")
		if ident == nil || ident.Kind() != "identifier" {
			return d
		}
		b := ctx.Table.BindingOf(ident)
		if b == nil || b.IsWritten() {
			return d
		}
		d.Kind = DecompAlias
		d.Declarator = decl
		d.Aliases = []Alias{{Member: name, Ident: ident, Binding: b}}
		d.Full = true
		return d

	case "variable_declarator":
		if !syntax.IsField(parent, "value", child) || !isConstDeclarator(parent) {
			return Decomposition{}
		}
		pattern := parent.ChildByFieldName("name")
		if pattern == nil || pattern.Kind() != "object_pattern" {
			return Decomposition{}
		}
		d := Decomposition{Kind: DecompDestructure, Declarator: parent, Full: true}
		for _, entry := range syntax.NamedChildren(pattern) {
			alias, ok := patternAlias(ctx, entry)
			if !ok {
				d.Full = false
				continue
			}
			if alias.Binding == nil || alias.Binding.IsWritten() {
				d.Full = false
			}
			d.Aliases = append(d.Aliases, alias)
		}
		return d
	}
	return Decomposition{}
}

// patternAlias reads one object_pattern entry of the forms `a`, `a = d`,
// `k: a` and `k: a = d`.
func patternAlias(ctx *Context, entry *ts.Node) (Alias, bool) {
	switch entry.Kind() {
	case "shorthand_property_identifier_pattern":
		return Alias{Member: ctx.text(entry), Ident: entry, Binding: ctx.Table.BindingOf(entry)}, true

	case "object_assignment_pattern":
		left := entry.ChildByFieldName("left")
		if left == nil || left.Kind() != "shorthand_property_identifier_pattern" {
			return Alias{}, false
		}
		return Alias{
			Member:  ctx.text(left),
			Ident:   left,
			Binding: ctx.Table.BindingOf(left),
			Default: entry.ChildByFieldName("right"),
		}, true

	case "pair_pattern":
		key, ok := syntax.PropertyName(entry.ChildByFieldName("key"), ctx.Source)
		if !ok {
			return Alias{}, false
		}
		value := entry.ChildByFieldName("value")
		var def *ts.Node
		if value != nil && value.Kind() == "assignment_pattern" {
			def = value.ChildByFieldName("right")
			value = value.ChildByFieldName("left")
		}
		if value == nil || value.Kind() != "identifier" {
			return Alias{}, false
		}
		return Alias{Member: key, Ident: value, Binding: ctx.Table.BindingOf(value), Default: def}, true
	}
	return Alias{}, false
}

func isConstDeclarator(decl *ts.Node) bool {
	parent := decl.Parent()
	if parent == nil || parent.Kind() != "lexical_declaration" {
		return false
	}
	if k := parent.ChildByFieldName("kind"); k != nil {
		return k.Kind() == "const"
	}
	return syntax.HasToken(parent, "const")
}

// isImmediatelyCalled reports whether expr is the callee of a call.
func isImmediatelyCalled(expr *ts.Node) bool {
	parent, child := syntax.ParentSkippingParens(expr)
	return parent != nil && parent.Kind() == "call_expression" && syntax.IsField(parent, "function", child)
}

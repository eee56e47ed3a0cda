package analysis

import (
	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/gnana997/declassify/pkg/syntax"
)

// Library names the UI library whose components are converted.
type Library struct {
	// Source is the module specifier, e.g. "react".
	Source string
	// Global is the global namespace identifier, e.g. "React".
	Global string
}

// DefaultLibrary returns the React library configuration.
func DefaultLibrary() Library {
	return Library{Source: "react", Global: "React"}
}

// Context carries the per-file inputs shared by every pass.
type Context struct {
	Source  []byte
	Table   *syntax.Table
	Typed   bool
	Library Library
}

// NewContext creates an analysis context for one parsed file.
func NewContext(source []byte, table *syntax.Table, typed bool) *Context {
	return &Context{Source: source, Table: table, Typed: typed, Library: DefaultLibrary()}
}

func (c *Context) text(node *ts.Node) string {
	return syntax.Text(node, c.Source)
}

// RefKind tells how a library symbol is reached.
type RefKind int

const (
	RefNamed RefKind = iota
	RefDefault
	RefNamespace
	RefGlobal
)

// LibRef is a resolved reference to an imported or global symbol.
type LibRef struct {
	Kind RefKind
	// Source is the module specifier for import-based references.
	Source string
	// Namespace is the local namespace identifier for member references.
	Namespace string
	// Name is the referenced symbol.
	Name string
}

// ResolveLibRef resolves expr to an imported or global symbol. It reports
// false for anything that is not an import-bound identifier or a member of
// an import namespace or unresolved global.
func (c *Context) ResolveLibRef(expr *ts.Node) (LibRef, bool) {
	expr = syntax.UnwrapExpr(expr)
	if expr == nil {
		return LibRef{}, false
	}
	switch expr.Kind() {
	case "identifier":
		b := c.Table.BindingOf(expr)
		if b == nil || b.Import == nil {
			return LibRef{}, false
		}
		switch b.Import.Kind {
		case syntax.ImportNamed:
			return LibRef{Kind: RefNamed, Source: b.Import.Source, Name: b.Import.Imported}, true
		case syntax.ImportDefault:
			return LibRef{Kind: RefDefault, Source: b.Import.Source, Name: b.Name}, true
		}
		return LibRef{}, false

	case "member_expression", "subscript_expression":
		name, ok := syntax.MemberName(expr, c.Source)
		if !ok {
			return LibRef{}, false
		}
		obj := syntax.UnwrapExpr(syntax.MemberObject(expr))
		if obj == nil || obj.Kind() != "identifier" {
			return LibRef{}, false
		}
		ns := c.text(obj)
		b := c.Table.BindingOf(obj)
		if b == nil {
			return LibRef{Kind: RefGlobal, Namespace: ns, Name: name}, true
		}
		if b.Import == nil {
			return LibRef{}, false
		}
		switch b.Import.Kind {
		case syntax.ImportNamespace:
			return LibRef{Kind: RefNamespace, Source: b.Import.Source, Namespace: ns, Name: name}, true
		case syntax.ImportDefault:
			return LibRef{Kind: RefDefault, Source: b.Import.Source, Namespace: ns, Name: name}, true
		}
	}
	return LibRef{}, false
}

// IsLibrary reports whether ref belongs to the configured UI library.
func (c *Context) IsLibrary(ref LibRef) bool {
	if ref.Kind == RefGlobal {
		return ref.Namespace == c.Library.Global
	}
	return ref.Source == c.Library.Source
}

// LibrarySymbol returns the library symbol expr denotes, if any.
func (c *Context) LibrarySymbol(expr *ts.Node) (string, bool) {
	ref, ok := c.ResolveLibRef(expr)
	if !ok || !c.IsLibrary(ref) {
		return "", false
	}
	return ref.Name, true
}

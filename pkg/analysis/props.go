package analysis

import (
	ts "github.com/tree-sitter/go-tree-sitter"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/gnana997/declassify/pkg/syntax"
)

// PropSite is a `this.props.x` access (or `props.x` on the constructor
// parameter).
type PropSite struct {
	// Expr is the member access replaced by the prop's local or by
	// `props.x`.
	Expr  *ts.Node
	Owner string
	// Called is set when the access is immediately invoked.
	Called bool
	// Decompose routes the site through the destructured local instead of
	// a member access on the props parameter.
	Decompose bool
}

// PropAlias is a local binding that already stands for a prop.
type PropAlias struct {
	Ident   *ts.Node
	Binding *syntax.Binding
	Owner   string
}

// PropField is one logical prop.
type PropField struct {
	Name    string
	Sites   []*PropSite
	Aliases []*PropAlias
	Default *ts.Node
	Sig     *TypeSig
}

// NeedsAlias reports whether the prop is bound by the props destructuring.
func (p *PropField) NeedsAlias() bool {
	if len(p.Aliases) > 0 {
		return true
	}
	for _, s := range p.Sites {
		if s.Decompose {
			return true
		}
	}
	return false
}

// WholeProps is a use of the props container itself.
type WholeProps struct {
	Expr  *ts.Node
	Owner string
}

// PropsAnalysis is the per-prop model of `this.props`.
type PropsAnalysis struct {
	Fields      *orderedmap.OrderedMap[string, *PropField]
	Wholes      []*WholeProps
	HasDefaults bool
	// DefaultsSite is the `static defaultProps = {...}` declaration.
	DefaultsSite *FieldSite
}

func (a *PropsAnalysis) field(name string) *PropField {
	if f, ok := a.Fields.Get(name); ok {
		return f
	}
	f := &PropField{Name: name}
	a.Fields.Set(name, f)
	return f
}

// UsesWhole reports whether owner uses the props container as a value.
func (a *PropsAnalysis) UsesWhole(owner string) bool {
	for _, w := range a.Wholes {
		if w.Owner == owner {
			return true
		}
	}
	return false
}

// Used reports whether the component reads props at all.
func (a *PropsAnalysis) Used() bool {
	if len(a.Wholes) > 0 {
		return true
	}
	for pair := a.Fields.Oldest(); pair != nil; pair = pair.Next() {
		if len(pair.Value.Sites) > 0 || len(pair.Value.Aliases) > 0 {
			return true
		}
	}
	return false
}

// AnalyzeProps splits `this.props` into props and reconciles defaults.
// Immediately invoked prop accesses are decomposed eagerly so that a
// memoized callback depends on the prop itself rather than on `props`.
func AnalyzeProps(ctx *Context, head *Head, fields *ClassFields, lm *LocalManager) (*PropsAnalysis, error) {
	a := &PropsAnalysis{Fields: orderedmap.New[string, *PropField]()}

	if sites, ok := fields.Static.Get("defaultProps"); ok {
		for _, s := range sites {
			if s.Init == nil {
				continue
			}
			a.DefaultsSite = s
			obj := syntax.UnwrapExpr(s.Init.Value)
			if obj == nil || obj.Kind() != "object" {
				return nil, fail(s.Member, "Non-analyzable defaultProps")
			}
			for _, prop := range syntax.NamedChildren(obj) {
				name, value, err := objectEntry(ctx, prop, "Non-analyzable defaultProps")
				if err != nil {
					return nil, err
				}
				f := a.field(name)
				if f.Default != nil {
					return nil, fail(prop, "Duplicate default for %s", name)
				}
				f.Default = value
				a.HasDefaults = true
			}
		}
	}

	for _, s := range fields.Sites("props") {
		if s.Kind == SiteDecl {
			return nil, fail(s.Member, "Cannot declare props as a field")
		}
		if s.Write {
			return nil, fail(s.Expr, "Cannot assign to props")
		}
		d := Decompose(ctx, s.Expr)
		switch {
		case d.Kind == DecompMember:
			if syntax.IsWriteTarget(d.Access) {
				return nil, fail(d.Access, "Cannot assign to prop %s", d.Member)
			}
			f := a.field(d.Member)
			f.Sites = append(f.Sites, &PropSite{Expr: d.Access, Owner: s.Owner, Called: isImmediatelyCalled(d.Access)})

		case (d.Kind == DecompAlias || d.Kind == DecompDestructure) && d.Full && !hasDefaults(d.Aliases):
			for _, alias := range d.Aliases {
				f := a.field(alias.Member)
				f.Aliases = append(f.Aliases, &PropAlias{Ident: alias.Ident, Binding: alias.Binding, Owner: s.Owner})
				lm.MarkRemoved(alias.Ident)
			}

		default:
			if a.HasDefaults {
				return nil, fail(s.Expr, "Non-analyzable props access with defaultProps")
			}
			a.Wholes = append(a.Wholes, &WholeProps{Expr: s.Expr, Owner: s.Owner})
		}
	}

	for pair := a.Fields.Oldest(); pair != nil; pair = pair.Next() {
		f := pair.Value
		for _, site := range f.Sites {
			site.Decompose = a.HasDefaults || site.Called || len(f.Aliases) > 0
		}
		if head.PropTypes != nil {
			if sig, ok := head.PropTypes.Get(f.Name); ok {
				f.Sig = sig
			}
		}
	}
	return a, nil
}

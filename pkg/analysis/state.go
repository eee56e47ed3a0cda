package analysis

import (
	ts "github.com/tree-sitter/go-tree-sitter"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/gnana997/declassify/pkg/syntax"
)

// StateSiteKind classifies the uses of a state cell.
type StateSiteKind int

const (
	StateInit StateSiteKind = iota
	StateRead
	StateUpdate
)

// StateSite is one use of a state cell.
type StateSite struct {
	Kind  StateSiteKind
	Owner string
	// Expr is the expression replaced by the cell's local: a `this.state.x`
	// access or a reference to a removed alias. Read sites only.
	Expr *ts.Node
	// Call is the `this.setState({...})` call and Value the new value.
	// Update sites only.
	Call  *ts.Node
	Value *ts.Node
}

// StateField is one logical state cell.
type StateField struct {
	Name     string
	Init     *ts.Node
	InitPure bool
	Sig      *TypeSig
	Sites    []*StateSite
}

// FunctionValued reports whether the cell holds a function, which needs
// the lazy forms of the state hook and its setter.
func (s *StateField) FunctionValued() bool {
	if s.Sig != nil && s.Sig.Method {
		return true
	}
	if s.Init == nil {
		return false
	}
	switch syntax.UnwrapExpr(s.Init).Kind() {
	case "arrow_function", "function_expression", "function":
		return true
	}
	return false
}

// ReadBy reports whether owner reads the cell.
func (s *StateField) ReadBy(owner string) bool {
	for _, site := range s.Sites {
		if site.Kind == StateRead && site.Owner == owner {
			return true
		}
	}
	return false
}

// WholeState is a `this.state` occurrence consumed by a partial
// destructuring; it is replaced by an object literal of every cell.
type WholeState struct {
	Expr  *ts.Node
	Owner string
}

// StateAnalysis is the per-cell model of `this.state`.
type StateAnalysis struct {
	Fields *orderedmap.OrderedMap[string, *StateField]
	// InitSite is the declaration holding the state object, if any.
	InitSite *FieldSite
	// DeclSites are the other `state` declarations (type-only fields).
	DeclSites []*FieldSite
	Wholes    []*WholeState
}

func (a *StateAnalysis) field(name string) *StateField {
	if f, ok := a.Fields.Get(name); ok {
		return f
	}
	f := &StateField{Name: name}
	a.Fields.Set(name, f)
	return f
}

// ReadsWhole reports whether owner consumes the whole state object.
func (a *StateAnalysis) ReadsWhole(owner string) bool {
	for _, w := range a.Wholes {
		if w.Owner == owner {
			return true
		}
	}
	return false
}

// AnalyzeState splits `this.state` into cells. Fully decomposed aliases
// are expanded to their references and scheduled for removal.
func AnalyzeState(ctx *Context, head *Head, fields *ClassFields, lm *LocalManager) (*StateAnalysis, error) {
	a := &StateAnalysis{Fields: orderedmap.New[string, *StateField]()}
	types := head.StateTypes

	for _, s := range fields.Sites("state") {
		if s.Kind == SiteDecl {
			if types == nil && s.Type != nil {
				types, _ = resolveTypeMembers(ctx, head.Class, s.Type)
			}
			if s.Init == nil {
				a.DeclSites = append(a.DeclSites, s)
				continue
			}
			a.InitSite = s
			if err := a.analyzeInit(ctx, s); err != nil {
				return nil, err
			}
			continue
		}
		if s.Write {
			return nil, fail(s.Expr, "Cannot assign to this.state")
		}
		d := Decompose(ctx, s.Expr)
		switch d.Kind {
		case DecompMember:
			if syntax.IsWriteTarget(d.Access) {
				return nil, fail(d.Access, "Cannot assign to state field %s", d.Member)
			}
			f := a.field(d.Member)
			f.Sites = append(f.Sites, &StateSite{Kind: StateRead, Owner: s.Owner, Expr: d.Access})

		case DecompAlias, DecompDestructure:
			if !d.Full || hasDefaults(d.Aliases) {
				if d.Kind == DecompAlias {
					panic(internalf("alias decomposition is always full"))
				}
				a.Wholes = append(a.Wholes, &WholeState{Expr: s.Expr, Owner: s.Owner})
				continue
			}
			for _, alias := range d.Aliases {
				f := a.field(alias.Member)
				for _, ref := range alias.Binding.Refs {
					f.Sites = append(f.Sites, &StateSite{Kind: StateRead, Owner: s.Owner, Expr: ref})
				}
				lm.MarkRemoved(alias.Ident)
			}

		default:
			return nil, fail(s.Expr, "Non-analyzable this.state")
		}
	}

	for _, s := range fields.Sites("setState") {
		if s.Kind == SiteDecl {
			return nil, fail(s.Member, "Cannot redeclare setState")
		}
		if err := a.analyzeUpdate(ctx, s); err != nil {
			return nil, err
		}
	}

	if len(a.Wholes) > 0 && a.Fields.Len() == 0 {
		return nil, fail(a.Wholes[0].Expr, "Non-analyzable this.state")
	}

	if types != nil {
		for pair := a.Fields.Oldest(); pair != nil; pair = pair.Next() {
			if sig, ok := types.Get(pair.Key); ok {
				pair.Value.Sig = sig
			}
		}
	}
	return a, nil
}

func hasDefaults(aliases []Alias) bool {
	for _, a := range aliases {
		if a.Default != nil {
			return true
		}
	}
	return false
}

func (a *StateAnalysis) analyzeInit(ctx *Context, s *FieldSite) error {
	if s.Init.Kind != InitValue {
		return fail(s.Member, "Non-object state initializer")
	}
	obj := syntax.UnwrapExpr(s.Init.Value)
	if obj == nil || obj.Kind() != "object" {
		return fail(s.Init.Value, "Non-object state initializer")
	}
	for _, prop := range syntax.NamedChildren(obj) {
		name, value, err := objectEntry(ctx, prop, "Non-analyzable state initializer")
		if err != nil {
			return err
		}
		f := a.field(name)
		if f.Init != nil {
			return fail(prop, "Duplicate state initializer for %s", name)
		}
		f.Init = value
		f.InitPure = EstimatePure(value)
		f.Sites = append(f.Sites, &StateSite{Kind: StateInit, Owner: "state", Value: value})
	}
	return nil
}

func (a *StateAnalysis) analyzeUpdate(ctx *Context, s *FieldSite) error {
	if s.Write {
		return fail(s.Expr, "Cannot assign to setState")
	}
	call, child := syntax.ParentSkippingParens(s.Expr)
	if call == nil || call.Kind() != "call_expression" || !syntax.IsField(call, "function", child) {
		return fail(s.Expr, "Non-analyzable setState")
	}
	args := syntax.NamedChildren(call.ChildByFieldName("arguments"))
	if len(args) != 1 {
		return fail(call, "setState must be called with exactly one argument")
	}
	obj := syntax.UnwrapExpr(args[0])
	if obj == nil || obj.Kind() != "object" {
		return fail(args[0], "Non-object setState argument")
	}
	props := syntax.NamedChildren(obj)
	if len(props) != 1 {
		return fail(obj, "Multiple-field setState is not supported")
	}
	name, value, err := objectEntry(ctx, props[0], "Non-analyzable setState argument")
	if err != nil {
		return err
	}
	f := a.field(name)
	f.Sites = append(f.Sites, &StateSite{Kind: StateUpdate, Owner: s.Owner, Call: call, Value: value})
	return nil
}

// objectEntry reads a `key: value` or shorthand entry of an object literal.
func objectEntry(ctx *Context, prop *ts.Node, msg string) (string, *ts.Node, error) {
	switch prop.Kind() {
	case "pair":
		name, ok := syntax.PropertyName(prop.ChildByFieldName("key"), ctx.Source)
		if !ok {
			return "", nil, fail(prop, "%s", msg)
		}
		return name, prop.ChildByFieldName("value"), nil
	case "shorthand_property_identifier":
		return ctx.text(prop), prop, nil
	}
	return "", nil, fail(prop, "%s", msg)
}

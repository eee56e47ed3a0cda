package analysis

import (
	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/gnana997/declassify/pkg/syntax"
)

// Effects holds the lifecycle methods emitted as effects.
type Effects struct {
	DidMount    *ts.Node
	DidUpdate   *ts.Node
	WillUnmount *ts.Node
}

// Empty reports whether the class has no lifecycle methods.
func (e *Effects) Empty() bool {
	return e.DidMount == nil && e.DidUpdate == nil && e.WillUnmount == nil
}

// AnalyzeEffects validates the lifecycle methods and rejects callbacks
// that cleanup code refers to by identity.
func AnalyzeEffects(fields *ClassFields, state *StateAnalysis, props *PropsAnalysis, ud *UserDefinedAnalysis) (*Effects, error) {
	e := &Effects{}
	for _, name := range []string{DidMount, DidUpdate, WillUnmount} {
		for _, s := range fields.Sites(name) {
			if s.Kind == SiteExpr {
				return nil, fail(s.Expr, "Cannot reference this.%s", name)
			}
			if s.Init == nil {
				continue
			}
			if s.Init.Kind != InitMethod {
				return nil, fail(s.Member, "%s must be a method", name)
			}
			if len(syntax.NamedChildren(s.Init.Method.ChildByFieldName("parameters"))) != 0 {
				return nil, fail(s.Member, "%s must take no parameters", name)
			}
			switch name {
			case DidMount:
				e.DidMount = s.Init.Method
			case DidUpdate:
				e.DidUpdate = s.Init.Method
			case WillUnmount:
				e.WillUnmount = s.Init.Method
			}
		}
	}

	if e.WillUnmount == nil {
		return e, nil
	}
	for pair := ud.Fields.Oldest(); pair != nil; pair = pair.Next() {
		f := pair.Value
		if f.Kind != UDFunction {
			continue
		}
		for _, s := range f.Sites {
			if s.Owner == WillUnmount && !isImmediatelyCalled(s.Expr) {
				return nil, fail(s.Expr, "Cannot reference callback %s in componentWillUnmount", f.Name)
			}
		}
	}
	for pair := state.Fields.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value.ReadBy(WillUnmount) {
			return nil, fail(nil, "Cannot read state %s in componentWillUnmount", pair.Key)
		}
	}
	if state.ReadsWhole(WillUnmount) || props.UsesWhole(WillUnmount) {
		return nil, fail(e.WillUnmount, "Cannot read props or state in componentWillUnmount")
	}
	for pair := props.Fields.Oldest(); pair != nil; pair = pair.Next() {
		for _, s := range pair.Value.Sites {
			if s.Owner == WillUnmount {
				return nil, fail(s.Expr, "Cannot read prop %s in componentWillUnmount", pair.Key)
			}
		}
		for _, a := range pair.Value.Aliases {
			if a.Owner == WillUnmount {
				return nil, fail(a.Ident, "Cannot read prop %s in componentWillUnmount", pair.Key)
			}
		}
	}
	return e, nil
}

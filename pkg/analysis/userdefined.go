package analysis

import (
	"strings"

	ts "github.com/tree-sitter/go-tree-sitter"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/gnana997/declassify/pkg/syntax"
)

// Effect lifecycle method names.
const (
	DidMount    = "componentDidMount"
	DidUpdate   = "componentDidUpdate"
	WillUnmount = "componentWillUnmount"
)

// reservedFields are instance names owned by the component runtime. They
// are handled by dedicated passes or are unsupported.
var reservedFields = map[string]bool{
	"props": true, "state": true, "setState": true, "context": true, "refs": true,
	"forceUpdate": true, "replaceState": true, "isMounted": true, "defaultProps": true,
	"contextType": true, "childContextTypes": true, "getChildContext": true,
	"updater": true, "_reactInternals": true, "_reactInternalFiber": true,
	"render": true, DidMount: true, DidUpdate: true, WillUnmount: true,
	"shouldComponentUpdate": true, "getSnapshotBeforeUpdate": true, "componentDidCatch": true,
	"componentWillMount": true, "componentWillReceiveProps": true, "componentWillUpdate": true,
	"UNSAFE_componentWillMount": true, "UNSAFE_componentWillReceiveProps": true,
	"UNSAFE_componentWillUpdate": true,
}

// handledFields are the reserved names some pass consumes.
var handledFields = map[string]bool{
	"props": true, "state": true, "setState": true, "render": true,
	DidMount: true, DidUpdate: true, WillUnmount: true,
}

// unsupportedStatics cannot be re-emitted as plain assignments.
var unsupportedStatics = map[string]bool{
	"getDerivedStateFromProps": true, "getDerivedStateFromError": true,
	"contextType": true, "childContextTypes": true, "contextTypes": true,
}

// UDKind classifies a user-defined member.
type UDKind int

const (
	// UDFunction is a method or function-valued field.
	UDFunction UDKind = iota
	// UDFactoryRef is initialised by the library's ref factory.
	UDFactoryRef
	// UDRef is any other instance value, kept in a mutable ref.
	UDRef
)

// DepKind classifies one dependency of a memoized callback.
type DepKind int

const (
	DepProp DepKind = iota
	DepPropAlias
	DepWholeProps
	DepState
	DepFunction
)

// Dep names a dependency by the stable key of its model entry.
type Dep struct {
	Kind DepKind
	Name string
}

// UserDefined is one member that is neither props, state nor a lifecycle
// method.
type UserDefined struct {
	Name string
	Kind UDKind
	Init *FieldSite
	// Type is the declared field type.
	Type *ts.Node
	// ElemType is the ref element type, from a factory type argument or
	// a ref-object annotation.
	ElemType *ts.Node
	Sites    []*FieldSite
	// NeedsMemo is set when the function value escapes a direct call,
	// directly or through a memoized caller.
	NeedsMemo bool
	Deps      []Dep
	// calls lists the members this member's body references.
	calls []string
}

// EmittedAsConst reports whether the member becomes a const declaration,
// which is not hoisted. Only non-memoized methods become hoisted function
// declarations.
func (u *UserDefined) EmittedAsConst() bool {
	if u.Kind != UDFunction || u.NeedsMemo {
		return true
	}
	return u.Init.Init.Kind != InitMethod
}

// UserDefinedAnalysis holds user-defined members in emission order.
type UserDefinedAnalysis struct {
	Fields *orderedmap.OrderedMap[string, *UserDefined]
}

// Get returns the member called name.
func (a *UserDefinedAnalysis) Get(name string) *UserDefined {
	f, _ := a.Fields.Get(name)
	return f
}

// IsMemoFunction reports whether name is a memoized callable.
func (a *UserDefinedAnalysis) IsMemoFunction(name string) bool {
	f := a.Get(name)
	return f != nil && f.Kind == UDFunction && f.NeedsMemo
}

// CheckReserved fails on any use of a reserved runtime name that no pass
// handles, and validates the render method.
func CheckReserved(fields *ClassFields) (*ts.Node, error) {
	var render *ts.Node
	for pair := fields.Instance.Oldest(); pair != nil; pair = pair.Next() {
		name := pair.Key
		if !reservedFields[name] && !strings.HasPrefix(name, "UNSAFE_") {
			continue
		}
		if !handledFields[name] {
			s := pair.Value[0]
			return nil, fail(siteNode(s), "Unsupported member: %s", name)
		}
		if name != "render" {
			continue
		}
		for _, s := range pair.Value {
			if s.Kind == SiteExpr {
				return nil, fail(s.Expr, "Cannot reference this.render")
			}
			if s.Init == nil {
				continue
			}
			if s.Init.Kind != InitMethod {
				return nil, fail(s.Member, "render must be a method")
			}
			if len(syntax.NamedChildren(s.Init.Method.ChildByFieldName("parameters"))) != 0 {
				return nil, fail(s.Member, "render must take no parameters")
			}
			render = s.Init.Method
		}
	}
	if render == nil {
		return nil, fail(nil, "Missing render method")
	}
	for pair := fields.Static.Oldest(); pair != nil; pair = pair.Next() {
		if unsupportedStatics[pair.Key] {
			return nil, fail(pair.Value[0].Member, "Unsupported static member: %s", pair.Key)
		}
	}
	return render, nil
}

func siteNode(s *FieldSite) *ts.Node {
	if s.Kind == SiteExpr {
		return s.Expr
	}
	return s.Member
}

// AnalyzeUserDefined classifies the remaining members, decides which
// callables need memoization, sorts members so memoized callables come
// after what they depend on, and records dependency lists.
func AnalyzeUserDefined(ctx *Context, fields *ClassFields, state *StateAnalysis, props *PropsAnalysis) (*UserDefinedAnalysis, error) {
	all := orderedmap.New[string, *UserDefined]()
	var names []string
	for pair := fields.Instance.Oldest(); pair != nil; pair = pair.Next() {
		if reservedFields[pair.Key] || strings.HasPrefix(pair.Key, "UNSAFE_") {
			continue
		}
		ud, err := classify(ctx, fields, pair.Key, pair.Value)
		if err != nil {
			return nil, err
		}
		all.Set(pair.Key, ud)
		names = append(names, pair.Key)
	}

	// Phase 1: reference edges and escaping function values.
	var queue []string
	for _, name := range names {
		ud, _ := all.Get(name)
		for _, s := range ud.Sites {
			if owner, ok := all.Get(s.Owner); ok && !contains(owner.calls, name) {
				owner.calls = append(owner.calls, name)
			}
			if ud.Kind == UDFunction && !ud.NeedsMemo && !isImmediatelyCalled(s.Expr) {
				ud.NeedsMemo = true
				queue = append(queue, name)
			}
		}
	}
	// Phase 2: a memoized callable makes everything it calls memoized.
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		ud, _ := all.Get(name)
		for _, callee := range ud.calls {
			c, _ := all.Get(callee)
			if c.Kind == UDFunction && !c.NeedsMemo {
				c.NeedsMemo = true
				queue = append(queue, callee)
			}
		}
	}

	for pair := all.Oldest(); pair != nil; pair = pair.Next() {
		ud := pair.Value
		for _, s := range ud.Sites {
			if s.Owner == "state" {
				return nil, fail(s.Expr, "State initializer cannot reference %s", ud.Name)
			}
		}
	}

	order, err := sortUserDefined(all, names)
	if err != nil {
		return nil, err
	}
	a := &UserDefinedAnalysis{Fields: orderedmap.New[string, *UserDefined]()}
	for _, name := range order {
		ud, _ := all.Get(name)
		a.Fields.Set(name, ud)
	}
	for pair := a.Fields.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value.Kind == UDFunction && pair.Value.NeedsMemo {
			pair.Value.Deps = a.dependencies(pair.Key, state, props)
		}
	}
	return a, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func classify(ctx *Context, fields *ClassFields, name string, sites []*FieldSite) (*UserDefined, error) {
	ud := &UserDefined{Name: name}
	written := false
	for _, s := range sites {
		switch {
		case s.Kind == SiteExpr:
			ud.Sites = append(ud.Sites, s)
			if s.Write {
				written = true
			}
		case s.Init != nil:
			ud.Init = s
		}
		if s.Kind == SiteDecl && s.Type != nil {
			ud.Type = s.Type
		}
	}

	if ud.Init != nil && ud.Init.Init.Function() != nil && !written {
		ud.Kind = UDFunction
		return ud, nil
	}
	if ud.Init != nil && ud.Init.Init.Kind == InitValue && !written {
		if call := syntax.UnwrapExpr(ud.Init.Init.Value); call != nil && call.Kind() == "call_expression" {
			if sym, ok := ctx.LibrarySymbol(call.ChildByFieldName("function")); ok && sym == "createRef" {
				if len(syntax.NamedChildren(call.ChildByFieldName("arguments"))) != 0 {
					return nil, fail(call, "createRef takes no arguments")
				}
				ud.Kind = UDFactoryRef
				if targs := call.ChildByFieldName("type_arguments"); targs != nil {
					if args := syntax.NamedChildren(targs); len(args) == 1 {
						ud.ElemType = args[0]
					}
				}
				if ud.ElemType == nil && ud.Type != nil {
					ud.ElemType = refObjectElem(ctx, ud.Type)
				}
				return ud, nil
			}
		}
	}
	if ud.Init != nil && ud.Init.Init.Kind == InitMethod {
		return nil, fail(ud.Init.Member, "Cannot reassign method %s", name)
	}
	ud.Kind = UDRef
	if ud.Init != nil && !ud.Init.Init.Pure {
		return nil, fail(ud.Init.Init.Value, "Initializer of %s may have side effects", name)
	}
	return ud, nil
}

// refObjectElem extracts T from `RefObject<T>` or `React.RefObject<T>`.
func refObjectElem(ctx *Context, typ *ts.Node) *ts.Node {
	if typ.Kind() != "generic_type" {
		return nil
	}
	name := typ.ChildByFieldName("name")
	if name == nil {
		return nil
	}
	text := ctx.text(name)
	if text != "RefObject" && !strings.HasSuffix(text, ".RefObject") {
		return nil
	}
	targs := typ.ChildByFieldName("type_arguments")
	if targs == nil {
		return nil
	}
	if args := syntax.NamedChildren(targs); len(args) == 1 {
		return args[0]
	}
	return nil
}

// sortUserDefined orders members so that each one comes after the memoized
// callables it references, keeping the original order otherwise. Cycles
// among memoized callables are an error.
func sortUserDefined(all *orderedmap.OrderedMap[string, *UserDefined], names []string) ([]string, error) {
	type frame struct {
		name string
		next int
	}
	visiting := make(map[string]bool)
	done := make(map[string]bool)
	var order []string

	// A ref initializer runs in the component body, so everything it
	// references must be declared before it. A memoized callable only
	// needs the memoized callables of its dependency list.
	constrained := func(from, to string) bool {
		f, _ := all.Get(from)
		t, _ := all.Get(to)
		if f.Kind != UDFunction {
			return t.EmittedAsConst()
		}
		return f.NeedsMemo && t.Kind == UDFunction && t.NeedsMemo
	}

	for _, root := range names {
		if done[root] {
			continue
		}
		visiting[root] = true
		stack := []frame{{name: root}}
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			ud, _ := all.Get(top.name)
			if top.next < len(ud.calls) {
				dep := ud.calls[top.next]
				top.next++
				if done[dep] || !constrained(top.name, dep) {
					continue
				}
				if visiting[dep] {
					return nil, fail(nil, "Recursive dependency between %s and %s", top.name, dep)
				}
				visiting[dep] = true
				stack = append(stack, frame{name: dep})
				continue
			}
			visiting[top.name] = false
			done[top.name] = true
			order = append(order, top.name)
			stack = stack[:len(stack)-1]
		}
	}
	return order, nil
}

// dependencies lists what the memoized callable name reads: props first,
// then the whole props object, then state cells, then other callables.
func (a *UserDefinedAnalysis) dependencies(name string, state *StateAnalysis, props *PropsAnalysis) []Dep {
	var deps []Dep
	seen := make(map[Dep]bool)
	add := func(d Dep) {
		if !seen[d] {
			seen[d] = true
			deps = append(deps, d)
		}
	}
	for pair := props.Fields.Oldest(); pair != nil; pair = pair.Next() {
		p := pair.Value
		for _, alias := range p.Aliases {
			if alias.Owner == name {
				add(Dep{Kind: DepPropAlias, Name: p.Name})
			}
		}
		for _, site := range p.Sites {
			if site.Owner != name {
				continue
			}
			if site.Decompose {
				add(Dep{Kind: DepPropAlias, Name: p.Name})
			} else {
				add(Dep{Kind: DepProp, Name: p.Name})
			}
		}
	}
	if props.UsesWhole(name) {
		add(Dep{Kind: DepWholeProps})
	}
	wholeState := state.ReadsWhole(name)
	for pair := state.Fields.Oldest(); pair != nil; pair = pair.Next() {
		if wholeState || pair.Value.ReadBy(name) {
			add(Dep{Kind: DepState, Name: pair.Key})
		}
	}
	for pair := a.Fields.Oldest(); pair != nil; pair = pair.Next() {
		ud := pair.Value
		if ud.Kind != UDFunction || !ud.NeedsMemo || ud.Name == name {
			continue
		}
		for _, s := range ud.Sites {
			if s.Owner == name {
				add(Dep{Kind: DepFunction, Name: ud.Name})
				break
			}
		}
	}
	return deps
}

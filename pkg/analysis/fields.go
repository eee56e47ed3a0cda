package analysis

import (
	"strings"

	ts "github.com/tree-sitter/go-tree-sitter"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/gnana997/declassify/pkg/syntax"
)

// SiteKind separates declarations from uses.
type SiteKind int

const (
	SiteDecl SiteKind = iota
	SiteExpr
)

// InitKind tells whether a field is initialised by a value or is a method.
type InitKind int

const (
	InitValue InitKind = iota
	InitMethod
)

// FieldInit is the initializer carried by a declaration site.
type FieldInit struct {
	Kind InitKind
	// Value is the initializer expression of an InitValue.
	Value *ts.Node
	// Method is the method_definition of an InitMethod.
	Method *ts.Node
	Pure   bool
}

// Function returns the function-shaped node behind the initializer: the
// method definition, or a function/arrow literal value. It is nil for
// other values.
func (i *FieldInit) Function() *ts.Node {
	if i.Kind == InitMethod {
		return i.Method
	}
	v := syntax.UnwrapExpr(i.Value)
	if v == nil {
		return nil
	}
	switch v.Kind() {
	case "arrow_function", "function_expression", "function":
		return v
	}
	return nil
}

// FieldSite is one occurrence of a named field of the component instance
// (or of the class, for static fields).
type FieldSite struct {
	Kind SiteKind
	Name string
	// Owner is the name of the field whose body holds the site, or "" for
	// top-level declarations.
	Owner string

	// Member is the class member or constructor statement declaring the
	// field. Declaration sites only.
	Member *ts.Node
	Type   *ts.Node
	Init   *FieldInit
	// InConstructor marks `this.x = v` initialisers in the constructor.
	InConstructor bool

	// Expr is the `this.x` member expression, or the constructor parameter
	// identifier for Param sites. Expression sites only.
	Expr  *ts.Node
	Write bool
	Param bool
}

// FieldMap maps field names to their sites in discovery order.
type FieldMap = orderedmap.OrderedMap[string, []*FieldSite]

// ClassFields is the raw site model of one class.
type ClassFields struct {
	Instance *FieldMap
	Static   *FieldMap

	Constructor *ts.Node
	CtorParam   *syntax.Binding
	// Binds are the dropped `this.m = this.m.bind(this)` statements.
	Binds []*ts.Node
}

// Sites returns the instance sites of name.
func (f *ClassFields) Sites(name string) []*FieldSite {
	sites, _ := f.Instance.Get(name)
	return sites
}

// InitSite returns the unique declaration site of name with an initializer.
func (f *ClassFields) InitSite(name string) *FieldSite {
	return initSite(f.Sites(name))
}

// TypeSite returns the unique declaration site of name with a type.
func (f *ClassFields) TypeSite(name string) *FieldSite {
	for _, s := range f.Sites(name) {
		if s.Kind == SiteDecl && s.Type != nil {
			return s
		}
	}
	return nil
}

// StaticInit returns the initializer site of a static field.
func (f *ClassFields) StaticInit(name string) *FieldSite {
	sites, _ := f.Static.Get(name)
	return initSite(sites)
}

func initSite(sites []*FieldSite) *FieldSite {
	for _, s := range sites {
		if s.Kind == SiteDecl && s.Init != nil {
			return s
		}
	}
	return nil
}

func addSite(m *FieldMap, site *FieldSite) {
	sites, _ := m.Get(site.Name)
	m.Set(site.Name, append(sites, site))
}

// AnalyzeFields catalogs every field declaration of the class and every
// `this.x` expression inside its executable bodies.
func AnalyzeFields(ctx *Context, head *Head) (*ClassFields, error) {
	f := &ClassFields{
		Instance: orderedmap.New[string, []*FieldSite](),
		Static:   orderedmap.New[string, []*FieldSite](),
	}
	body := head.Class.ChildByFieldName("body")
	if body == nil {
		return nil, fail(head.Class, "Missing class body")
	}

	type bindStmt struct {
		name string
		stmt *ts.Node
	}
	var binds []bindStmt

	for _, member := range syntax.NamedChildren(body) {
		switch member.Kind() {
		case "decorator":
			return nil, fail(member, "Decorators are not supported")
		case "class_static_block":
			return nil, fail(member, "Static blocks are not supported")
		case "index_signature":
			continue
		case "method_signature":
			return nil, fail(member, "Method overloads are not supported")
		case "abstract_method_signature":
			return nil, fail(member, "Abstract members are not supported")

		case "method_definition":
			if syntax.FindChild(member, "decorator") != nil {
				return nil, fail(member, "Decorators are not supported")
			}
			if syntax.HasToken(member, "get") || syntax.HasToken(member, "set") {
				return nil, fail(member, "Getters and setters are not supported")
			}
			name, err := memberName(ctx, member, member.ChildByFieldName("name"))
			if err != nil {
				return nil, err
			}
			static := syntax.HasToken(member, "static")
			if static {
				return nil, fail(member, "Static methods are not supported")
			}
			if name == "constructor" {
				stmts, err := analyzeConstructor(ctx, f, member)
				if err != nil {
					return nil, err
				}
				for _, s := range stmts {
					if s.bind != "" {
						binds = append(binds, bindStmt{name: s.bind, stmt: s.stmt})
						continue
					}
					addSite(f.Instance, s.site)
				}
				continue
			}
			addSite(f.Instance, &FieldSite{
				Kind:   SiteDecl,
				Name:   name,
				Member: member,
				Init:   &FieldInit{Kind: InitMethod, Method: member, Pure: true},
			})

		case "field_definition", "public_field_definition":
			if syntax.FindChild(member, "decorator") != nil {
				return nil, fail(member, "Decorators are not supported")
			}
			key := member.ChildByFieldName("name")
			if key == nil {
				key = member.ChildByFieldName("property")
			}
			name, err := memberName(ctx, member, key)
			if err != nil {
				return nil, err
			}
			site := &FieldSite{
				Kind:   SiteDecl,
				Name:   name,
				Member: member,
				Type:   annotationType(member.ChildByFieldName("type")),
			}
			if value := member.ChildByFieldName("value"); value != nil {
				site.Init = &FieldInit{Kind: InitValue, Value: value, Pure: EstimatePure(value)}
			}
			if syntax.HasToken(member, "static") {
				addSite(f.Static, site)
			} else {
				addSite(f.Instance, site)
			}

		default:
			return nil, fail(member, "Unsupported class member: %s", member.Kind())
		}
	}

	for _, m := range []*FieldMap{f.Instance, f.Static} {
		for pair := m.Oldest(); pair != nil; pair = pair.Next() {
			inits, types := 0, 0
			for _, s := range pair.Value {
				if s.Init != nil {
					inits++
					if inits > 1 {
						return nil, fail(s.Member, "Duplicate initializer for %s", pair.Key)
					}
				}
				if s.Type != nil {
					types++
					if types > 1 {
						return nil, fail(s.Member, "Duplicate type declaration for %s", pair.Key)
					}
				}
			}
		}
	}

	for _, b := range binds {
		init := f.InitSite(b.name)
		if init == nil || init.Init.Kind != InitMethod {
			return nil, fail(b.stmt, "Cannot bind non-method %s", b.name)
		}
		f.Binds = append(f.Binds, b.stmt)
	}

	if err := collectExprSites(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

func memberName(ctx *Context, member, key *ts.Node) (string, error) {
	if key == nil {
		return "", fail(member, "Unnamed class element")
	}
	if key.Kind() == "private_property_identifier" {
		return "", fail(member, "Private class members are not supported")
	}
	name, ok := syntax.PropertyName(key, ctx.Source)
	if !ok {
		return "", fail(member, "Unnamed class element")
	}
	return name, nil
}

type ctorStmt struct {
	site *FieldSite
	bind string
	stmt *ts.Node
}

func analyzeConstructor(ctx *Context, f *ClassFields, ctor *ts.Node) ([]ctorStmt, error) {
	f.Constructor = ctor
	params := syntax.NamedChildren(ctor.ChildByFieldName("parameters"))
	if len(params) != 1 {
		return nil, fail(ctor, "Constructor must take exactly one parameter")
	}
	param := params[0]
	if param.Kind() == "required_parameter" {
		if syntax.FindChild(param, "accessibility_modifier") != nil {
			return nil, fail(param, "Parameter properties are not supported")
		}
		param = param.ChildByFieldName("pattern")
	}
	if param == nil || param.Kind() != "identifier" {
		return nil, fail(ctor, "Constructor parameter must be a plain identifier")
	}
	f.CtorParam = ctx.Table.BindingOf(param)

	stmts := syntax.NamedChildren(ctor.ChildByFieldName("body"))
	if len(stmts) == 0 || !isSuperCall(ctx, stmts[0], f.CtorParam) {
		return nil, fail(ctor, "Constructor must start with super(%s)", ctx.text(param))
	}

	var out []ctorStmt
	for _, stmt := range stmts[1:] {
		name, value, ok := thisAssignment(ctx, stmt)
		if !ok {
			return nil, fail(stmt, "Non-analyzable constructor statement")
		}
		if isBindIdiom(ctx, value, name) {
			out = append(out, ctorStmt{bind: name, stmt: stmt})
			continue
		}
		out = append(out, ctorStmt{site: &FieldSite{
			Kind:          SiteDecl,
			Name:          name,
			Member:        stmt,
			Init:          &FieldInit{Kind: InitValue, Value: value, Pure: EstimatePure(value)},
			InConstructor: true,
		}})
	}
	return out, nil
}

func isSuperCall(ctx *Context, stmt *ts.Node, param *syntax.Binding) bool {
	if stmt.Kind() != "expression_statement" || param == nil {
		return false
	}
	call := syntax.UnwrapExpr(stmt.NamedChild(0))
	if call == nil || call.Kind() != "call_expression" {
		return false
	}
	if fn := call.ChildByFieldName("function"); fn == nil || fn.Kind() != "super" {
		return false
	}
	args := syntax.NamedChildren(call.ChildByFieldName("arguments"))
	if len(args) != 1 || args[0].Kind() != "identifier" {
		return false
	}
	return ctx.Table.BindingOf(args[0]) == param
}

// thisAssignment matches `this.name = value;`.
func thisAssignment(ctx *Context, stmt *ts.Node) (string, *ts.Node, bool) {
	if stmt.Kind() != "expression_statement" {
		return "", nil, false
	}
	assign := syntax.Unparen(stmt.NamedChild(0))
	if assign == nil || assign.Kind() != "assignment_expression" {
		return "", nil, false
	}
	left := syntax.Unparen(assign.ChildByFieldName("left"))
	if left == nil || !isThisMember(left) {
		return "", nil, false
	}
	name, ok := syntax.MemberName(left, ctx.Source)
	if !ok {
		return "", nil, false
	}
	return name, assign.ChildByFieldName("right"), true
}

func isThisMember(node *ts.Node) bool {
	obj := syntax.MemberObject(node)
	return obj != nil && syntax.Unparen(obj).Kind() == "this"
}

// isBindIdiom matches `this.name.bind(this)`.
func isBindIdiom(ctx *Context, value *ts.Node, name string) bool {
	call := syntax.UnwrapExpr(value)
	if call == nil || call.Kind() != "call_expression" {
		return false
	}
	fn := syntax.Unparen(call.ChildByFieldName("function"))
	if fn == nil || fn.Kind() != "member_expression" {
		return false
	}
	if method, ok := syntax.MemberName(fn, ctx.Source); !ok || method != "bind" {
		return false
	}
	target := syntax.Unparen(fn.ChildByFieldName("object"))
	if target == nil || !isThisMember(target) {
		return false
	}
	if n, ok := syntax.MemberName(target, ctx.Source); !ok || n != name {
		return false
	}
	args := syntax.NamedChildren(call.ChildByFieldName("arguments"))
	return len(args) == 1 && syntax.Unparen(args[0]).Kind() == "this"
}

// collectExprSites walks every executable body and records `this.x` uses.
func collectExprSites(ctx *Context, f *ClassFields) error {
	var decls []*FieldSite
	for pair := f.Instance.Oldest(); pair != nil; pair = pair.Next() {
		for _, s := range pair.Value {
			if s.Kind == SiteDecl && s.Init != nil {
				decls = append(decls, s)
			}
		}
	}
	for _, s := range decls {
		w := &siteWalker{ctx: ctx, fields: f, owner: s.Name}
		if s.InConstructor {
			w.param = f.CtorParam
		}
		if err := w.walkInit(s.Init); err != nil {
			return err
		}
	}
	for pair := f.Static.Oldest(); pair != nil; pair = pair.Next() {
		for _, s := range pair.Value {
			if s.Init == nil {
				continue
			}
			w := &siteWalker{ctx: ctx, fields: f, owner: s.Name, static: true}
			if err := w.walk(s.Init.Value); err != nil {
				return err
			}
		}
	}
	return nil
}

// siteWalker visits one body. Nested non-arrow functions and classes rebind
// `this`, `arguments` and `new.target` and are not entered. Member bodies
// end up inside arrow functions, so those bindings cannot be kept.
type siteWalker struct {
	ctx    *Context
	fields *ClassFields
	owner  string
	param  *syntax.Binding
	static bool
}

func (w *siteWalker) walkInit(init *FieldInit) error {
	fn := init.Function()
	if fn == nil || fn.Kind() == "arrow_function" {
		return w.walk(init.Value)
	}
	if params := fn.ChildByFieldName("parameters"); params != nil {
		if err := w.walk(params); err != nil {
			return err
		}
	}
	return w.walk(fn.ChildByFieldName("body"))
}

func (w *siteWalker) walk(node *ts.Node) error {
	if node == nil {
		return nil
	}
	switch node.Kind() {
	case "this":
		return w.visitThis(node)
	case "super":
		return fail(node, "Cannot use super here")
	case "meta_property":
		if strings.HasPrefix(syntax.Text(node, w.ctx.Source), "new") {
			return fail(node, "Cannot use new.target here")
		}
		return nil
	case "identifier", "shorthand_property_identifier":
		if syntax.Text(node, w.ctx.Source) == "arguments" && w.ctx.Table.BindingOf(node) == nil {
			return fail(node, "Cannot use arguments here")
		}
		if w.param != nil && w.ctx.Table.BindingOf(node) == w.param {
			addSite(w.fields.Instance, &FieldSite{
				Kind:  SiteExpr,
				Name:  "props",
				Owner: w.owner,
				Expr:  node,
				Write: syntax.IsWriteTarget(node),
				Param: true,
			})
		}
		return nil
	}
	if syntax.IsThisBoundary(node) {
		return nil
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		if err := w.walk(node.Child(i)); err != nil {
			return err
		}
	}
	return nil
}

func (w *siteWalker) visitThis(node *ts.Node) error {
	if w.static {
		return fail(node, "Cannot use this in static initializers")
	}
	parent, child := syntax.ParentSkippingParens(node)
	if parent != nil && (parent.Kind() == "member_expression" || parent.Kind() == "subscript_expression") &&
		syntax.IsField(parent, "object", child) {
		name, ok := syntax.MemberName(parent, w.ctx.Source)
		if !ok {
			return fail(parent, "Unrecognized class field reference")
		}
		addSite(w.fields.Instance, &FieldSite{
			Kind:  SiteExpr,
			Name:  name,
			Owner: w.owner,
			Expr:  parent,
			Write: syntax.IsWriteTarget(parent),
		})
		return nil
	}
	return fail(node, "Stray this")
}

package syntax

import (
	ts "github.com/tree-sitter/go-tree-sitter"
)

// BindingKind classifies how a binding was introduced.
type BindingKind int

const (
	BindingVar BindingKind = iota
	BindingLet
	BindingConst
	BindingFunction
	BindingClass
	BindingParam
	BindingImport
	BindingCatch
)

// String returns the declaration keyword-ish name of the kind.
func (k BindingKind) String() string {
	switch k {
	case BindingVar:
		return "var"
	case BindingLet:
		return "let"
	case BindingConst:
		return "const"
	case BindingFunction:
		return "function"
	case BindingClass:
		return "class"
	case BindingParam:
		return "param"
	case BindingImport:
		return "import"
	case BindingCatch:
		return "catch"
	default:
		return "unknown"
	}
}

// ImportKind distinguishes the three import specifier forms.
type ImportKind int

const (
	ImportNamed ImportKind = iota
	ImportDefault
	ImportNamespace
)

// Import describes where an import binding comes from.
type Import struct {
	// Source is the module specifier, e.g. "react".
	Source string
	// Imported is the exported name for named imports, "default" for
	// default imports and "*" for namespace imports.
	Imported string
	Kind     ImportKind
	// Statement is the import_statement node.
	Statement *ts.Node
}

// Binding is one declared name in a scope.
type Binding struct {
	Name  string
	Kind  BindingKind
	Ident *ts.Node
	// Decl is the declaring construct: a variable_declarator, function or
	// class declaration, parameter, import specifier or catch clause.
	Decl   *ts.Node
	Scope  *Scope
	Refs   []*ts.Node
	Writes []*ts.Node
	Import *Import
}

// IsWritten reports whether the binding is reassigned anywhere.
func (b *Binding) IsWritten() bool {
	return len(b.Writes) > 0
}

// Scope is a lexical scope: the program, a function or a block.
type Scope struct {
	Node     *ts.Node
	Parent   *Scope
	Children []*Scope
	Bindings map[string]*Binding
	// Order lists bindings in declaration order.
	Order    []*Binding
	function bool
}

// Get returns the binding declared directly in s.
func (s *Scope) Get(name string) *Binding {
	return s.Bindings[name]
}

// Lookup resolves name through s and its ancestors.
func (s *Scope) Lookup(name string) *Binding {
	for cur := s; cur != nil; cur = cur.Parent {
		if b, ok := cur.Bindings[name]; ok {
			return b
		}
	}
	return nil
}

// IsFunction reports whether s is a function (or program) scope.
func (s *Scope) IsFunction() bool {
	return s.function
}

func (s *Scope) functionScope() *Scope {
	cur := s
	for cur.Parent != nil && !cur.function {
		cur = cur.Parent
	}
	return cur
}

// Table is the binding table of one parsed file.
type Table struct {
	Root *Scope

	source     []byte
	scopes     map[uintptr]*Scope
	byIdent    map[uintptr]*Binding
	declIdents map[uintptr]bool
	bindings   []*Binding
	unresolved map[string][]*ts.Node
}

// Build constructs the binding table for a program node.
func Build(root *ts.Node, source []byte) *Table {
	t := &Table{
		source:     source,
		scopes:     make(map[uintptr]*Scope),
		byIdent:    make(map[uintptr]*Binding),
		declIdents: make(map[uintptr]bool),
		unresolved: make(map[string][]*ts.Node),
	}
	t.Root = t.newScope(root, nil, true)
	for i := uint(0); i < root.ChildCount(); i++ {
		t.declare(root.Child(i), t.Root)
	}
	t.resolve(root, t.Root)
	return t
}

// ScopeOf returns the scope created by node, or nil.
func (t *Table) ScopeOf(node *ts.Node) *Scope {
	return t.scopes[node.Id()]
}

// EnclosingScope returns the innermost scope containing node.
func (t *Table) EnclosingScope(node *ts.Node) *Scope {
	for cur := node; cur != nil; cur = cur.Parent() {
		if s := t.scopes[cur.Id()]; s != nil {
			return s
		}
	}
	return t.Root
}

// BindingOf returns the binding an identifier declares or refers to.
func (t *Table) BindingOf(ident *ts.Node) *Binding {
	if ident == nil {
		return nil
	}
	return t.byIdent[ident.Id()]
}

// IsDeclaration reports whether ident is the declaring occurrence of a binding.
func (t *Table) IsDeclaration(ident *ts.Node) bool {
	return t.declIdents[ident.Id()]
}

// Bindings returns every binding of the file in declaration order.
func (t *Table) Bindings() []*Binding {
	return t.bindings
}

// BindingsWithin returns the bindings declared inside node.
func (t *Table) BindingsWithin(node *ts.Node) []*Binding {
	var out []*Binding
	for _, b := range t.bindings {
		if Contains(node, b.Ident) {
			out = append(out, b)
		}
	}
	return out
}

// Unresolved returns the names referenced without a declaration (globals).
func (t *Table) Unresolved() map[string][]*ts.Node {
	return t.unresolved
}

func (t *Table) newScope(node *ts.Node, parent *Scope, function bool) *Scope {
	s := &Scope{
		Node:     node,
		Parent:   parent,
		Bindings: make(map[string]*Binding),
		function: function,
	}
	if parent != nil {
		parent.Children = append(parent.Children, s)
	}
	t.scopes[node.Id()] = s
	return s
}

func (t *Table) addBinding(scope *Scope, ident, decl *ts.Node, kind BindingKind) *Binding {
	name := ident.Utf8Text(t.source)
	t.declIdents[ident.Id()] = true
	if existing, ok := scope.Bindings[name]; ok {
		t.byIdent[ident.Id()] = existing
		return existing
	}
	b := &Binding{Name: name, Kind: kind, Ident: ident, Decl: decl, Scope: scope}
	scope.Bindings[name] = b
	scope.Order = append(scope.Order, b)
	t.byIdent[ident.Id()] = b
	t.bindings = append(t.bindings, b)
	return b
}

// declare is the first pass: it creates scopes and declares bindings so that
// hoisted and later declarations are visible to every reference.
func (t *Table) declare(node *ts.Node, scope *Scope) {
	switch node.Kind() {
	case "comment":
		return

	case "import_statement":
		t.declareImport(node, scope)
		return

	case "lexical_declaration", "variable_declaration":
		kind := BindingVar
		target := scope.functionScope()
		if node.Kind() == "lexical_declaration" {
			target = scope
			kind = BindingLet
			if k := node.ChildByFieldName("kind"); k != nil && k.Kind() == "const" {
				kind = BindingConst
			} else if HasToken(node, "const") {
				kind = BindingConst
			}
		}
		for _, decl := range NamedChildren(node) {
			if decl.Kind() != "variable_declarator" {
				continue
			}
			name := decl.ChildByFieldName("name")
			for _, id := range PatternIdents(name) {
				t.addBinding(target, id, decl, kind)
			}
			if name != nil {
				t.declare(name, scope)
			}
			if value := decl.ChildByFieldName("value"); value != nil {
				t.declare(value, scope)
			}
		}
		return

	case "function_declaration", "generator_function_declaration":
		if name := node.ChildByFieldName("name"); name != nil {
			t.addBinding(scope, name, node, BindingFunction)
		}
		t.declareFunction(node, scope)
		return

	case "function_expression", "function", "generator_function", "arrow_function", "method_definition":
		t.declareFunction(node, scope)
		return

	case "class_declaration", "abstract_class_declaration":
		if name := node.ChildByFieldName("name"); name != nil {
			t.addBinding(scope, name, node, BindingClass)
		}
		inner := t.newScope(node, scope, false)
		t.declareChildren(node, inner)
		return

	case "class":
		inner := t.newScope(node, scope, false)
		if name := node.ChildByFieldName("name"); name != nil {
			t.addBinding(inner, name, node, BindingClass)
		}
		t.declareChildren(node, inner)
		return

	case "enum_declaration":
		if name := node.ChildByFieldName("name"); name != nil {
			t.addBinding(scope, name, node, BindingClass)
		}
		return

	case "catch_clause":
		inner := t.newScope(node, scope, false)
		if param := node.ChildByFieldName("parameter"); param != nil {
			for _, id := range PatternIdents(param) {
				t.addBinding(inner, id, node, BindingCatch)
			}
		}
		if body := node.ChildByFieldName("body"); body != nil {
			t.declareChildren(body, inner)
		}
		return

	case "for_statement", "for_in_statement":
		inner := t.newScope(node, scope, false)
		if node.Kind() == "for_in_statement" {
			if kind := node.ChildByFieldName("kind"); kind != nil {
				target := inner
				bkind := BindingLet
				switch kind.Kind() {
				case "var":
					target = scope.functionScope()
					bkind = BindingVar
				case "const":
					bkind = BindingConst
				}
				for _, id := range PatternIdents(node.ChildByFieldName("left")) {
					t.addBinding(target, id, node, bkind)
				}
			}
		}
		t.declareChildren(node, inner)
		return

	case "statement_block", "switch_body":
		inner := t.newScope(node, scope, false)
		t.declareChildren(node, inner)
		return
	}
	t.declareChildren(node, scope)
}

func (t *Table) declareChildren(node *ts.Node, scope *Scope) {
	for i := uint(0); i < node.ChildCount(); i++ {
		t.declare(node.Child(i), scope)
	}
}

func (t *Table) declareFunction(node *ts.Node, scope *Scope) {
	inner := t.newScope(node, scope, true)
	kind := node.Kind()
	if kind == "function_expression" || kind == "function" || kind == "generator_function" {
		if name := node.ChildByFieldName("name"); name != nil {
			t.addBinding(inner, name, node, BindingFunction)
		}
	}
	if param := node.ChildByFieldName("parameter"); param != nil && param.Kind() == "identifier" {
		t.addBinding(inner, param, param, BindingParam)
	}
	if params := node.ChildByFieldName("parameters"); params != nil {
		for _, p := range NamedChildren(params) {
			for _, id := range PatternIdents(p) {
				t.addBinding(inner, id, p, BindingParam)
			}
			t.declareChildren(p, inner)
		}
	}
	if body := node.ChildByFieldName("body"); body != nil {
		if body.Kind() == "statement_block" {
			// The body block shares the function scope.
			t.declareChildren(body, inner)
		} else {
			t.declare(body, inner)
		}
	}
}

func (t *Table) declareImport(node *ts.Node, scope *Scope) {
	source, _ := StringValue(node.ChildByFieldName("source"), t.source)
	clause := FindChild(node, "import_clause")
	if clause == nil {
		return
	}
	for _, child := range NamedChildren(clause) {
		switch child.Kind() {
		case "identifier":
			b := t.addBinding(scope, child, child, BindingImport)
			b.Import = &Import{Source: source, Imported: "default", Kind: ImportDefault, Statement: node}
		case "namespace_import":
			if id := FindChild(child, "identifier"); id != nil {
				b := t.addBinding(scope, id, child, BindingImport)
				b.Import = &Import{Source: source, Imported: "*", Kind: ImportNamespace, Statement: node}
			}
		case "named_imports":
			for _, spec := range NamedChildren(child) {
				if spec.Kind() != "import_specifier" {
					continue
				}
				name := spec.ChildByFieldName("name")
				local := spec.ChildByFieldName("alias")
				if local == nil {
					local = name
				}
				if name == nil || local == nil {
					continue
				}
				imported, ok := StringValue(name, t.source)
				if !ok {
					imported = name.Utf8Text(t.source)
				}
				b := t.addBinding(scope, local, spec, BindingImport)
				b.Import = &Import{Source: source, Imported: imported, Kind: ImportNamed, Statement: node}
			}
		}
	}
}

// PatternIdents returns the identifiers declared by a binding pattern.
func PatternIdents(node *ts.Node) []*ts.Node {
	if node == nil {
		return nil
	}
	switch node.Kind() {
	case "identifier", "shorthand_property_identifier_pattern":
		return []*ts.Node{node}
	case "required_parameter", "optional_parameter":
		return PatternIdents(node.ChildByFieldName("pattern"))
	case "assignment_pattern", "object_assignment_pattern":
		return PatternIdents(node.ChildByFieldName("left"))
	case "pair_pattern":
		return PatternIdents(node.ChildByFieldName("value"))
	case "object_pattern", "array_pattern", "rest_pattern":
		var out []*ts.Node
		for _, child := range NamedChildren(node) {
			out = append(out, PatternIdents(child)...)
		}
		return out
	}
	return nil
}

// resolve is the second pass: every identifier reference is attached to
// the binding visible from its scope, or recorded as unresolved.
func (t *Table) resolve(node *ts.Node, scope *Scope) {
	if s := t.scopes[node.Id()]; s != nil {
		scope = s
	}
	switch node.Kind() {
	case "import_statement", "comment":
		return
	case "identifier", "shorthand_property_identifier":
		t.resolveIdent(node, scope)
		return
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		t.resolve(node.Child(i), scope)
	}
}

func (t *Table) resolveIdent(ident *ts.Node, scope *Scope) {
	if t.declIdents[ident.Id()] || !t.isReference(ident) {
		return
	}
	name := ident.Utf8Text(t.source)
	b := scope.Lookup(name)
	if b == nil {
		t.unresolved[name] = append(t.unresolved[name], ident)
		return
	}
	b.Refs = append(b.Refs, ident)
	if IsWriteTarget(ident) {
		b.Writes = append(b.Writes, ident)
	}
	t.byIdent[ident.Id()] = b
}

func (t *Table) isReference(ident *ts.Node) bool {
	parent := ident.Parent()
	if parent == nil {
		return true
	}
	switch parent.Kind() {
	case "export_specifier":
		return !IsField(parent, "alias", ident)
	case "jsx_opening_element", "jsx_closing_element", "jsx_self_closing_element":
		name := ident.Utf8Text(t.source)
		return name != "" && !(name[0] >= 'a' && name[0] <= 'z')
	case "jsx_namespace_name", "labeled_statement", "break_statement", "continue_statement":
		return false
	}
	return true
}

// IsWriteTarget reports whether node is the target of an assignment,
// update or delete.
func IsWriteTarget(node *ts.Node) bool {
	parent, child := ParentSkippingParens(node)
	if parent == nil {
		return false
	}
	switch parent.Kind() {
	case "assignment_expression", "augmented_assignment_expression":
		return IsField(parent, "left", child)
	case "update_expression":
		return true
	case "unary_expression":
		op := parent.ChildByFieldName("operator")
		return op != nil && op.Kind() == "delete"
	case "array_pattern", "rest_pattern", "object_pattern":
		return true
	case "pair_pattern":
		return IsField(parent, "value", child)
	case "assignment_pattern", "object_assignment_pattern":
		return IsField(parent, "left", child)
	case "for_in_statement":
		return IsField(parent, "left", child)
	}
	return false
}

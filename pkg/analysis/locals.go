package analysis

import (
	"sort"
	"strconv"
	"strings"

	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/gnana997/declassify/pkg/syntax"
)

const maxLocalAttempts = 1000

// LocalManager hands out collision-free local names for the generated
// function body and tracks declarations scheduled for removal.
type LocalManager struct {
	ctx     *Context
	used    map[string]int
	marked  map[uintptr]*ts.Node
	render  []*syntax.Binding
	renders map[*syntax.Binding]bool
}

// NewLocalManager seeds the used-name set with every binding visible from
// the class, every binding inside it except the top-level locals of render,
// and every unresolved global.
func NewLocalManager(ctx *Context, head *Head, render *ts.Node) *LocalManager {
	lm := &LocalManager{
		ctx:     ctx,
		used:    make(map[string]int),
		marked:  make(map[uintptr]*ts.Node),
		renders: make(map[*syntax.Binding]bool),
	}
	if render != nil {
		if s := ctx.Table.ScopeOf(render); s != nil {
			for _, b := range s.Order {
				lm.render = append(lm.render, b)
				lm.renders[b] = true
			}
		}
	}
	if parent := head.Statement.Parent(); parent != nil {
		for s := ctx.Table.EnclosingScope(parent); s != nil; s = s.Parent {
			for _, b := range s.Order {
				lm.used[b.Name]++
			}
		}
	}
	for _, b := range ctx.Table.BindingsWithin(head.Class) {
		if !lm.renders[b] {
			lm.used[b.Name]++
		}
	}
	for name := range ctx.Table.Unresolved() {
		lm.used[name]++
	}
	return lm
}

// RenderLocals returns the top-level bindings of the render method that
// have not been removed, in declaration order.
func (lm *LocalManager) RenderLocals() []*syntax.Binding {
	var out []*syntax.Binding
	for _, b := range lm.render {
		if !lm.IsRemoved(b.Ident) {
			out = append(out, b)
		}
	}
	return out
}

// IsUsed reports whether name is taken.
func (lm *LocalManager) IsUsed(name string) bool {
	return lm.used[name] > 0
}

// Reserve marks name as taken.
func (lm *LocalManager) Reserve(name string) {
	lm.used[name]++
}

// NewLocal returns a fresh name derived from base and marks it taken.
func (lm *LocalManager) NewLocal(base string) string {
	name := syntax.SanitizeIdentifier(base)
	if lm.free(name) {
		lm.used[name]++
		return name
	}
	stem := strings.TrimRight(name, "0123456789")
	if stem == "" {
		stem = "_"
	}
	for i := 0; i < maxLocalAttempts; i++ {
		cand := stem + strconv.Itoa(i)
		if lm.free(cand) {
			lm.used[cand]++
			return cand
		}
	}
	panic(internalf("cannot allocate a local name for %q", base))
}

func (lm *LocalManager) free(name string) bool {
	return syntax.IsBindableName(name) && lm.used[name] == 0
}

// MarkRemoved schedules the declaration of ident for removal and frees its
// name. Top-level render locals were never counted as used, so removing
// one of them frees nothing. When every entry of a destructuring pattern, or every declarator
// of a declaration, is marked, the removal is promoted to the enclosing
// declarator or declaration.
func (lm *LocalManager) MarkRemoved(ident *ts.Node) {
	target := removalTarget(ident)
	if lm.marked[target.Id()] != nil {
		return
	}
	if b := lm.ctx.Table.BindingOf(ident); b == nil || !lm.renders[b] {
		lm.release(syntax.Text(ident, lm.ctx.Source))
	}
	lm.mark(target)
}

func (lm *LocalManager) mark(node *ts.Node) {
	lm.marked[node.Id()] = node
	parent := node.Parent()
	if parent == nil {
		return
	}
	switch node.Kind() {
	case "variable_declarator":
		if lm.allMarked(parent, "variable_declarator") {
			lm.mark(parent)
		}
	case "shorthand_property_identifier_pattern", "object_assignment_pattern", "pair_pattern":
		if parent.Kind() != "object_pattern" {
			panic(internalf("pattern entry outside object pattern: %s", parent.Kind()))
		}
		if !lm.allMarked(parent, "") {
			return
		}
		decl := parent.Parent()
		if decl == nil || decl.Kind() != "variable_declarator" {
			panic(internalf("cannot remove a nested object pattern"))
		}
		lm.mark(decl)
	}
}

func (lm *LocalManager) allMarked(parent *ts.Node, kind string) bool {
	for _, child := range syntax.NamedChildren(parent) {
		if kind != "" && child.Kind() != kind {
			continue
		}
		if lm.marked[child.Id()] == nil {
			return false
		}
	}
	return true
}

func removalTarget(ident *ts.Node) *ts.Node {
	parent := ident.Parent()
	if parent == nil {
		panic(internalf("cannot remove a detached %s", ident.Kind()))
	}
	switch parent.Kind() {
	case "variable_declarator":
		if syntax.IsField(parent, "name", ident) {
			return parent
		}
	case "object_pattern":
		if ident.Kind() == "shorthand_property_identifier_pattern" {
			return ident
		}
	case "object_assignment_pattern":
		return parent
	case "pair_pattern":
		return parent
	case "assignment_pattern":
		if gp := parent.Parent(); gp != nil && gp.Kind() == "pair_pattern" {
			return gp
		}
	}
	panic(internalf("cannot remove binding %s in %s", ident.Kind(), parent.Kind()))
}

// IsRemoved reports whether node lies inside a declaration marked for
// removal.
func (lm *LocalManager) IsRemoved(node *ts.Node) bool {
	for cur := node; cur != nil; cur = cur.Parent() {
		if lm.marked[cur.Id()] != nil {
			return true
		}
	}
	return false
}

// Removals returns the outermost marked nodes in source order. Each is a
// lexical_declaration, a variable_declarator or an object_pattern entry.
func (lm *LocalManager) Removals() []*ts.Node {
	var out []*ts.Node
	for _, node := range lm.marked {
		if p := node.Parent(); p != nil && lm.IsRemoved(p) {
			continue
		}
		out = append(out, node)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartByte() < out[j].StartByte()
	})
	return out
}

// release frees one use of name.
func (lm *LocalManager) release(name string) {
	if lm.used[name] > 0 {
		lm.used[name]--
	}
}

package declassify

import (
	"strconv"
	"strings"

	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/gnana997/declassify/pkg/analysis"
	"github.com/gnana997/declassify/pkg/edit"
	"github.com/gnana997/declassify/pkg/syntax"
)

// emitter registers the edits of one transformed class. It runs only after
// the analysis succeeded and never fails; broken invariants panic.
type emitter struct {
	f    *fileRewrite
	res  *analysis.Result
	plan *namePlan
	head *analysis.Head

	classIndent  string
	memberIndent string
	bodyIndent   string
	unit         string
	protected    [][2]uint
	// idents records identifier replacements by node id, for shorthand
	// values that are re-emitted as text.
	idents map[uintptr]string
}

func (e *emitter) src() []byte {
	return e.f.ctx.Source
}

func (e *emitter) buf() *edit.Buffer {
	return e.f.buf
}

func (e *emitter) text(node *ts.Node) string {
	return syntax.Text(node, e.src())
}

func (e *emitter) emit() {
	e.idents = make(map[uintptr]string)
	e.layout()
	e.removeDeclarations()
	e.renameBindings()
	e.rewriteSites()
	e.markOptionalProps()
	e.replaceClass()
}

// layout derives the indentation of the generated function from the class.
func (e *emitter) layout() {
	src := e.src()
	e.classIndent, _ = syntax.LineIndent(src, e.head.Statement.StartByte())
	e.memberIndent, _ = syntax.LineIndent(src, e.res.Render.StartByte())
	e.bodyIndent = e.classIndent + "  "
	body := e.res.Render.ChildByFieldName("body")
	if stmts := syntax.NamedChildren(body); len(stmts) > 0 && syntax.LineStart(src, stmts[0].StartByte()) > body.StartByte() {
		ind, _ := syntax.LineIndent(src, stmts[0].StartByte())
		if strings.HasPrefix(ind, e.memberIndent) && len(ind) > len(e.memberIndent) {
			e.bodyIndent = e.classIndent + ind[len(e.memberIndent):]
		}
	}
	e.unit = e.bodyIndent[len(e.classIndent):]
	e.protected = templateRanges(e.head.Class)
}

func templateRanges(node *ts.Node) [][2]uint {
	var out [][2]uint
	var walk func(n *ts.Node)
	walk = func(n *ts.Node) {
		if n.Kind() == "template_string" {
			out = append(out, [2]uint{n.StartByte(), n.EndByte()})
		}
		for i := uint(0); i < n.NamedChildCount(); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(node)
	return out
}

// reindent moves the lines of node from the indentation of the line it
// starts on to target.
func (e *emitter) reindent(node *ts.Node, target string) {
	from, _ := syntax.LineIndent(e.src(), node.StartByte())
	e.buf().Reindent(node.StartByte(), node.EndByte(), edit.Indent{From: from, To: target}, e.protected)
}

// removeDeclarations deletes the declarations the analysis consumed.
// Adjacent list items are removed together with their separators.
func (e *emitter) removeDeclarations() {
	groups := make(map[uintptr][]*ts.Node)
	var parents []*ts.Node
	for _, node := range e.res.Locals.Removals() {
		if node.Kind() == "lexical_declaration" {
			e.deleteStatement(node)
			continue
		}
		parent := node.Parent()
		if _, ok := groups[parent.Id()]; !ok {
			parents = append(parents, parent)
		}
		groups[parent.Id()] = append(groups[parent.Id()], node)
	}
	for _, parent := range parents {
		e.deleteListItems(parent, groups[parent.Id()])
	}
}

// deleteStatement removes node. A statement alone on its line takes the
// line with it; otherwise the spacing that separated it from its
// neighbours goes too.
func (e *emitter) deleteStatement(node *ts.Node) {
	src := e.src()
	n := uint(len(src))
	start, end := node.StartByte(), node.EndByte()
	after := end
	for after < n && (src[after] == ' ' || src[after] == '\t' || src[after] == '\r') {
		after++
	}
	atEOL := after >= n || src[after] == '\n'
	_, onlyWS := syntax.LineIndent(src, start)
	switch {
	case onlyWS && atEOL && after < n:
		start = syntax.LineStart(src, start)
		end = after + 1
	case !atEOL:
		end = after
	default:
		for start > 0 && (src[start-1] == ' ' || src[start-1] == '\t') {
			start--
		}
	}
	e.buf().Delete(start, end)
}

func (e *emitter) deleteListItems(parent *ts.Node, removed []*ts.Node) {
	var items []*ts.Node
	for _, child := range syntax.NamedChildren(parent) {
		if parent.Kind() == "lexical_declaration" && child.Kind() != "variable_declarator" {
			continue
		}
		items = append(items, child)
	}
	gone := make(map[uintptr]bool, len(removed))
	for _, r := range removed {
		gone[r.Id()] = true
	}
	for i := 0; i < len(items); {
		if !gone[items[i].Id()] {
			i++
			continue
		}
		j := i
		for j+1 < len(items) && gone[items[j+1].Id()] {
			j++
		}
		switch {
		case j+1 < len(items):
			e.buf().Delete(items[i].StartByte(), items[j+1].StartByte())
		case i > 0:
			e.buf().Delete(items[i-1].EndByte(), items[j].EndByte())
		default:
			panic(analysis.InternalError{Message: "every item of a list is removed but the list is kept: " + parent.Kind()})
		}
		i = j + 1
	}
}

// renameBindings renames kept aliases and render locals.
func (e *emitter) renameBindings() {
	lm := e.res.Locals
	for b, name := range e.plan.renames {
		if !lm.IsRemoved(b.Ident) {
			e.replaceIdent(b.Ident, name)
		}
		for _, ref := range b.Refs {
			e.replaceIdent(ref, name)
		}
	}
}

// replaceIdent replaces an identifier occurrence, expanding shorthand
// properties so the key keeps its name.
func (e *emitter) replaceIdent(node *ts.Node, name string) {
	e.idents[node.Id()] = name
	switch node.Kind() {
	case "shorthand_property_identifier", "shorthand_property_identifier_pattern":
		if e.text(node) == name {
			return
		}
		e.buf().ReplaceText(node.StartByte(), node.EndByte(), e.text(node)+": "+name)
	default:
		e.buf().ReplaceText(node.StartByte(), node.EndByte(), name)
	}
}

func (e *emitter) rewriteSites() {
	res, p := e.res, e.plan

	for pair := res.Props.Fields.Oldest(); pair != nil; pair = pair.Next() {
		for _, site := range pair.Value.Sites {
			if site.Decompose {
				e.replaceIdent(site.Expr, p.propLocals[pair.Key])
				continue
			}
			obj := site.Expr.ChildByFieldName("object")
			e.replaceIdent(obj, p.props)
		}
	}
	for _, w := range res.Props.Wholes {
		e.replaceIdent(w.Expr, p.props)
	}

	for pair := res.State.Fields.Oldest(); pair != nil; pair = pair.Next() {
		for _, site := range pair.Value.Sites {
			if site.Kind == analysis.StateRead {
				e.replaceIdent(site.Expr, p.stateValue[pair.Key])
			}
		}
	}
	for _, w := range res.State.Wholes {
		e.buf().ReplaceText(w.Expr.StartByte(), w.Expr.EndByte(), e.stateObject())
	}

	for pair := res.UserDefined.Fields.Oldest(); pair != nil; pair = pair.Next() {
		ud := pair.Value
		local := p.udLocals[pair.Key]
		if ud.Kind == analysis.UDRef {
			local += ".current"
		}
		for _, site := range ud.Sites {
			e.buf().ReplaceText(site.Expr.StartByte(), site.Expr.EndByte(), local)
		}
	}

	// Updates last: a shorthand value may have been renamed above.
	for pair := res.State.Fields.Oldest(); pair != nil; pair = pair.Next() {
		field := pair.Value
		for _, site := range field.Sites {
			if site.Kind != analysis.StateUpdate {
				continue
			}
			pieces := []edit.Piece{edit.Text(p.stateSet[pair.Key] + "(")}
			if field.FunctionValued() {
				pieces = append(pieces, edit.Text("() => "))
			}
			pieces = append(pieces, e.valuePiece(site.Value), edit.Text(")"))
			e.buf().Replace(site.Call.StartByte(), site.Call.EndByte(), pieces...)
		}
	}
}

// valuePiece renders an object-literal value. Shorthand entries are
// emitted as their (possibly renamed) identifier.
func (e *emitter) valuePiece(node *ts.Node) edit.Piece {
	if node.Kind() == "shorthand_property_identifier" {
		if name, ok := e.idents[node.Id()]; ok {
			return edit.Text(name)
		}
		return edit.Text(e.text(node))
	}
	return e.span(node)
}

func (e *emitter) span(node *ts.Node) edit.Piece {
	return edit.Span(node.StartByte(), node.EndByte())
}

// stateObject renders `{ a, b: b0 }` over every state cell.
func (e *emitter) stateObject() string {
	var entries []string
	for pair := e.res.State.Fields.Oldest(); pair != nil; pair = pair.Next() {
		local := e.plan.stateValue[pair.Key]
		key := propertyKey(pair.Key)
		if key == local {
			entries = append(entries, local)
		} else {
			entries = append(entries, key+": "+local)
		}
	}
	return "{ " + strings.Join(entries, ", ") + " }"
}

// markOptionalProps makes defaulted members of the props type optional.
func (e *emitter) markOptionalProps() {
	props := e.res.Props
	if !e.f.ctx.Typed || !props.HasDefaults {
		return
	}
	for pair := props.Fields.Oldest(); pair != nil; pair = pair.Next() {
		field := pair.Value
		if field.Default == nil || field.Sig == nil || field.Sig.Optional {
			continue
		}
		name := field.Sig.Node.ChildByFieldName("name")
		if name == nil {
			continue
		}
		pos := name.EndByte()
		if e.f.optional[pos] {
			continue
		}
		e.f.optional[pos] = true
		e.buf().Insert(pos, "?")
	}
}

// propertyKey renders name as an object key.
func propertyKey(name string) string {
	if syntax.IsIdentifier(name) {
		return name
	}
	return strconv.Quote(name)
}

// memberAccess renders `.name` or `["name"]`.
func memberAccess(name string) string {
	if syntax.IsIdentifier(name) {
		return "." + name
	}
	return "[" + strconv.Quote(name) + "]"
}

package declassify

import (
	"strings"

	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/gnana997/declassify/pkg/analysis"
	"github.com/gnana997/declassify/pkg/edit"
	"github.com/gnana997/declassify/pkg/syntax"
)

// replaceClass replaces the class with the function component, its
// preamble, the re-emitted statics and, for default exports, the export.
func (e *emitter) replaceClass() {
	head := e.head
	start, end := head.Class.StartByte(), head.Class.EndByte()
	if head.DefaultExport {
		start, end = head.Statement.StartByte(), head.Statement.EndByte()
	}

	var out []edit.Piece
	header, footer := e.header()
	out = append(out, header...)
	preamble := e.preamble()
	out = append(out, preamble...)
	out = append(out, e.renderBody(len(preamble) > 0)...)
	out = append(out, edit.Text(footer))

	for _, s := range e.res.Statics {
		value := s.Init.Value
		e.reindent(value, e.classIndent)
		out = append(out,
			edit.Text("\n"+e.classIndent+head.Name+memberAccess(s.Name)+" = "),
			e.span(value),
			edit.Text(";"))
	}
	if head.DefaultExport {
		out = append(out, edit.Text("\n"+e.classIndent+"export default "+head.Name+";"))
	}
	e.buf().Replace(start, end, out...)
}

// header opens the component up to and including the body brace and
// returns the matching closing text.
func (e *emitter) header() ([]edit.Piece, string) {
	head, p, lib := e.head, e.plan, e.f.lib
	typed := e.f.ctx.Typed
	name := head.Name

	param := func() []edit.Piece {
		pieces := []edit.Piece{edit.Text(p.props)}
		if typed && p.props != "" && head.PropsType != nil {
			pieces = append(pieces, edit.Text(": "), e.span(head.PropsType))
		}
		return pieces
	}
	signature := func() []edit.Piece {
		pieces := []edit.Piece{edit.Text("function " + name)}
		if head.TypeParams != nil {
			pieces = append(pieces, e.span(head.TypeParams))
		}
		pieces = append(pieces, edit.Text("("))
		pieces = append(pieces, param()...)
		pieces = append(pieces, edit.Text(")"))
		if typed && head.TypeParams != nil {
			pieces = append(pieces, edit.Text(": "+lib.ref("ReactElement")+" | null"))
		}
		return append(pieces, edit.Text(" {"))
	}

	switch {
	case head.Pure:
		pieces := []edit.Piece{edit.Text("const " + name + " = " + lib.ref("memo") + "(")}
		return append(pieces, signature()...), "});"
	case head.TypeParams != nil:
		pieces := []edit.Piece{edit.Text("const " + name + " = ")}
		return append(pieces, signature()...), "};"
	}

	pieces := []edit.Piece{edit.Text("const " + name)}
	if typed {
		pieces = append(pieces, edit.Text(": "+lib.ref("FC")))
		if head.PropsType != nil {
			pieces = append(pieces, edit.Text("<"), e.span(head.PropsType), edit.Text(">"))
		}
	}
	pieces = append(pieces, edit.Text(" = "))
	if p.props == "" {
		pieces = append(pieces, edit.Text("()"))
	} else {
		pieces = append(pieces, edit.Text(p.props))
	}
	return append(pieces, edit.Text(" => {")), "};"
}

// line starts a preamble statement.
func (e *emitter) line(pieces ...edit.Piece) []edit.Piece {
	return append([]edit.Piece{edit.Text("\n" + e.bodyIndent)}, pieces...)
}

// moved spans node after shifting its continuation lines to the body.
func (e *emitter) moved(node *ts.Node) edit.Piece {
	e.reindent(node, e.bodyIndent)
	return e.span(node)
}

func (e *emitter) preamble() []edit.Piece {
	var out []edit.Piece
	out = append(out, e.propsPreamble()...)
	out = append(out, e.statePreamble()...)
	for pair := e.res.UserDefined.Fields.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, e.userDefined(pair.Value)...)
	}
	out = append(out, e.effects()...)
	return out
}

// propsPreamble destructures every aliased prop from the props parameter.
func (e *emitter) propsPreamble() []edit.Piece {
	var entries []edit.Piece
	for pair := e.res.Props.Fields.Oldest(); pair != nil; pair = pair.Next() {
		field := pair.Value
		local, ok := e.plan.propLocals[field.Name]
		if !ok {
			continue
		}
		if len(entries) > 0 {
			entries = append(entries, edit.Text(", "))
		}
		key := propertyKey(field.Name)
		if key == local {
			entries = append(entries, edit.Text(local))
		} else {
			entries = append(entries, edit.Text(key+": "+local))
		}
		if field.Default != nil {
			entries = append(entries, edit.Text(" = "), e.moved(field.Default))
		}
	}
	if len(entries) == 0 {
		return nil
	}
	pieces := append([]edit.Piece{edit.Text("const { ")}, entries...)
	pieces = append(pieces, edit.Text(" } = "+e.plan.props+";"))
	return e.line(pieces...)
}

func (e *emitter) statePreamble() []edit.Piece {
	var out []edit.Piece
	typed := e.f.ctx.Typed
	for pair := e.res.State.Fields.Oldest(); pair != nil; pair = pair.Next() {
		field := pair.Value
		pieces := []edit.Piece{edit.Text(
			"const [" + e.plan.stateValue[pair.Key] + ", " + e.plan.stateSet[pair.Key] + "] = " + e.f.lib.ref("useState"))}
		if typed && field.Sig != nil {
			typ := field.Sig.TypeText(e.src())
			if field.Init == nil {
				typ += " | undefined"
			}
			pieces = append(pieces, edit.Text("<"+typ+">"))
		}
		pieces = append(pieces, edit.Text("("))
		if field.Init != nil {
			if field.FunctionValued() || !field.InitPure {
				pieces = append(pieces, edit.Text("() => "))
			}
			pieces = append(pieces, e.moved(field.Init))
		}
		pieces = append(pieces, edit.Text(");"))
		out = append(out, e.line(pieces...)...)
	}
	return out
}

func (e *emitter) userDefined(ud *analysis.UserDefined) []edit.Piece {
	lib := e.f.lib
	typed := e.f.ctx.Typed
	local := e.plan.udLocals[ud.Name]

	switch ud.Kind {
	case analysis.UDFactoryRef:
		typ := ""
		if typed && ud.ElemType != nil {
			typ = "<" + e.text(ud.ElemType) + ">"
		}
		return e.line(edit.Text("const " + local + " = " + lib.ref("useRef") + typ + "(null);"))

	case analysis.UDRef:
		pieces := []edit.Piece{edit.Text("const " + local + " = " + lib.ref("useRef"))}
		if typed && ud.Type != nil {
			pieces = append(pieces, edit.Text("<"), e.span(ud.Type))
			if ud.Init == nil {
				pieces = append(pieces, edit.Text(" | undefined"))
			}
			pieces = append(pieces, edit.Text(">"))
		}
		pieces = append(pieces, edit.Text("("))
		if ud.Init != nil {
			pieces = append(pieces, e.moved(ud.Init.Init.Value))
		}
		return e.line(append(pieces, edit.Text(");"))...)
	}

	init := ud.Init.Init
	if ud.NeedsMemo {
		pieces := []edit.Piece{edit.Text("const " + local + " = " + lib.ref("useCallback"))}
		if typed && ud.Type != nil {
			pieces = append(pieces, edit.Text("<"), e.span(ud.Type), edit.Text(">"))
		}
		pieces = append(pieces, edit.Text("("))
		if init.Kind == analysis.InitMethod {
			pieces = append(pieces, e.methodFunction(init.Method, "")...)
		} else {
			pieces = append(pieces, e.moved(init.Value))
		}
		pieces = append(pieces, edit.Text(", ["+strings.Join(e.dependencies(ud), ", ")+"]);"))
		return e.line(pieces...)
	}

	if init.Kind == analysis.InitMethod {
		return e.line(e.methodFunction(init.Method, local)...)
	}
	pieces := []edit.Piece{edit.Text("const " + local)}
	if typed && ud.Type != nil {
		pieces = append(pieces, edit.Text(": "), e.span(ud.Type))
	}
	pieces = append(pieces, edit.Text(" = "), e.moved(init.Value), edit.Text(";"))
	return e.line(pieces...)
}

// methodFunction renders a method definition as a function declaration
// named name, or as a function value when name is empty. Plain methods
// become arrow functions; generators need the function keyword.
func (e *emitter) methodFunction(method *ts.Node, name string) []edit.Piece {
	async := syntax.HasToken(method, "async")
	generator := syntax.HasToken(method, "*")
	var pieces []edit.Piece
	if async {
		pieces = append(pieces, edit.Text("async "))
	}
	arrow := name == "" && !generator
	if !arrow {
		kw := "function"
		if generator {
			kw += "*"
		}
		if name != "" {
			kw += " " + name
		}
		pieces = append(pieces, edit.Text(kw))
	}
	if tp := method.ChildByFieldName("type_parameters"); tp != nil {
		pieces = append(pieces, e.span(tp))
	}
	pieces = append(pieces, e.span(method.ChildByFieldName("parameters")))
	if ret := method.ChildByFieldName("return_type"); ret != nil {
		pieces = append(pieces, e.span(ret))
	}
	if arrow {
		pieces = append(pieces, edit.Text(" =>"))
	}
	return append(pieces, edit.Text(" "), e.moved(method.ChildByFieldName("body")))
}

// dependencies renders the dependency array of a memoized callable.
func (e *emitter) dependencies(ud *analysis.UserDefined) []string {
	p := e.plan
	deps := make([]string, 0, len(ud.Deps))
	for _, d := range ud.Deps {
		switch d.Kind {
		case analysis.DepProp:
			deps = append(deps, p.props+memberAccess(d.Name))
		case analysis.DepPropAlias:
			deps = append(deps, p.propLocals[d.Name])
		case analysis.DepWholeProps:
			deps = append(deps, p.props)
		case analysis.DepState:
			deps = append(deps, p.stateValue[d.Name])
		case analysis.DepFunction:
			deps = append(deps, p.udLocals[d.Name])
		}
	}
	return deps
}

// effects renders the lifecycle methods as effect hooks.
func (e *emitter) effects() []edit.Piece {
	fx := e.res.Effects
	if fx.Empty() {
		return nil
	}
	useEffect := e.f.lib.ref("useEffect")
	var out []edit.Piece
	if fx.DidUpdate != nil {
		out = append(out, e.line(edit.Text("const "+e.plan.isMounted+" = "+e.f.lib.ref("useRef")+"(false);"))...)
	}
	if fx.DidMount != nil {
		out = append(out, e.line(
			edit.Text(useEffect+"(() => "),
			e.moved(fx.DidMount.ChildByFieldName("body")),
			edit.Text(", []);"))...)
	}
	if fx.DidUpdate != nil {
		m := e.plan.isMounted + ".current"
		in, in2 := e.bodyIndent+e.unit, e.bodyIndent+e.unit+e.unit
		guard := useEffect + "(() => {" +
			"\n" + in + "if (!" + m + ") {" +
			"\n" + in2 + m + " = true;" +
			"\n" + in2 + "return;" +
			"\n" + in + "}"
		body := fx.DidUpdate.ChildByFieldName("body")
		e.reindent(body, e.bodyIndent)
		pieces := []edit.Piece{edit.Text(guard)}
		pieces = append(pieces, e.blockInner(body, e.bodyIndent)...)
		out = append(out, e.line(append(pieces, edit.Text("});"))...)...)
	}
	if fx.WillUnmount != nil {
		out = append(out, e.line(
			edit.Text(useEffect+"(() => () => "),
			e.moved(fx.WillUnmount.ChildByFieldName("body")),
			edit.Text(", []);"))...)
	}
	return out
}

// blockInner renders the statements of a block without its braces. The
// statements of a body written on one line are moved to lines of their own
// at indent plus one unit, with the closing brace on the next line at indent.
func (e *emitter) blockInner(block *ts.Node, indent string) []edit.Piece {
	start, end := block.StartByte()+1, block.EndByte()-1
	src := e.src()
	if strings.Contains(string(src[start:end]), "\n") {
		return []edit.Piece{edit.Span(start, end)}
	}
	var out []edit.Piece
	for _, stmt := range syntax.NamedChildren(block) {
		if e.res.Locals.IsRemoved(stmt) {
			continue
		}
		out = append(out, edit.Text("\n"+indent+e.unit), edit.Span(stmt.StartByte(), stmt.EndByte()))
	}
	return append(out, edit.Text("\n"+indent))
}

// renderBody renders the statements of render. A one-line body is kept as
// is unless a preamble precedes it.
func (e *emitter) renderBody(hasPreamble bool) []edit.Piece {
	body := e.res.Render.ChildByFieldName("body")
	e.reindent(body, e.classIndent)
	if !hasPreamble {
		return []edit.Piece{edit.Span(body.StartByte()+1, body.EndByte()-1)}
	}
	return e.blockInner(body, e.classIndent)
}

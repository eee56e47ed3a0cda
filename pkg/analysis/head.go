package analysis

import (
	"strings"

	ts "github.com/tree-sitter/go-tree-sitter"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/gnana997/declassify/pkg/syntax"
)

// DisableMarker opts a class out of the transformation when it appears in
// a leading comment. Disable comments written by the transformer carry it
// too, so a second run leaves those classes alone.
const DisableMarker = "react-declassify-disable"

// TypeSig is one member of a decomposed props or state type.
type TypeSig struct {
	Name string
	// Node is the property_signature or method_signature.
	Node *ts.Node
	// Type is the annotated type of a property signature.
	Type     *ts.Node
	Method   bool
	Optional bool
}

// TypeText renders sig as a standalone type: the annotated type for
// properties and an arrow function type for method signatures.
func (sig *TypeSig) TypeText(source []byte) string {
	if !sig.Method {
		if sig.Type == nil {
			return "any"
		}
		return syntax.Text(sig.Type, source)
	}
	var sb strings.Builder
	if tp := sig.Node.ChildByFieldName("type_parameters"); tp != nil {
		sb.WriteString(syntax.Text(tp, source))
	}
	if params := sig.Node.ChildByFieldName("parameters"); params != nil {
		sb.WriteString(syntax.Text(params, source))
	} else {
		sb.WriteString("()")
	}
	sb.WriteString(" => ")
	if ret := annotationType(sig.Node.ChildByFieldName("return_type")); ret != nil {
		sb.WriteString(syntax.Text(ret, source))
	} else {
		sb.WriteString("void")
	}
	return sb.String()
}

// TypeMembers is an ordered decomposition of an object-like type.
type TypeMembers = orderedmap.OrderedMap[string, *TypeSig]

// Head is the eligibility verdict and metadata of a class component.
type Head struct {
	Class *ts.Node
	// Statement is the class itself or the export statement wrapping it.
	Statement     *ts.Node
	Exported      bool
	DefaultExport bool
	Name          string
	Superclass    LibRef
	Pure          bool

	TypeParams *ts.Node
	PropsType  *ts.Node
	StateType  *ts.Node
	// PropsDecl is the same-file interface or type alias PropsType names.
	PropsDecl  *ts.Node
	PropTypes  *TypeMembers
	StateTypes *TypeMembers
}

// AnalyzeHead decides whether class is an eligible component. It returns
// nil when the class must be skipped silently.
func AnalyzeHead(ctx *Context, class *ts.Node) *Head {
	if class == nil {
		return nil
	}
	if class.Kind() == "abstract_class_declaration" || syntax.HasToken(class, "abstract") {
		return nil
	}
	stmt := class
	parent := class.Parent()
	exported, defaultExport := false, false
	if parent != nil && parent.Kind() == "export_statement" {
		stmt = parent
		exported = true
		defaultExport = syntax.HasToken(parent, "default")
	}
	for _, c := range LeadingComments(stmt) {
		text := ctx.text(c)
		if strings.Contains(text, DisableMarker) || strings.Contains(text, "@abstract") {
			return nil
		}
	}

	super, typeArgs := superclass(class)
	if super == nil {
		return nil
	}
	ref, ok := ctx.ResolveLibRef(super)
	if !ok || !ctx.IsLibrary(ref) {
		return nil
	}
	if ref.Name != "Component" && ref.Name != "PureComponent" {
		return nil
	}

	h := &Head{
		Class:         class,
		Statement:     stmt,
		Exported:      exported,
		DefaultExport: defaultExport,
		Superclass:    ref,
		Pure:          ref.Name == "PureComponent",
		TypeParams:    class.ChildByFieldName("type_parameters"),
	}
	if name := class.ChildByFieldName("name"); name != nil {
		h.Name = ctx.text(name)
	}
	if typeArgs != nil {
		args := syntax.NamedChildren(typeArgs)
		if len(args) > 0 {
			h.PropsType = args[0]
			h.PropTypes, h.PropsDecl = resolveTypeMembers(ctx, class, args[0])
		}
		if len(args) > 1 {
			h.StateType = args[1]
			h.StateTypes, _ = resolveTypeMembers(ctx, class, args[1])
		}
	}
	return h
}

// LeadingComments returns the comments immediately preceding node.
func LeadingComments(node *ts.Node) []*ts.Node {
	var out []*ts.Node
	for prev := node.PrevSibling(); prev != nil && prev.Kind() == "comment"; prev = prev.PrevSibling() {
		out = append([]*ts.Node{prev}, out...)
	}
	return out
}

// superclass returns the superclass expression and, for TypeScript, its
// type arguments.
func superclass(class *ts.Node) (value, typeArgs *ts.Node) {
	heritage := syntax.FindChild(class, "class_heritage")
	if heritage == nil {
		return nil, nil
	}
	if ext := syntax.FindChild(heritage, "extends_clause"); ext != nil {
		value = ext.ChildByFieldName("value")
		if value == nil {
			if kids := syntax.NamedChildren(ext); len(kids) > 0 {
				value = kids[0]
			}
		}
		typeArgs = ext.ChildByFieldName("type_arguments")
		if typeArgs == nil {
			typeArgs = syntax.FindChild(ext, "type_arguments")
		}
		return value, typeArgs
	}
	kids := syntax.NamedChildren(heritage)
	if len(kids) == 0 || kids[0].Kind() == "implements_clause" {
		return nil, nil
	}
	return kids[0], nil
}

// resolveTypeMembers decomposes an object type literal, or a single hop
// through the lexically nearest same-file interface or type alias.
func resolveTypeMembers(ctx *Context, from, typ *ts.Node) (*TypeMembers, *ts.Node) {
	switch typ.Kind() {
	case "object_type":
		return typeMembers(ctx, typ), nil
	case "type_identifier":
		decl := lookupTypeDecl(ctx, from, ctx.text(typ))
		if decl == nil {
			return nil, nil
		}
		var body *ts.Node
		switch decl.Kind() {
		case "interface_declaration":
			body = decl.ChildByFieldName("body")
		case "type_alias_declaration":
			body = decl.ChildByFieldName("value")
		}
		if body == nil || (body.Kind() != "object_type" && body.Kind() != "interface_body") {
			return nil, nil
		}
		return typeMembers(ctx, body), decl
	}
	return nil, nil
}

// lookupTypeDecl finds the nearest enclosing declaration of a type name.
func lookupTypeDecl(ctx *Context, from *ts.Node, name string) *ts.Node {
	for cur := from.Parent(); cur != nil; cur = cur.Parent() {
		if cur.Kind() != "program" && cur.Kind() != "statement_block" {
			continue
		}
		for _, stmt := range syntax.NamedChildren(cur) {
			decl := stmt
			if stmt.Kind() == "export_statement" {
				decl = stmt.ChildByFieldName("declaration")
				if decl == nil {
					continue
				}
			}
			if decl.Kind() != "interface_declaration" && decl.Kind() != "type_alias_declaration" {
				continue
			}
			if n := decl.ChildByFieldName("name"); n != nil && ctx.text(n) == name {
				return decl
			}
		}
	}
	return nil
}

func typeMembers(ctx *Context, body *ts.Node) *TypeMembers {
	members := orderedmap.New[string, *TypeSig]()
	for _, m := range syntax.NamedChildren(body) {
		var sig *TypeSig
		switch m.Kind() {
		case "property_signature":
			sig = &TypeSig{Node: m, Type: annotationType(m.ChildByFieldName("type"))}
		case "method_signature":
			sig = &TypeSig{Node: m, Method: true}
		default:
			continue
		}
		name, ok := syntax.PropertyName(m.ChildByFieldName("name"), ctx.Source)
		if !ok {
			continue
		}
		sig.Name = name
		sig.Optional = syntax.HasToken(m, "?")
		if _, dup := members.Get(name); !dup {
			members.Set(name, sig)
		}
	}
	return members
}

// annotationType returns the type inside a type_annotation node.
func annotationType(ann *ts.Node) *ts.Node {
	if ann == nil {
		return nil
	}
	if ann.Kind() != "type_annotation" {
		return ann
	}
	kids := syntax.NamedChildren(ann)
	if len(kids) == 0 {
		return nil
	}
	return kids[0]
}

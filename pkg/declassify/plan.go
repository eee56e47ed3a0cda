package declassify

import (
	"github.com/gnana997/declassify/pkg/analysis"
	"github.com/gnana997/declassify/pkg/syntax"
)

// namePlan holds every local name of the generated function body.
type namePlan struct {
	// props is the props parameter, or "" when the component takes none.
	props      string
	propLocals map[string]string
	stateValue map[string]string
	stateSet   map[string]string
	udLocals   map[string]string
	isMounted  string
	// renames maps kept bindings to their new names.
	renames map[*syntax.Binding]string
}

// plan allocates names in a fixed order: the props parameter, prop
// aliases, state cells and setters, user-defined members, effect helpers,
// and finally the render method's own locals.
func plan(ctx *analysis.Context, res *analysis.Result) *namePlan {
	lm := res.Locals
	head := res.Head
	p := &namePlan{
		propLocals: make(map[string]string),
		stateValue: make(map[string]string),
		stateSet:   make(map[string]string),
		udLocals:   make(map[string]string),
		renames:    make(map[*syntax.Binding]string),
	}

	typedParam := ctx.Typed && head.PropsType != nil && (head.Pure || head.TypeParams != nil)
	if res.Props.Used() || typedParam {
		p.props = lm.NewLocal("props")
	}

	for pair := res.Props.Fields.Oldest(); pair != nil; pair = pair.Next() {
		field := pair.Value
		if !field.NeedsAlias() {
			continue
		}
		base := field.Name
		if len(field.Aliases) > 0 && field.Aliases[0].Binding != nil {
			base = field.Aliases[0].Binding.Name
		}
		local := lm.NewLocal(base)
		p.propLocals[field.Name] = local
		for _, alias := range field.Aliases {
			if alias.Binding != nil && alias.Binding.Name != local {
				p.renames[alias.Binding] = local
			}
		}
	}

	for pair := res.State.Fields.Oldest(); pair != nil; pair = pair.Next() {
		p.stateValue[pair.Key] = lm.NewLocal(pair.Key)
		p.stateSet[pair.Key] = lm.NewLocal("set" + syntax.Capitalize(pair.Key))
	}

	for pair := res.UserDefined.Fields.Oldest(); pair != nil; pair = pair.Next() {
		p.udLocals[pair.Key] = lm.NewLocal(pair.Key)
	}

	if res.Effects.DidUpdate != nil {
		p.isMounted = lm.NewLocal("isMounted")
	}

	for _, b := range lm.RenderLocals() {
		if name := lm.NewLocal(b.Name); name != b.Name {
			p.renames[b] = name
		}
	}
	return p
}

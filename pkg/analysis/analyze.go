package analysis

import (
	ts "github.com/tree-sitter/go-tree-sitter"
)

// Result is the complete model of one eligible class.
type Result struct {
	Head        *Head
	Fields      *ClassFields
	Render      *ts.Node
	State       *StateAnalysis
	Props       *PropsAnalysis
	UserDefined *UserDefinedAnalysis
	Effects     *Effects
	// Statics are the static fields re-emitted as assignments.
	Statics []*FieldSite
	Locals  *LocalManager
}

// Analyze runs every pass over an eligible class. It only reads the tree;
// an *Error means the class must be left as is.
func Analyze(ctx *Context, head *Head) (*Result, error) {
	fields, err := AnalyzeFields(ctx, head)
	if err != nil {
		return nil, err
	}
	render, err := CheckReserved(fields)
	if err != nil {
		return nil, err
	}
	lm := NewLocalManager(ctx, head, render)
	if fields.CtorParam != nil {
		lm.release(fields.CtorParam.Name)
	}

	state, err := AnalyzeState(ctx, head, fields, lm)
	if err != nil {
		return nil, err
	}
	props, err := AnalyzeProps(ctx, head, fields, lm)
	if err != nil {
		return nil, err
	}
	ud, err := AnalyzeUserDefined(ctx, fields, state, props)
	if err != nil {
		return nil, err
	}
	effects, err := AnalyzeEffects(fields, state, props, ud)
	if err != nil {
		return nil, err
	}

	r := &Result{
		Head:        head,
		Fields:      fields,
		Render:      render,
		State:       state,
		Props:       props,
		UserDefined: ud,
		Effects:     effects,
		Locals:      lm,
	}
	for pair := fields.Static.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Key == "defaultProps" {
			continue
		}
		if s := fields.StaticInit(pair.Key); s != nil {
			r.Statics = append(r.Statics, s)
		}
	}
	return r, nil
}
